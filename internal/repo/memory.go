package repo

import (
	"context"
	"maps"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/procflow/internal/domain"
)

// MemoryStore — хранилище в памяти процесса.
//
// Повторяет контракты Postgres репозиториев и Recorder.
// Используется для локальных запусков CLI и в тестах.
type MemoryStore struct {
	mu         sync.RWMutex
	workflows  map[uuid.UUID]domain.Workflow
	executions map[uuid.UUID]domain.Execution
	logs       map[uuid.UUID][]domain.ExecutionLog
}

// NewMemoryStore создаёт пустое хранилище.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		workflows:  make(map[uuid.UUID]domain.Workflow),
		executions: make(map[uuid.UUID]domain.Execution),
		logs:       make(map[uuid.UUID][]domain.ExecutionLog),
	}
}

// Workflows возвращает репозиторий workflows.
func (s *MemoryStore) Workflows() *MemoryWorkflows { return &MemoryWorkflows{s: s} }

// Executions возвращает репозиторий executions.
func (s *MemoryStore) Executions() *MemoryExecutions { return &MemoryExecutions{s: s} }

// Logs возвращает журнал executions.
func (s *MemoryStore) Logs() *MemoryLogs { return &MemoryLogs{s: s} }

// UpdateExecutionStatus реализует Recorder.
func (s *MemoryStore) UpdateExecutionStatus(ctx context.Context, id uuid.UUID, status domain.ExecutionStatus, errMsg string) error {
	return s.Executions().UpdateStatus(ctx, id, status, errMsg)
}

// AppendExecutionLog реализует Recorder.
func (s *MemoryStore) AppendExecutionLog(ctx context.Context, id uuid.UUID, nodeID string, level domain.LogLevel, message string, metadata map[string]any) error {
	return s.Logs().Append(ctx, newLogEntry(id, nodeID, level, message, metadata))
}

// RecordResult реализует Recorder.
func (s *MemoryStore) RecordResult(ctx context.Context, id uuid.UUID, snapshot map[string]any) error {
	return s.Executions().RecordResult(ctx, id, snapshot)
}

// --- Workflows ---

// MemoryWorkflows — workflows в памяти.
type MemoryWorkflows struct{ s *MemoryStore }

// Create сохраняет workflow.
func (r *MemoryWorkflows) Create(_ context.Context, wf *domain.Workflow) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, exists := r.s.workflows[wf.ID]; exists {
		return ErrAlreadyExists
	}
	r.s.workflows[wf.ID] = *wf
	return nil
}

// GetByID возвращает workflow по ID.
func (r *MemoryWorkflows) GetByID(_ context.Context, id uuid.UUID) (*domain.Workflow, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	wf, ok := r.s.workflows[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &wf, nil
}

// ListDueScheduled возвращает активные workflows с наступившим или нерассчитанным next_run_at.
func (r *MemoryWorkflows) ListDueScheduled(_ context.Context, now time.Time, limit int) ([]domain.Workflow, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var due []domain.Workflow
	for _, wf := range r.s.workflows {
		if !wf.IsActive || wf.Schedule == "" {
			continue
		}
		if wf.NextRunAt == nil || !wf.NextRunAt.After(now) {
			due = append(due, wf)
		}
	}

	sort.Slice(due, func(i, j int) bool {
		a, b := due[i].NextRunAt, due[j].NextRunAt
		switch {
		case a == nil:
			return b != nil
		case b == nil:
			return false
		default:
			return a.Before(*b)
		}
	})

	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

// UpdateNextRun сдвигает время следующего запуска.
func (r *MemoryWorkflows) UpdateNextRun(_ context.Context, id uuid.UUID, next time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	wf, ok := r.s.workflows[id]
	if !ok {
		return ErrNotFound
	}
	wf.NextRunAt = &next
	wf.UpdatedAt = time.Now().UTC()
	r.s.workflows[id] = wf
	return nil
}

// --- Executions ---

// MemoryExecutions — executions в памяти.
type MemoryExecutions struct{ s *MemoryStore }

// Create сохраняет execution.
func (r *MemoryExecutions) Create(_ context.Context, exec *domain.Execution) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, exists := r.s.executions[exec.ID]; exists {
		return ErrAlreadyExists
	}
	if exec.IdempotencyKey != "" {
		for _, other := range r.s.executions {
			if other.WorkflowID == exec.WorkflowID && other.IdempotencyKey == exec.IdempotencyKey {
				return ErrAlreadyExists
			}
		}
	}
	r.s.executions[exec.ID] = *exec
	return nil
}

// GetByID возвращает execution по ID.
func (r *MemoryExecutions) GetByID(_ context.Context, id uuid.UUID) (*domain.Execution, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	exec, ok := r.s.executions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &exec, nil
}

// GetByIdempotencyKey возвращает execution по ключу идемпотентности.
func (r *MemoryExecutions) GetByIdempotencyKey(_ context.Context, workflowID uuid.UUID, key string) (*domain.Execution, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, exec := range r.s.executions {
		if exec.WorkflowID == workflowID && exec.IdempotencyKey == key {
			return &exec, nil
		}
	}
	return nil, ErrNotFound
}

// UpdateStatus переводит execution в новый статус.
func (r *MemoryExecutions) UpdateStatus(_ context.Context, id uuid.UUID, status domain.ExecutionStatus, errMsg string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	exec, ok := r.s.executions[id]
	if !ok {
		return ErrNotFound
	}
	exec.ApplyStatus(status, errMsg, time.Now().UTC())
	r.s.executions[id] = exec
	return nil
}

// Claim переводит pending execution в running.
func (r *MemoryExecutions) Claim(_ context.Context, id uuid.UUID) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	exec, ok := r.s.executions[id]
	if !ok || exec.Status != domain.ExecutionStatusPending {
		return false, nil
	}
	exec.ApplyStatus(domain.ExecutionStatusRunning, "", time.Now().UTC())
	r.s.executions[id] = exec
	return true, nil
}

// RecordResult сохраняет итоговый снимок outputs.
func (r *MemoryExecutions) RecordResult(_ context.Context, id uuid.UUID, snapshot map[string]any) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	exec, ok := r.s.executions[id]
	if !ok {
		return ErrNotFound
	}
	exec.ResultData = maps.Clone(snapshot)
	r.s.executions[id] = exec
	return nil
}

// ListPending возвращает pending executions (старые первыми).
func (r *MemoryExecutions) ListPending(_ context.Context, limit int) ([]domain.Execution, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var pending []domain.Execution
	for _, exec := range r.s.executions {
		if exec.Status == domain.ExecutionStatusPending {
			pending = append(pending, exec)
		}
	}

	sort.Slice(pending, func(i, j int) bool {
		return pending[i].CreatedAt.Before(pending[j].CreatedAt)
	})

	if limit > 0 && len(pending) > limit {
		pending = pending[:limit]
	}
	return pending, nil
}

// --- Logs ---

// MemoryLogs — журнал executions в памяти.
type MemoryLogs struct{ s *MemoryStore }

// Append добавляет запись в журнал.
func (r *MemoryLogs) Append(_ context.Context, entry *domain.ExecutionLog) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	r.s.logs[entry.ExecutionID] = append(r.s.logs[entry.ExecutionID], *entry)
	return nil
}

// ListByExecution возвращает журнал execution по возрастанию времени.
func (r *MemoryLogs) ListByExecution(_ context.Context, executionID uuid.UUID) ([]domain.ExecutionLog, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	logs := slices.Clone(r.s.logs[executionID])
	sort.SliceStable(logs, func(i, j int) bool {
		return logs[i].Timestamp.Before(logs[j].Timestamp)
	})
	return logs, nil
}
