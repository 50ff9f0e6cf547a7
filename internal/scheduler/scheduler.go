package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/procflow/internal/domain"
	"github.com/shaiso/procflow/internal/repo"
)

const defaultBatchSize = 100

// WorkflowStore — выборка и обновление workflows с расписанием.
type WorkflowStore interface {
	ListDueScheduled(ctx context.Context, now time.Time, limit int) ([]domain.Workflow, error)
	UpdateNextRun(ctx context.Context, id uuid.UUID, next time.Time) error
}

// ExecutionStore — создание executions с идемпотентностью.
type ExecutionStore interface {
	Create(ctx context.Context, exec *domain.Execution) error
	GetByIdempotencyKey(ctx context.Context, workflowID uuid.UUID, key string) (*domain.Execution, error)
}

// Publisher уведомляет воркеров о новом execution.
type Publisher interface {
	PublishExecutionRequested(ctx context.Context, executionID, workflowID uuid.UUID) error
}

// Elector решает, является ли процесс лидером.
type Elector interface {
	TryAcquire(ctx context.Context) (bool, error)
}

// Scheduler создаёт executions по расписанию.
type Scheduler struct {
	workflows  WorkflowStore
	executions ExecutionStore
	publisher  Publisher
	logger     *slog.Logger
	batchSize  int
	now        func() time.Time
}

// Config — конфигурация Scheduler.
type Config struct {
	Workflows  WorkflowStore
	Executions ExecutionStore

	// Publisher — опционально. Без него executions подхватит polling воркеров.
	Publisher Publisher

	Logger    *slog.Logger
	BatchSize int // workflows за один тик (default: 100)

	// Now — источник времени (для тестов). По умолчанию time.Now.
	Now func() time.Time
}

// New создаёт Scheduler.
func New(cfg Config) *Scheduler {
	s := &Scheduler{
		workflows:  cfg.Workflows,
		executions: cfg.Executions,
		publisher:  cfg.Publisher,
		logger:     cfg.Logger,
		batchSize:  cfg.BatchSize,
		now:        cfg.Now,
	}

	if s.batchSize <= 0 {
		s.batchSize = defaultBatchSize
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}
	s.logger = s.logger.With("component", "scheduler")

	return s
}

// TickResult — итог одного тика.
type TickResult struct {
	Due         int
	Initialized int
	Created     int
	Failed      int
}

// Tick обрабатывает due workflows.
// Ошибка одного workflow не блокирует остальные.
func (s *Scheduler) Tick(ctx context.Context) (TickResult, error) {
	now := s.now().UTC()

	due, err := s.workflows.ListDueScheduled(ctx, now, s.batchSize)
	if err != nil {
		return TickResult{}, fmt.Errorf("list due workflows: %w", err)
	}

	res := TickResult{Due: len(due)}
	if len(due) == 0 {
		return res, nil
	}

	for i := range due {
		wf := &due[i]

		created, err := s.processWorkflow(ctx, wf, now)
		switch {
		case err != nil:
			res.Failed++
			s.logger.Error("failed to process scheduled workflow",
				"workflow_id", wf.ID,
				"schedule", wf.Schedule,
				"error", err,
			)
		case wf.NextRunAt == nil:
			res.Initialized++
		case created:
			res.Created++
		}
	}

	s.logger.Info("scheduler tick completed",
		"due", res.Due,
		"initialized", res.Initialized,
		"created", res.Created,
		"failed", res.Failed,
	)

	return res, nil
}

// processWorkflow возвращает true, если был создан новый execution.
func (s *Scheduler) processWorkflow(ctx context.Context, wf *domain.Workflow, now time.Time) (bool, error) {
	next, err := NextRun(wf.Schedule, now)
	if err != nil {
		return false, err
	}

	if wf.NextRunAt == nil {
		if err := s.workflows.UpdateNextRun(ctx, wf.ID, next); err != nil {
			return false, fmt.Errorf("initialize next run: %w", err)
		}
		s.logger.Info("schedule initialized", "workflow_id", wf.ID, "next_run_at", next)
		return false, nil
	}

	exec, created, err := s.ensureExecution(ctx, wf, *wf.NextRunAt)
	if err != nil {
		return false, err
	}

	if err := s.workflows.UpdateNextRun(ctx, wf.ID, next); err != nil {
		return created, fmt.Errorf("update next run: %w", err)
	}

	if created && s.publisher != nil {
		if err := s.publisher.PublishExecutionRequested(ctx, exec.ID, wf.ID); err != nil {
			// Execution уже в БД, воркер заберёт его через polling.
			s.logger.Warn("failed to publish execution.requested",
				"execution_id", exec.ID,
				"error", err,
			)
		}
	}

	return created, nil
}

// ensureExecution создаёт scheduled execution для момента due
// или возвращает уже созданный.
func (s *Scheduler) ensureExecution(ctx context.Context, wf *domain.Workflow, due time.Time) (*domain.Execution, bool, error) {
	key := IdempotencyKey(wf.ID, due)

	existing, err := s.executions.GetByIdempotencyKey(ctx, wf.ID, key)
	if err == nil {
		s.logger.Debug("execution already exists", "execution_id", existing.ID, "idempotency_key", key)
		return existing, false, nil
	}
	if !errors.Is(err, repo.ErrNotFound) {
		return nil, false, fmt.Errorf("check idempotency: %w", err)
	}

	exec := domain.NewExecution(wf.ID, domain.TriggerScheduled)
	exec.IdempotencyKey = key

	if err := s.executions.Create(ctx, exec); err != nil {
		if errors.Is(err, repo.ErrAlreadyExists) {
			// Параллельный scheduler успел раньше.
			existing, getErr := s.executions.GetByIdempotencyKey(ctx, wf.ID, key)
			if getErr != nil {
				return nil, false, fmt.Errorf("load concurrent execution: %w", getErr)
			}
			return existing, false, nil
		}
		return nil, false, fmt.Errorf("create execution: %w", err)
	}

	s.logger.Info("created scheduled execution",
		"execution_id", exec.ID,
		"workflow_id", wf.ID,
		"due", due,
	)
	return exec, true, nil
}

// IdempotencyKey — ключ scheduled execution: один execution на workflow и момент.
func IdempotencyKey(workflowID uuid.UUID, due time.Time) string {
	return fmt.Sprintf("%s_%d", workflowID, due.Unix())
}

// Run вызывает Tick каждые interval, пока процесс является лидером.
// elector == nil — процесс всегда лидер.
func (s *Scheduler) Run(ctx context.Context, interval time.Duration, elector Elector) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	leader := false
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if elector != nil {
			ok, err := elector.TryAcquire(ctx)
			if err != nil {
				s.logger.Error("leader election failed", "error", err)
				continue
			}
			if ok != leader {
				s.logger.Info("leadership changed", "leader", ok)
				leader = ok
			}
			if !ok {
				continue
			}
		}

		if _, err := s.Tick(ctx); err != nil {
			s.logger.Error("scheduler tick failed", "error", err)
		}
	}
}
