package repo

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/procflow/internal/domain"
)

// Recorder сохраняет побочные эффекты WorkflowEngine в Postgres:
// статус execution, журнал узлов и итоговый результат.
type Recorder struct {
	executions *ExecutionRepo
	logs       *LogRepo
}

// NewRecorder создаёт Recorder поверх репозиториев.
func NewRecorder(executions *ExecutionRepo, logs *LogRepo) *Recorder {
	return &Recorder{executions: executions, logs: logs}
}

// UpdateExecutionStatus переводит execution в новый статус.
func (r *Recorder) UpdateExecutionStatus(ctx context.Context, id uuid.UUID, status domain.ExecutionStatus, errMsg string) error {
	return r.executions.UpdateStatus(ctx, id, status, errMsg)
}

// AppendExecutionLog добавляет запись в журнал execution.
func (r *Recorder) AppendExecutionLog(ctx context.Context, id uuid.UUID, nodeID string, level domain.LogLevel, message string, metadata map[string]any) error {
	return r.logs.Append(ctx, newLogEntry(id, nodeID, level, message, metadata))
}

// RecordResult сохраняет итоговый снимок outputs.
func (r *Recorder) RecordResult(ctx context.Context, id uuid.UUID, snapshot map[string]any) error {
	return r.executions.RecordResult(ctx, id, snapshot)
}

func newLogEntry(executionID uuid.UUID, nodeID string, level domain.LogLevel, message string, metadata map[string]any) *domain.ExecutionLog {
	return &domain.ExecutionLog{
		ID:          uuid.New(),
		ExecutionID: executionID,
		NodeID:      nodeID,
		Level:       level,
		Message:     message,
		Metadata:    metadata,
		Timestamp:   time.Now().UTC(),
	}
}
