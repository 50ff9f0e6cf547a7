package orchestrator

import (
	"context"

	"github.com/google/uuid"

	"github.com/shaiso/procflow/internal/domain"
)

// Recorder — хранилище побочных эффектов execution.
//
// Движок вызывает его в фиксированных точках и больше хранилища не касается.
// Записи по одному execution — обновление одной строки или append,
// координация между executions не нужна.
type Recorder interface {
	// UpdateExecutionStatus переводит execution в статус.
	// errMsg пуст для не-failed статусов.
	UpdateExecutionStatus(ctx context.Context, id uuid.UUID, status domain.ExecutionStatus, errMsg string) error

	// AppendExecutionLog добавляет запись в журнал execution.
	AppendExecutionLog(ctx context.Context, id uuid.UUID, nodeID string, level domain.LogLevel, message string, metadata map[string]any) error

	// RecordResult сохраняет снимок outputs всех узлов.
	RecordResult(ctx context.Context, id uuid.UUID, snapshot map[string]any) error
}

// PlanCache — кэш порядков выполнения (см. internal/topology).
type PlanCache interface {
	Get(def *domain.WorkflowDefinition) ([]string, bool)
	Put(def *domain.WorkflowDefinition, order []string)
}
