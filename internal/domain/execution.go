package domain

import (
	"time"

	"github.com/google/uuid"
)

// Execution — один запуск workflow.
//
// Execution создаётся когда:
// - Пользователь запускает workflow вручную (CLI)
// - Scheduler создаёт запуск по расписанию
//
// Статусом и результатом управляет WorkflowEngine через Recorder.
type Execution struct {
	// ID — уникальный идентификатор execution.
	ID uuid.UUID `json:"id"`

	// WorkflowID — ссылка на выполняемый workflow.
	WorkflowID uuid.UUID `json:"workflow_id"`

	// Status — текущий статус.
	Status ExecutionStatus `json:"status"`

	// TriggerType — источник запуска.
	TriggerType TriggerType `json:"trigger_type"`

	// StartedAt — время перехода в running. Nil, если ещё не начался.
	StartedAt *time.Time `json:"started_at,omitempty"`

	// CompletedAt — время перехода в финальный статус.
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// ErrorMessage — текст ошибки для failed.
	ErrorMessage string `json:"error_message,omitempty"`

	// ResultData — снимок outputs всех узлов после успешного завершения.
	ResultData map[string]any `json:"result_data,omitempty"`

	// IdempotencyKey — ключ для предотвращения дубликатов (scheduled запуски).
	IdempotencyKey string `json:"idempotency_key,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// NewExecution создаёт execution в статусе pending.
func NewExecution(workflowID uuid.UUID, trigger TriggerType) *Execution {
	return &Execution{
		ID:          uuid.New(),
		WorkflowID:  workflowID,
		Status:      ExecutionStatusPending,
		TriggerType: trigger,
		CreatedAt:   time.Now().UTC(),
	}
}

// ApplyStatus переводит execution в новый статус.
//
// running выставляет StartedAt только один раз,
// любой финальный статус выставляет CompletedAt.
// Пустой errMsg не затирает уже записанную ошибку.
func (e *Execution) ApplyStatus(status ExecutionStatus, errMsg string, now time.Time) {
	e.Status = status
	if errMsg != "" {
		e.ErrorMessage = errMsg
	}

	switch {
	case status == ExecutionStatusRunning:
		if e.StartedAt == nil {
			e.StartedAt = &now
		}
	case status.IsTerminal():
		e.CompletedAt = &now
	}
}

// Duration возвращает продолжительность выполнения.
// Возвращает 0, если execution ещё не завершён.
func (e *Execution) Duration() time.Duration {
	if e.StartedAt == nil || e.CompletedAt == nil {
		return 0
	}
	return e.CompletedAt.Sub(*e.StartedAt)
}

// ExecutionLog — запись журнала execution (append-only).
type ExecutionLog struct {
	ID          uuid.UUID      `json:"id"`
	ExecutionID uuid.UUID      `json:"execution_id"`
	NodeID      string         `json:"node_id"`
	Level       LogLevel       `json:"level"`
	Message     string         `json:"message"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	Timestamp   time.Time      `json:"timestamp"`
}
