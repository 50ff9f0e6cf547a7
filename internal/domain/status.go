package domain

// ExecutionStatus — статус выполнения workflow.
//
// Жизненный цикл:
//
//	pending → running → success
//	                  ↘ failed
//	(внешне) → cancelled
//
// Движок сам никогда не выставляет cancelled — это статус,
// который записывает окружающая система.
type ExecutionStatus string

const (
	// ExecutionStatusPending — execution создан, но ещё не начал выполняться.
	ExecutionStatusPending ExecutionStatus = "pending"

	// ExecutionStatusRunning — execution в процессе выполнения.
	ExecutionStatusRunning ExecutionStatus = "running"

	// ExecutionStatusSuccess — все узлы обработаны без прерывающей ошибки.
	ExecutionStatusSuccess ExecutionStatus = "success"

	// ExecutionStatusFailed — execution завершился с ошибкой.
	ExecutionStatusFailed ExecutionStatus = "failed"

	// ExecutionStatusCancelled — execution отменён извне.
	ExecutionStatusCancelled ExecutionStatus = "cancelled"
)

// IsTerminal возвращает true, если статус финальный.
func (s ExecutionStatus) IsTerminal() bool {
	switch s {
	case ExecutionStatusSuccess, ExecutionStatusFailed, ExecutionStatusCancelled:
		return true
	default:
		return false
	}
}

// String возвращает строковое представление статуса.
func (s ExecutionStatus) String() string {
	return string(s)
}

// LogLevel — уровень записи в журнале execution.
type LogLevel string

const (
	LogLevelInfo    LogLevel = "info"
	LogLevelWarning LogLevel = "warning"
	LogLevelError   LogLevel = "error"
)

// TriggerType — источник запуска execution.
type TriggerType string

const (
	TriggerManual    TriggerType = "manual"
	TriggerScheduled TriggerType = "scheduled"
	TriggerWebhook   TriggerType = "webhook"
)

// ErrorPolicy — политика обработки ошибки узла.
type ErrorPolicy string

const (
	// ErrorPolicyAbort — ошибка узла завершает весь execution (по умолчанию).
	ErrorPolicyAbort ErrorPolicy = "abort"

	// ErrorPolicyContinue — ошибка узла логируется, выполнение продолжается.
	ErrorPolicyContinue ErrorPolicy = "continue"
)

// IsValid проверяет, что политика известна. Пустое значение означает abort.
func (p ErrorPolicy) IsValid() bool {
	switch p {
	case "", ErrorPolicyAbort, ErrorPolicyContinue:
		return true
	default:
		return false
	}
}

// ContinueOnError возвращает true для политики continue.
func (p ErrorPolicy) ContinueOnError() bool {
	return p == ErrorPolicyContinue
}
