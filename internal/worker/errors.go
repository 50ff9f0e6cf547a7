package worker

import "errors"

// Ошибки воркера.
var (
	// ErrExecutionNotFound — execution из сообщения отсутствует в БД.
	ErrExecutionNotFound = errors.New("execution not found")

	// ErrNotPending — execution уже взят другим воркером или завершён.
	ErrNotPending = errors.New("execution is not pending")

	// ErrWorkflowNotFound — workflow execution'а удалён.
	ErrWorkflowNotFound = errors.New("workflow not found")
)
