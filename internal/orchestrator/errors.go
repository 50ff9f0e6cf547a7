package orchestrator

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Ошибки оркестратора.
var (
	// ErrNoFactory — движок создан без фабрики узлов.
	ErrNoFactory = errors.New("node factory is required")

	// ErrNoRecorder — движок создан без Recorder.
	ErrNoRecorder = errors.New("recorder is required")

	// ErrRecorder — не удалось записать статус или результат execution.
	ErrRecorder = errors.New("recorder failed")
)

// ExecutionError — ошибка, завершившая весь execution.
//
// NodeID пуст, если execution упал до выполнения узлов
// (невалидное определение или цикл).
type ExecutionError struct {
	ExecutionID uuid.UUID
	NodeID      string
	Err         error
}

// Error реализует интерфейс error.
func (e *ExecutionError) Error() string {
	if e.NodeID != "" {
		return fmt.Sprintf("node %s execution failed: %v", e.NodeID, e.Err)
	}
	return e.Err.Error()
}

// Unwrap возвращает причину.
func (e *ExecutionError) Unwrap() error {
	return e.Err
}
