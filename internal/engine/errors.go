package engine

import (
	"errors"
	"fmt"
)

// Ошибки валидации WorkflowDefinition.
var (
	// ErrNilDefinition — определение отсутствует.
	ErrNilDefinition = errors.New("workflow definition is nil")

	// ErrMissingCollection — в документе нет nodes или edges.
	ErrMissingCollection = errors.New("workflow definition must have nodes and edges")

	// ErrEmptyNodes — workflow не содержит узлов.
	ErrEmptyNodes = errors.New("workflow must have at least one node")

	// ErrEmptyNodeID — узел не имеет ID.
	ErrEmptyNodeID = errors.New("node has empty id")

	// ErrEmptyNodeType — узел не имеет типа.
	ErrEmptyNodeType = errors.New("node has empty type")

	// ErrDuplicateNodeID — несколько узлов с одинаковым ID.
	ErrDuplicateNodeID = errors.New("duplicate node id")

	// ErrInvalidErrorPolicy — неизвестное значение on_error.
	ErrInvalidErrorPolicy = errors.New("invalid on_error policy")

	// ErrUnknownEdgeNode — ребро ссылается на несуществующий узел.
	ErrUnknownEdgeNode = errors.New("edge references unknown node")

	// ErrCyclicDependency — обнаружен цикл в графе.
	ErrCyclicDependency = errors.New("cyclic dependency detected")
)

// Ошибки разбора документа.
var (
	// ErrInvalidDocument — документ не соответствует схеме.
	ErrInvalidDocument = errors.New("invalid workflow document")
)

// ValidationError — ошибка валидации с контекстом.
//
// Index — позиция узла или ребра (-1, если не применимо).
// Field — путь к полю: "nodes[2].type", "edges[0].to".
type ValidationError struct {
	Index   int    // индекс узла/ребра
	Field   string // поле, вызвавшее ошибку
	NodeID  string // ID узла, если известен
	Message string // описание ошибки
	Err     error  // базовая ошибка
}

// Error реализует интерфейс error.
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return e.Field + ": " + e.Message
	}
	return e.Message
}

// Unwrap возвращает базовую ошибку.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidationError создаёт новую ошибку валидации.
func NewValidationError(index int, field, nodeID, message string, err error) *ValidationError {
	return &ValidationError{
		Index:   index,
		Field:   field,
		NodeID:  nodeID,
		Message: message,
		Err:     err,
	}
}

func nodeField(i int, name string) string {
	return fmt.Sprintf("nodes[%d].%s", i, name)
}

func edgeField(i int, name string) string {
	return fmt.Sprintf("edges[%d].%s", i, name)
}
