package nodes

import "errors"

// Ошибки узлов.
var (
	// ErrUnknownNodeType — тип узла не зарегистрирован в фабрике.
	ErrUnknownNodeType = errors.New("unknown node type")

	// ErrInvalidConfig — невалидная конфигурация узла.
	ErrInvalidConfig = errors.New("invalid node config")

	// ErrUnknownOperator — неизвестный оператор conditional узла.
	ErrUnknownOperator = errors.New("unknown operator")

	// ErrRequestFailed — HTTP запрос не выполнен (транспорт, таймаут).
	ErrRequestFailed = errors.New("http request failed")

	// ErrNodeCancelled — выполнение узла прервано отменой контекста.
	ErrNodeCancelled = errors.New("node execution cancelled")

	// ErrNodePanic — узел запаниковал во время выполнения.
	ErrNodePanic = errors.New("node panicked")
)

// NodeExecutionError — ошибка выполнения одного узла.
//
// Может быть проглочена политикой on_error: continue,
// иначе оркестратор поднимает её до ExecutionError.
type NodeExecutionError struct {
	NodeID   string // ID узла
	NodeType string // тип узла
	Err      error  // причина
}

// Error реализует интерфейс error.
func (e *NodeExecutionError) Error() string {
	if e.Err == nil {
		return "node execution failed"
	}
	return e.Err.Error()
}

// Unwrap возвращает причину.
func (e *NodeExecutionError) Unwrap() error {
	return e.Err
}

// NewNodeExecutionError создаёт ошибку выполнения узла.
func NewNodeExecutionError(nodeID, nodeType string, err error) *NodeExecutionError {
	return &NodeExecutionError{
		NodeID:   nodeID,
		NodeType: nodeType,
		Err:      err,
	}
}
