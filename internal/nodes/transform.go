package nodes

import (
	"context"

	"github.com/shaiso/procflow/internal/engine"
)

const (
	// TypeTransform — тип узла трансформации.
	TypeTransform = "transform"

	configMappings = "mappings"
)

// TransformNode — узел трансформации данных.
//
// Собирает новый объект из outputs предыдущих узлов:
//
//	{"mappings": {"name": "{{fetch.body.user.name}}", "ok": "{{check.conditionMet}}"}}
//
// Output — mappings после подстановки шаблонов.
type TransformNode struct {
	baseNode
}

// NewTransformNode создаёт узел трансформации.
func NewTransformNode(id string, config map[string]any) Node {
	return &TransformNode{baseNode: newBaseNode(id, TypeTransform, config)}
}

// ValidateConfig проверяет, что mappings — объект.
func (n *TransformNode) ValidateConfig() bool {
	_, ok := n.config[configMappings].(map[string]any)
	return ok
}

// Execute возвращает разрезолвленные mappings.
func (n *TransformNode) Execute(_ context.Context, ec *engine.ExecutionContext) (any, error) {
	mappings, ok := n.config[configMappings].(map[string]any)
	if !ok {
		return nil, n.failf("mappings must be an object")
	}

	return ec.ResolveMap(mappings), nil
}
