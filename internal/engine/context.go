package engine

import "maps"

// ExecutionContext — данные одного execution.
//
// Хранит outputs выполненных узлов и глобальные переменные.
// Принадлежит ровно одному execution, поэтому блокировок нет:
// конкурентная запись из нескольких горутин не поддерживается.
type ExecutionContext struct {
	nodeOutputs map[string]any
	globalVars  map[string]any
}

// NewExecutionContext создаёт контекст с начальными глобальными переменными.
// Переданная map копируется.
func NewExecutionContext(globals map[string]any) *ExecutionContext {
	vars := make(map[string]any, len(globals))
	maps.Copy(vars, globals)

	return &ExecutionContext{
		nodeOutputs: make(map[string]any),
		globalVars:  vars,
	}
}

// SetNodeOutput сохраняет результат узла.
func (c *ExecutionContext) SetNodeOutput(nodeID string, value any) {
	c.nodeOutputs[nodeID] = value
}

// NodeOutput возвращает результат узла. ok=false — узел ещё не выполнялся.
func (c *ExecutionContext) NodeOutput(nodeID string) (any, bool) {
	v, ok := c.nodeOutputs[nodeID]
	return v, ok
}

// SetGlobalVar устанавливает глобальную переменную.
func (c *ExecutionContext) SetGlobalVar(name string, value any) {
	c.globalVars[name] = value
}

// GlobalVar возвращает глобальную переменную.
func (c *ExecutionContext) GlobalVar(name string) (any, bool) {
	v, ok := c.globalVars[name]
	return v, ok
}

// Resolve подставляет шаблоны в строку, используя этот контекст.
func (c *ExecutionContext) Resolve(tmpl string) string {
	return Resolve(tmpl, c)
}

// ResolveValue разрешает шаблоны в произвольном значении.
func (c *ExecutionContext) ResolveValue(value any) any {
	return ResolveValue(value, c)
}

// ResolveMap возвращает копию map с разрешёнными шаблонами.
func (c *ExecutionContext) ResolveMap(m map[string]any) map[string]any {
	return ResolveMap(m, c)
}

// Snapshot возвращает копию outputs всех узлов — итог execution.
func (c *ExecutionContext) Snapshot() map[string]any {
	snapshot := make(map[string]any, len(c.nodeOutputs))
	maps.Copy(snapshot, c.nodeOutputs)
	return snapshot
}
