// Package engine содержит структурную часть движка workflow.
//
// Включает:
//   - validator.go — проверка WorkflowDefinition и порядок выполнения (Kahn)
//   - resolver.go  — подстановка шаблонов {{node_id.field}} / {{var.path}}
//   - context.go   — ExecutionContext: outputs узлов и глобальные переменные
//   - parser.go    — разбор определения из JSON/YAML со схемой
//
// Engine не выполняет узлы сам — этим занимается orchestrator.WorkflowEngine.
// Здесь только понимание структуры графа и обмен данными между узлами.
package engine
