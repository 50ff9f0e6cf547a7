// Package orchestrator проводит один execution от pending до финального статуса.
//
// WorkflowEngine отвечает за:
//   - Валидацию определения и расчёт порядка выполнения (с кэшем планов)
//   - Последовательное выполнение узлов в топологическом порядке
//   - Передачу outputs между узлами через engine.ExecutionContext
//   - Политику ошибок узла: abort (по умолчанию) или continue
//   - Запись статуса, журнала и результата через Recorder
//
// Движок не решает, КОГДА запускать workflow (это worker и scheduler),
// и не распараллеливает узлы внутри одного execution: узел N+1 может
// ссылаться на output узла N. Один экземпляр WorkflowEngine можно
// безопасно вызывать конкурентно для разных executions.
package orchestrator
