// Package worker доставляет executions до WorkflowEngine.
//
// Worker — stateless процесс, который:
//
//   - Получает execution.requested из RabbitMQ (event-driven)
//   - Периодически забирает pending executions из БД (polling fallback)
//   - Захватывает execution (pending → running), чтобы его выполнил ровно один воркер
//   - Загружает определение workflow и вызывает WorkflowEngine
//
// Ошибки определения и узлов движок записывает сам, поэтому такое сообщение
// подтверждается (ack). Инфраструктурные ошибки до захвата execution
// возвращают сообщение в очередь. Повторных запусков упавших executions
// воркер не делает.
//
// Workers масштабируются горизонтально: несколько экземпляров читают
// одну очередь executions.requested.
//
//	w := worker.New(worker.Config{
//	    Executions: repo.NewExecutionRepo(pool),
//	    Workflows:  repo.NewWorkflowRepo(pool),
//	    Recorder:   repo.NewRecorder(executions, logs),
//	    Engine:     eng,
//	    Conn:       mqConn,
//	    Logger:     logger,
//	})
//	w.Start(ctx)
//	defer w.Stop()
package worker
