// Package scheduler создаёт executions для workflows с расписанием.
//
// Каждый тик Scheduler:
//  1. Выбирает активные workflows с наступившим next_run_at
//  2. Создаёт scheduled execution (idempotency key "<workflow_id>_<due_unix>")
//  3. Сдвигает next_run_at на следующее срабатывание cron после now
//  4. Публикует execution.requested
//
// Workflow с расписанием, но без next_run_at, только инициализируется:
// первый запуск произойдёт в ближайшее срабатывание cron.
// Пропущенные за время простоя срабатывания не догоняются.
//
// Тик выполняет только лидер (см. Elector); в cmd/procflow-scheduler
// лидерство держится через pg_try_advisory_lock.
package scheduler
