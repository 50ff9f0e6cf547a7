// Package cli реализует инструмент командной строки procflow.
//
// Команды без внешних зависимостей:
//   - validate FILE — проверка определения (JSON/YAML): схема, рёбра, циклы
//   - order FILE    — порядок выполнения узлов
//   - run FILE      — локальный запуск на хранилище в памяти
//
// Команды, работающие с Postgres и RabbitMQ (адреса из internal/config):
//   - migrate
//   - workflow create|show
//   - enqueue WORKFLOW_ID — manual execution + execution.requested
//   - logs EXECUTION_ID   — статус и журнал execution
//
// Данные выводятся в stdout (таблица или --json), сообщения и логи
// движка в stderr. Это позволяет использовать pipe:
// procflow run flow.yaml --json | jq .execution.result_data
package cli
