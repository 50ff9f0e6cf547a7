// Package telemetry обеспечивает наблюдаемость системы.
//
// Включает:
//   - logging.go — structured logging через slog (JSON или tint)
//   - metrics.go — Prometheus метрики executions и узлов
//   - server.go  — служебный HTTP сервер (/healthz, /metrics)
//
// Все сервисы используют единый формат логирования
// и экспортируют метрики на /metrics endpoint.
package telemetry
