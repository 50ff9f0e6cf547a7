// Package mq — транспорт запросов на выполнение через RabbitMQ.
//
// Структура:
//   - connection.go — соединение с автоматическим reconnect
//   - topology.go   — exchanges, queues, bindings
//   - publisher.go  — публикация execution.requested
//   - consumer.go   — потребление с ручным ack/nack и ограниченной конкурентностью
//
// Сообщения:
//   - execution.requested — execution создан и ждёт worker'а
//
// Exchanges:
//   - procflow.executions — запросы на выполнение
//   - procflow.dlq        — отклонённые сообщения
package mq
