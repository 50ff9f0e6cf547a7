package mq

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange — имя обменника.
type Exchange string

// Queue — имя очереди.
type Queue string

// RoutingKey — ключ маршрутизации.
type RoutingKey string

const (
	ExchangeExecutions Exchange = "procflow.executions"
	ExchangeDLQ        Exchange = "procflow.dlq"
)

const (
	QueueExecutionsRequested Queue = "executions.requested"
	QueueDLQExecutions       Queue = "dlq.executions"
)

const (
	RoutingKeyRequested     RoutingKey = "requested"
	RoutingKeyDLQExecutions RoutingKey = "executions"
)

type queueSpec struct {
	name       Queue
	exchange   Exchange
	routingKey RoutingKey
	args       amqp.Table
}

// queues описывает всю топологию: каждая очередь привязана к одному exchange.
func queues() []queueSpec {
	return []queueSpec{
		{
			name:       QueueExecutionsRequested,
			exchange:   ExchangeExecutions,
			routingKey: RoutingKeyRequested,
			args: amqp.Table{
				"x-dead-letter-exchange":    string(ExchangeDLQ),
				"x-dead-letter-routing-key": string(RoutingKeyDLQExecutions),
			},
		},
		{
			name:       QueueDLQExecutions,
			exchange:   ExchangeDLQ,
			routingKey: RoutingKeyDLQExecutions,
		},
	}
}

// SetupTopology объявляет exchanges, очереди и bindings. Идемпотентна.
func SetupTopology(ctx context.Context, conn *Connection) error {
	return conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		for _, ex := range []Exchange{ExchangeExecutions, ExchangeDLQ} {
			if err := ch.ExchangeDeclare(string(ex), amqp.ExchangeDirect, true, false, false, false, nil); err != nil {
				return fmt.Errorf("declare exchange %s: %w", ex, err)
			}
		}

		for _, q := range queues() {
			if _, err := ch.QueueDeclare(string(q.name), true, false, false, false, q.args); err != nil {
				return fmt.Errorf("declare queue %s: %w", q.name, err)
			}
			if err := ch.QueueBind(string(q.name), string(q.routingKey), string(q.exchange), false, nil); err != nil {
				return fmt.Errorf("bind queue %s to %s: %w", q.name, q.exchange, err)
			}
		}

		return nil
	})
}

// TopologyInfo возвращает описание топологии для логирования при старте.
func TopologyInfo() string {
	return `
  procflow RabbitMQ topology:

    procflow.executions (direct)
    └── executions.requested [routing: requested]
            Consumer: worker
            DLQ: dlq.executions

    procflow.dlq (direct)
    └── dlq.executions [routing: executions]
            Manual processing
`
}
