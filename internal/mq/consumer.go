package mq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"
	"golang.org/x/sync/errgroup"
)

// Handler обрабатывает одно сообщение.
//
//   - nil — ack
//   - ошибка с ErrReject — nack без requeue (DLQ)
//   - любая другая ошибка — nack с requeue
type Handler func(ctx context.Context, msg *Message) error

// Consumer читает очередь и вызывает Handler не более чем в Concurrency горутинах.
type Consumer struct {
	conn        *Connection
	logger      *slog.Logger
	queue       Queue
	handler     Handler
	concurrency int
}

// ConsumerConfig — конфигурация consumer.
type ConsumerConfig struct {
	Queue   Queue
	Handler Handler

	// Concurrency — одновременно обрабатываемые сообщения (и prefetch).
	Concurrency int
}

// NewConsumer создаёт Consumer.
func NewConsumer(conn *Connection, logger *slog.Logger, cfg ConsumerConfig) *Consumer {
	return &Consumer{
		conn:        conn,
		logger:      logger.With("queue", string(cfg.Queue)),
		queue:       cfg.Queue,
		handler:     cfg.Handler,
		concurrency: max(cfg.Concurrency, 1),
	}
}

// Run потребляет очередь до отмены ctx.
// При разрыве соединения ждёт переподключения и подписывается заново.
// Перед возвратом дожидается обработчиков, которые уже выполняются.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		deliveries, err := c.subscribe()
		if err != nil {
			c.logger.Error("failed to subscribe", "error", err)
		} else {
			c.logger.Info("consumer started", "concurrency", c.concurrency)
			c.drain(ctx, deliveries)
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}

		c.logger.Warn("deliveries interrupted, waiting for reconnect")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.conn.ReconnectNotify():
		}
	}
}

func (c *Consumer) subscribe() (<-chan amqp.Delivery, error) {
	ch := c.conn.Channel()
	if ch == nil {
		return nil, ErrNoChannel
	}

	if err := ch.Qos(c.concurrency, 0, false); err != nil {
		return nil, fmt.Errorf("set qos: %w", err)
	}

	deliveries, err := ch.Consume(string(c.queue), "", false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("consume %s: %w", c.queue, err)
	}
	return deliveries, nil
}

// drain раздаёт доставки обработчикам, пока канал открыт и ctx жив.
func (c *Consumer) drain(ctx context.Context, deliveries <-chan amqp.Delivery) {
	var g errgroup.Group
	g.SetLimit(c.concurrency)
	defer func() { _ = g.Wait() }()

	for {
		select {
		case <-ctx.Done():
			return
		case raw, ok := <-deliveries:
			if !ok {
				return
			}
			g.Go(func() error {
				c.handle(ctx, raw)
				return nil
			})
		}
	}
}

func (c *Consumer) handle(ctx context.Context, raw amqp.Delivery) {
	msg, err := decodeMessage(raw.Body)
	if err != nil {
		c.logger.Error("malformed message", "error", err, "body", string(raw.Body))
		_ = raw.Nack(false, false)
		return
	}

	logger := c.logger.With("message_id", msg.ID, "type", msg.Type)
	logger.Debug("received message")

	err = c.handler(ctx, msg)
	switch disposition(err) {
	case ack:
		_ = raw.Ack(false)
	case reject:
		logger.Error("message rejected", "error", err)
		_ = raw.Nack(false, false)
	default:
		logger.Warn("handler failed, requeueing", "error", err)
		_ = raw.Nack(false, true)
	}
}

type outcome int

const (
	ack outcome = iota
	requeue
	reject
)

func disposition(err error) outcome {
	switch {
	case err == nil:
		return ack
	case errors.Is(err, ErrReject):
		return reject
	default:
		return requeue
	}
}

func decodeMessage(body []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(body, &msg); err != nil {
		return nil, fmt.Errorf("unmarshal message: %w", err)
	}
	if msg.Type == "" {
		return nil, errors.New("message type is empty")
	}
	return &msg, nil
}
