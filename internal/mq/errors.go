package mq

import "errors"

var (
	// ErrNoChannel — соединение ещё не установлено или переподключается.
	ErrNoChannel = errors.New("no amqp channel available")

	// ErrReject — обработчик отказывается от сообщения навсегда.
	// Сообщение уходит в DLQ без повторной доставки.
	ErrReject = errors.New("message rejected")
)
