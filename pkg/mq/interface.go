package mq

import (
	"context"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher pushes messages onto a queue.
type Publisher interface {
	// Push publishes data and waits for the broker confirmation, retrying with backoff.
	Push(ctx context.Context, data []byte) error

	// UnsafePush publishes data without waiting for a confirmation.
	UnsafePush(ctx context.Context, data []byte) error
}

// ClientInterface is the full queue client used by producers and consumers.
// It lets tests substitute pkg/mq/mock for a live broker.
type ClientInterface interface {
	Publisher

	// Consume returns the delivery channel of the queue. Every delivery must be
	// acknowledged with Ack or Nack.
	Consume() (<-chan amqp.Delivery, error)

	// Close shuts down the channel and connection.
	Close() error
}

var _ ClientInterface = (*Client)(nil)
