package mq

import (
	"context"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Action is what a Worker does with a delivery once its handler returns.
type Action int

const (
	// Ack acknowledges the delivery. Unparseable payloads are acked too so they
	// are not redelivered forever.
	Ack Action = iota
	// Requeue negatively acknowledges the delivery and asks the broker to redeliver it.
	Requeue
	// Reject drops the delivery without redelivery.
	Reject
)

func (a Action) String() string {
	switch a {
	case Ack:
		return "ack"
	case Requeue:
		return "requeue"
	case Reject:
		return "reject"
	default:
		return "unknown"
	}
}

// HandlerFunc processes the body of one delivery.
type HandlerFunc func(ctx context.Context, body []byte) Action

// Worker consumes a queue and hands every delivery to a HandlerFunc.
// When the delivery channel closes, because the broker connection dropped, it
// subscribes again after a delay until its context is canceled.
type Worker struct {
	client     ClientInterface
	logger     *slog.Logger
	handle     HandlerFunc
	retryDelay time.Duration
	observe    func(action Action, start time.Time)
}

// WorkerOption configures a Worker.
type WorkerOption func(*Worker)

// WithRetryDelay sets how long the worker waits before subscribing again.
func WithRetryDelay(d time.Duration) WorkerOption {
	return func(w *Worker) {
		if d > 0 {
			w.retryDelay = d
		}
	}
}

// WithObserver registers a callback run after each delivery is settled.
func WithObserver(fn func(action Action, start time.Time)) WorkerOption {
	return func(w *Worker) { w.observe = fn }
}

// NewWorker creates a worker reading from client.
func NewWorker(client ClientInterface, l *slog.Logger, handle HandlerFunc, opts ...WorkerOption) *Worker {
	w := &Worker{
		client:     client,
		logger:     l,
		handle:     handle,
		retryDelay: 2 * time.Second,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run consumes until ctx is canceled. It always returns nil once ctx is done.
func (w *Worker) Run(ctx context.Context) error {
	for {
		deliveries, err := w.client.Consume()
		if err != nil {
			w.logger.Warn("failed to start consuming, retrying", "error", err, "delay", w.retryDelay)
		} else {
			w.logger.Info("consuming")
			w.drain(ctx, deliveries)
		}

		select {
		case <-ctx.Done():
			w.logger.Info("worker stopped")
			return nil
		case <-time.After(w.retryDelay):
		}
	}
}

func (w *Worker) drain(ctx context.Context, deliveries <-chan amqp.Delivery) {
	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-deliveries:
			if !ok {
				w.logger.Warn("deliveries channel closed")
				return
			}
			w.settle(ctx, d)
		}
	}
}

func (w *Worker) settle(ctx context.Context, d amqp.Delivery) {
	start := time.Now()
	action := w.handle(ctx, d.Body)

	var err error
	switch action {
	case Requeue:
		err = d.Nack(false, true)
	case Reject:
		err = d.Reject(false)
	default:
		err = d.Ack(false)
	}
	if err != nil {
		w.logger.Error("failed to settle delivery", "action", action.String(), "error", err)
	}

	if w.observe != nil {
		w.observe(action, start)
	}
}
