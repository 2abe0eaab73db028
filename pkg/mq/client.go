// Package mq provides a RabbitMQ client with automatic reconnection and error handling.
package mq

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/SimonCaignart/plant-e/pkg/metrics"
)

// ContentTypeProtobuf is the content type of plantwire encoded messages.
const ContentTypeProtobuf = "application/x-protobuf"

// Client is a RabbitMQ client bound to a single queue. It handles connection
// management and automatic reconnection, and provides methods for publishing
// and consuming messages.
type Client struct {
	m               *sync.Mutex
	logger          *slog.Logger
	connection      *amqp.Connection
	channel         *amqp.Channel
	done            chan bool
	closeOnce       sync.Once
	notifyConnClose chan *amqp.Error
	notifyChanClose chan *amqp.Error
	notifyConfirm   chan amqp.Confirmation
	queueName       string
	isReady         bool
	opts            options
}

const (
	// When reconnecting to the server after connection failure.
	reconnectDelay = 5 * time.Second

	// When setting up the channel after a channel exception.
	reInitDelay = 2 * time.Second

	// Push retries back off exponentially from initialBackoff up to maxBackoff.
	initialBackoff    = 100 * time.Millisecond
	maxBackoff        = 10 * time.Second
	backoffMultiplier = 2
	maxRetryAttempts  = 5
)

var (
	errNotConnected       = errors.New("not connected to a server")
	errAlreadyClosed      = errors.New("already closed: not connected to the server")
	errShutdown           = errors.New("client is shutting down")
	errMaxRetriesExceeded = errors.New("maximum retry attempts exceeded")
)

// IsNotConnected reports whether err means the client had no usable channel.
func IsNotConnected(err error) bool {
	return errors.Is(err, errNotConnected)
}

// IsClosed reports whether err means Close found no open connection.
func IsClosed(err error) bool {
	return errors.Is(err, errAlreadyClosed)
}

type options struct {
	durable     bool
	prefetch    int
	contentType string
	metrics     *metrics.MQMetrics
}

// Option configures a Client.
type Option func(*options)

// WithDurable declares the queue as durable and publishes persistent messages,
// so queued pump commands survive a broker restart.
func WithDurable() Option {
	return func(o *options) { o.durable = true }
}

// WithPrefetch sets how many unacknowledged deliveries a consumer may hold.
func WithPrefetch(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.prefetch = n
		}
	}
}

// WithContentType sets the content type of published messages.
func WithContentType(ct string) Option {
	return func(o *options) { o.contentType = ct }
}

// WithMetrics attaches a metrics collector to the client.
func WithMetrics(m *metrics.MQMetrics) Option {
	return func(o *options) { o.metrics = m }
}

// New creates a new client for queueName and automatically attempts to
// connect to the server at addr.
func New(queueName, addr string, l *slog.Logger, opts ...Option) *Client {
	o := options{
		prefetch:    1,
		contentType: ContentTypeProtobuf,
	}
	for _, opt := range opts {
		opt(&o)
	}

	client := Client{
		m:         &sync.Mutex{},
		logger:    l.With("queue", queueName),
		queueName: queueName,
		done:      make(chan bool),
		opts:      o,
	}
	go client.handleReconnect(addr)
	return &client
}

// Ready reports whether the client currently holds an initialized channel.
func (client *Client) Ready() bool {
	client.m.Lock()
	defer client.m.Unlock()
	return client.isReady
}

// WaitReady blocks until the client is connected, ctx is done, or the client is closed.
func (client *Client) WaitReady(ctx context.Context) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		if client.Ready() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-client.done:
			return errShutdown
		case <-ticker.C:
		}
	}
}

func (client *Client) setReady(ready bool) {
	client.m.Lock()
	client.isReady = ready
	client.m.Unlock()
}

// handleReconnect will wait for a connection error on
// notifyConnClose, and then continuously attempt to reconnect.
func (client *Client) handleReconnect(addr string) {
	for {
		client.setReady(false)
		client.logger.Info("attempting to connect")

		if client.opts.metrics != nil {
			client.opts.metrics.ReconnectAttempts.Inc()
		}

		conn, err := client.connect(addr)
		if err != nil {
			client.logger.Error("failed to connect, retrying", "error", err)

			select {
			case <-client.done:
				return
			case <-time.After(reconnectDelay):
			}
			continue
		}

		if done := client.handleReInit(conn); done {
			break
		}
	}
}

// connect will create a new AMQP connection.
func (client *Client) connect(addr string) (*amqp.Connection, error) {
	conn, err := amqp.Dial(addr)
	if err != nil {
		client.setConnectionStatus(0)
		return nil, err
	}

	client.changeConnection(conn)
	client.logger.Info("connected")
	client.setConnectionStatus(1)

	return conn, nil
}

func (client *Client) setConnectionStatus(v float64) {
	if client.opts.metrics != nil {
		client.opts.metrics.ConnectionStatus.Set(v)
	}
}

// handleReInit will wait for a channel error
// and then continuously attempt to re-initialize both channels.
func (client *Client) handleReInit(conn *amqp.Connection) bool {
	for {
		client.setReady(false)

		err := client.init(conn)
		if err != nil {
			client.logger.Error("failed to initialize channel, retrying", "error", err)

			select {
			case <-client.done:
				return true
			case <-client.notifyConnClose:
				client.logger.Info("connection closed, reconnecting")
				return false
			case <-time.After(reInitDelay):
			}
			continue
		}

		select {
		case <-client.done:
			return true
		case <-client.notifyConnClose:
			client.logger.Info("connection closed, reconnecting")
			return false
		case <-client.notifyChanClose:
			client.logger.Info("channel closed, re-running init")
		}
	}
}

// init will initialize channel & declare queue.
func (client *Client) init(conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return err
	}

	if err := ch.Confirm(false); err != nil {
		return err
	}

	_, err = ch.QueueDeclare(
		client.queueName,
		client.opts.durable,
		false, // Delete when unused
		false, // Exclusive
		false, // No-wait
		nil,   // Arguments
	)
	if err != nil {
		return err
	}

	client.m.Lock()
	client.changeChannel(ch)
	client.isReady = true
	client.m.Unlock()
	client.logger.Info("client init done", "durable", client.opts.durable)

	return nil
}

// changeConnection takes a new connection to the queue,
// and updates the close listener to reflect this.
func (client *Client) changeConnection(connection *amqp.Connection) {
	client.connection = connection
	client.notifyConnClose = make(chan *amqp.Error, 1)
	client.connection.NotifyClose(client.notifyConnClose)
}

// changeChannel takes a new channel to the queue,
// and updates the channel listeners to reflect this.
func (client *Client) changeChannel(channel *amqp.Channel) {
	client.channel = channel
	client.notifyChanClose = make(chan *amqp.Error, 1)
	client.notifyConfirm = make(chan amqp.Confirmation, 1)
	client.channel.NotifyClose(client.notifyChanClose)
	client.channel.NotifyPublish(client.notifyConfirm)
}

// backoff tracks the retry state of a single Push.
type backoff struct {
	delay   time.Duration
	retries int
}

// wait sleeps for the current delay, then grows it. It fails once the retry
// budget is spent, when ctx is done, or when the client shuts down.
func (b *backoff) wait(ctx context.Context, done <-chan bool) error {
	if b.retries >= maxRetryAttempts {
		return errMaxRetriesExceeded
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return errShutdown
	case <-time.After(b.delay):
	}

	b.delay *= backoffMultiplier
	if b.delay > maxBackoff {
		b.delay = maxBackoff
	}
	b.retries++
	return nil
}

// Push will push data onto the queue, and wait for a confirmation.
// While the client is disconnected, or the push is rejected, it retries with
// exponential backoff and gives up after maxRetryAttempts.
func (client *Client) Push(ctx context.Context, data []byte) error {
	if client.opts.metrics != nil {
		timer := prometheus.NewTimer(client.opts.metrics.PushDuration.WithLabelValues(client.queueName))
		defer timer.ObserveDuration()
	}

	b := &backoff{delay: initialBackoff}

	for {
		err := client.pushOnce(ctx, data)
		if err == nil {
			if client.opts.metrics != nil {
				client.opts.metrics.MessagesPushed.WithLabelValues(client.queueName).Inc()
			}
			client.logger.Debug("push confirmed", "retry_count", b.retries)
			return nil
		}
		if ctx.Err() != nil {
			client.pushFailed("context_canceled")
			return ctx.Err()
		}

		client.logger.Warn("push failed, retrying with backoff",
			"error", err,
			"backoff", b.delay,
			"retry_count", b.retries)

		if werr := b.wait(ctx, client.done); werr != nil {
			if errors.Is(werr, errMaxRetriesExceeded) {
				client.logger.Error("maximum retry attempts exceeded",
					"retry_count", b.retries,
					"last_error", err)
				client.pushFailed("max_retries_exceeded")
			}
			return werr
		}
		if client.opts.metrics != nil {
			client.opts.metrics.PushRetries.WithLabelValues(client.queueName).Inc()
		}
	}
}

var errNacked = errors.New("publish not acknowledged by broker")

// pushOnce publishes data and waits for the broker confirmation.
func (client *Client) pushOnce(ctx context.Context, data []byte) error {
	if err := client.UnsafePush(ctx, data); err != nil {
		return err
	}

	client.m.Lock()
	confirms := client.notifyConfirm
	client.m.Unlock()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case confirm := <-confirms:
		if !confirm.Ack {
			return errNacked
		}
		return nil
	}
}

func (client *Client) pushFailed(reason string) {
	if client.opts.metrics != nil {
		client.opts.metrics.PushFailures.WithLabelValues(client.queueName, reason).Inc()
	}
}

// UnsafePush will push to the queue without checking for
// confirmation. It returns an error if it fails to connect.
// No guarantees are provided for whether the server will
// receive the message.
func (client *Client) UnsafePush(ctx context.Context, data []byte) error {
	client.m.Lock()
	if !client.isReady {
		client.m.Unlock()
		return errNotConnected
	}
	ch := client.channel
	client.m.Unlock()

	mode := amqp.Transient
	if client.opts.durable {
		mode = amqp.Persistent
	}

	return ch.PublishWithContext(
		ctx,
		"",               // Exchange
		client.queueName, // Routing key
		false,            // Mandatory
		false,            // Immediate
		amqp.Publishing{
			ContentType:  client.opts.contentType,
			DeliveryMode: mode,
			Timestamp:    time.Now().UTC(),
			Body:         data,
		},
	)
}

// Consume will continuously put queue items on the channel.
// It is required to call delivery.Ack when it has been
// successfully processed, or delivery.Nack when it fails.
// Ignoring this will cause data to build up on the server.
func (client *Client) Consume() (<-chan amqp.Delivery, error) {
	client.m.Lock()
	if !client.isReady {
		client.m.Unlock()
		return nil, errNotConnected
	}
	ch := client.channel
	client.m.Unlock()

	if err := ch.Qos(
		client.opts.prefetch,
		0,     // prefetchSize
		false, // global
	); err != nil {
		return nil, err
	}

	return ch.Consume(
		client.queueName,
		"",    // Consumer
		false, // Auto-Ack
		false, // Exclusive
		false, // No-local
		false, // No-Wait
		nil,   // Args
	)
}

// Close will cleanly shut down the channel and connection.
func (client *Client) Close() error {
	client.m.Lock()
	// isReady is read and written from the reconnect loop too, so the lock is
	// held until shutdown completes.
	defer client.m.Unlock()

	client.closeOnce.Do(func() { close(client.done) })

	if !client.isReady {
		return errAlreadyClosed
	}
	if err := client.channel.Close(); err != nil {
		return err
	}
	if err := client.connection.Close(); err != nil {
		return err
	}

	client.isReady = false
	client.setConnectionStatus(0)

	return nil
}
