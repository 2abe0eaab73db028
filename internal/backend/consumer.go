package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/SimonCaignart/plant-e/internal/store"
	"github.com/SimonCaignart/plant-e/internal/watering"
	"github.com/SimonCaignart/plant-e/pkg/metrics"
	"github.com/SimonCaignart/plant-e/pkg/mq"
	"github.com/SimonCaignart/plant-e/pkg/plantwire"
)

// ConsumerConfig holds the configuration shared by the queue consumers.
type ConsumerConfig struct {
	Logger  *slog.Logger
	Store   store.Store
	Client  mq.ClientInterface
	Queue   string
	Metrics *metrics.BackendMetrics
}

func (cfg *ConsumerConfig) validate() error {
	if cfg == nil {
		return errors.New("consumer config cannot be nil")
	}

	if cfg.Logger == nil {
		return errors.New("logger cannot be nil")
	}

	if cfg.Store == nil {
		return errors.New("store cannot be nil")
	}

	if cfg.Client == nil {
		return errors.New("mq client cannot be nil")
	}

	if cfg.Queue == "" {
		return errors.New("queue name cannot be empty")
	}

	return nil
}

// consumer runs a queue worker and owns its client.
type consumer struct {
	logger  *slog.Logger
	client  mq.ClientInterface
	queue   string
	metrics *metrics.BackendMetrics
	worker  *mq.Worker
	wg      sync.WaitGroup
	cancel  context.CancelFunc
}

func newConsumer(cfg *ConsumerConfig, component string, handle mq.HandlerFunc) *consumer {
	c := &consumer{
		logger:  cfg.Logger.With("component", component, "queue", cfg.Queue),
		client:  cfg.Client,
		queue:   cfg.Queue,
		metrics: cfg.Metrics,
	}
	c.worker = mq.NewWorker(cfg.Client, c.logger, handle, mq.WithObserver(c.observe))
	return c
}

func (c *consumer) observe(action mq.Action, start time.Time) {
	var err error
	if action != mq.Ack {
		err = fmt.Errorf("delivery settled with %s", action)
	}
	c.metrics.ObserveMessage(c.queue, start, err)
}

// Start begins consuming in the background.
func (c *consumer) Start(ctx context.Context) {
	ctx, c.cancel = context.WithCancel(ctx)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.metrics.ConsumerStarted()
		defer c.metrics.ConsumerStopped()
		_ = c.worker.Run(ctx)
	}()

	c.logger.Info("consumer started")
}

// Stop stops consuming, waits for the delivery in progress and closes the client.
func (c *consumer) Stop() error {
	c.logger.Info("stopping consumer")

	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()

	if err := c.client.Close(); err != nil && !mq.IsClosed(err) {
		return fmt.Errorf("failed to close mq client: %w", err)
	}

	c.logger.Info("consumer stopped")
	return nil
}

// ReadingConsumer appends sensor readings published on the reading queue to plant logs.
type ReadingConsumer struct {
	*consumer
	logs store.SensorLogStore
}

// NewReadingConsumer creates a new ReadingConsumer instance.
func NewReadingConsumer(cfg *ConsumerConfig) (*ReadingConsumer, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	c := &ReadingConsumer{logs: cfg.Store}
	c.consumer = newConsumer(cfg, "reading-consumer", c.Handle)
	return c, nil
}

// Handle processes one encoded SensorReading. Payloads that cannot be decoded,
// readings for unknown plants and readings older than the plant's log are
// dropped; store failures are requeued.
func (c *ReadingConsumer) Handle(ctx context.Context, body []byte) mq.Action {
	var msg plantwire.SensorReading
	if err := msg.Unmarshal(body); err != nil {
		c.logger.Error("failed to unmarshal sensor reading", "error", err)
		c.metrics.ConsumerError(c.queue, "unmarshal_error")
		return mq.Ack
	}

	id, err := c.logs.Append(ctx, msg.PlantID, store.Entry{
		Reading:    ReadingFromWire(&msg),
		ObservedAt: msg.ObservedAt,
	})
	switch {
	case errors.Is(err, store.ErrPlantNotFound):
		c.logger.Warn("reading for unknown plant dropped", "plant_id", msg.PlantID)
		c.metrics.ConsumerError(c.queue, "unknown_plant")
		return mq.Ack
	case errors.Is(err, store.ErrEmptyEntry):
		c.logger.Warn("empty reading dropped", "plant_id", msg.PlantID)
		c.metrics.ConsumerError(c.queue, "empty_reading")
		return mq.Ack
	case errors.Is(err, store.ErrStaleEntry):
		c.logger.Warn("stale reading dropped",
			"plant_id", msg.PlantID,
			"observed_at", msg.ObservedAt)
		c.metrics.ConsumerError(c.queue, "stale_reading")
		return mq.Ack
	case err != nil:
		c.logger.Error("failed to save sensor reading", "plant_id", msg.PlantID, "error", err)
		c.metrics.ConsumerError(c.queue, "store_error")
		return mq.Requeue
	}

	c.metrics.ReadingIngested("amqp")
	c.logger.Debug("sensor reading saved", "plant_id", msg.PlantID, "log_id", id)
	return mq.Ack
}

// ReadingFromWire converts a wire reading into the engine's representation.
func ReadingFromWire(msg *plantwire.SensorReading) watering.Reading {
	return watering.Reading{
		SoilMoisture: msg.SoilMoisture,
		Luminosity:   msg.Luminosity,
		Humidity:     msg.Humidity,
		Temperature:  msg.Temperature,
	}
}

// PlantConsumer creates or refreshes plants announced on the plant queue.
type PlantConsumer struct {
	*consumer
	plants store.PlantStore
}

// NewPlantConsumer creates a new PlantConsumer instance.
func NewPlantConsumer(cfg *ConsumerConfig) (*PlantConsumer, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	c := &PlantConsumer{plants: cfg.Store}
	c.consumer = newConsumer(cfg, "plant-consumer", c.Handle)
	return c, nil
}

// Handle processes one encoded PlantRegistration. The watering policy of a
// plant that already exists is never touched.
func (c *PlantConsumer) Handle(ctx context.Context, body []byte) mq.Action {
	var msg plantwire.PlantRegistration
	if err := msg.Unmarshal(body); err != nil {
		c.logger.Error("failed to unmarshal plant registration", "error", err)
		c.metrics.ConsumerError(c.queue, "unmarshal_error")
		return mq.Ack
	}

	name := msg.Name
	if name == "" {
		name = msg.CommonName
	}

	plant := &store.Plant{
		ID:          msg.PlantID,
		Name:        name,
		CommonName:  msg.CommonName,
		LatinName:   msg.LatinName,
		Description: msg.Description,
		Image:       msg.Image,
	}
	if err := c.plants.Upsert(ctx, plant); err != nil {
		c.logger.Error("failed to save plant", "plant_id", msg.PlantID, "error", err)
		c.metrics.ConsumerError(c.queue, "store_error")
		return mq.Requeue
	}

	c.logger.Info("plant registered", "plant_id", msg.PlantID, "latin_name", msg.LatinName)
	return mq.Ack
}
