package simulator

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/SimonCaignart/plant-e/pkg/metrics"
	"github.com/SimonCaignart/plant-e/pkg/mq"
	"github.com/SimonCaignart/plant-e/pkg/plantwire"
)

// ServerConfig holds the configuration for the simulator server.
type ServerConfig struct {
	// Logger is the structured logger
	Logger *slog.Logger
	// RabbitMQURL is the connection string for RabbitMQ
	RabbitMQURL string
	// ReadingQueue receives sensor readings
	ReadingQueue string
	// PlantQueue receives plant registrations
	PlantQueue string
	// CommandQueue is consumed for watering commands. Empty disables it.
	CommandQueue string
	// Interval is the time between readings of one producer
	Interval time.Duration
	// ProducerCount is the number of concurrent producers
	ProducerCount int
	// PlantsPerProducer fixes the number of plants per producer. Zero picks 1 to 5 at random.
	PlantsPerProducer int
	// Metrics is the optional Prometheus metrics collector
	Metrics *metrics.SimulatorMetrics
	// MQMetrics is the optional Prometheus metrics collector for MQ operations
	MQMetrics *metrics.MQMetrics
	// Dial opens a queue client. Defaults to a RabbitMQ client on RabbitMQURL.
	Dial func(queue string, logger *slog.Logger) mq.ClientInterface
}

// Server manages multiple producer instances.
type Server struct {
	logger        *slog.Logger
	config        *ServerConfig
	producers     []*Producer
	clients       []mq.ClientInterface
	commandClient mq.ClientInterface
	wg            sync.WaitGroup
	metrics       *metrics.SimulatorMetrics
	closeOnce     sync.Once
}

var (
	errConfigRequired       = errors.New("config cannot be nil")
	errInvalidProducerCount = errors.New("producer count must be greater than 0")
	errInvalidInterval      = errors.New("interval must be greater than 0")
	errLoggerRequired       = errors.New("logger is required")
	errQueueRequired        = errors.New("reading and plant queues are required")
)

// NewServer creates a new simulator server with the given configuration.
func NewServer(cfg *ServerConfig) (*Server, error) {
	if cfg == nil {
		return nil, errConfigRequired
	}

	if cfg.ProducerCount <= 0 {
		return nil, errInvalidProducerCount
	}

	if cfg.Interval <= 0 {
		return nil, errInvalidInterval
	}

	if cfg.Logger == nil {
		return nil, errLoggerRequired
	}

	if cfg.ReadingQueue == "" || cfg.PlantQueue == "" {
		return nil, errQueueRequired
	}

	if cfg.Dial == nil {
		cfg.Dial = func(queue string, l *slog.Logger) mq.ClientInterface {
			opts := []mq.Option{mq.WithDurable()}
			if cfg.MQMetrics != nil {
				opts = append(opts, mq.WithMetrics(cfg.MQMetrics))
			}
			return mq.New(queue, cfg.RabbitMQURL, l, opts...)
		}
	}

	s := &Server{
		config:    cfg,
		producers: make([]*Producer, 0, cfg.ProducerCount),
		clients:   make([]mq.ClientInterface, 0, 2*cfg.ProducerCount),
		logger:    cfg.Logger,
		metrics:   cfg.Metrics,
	}

	for i := 0; i < cfg.ProducerCount; i++ {
		producerLogger := cfg.Logger.With(slog.Int("producer_id", i))

		readingClient := cfg.Dial(cfg.ReadingQueue, producerLogger.With(slog.String("component", "reading-mq-client")))
		plantClient := cfg.Dial(cfg.PlantQueue, producerLogger.With(slog.String("component", "plant-mq-client")))

		var producer *Producer
		if cfg.PlantsPerProducer > 0 {
			producer = NewProducerWithPlants(readingClient, plantClient, producerLogger, cfg.PlantsPerProducer)
		} else {
			producer = NewProducer(readingClient, plantClient, producerLogger)
		}
		producer.SetMetrics(cfg.Metrics)

		s.clients = append(s.clients, readingClient, plantClient)
		s.producers = append(s.producers, producer)

		s.logger.Info("created producer instance",
			"producer_id", i,
			"reading_queue", cfg.ReadingQueue,
			"plant_queue", cfg.PlantQueue,
			"plant_count", len(producer.Plants),
		)
	}

	if cfg.CommandQueue != "" {
		s.commandClient = cfg.Dial(cfg.CommandQueue, cfg.Logger.With(slog.String("component", "command-mq-client")))
		s.clients = append(s.clients, s.commandClient)
	}

	return s, nil
}

// Producers returns the producers managed by the server.
func (s *Server) Producers() []*Producer {
	return s.producers
}

// Run starts all producers and blocks until shutdown signal is received.
func (s *Server) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	for i, producer := range s.producers {
		s.wg.Add(1)
		go s.runProducer(ctx, i, producer)
	}

	if s.commandClient != nil {
		worker := mq.NewWorker(s.commandClient, s.logger.With(slog.String("component", "command-worker")), s.HandleCommand)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			_ = worker.Run(ctx)
		}()
	}

	s.logger.Info("simulator started",
		"producer_count", len(s.producers),
		"interval", s.config.Interval,
		"commands", s.commandClient != nil,
	)

	select {
	case sig := <-sigChan:
		s.logger.Info("received shutdown signal", "signal", sig.String())
		cancel()
	case <-ctx.Done():
		s.logger.Info("context canceled, shutting down")
	}

	s.logger.Info("waiting for producers to shut down...")
	s.wg.Wait()

	s.logger.Info("closing MQ clients...")
	s.closeClients()

	s.logger.Info("simulator stopped")
	return nil
}

// runProducer registers a producer's plants, then publishes readings at the configured interval.
func (s *Server) runProducer(ctx context.Context, id int, producer *Producer) {
	defer s.wg.Done()

	producerLogger := s.logger.With(slog.Int("producer_id", id))

	if err := producer.Register(ctx); err != nil {
		producerLogger.Error("failed to register plants", "error", err)
	}

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	producerLogger.Info("producer started")

	for {
		select {
		case <-ctx.Done():
			producerLogger.Info("producer shutting down")
			return

		case <-ticker.C:
			if err := producer.RandomReading(ctx); err != nil {
				producerLogger.Error("failed to publish reading", "error", err)
				continue
			}
			producerLogger.Debug("reading published")
		}
	}
}

// HandleCommand applies a watering command to the simulated plant it targets.
// Commands for plants owned by no producer are acknowledged and dropped.
func (s *Server) HandleCommand(_ context.Context, body []byte) mq.Action {
	var cmd plantwire.WateringCommand
	if err := cmd.Unmarshal(body); err != nil {
		s.logger.Error("failed to unmarshal watering command", "error", err)
		s.commandReceived("invalid")
		return mq.Ack
	}

	for _, producer := range s.producers {
		if producer.Water(&cmd) {
			s.commandReceived("applied")
			return mq.Ack
		}
	}

	s.logger.Warn("watering command for unknown plant", "plant_id", cmd.PlantID, "command_id", cmd.CommandID)
	s.commandReceived("unknown_plant")
	return mq.Ack
}

func (s *Server) commandReceived(status string) {
	if s.metrics != nil {
		s.metrics.CommandsReceived.WithLabelValues(status).Inc()
	}
}

// closeClients closes all MQ clients gracefully.
func (s *Server) closeClients() {
	s.closeOnce.Do(func() {
		var wg sync.WaitGroup
		for i, client := range s.clients {
			wg.Add(1)
			go func(id int, c mq.ClientInterface) {
				defer wg.Done()

				if err := c.Close(); err != nil {
					s.logger.Error("failed to close MQ client", "client_id", id, "error", err)
					return
				}
				s.logger.Debug("MQ client closed", "client_id", id)
			}(i, client)
		}
		wg.Wait()
	})
}

// Shutdown closes all MQ clients.
// This is an alternative to sending OS signals.
func (s *Server) Shutdown() error {
	s.logger.Info("shutdown requested")
	s.closeClients()
	return nil
}
