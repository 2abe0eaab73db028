// Package backend wires the plant-e backend: storage, queue consumers, the
// watering scheduler, the gRPC API and the operations HTTP server.
package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"google.golang.org/grpc"
	"gorm.io/gorm"

	"github.com/SimonCaignart/plant-e/internal/actuator"
	"github.com/SimonCaignart/plant-e/internal/ingest"
	"github.com/SimonCaignart/plant-e/internal/pumps"
	"github.com/SimonCaignart/plant-e/internal/scheduler"
	"github.com/SimonCaignart/plant-e/internal/store"
	"github.com/SimonCaignart/plant-e/pkg/metrics"
	"github.com/SimonCaignart/plant-e/pkg/mq"
	"github.com/SimonCaignart/plant-e/pkg/plantapi"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

// Server represents the backend server.
type Server struct {
	logger         *slog.Logger
	config         *ServerConfig
	db             *gorm.DB
	store          store.Store
	commandClient  mq.ClientInterface
	readings       *ReadingConsumer
	plants         *PlantConsumer
	subscriber     *ingest.Subscriber
	grpcServer     *grpc.Server
	httpServer     *http.Server
	schedulerWG    sync.WaitGroup
	cancelSchedule context.CancelFunc
	shutdownOnce   sync.Once
	shutdownErr    error
}

// ServerConfig holds the configuration for the Server.
type ServerConfig struct {
	Logger *slog.Logger

	// StoreDriver selects postgres (default) or memory.
	StoreDriver string

	// Database configuration
	DBHost         string
	DBUser         string
	DBPassword     string
	DBName         string
	DBSSLMode      string
	DBPort         int
	DBMaxOpenConns int

	// RabbitMQ configuration
	RabbitMQURL  string
	ReadingQueue string
	PlantQueue   string
	CommandQueue string

	// gRPC configuration
	GRPCPort int
	// OpsPort serves /healthz, /metrics and /ws/pumps. Zero disables it.
	OpsPort int

	// Scheduler configuration
	SchedulerInterval time.Duration
	SchedulerTimeout  time.Duration
	SchedulerWorkers  int
	LogWindow         int

	// MQTT ingest. An empty broker disables it.
	MQTTBroker   string
	MQTTTopic    string
	MQTTClientID string
	MQTTUsername string
	MQTTPassword string

	Metrics         *metrics.BackendMetrics
	MQMetrics       *metrics.MQMetrics
	WateringMetrics *metrics.WateringMetrics
	OpsMetrics      *metrics.OpsMetrics

	// Store replaces the configured store driver.
	Store store.Store
	// Dial opens queue clients. Defaults to a RabbitMQ client on RabbitMQURL.
	Dial func(queue string, logger *slog.Logger) mq.ClientInterface
}

// NewServer creates a new Server instance.
func NewServer(cfg *ServerConfig) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("server config cannot be nil")
	}

	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	if cfg.RabbitMQURL == "" && cfg.Dial == nil {
		return nil, errors.New("rabbitmq URL cannot be empty")
	}

	if cfg.ReadingQueue == "" || cfg.PlantQueue == "" || cfg.CommandQueue == "" {
		return nil, errors.New("reading, plant and command queue names cannot be empty")
	}

	if cfg.StoreDriver == "" {
		cfg.StoreDriver = StoreDriverPostgres
	}

	if cfg.Store == nil {
		switch cfg.StoreDriver {
		case StoreDriverMemory:
		case StoreDriverPostgres:
			if cfg.DBHost == "" {
				return nil, errors.New("database host cannot be empty")
			}

			if cfg.DBPort <= 0 {
				return nil, errors.New("database port must be positive")
			}

			if cfg.DBUser == "" {
				return nil, errors.New("database user cannot be empty")
			}

			if cfg.DBName == "" {
				return nil, errors.New("database name cannot be empty")
			}
		default:
			return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
		}
	}

	if cfg.GRPCPort <= 0 {
		return nil, errors.New("gRPC port must be positive")
	}

	if cfg.OpsPort < 0 {
		return nil, errors.New("ops port cannot be negative")
	}

	if cfg.Dial == nil {
		cfg.Dial = func(queue string, l *slog.Logger) mq.ClientInterface {
			opts := []mq.Option{mq.WithDurable(), mq.WithPrefetch(10)}
			if cfg.MQMetrics != nil {
				opts = append(opts, mq.WithMetrics(cfg.MQMetrics))
			}
			return mq.New(queue, cfg.RabbitMQURL, l, opts...)
		}
	}

	return &Server{
		logger: cfg.Logger,
		config: cfg,
	}, nil
}

// openStore returns the configured store and the health check for it.
func (s *Server) openStore() (store.Store, HealthCheck, error) {
	if s.config.Store != nil {
		return s.config.Store, nil, nil
	}

	if s.config.StoreDriver == StoreDriverMemory {
		s.logger.Warn("using in-memory store, data is lost on restart")
		return store.NewMemory(), nil, nil
	}

	db, err := store.NewDB(&store.DBConfig{
		Logger:       s.logger,
		Host:         s.config.DBHost,
		Port:         s.config.DBPort,
		User:         s.config.DBUser,
		Password:     s.config.DBPassword,
		DBName:       s.config.DBName,
		SSLMode:      s.config.DBSSLMode,
		MaxOpenConns: s.config.DBMaxOpenConns,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	s.db = db

	pg, err := store.NewPostgres(db, s.logger, s.config.Metrics)
	if err != nil {
		return nil, nil, err
	}

	check := func(ctx context.Context) error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	}
	return pg, check, nil
}

// Run starts the backend server and blocks until shutdown.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("starting backend server")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	// Release whatever was set up if startup fails half way.
	started := false
	defer func() {
		if !started {
			_ = s.Shutdown()
		}
	}()

	st, dbCheck, err := s.openStore()
	if err != nil {
		return err
	}
	s.store = st

	s.logger.Info("store initialized", "driver", s.config.StoreDriver)

	// Pumps and the command queue
	manager := pumps.NewManager(s.config.OpsMetrics)
	s.commandClient = s.config.Dial(s.config.CommandQueue, s.logger.With("component", "command-mq-client"))

	dispatcher, err := actuator.NewDispatcher(&actuator.DispatcherConfig{
		Logger:  s.logger,
		Store:   s.store,
		Pumps:   manager,
		Queue:   s.commandClient,
		Metrics: s.config.WateringMetrics,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize actuator: %w", err)
	}

	// Queue consumers
	s.readings, err = NewReadingConsumer(&ConsumerConfig{
		Logger:  s.logger,
		Store:   s.store,
		Client:  s.config.Dial(s.config.ReadingQueue, s.logger.With("component", "reading-mq-client")),
		Queue:   s.config.ReadingQueue,
		Metrics: s.config.Metrics,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize reading consumer: %w", err)
	}
	s.readings.Start(ctx)

	s.plants, err = NewPlantConsumer(&ConsumerConfig{
		Logger:  s.logger,
		Store:   s.store,
		Client:  s.config.Dial(s.config.PlantQueue, s.logger.With("component", "plant-mq-client")),
		Queue:   s.config.PlantQueue,
		Metrics: s.config.Metrics,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize plant consumer: %w", err)
	}
	s.plants.Start(ctx)

	// MQTT ingest
	if s.config.MQTTBroker != "" {
		s.subscriber, err = ingest.New(&ingest.Config{
			Logger:   s.logger,
			Logs:     s.store,
			Metrics:  s.config.Metrics,
			Broker:   s.config.MQTTBroker,
			ClientID: s.config.MQTTClientID,
			Username: s.config.MQTTUsername,
			Password: s.config.MQTTPassword,
			Topic:    s.config.MQTTTopic,
			QoS:      1,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize mqtt ingest: %w", err)
		}
		if err := s.subscriber.Start(ctx); err != nil {
			return fmt.Errorf("failed to start mqtt ingest: %w", err)
		}
	}

	// Watering loop
	loop, err := scheduler.New(&scheduler.Config{
		Logger:   s.logger,
		Plants:   s.store,
		Logs:     s.store,
		Actuator: dispatcher.For(actuator.ReasonAutomatic),
		Metrics:  s.config.WateringMetrics,
		Interval: s.config.SchedulerInterval,
		Timeout:  s.config.SchedulerTimeout,
		Window:   s.config.LogWindow,
		Workers:  s.config.SchedulerWorkers,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize scheduler: %w", err)
	}

	var schedCtx context.Context
	schedCtx, s.cancelSchedule = context.WithCancel(ctx)
	s.schedulerWG.Add(1)
	go func() {
		defer s.schedulerWG.Done()
		if err := loop.Run(schedCtx); err != nil {
			s.logger.Error("scheduler stopped", "error", err)
		}
	}()

	// gRPC API
	plantService, err := NewPlantService(&PlantServiceConfig{
		Logger:    s.logger,
		Store:     s.store,
		Manual:    dispatcher.For(actuator.ReasonManual),
		Automatic: dispatcher.For(actuator.ReasonAutomatic),
		Pumps:     manager,
		Metrics:   s.config.Metrics,
		Window:    s.config.LogWindow,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize gRPC service: %w", err)
	}

	s.grpcServer = grpc.NewServer()
	plantapi.RegisterPlantServiceServer(s.grpcServer, plantService)

	grpcAddr := fmt.Sprintf(":%d", s.config.GRPCPort)
	lis, err := net.Listen("tcp", grpcAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", grpcAddr, err)
	}

	s.logger.Info("starting gRPC server", "address", grpcAddr)

	serveErr := make(chan error, 2)
	go func() {
		if err := s.grpcServer.Serve(lis); err != nil {
			serveErr <- fmt.Errorf("gRPC server error: %w", err)
		}
	}()

	// Operations HTTP server
	if s.config.OpsPort > 0 {
		checks := map[string]HealthCheck{}
		if dbCheck != nil {
			checks["database"] = dbCheck
		}
		if s.subscriber != nil {
			checks["mqtt"] = func(context.Context) error {
				if !s.subscriber.IsConnected() {
					return errors.New("not connected")
				}
				return nil
			}
		}

		handler := pumps.NewHandler(s.logger, manager, s.store, s.store, s.config.OpsMetrics)
		s.httpServer = &http.Server{
			Addr: fmt.Sprintf(":%d", s.config.OpsPort),
			Handler: NewOpsRouter(&OpsConfig{
				Logger:  s.logger,
				Metrics: s.config.OpsMetrics,
				Checks:  checks,
				Pumps:   handler.Serve,
			}),
			ReadHeaderTimeout: 10 * time.Second,
			IdleTimeout:       120 * time.Second,
		}

		s.logger.Info("starting ops server", "address", s.httpServer.Addr)

		go func() {
			if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serveErr <- fmt.Errorf("ops server error: %w", err)
			}
		}()
	}

	started = true
	s.logger.Info("backend server started successfully")

	select {
	case sig := <-sigChan:
		s.logger.Info("received shutdown signal", "signal", sig.String())
		cancel()
	case <-ctx.Done():
		s.logger.Info("context canceled")
	case err := <-serveErr:
		s.logger.Error("server error", "error", err)
		cancel()
		if shutdownErr := s.Shutdown(); shutdownErr != nil {
			return errors.Join(err, shutdownErr)
		}
		return err
	}

	return s.Shutdown()
}

// Shutdown gracefully shuts down the server. It is safe to call more than once.
func (s *Server) Shutdown() error {
	s.shutdownOnce.Do(func() {
		s.shutdownErr = s.shutdown()
	})
	return s.shutdownErr
}

func (s *Server) shutdown() error {
	s.logger.Info("shutting down backend server")

	var errs []error

	// Stop accepting requests
	if s.httpServer != nil {
		s.logger.Info("stopping ops server")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := s.httpServer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("ops server shutdown error: %w", err))
		}
		cancel()
	}

	if s.grpcServer != nil {
		s.logger.Info("stopping gRPC server")
		s.grpcServer.GracefulStop()
		s.logger.Info("gRPC server stopped")
	}

	// Let the current watering cycle finish
	if s.cancelSchedule != nil {
		s.cancelSchedule()
		s.schedulerWG.Wait()
	}

	if s.subscriber != nil {
		s.subscriber.Stop()
	}

	var consumers []*consumer
	if s.readings != nil {
		consumers = append(consumers, s.readings.consumer)
	}
	if s.plants != nil {
		consumers = append(consumers, s.plants.consumer)
	}
	for _, c := range consumers {
		if err := c.Stop(); err != nil {
			s.logger.Error("failed to stop consumer", "queue", c.queue, "error", err)
			errs = append(errs, fmt.Errorf("consumer %s shutdown error: %w", c.queue, err))
		}
	}

	if s.commandClient != nil {
		if err := s.commandClient.Close(); err != nil {
			s.logger.Warn("failed to close command queue client", "error", err)
		}
	}

	if s.db != nil {
		if err := store.CloseDB(s.db, s.logger); err != nil {
			errs = append(errs, fmt.Errorf("database close error: %w", err))
		}
	}

	if err := errors.Join(errs...); err != nil {
		s.logger.Error("backend server shutdown completed with errors", "error", err)
		return err
	}

	s.logger.Info("backend server shutdown completed successfully")
	return nil
}

