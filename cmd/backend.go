package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/SimonCaignart/plant-e/internal/backend"
	"github.com/SimonCaignart/plant-e/internal/ingest"
	"github.com/SimonCaignart/plant-e/internal/store"
	"github.com/SimonCaignart/plant-e/pkg/metrics"
)

const metricsNamespace = "plant_e"

var backendCmd = &cobra.Command{
	Use:   "backend",
	Short: "Run the backend server",
	Long: `Run the backend server that:
- Consumes sensor readings and plant registrations from RabbitMQ
- Optionally subscribes to sensor readings over MQTT
- Persists plants, logs and watering commands to PostgreSQL
- Runs the automatic watering scheduler
- Sends watering commands to pumps over websocket or RabbitMQ
- Serves the gRPC API and the /healthz, /metrics and /ws/pumps endpoints`,
	RunE: runBackend,
}

func init() {
	rootCmd.AddCommand(backendCmd)

	f := backendCmd.Flags()

	f.String("store", backend.StoreDriverPostgres, "store driver (postgres, memory)")
	f.String("db-host", "localhost", "PostgreSQL host")
	f.Int("db-port", 5432, "PostgreSQL port")
	f.String("db-user", "postgres", "PostgreSQL user")
	f.String("db-password", "", "PostgreSQL password")
	f.String("db-name", "plante", "PostgreSQL database name")
	f.String("db-sslmode", "disable", "PostgreSQL SSL mode")
	f.Int("db-max-open-conns", 25, "maximum open PostgreSQL connections")

	f.String("rabbitmq-url", "amqp://localhost:5672", "RabbitMQ URL")
	f.String("reading-queue", "sensor-readings", "RabbitMQ queue for sensor readings")
	f.String("plant-queue", "plant-registrations", "RabbitMQ queue for plant registrations")
	f.String("command-queue", "watering-commands", "RabbitMQ queue for watering commands")

	f.Int("grpc-port", 9090, "gRPC server port")
	f.Int("ops-port", 8080, "port for /healthz, /metrics and /ws/pumps (0 disables)")

	f.Duration("scheduler-interval", time.Minute, "interval between watering cycles")
	f.Duration("scheduler-timeout", 30*time.Second, "timeout for evaluating and watering one plant")
	f.Int("scheduler-workers", 4, "plants evaluated concurrently")
	f.Int("log-window", store.DefaultLogWindow, "log entries read per plant evaluation")

	f.String("mqtt-broker", "", "MQTT broker URL, e.g. tcp://localhost:1883 (empty disables)")
	f.String("mqtt-topic", ingest.DefaultTopic, "MQTT topic filter for sensor readings")
	f.String("mqtt-client-id", "plant-e-ingest", "MQTT client id")
	f.String("mqtt-username", "", "MQTT username")
	f.String("mqtt-password", "", "MQTT password")

	// Bind flags to viper
	for key, flag := range map[string]string{
		"backend.store":                  "store",
		"backend.db.host":                "db-host",
		"backend.db.port":                "db-port",
		"backend.db.user":                "db-user",
		"backend.db.password":            "db-password",
		"backend.db.name":                "db-name",
		"backend.db.sslmode":             "db-sslmode",
		"backend.db.max_open_conns":      "db-max-open-conns",
		"backend.rabbitmq.url":           "rabbitmq-url",
		"backend.rabbitmq.reading_queue": "reading-queue",
		"backend.rabbitmq.plant_queue":   "plant-queue",
		"backend.rabbitmq.command_queue": "command-queue",
		"backend.grpc.port":              "grpc-port",
		"backend.ops.port":               "ops-port",
		"backend.scheduler.interval":     "scheduler-interval",
		"backend.scheduler.timeout":      "scheduler-timeout",
		"backend.scheduler.workers":      "scheduler-workers",
		"backend.scheduler.log_window":   "log-window",
		"backend.mqtt.broker":            "mqtt-broker",
		"backend.mqtt.topic":             "mqtt-topic",
		"backend.mqtt.client_id":         "mqtt-client-id",
		"backend.mqtt.username":          "mqtt-username",
		"backend.mqtt.password":          "mqtt-password",
	} {
		_ = viper.BindPFlag(key, f.Lookup(flag))
	}
}

func runBackend(_ *cobra.Command, _ []string) error {
	logger := GetLogger("backend")
	logger.Info("starting backend service")

	config := &backend.ServerConfig{
		Logger:            logger,
		StoreDriver:       viper.GetString("backend.store"),
		DBHost:            viper.GetString("backend.db.host"),
		DBPort:            viper.GetInt("backend.db.port"),
		DBUser:            viper.GetString("backend.db.user"),
		DBPassword:        viper.GetString("backend.db.password"),
		DBName:            viper.GetString("backend.db.name"),
		DBSSLMode:         viper.GetString("backend.db.sslmode"),
		DBMaxOpenConns:    viper.GetInt("backend.db.max_open_conns"),
		RabbitMQURL:       viper.GetString("backend.rabbitmq.url"),
		ReadingQueue:      viper.GetString("backend.rabbitmq.reading_queue"),
		PlantQueue:        viper.GetString("backend.rabbitmq.plant_queue"),
		CommandQueue:      viper.GetString("backend.rabbitmq.command_queue"),
		GRPCPort:          viper.GetInt("backend.grpc.port"),
		OpsPort:           viper.GetInt("backend.ops.port"),
		SchedulerInterval: viper.GetDuration("backend.scheduler.interval"),
		SchedulerTimeout:  viper.GetDuration("backend.scheduler.timeout"),
		SchedulerWorkers:  viper.GetInt("backend.scheduler.workers"),
		LogWindow:         viper.GetInt("backend.scheduler.log_window"),
		MQTTBroker:        viper.GetString("backend.mqtt.broker"),
		MQTTTopic:         viper.GetString("backend.mqtt.topic"),
		MQTTClientID:      viper.GetString("backend.mqtt.client_id"),
		MQTTUsername:      viper.GetString("backend.mqtt.username"),
		MQTTPassword:      viper.GetString("backend.mqtt.password"),
		Metrics:           metrics.NewBackendMetrics(metricsNamespace),
		MQMetrics:         metrics.NewMQMetrics(metricsNamespace),
		WateringMetrics:   metrics.NewWateringMetrics(metricsNamespace),
		OpsMetrics:        metrics.NewOpsMetrics(metricsNamespace),
	}

	server, err := backend.NewServer(config)
	if err != nil {
		logger.Error("failed to create backend server", "error", err)
		return err
	}

	logger.Info("backend server configuration",
		"store", config.StoreDriver,
		"db_host", config.DBHost,
		"db_port", config.DBPort,
		"db_name", config.DBName,
		"rabbitmq_url", config.RabbitMQURL,
		"reading_queue", config.ReadingQueue,
		"plant_queue", config.PlantQueue,
		"command_queue", config.CommandQueue,
		"grpc_port", config.GRPCPort,
		"ops_port", config.OpsPort,
		"scheduler_interval", config.SchedulerInterval,
		"mqtt_broker", config.MQTTBroker,
	)

	if err := server.Run(context.Background()); err != nil {
		logger.Error("backend server error", "error", err)
		return err
	}

	logger.Info("backend server stopped")
	return nil
}
