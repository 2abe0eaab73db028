package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/SimonCaignart/plant-e/internal/simulator"
	"github.com/SimonCaignart/plant-e/pkg/metrics"
)

var simulatorCmd = &cobra.Command{
	Use:     "simulator",
	Aliases: []string{"generator"},
	Short:   "Run the plant simulator",
	Long: `Run the plant simulator that:
- Registers simulated plants on RabbitMQ
- Publishes synthetic sensor readings to RabbitMQ
- Consumes watering commands and raises the soil moisture of watered plants
- Supports multiple concurrent producers`,
	RunE: runSimulator,
}

func init() {
	rootCmd.AddCommand(simulatorCmd)

	f := simulatorCmd.Flags()
	f.String("rabbitmq-url", "amqp://localhost:5672", "RabbitMQ URL")
	f.String("reading-queue", "sensor-readings", "RabbitMQ queue for sensor readings")
	f.String("plant-queue", "plant-registrations", "RabbitMQ queue for plant registrations")
	f.String("command-queue", "watering-commands", "RabbitMQ queue for watering commands (empty disables)")
	f.Int("producer-count", 2, "Number of concurrent producers")
	f.Int("plants-per-producer", 0, "Plants per producer (0 picks 1 to 5)")
	f.Duration("interval", 5*time.Second, "Interval between readings")

	_ = viper.BindPFlag("simulator.rabbitmq.url", f.Lookup("rabbitmq-url"))
	_ = viper.BindPFlag("simulator.rabbitmq.reading_queue", f.Lookup("reading-queue"))
	_ = viper.BindPFlag("simulator.rabbitmq.plant_queue", f.Lookup("plant-queue"))
	_ = viper.BindPFlag("simulator.rabbitmq.command_queue", f.Lookup("command-queue"))
	_ = viper.BindPFlag("simulator.producer_count", f.Lookup("producer-count"))
	_ = viper.BindPFlag("simulator.plants_per_producer", f.Lookup("plants-per-producer"))
	_ = viper.BindPFlag("simulator.interval", f.Lookup("interval"))
}

func runSimulator(_ *cobra.Command, _ []string) error {
	logger := GetLogger("simulator")
	logger.Info("starting simulator service")

	config := &simulator.ServerConfig{
		Logger:            logger,
		RabbitMQURL:       viper.GetString("simulator.rabbitmq.url"),
		ReadingQueue:      viper.GetString("simulator.rabbitmq.reading_queue"),
		PlantQueue:        viper.GetString("simulator.rabbitmq.plant_queue"),
		CommandQueue:      viper.GetString("simulator.rabbitmq.command_queue"),
		ProducerCount:     viper.GetInt("simulator.producer_count"),
		PlantsPerProducer: viper.GetInt("simulator.plants_per_producer"),
		Interval:          viper.GetDuration("simulator.interval"),
		Metrics:           metrics.NewSimulatorMetrics(metricsNamespace),
		MQMetrics:         metrics.NewMQMetrics(metricsNamespace),
	}

	server, err := simulator.NewServer(config)
	if err != nil {
		logger.Error("failed to create simulator", "error", err)
		return err
	}

	logger.Info("simulator configuration",
		"rabbitmq_url", config.RabbitMQURL,
		"reading_queue", config.ReadingQueue,
		"plant_queue", config.PlantQueue,
		"command_queue", config.CommandQueue,
		"producer_count", config.ProducerCount,
		"interval", config.Interval,
	)

	if err := server.Run(context.Background()); err != nil {
		logger.Error("simulator error", "error", err)
		return err
	}

	logger.Info("simulator stopped")
	return nil
}
