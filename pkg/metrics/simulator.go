package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// SimulatorMetrics contains Prometheus metrics for the sensor simulator.
type SimulatorMetrics struct {
	ReadingsPublished      *prometheus.CounterVec
	RegistrationsPublished prometheus.Counter
	PublishFailures        *prometheus.CounterVec
	PublishDuration        *prometheus.HistogramVec
	CommandsReceived       *prometheus.CounterVec
	SimulatedPlants        prometheus.Gauge
}

// NewSimulatorMetrics creates and registers simulator metrics.
func NewSimulatorMetrics(namespace string) *SimulatorMetrics {
	m := &SimulatorMetrics{
		ReadingsPublished: counterVec(namespace, "simulator", "readings_published_total",
			"Total number of sensor readings published", "plant_id"),
		RegistrationsPublished: counter(namespace, "simulator", "registrations_published_total",
			"Total number of plant registrations published"),
		PublishFailures: counterVec(namespace, "simulator", "publish_failures_total",
			"Total number of failed publishes", "message", "reason"),
		PublishDuration: histogramVec(namespace, "simulator", "publish_duration_seconds",
			"Duration of message publishes", nil, "message"),
		CommandsReceived: counterVec(namespace, "simulator", "commands_received_total",
			"Total number of watering commands applied to simulated plants", "status"),
		SimulatedPlants: gauge(namespace, "simulator", "plants",
			"Number of simulated plants"),
	}

	MustRegister(
		m.ReadingsPublished,
		m.RegistrationsPublished,
		m.PublishFailures,
		m.PublishDuration,
		m.CommandsReceived,
		m.SimulatedPlants,
	)

	return m
}
