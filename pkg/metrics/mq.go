package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// MQMetrics contains Prometheus metrics for the MQ client.
type MQMetrics struct {
	MessagesPushed    *prometheus.CounterVec
	PushFailures      *prometheus.CounterVec
	PushRetries       *prometheus.CounterVec
	ReconnectAttempts prometheus.Counter
	PushDuration      *prometheus.HistogramVec
	ConnectionStatus  prometheus.Gauge
}

// NewMQMetrics creates and registers MQ client metrics.
func NewMQMetrics(namespace string) *MQMetrics {
	m := &MQMetrics{
		MessagesPushed: counterVec(namespace, "mq", "messages_pushed_total",
			"Total number of messages pushed to RabbitMQ", "queue"),
		PushFailures: counterVec(namespace, "mq", "push_failures_total",
			"Total number of failed message pushes", "queue", "reason"),
		PushRetries: counterVec(namespace, "mq", "push_retries_total",
			"Total number of push attempts retried after a backoff", "queue"),
		ReconnectAttempts: counter(namespace, "mq", "reconnect_attempts_total",
			"Total number of reconnection attempts"),
		PushDuration: histogramVec(namespace, "mq", "push_duration_seconds",
			"Duration of confirmed pushes, retries included", nil, "queue"),
		ConnectionStatus: gauge(namespace, "mq", "connection_status",
			"Connection status (1 = connected, 0 = disconnected)"),
	}

	MustRegister(
		m.MessagesPushed,
		m.PushFailures,
		m.PushRetries,
		m.ReconnectAttempts,
		m.PushDuration,
		m.ConnectionStatus,
	)

	return m
}
