package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// OpsMetrics contains Prometheus metrics for the operations HTTP server and pump links.
type OpsMetrics struct {
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	PumpConnections     prometheus.Gauge
	PumpMessagesTotal   *prometheus.CounterVec
}

// NewOpsMetrics creates and registers operations server metrics.
func NewOpsMetrics(namespace string) *OpsMetrics {
	m := &OpsMetrics{
		HTTPRequestsTotal: counterVec(namespace, "http", "requests_total",
			"Total number of HTTP requests", "method", "path", "status"),
		HTTPRequestDuration: histogramVec(namespace, "http", "request_duration_seconds",
			"Duration of HTTP requests", nil, "method", "path"),
		PumpConnections: gauge(namespace, "pumps", "connections",
			"Number of pumps connected over websocket"),
		PumpMessagesTotal: counterVec(namespace, "pumps", "messages_total",
			"Total number of websocket messages exchanged with pumps", "direction", "type"),
	}

	MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.PumpConnections,
		m.PumpMessagesTotal,
	)

	return m
}
