package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// BackendMetrics contains Prometheus metrics for the backend service.
// Every method is safe to call on a nil receiver, so metrics stay optional.
type BackendMetrics struct {
	GRPCRequestsTotal     *prometheus.CounterVec
	GRPCRequestDuration   *prometheus.HistogramVec
	GRPCRequestsInFlight  *prometheus.GaugeVec
	ConsumerMessagesTotal *prometheus.CounterVec
	ConsumerErrors        *prometheus.CounterVec
	ProcessingDuration    *prometheus.HistogramVec
	ReadingsIngested      *prometheus.CounterVec
	DBOperationsTotal     *prometheus.CounterVec
	DBOperationDuration   *prometheus.HistogramVec
	ActiveConsumers       prometheus.Gauge
}

// NewBackendMetrics creates and registers backend service metrics.
func NewBackendMetrics(namespace string) *BackendMetrics {
	m := &BackendMetrics{
		GRPCRequestsTotal: counterVec(namespace, "grpc", "requests_total",
			"Total number of gRPC requests", "method", "status"),
		GRPCRequestDuration: histogramVec(namespace, "grpc", "request_duration_seconds",
			"Duration of gRPC requests", nil, "method"),
		GRPCRequestsInFlight: gaugeVec(namespace, "grpc", "requests_in_flight",
			"Number of gRPC requests currently being processed", "method"),
		ConsumerMessagesTotal: counterVec(namespace, "consumer", "messages_total",
			"Total number of messages consumed", "queue", "status"),
		ConsumerErrors: counterVec(namespace, "consumer", "errors_total",
			"Total number of consumer errors", "queue", "error_type"),
		ProcessingDuration: histogramVec(namespace, "consumer", "processing_duration_seconds",
			"Duration of message processing", nil, "queue"),
		ReadingsIngested: counterVec(namespace, "ingest", "readings_total",
			"Total number of sensor readings appended to plant logs", "source"),
		DBOperationsTotal: counterVec(namespace, "db", "operations_total",
			"Total number of database operations", "operation", "table", "status"),
		DBOperationDuration: histogramVec(namespace, "db", "operation_duration_seconds",
			"Duration of database operations", nil, "operation", "table"),
		ActiveConsumers: gauge(namespace, "consumer", "active_consumers",
			"Number of active message consumers"),
	}

	MustRegister(
		m.GRPCRequestsTotal,
		m.GRPCRequestDuration,
		m.GRPCRequestsInFlight,
		m.ConsumerMessagesTotal,
		m.ConsumerErrors,
		m.ProcessingDuration,
		m.ReadingsIngested,
		m.DBOperationsTotal,
		m.DBOperationDuration,
		m.ActiveConsumers,
	)

	return m
}

// TrackGRPC marks a request for method as in flight and returns the function
// that records its outcome.
func (m *BackendMetrics) TrackGRPC(method string) func(err error) {
	if m == nil {
		return func(error) {}
	}
	start := time.Now()
	m.GRPCRequestsInFlight.WithLabelValues(method).Inc()
	return func(err error) {
		m.GRPCRequestsInFlight.WithLabelValues(method).Dec()
		m.GRPCRequestDuration.WithLabelValues(method).Observe(Since(start))
		m.GRPCRequestsTotal.WithLabelValues(method, Status(err)).Inc()
	}
}

// ObserveMessage records the processing of one queue delivery.
func (m *BackendMetrics) ObserveMessage(queue string, start time.Time, err error) {
	if m == nil {
		return
	}
	m.ProcessingDuration.WithLabelValues(queue).Observe(Since(start))
	m.ConsumerMessagesTotal.WithLabelValues(queue, Status(err)).Inc()
}

// ConsumerError counts a failure of kind on queue.
func (m *BackendMetrics) ConsumerError(queue, kind string) {
	if m == nil {
		return
	}
	m.ConsumerErrors.WithLabelValues(queue, kind).Inc()
}

// ConsumerStarted and ConsumerStopped keep the active consumer gauge current.
func (m *BackendMetrics) ConsumerStarted() {
	if m == nil {
		return
	}
	m.ActiveConsumers.Inc()
}

func (m *BackendMetrics) ConsumerStopped() {
	if m == nil {
		return
	}
	m.ActiveConsumers.Dec()
}

// ReadingIngested counts a reading appended from source ("amqp", "mqtt").
func (m *BackendMetrics) ReadingIngested(source string) {
	if m == nil {
		return
	}
	m.ReadingsIngested.WithLabelValues(source).Inc()
}

// ObserveDB records one database operation on table.
func (m *BackendMetrics) ObserveDB(operation, table string, start time.Time, err error) {
	if m == nil {
		return
	}
	m.DBOperationDuration.WithLabelValues(operation, table).Observe(Since(start))
	m.DBOperationsTotal.WithLabelValues(operation, table, Status(err)).Inc()
}
