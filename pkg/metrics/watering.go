package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// WateringMetrics contains Prometheus metrics for the automatic watering loop.
type WateringMetrics struct {
	EvaluationsTotal  *prometheus.CounterVec
	TriggersTotal     *prometheus.CounterVec
	ActuationsTotal   *prometheus.CounterVec
	CycleDuration     prometheus.Histogram
	PlantsEvaluated   prometheus.Gauge
	LastCycleUnixTime prometheus.Gauge
}

// NewWateringMetrics creates and registers watering metrics.
func NewWateringMetrics(namespace string) *WateringMetrics {
	m := &WateringMetrics{
		EvaluationsTotal: counterVec(namespace, "watering", "evaluations_total",
			"Total number of plant evaluations by decision", "decision"),
		TriggersTotal: counterVec(namespace, "watering", "triggers_total",
			"Total number of fired watering rules", "rule"),
		ActuationsTotal: counterVec(namespace, "watering", "actuations_total",
			"Total number of pump actuations", "reason", "status"),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "watering",
			Name:      "cycle_duration_seconds",
			Help:      "Duration of a full scheduler cycle",
			Buckets:   []float64{.01, .05, .1, .5, 1, 5, 15, 30, 60},
		}),
		PlantsEvaluated: gauge(namespace, "watering", "plants_evaluated",
			"Number of plants evaluated in the last cycle"),
		LastCycleUnixTime: gauge(namespace, "watering", "last_cycle_timestamp_seconds",
			"Unix time at which the last scheduler cycle finished"),
	}

	MustRegister(
		m.EvaluationsTotal,
		m.TriggersTotal,
		m.ActuationsTotal,
		m.CycleDuration,
		m.PlantsEvaluated,
		m.LastCycleUnixTime,
	)

	return m
}

// ObserveDecision counts one evaluation and the rules that fired in it.
func (m *WateringMetrics) ObserveDecision(decision string, rules ...string) {
	if m == nil {
		return
	}
	m.EvaluationsTotal.WithLabelValues(decision).Inc()
	for _, r := range rules {
		m.TriggersTotal.WithLabelValues(r).Inc()
	}
}

// ObserveActuation counts one pump command by reason ("automatic", "manual").
func (m *WateringMetrics) ObserveActuation(reason string, err error) {
	if m == nil {
		return
	}
	m.ActuationsTotal.WithLabelValues(reason, Status(err)).Inc()
}

// ObserveCycle records a finished scheduler cycle over plants plants.
func (m *WateringMetrics) ObserveCycle(start time.Time, plants int) {
	if m == nil {
		return
	}
	m.CycleDuration.Observe(Since(start))
	m.PlantsEvaluated.Set(float64(plants))
	m.LastCycleUnixTime.Set(float64(time.Now().Unix()))
}
