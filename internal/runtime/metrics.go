// internal/runtime/metrics.go

package runtime

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// engineMetrics holds the Prometheus collectors of one engine. A nil
// *engineMetrics records nothing.
type engineMetrics struct {
	firingsTotal     *prometheus.CounterVec
	failuresTotal    *prometheus.CounterVec
	scheduledTotal   *prometheus.CounterVec
	actionDuration   *prometheus.HistogramVec
	factsCurrent     prometheus.Gauge
	activationsQueue prometheus.Gauge
}

func newEngineMetrics(reg prometheus.Registerer, namespace string) (*engineMetrics, error) {
	if reg == nil {
		return nil, nil
	}

	m := &engineMetrics{
		firingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "firings_total",
			Help:      "Total rule activations fired",
		}, []string{"rule_name"}),

		failuresTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "action_failures_total",
			Help:      "Total rule actions that returned an error or panicked",
		}, []string{"rule_name"}),

		scheduledTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "activations_scheduled_total",
			Help:      "Total activations added to the agenda",
		}, []string{"rule_name"}),

		actionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "action_duration_seconds",
			Help:      "Time spent running rule actions",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
		}, []string{"rule_name"}),

		factsCurrent: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "facts",
			Help:      "Facts currently asserted",
		}),

		activationsQueue: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "agenda_size",
			Help:      "Activations waiting on the agenda",
		}),
	}

	collectors := []prometheus.Collector{
		m.firingsTotal,
		m.failuresTotal,
		m.scheduledTotal,
		m.actionDuration,
		m.factsCurrent,
		m.activationsQueue,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *engineMetrics) recordFiring(rule string, took time.Duration, failed bool) {
	if m == nil {
		return
	}
	m.firingsTotal.WithLabelValues(rule).Inc()
	m.actionDuration.WithLabelValues(rule).Observe(took.Seconds())
	if failed {
		m.failuresTotal.WithLabelValues(rule).Inc()
	}
}

func (m *engineMetrics) recordScheduled(rule string) {
	if m == nil {
		return
	}
	m.scheduledTotal.WithLabelValues(rule).Inc()
}

func (m *engineMetrics) setSizes(factCount, agendaSize int) {
	if m == nil {
		return
	}
	m.factsCurrent.Set(float64(factCount))
	m.activationsQueue.Set(float64(agendaSize))
}
