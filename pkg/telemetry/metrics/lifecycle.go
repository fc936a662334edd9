package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/187j3x1/nghttp2/pkg/lifecycle"
)

// LifecycleMetrics tracks startup progress and running workers.
type LifecycleMetrics struct {
	phase   prometheus.Gauge
	workers prometheus.Gauge
}

// NewLifecycleMetrics creates and registers lifecycle metrics.
func NewLifecycleMetrics(namespace string, registry prometheus.Registerer) *LifecycleMetrics {
	m := &LifecycleMetrics{
		phase: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "lifecycle_phase",
			Help:      "Last startup phase reached (0 not daemonized, 5 serving)",
		}),
		workers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "workers_running",
			Help:      "Number of running worker loops",
		}),
	}

	registry.MustRegister(m.phase, m.workers)
	return m
}

// PhaseEntered records the last phase reached.
func (m *LifecycleMetrics) PhaseEntered(p lifecycle.Phase) {
	m.phase.Set(float64(p))
}

// WorkerStarted increments the running worker gauge.
func (m *LifecycleMetrics) WorkerStarted(int) {
	m.workers.Inc()
}

// WorkerStopped decrements the running worker gauge.
func (m *LifecycleMetrics) WorkerStopped(int) {
	m.workers.Dec()
}
