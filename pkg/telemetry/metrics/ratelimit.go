package metrics

import "github.com/prometheus/client_golang/prometheus"

// RateLimitMetrics tracks throttling of frontend connections.
type RateLimitMetrics struct {
	waits *prometheus.CounterVec
}

// NewRateLimitMetrics creates and registers rate limit metrics.
func NewRateLimitMetrics(namespace string, registry prometheus.Registerer) *RateLimitMetrics {
	m := &RateLimitMetrics{
		waits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rate_limit_waits_total",
				Help:      "Times a connection waited for rate limit tokens",
			},
			[]string{"direction"},
		),
	}

	registry.MustRegister(m.waits)
	return m
}

// ObserveWait records one throttling wait in direction ("read" or "write").
func (m *RateLimitMetrics) ObserveWait(direction string) {
	m.waits.WithLabelValues(direction).Inc()
}
