package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/187j3x1/nghttp2/pkg/resolver"
)

// ListenerMetrics tracks listening sockets and the accept loop.
type ListenerMetrics struct {
	bound        *prometheus.GaugeVec
	accepted     *prometheus.CounterVec
	acceptErrors *prometheus.CounterVec
}

// NewListenerMetrics creates and registers listener metrics.
func NewListenerMetrics(namespace string, registry prometheus.Registerer) *ListenerMetrics {
	m := &ListenerMetrics{
		bound: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "listeners_bound",
				Help:      "Number of bound frontend listening sockets",
			},
			[]string{"family"},
		),
		accepted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "connections_accepted_total",
				Help:      "Total number of accepted frontend connections",
			},
			[]string{"family"},
		),
		acceptErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "accept_errors_total",
				Help:      "Total number of failed accept calls",
			},
			[]string{"family"},
		),
	}

	registry.MustRegister(m.bound, m.accepted, m.acceptErrors)
	return m
}

// ListenerBound records a newly bound listening socket.
func (m *ListenerMetrics) ListenerBound(family resolver.Family) {
	m.bound.WithLabelValues(family.String()).Inc()
}

// ConnectionAccepted records an accepted connection.
func (m *ListenerMetrics) ConnectionAccepted(family resolver.Family) {
	m.accepted.WithLabelValues(family.String()).Inc()
}

// AcceptFailed records a failed accept.
func (m *ListenerMetrics) AcceptFailed(family resolver.Family) {
	m.acceptErrors.WithLabelValues(family.String()).Inc()
}
