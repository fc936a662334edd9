package metrics

import "github.com/prometheus/client_golang/prometheus"

// TLSMetrics tracks handshake certificate selection.
type TLSMetrics struct {
	selections *prometheus.CounterVec
}

// NewTLSMetrics creates and registers TLS metrics.
func NewTLSMetrics(namespace string, registry prometheus.Registerer) *TLSMetrics {
	m := &TLSMetrics{
		selections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tls_certificate_selections_total",
				Help:      "Certificate selections by result (sni, default, none)",
			},
			[]string{"result"},
		),
	}

	registry.MustRegister(m.selections)
	return m
}

// ObserveSelection records the result of one certificate selection.
func (m *TLSMetrics) ObserveSelection(result string) {
	m.selections.WithLabelValues(result).Inc()
}
