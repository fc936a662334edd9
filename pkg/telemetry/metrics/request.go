package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// RequestMetrics tracks proxied requests.
type RequestMetrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

// NewRequestMetrics creates and registers request metrics.
func NewRequestMetrics(namespace string, buckets []float64, registry prometheus.Registerer) *RequestMetrics {
	m := &RequestMetrics{
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "requests_total",
				Help:      "Total number of proxied requests",
			},
			[]string{"method", "code"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "request_duration_seconds",
				Help:      "Duration of proxied requests in seconds",
				Buckets:   buckets,
			},
			[]string{"method"},
		),
	}

	registry.MustRegister(m.requestsTotal, m.requestDuration)
	return m
}

// RecordRequest records one completed request.
func (m *RequestMetrics) RecordRequest(method string, code int, duration time.Duration) {
	m.requestsTotal.WithLabelValues(normalizeMethod(method), strconv.Itoa(code)).Inc()
	m.requestDuration.WithLabelValues(normalizeMethod(method)).Observe(duration.Seconds())
}

// normalizeMethod bounds label cardinality to the standard methods.
func normalizeMethod(method string) string {
	switch method {
	case "GET", "HEAD", "POST", "PUT", "DELETE", "CONNECT", "OPTIONS", "TRACE", "PATCH":
		return method
	default:
		return "OTHER"
	}
}
