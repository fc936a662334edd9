package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "nghttpx"

// Config configures a Collector.
type Config struct {
	// Namespace prefixes metric names. Default: "nghttpx".
	Namespace string

	// DurationBuckets are the request duration histogram buckets in
	// seconds.
	DurationBuckets []float64

	// ProcessCollectors adds the Go runtime and process collectors.
	ProcessCollectors bool
}

// Collector owns the registry and every metric group.
type Collector struct {
	registry *prometheus.Registry

	Listener  *ListenerMetrics
	Lifecycle *LifecycleMetrics
	TLS       *TLSMetrics
	RateLimit *RateLimitMetrics
	Request   *RequestMetrics
}

// NewCollector creates the metric groups and registers them with
// registry. A nil registry gets a fresh private one.
func NewCollector(cfg Config, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	if cfg.Namespace == "" {
		cfg.Namespace = DefaultNamespace
	}
	if len(cfg.DurationBuckets) == 0 {
		cfg.DurationBuckets = prometheus.DefBuckets
	}

	if cfg.ProcessCollectors {
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	return &Collector{
		registry:  registry,
		Listener:  NewListenerMetrics(cfg.Namespace, registry),
		Lifecycle: NewLifecycleMetrics(cfg.Namespace, registry),
		TLS:       NewTLSMetrics(cfg.Namespace, registry),
		RateLimit: NewRateLimitMetrics(cfg.Namespace, registry),
		Request:   NewRequestMetrics(cfg.Namespace, cfg.DurationBuckets, registry),
	}
}

// Registry returns the registry the collector registered with.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}
