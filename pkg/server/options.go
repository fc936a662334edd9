package server

import (
	"log/slog"
	"net"
	"os"
	"time"

	"github.com/187j3x1/nghttp2/pkg/lifecycle"
	"github.com/187j3x1/nghttp2/pkg/listener"
	"github.com/187j3x1/nghttp2/pkg/resolver"
	"github.com/187j3x1/nghttp2/pkg/telemetry/metrics"
	"github.com/187j3x1/nghttp2/pkg/telemetry/tracing"
)

// Option configures Run.
type Option func(*runner)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithSystem replaces the process operations used by the lifecycle
// manager. Default: *lifecycle.OS.
func WithSystem(sys lifecycle.System) Option {
	return func(r *runner) {
		r.sys = sys
	}
}

// WithBinder replaces the socket binder. Default: *listener.Sockets.
func WithBinder(b listener.Binder) Option {
	return func(r *runner) {
		r.binder = b
	}
}

// WithLookup replaces name resolution for the backend and its proxy.
func WithLookup(l resolver.Lookuper) Option {
	return func(r *runner) {
		r.lookup = l
	}
}

// WithMetrics uses c instead of a private collector.
func WithMetrics(c *metrics.Collector) Option {
	return func(r *runner) {
		r.metrics = c
	}
}

// WithTracer uses t instead of one built from the tracing configuration.
// The caller shuts t down.
func WithTracer(t *tracing.Tracer) Option {
	return func(r *runner) {
		r.tracer = t
	}
}

// WithGetenv replaces os.Getenv when looking for inherited listeners.
func WithGetenv(fn func(string) string) Option {
	return func(r *runner) {
		r.getenv = fn
	}
}

// WithVersion sets the version reported in traces.
func WithVersion(v string) Option {
	return func(r *runner) {
		r.version = v
	}
}

// WithShutdownTimeout bounds how long in-flight requests may take after
// the context is canceled.
func WithShutdownTimeout(d time.Duration) Option {
	return func(r *runner) {
		r.shutdownTimeout = d
	}
}

// WithReadyHook registers fn to receive the frontend addresses once the
// lifecycle steps have completed and workers are about to start.
func WithReadyHook(fn func(addrs []net.Addr)) Option {
	return func(r *runner) {
		r.ready = fn
	}
}

func defaultRunner() *runner {
	return &runner{
		logger:  slog.Default(),
		getenv:  os.Getenv,
		version: "dev",
	}
}
