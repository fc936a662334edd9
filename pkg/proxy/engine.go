package proxy

import (
	"crypto/tls"
	"errors"
	"log/slog"
	"net"
	"strconv"
	"time"

	"github.com/187j3x1/nghttp2/pkg/config"
	"github.com/187j3x1/nghttp2/pkg/limits/ratelimit"
	securityTLS "github.com/187j3x1/nghttp2/pkg/security/tls"
	"github.com/187j3x1/nghttp2/pkg/telemetry/metrics"
	"github.com/187j3x1/nghttp2/pkg/telemetry/tracing"
)

// DefaultShutdownTimeout bounds how long a worker waits for in-flight
// requests after its listeners stop.
const DefaultShutdownTimeout = 10 * time.Second

// queueSize is the number of accepted connections a worker buffers
// before the accept loop waits.
const queueSize = 128

// Options are the immutable inputs of an Engine.
type Options struct {
	Config *config.Config

	// Backend is the resolved backend address.
	Backend *net.TCPAddr

	// Proxy is the resolved backend CONNECT proxy address, or nil.
	Proxy *net.TCPAddr

	// Dispatcher selects frontend certificates. Required when the
	// frontend uses TLS, ignored otherwise.
	Dispatcher *securityTLS.Dispatcher

	// ClientTLS is the backend TLS configuration. Required when the
	// backend uses TLS.
	ClientTLS *tls.Config

	// RateLimit throttles every frontend connection.
	RateLimit *ratelimit.Descriptor

	Logger  *slog.Logger
	Metrics *metrics.Collector

	// Tracer, if enabled, records a span per request and propagates it
	// to the backend.
	Tracer *tracing.Tracer

	// ShutdownTimeout defaults to DefaultShutdownTimeout.
	ShutdownTimeout time.Duration
}

// Engine is the state shared by all workers. It is never mutated after
// NewEngine returns.
type Engine struct {
	cfg       *config.Config
	opts      Options
	logger    *slog.Logger
	dialer    *Dialer
	policy    handlerPolicy
	serverTLS *tls.Config
}

// NewEngine checks that the inputs required by the resolved mode are
// present and prepares the shared state.
func NewEngine(opts Options) (*Engine, error) {
	cfg := opts.Config
	if cfg == nil {
		return nil, errors.New("proxy: no configuration")
	}
	if opts.Backend == nil {
		return nil, errors.New("proxy: backend address not resolved")
	}
	if cfg.Derived.FrontendTLS && opts.Dispatcher == nil {
		return nil, errors.New("proxy: frontend TLS enabled without certificate dispatch")
	}
	if cfg.Derived.BackendTLS && opts.ClientTLS == nil {
		return nil, errors.New("proxy: backend TLS enabled without client TLS configuration")
	}
	if opts.RateLimit == nil {
		opts.RateLimit = ratelimit.NewDescriptor(0, 0, 0, 0)
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = DefaultShutdownTimeout
	}

	e := &Engine{
		cfg:    cfg,
		opts:   opts,
		logger: opts.Logger,
	}

	e.dialer = &Dialer{
		Backend:     opts.Backend,
		BackendHost: cfg.Backend.Host,
		BackendPort: cfg.Backend.Port,
		Proxy:       opts.Proxy,
		Timeout:     cfg.Backend.WriteTimeout,
		KeepAlive:   cfg.Backend.KeepAliveTimeout,
	}
	if opts.Proxy != nil && cfg.Derived.Proxy != nil {
		e.dialer.ProxyAuth = cfg.Derived.Proxy.Userinfo
	}
	if cfg.Derived.BackendTLS {
		e.dialer.TLS = opts.ClientTLS
	}

	scheme := "http"
	if cfg.Derived.BackendTLS {
		scheme = "https"
	}
	e.policy = handlerPolicy{
		forward:          cfg.Derived.Mode.ForwardProxy(),
		scheme:           scheme,
		authority:        net.JoinHostPort(cfg.Backend.Host, strconv.Itoa(cfg.Backend.Port)),
		addXForwardedFor: cfg.Backend.AddXForwardedFor,
		noVia:            cfg.Backend.NoVia,
	}
	if opts.Tracer != nil && opts.Tracer.Enabled() {
		e.policy.inject = opts.Tracer.Inject
	}

	if cfg.Derived.FrontendTLS {
		e.serverTLS = opts.Dispatcher.ServerConfig()
	}

	return e, nil
}

// Dialer returns the backend dialer shared by all workers.
func (e *Engine) Dialer() *Dialer {
	return e.dialer
}
