package server

import (
	"context"
	"crypto/tls"
	"log/slog"
	"net"
	"time"

	"github.com/187j3x1/nghttp2/pkg/config"
	"github.com/187j3x1/nghttp2/pkg/lifecycle"
	"github.com/187j3x1/nghttp2/pkg/limits/ratelimit"
	"github.com/187j3x1/nghttp2/pkg/listener"
	"github.com/187j3x1/nghttp2/pkg/proxy"
	"github.com/187j3x1/nghttp2/pkg/resolver"
	securityTLS "github.com/187j3x1/nghttp2/pkg/security/tls"
	"github.com/187j3x1/nghttp2/pkg/telemetry/metrics"
	"github.com/187j3x1/nghttp2/pkg/telemetry/tracing"
)

// Build validates and derives the configuration assembled by b. Failures
// are returned as *Error with KindConfiguration.
func Build(b *config.Builder) (*config.Config, error) {
	cfg, err := b.Build()
	if err != nil {
		return nil, wrap(KindConfiguration, "invalid configuration", err)
	}
	return cfg, nil
}

// runner carries the state of one Run.
type runner struct {
	cfg    *config.Config
	logger *slog.Logger

	sys     lifecycle.System
	binder  listener.Binder
	lookup  resolver.Lookuper
	metrics *metrics.Collector
	tracer  *tracing.Tracer
	getenv  func(string) string
	version string
	ready   func([]net.Addr)

	shutdownTimeout time.Duration
}

// Run starts the proxy described by cfg and blocks until ctx is canceled
// or a worker fails. The steps run in a fixed order:
//
//  1. resolve the backend and its CONNECT proxy
//  2. build the frontend certificate dispatch and the backend TLS context
//  3. build the rate limit descriptor
//  4. bind the listeners, or adopt those inherited from a daemonizing parent
//  5. daemonize, save the PID file, drop privileges
//  6. run the workers
//
// Every listener is closed exactly once when Run returns. In the parent of
// a daemonized process Run returns nil right after the child has started.
func Run(ctx context.Context, cfg *config.Config, opts ...Option) error {
	r := defaultRunner()
	r.cfg = cfg
	for _, opt := range opts {
		opt(r)
	}
	if r.sys == nil {
		r.sys = &lifecycle.OS{Logger: r.logger}
	}
	if r.metrics == nil {
		r.metrics = metrics.NewCollector(metrics.Config{ProcessCollectors: true}, nil)
	}
	return r.run(ctx)
}

func (r *runner) run(ctx context.Context) error {
	cfg := r.cfg
	r.logger.Info("starting nghttpx",
		"mode", cfg.Derived.Mode.String(),
		"downstream_protocol", cfg.Derived.DownstreamProtocol.String(),
		"frontend_tls", cfg.Derived.FrontendTLS,
		"backend_tls", cfg.Derived.BackendTLS,
	)

	backend, proxyAddr, err := r.resolve(ctx)
	if err != nil {
		return err
	}

	var dispatcher *securityTLS.Dispatcher
	if cfg.Derived.FrontendTLS {
		dispatcher, err = buildDispatcher(cfg, r.logger, r.metrics.TLS.ObserveSelection)
		if err != nil {
			return wrap(KindTLSLoad, "failed to load frontend certificates", err)
		}
	}

	var clientTLS *tls.Config
	if cfg.Derived.BackendTLS {
		clientTLS, err = buildClientTLS(cfg)
		if err != nil {
			return wrap(KindTLSLoad, "failed to create backend TLS context", err)
		}
	}

	tracer := r.tracer
	if tracer == nil {
		tracer, err = tracing.New(&cfg.Telemetry.Tracing, tracing.WithServiceVersion(r.version))
		if err != nil {
			return wrap(KindConfiguration, "failed to initialize tracing", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tracer.Shutdown(shutdownCtx); err != nil {
				r.logger.Warn("flushing spans failed", "error", err)
			}
		}()
	}

	engine, err := proxy.NewEngine(proxy.Options{
		Config:          cfg,
		Backend:         backend,
		Proxy:           proxyAddr,
		Dispatcher:      dispatcher,
		ClientTLS:       clientTLS,
		RateLimit:       rateDescriptor(cfg),
		Logger:          r.logger,
		Metrics:         r.metrics,
		Tracer:          tracer,
		ShutdownTimeout: r.shutdownTimeout,
	})
	if err != nil {
		return wrap(KindConfiguration, "failed to create proxy engine", err)
	}

	set, err := r.listen(ctx)
	if err != nil {
		return err
	}
	defer set.Close()

	mgr := lifecycle.NewManager(r.sys,
		lifecycle.WithLogger(r.logger),
		lifecycle.WithObserver(r.metrics.Lifecycle),
	)
	if err := mgr.Listening(); err != nil {
		return wrap(KindWorker, "lifecycle", err)
	}

	parent, err := mgr.Daemonize(cfg.Process.Daemon, set)
	if err != nil {
		return wrap(KindDaemonize, "failed to daemonize", err)
	}
	if parent {
		r.logger.Info("daemon started, parent exiting")
		return nil
	}

	if err := mgr.SavePID(cfg.Process.PIDFile); err != nil {
		return wrap(KindPIDFile, "failed to save PID", err)
	}
	if err := mgr.DropPrivileges(cfg.Derived.UID, cfg.Derived.GID); err != nil {
		return wrap(KindPrivilege, "failed to drop privileges", err)
	}

	serveCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	stopTelemetry, err := r.startTelemetry(serveCtx, set, mgr, engine)
	if err != nil {
		return err
	}
	defer stopTelemetry()

	if dispatcher != nil && cfg.TLS.WatchCertificates {
		r.watchCertificates(serveCtx, dispatcher)
	}

	workers := cfg.Process.Workers
	first := engine.NewWorker(0)
	factory := lifecycle.WorkerFactoryFunc(func(id int) lifecycle.Worker {
		w := first
		if id != 0 {
			w = engine.NewWorker(id)
		}
		return lifecycle.WorkerFunc(func(ctx context.Context) error {
			return w.Serve(ctx, set)
		})
	})

	var session lifecycle.SessionFactory
	if cfg.Derived.DownstreamProtocol == config.ProtocolHTTP2 {
		session = first
	}

	if r.ready != nil {
		r.ready(addrs(set))
	}
	r.logger.Info("entering event loop", "workers", workers, "listeners", set.Len())

	if err := mgr.Serve(serveCtx, lifecycle.ServeOptions{
		Workers: workers,
		Factory: factory,
		Session: session,
	}); err != nil {
		return wrap(KindWorker, "serving stopped", err)
	}

	r.logger.Info("shutdown complete")
	return nil
}

// resolve looks up the backend with the configured family preference and
// the CONNECT proxy with any family.
func (r *runner) resolve(ctx context.Context) (backend, proxyAddr *net.TCPAddr, err error) {
	cfg := r.cfg
	res := resolver.New(r.lookup, r.logger)

	backend, err = res.Resolve(ctx, cfg.Backend.Host, cfg.Backend.Port, cfg.Derived.BackendFamily)
	if err != nil {
		return nil, nil, wrap(KindResolution, "failed to resolve backend", err)
	}

	if p := cfg.Derived.Proxy; p != nil {
		proxyAddr, err = res.Resolve(ctx, p.Host, p.Port, resolver.FamilyAny)
		if err != nil {
			return nil, nil, wrap(KindResolution, "failed to resolve backend proxy", err)
		}
	}
	return backend, proxyAddr, nil
}

// listen adopts listeners passed by a daemonizing parent, or binds new
// ones for IPv6 then IPv4.
func (r *runner) listen(ctx context.Context) (*listener.Set, error) {
	cfg := r.cfg
	observer := r.metrics.Listener

	inherited, err := listener.InheritedCount(r.getenv)
	if err != nil {
		return nil, wrap(KindBind, "invalid inherited listeners", err)
	}
	if inherited > 0 {
		set, err := listener.Inherit(inherited,
			listener.WithLogger(r.logger),
			listener.WithObserver(observer),
		)
		if err != nil {
			return nil, wrap(KindBind, "failed to adopt inherited listeners", err)
		}
		for _, l := range set.Listeners() {
			observer.ListenerBound(l.Family())
			r.logger.Info("adopted inherited listener", "address", l.Addr().String())
		}
		return set, nil
	}

	binder := r.binder
	if binder == nil {
		binder = &listener.Sockets{Logger: r.logger}
	}

	set, err := listener.Bootstrap(ctx, binder,
		cfg.Frontend.Host, cfg.Frontend.Port, cfg.Frontend.Backlog,
		cfg.Frontend.RequireDualStack, observer, r.logger)
	if err != nil {
		return nil, wrap(KindBind, "failed to listen", err)
	}
	return set, nil
}

// buildDispatcher loads the default pair and the subcertificates.
func buildDispatcher(cfg *config.Config, logger *slog.Logger, onSelect func(string)) (*securityTLS.Dispatcher, error) {
	subcerts := make([]securityTLS.KeyCertPair, 0, len(cfg.TLS.Subcerts))
	for _, sc := range cfg.TLS.Subcerts {
		subcerts = append(subcerts, securityTLS.KeyCertPair{KeyFile: sc.KeyFile, CertFile: sc.CertFile})
	}

	opts := []securityTLS.DispatchOption{securityTLS.WithLogger(logger)}
	if onSelect != nil {
		opts = append(opts, securityTLS.WithSelectionHook(onSelect))
	}

	if cfg.TLS.HonorCipherOrder {
		logger.Debug("honor_cipher_order has no effect: cipher suite order is chosen by crypto/tls")
	}

	return securityTLS.BuildDispatcher(cfg.TLS.PrivateKeyFile, cfg.TLS.CertFile, subcerts,
		securityTLS.ServerOptions{
			MinVersion:           cfg.TLS.MinVersion,
			Ciphers:              cfg.TLS.Ciphers,
			NextProtos:           cfg.TLS.NPNList,
			VerifyClient:         cfg.TLS.VerifyClient,
			VerifyClientCACert:   cfg.TLS.VerifyClientCACert,
			PrivateKeyPasswdFile: cfg.TLS.PrivateKeyPasswdFile,
		},
		opts...,
	)
}

// buildClientTLS creates the TLS context towards an HTTP/2 backend. The
// SNI field overrides the backend host name.
func buildClientTLS(cfg *config.Config) (*tls.Config, error) {
	serverName := cfg.Backend.TLSSNIField
	if serverName == "" {
		serverName = cfg.Backend.Host
	}
	return securityTLS.NewClientConfig(securityTLS.ClientOptions{
		ServerName:           serverName,
		CACert:               cfg.TLS.CACert,
		Insecure:             cfg.TLS.Insecure,
		ClientKeyFile:        cfg.TLS.ClientPrivateKeyFile,
		ClientCertFile:       cfg.TLS.ClientCertFile,
		PrivateKeyPasswdFile: cfg.TLS.PrivateKeyPasswdFile,
		NextProtos:           []string{"h2"},
	})
}

// rateDescriptor normalizes the configured rates; 0 means unlimited.
func rateDescriptor(cfg *config.Config) *ratelimit.Descriptor {
	rl := cfg.RateLimit
	return ratelimit.NewDescriptor(rl.ReadRate, rl.ReadBurst, rl.WriteRate, rl.WriteBurst)
}

func addrs(set *listener.Set) []net.Addr {
	var out []net.Addr
	for _, l := range set.Listeners() {
		out = append(out, l.Addr())
	}
	return out
}
