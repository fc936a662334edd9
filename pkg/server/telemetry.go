package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/187j3x1/nghttp2/pkg/lifecycle"
	"github.com/187j3x1/nghttp2/pkg/listener"
	"github.com/187j3x1/nghttp2/pkg/proxy"
	securityTLS "github.com/187j3x1/nghttp2/pkg/security/tls"
	"github.com/187j3x1/nghttp2/pkg/telemetry/health"
)

var errNoListeners = errors.New("no listeners")

// startTelemetry serves metrics and health probes on the configured
// metrics address. It is bound after privileges are dropped, so it must
// use an unprivileged port when started as root.
func (r *runner) startTelemetry(ctx context.Context, set *listener.Set, mgr *lifecycle.Manager, engine *proxy.Engine) (stop func(), err error) {
	mcfg := r.cfg.Telemetry.Metrics
	if mcfg.ListenAddress == "" {
		return func() {}, nil
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", mcfg.ListenAddress)
	if err != nil {
		return nil, wrap(KindBind, "failed to listen for metrics", err)
	}

	checker := health.New(2 * time.Second)
	checker.RegisterCheck("listeners", func(context.Context) error {
		if set.Len() == 0 {
			return errNoListeners
		}
		return nil
	})
	checker.RegisterCheck("lifecycle", func(context.Context) error {
		if p := mgr.Phase(); p != lifecycle.PhaseServing {
			return fmt.Errorf("phase is %s", p)
		}
		return nil
	})
	checker.RegisterCheck("backend", func(ctx context.Context) error {
		conn, err := engine.Dialer().DialContext(ctx, "tcp", "")
		if err != nil {
			return err
		}
		return conn.Close()
	})

	mux := http.NewServeMux()
	mux.Handle(mcfg.Path, r.metrics.Handler())
	checker.Register(mux)

	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			r.logger.Error("metrics server failed", "error", err)
		}
	}()
	r.logger.Info("serving metrics", "address", ln.Addr().String(), "path", mcfg.Path)

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			srv.Close()
		}
	}, nil
}

// watchCertificates logs a restart warning when a served certificate or
// key file changes. A watcher that cannot start is not fatal.
func (r *runner) watchCertificates(ctx context.Context, d *securityTLS.Dispatcher) {
	w, err := securityTLS.NewWatcher(d.Files(), r.logger)
	if err != nil {
		r.logger.Warn("certificate watcher disabled", "error", err)
		return
	}
	go func() {
		if err := w.Run(ctx); err != nil {
			r.logger.Warn("certificate watcher stopped", "error", err)
		}
	}()
}
