package proxy

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/187j3x1/nghttp2/pkg/config"
	"github.com/187j3x1/nghttp2/pkg/limits/ratelimit"
	"github.com/187j3x1/nghttp2/pkg/listener"
	"github.com/187j3x1/nghttp2/pkg/proxy/middleware"
	"github.com/187j3x1/nghttp2/pkg/telemetry/logging"
)

// ConnSource runs accept loops that feed a sink until ctx is canceled.
// *listener.Set implements it.
type ConnSource interface {
	Serve(ctx context.Context, sink listener.ConnectionSink) error
}

type connInfo struct {
	id   string
	peer net.Addr
}

// Worker serves frontend connections and owns its downstream transport.
type Worker struct {
	id     int
	engine *Engine
	logger *slog.Logger

	server    *http.Server
	queue     *connQueue
	transport http.RoundTripper
	session   *session

	rateOpts []ratelimit.ConnOption
	conns    sync.Map // net.Conn -> connInfo, until ConnContext picks it up
}

var _ listener.ConnectionSink = (*Worker)(nil)

// NewWorker creates worker id. Workers share nothing but the Engine.
func (e *Engine) NewWorker(id int) *Worker {
	cfg := e.cfg
	w := &Worker{
		id:     id,
		engine: e,
		logger: e.logger.With("worker", id),
		queue:  newConnQueue(fmt.Sprintf("worker-%d", id), queueSize),
	}

	if cfg.Derived.DownstreamProtocol == config.ProtocolHTTP2 {
		t2, _ := newBackendTransport(cfg)
		w.session = newSession(e.dialer.DialContext, t2, w.logger)
		w.transport = w.session
	} else {
		t := &http.Transport{
			DialContext:           e.dialer.DialContext,
			ResponseHeaderTimeout: cfg.Backend.ReadTimeout,
			IdleConnTimeout:       cfg.Backend.KeepAliveTimeout,
			MaxIdleConnsPerHost:   32,
		}
		if e.policy.forward {
			t.Proxy = http.ProxyURL(&url.URL{Scheme: "http", Host: e.policy.authority})
		}
		w.transport = t
	}

	if m := e.opts.Metrics; m != nil {
		w.rateOpts = append(w.rateOpts, ratelimit.WithWaitHook(m.RateLimit.ObserveWait))
	}

	var recorder middleware.RequestRecorder
	if m := e.opts.Metrics; m != nil {
		recorder = m.Request
	}

	var handler http.Handler = newHandler(e.policy, w.transport, w.logger)
	handler = middleware.AccessLog(w.logger, recorder, cfg.Telemetry.Logging.AccessLog)(handler)
	if t := e.opts.Tracer; t != nil {
		handler = t.Middleware(handler)
	}
	handler = middleware.RequestIDMiddleware(handler)
	handler = middleware.RecoveryMiddleware(w.logger)(handler)

	h2s := &http2.Server{
		MaxConcurrentStreams:     cfg.HTTP2.MaxConcurrentStreams,
		IdleTimeout:              cfg.Frontend.HTTP2ReadTimeout,
		MaxUploadBufferPerStream: int32(1)<<cfg.HTTP2.WindowBits - 1,
	}

	w.server = &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: cfg.Frontend.ReadTimeout,
		IdleTimeout:       cfg.Frontend.ReadTimeout,
		ConnContext:       w.connContext,
		ErrorLog:          slog.NewLogLogger(w.logger.Handler(), slog.LevelDebug),
	}
	if e.serverTLS != nil {
		if err := http2.ConfigureServer(w.server, h2s); err != nil {
			w.logger.Warn("HTTP/2 disabled on frontend", "error", err)
		}
	} else {
		w.server.Handler = h2c.NewHandler(handler, h2s)
	}

	return w
}

// newBackendTransport returns the HTTP/2 transport of the backend session.
// Receive window sizes are only read from the net/http side, so the
// transport is derived from one carrying http2.backend_window_bits.
func newBackendTransport(cfg *config.Config) (*http2.Transport, *http.Transport) {
	t1 := &http.Transport{
		HTTP2: &http.HTTP2Config{
			MaxReceiveBufferPerStream: 1<<cfg.HTTP2.BackendWindowBits - 1,
		},
	}
	t2, err := http2.ConfigureTransports(t1)
	if err != nil {
		// Only possible when t1 already speaks HTTP/2.
		t2 = &http2.Transport{}
	}
	t2.AllowHTTP = true
	t2.ReadIdleTimeout = cfg.Backend.KeepAliveTimeout
	t2.WriteByteTimeout = cfg.Backend.WriteTimeout
	return t2, t1
}

// ID returns the worker id.
func (w *Worker) ID() int {
	return w.id
}

// Accept wraps conn with the write timeout, the rate limiter and, when
// configured, server TLS, then queues it for the worker's http.Server.
func (w *Worker) Accept(conn net.Conn, peer net.Addr) {
	cfg := w.engine.cfg
	id := uuid.NewString()

	c := newDeadlineConn(conn, cfg.Frontend.WriteTimeout)
	c = ratelimit.NewConn(c, w.engine.opts.RateLimit, w.rateOpts...)
	if w.engine.serverTLS != nil {
		c = tls.Server(c, w.engine.serverTLS)
	}

	w.conns.Store(c, connInfo{id: id, peer: peer})
	if !w.queue.push(c) {
		w.conns.Delete(c)
		c.Close()
		return
	}
	w.logger.Debug("accepted connection", "conn_id", id, "peer", peer.String())
}

// connContext attaches the connection id and peer to the base context of
// every request on c.
func (w *Worker) connContext(ctx context.Context, c net.Conn) context.Context {
	v, ok := w.conns.LoadAndDelete(c)
	if !ok {
		return ctx
	}
	info := v.(connInfo)
	ctx = logging.WithConnID(ctx, info.id)
	return logging.WithPeer(ctx, info.peer)
}

// CreatePersistentSession eagerly connects the HTTP/2 downstream session.
// It is a no-op for HTTP/1.1 downstreams.
func (w *Worker) CreatePersistentSession(ctx context.Context) error {
	if w.session == nil {
		return nil
	}
	return w.session.CreatePersistentSession(ctx)
}

// Handler returns the worker's HTTP handler.
func (w *Worker) Handler() http.Handler {
	return w.server.Handler
}

// Serve runs src's accept loops with the worker as sink and serves the
// accepted connections until ctx is canceled. In-flight requests get the
// engine's shutdown timeout to finish.
func (w *Worker) Serve(ctx context.Context, src ConnSource) error {
	errc := make(chan error, 1)
	go func() {
		errc <- w.server.Serve(w.queue)
	}()

	srcErr := src.Serve(ctx, w)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), w.engine.opts.ShutdownTimeout)
	defer cancel()
	if err := w.server.Shutdown(shutdownCtx); err != nil {
		w.logger.Warn("forcing connections closed", "error", err)
		w.server.Close()
	}
	w.queue.Close()

	serveErr := <-errc
	if errors.Is(serveErr, http.ErrServerClosed) {
		serveErr = nil
	}

	if w.session != nil {
		w.session.Close()
	}
	if t, ok := w.transport.(*http.Transport); ok {
		t.CloseIdleConnections()
	}

	return errors.Join(srcErr, serveErr)
}
