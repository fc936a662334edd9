// Package listener binds the frontend listening sockets and runs the
// accept loops that feed connections to the proxy engine.
package listener

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/187j3x1/nghttp2/pkg/resolver"
)

// ConnectionSink receives accepted connections. Accept must not block the
// accept loop; it takes ownership of conn.
type ConnectionSink interface {
	Accept(conn net.Conn, peer net.Addr)
}

// SinkFunc adapts a function to ConnectionSink.
type SinkFunc func(conn net.Conn, peer net.Addr)

// Accept calls f(conn, peer).
func (f SinkFunc) Accept(conn net.Conn, peer net.Addr) {
	f(conn, peer)
}

// Observer is notified of listener events, typically to update metrics.
type Observer interface {
	ListenerBound(family resolver.Family)
	ConnectionAccepted(family resolver.Family)
	AcceptFailed(family resolver.Family)
}

// Binder binds a listener for one address family. See Sockets.Bind for the
// contract.
type Binder interface {
	Bind(ctx context.Context, host string, port int, family resolver.Family, backlog int) (*Listener, error)
}

// Accept loop backoff after a failed Accept.
const (
	minAcceptDelay = 5 * time.Millisecond
	maxAcceptDelay = time.Second
)

// Listener is one bound listening socket. Several goroutines may run Serve
// on the same Listener; they race on Accept.
type Listener struct {
	ln       net.Listener
	family   resolver.Family
	logger   *slog.Logger
	observer Observer

	closeOnce sync.Once
	closeErr  error
}

// Option configures a Listener.
type Option func(*Listener)

// WithLogger sets the logger used by Serve.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Listener) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithObserver attaches an Observer.
func WithObserver(o Observer) Option {
	return func(l *Listener) {
		l.observer = o
	}
}

// New wraps an already listening socket.
func New(ln net.Listener, family resolver.Family, opts ...Option) *Listener {
	l := &Listener{
		ln:     ln,
		family: family,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Addr returns the bound address.
func (l *Listener) Addr() net.Addr {
	return l.ln.Addr()
}

// Family returns the address family of the socket.
func (l *Listener) Family() resolver.Family {
	return l.family
}

// Serve accepts connections and hands each to sink until ctx is canceled
// or the listener is closed. Accept errors are logged and the loop
// continues after a short backoff. Serve does not close the listener.
func (l *Listener) Serve(ctx context.Context, sink ConnectionSink) error {
	stop := context.AfterFunc(ctx, l.interrupt)
	defer stop()

	var delay time.Duration
	for {
		conn, err := l.ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}

			if l.observer != nil {
				l.observer.AcceptFailed(l.family)
			}
			if delay == 0 {
				delay = minAcceptDelay
			} else if delay *= 2; delay > maxAcceptDelay {
				delay = maxAcceptDelay
			}
			l.logger.Error("accepting incoming connection failed",
				"family", l.family.String(),
				"error", err,
				"retry_in", delay,
			)

			select {
			case <-ctx.Done():
				return nil
			case <-time.After(delay):
			}
			continue
		}

		delay = 0
		if l.observer != nil {
			l.observer.ConnectionAccepted(l.family)
		}
		sink.Accept(conn, conn.RemoteAddr())
	}
}

// interrupt unblocks pending Accept calls without releasing the socket,
// which stays owned by the Set until every worker has returned.
func (l *Listener) interrupt() {
	if d, ok := l.ln.(interface{ SetDeadline(time.Time) error }); ok {
		if err := d.SetDeadline(time.Unix(1, 0)); err == nil {
			return
		}
	}
	l.Close()
}

// Close closes the socket. It is safe to call more than once.
func (l *Listener) Close() error {
	l.closeOnce.Do(func() {
		l.closeErr = l.ln.Close()
	})
	return l.closeErr
}
