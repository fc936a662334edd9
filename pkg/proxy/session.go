package proxy

import (
	"context"
	"crypto/tls"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"golang.org/x/net/http2"
)

// session is the persistent HTTP/2 connection to the backend. Every
// request of a worker is multiplexed over it; it is re-established when
// the backend closes it or it runs out of stream ids.
type session struct {
	transport *http2.Transport
	dial      func(ctx context.Context, network, addr string) (net.Conn, error)
	logger    *slog.Logger

	mu sync.Mutex
	cc *http2.ClientConn
}

func newSession(dial func(ctx context.Context, network, addr string) (net.Conn, error), t *http2.Transport, logger *slog.Logger) *session {
	return &session{
		transport: t,
		dial:      dial,
		logger:    logger,
	}
}

// CreatePersistentSession connects to the backend now instead of on the
// first request.
func (s *session) CreatePersistentSession(ctx context.Context) error {
	_, err := s.clientConn(ctx)
	return err
}

func (s *session) clientConn(ctx context.Context) (*http2.ClientConn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cc != nil && s.cc.CanTakeNewRequest() {
		return s.cc, nil
	}

	conn, err := s.dial(ctx, "tcp", "")
	if err != nil {
		return nil, err
	}
	if tc, ok := conn.(*tls.Conn); ok {
		if proto := tc.ConnectionState().NegotiatedProtocol; proto != http2.NextProtoTLS {
			conn.Close()
			return nil, &BackendError{Op: "alpn", Addr: conn.RemoteAddr().String(), Err: errNotHTTP2}
		}
	}

	cc, err := s.transport.NewClientConn(conn)
	if err != nil {
		conn.Close()
		return nil, &BackendError{Op: "http2 session", Addr: conn.RemoteAddr().String(), Err: err}
	}

	if s.cc != nil {
		go s.cc.Shutdown(context.Background())
	}
	s.cc = cc
	s.logger.Info("HTTP/2 session to backend established", "backend", conn.RemoteAddr().String())
	return cc, nil
}

// RoundTrip sends req over the persistent session.
func (s *session) RoundTrip(req *http.Request) (*http.Response, error) {
	cc, err := s.clientConn(req.Context())
	if err != nil {
		return nil, err
	}
	return cc.RoundTrip(req)
}

// Close closes the session.
func (s *session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cc == nil {
		return nil
	}
	err := s.cc.Close()
	s.cc = nil
	return err
}
