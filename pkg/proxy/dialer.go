package proxy

import (
	"bufio"
	"context"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Dialer opens connections to the single configured backend, optionally
// tunnelled through an HTTP CONNECT proxy and wrapped in TLS.
type Dialer struct {
	// Backend is the resolved backend address.
	Backend *net.TCPAddr

	// BackendHost and BackendPort form the CONNECT target. The host is
	// the configured name, not the resolved address.
	BackendHost string
	BackendPort int

	// Proxy is the resolved CONNECT proxy address. Nil dials the backend
	// directly.
	Proxy *net.TCPAddr

	// ProxyAuth, if set, is sent as Proxy-Authorization: Basic.
	ProxyAuth *url.Userinfo

	// TLS, if set, is the client TLS configuration used after the TCP
	// (and tunnel) connection is up.
	TLS *tls.Config

	// Timeout bounds connect, tunnel setup and handshake.
	Timeout time.Duration

	// KeepAlive is the TCP keep-alive period.
	KeepAlive time.Duration
}

// DialContext connects to the backend. network and addr are ignored: the
// proxy has exactly one static downstream. The signature matches
// http.Transport.DialContext.
func (d *Dialer) DialContext(ctx context.Context, _, _ string) (net.Conn, error) {
	if d.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.Timeout)
		defer cancel()
	}

	nd := &net.Dialer{KeepAlive: d.KeepAlive}

	target := d.Backend.String()
	if d.Proxy != nil {
		target = d.Proxy.String()
	}
	conn, err := nd.DialContext(ctx, "tcp", target)
	if err != nil {
		return nil, &BackendError{Op: "connect", Addr: target, Err: err}
	}

	if d.Proxy != nil {
		conn, err = d.tunnel(ctx, conn)
		if err != nil {
			return nil, err
		}
	}

	if d.TLS == nil {
		return conn, nil
	}

	tlsConn := tls.Client(conn, d.TLS)
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		conn.Close()
		return nil, &BackendError{Op: "tls handshake", Addr: d.Backend.String(), Err: err}
	}
	return tlsConn, nil
}

// connectTarget is the authority requested from the CONNECT proxy.
func (d *Dialer) connectTarget() string {
	host := d.BackendHost
	if host == "" {
		return d.Backend.String()
	}
	return net.JoinHostPort(host, strconv.Itoa(d.BackendPort))
}

// tunnel issues CONNECT on conn and waits for a 2xx answer. The
// connection is closed on failure.
func (d *Dialer) tunnel(ctx context.Context, conn net.Conn) (net.Conn, error) {
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
		defer conn.SetDeadline(time.Time{})
	}

	target := d.connectTarget()
	req := &http.Request{
		Method: http.MethodConnect,
		URL:    &url.URL{Opaque: target},
		Host:   target,
		Header: make(http.Header),
	}
	if auth := proxyAuthorization(d.ProxyAuth); auth != "" {
		req.Header.Set("Proxy-Authorization", auth)
	}

	if err := req.Write(conn); err != nil {
		conn.Close()
		return nil, &BackendError{Op: "proxy connect", Addr: d.Proxy.String(), Err: err}
	}

	br := bufio.NewReader(conn)
	resp, err := http.ReadResponse(br, req)
	if err != nil {
		conn.Close()
		return nil, &BackendError{Op: "proxy connect", Addr: d.Proxy.String(), Err: err}
	}
	resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		conn.Close()
		return nil, &BackendError{
			Op:   "proxy connect",
			Addr: d.Proxy.String(),
			Err:  fmt.Errorf("tunnel to %s refused: %s", target, resp.Status),
		}
	}

	if br.Buffered() > 0 {
		return &bufferedConn{Conn: conn, r: br}, nil
	}
	return conn, nil
}

// proxyAuthorization builds a Basic credential from userinfo.
func proxyAuthorization(u *url.Userinfo) string {
	if u == nil {
		return ""
	}
	pass, _ := u.Password()
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(u.Username()+":"+pass))
}

// bufferedConn returns bytes the proxy sent right after its CONNECT
// response before reading from the socket again.
type bufferedConn struct {
	net.Conn
	r *bufio.Reader
}

func (c *bufferedConn) Read(p []byte) (int, error) {
	return c.r.Read(p)
}
