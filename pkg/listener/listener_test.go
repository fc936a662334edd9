package listener

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/187j3x1/nghttp2/pkg/resolver"
)

type recordingObserver struct {
	mu       sync.Mutex
	bound    []resolver.Family
	accepted int
	failed   int
}

func (o *recordingObserver) ListenerBound(f resolver.Family) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.bound = append(o.bound, f)
}

func (o *recordingObserver) ConnectionAccepted(resolver.Family) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.accepted++
}

func (o *recordingObserver) AcceptFailed(resolver.Family) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.failed++
}

func (o *recordingObserver) counts() (int, int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.accepted, o.failed
}

func TestBind_IPv4Loopback(t *testing.T) {
	l, err := Bind(context.Background(), "127.0.0.1", 0, resolver.FamilyIPv4, 16)
	if err != nil {
		t.Fatalf("Bind failed: %v", err)
	}
	if l == nil {
		t.Fatal("expected a listener")
	}
	defer l.Close()

	addr := l.Addr().(*net.TCPAddr)
	if addr.Port == 0 || !addr.IP.Equal(net.IPv4(127, 0, 0, 1)) {
		t.Errorf("bound to %v", addr)
	}
	if l.Family() != resolver.FamilyIPv4 {
		t.Errorf("Family = %v", l.Family())
	}
}

func TestBind_NoCandidates(t *testing.T) {
	tests := []struct {
		name   string
		host   string
		family resolver.Family
	}{
		{name: "IPv4 literal for IPv6", host: "127.0.0.1", family: resolver.FamilyIPv6},
		{name: "IPv6 literal for IPv4", host: "::1", family: resolver.FamilyIPv4},
		{name: "unresolvable host", host: "does-not-exist.invalid", family: resolver.FamilyIPv4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := Bind(context.Background(), tt.host, 0, tt.family, 16)
			if err != nil {
				t.Fatalf("expected nil error, got %v", err)
			}
			if l != nil {
				l.Close()
				t.Fatal("expected no listener")
			}
		})
	}
}

func TestBind_AddressInUse(t *testing.T) {
	first, err := Bind(context.Background(), "127.0.0.1", 0, resolver.FamilyIPv4, 16)
	if err != nil || first == nil {
		t.Fatalf("first Bind failed: %v", err)
	}
	defer first.Close()

	port := first.Addr().(*net.TCPAddr).Port
	second, err := Bind(context.Background(), "127.0.0.1", port, resolver.FamilyIPv4, 16)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if second != nil {
		second.Close()
		t.Fatal("expected bind conflict to yield no listener")
	}
}

func TestListener_Serve(t *testing.T) {
	obs := &recordingObserver{}
	l, err := Bind(context.Background(), "127.0.0.1", 0, resolver.FamilyIPv4, 16)
	if err != nil || l == nil {
		t.Fatalf("Bind failed: %v", err)
	}
	l.observer = obs
	defer l.Close()

	peers := make(chan net.Addr, 1)
	sink := SinkFunc(func(conn net.Conn, peer net.Addr) {
		conn.Close()
		peers <- peer
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Serve(ctx, sink) }()

	client, err := net.Dial("tcp", l.Addr().String())
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer client.Close()

	select {
	case peer := <-peers:
		if peer.String() != client.LocalAddr().String() {
			t.Errorf("peer = %v, want %v", peer, client.LocalAddr())
		}
	case <-time.After(2 * time.Second):
		t.Fatal("connection not delivered to sink")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}

	if accepted, _ := obs.counts(); accepted != 1 {
		t.Errorf("accepted = %d, want 1", accepted)
	}

	// The socket is still open until the owner closes it.
	if err := l.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Errorf("second Close returned %v", err)
	}
}

// flakyListener fails the first Accept and then delivers queued conns.
type flakyListener struct {
	conns  chan net.Conn
	failed bool
	closed chan struct{}
	once   sync.Once
}

func newFlakyListener() *flakyListener {
	return &flakyListener{conns: make(chan net.Conn, 1), closed: make(chan struct{})}
}

func (f *flakyListener) Accept() (net.Conn, error) {
	if !f.failed {
		f.failed = true
		return nil, errors.New("accept: too many open files")
	}
	select {
	case c := <-f.conns:
		return c, nil
	case <-f.closed:
		return nil, net.ErrClosed
	}
}

func (f *flakyListener) Close() error {
	f.once.Do(func() { close(f.closed) })
	return nil
}

func (f *flakyListener) Addr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 3000}
}

func TestListener_ServeContinuesAfterAcceptError(t *testing.T) {
	fl := newFlakyListener()
	obs := &recordingObserver{}
	l := New(fl, resolver.FamilyIPv4, WithObserver(obs))

	server, client := net.Pipe()
	defer client.Close()
	fl.conns <- server

	got := make(chan net.Conn, 1)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- l.Serve(ctx, SinkFunc(func(conn net.Conn, _ net.Addr) { got <- conn }))
	}()

	select {
	case conn := <-got:
		conn.Close()
	case <-time.After(2 * time.Second):
		t.Fatal("connection not delivered after accept error")
	}

	// No SetDeadline: cancellation falls back to closing the listener.
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return")
	}

	if accepted, failed := obs.counts(); accepted != 1 || failed != 1 {
		t.Errorf("accepted/failed = %d/%d, want 1/1", accepted, failed)
	}
}
