package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/187j3x1/nghttp2/pkg/lifecycle"
	"github.com/187j3x1/nghttp2/pkg/listener"
	"github.com/187j3x1/nghttp2/pkg/resolver"
)

var (
	_ listener.Observer  = (*ListenerMetrics)(nil)
	_ lifecycle.Observer = (*LifecycleMetrics)(nil)
)

func TestCollector_NewCollector(t *testing.T) {
	registry := prometheus.NewRegistry()
	c := NewCollector(Config{}, registry)

	if c.Registry() != registry {
		t.Error("Collector registry not set correctly")
	}
	if c.Listener == nil || c.Lifecycle == nil || c.TLS == nil || c.RateLimit == nil || c.Request == nil {
		t.Fatal("metric groups not initialized")
	}

	if c2 := NewCollector(Config{ProcessCollectors: true}, nil); c2.Registry() == nil {
		t.Error("expected a private registry")
	}
}

func TestListenerMetrics(t *testing.T) {
	c := NewCollector(Config{}, nil)

	c.Listener.ListenerBound(resolver.FamilyIPv6)
	c.Listener.ListenerBound(resolver.FamilyIPv4)
	c.Listener.ConnectionAccepted(resolver.FamilyIPv4)
	c.Listener.ConnectionAccepted(resolver.FamilyIPv4)
	c.Listener.AcceptFailed(resolver.FamilyIPv6)

	expected := `
# HELP nghttpx_connections_accepted_total Total number of accepted frontend connections
# TYPE nghttpx_connections_accepted_total counter
nghttpx_connections_accepted_total{family="IPv4"} 2
`
	if err := testutil.CollectAndCompare(c.Listener.accepted, strings.NewReader(expected)); err != nil {
		t.Error(err)
	}
	if got := testutil.ToFloat64(c.Listener.bound.WithLabelValues("IPv6")); got != 1 {
		t.Errorf("IPv6 listeners = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.Listener.acceptErrors.WithLabelValues("IPv6")); got != 1 {
		t.Errorf("IPv6 accept errors = %v, want 1", got)
	}
}

func TestLifecycleMetrics(t *testing.T) {
	c := NewCollector(Config{}, nil)

	c.Lifecycle.PhaseEntered(lifecycle.PhaseServing)
	c.Lifecycle.WorkerStarted(0)
	c.Lifecycle.WorkerStarted(1)
	c.Lifecycle.WorkerStopped(0)

	if got := testutil.ToFloat64(c.Lifecycle.phase); got != float64(lifecycle.PhaseServing) {
		t.Errorf("phase = %v", got)
	}
	if got := testutil.ToFloat64(c.Lifecycle.workers); got != 1 {
		t.Errorf("workers = %v, want 1", got)
	}
}

func TestTLSAndRateLimitMetrics(t *testing.T) {
	c := NewCollector(Config{}, nil)

	c.TLS.ObserveSelection("sni")
	c.TLS.ObserveSelection("sni")
	c.TLS.ObserveSelection("default")
	c.RateLimit.ObserveWait("read")

	if got := testutil.ToFloat64(c.TLS.selections.WithLabelValues("sni")); got != 2 {
		t.Errorf("sni selections = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.TLS.selections.WithLabelValues("default")); got != 1 {
		t.Errorf("default selections = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.RateLimit.waits.WithLabelValues("read")); got != 1 {
		t.Errorf("read waits = %v, want 1", got)
	}
}

func TestRequestMetrics(t *testing.T) {
	c := NewCollector(Config{DurationBuckets: []float64{0.1, 1}}, nil)

	tests := []struct {
		method    string
		code      int
		wantLabel string
	}{
		{method: "GET", code: 200, wantLabel: "GET"},
		{method: "CONNECT", code: 501, wantLabel: "CONNECT"},
		{method: "BREW", code: 400, wantLabel: "OTHER"},
	}

	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			c.Request.RecordRequest(tt.method, tt.code, 50*time.Millisecond)
			counter := c.Request.requestsTotal.WithLabelValues(tt.wantLabel, strconv.Itoa(tt.code))
			if got := testutil.ToFloat64(counter); got != 1 {
				t.Errorf("requests_total = %v, want 1", got)
			}
		})
	}

	if n := testutil.CollectAndCount(c.Request.requestDuration); n != 3 {
		t.Errorf("duration series = %d, want 3", n)
	}
}

func TestHandler(t *testing.T) {
	c := NewCollector(Config{}, nil)
	c.Listener.ConnectionAccepted(resolver.FamilyIPv4)

	srv := httptest.NewServer(c.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), `nghttpx_connections_accepted_total{family="IPv4"} 1`) {
		t.Errorf("metric missing from exposition:\n%s", body)
	}
}
