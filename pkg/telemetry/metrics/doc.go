// Package metrics exposes Prometheus metrics for the proxy.
//
// A Collector owns a private registry and a set of metric groups. Each
// group implements the observer interface of the component it measures,
// so components stay free of Prometheus imports:
//
//   - ListenerMetrics implements listener.Observer
//   - LifecycleMetrics implements lifecycle.Observer
//   - TLSMetrics.ObserveSelection is a tls.WithSelectionHook callback
//   - RateLimitMetrics.ObserveWait is a ratelimit.WithWaitHook callback
//   - RequestMetrics records one observation per proxied request
//
// Metrics:
//
//	nghttpx_listeners_bound{family}
//	nghttpx_connections_accepted_total{family}
//	nghttpx_accept_errors_total{family}
//	nghttpx_lifecycle_phase
//	nghttpx_workers_running
//	nghttpx_tls_certificate_selections_total{result}
//	nghttpx_rate_limit_waits_total{direction}
//	nghttpx_requests_total{method,code}
//	nghttpx_request_duration_seconds{method}
//
// The registry is served by Handler, typically on a separate listen
// address configured under telemetry.metrics.
package metrics
