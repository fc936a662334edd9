// Package tracing records OpenTelemetry spans for proxied requests.
//
// Each request gets one server span that continues the client's W3C trace
// context, if any. The proxy injects its own span into the request sent
// to the backend, so backend spans become children of the proxy span.
// Spans are exported over OTLP gRPC.
//
//	telemetry:
//	  tracing:
//	    enabled: true
//	    endpoint: localhost:4317
//	    insecure: true
//	    sampler: ratio
//	    sample_ratio: 0.1
//
// When tracing is disabled the Tracer is a no-op: Middleware returns the
// handler unchanged and Inject leaves headers alone.
package tracing
