package tracing

import (
	"context"
	"net/http"

	"go.opentelemetry.io/otel/propagation"
)

// Extract returns ctx carrying the trace context found in headers
// (traceparent, tracestate and baggage). A disabled Tracer returns ctx.
func (t *Tracer) Extract(ctx context.Context, headers http.Header) context.Context {
	if t.propagator == nil {
		return ctx
	}
	return t.propagator.Extract(ctx, propagation.HeaderCarrier(headers))
}

// Inject writes the trace context of ctx into headers. A disabled Tracer
// leaves headers as they are, so client trace headers reach the backend
// unchanged.
//
// The proxy calls it on every outbound request:
//
//	traceparent: 00-4bf92f3577b34da6a3ce929d0e0e4736-<proxy span id>-01
func (t *Tracer) Inject(ctx context.Context, headers http.Header) {
	if t.propagator == nil {
		return
	}
	t.propagator.Inject(ctx, propagation.HeaderCarrier(headers))
}
