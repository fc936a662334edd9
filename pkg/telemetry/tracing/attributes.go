package tracing

import (
	"net"
	"net/http"
	"strconv"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/187j3x1/nghttp2/pkg/telemetry/logging"
)

// Attribute keys. Standard keys follow the OpenTelemetry HTTP semantic
// conventions; proxy specific keys use the "nghttpx." namespace.
const (
	AttrMethod          = "http.request.method"
	AttrStatusCode      = "http.response.status_code"
	AttrURLPath         = "url.path"
	AttrServerAddress   = "server.address"
	AttrClientAddress   = "client.address"
	AttrProtocolVersion = "network.protocol.version"

	AttrConnID    = "nghttpx.conn_id"
	AttrRequestID = "nghttpx.request_id"
)

// RequestAttributes describes r. Connection and request ids are taken
// from the request context when present.
func RequestAttributes(r *http.Request) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(AttrMethod, r.Method),
		attribute.String(AttrURLPath, r.URL.Path),
		attribute.String(AttrServerAddress, r.Host),
		attribute.String(AttrProtocolVersion, protocolVersion(r)),
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		attrs = append(attrs, attribute.String(AttrClientAddress, host))
	}
	if id := logging.GetConnID(r.Context()); id != "" {
		attrs = append(attrs, attribute.String(AttrConnID, id))
	}
	if id := logging.GetRequestID(r.Context()); id != "" {
		attrs = append(attrs, attribute.String(AttrRequestID, id))
	}
	return attrs
}

// SetResponseStatus records the status sent to the client. Server errors
// mark the span failed.
func SetResponseStatus(span trace.Span, code int) {
	span.SetAttributes(attribute.Int(AttrStatusCode, code))
	if code >= 500 {
		span.SetStatus(codes.Error, http.StatusText(code))
	}
}

func protocolVersion(r *http.Request) string {
	if r.ProtoMajor >= 2 {
		return strconv.Itoa(r.ProtoMajor)
	}
	return strconv.Itoa(r.ProtoMajor) + "." + strconv.Itoa(r.ProtoMinor)
}
