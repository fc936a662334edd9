package logging

import (
	"context"
	"net"
)

// Context keys for common log fields.
type contextKey string

const (
	// ConnIDKey is the context key for frontend connection ids.
	ConnIDKey contextKey = "conn_id"

	// RequestIDKey is the context key for request IDs.
	RequestIDKey contextKey = "request_id"

	// PeerKey is the context key for the client address.
	PeerKey contextKey = "peer"
)

// WithConnID adds a connection id to the context.
func WithConnID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ConnIDKey, id)
}

// GetConnID retrieves the connection id from the context.
func GetConnID(ctx context.Context) string {
	if id, ok := ctx.Value(ConnIDKey).(string); ok {
		return id
	}
	return ""
}

// WithRequestID adds a request ID to the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// GetRequestID retrieves the request ID from the context.
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// WithPeer adds the client address to the context.
func WithPeer(ctx context.Context, peer net.Addr) context.Context {
	return context.WithValue(ctx, PeerKey, peer)
}

// GetPeer retrieves the client address from the context.
func GetPeer(ctx context.Context) net.Addr {
	if peer, ok := ctx.Value(PeerKey).(net.Addr); ok {
		return peer
	}
	return nil
}

// Attrs returns the context fields as key-value pairs suitable for
// slog.Logger.With.
func Attrs(ctx context.Context) []any {
	return extractContextFields(ctx)
}

func extractContextFields(ctx context.Context) []any {
	var fields []any

	if id := GetConnID(ctx); id != "" {
		fields = append(fields, "conn_id", id)
	}
	if requestID := GetRequestID(ctx); requestID != "" {
		fields = append(fields, "request_id", requestID)
	}
	if peer := GetPeer(ctx); peer != nil {
		fields = append(fields, "peer", peer.String())
	}

	return fields
}
