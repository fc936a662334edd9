package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/187j3x1/nghttp2/pkg/telemetry/logging"
)

// RequestRecorder receives one observation per completed request.
// *metrics.RequestMetrics implements it.
type RequestRecorder interface {
	RecordRequest(method string, code int, duration time.Duration)
}

// responseWriter wraps http.ResponseWriter to capture status code and
// body size.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	bytes      int64
	written    bool
}

// newResponseWriter creates a new response writer wrapper.
func newResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{
		ResponseWriter: w,
		statusCode:     http.StatusOK,
	}
}

// WriteHeader captures the status code before writing.
func (rw *responseWriter) WriteHeader(code int) {
	if !rw.written {
		rw.statusCode = code
		rw.written = code >= 200
	}
	rw.ResponseWriter.WriteHeader(code)
}

// Write ensures WriteHeader is called if not already done.
func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.written {
		rw.WriteHeader(http.StatusOK)
	}
	n, err := rw.ResponseWriter.Write(b)
	rw.bytes += int64(n)
	return n, err
}

// Unwrap lets http.ResponseController reach the underlying writer for
// flushing and deadlines.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Flush forwards to the underlying writer so streamed responses are not
// held back.
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// AccessLog records every request. When enabled is true it emits one
// "access" record at info level with the connection and request fields
// from the context; recorder, if non-nil, observes every request
// regardless.
func AccessLog(logger *slog.Logger, recorder RequestRecorder, enabled bool) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			startTime := time.Now()
			ctx := context.WithValue(r.Context(), StartTimeKey, startTime)

			rw := newResponseWriter(w)
			next.ServeHTTP(rw, r.WithContext(ctx))

			latency := time.Since(startTime)
			if recorder != nil {
				recorder.RecordRequest(r.Method, rw.statusCode, latency)
			}
			if !enabled {
				return
			}

			args := append(logging.Attrs(ctx),
				"method", r.Method,
				"uri", r.RequestURI,
				"proto", r.Proto,
				"status", rw.statusCode,
				"bytes", rw.bytes,
				"latency_ms", latency.Milliseconds(),
				"remote_addr", r.RemoteAddr,
				"user_agent", r.UserAgent(),
			)
			logger.InfoContext(ctx, "access", args...)
		})
	}
}

// GetStartTime extracts the request start time from the context.
// Returns zero time if not found.
func GetStartTime(ctx context.Context) time.Time {
	if startTime, ok := ctx.Value(StartTimeKey).(time.Time); ok {
		return startTime
	}
	return time.Time{}
}
