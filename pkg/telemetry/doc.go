// Package telemetry holds the observability packages of nghttpx.
//
//   - logging: slog loggers with text, JSON or syslog output and
//     credential redaction
//   - metrics: Prometheus collectors for connections, requests, TLS
//     handshakes and bootstrap phases
//   - tracing: OpenTelemetry spans for proxied requests, exported over
//     OTLP/gRPC
//   - health: liveness and readiness probes served next to /metrics
//
// Each package is configured from the telemetry section of the YAML
// configuration and wired together by package server.
package telemetry
