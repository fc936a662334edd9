package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	securityTLS "github.com/187j3x1/nghttp2/pkg/security/tls"
	"github.com/187j3x1/nghttp2/pkg/telemetry/health"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "frontend.port").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
// It implements the error interface and provides access to all field errors.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Validate validates the entire configuration and returns a ValidationError
// if any validation rules fail. It returns nil if the configuration is valid.
// All validation errors are collected and returned together.
//
// Mode exclusivity and required TLS material are checked by ResolveMode.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateFrontend(&cfg.Frontend)...)
	errs = append(errs, validateBackend(&cfg.Backend)...)
	errs = append(errs, validateTLS(&cfg.TLS)...)
	errs = append(errs, validateHTTP2(&cfg.HTTP2)...)
	errs = append(errs, validateRateLimit(&cfg.RateLimit)...)
	errs = append(errs, validateProcess(&cfg.Process)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}

	return nil
}

func validatePort(field string, port int) []FieldError {
	if port < 1 || port > 65535 {
		return []FieldError{{
			Field:   field,
			Message: fmt.Sprintf("port %d must be between 1 and 65535", port),
		}}
	}
	return nil
}

// validateFrontend validates the listening side.
func validateFrontend(cfg *FrontendConfig) []FieldError {
	var errs []FieldError

	// Port 0 lets the kernel pick; useful for tests and ephemeral setups.
	if cfg.Port < 0 || cfg.Port > 65535 {
		errs = append(errs, FieldError{
			Field:   "frontend.port",
			Message: fmt.Sprintf("port %d must be between 0 and 65535", cfg.Port),
		})
	}

	if cfg.Backlog < 1 {
		errs = append(errs, FieldError{
			Field:   "frontend.backlog",
			Message: "backlog must be positive",
		})
	}

	if cfg.ReadTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "frontend.read_timeout",
			Message: "read timeout must be positive",
		})
	}
	if cfg.WriteTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "frontend.write_timeout",
			Message: "write timeout must be positive",
		})
	}
	if cfg.HTTP2ReadTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "frontend.http2_read_timeout",
			Message: "HTTP/2 read timeout must be positive",
		})
	}

	return errs
}

// validateBackend validates the downstream server and proxy.
func validateBackend(cfg *BackendConfig) []FieldError {
	var errs []FieldError

	if cfg.Host == "" {
		errs = append(errs, FieldError{
			Field:   "backend.host",
			Message: "backend host is required",
		})
	}
	errs = append(errs, validatePort("backend.port", cfg.Port)...)

	if cfg.IPv4 && cfg.IPv6 {
		errs = append(errs, FieldError{
			Field:   "backend.ipv4",
			Message: "ipv4 and ipv6 cannot be used at the same time",
		})
	}

	if cfg.HTTPProxyURI != "" {
		if _, err := ParseProxyURI(cfg.HTTPProxyURI); err != nil {
			errs = append(errs, FieldError{
				Field:   "backend.http_proxy_uri",
				Message: err.Error(),
			})
		}
	}

	if cfg.ReadTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "backend.read_timeout",
			Message: "read timeout must be positive",
		})
	}
	if cfg.WriteTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "backend.write_timeout",
			Message: "write timeout must be positive",
		})
	}
	if cfg.KeepAliveTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "backend.keep_alive_timeout",
			Message: "keep-alive timeout must be positive",
		})
	}

	return errs
}

// validateTLS validates TLS knobs. File existence is checked when the
// material is loaded.
func validateTLS(cfg *TLSConfig) []FieldError {
	var errs []FieldError

	if _, err := securityTLS.ParseVersion(cfg.MinVersion); err != nil {
		errs = append(errs, FieldError{
			Field:   "tls.min_version",
			Message: err.Error(),
		})
	}

	if cfg.Ciphers != "" {
		if _, err := securityTLS.ParseCipherSuites(cfg.Ciphers); err != nil {
			errs = append(errs, FieldError{
				Field:   "tls.ciphers",
				Message: err.Error(),
			})
		}
	}

	for i, sc := range cfg.Subcerts {
		prefix := fmt.Sprintf("tls.subcerts[%d]", i)
		if sc.KeyFile == "" {
			errs = append(errs, FieldError{
				Field:   prefix + ".key_file",
				Message: "key file is required",
			})
		}
		if sc.CertFile == "" {
			errs = append(errs, FieldError{
				Field:   prefix + ".cert_file",
				Message: "certificate file is required",
			})
		}
	}

	if (cfg.ClientPrivateKeyFile == "") != (cfg.ClientCertFile == "") {
		errs = append(errs, FieldError{
			Field:   "tls.client_cert_file",
			Message: "client private key and certificate must be given together",
		})
	}

	for _, proto := range cfg.NPNList {
		if proto == "" || len(proto) > 255 {
			errs = append(errs, FieldError{
				Field:   "tls.npn_list",
				Message: fmt.Sprintf("invalid protocol identifier %q", proto),
			})
		}
	}

	return errs
}

// validateHTTP2 validates HTTP/2 session settings.
func validateHTTP2(cfg *HTTP2Config) []FieldError {
	var errs []FieldError

	if cfg.MaxConcurrentStreams == 0 {
		errs = append(errs, FieldError{
			Field:   "http2.max_concurrent_streams",
			Message: "max concurrent streams must be positive",
		})
	}
	if cfg.WindowBits < 0 || cfg.WindowBits > 30 {
		errs = append(errs, FieldError{
			Field:   "http2.window_bits",
			Message: "window bits must be between 0 and 30",
		})
	}
	if cfg.BackendWindowBits < 0 || cfg.BackendWindowBits > 30 {
		errs = append(errs, FieldError{
			Field:   "http2.backend_window_bits",
			Message: "window bits must be between 0 and 30",
		})
	}

	return errs
}

// validateRateLimit rejects negative rates. Zero means unlimited.
func validateRateLimit(cfg *RateLimitConfig) []FieldError {
	var errs []FieldError

	fields := []struct {
		name  string
		value int64
	}{
		{"rate_limit.read_rate", cfg.ReadRate},
		{"rate_limit.read_burst", cfg.ReadBurst},
		{"rate_limit.write_rate", cfg.WriteRate},
		{"rate_limit.write_burst", cfg.WriteBurst},
	}
	for _, f := range fields {
		if f.value < 0 {
			errs = append(errs, FieldError{
				Field:   f.name,
				Message: "must be non-negative (0 means unlimited)",
			})
		}
	}

	return errs
}

// validateProcess validates worker and daemon settings.
func validateProcess(cfg *ProcessConfig) []FieldError {
	var errs []FieldError

	if cfg.Workers < 1 {
		errs = append(errs, FieldError{
			Field:   "process.workers",
			Message: "workers must be at least 1",
		})
	}

	return errs
}

// validateTelemetry validates logging and metrics configuration.
func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[cfg.Logging.Level] {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("invalid logging level %q: must be 'debug', 'info', 'warn', or 'error'", cfg.Logging.Level),
		})
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[cfg.Logging.Format] {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("invalid logging format %q: must be 'json' or 'text'", cfg.Logging.Format),
		})
	}

	if cfg.Metrics.ListenAddress != "" && !strings.HasPrefix(cfg.Metrics.Path, "/") {
		errs = append(errs, FieldError{
			Field:   "telemetry.metrics.path",
			Message: "metrics path must start with /",
		})
	}
	if cfg.Metrics.Path == health.LivenessPath || cfg.Metrics.Path == health.ReadinessPath {
		errs = append(errs, FieldError{
			Field:   "telemetry.metrics.path",
			Message: fmt.Sprintf("metrics path %q is reserved for health probes", cfg.Metrics.Path),
		})
	}

	tr := cfg.Tracing
	validSamplers := map[string]bool{"always": true, "never": true, "ratio": true}
	if !validSamplers[tr.Sampler] {
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.sampler",
			Message: fmt.Sprintf("invalid sampler %q: must be 'always', 'never', or 'ratio'", tr.Sampler),
		})
	}
	if tr.SampleRatio < 0 || tr.SampleRatio > 1 {
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.sample_ratio",
			Message: "sample ratio must be between 0.0 and 1.0",
		})
	}
	if tr.Enabled && tr.Endpoint == "" {
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.endpoint",
			Message: "endpoint is required when tracing is enabled",
		})
	}

	return errs
}

// ParseProxyURI parses an HTTP proxy URI of the form
// http://[USER:PASS@]HOST:PORT. The port defaults to 80.
func ParseProxyURI(raw string) (*ProxyEndpoint, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid URI: %w", err)
	}
	if u.Scheme != "http" {
		return nil, fmt.Errorf("unsupported scheme %q: only http is supported", u.Scheme)
	}
	if u.Hostname() == "" {
		return nil, fmt.Errorf("URI %q has no host", raw)
	}

	port := 80
	if p := u.Port(); p != "" {
		port, err = strconv.Atoi(p)
		if err != nil || port < 1 || port > 65535 {
			return nil, fmt.Errorf("invalid port %q", p)
		}
	}

	return &ProxyEndpoint{
		Host:     u.Hostname(),
		Port:     port,
		Userinfo: u.User,
	}, nil
}
