package config

import (
	"time"

	"github.com/187j3x1/nghttp2/pkg/security/secrets"
)

// DefaultConfigPath is read when no --conf flag is given. It may be absent.
const DefaultConfigPath = "/etc/nghttpx/nghttpx.yaml"

// Default values for configuration fields.
const (
	// Frontend defaults
	DefaultFrontendHost             = "0.0.0.0"
	DefaultFrontendPort             = 3000
	DefaultBacklog                  = 256
	DefaultFrontendReadTimeout      = 180 * time.Second
	DefaultFrontendWriteTimeout     = 60 * time.Second
	DefaultFrontendHTTP2ReadTimeout = 180 * time.Second

	// Backend defaults
	DefaultBackendHost             = "127.0.0.1"
	DefaultBackendPort             = 80
	DefaultBackendReadTimeout      = 900 * time.Second
	DefaultBackendWriteTimeout     = 60 * time.Second
	DefaultBackendKeepAliveTimeout = 60 * time.Second

	// TLS defaults
	DefaultTLSMinVersion = "1.2"

	// HTTP/2 defaults
	DefaultMaxConcurrentStreams = 100
	DefaultWindowBits           = 16

	// Rate limit defaults, in bytes
	DefaultReadRate   = 1024 * 1024
	DefaultReadBurst  = 4 * 1024 * 1024
	DefaultWriteRate  = 0
	DefaultWriteBurst = 0

	// Process defaults
	DefaultWorkers = 1

	// Telemetry defaults
	DefaultLogLevel       = "warn"
	DefaultLogFormat      = "text"
	DefaultSyslogFacility = "daemon"
	DefaultMetricsPath    = "/metrics"
	DefaultTracingSampler = "ratio"
	DefaultSampleRatio    = 1.0
	DefaultServiceName    = "nghttpx"
	DefaultTracingTimeout = 10 * time.Second
)

// DefaultNPNList is the ALPN list offered when none is configured.
var DefaultNPNList = []string{"h2", "http/1.1"}

// DefaultConfig returns a configuration populated with default values only.
func DefaultConfig() *Config {
	return &Config{
		Frontend: FrontendConfig{
			Host:             DefaultFrontendHost,
			Port:             DefaultFrontendPort,
			Backlog:          DefaultBacklog,
			ReadTimeout:      DefaultFrontendReadTimeout,
			WriteTimeout:     DefaultFrontendWriteTimeout,
			HTTP2ReadTimeout: DefaultFrontendHTTP2ReadTimeout,
		},
		Backend: BackendConfig{
			Host:             DefaultBackendHost,
			Port:             DefaultBackendPort,
			ReadTimeout:      DefaultBackendReadTimeout,
			WriteTimeout:     DefaultBackendWriteTimeout,
			KeepAliveTimeout: DefaultBackendKeepAliveTimeout,
		},
		TLS: TLSConfig{
			MinVersion: DefaultTLSMinVersion,
		},
		HTTP2: HTTP2Config{
			MaxConcurrentStreams: DefaultMaxConcurrentStreams,
			WindowBits:           DefaultWindowBits,
			BackendWindowBits:    DefaultWindowBits,
		},
		RateLimit: RateLimitConfig{
			ReadRate:   DefaultReadRate,
			ReadBurst:  DefaultReadBurst,
			WriteRate:  DefaultWriteRate,
			WriteBurst: DefaultWriteBurst,
		},
		Process: ProcessConfig{
			Workers: DefaultWorkers,
		},
		Telemetry: TelemetryConfig{
			Logging: LoggingConfig{
				Level:          DefaultLogLevel,
				Format:         DefaultLogFormat,
				SyslogFacility: DefaultSyslogFacility,
			},
			Metrics: MetricsConfig{
				Path: DefaultMetricsPath,
			},
			Tracing: TracingConfig{
				Sampler:     DefaultTracingSampler,
				SampleRatio: DefaultSampleRatio,
				ServiceName: DefaultServiceName,
				Timeout:     DefaultTracingTimeout,
			},
		},
		Secrets: SecretsConfig{
			EnvPrefix: secrets.DefaultEnvPrefix,
		},
		Derived: Derived{
			UID: -1,
			GID: -1,
		},
	}
}

// applyDefaults fills fields a YAML document may have cleared.
func applyDefaults(cfg *Config) {
	if len(cfg.TLS.NPNList) == 0 {
		cfg.TLS.NPNList = append([]string(nil), DefaultNPNList...)
	}
	if cfg.TLS.MinVersion == "" {
		cfg.TLS.MinVersion = DefaultTLSMinVersion
	}
	if cfg.Telemetry.Metrics.Path == "" {
		cfg.Telemetry.Metrics.Path = DefaultMetricsPath
	}
	if cfg.Telemetry.Logging.SyslogFacility == "" {
		cfg.Telemetry.Logging.SyslogFacility = DefaultSyslogFacility
	}
	if cfg.Telemetry.Tracing.Sampler == "" {
		cfg.Telemetry.Tracing.Sampler = DefaultTracingSampler
	}
	if cfg.Telemetry.Tracing.ServiceName == "" {
		cfg.Telemetry.Tracing.ServiceName = DefaultServiceName
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = DefaultLogFormat
	}
	if cfg.Secrets.EnvPrefix == "" {
		cfg.Secrets.EnvPrefix = secrets.DefaultEnvPrefix
	}
}
