package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of environment variable overrides.
const EnvPrefix = "NGHTTPX_"

// loadFile decodes the YAML file at path over cfg. Fields absent from the
// document keep their current values.
//
// A missing file is an error only when explicit is true, so the default
// configuration path may be absent.
func loadFile(cfg *Config, path string, explicit bool) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		// An empty document decodes to io.EOF and leaves cfg untouched.
		if errors.Is(err, io.EOF) {
			return true, nil
		}
		return false, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	return true, nil
}

// applyEnvOverrides applies environment variable overrides to the
// configuration. Variables use the format NGHTTPX_SECTION_FIELD, e.g.
// NGHTTPX_FRONTEND_PORT. Values that fail to parse are reported.
func applyEnvOverrides(cfg *Config, getenv func(string) string) error {
	var errs []FieldError

	str := func(name string, dst *string) {
		if val := getenv(EnvPrefix + name); val != "" {
			*dst = val
		}
	}
	integer := func(name string, dst *int) {
		if val := getenv(EnvPrefix + name); val != "" {
			i, err := strconv.Atoi(val)
			if err != nil {
				errs = append(errs, FieldError{Field: EnvPrefix + name, Message: fmt.Sprintf("invalid integer %q", val)})
				return
			}
			*dst = i
		}
	}
	int64v := func(name string, dst *int64) {
		if val := getenv(EnvPrefix + name); val != "" {
			i, err := strconv.ParseInt(val, 10, 64)
			if err != nil {
				errs = append(errs, FieldError{Field: EnvPrefix + name, Message: fmt.Sprintf("invalid integer %q", val)})
				return
			}
			*dst = i
		}
	}
	boolean := func(name string, dst *bool) {
		if val := getenv(EnvPrefix + name); val != "" {
			b, err := strconv.ParseBool(val)
			if err != nil {
				errs = append(errs, FieldError{Field: EnvPrefix + name, Message: fmt.Sprintf("invalid boolean %q", val)})
				return
			}
			*dst = b
		}
	}
	float := func(name string, dst *float64) {
		if val := getenv(EnvPrefix + name); val != "" {
			f, err := strconv.ParseFloat(val, 64)
			if err != nil {
				errs = append(errs, FieldError{Field: EnvPrefix + name, Message: fmt.Sprintf("invalid number %q", val)})
				return
			}
			*dst = f
		}
	}
	duration := func(name string, dst *time.Duration) {
		if val := getenv(EnvPrefix + name); val != "" {
			d, err := time.ParseDuration(val)
			if err != nil {
				errs = append(errs, FieldError{Field: EnvPrefix + name, Message: fmt.Sprintf("invalid duration %q", val)})
				return
			}
			*dst = d
		}
	}

	// Frontend overrides
	str("FRONTEND_HOST", &cfg.Frontend.Host)
	integer("FRONTEND_PORT", &cfg.Frontend.Port)
	integer("FRONTEND_BACKLOG", &cfg.Frontend.Backlog)
	boolean("FRONTEND_NO_TLS", &cfg.Frontend.NoTLS)
	boolean("FRONTEND_REQUIRE_DUAL_STACK", &cfg.Frontend.RequireDualStack)
	duration("FRONTEND_READ_TIMEOUT", &cfg.Frontend.ReadTimeout)
	duration("FRONTEND_WRITE_TIMEOUT", &cfg.Frontend.WriteTimeout)
	duration("FRONTEND_HTTP2_READ_TIMEOUT", &cfg.Frontend.HTTP2ReadTimeout)

	// Backend overrides
	str("BACKEND_HOST", &cfg.Backend.Host)
	integer("BACKEND_PORT", &cfg.Backend.Port)
	boolean("BACKEND_NO_TLS", &cfg.Backend.NoTLS)
	boolean("BACKEND_IPV4", &cfg.Backend.IPv4)
	boolean("BACKEND_IPV6", &cfg.Backend.IPv6)
	str("BACKEND_HTTP_PROXY_URI", &cfg.Backend.HTTPProxyURI)
	str("BACKEND_TLS_SNI_FIELD", &cfg.Backend.TLSSNIField)
	duration("BACKEND_READ_TIMEOUT", &cfg.Backend.ReadTimeout)
	duration("BACKEND_WRITE_TIMEOUT", &cfg.Backend.WriteTimeout)
	duration("BACKEND_KEEP_ALIVE_TIMEOUT", &cfg.Backend.KeepAliveTimeout)
	boolean("BACKEND_ADD_X_FORWARDED_FOR", &cfg.Backend.AddXForwardedFor)
	boolean("BACKEND_NO_VIA", &cfg.Backend.NoVia)

	// Mode overrides
	boolean("MODE_HTTP2_PROXY", &cfg.Mode.HTTP2Proxy)
	boolean("MODE_HTTP2_BRIDGE", &cfg.Mode.HTTP2Bridge)
	boolean("MODE_CLIENT_PROXY", &cfg.Mode.ClientProxy)
	boolean("MODE_CLIENT", &cfg.Mode.Client)

	// TLS overrides
	str("TLS_PRIVATE_KEY_FILE", &cfg.TLS.PrivateKeyFile)
	str("TLS_CERT_FILE", &cfg.TLS.CertFile)
	str("TLS_PRIVATE_KEY_PASSWD_FILE", &cfg.TLS.PrivateKeyPasswdFile)
	str("TLS_CIPHERS", &cfg.TLS.Ciphers)
	str("TLS_MIN_VERSION", &cfg.TLS.MinVersion)
	boolean("TLS_VERIFY_CLIENT", &cfg.TLS.VerifyClient)
	str("TLS_VERIFY_CLIENT_CACERT", &cfg.TLS.VerifyClientCACert)
	str("TLS_CACERT", &cfg.TLS.CACert)
	boolean("TLS_INSECURE", &cfg.TLS.Insecure)
	str("TLS_CLIENT_PRIVATE_KEY_FILE", &cfg.TLS.ClientPrivateKeyFile)
	str("TLS_CLIENT_CERT_FILE", &cfg.TLS.ClientCertFile)
	boolean("TLS_WATCH_CERTIFICATES", &cfg.TLS.WatchCertificates)
	if val := getenv(EnvPrefix + "TLS_NPN_LIST"); val != "" {
		cfg.TLS.NPNList = SplitList(val)
	}

	// HTTP/2 overrides
	integer("HTTP2_WINDOW_BITS", &cfg.HTTP2.WindowBits)
	integer("HTTP2_BACKEND_WINDOW_BITS", &cfg.HTTP2.BackendWindowBits)

	// Rate limit overrides
	int64v("RATE_LIMIT_READ_RATE", &cfg.RateLimit.ReadRate)
	int64v("RATE_LIMIT_READ_BURST", &cfg.RateLimit.ReadBurst)
	int64v("RATE_LIMIT_WRITE_RATE", &cfg.RateLimit.WriteRate)
	int64v("RATE_LIMIT_WRITE_BURST", &cfg.RateLimit.WriteBurst)

	// Process overrides
	integer("PROCESS_WORKERS", &cfg.Process.Workers)
	str("PROCESS_USER", &cfg.Process.User)
	boolean("PROCESS_DAEMON", &cfg.Process.Daemon)
	str("PROCESS_PID_FILE", &cfg.Process.PIDFile)

	// Telemetry overrides
	str("TELEMETRY_LOGGING_LEVEL", &cfg.Telemetry.Logging.Level)
	str("TELEMETRY_LOGGING_FORMAT", &cfg.Telemetry.Logging.Format)
	boolean("TELEMETRY_LOGGING_SYSLOG", &cfg.Telemetry.Logging.Syslog)
	str("TELEMETRY_LOGGING_SYSLOG_FACILITY", &cfg.Telemetry.Logging.SyslogFacility)
	boolean("TELEMETRY_LOGGING_ACCESSLOG", &cfg.Telemetry.Logging.AccessLog)
	str("TELEMETRY_METRICS_LISTEN_ADDRESS", &cfg.Telemetry.Metrics.ListenAddress)
	str("TELEMETRY_METRICS_PATH", &cfg.Telemetry.Metrics.Path)
	boolean("TELEMETRY_TRACING_ENABLED", &cfg.Telemetry.Tracing.Enabled)
	str("TELEMETRY_TRACING_ENDPOINT", &cfg.Telemetry.Tracing.Endpoint)
	boolean("TELEMETRY_TRACING_INSECURE", &cfg.Telemetry.Tracing.Insecure)
	str("TELEMETRY_TRACING_SAMPLER", &cfg.Telemetry.Tracing.Sampler)
	float("TELEMETRY_TRACING_SAMPLE_RATIO", &cfg.Telemetry.Tracing.SampleRatio)
	str("TELEMETRY_TRACING_SERVICE_NAME", &cfg.Telemetry.Tracing.ServiceName)
	duration("TELEMETRY_TRACING_TIMEOUT", &cfg.Telemetry.Tracing.Timeout)

	// Secrets overrides
	str("SECRETS_ENV_PREFIX", &cfg.Secrets.EnvPrefix)
	str("SECRETS_DIR", &cfg.Secrets.Dir)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}

// SplitList splits a comma separated list, dropping empty items.
func SplitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// ParseHostPort parses the "HOST,PORT" syntax of --frontend and --backend.
// IPv6 literals may be given bare or in brackets.
func ParseHostPort(s string) (string, int, error) {
	i := strings.LastIndexByte(s, ',')
	if i < 0 {
		return "", 0, fmt.Errorf("%q: expected HOST,PORT", s)
	}

	host := s[:i]
	if strings.HasPrefix(host, "[") && strings.HasSuffix(host, "]") {
		host = host[1 : len(host)-1]
	}
	if host == "" {
		return "", 0, fmt.Errorf("%q: host is empty", s)
	}

	port, err := strconv.Atoi(s[i+1:])
	if err != nil || port < 0 || port > 65535 {
		return "", 0, fmt.Errorf("%q: invalid port %q", s, s[i+1:])
	}

	return host, port, nil
}
