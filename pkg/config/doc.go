// Package config provides configuration management for nghttpx.
//
// This package handles loading, validating, and deriving configuration from
// defaults, a YAML file, environment variable overrides and command-line
// flags. The result is an immutable *Config passed to every component.
//
// # Configuration Precedence
//
// Configuration values are applied in the following order (later overrides earlier):
//
//  1. Default values (defined in defaults.go)
//  2. Values from the YAML file (DefaultConfigPath unless --conf is given)
//  3. Environment variable overrides (NGHTTPX_SECTION_FIELD)
//  4. Command-line flags, applied through Builder.Apply
//  5. Validation and derivation (Builder.Build)
//
// # Environment Variable Overrides
//
// Environment variables follow the naming convention NGHTTPX_SECTION_FIELD.
// For example:
//
//   - NGHTTPX_FRONTEND_PORT overrides frontend.port
//   - NGHTTPX_BACKEND_HTTP_PROXY_URI overrides backend.http_proxy_uri
//   - NGHTTPX_TELEMETRY_LOGGING_LEVEL overrides telemetry.logging.level
//
// # Operating Modes
//
// ResolveMode turns the four mode flags into a Mode, whether client mode is
// active, and the downstream protocol:
//
//	mode           client mode  downstream
//	reverse        no           http/1.1
//	http2-proxy    no           http/1.1
//	http2-bridge   no           h2
//	client-proxy   yes          h2
//	client         yes          h2
//
// # Validation
//
// Build collects every problem into a single ValidationError: port and
// backlog ranges, worker count, window bits, backend family exclusivity,
// proxy URI syntax, cipher and version names, mode exclusivity and required
// TLS material.
package config
