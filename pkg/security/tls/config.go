package tls

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"strings"
)

// ServerOptions configures the frontend TLS server context shared by every
// certificate the Dispatcher serves.
type ServerOptions struct {
	// MinVersion is the minimum TLS version to accept ("1.2" or "1.3").
	// Default: "1.2"
	MinVersion string

	// Ciphers is a comma separated list of cipher suite names.
	// If empty, Go's default secure cipher suites are used.
	Ciphers string

	// NextProtos is the ALPN list offered to clients, in preference order.
	NextProtos []string

	// VerifyClient requires and verifies a client certificate.
	VerifyClient bool

	// VerifyClientCACert is a PEM bundle used to verify client
	// certificates. When empty the system pool is used.
	VerifyClientCACert string

	// PrivateKeyPasswdFile holds the passphrase for encrypted keys.
	PrivateKeyPasswdFile string
}

// ParseVersion converts "1.2" or "1.3" to a tls.Version constant.
// An empty string selects TLS 1.2.
// TLS 1.0 and 1.1 are not supported due to security concerns.
func ParseVersion(v string) (uint16, error) {
	switch strings.TrimPrefix(strings.ToLower(v), "tlsv") {
	case "1.2", "":
		return tls.VersionTLS12, nil
	case "1.3":
		return tls.VersionTLS13, nil
	default:
		return 0, fmt.Errorf("unsupported TLS version %q: must be 1.2 or 1.3", v)
	}
}

// ParseCipherSuites converts a comma separated list of cipher suite names
// to their IDs. Unknown or insecure names are an error.
func ParseCipherSuites(list string) ([]uint16, error) {
	var suites []uint16
	for _, name := range strings.Split(list, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		id, ok := cipherSuiteMap[name]
		if !ok {
			return nil, fmt.Errorf("unknown or insecure cipher suite %q", name)
		}
		suites = append(suites, id)
	}
	return suites, nil
}

// cipherSuiteMap maps cipher suite names to their tls package constants.
// Only secure cipher suites are included.
var cipherSuiteMap = func() map[string]uint16 {
	m := make(map[string]uint16)
	for _, cs := range tls.CipherSuites() {
		m[cs.Name] = cs.ID
	}
	// Short names accepted by earlier releases
	m["TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305"] = tls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305_SHA256
	m["TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305"] = tls.TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305_SHA256
	return m
}()

// baseConfig builds the server tls.Config without certificates.
func (o ServerOptions) baseConfig() (*tls.Config, error) {
	minVersion, err := ParseVersion(o.MinVersion)
	if err != nil {
		return nil, err
	}

	var suites []uint16
	if o.Ciphers != "" {
		if suites, err = ParseCipherSuites(o.Ciphers); err != nil {
			return nil, err
		}
	}

	// #nosec G402 - MinVersion is validated (TLS 1.0/1.1 rejected)
	cfg := &tls.Config{
		MinVersion:   minVersion,
		CipherSuites: suites,
		NextProtos:   append([]string(nil), o.NextProtos...),
	}

	if o.VerifyClient {
		cfg.ClientAuth = tls.RequireAndVerifyClientCert
		if o.VerifyClientCACert != "" {
			pool, err := loadCertPool(o.VerifyClientCACert, false)
			if err != nil {
				return nil, fmt.Errorf("failed to load client CA: %w", err)
			}
			cfg.ClientCAs = pool
		}
	}

	return cfg, nil
}

// loadCertPool reads a PEM bundle, optionally on top of the system pool.
func loadCertPool(path string, withSystem bool) (*x509.CertPool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	pool := x509.NewCertPool()
	if withSystem {
		if sys, err := x509.SystemCertPool(); err == nil {
			pool = sys
		}
	}
	if !pool.AppendCertsFromPEM(data) {
		return nil, fmt.Errorf("no certificates found in %q", path)
	}
	return pool, nil
}
