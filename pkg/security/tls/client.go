package tls

import (
	"crypto/tls"
	"fmt"
)

// ClientOptions configures the TLS client context used towards the
// downstream in client mode and HTTP/2 bridge mode.
type ClientOptions struct {
	// ServerName is sent as SNI and verified against the downstream
	// certificate.
	ServerName string

	// CACert is a PEM bundle added to the system pool.
	CACert string

	// Insecure disables downstream certificate verification.
	Insecure bool

	// ClientKeyFile and ClientCertFile present a client certificate.
	ClientKeyFile  string
	ClientCertFile string

	// PrivateKeyPasswdFile holds the passphrase for an encrypted client key.
	PrivateKeyPasswdFile string

	// NextProtos is offered through ALPN.
	NextProtos []string
}

// NewClientConfig builds a client tls.Config from o.
func NewClientConfig(o ClientOptions) (*tls.Config, error) {
	// #nosec G402 - InsecureSkipVerify is an explicit operator choice
	cfg := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		ServerName:         o.ServerName,
		InsecureSkipVerify: o.Insecure,
		NextProtos:         append([]string(nil), o.NextProtos...),
	}

	if o.CACert != "" {
		pool, err := loadCertPool(o.CACert, true)
		if err != nil {
			return nil, &LoadError{CertFile: o.CACert, Err: fmt.Errorf("failed to load CA certificate: %w", err)}
		}
		cfg.RootCAs = pool
	}

	if o.ClientCertFile != "" && o.ClientKeyFile != "" {
		cert, err := LoadKeyPair(o.ClientCertFile, o.ClientKeyFile, o.PrivateKeyPasswdFile)
		if err != nil {
			return nil, &LoadError{KeyFile: o.ClientKeyFile, CertFile: o.ClientCertFile, Err: err}
		}
		cfg.Certificates = []tls.Certificate{*cert}
	}

	return cfg, nil
}
