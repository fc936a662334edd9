package tls

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Selection results reported to the selection hook.
const (
	SelectionSNI     = "sni"
	SelectionDefault = "default"
	SelectionNone    = "none"
)

// KeyCertPair names a private key file and its certificate chain file.
type KeyCertPair struct {
	KeyFile  string
	CertFile string
}

// LoadError reports a key pair that could not be loaded or indexed.
type LoadError struct {
	KeyFile  string
	CertFile string
	Err      error
}

func (e *LoadError) Error() string {
	if e.KeyFile == "" && e.CertFile == "" {
		return fmt.Sprintf("tls: %v", e.Err)
	}
	return fmt.Sprintf("tls: key %q, certificate %q: %v", e.KeyFile, e.CertFile, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// DispatchOption configures a Dispatcher.
type DispatchOption func(*Dispatcher)

// WithLogger sets the logger used while loading certificates.
func WithLogger(logger *slog.Logger) DispatchOption {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

// WithSelectionHook registers fn to observe the outcome of each handshake's
// certificate selection (SelectionSNI, SelectionDefault or SelectionNone).
func WithSelectionHook(fn func(result string)) DispatchOption {
	return func(d *Dispatcher) {
		d.onSelect = fn
	}
}

// Dispatcher selects the frontend certificate for each TLS handshake by
// SNI. It is built once and is safe for concurrent use.
type Dispatcher struct {
	defaultCert *tls.Certificate
	tree        *CertLookupTree
	base        *tls.Config
	files       []string

	logger   *slog.Logger
	onSelect func(result string)
}

// BuildDispatcher loads the default key pair and any subcertificates.
//
// When subcerts is non-empty a CertLookupTree is created and every
// subcertificate is indexed, in order, under each of its host names. The
// default pair, when configured, is loaded afterwards and indexed last, so
// an earlier subcertificate keeps any name it shares with the default.
func BuildDispatcher(defaultKey, defaultCert string, subcerts []KeyCertPair, opts ServerOptions, dopts ...DispatchOption) (*Dispatcher, error) {
	d := &Dispatcher{logger: slog.Default()}
	for _, opt := range dopts {
		opt(d)
	}

	base, err := opts.baseConfig()
	if err != nil {
		return nil, &LoadError{Err: err}
	}
	d.base = base

	if len(subcerts) > 0 {
		d.tree = NewCertLookupTree()
	}

	for _, sc := range subcerts {
		cert, err := d.load(sc.CertFile, sc.KeyFile, opts.PrivateKeyPasswdFile)
		if err != nil {
			return nil, &LoadError{KeyFile: sc.KeyFile, CertFile: sc.CertFile, Err: err}
		}
		if err := d.index(cert); err != nil {
			return nil, &LoadError{KeyFile: sc.KeyFile, CertFile: sc.CertFile, Err: err}
		}
	}

	if defaultKey != "" && defaultCert != "" {
		cert, err := d.load(defaultCert, defaultKey, opts.PrivateKeyPasswdFile)
		if err != nil {
			return nil, &LoadError{KeyFile: defaultKey, CertFile: defaultCert, Err: err}
		}
		d.defaultCert = cert
		if d.tree != nil {
			if err := d.index(cert); err != nil {
				return nil, &LoadError{KeyFile: defaultKey, CertFile: defaultCert, Err: err}
			}
		}
	}

	if d.defaultCert == nil && d.tree == nil {
		return nil, &LoadError{Err: errors.New("no certificate configured")}
	}

	return d, nil
}

// load reads one key pair and logs its validity.
func (d *Dispatcher) load(certFile, keyFile, passwdFile string) (*tls.Certificate, error) {
	cert, err := LoadKeyPair(certFile, keyFile, passwdFile)
	if err != nil {
		return nil, err
	}
	d.files = append(d.files, certFile, keyFile)
	d.logCertificateInfo(certFile, cert.Leaf)
	return cert, nil
}

// index adds cert to the tree under each of its host names.
func (d *Dispatcher) index(cert *tls.Certificate) error {
	names := CertificateHostnames(cert.Leaf)
	if len(names) == 0 {
		return errors.New("certificate has neither DNS names nor a common name")
	}
	for _, name := range names {
		if !d.tree.Add(name, cert) {
			d.logger.Debug("SNI name already indexed, keeping earlier certificate", "hostname", name)
		}
	}
	return nil
}

// logCertificateInfo logs information about a loaded certificate.
func (d *Dispatcher) logCertificateInfo(file string, leaf *x509.Certificate) {
	if err := ValidateX509Certificate(leaf); err != nil {
		d.logger.Warn("certificate is not currently valid",
			"cert_file", file,
			"error", err,
		)
		return
	}

	daysUntilExpiry, warning := CheckCertificateExpiration(leaf)
	if warning != "" {
		d.logger.Warn("certificate expiring soon",
			"cert_file", file,
			"subject", leaf.Subject.CommonName,
			"expires_in_days", daysUntilExpiry,
			"expires_at", leaf.NotAfter.Format(time.RFC3339),
		)
		return
	}

	d.logger.Info("certificate loaded",
		"cert_file", file,
		"subject", leaf.Subject.CommonName,
		"hostnames", CertificateHostnames(leaf),
		"expires_in_days", daysUntilExpiry,
	)
}

// GetCertificate implements tls.Config.GetCertificate.
func (d *Dispatcher) GetCertificate(hello *tls.ClientHelloInfo) (*tls.Certificate, error) {
	cert, result := d.Select(hello.ServerName)
	if d.onSelect != nil {
		d.onSelect(result)
	}
	if cert == nil {
		return nil, fmt.Errorf("tls: no certificate for server name %q", hello.ServerName)
	}
	return cert, nil
}

// Select returns the certificate served for serverName and how it was
// chosen. Names that match nothing get the default certificate.
func (d *Dispatcher) Select(serverName string) (*tls.Certificate, string) {
	if d.tree != nil && serverName != "" {
		if cert := d.tree.Lookup(serverName); cert != nil {
			return cert, SelectionSNI
		}
	}
	if d.defaultCert != nil {
		return d.defaultCert, SelectionDefault
	}
	return nil, SelectionNone
}

// Default returns the default certificate, or nil.
func (d *Dispatcher) Default() *tls.Certificate {
	return d.defaultCert
}

// Tree returns the SNI lookup tree, or nil when no subcertificates are
// configured.
func (d *Dispatcher) Tree() *CertLookupTree {
	return d.tree
}

// Files returns every certificate and key file that was loaded.
func (d *Dispatcher) Files() []string {
	return append([]string(nil), d.files...)
}

// ServerConfig returns a tls.Config that selects certificates through the
// Dispatcher. Each call returns a fresh clone.
func (d *Dispatcher) ServerConfig() *tls.Config {
	cfg := d.base.Clone()
	cfg.GetCertificate = d.GetCertificate
	return cfg
}
