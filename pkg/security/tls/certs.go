package tls

import (
	"bytes"
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

// ValidateCertificate checks if a certificate is valid and not expired.
func ValidateCertificate(cert *tls.Certificate) error {
	if cert == nil {
		return fmt.Errorf("certificate is nil")
	}

	if len(cert.Certificate) == 0 {
		return fmt.Errorf("certificate chain is empty")
	}

	// Parse the leaf certificate
	x509Cert, err := x509.ParseCertificate(cert.Certificate[0])
	if err != nil {
		return fmt.Errorf("failed to parse certificate: %w", err)
	}

	return ValidateX509Certificate(x509Cert)
}

// ValidateX509Certificate validates an x509 certificate for expiration.
func ValidateX509Certificate(cert *x509.Certificate) error {
	now := time.Now()

	// Check if certificate is not yet valid
	if now.Before(cert.NotBefore) {
		return fmt.Errorf("certificate is not yet valid (valid from %s)", cert.NotBefore.Format(time.RFC3339))
	}

	// Check if certificate is expired
	if now.After(cert.NotAfter) {
		return fmt.Errorf("certificate expired on %s", cert.NotAfter.Format(time.RFC3339))
	}

	return nil
}

// CheckCertificateExpiration checks if a certificate is expiring soon.
// Returns the number of days until expiration and a warning if < 30 days.
func CheckCertificateExpiration(cert *x509.Certificate) (daysUntilExpiry int, warning string) {
	now := time.Now()
	duration := cert.NotAfter.Sub(now)
	daysUntilExpiry = int(duration.Hours() / 24)

	if daysUntilExpiry < 30 {
		warning = fmt.Sprintf("certificate expires in %d days (on %s)",
			daysUntilExpiry, cert.NotAfter.Format("2006-01-02"))
	}

	return daysUntilExpiry, warning
}

// CertificateInfo holds human-readable information from a certificate.
type CertificateInfo struct {
	Subject            string
	Issuer             string
	SerialNumber       string
	NotBefore          time.Time
	NotAfter           time.Time
	DNSNames           []string
	IPAddresses        []string
	SignatureAlgorithm string
	PublicKeyAlgorithm string

	// Hostnames are the keys the certificate is indexed under for SNI.
	Hostnames []string
}

// ExtractCertificateInfo extracts information from an x509 certificate.
func ExtractCertificateInfo(cert *x509.Certificate) *CertificateInfo {
	info := &CertificateInfo{
		Subject:            cert.Subject.String(),
		Issuer:             cert.Issuer.String(),
		SerialNumber:       fmt.Sprintf("%x", cert.SerialNumber),
		NotBefore:          cert.NotBefore,
		NotAfter:           cert.NotAfter,
		DNSNames:           cert.DNSNames,
		SignatureAlgorithm: cert.SignatureAlgorithm.String(),
		PublicKeyAlgorithm: cert.PublicKeyAlgorithm.String(),
		Hostnames:          CertificateHostnames(cert),
	}

	// Extract IP addresses
	for _, ip := range cert.IPAddresses {
		info.IPAddresses = append(info.IPAddresses, ip.String())
	}

	return info
}

// CertificateHostnames returns the names a certificate is served for:
// its SAN DNS names, or the subject common name when it has none.
// Names are lower-cased.
func CertificateHostnames(cert *x509.Certificate) []string {
	var names []string
	for _, name := range cert.DNSNames {
		if name != "" {
			names = append(names, strings.ToLower(name))
		}
	}
	if len(names) == 0 && cert.Subject.CommonName != "" {
		names = append(names, strings.ToLower(cert.Subject.CommonName))
	}
	return names
}

// ReadCertificateFile parses the first certificate of a PEM file.
func ReadCertificateFile(path string) (*x509.Certificate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read certificate %q: %w", path, err)
	}

	for {
		var block *pem.Block
		block, data = pem.Decode(data)
		if block == nil {
			return nil, fmt.Errorf("no certificate found in %q", path)
		}
		if block.Type != "CERTIFICATE" {
			continue
		}
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("failed to parse certificate %q: %w", path, err)
		}
		return cert, nil
	}
}

// LoadKeyPair loads a PEM certificate chain and private key. When the key
// is encrypted, the passphrase is read from the first line of passwdFile.
// The parsed leaf is attached to the returned certificate.
func LoadKeyPair(certFile, keyFile, passwdFile string) (*tls.Certificate, error) {
	certPEM, err := os.ReadFile(certFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read certificate: %w", err)
	}
	keyPEM, err := os.ReadFile(keyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read private key: %w", err)
	}

	keyPEM, err = decryptKeyPEM(keyPEM, passwdFile)
	if err != nil {
		return nil, err
	}

	cert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return nil, fmt.Errorf("failed to load key pair: %w", err)
	}

	if cert.Leaf == nil {
		cert.Leaf, err = x509.ParseCertificate(cert.Certificate[0])
		if err != nil {
			return nil, fmt.Errorf("failed to parse certificate: %w", err)
		}
	}

	return &cert, nil
}

// decryptKeyPEM returns keyPEM with a legacy encrypted PEM block
// decrypted. Unencrypted input is returned unchanged.
func decryptKeyPEM(keyPEM []byte, passwdFile string) ([]byte, error) {
	block, _ := pem.Decode(keyPEM)
	//nolint:staticcheck // RFC 1423 encrypted keys
	if block == nil || !x509.IsEncryptedPEMBlock(block) {
		return keyPEM, nil
	}

	if passwdFile == "" {
		return nil, errors.New("private key is encrypted but no passphrase file is configured")
	}
	passwd, err := readPasswd(passwdFile)
	if err != nil {
		return nil, err
	}

	//nolint:staticcheck // RFC 1423 encrypted keys
	der, err := x509.DecryptPEMBlock(block, passwd)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt private key: %w", err)
	}

	return pem.EncodeToMemory(&pem.Block{Type: block.Type, Bytes: der}), nil
}

func readPasswd(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read passphrase file: %w", err)
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		data = data[:i]
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("passphrase file %q is empty", path)
	}
	return data, nil
}
