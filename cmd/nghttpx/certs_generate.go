package main

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/187j3x1/nghttp2/pkg/config"
)

var generateFlags struct {
	hosts    string
	org      string
	validity int
	keySize  int
	output   string
	name     string
}

var certsGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate self-signed certificate",
	Long: `Generate a self-signed certificate and private key for testing.

The first host becomes the subject common name. Every host name, including
wildcards such as *.example.test, is added as a DNS SAN and so becomes an
SNI host name; IP addresses are added as IP SANs.

⚠️  WARNING: Self-signed certificates are for TESTING ONLY!

Examples:
  # server.crt and server.key for localhost in ./certs
  nghttpx certs generate --host localhost

  # A subcertificate for a wildcard domain
  nghttpx certs generate --host "*.example.test" --name wildcard`,
	RunE: generateCertificate,
}

func init() {
	certsCmd.AddCommand(certsGenerateCmd)

	certsGenerateCmd.Flags().StringVar(&generateFlags.hosts, "host", "localhost", "comma-separated hostnames and IPs")
	certsGenerateCmd.Flags().StringVar(&generateFlags.org, "org", "nghttpx", "organization name")
	certsGenerateCmd.Flags().IntVar(&generateFlags.validity, "validity", 365, "validity in days")
	certsGenerateCmd.Flags().IntVar(&generateFlags.keySize, "key-size", 2048, "RSA key size (2048, 3072, 4096)")
	certsGenerateCmd.Flags().StringVarP(&generateFlags.output, "output", "o", "certs", "output directory")
	certsGenerateCmd.Flags().StringVar(&generateFlags.name, "name", "server", "base name of the .crt and .key files")
}

func generateCertificate(cmd *cobra.Command, args []string) error {
	out := outWriter(cmd)

	if generateFlags.keySize != 2048 && generateFlags.keySize != 3072 && generateFlags.keySize != 4096 {
		return fmt.Errorf("invalid key size: %d (must be 2048, 3072, or 4096)", generateFlags.keySize)
	}

	hosts := config.SplitList(generateFlags.hosts)
	if len(hosts) == 0 {
		return fmt.Errorf("at least one host is required")
	}

	var dnsNames []string
	var ipAddresses []net.IP
	for _, host := range hosts {
		if ip := net.ParseIP(host); ip != nil {
			ipAddresses = append(ipAddresses, ip)
		} else {
			dnsNames = append(dnsNames, host)
		}
	}

	privateKey, err := rsa.GenerateKey(rand.Reader, generateFlags.keySize)
	if err != nil {
		return fmt.Errorf("failed to generate private key: %w", err)
	}

	serialNumber, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return fmt.Errorf("failed to generate serial number: %w", err)
	}

	notBefore := time.Now()
	notAfter := notBefore.AddDate(0, 0, generateFlags.validity)

	template := x509.Certificate{
		SerialNumber: serialNumber,
		Subject: pkix.Name{
			Organization: []string{generateFlags.org},
			CommonName:   hosts[0],
		},
		NotBefore:             notBefore,
		NotAfter:              notAfter,
		KeyUsage:              x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		DNSNames:              dnsNames,
		IPAddresses:           ipAddresses,
	}

	derBytes, err := x509.CreateCertificate(rand.Reader, &template, &template, &privateKey.PublicKey, privateKey)
	if err != nil {
		return fmt.Errorf("failed to create certificate: %w", err)
	}

	if err := os.MkdirAll(generateFlags.output, 0750); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	certPath := filepath.Join(generateFlags.output, generateFlags.name+".crt")
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: derBytes})
	if err := os.WriteFile(certPath, certPEM, 0644); err != nil {
		return fmt.Errorf("failed to write certificate: %w", err)
	}

	keyPath := filepath.Join(generateFlags.output, generateFlags.name+".key")
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(privateKey)})
	if err := os.WriteFile(keyPath, keyPEM, 0600); err != nil {
		return fmt.Errorf("failed to write private key: %w", err)
	}

	fmt.Fprintf(out, "✓ Certificate generated: %s\n", certPath)
	fmt.Fprintf(out, "✓ Private key generated: %s\n", keyPath)
	fmt.Fprintf(out, "  Hosts: %v\n", hosts)
	fmt.Fprintf(out, "  Valid until: %s\n", notAfter.Format("2006-01-02"))
	fmt.Fprintln(out)
	fmt.Fprintln(out, "⚠️  WARNING: Self-signed certificates are for TESTING ONLY")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Start the proxy with:")
	fmt.Fprintf(out, "  nghttpx run %s %s\n", keyPath, certPath)

	return nil
}
