package main

import (
	"crypto/x509"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	securityTLS "github.com/187j3x1/nghttp2/pkg/security/tls"
)

var certsValidateFlags struct {
	certFile   string
	keyFile    string
	passwdFile string
	caFile     string
}

var certsValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate certificate and key",
	Long: `Load a certificate and private key the way run does and report problems.

This command checks that:
  - the key matches the certificate, decrypting it with --passwd-file
  - the certificate is currently valid, warning below 30 days
  - the chain verifies against --ca, when given

Examples:
  nghttpx certs validate --cert server.crt --key server.key
  nghttpx certs validate --cert server.crt --key enc.key --passwd-file pw.txt
  nghttpx certs validate --cert server.crt --ca ca.pem`,
	RunE: validateCertificate,
}

func init() {
	certsCmd.AddCommand(certsValidateCmd)

	certsValidateCmd.Flags().StringVar(&certsValidateFlags.certFile, "cert", "", "certificate file (required)")
	certsValidateCmd.Flags().StringVar(&certsValidateFlags.keyFile, "key", "", "private key file")
	certsValidateCmd.Flags().StringVar(&certsValidateFlags.passwdFile, "passwd-file", "", "file holding the private key passphrase")
	certsValidateCmd.Flags().StringVar(&certsValidateFlags.caFile, "ca", "", "CA certificate file")

	_ = certsValidateCmd.MarkFlagRequired("cert")
}

func validateCertificate(cmd *cobra.Command, args []string) error {
	out := outWriter(cmd)
	fmt.Fprintf(out, "Validating certificate: %s\n\n", certsValidateFlags.certFile)

	cert, err := securityTLS.ReadCertificateFile(certsValidateFlags.certFile)
	if err != nil {
		return err
	}

	if certsValidateFlags.keyFile != "" {
		if _, err := securityTLS.LoadKeyPair(certsValidateFlags.certFile, certsValidateFlags.keyFile, certsValidateFlags.passwdFile); err != nil {
			fmt.Fprintln(out, "✗ Certificate and key do NOT match")
			return err
		}
		fmt.Fprintln(out, "✓ Certificate and key match")
	}

	if certsValidateFlags.caFile != "" {
		if err := validateChain(cert, certsValidateFlags.caFile); err != nil {
			fmt.Fprintln(out, "✗ Certificate chain invalid")
			return err
		}
		fmt.Fprintln(out, "✓ Certificate chain valid")
	}

	if err := securityTLS.ValidateX509Certificate(cert); err != nil {
		fmt.Fprintf(out, "✗ %v\n", err)
		return err
	}
	fmt.Fprintf(out, "✓ Certificate valid until %s\n", cert.NotAfter.Format("2006-01-02"))

	if days, warning := securityTLS.CheckCertificateExpiration(cert); warning != "" {
		fmt.Fprintf(out, "⚠  Certificate expires in %d days\n", days)
	}

	fmt.Fprintln(out, "\nCertificate Details:")
	fmt.Fprintf(out, "  Subject: %s\n", cert.Subject.CommonName)
	fmt.Fprintf(out, "  Issuer: %s\n", cert.Issuer.CommonName)
	fmt.Fprintf(out, "  Valid From: %s\n", cert.NotBefore.Format(time.RFC3339))
	fmt.Fprintf(out, "  SNI host names: %v\n", securityTLS.CertificateHostnames(cert))

	return nil
}

func validateChain(cert *x509.Certificate, caFile string) error {
	caPEM, err := os.ReadFile(caFile)
	if err != nil {
		return fmt.Errorf("failed to read CA certificate: %w", err)
	}

	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(caPEM) {
		return fmt.Errorf("failed to parse CA certificate")
	}

	if _, err := cert.Verify(x509.VerifyOptions{
		Roots:     pool,
		KeyUsages: []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}); err != nil {
		return fmt.Errorf("certificate chain verification failed: %w", err)
	}
	return nil
}
