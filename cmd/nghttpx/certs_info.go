package main

import (
	"crypto/x509"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/187j3x1/nghttp2/pkg/cli"
	securityTLS "github.com/187j3x1/nghttp2/pkg/security/tls"
)

var infoFlags struct {
	format string
}

var certsInfoCmd = &cobra.Command{
	Use:   "info [cert-file]",
	Short: "Display certificate details",
	Long: `Display the subject, validity and SANs of a certificate together with
the host names the SNI lookup indexes it under. Wildcard names such as
*.example.com match exactly one label.

Examples:
  nghttpx certs info server.crt
  nghttpx certs info --format json server.crt`,
	Args: cobra.ExactArgs(1),
	RunE: displayCertInfo,
}

func init() {
	certsCmd.AddCommand(certsInfoCmd)

	certsInfoCmd.Flags().StringVar(&infoFlags.format, "format", "text", "output format: text, json, yaml")
}

// certReport is the structured form printed with --format json or yaml.
type certReport struct {
	File               string   `json:"file" yaml:"file"`
	Subject            string   `json:"subject" yaml:"subject"`
	Issuer             string   `json:"issuer" yaml:"issuer"`
	SerialNumber       string   `json:"serial_number" yaml:"serial_number"`
	NotBefore          string   `json:"not_before" yaml:"not_before"`
	NotAfter           string   `json:"not_after" yaml:"not_after"`
	DaysRemaining      int      `json:"days_remaining" yaml:"days_remaining"`
	Expired            bool     `json:"expired" yaml:"expired"`
	DNSNames           []string `json:"dns_names,omitempty" yaml:"dns_names,omitempty"`
	IPAddresses        []string `json:"ip_addresses,omitempty" yaml:"ip_addresses,omitempty"`
	SNIHostnames       []string `json:"sni_hostnames" yaml:"sni_hostnames"`
	KeyUsage           []string `json:"key_usage,omitempty" yaml:"key_usage,omitempty"`
	ExtKeyUsage        []string `json:"ext_key_usage,omitempty" yaml:"ext_key_usage,omitempty"`
	SignatureAlgorithm string   `json:"signature_algorithm" yaml:"signature_algorithm"`
	PublicKeyAlgorithm string   `json:"public_key_algorithm" yaml:"public_key_algorithm"`
	IsCA               bool     `json:"is_ca" yaml:"is_ca"`
}

func newCertReport(file string, cert *x509.Certificate) certReport {
	info := securityTLS.ExtractCertificateInfo(cert)
	days, _ := securityTLS.CheckCertificateExpiration(cert)
	return certReport{
		File:               file,
		Subject:            info.Subject,
		Issuer:             info.Issuer,
		SerialNumber:       info.SerialNumber,
		NotBefore:          info.NotBefore.Format(time.RFC3339),
		NotAfter:           info.NotAfter.Format(time.RFC3339),
		DaysRemaining:      days,
		Expired:            time.Now().After(cert.NotAfter),
		DNSNames:           info.DNSNames,
		IPAddresses:        info.IPAddresses,
		SNIHostnames:       info.Hostnames,
		KeyUsage:           getKeyUsages(cert.KeyUsage),
		ExtKeyUsage:        getExtKeyUsages(cert.ExtKeyUsage),
		SignatureAlgorithm: info.SignatureAlgorithm,
		PublicKeyAlgorithm: info.PublicKeyAlgorithm,
		IsCA:               cert.IsCA,
	}
}

func displayCertInfo(cmd *cobra.Command, args []string) error {
	cert, err := securityTLS.ReadCertificateFile(args[0])
	if err != nil {
		return err
	}

	report := newCertReport(args[0], cert)
	out := outWriter(cmd)

	if infoFlags.format == "text" || infoFlags.format == "" {
		printCertText(out, report)
		return nil
	}

	formatter, err := cli.NewFormatter(cli.OutputFormat(infoFlags.format))
	if err != nil {
		return cli.NewArgError("certs info", err.Error())
	}
	return formatter.FormatTo(out, report)
}

func printCertText(w io.Writer, r certReport) {
	fmt.Fprintf(w, "Certificate: %s\n\n", r.File)
	fmt.Fprintf(w, "Subject: %s\n", r.Subject)
	fmt.Fprintf(w, "Issuer:  %s\n", r.Issuer)

	fmt.Fprintln(w, "\nValidity:")
	fmt.Fprintf(w, "  Not Before: %s\n", r.NotBefore)
	fmt.Fprintf(w, "  Not After:  %s\n", r.NotAfter)
	switch {
	case r.Expired:
		fmt.Fprintln(w, "  Status: ✗ EXPIRED")
	case r.DaysRemaining < 30:
		fmt.Fprintf(w, "  Status: ⚠  expires in %d days\n", r.DaysRemaining)
	default:
		fmt.Fprintf(w, "  Status: ✓ Valid (%d days remaining)\n", r.DaysRemaining)
	}

	if len(r.DNSNames) > 0 || len(r.IPAddresses) > 0 {
		fmt.Fprintln(w, "\nSubject Alternative Names:")
		for _, san := range r.DNSNames {
			fmt.Fprintf(w, "  - DNS: %s\n", san)
		}
		for _, ip := range r.IPAddresses {
			fmt.Fprintf(w, "  - IP: %s\n", ip)
		}
	}

	fmt.Fprintln(w, "\nSNI host names:")
	if len(r.SNIHostnames) == 0 {
		fmt.Fprintln(w, "  (none, only usable as the default certificate)")
	}
	for _, name := range r.SNIHostnames {
		fmt.Fprintf(w, "  - %s\n", name)
	}

	if len(r.KeyUsage) > 0 {
		fmt.Fprintln(w, "\nKey Usage:")
		for _, usage := range r.KeyUsage {
			fmt.Fprintf(w, "  - %s\n", usage)
		}
	}
	if len(r.ExtKeyUsage) > 0 {
		fmt.Fprintln(w, "\nExtended Key Usage:")
		for _, usage := range r.ExtKeyUsage {
			fmt.Fprintf(w, "  - %s\n", usage)
		}
	}

	fmt.Fprintln(w, "\nAlgorithms:")
	fmt.Fprintf(w, "  Signature Algorithm: %s\n", r.SignatureAlgorithm)
	fmt.Fprintf(w, "  Public Key Algorithm: %s\n", r.PublicKeyAlgorithm)
	fmt.Fprintf(w, "\nSerial Number: %s\n", r.SerialNumber)
	fmt.Fprintf(w, "Is CA: %v\n", r.IsCA)
}

func getKeyUsages(usage x509.KeyUsage) []string {
	names := []struct {
		bit  x509.KeyUsage
		name string
	}{
		{x509.KeyUsageDigitalSignature, "Digital Signature"},
		{x509.KeyUsageContentCommitment, "Content Commitment"},
		{x509.KeyUsageKeyEncipherment, "Key Encipherment"},
		{x509.KeyUsageDataEncipherment, "Data Encipherment"},
		{x509.KeyUsageKeyAgreement, "Key Agreement"},
		{x509.KeyUsageCertSign, "Certificate Sign"},
		{x509.KeyUsageCRLSign, "CRL Sign"},
		{x509.KeyUsageEncipherOnly, "Encipher Only"},
		{x509.KeyUsageDecipherOnly, "Decipher Only"},
	}

	var usages []string
	for _, n := range names {
		if usage&n.bit != 0 {
			usages = append(usages, n.name)
		}
	}
	return usages
}

func getExtKeyUsages(usages []x509.ExtKeyUsage) []string {
	var result []string
	for _, usage := range usages {
		result = append(result, getExtKeyUsage(usage))
	}
	return result
}

func getExtKeyUsage(usage x509.ExtKeyUsage) string {
	switch usage {
	case x509.ExtKeyUsageAny:
		return "Any"
	case x509.ExtKeyUsageServerAuth:
		return "Server Authentication"
	case x509.ExtKeyUsageClientAuth:
		return "Client Authentication"
	case x509.ExtKeyUsageCodeSigning:
		return "Code Signing"
	case x509.ExtKeyUsageEmailProtection:
		return "Email Protection"
	case x509.ExtKeyUsageTimeStamping:
		return "Time Stamping"
	case x509.ExtKeyUsageOCSPSigning:
		return "OCSP Signing"
	default:
		return fmt.Sprintf("Unknown (%d)", usage)
	}
}

// outWriter returns the command output, or stdout when cmd is nil.
func outWriter(cmd *cobra.Command) io.Writer {
	if cmd == nil {
		return rootCmd.OutOrStdout()
	}
	return cmd.OutOrStdout()
}
