package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"github.com/187j3x1/nghttp2/internal/testutil"
)

// captureCmd returns a command whose output goes to the returned buffer.
func captureCmd() (*cobra.Command, *bytes.Buffer) {
	var buf bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&buf)
	return cmd, &buf
}

func TestCertsGenerate(t *testing.T) {
	outputDir := t.TempDir()

	tests := []struct {
		name    string
		hosts   string
		keySize int
		wantErr bool
	}{
		{name: "localhost", hosts: "localhost", keySize: 2048},
		{name: "wildcard and ip", hosts: "*.example.test, 127.0.0.1", keySize: 2048},
		{name: "invalid key size", hosts: "localhost", keySize: 1024, wantErr: true},
		{name: "no hosts", hosts: " , ", keySize: 2048, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			generateFlags.hosts = tt.hosts
			generateFlags.org = "Test"
			generateFlags.validity = 30
			generateFlags.keySize = tt.keySize
			generateFlags.output = filepath.Join(outputDir, strings.ReplaceAll(tt.name, " ", "-"))
			generateFlags.name = "server"

			cmd, _ := captureCmd()
			err := generateCertificate(cmd, nil)

			if tt.wantErr {
				if err == nil {
					t.Error("expected error but got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			keyPath := filepath.Join(generateFlags.output, "server.key")
			info, err := os.Stat(keyPath)
			if err != nil {
				t.Fatalf("key file not created: %v", err)
			}
			if mode := info.Mode().Perm(); mode != 0600 {
				t.Errorf("incorrect key file permissions: got %o, want 0600", mode)
			}

			certsValidateFlags.certFile = filepath.Join(generateFlags.output, "server.crt")
			certsValidateFlags.keyFile = keyPath
			certsValidateFlags.passwdFile = ""
			certsValidateFlags.caFile = ""
			if err := validateCertificate(cmd, nil); err != nil {
				t.Errorf("generated pair does not validate: %v", err)
			}
		})
	}
}

func TestCertsValidate(t *testing.T) {
	dir := t.TempDir()
	certPath, keyPath := testutil.WriteCertificate(t, dir, "server", testutil.CertOptions{
		CommonName: "localhost",
		DNSNames:   []string{"localhost"},
	})
	encCert, encKey := testutil.WriteCertificate(t, dir, "encrypted", testutil.CertOptions{
		CommonName: "secure.example",
		Passphrase: "s3cret",
	})
	passwdFile := filepath.Join(dir, "passwd")
	if err := os.WriteFile(passwdFile, []byte("s3cret\n"), 0600); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name       string
		certFile   string
		keyFile    string
		passwdFile string
		caFile     string
		wantErr    bool
	}{
		{name: "valid certificate and key", certFile: certPath, keyFile: keyPath},
		{name: "certificate only", certFile: certPath},
		{name: "self-signed chain", certFile: certPath, caFile: certPath},
		{name: "encrypted key", certFile: encCert, keyFile: encKey, passwdFile: passwdFile},
		{name: "encrypted key without passphrase", certFile: encCert, keyFile: encKey, wantErr: true},
		{name: "nonexistent certificate", certFile: filepath.Join(dir, "nonexistent.pem"), wantErr: true},
		{name: "mismatched certificate and key", certFile: certPath, keyFile: encKey, passwdFile: passwdFile, wantErr: true},
		{name: "wrong CA", certFile: certPath, caFile: encCert, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			certsValidateFlags.certFile = tt.certFile
			certsValidateFlags.keyFile = tt.keyFile
			certsValidateFlags.passwdFile = tt.passwdFile
			certsValidateFlags.caFile = tt.caFile

			cmd, _ := captureCmd()
			err := validateCertificate(cmd, nil)

			if tt.wantErr && err == nil {
				t.Error("expected error but got none")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestCertsInfo(t *testing.T) {
	dir := t.TempDir()
	certPath, _ := testutil.WriteCertificate(t, dir, "wildcard", testutil.CertOptions{
		CommonName: "example.test",
		DNSNames:   []string{"*.Example.test", "example.test"},
	})
	cnOnly, _ := testutil.WriteCertificate(t, dir, "cn", testutil.CertOptions{
		CommonName: "CN.example",
	})

	t.Run("json reports SNI host names", func(t *testing.T) {
		infoFlags.format = "json"
		cmd, buf := captureCmd()
		if err := displayCertInfo(cmd, []string{certPath}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var report certReport
		if err := json.Unmarshal(buf.Bytes(), &report); err != nil {
			t.Fatalf("output is not JSON: %v", err)
		}
		want := []string{"*.example.test", "example.test"}
		if !reflect.DeepEqual(report.SNIHostnames, want) {
			t.Errorf("SNI host names = %v, want %v", report.SNIHostnames, want)
		}
		if report.Expired || report.DaysRemaining < 300 {
			t.Errorf("validity = expired %t, %d days", report.Expired, report.DaysRemaining)
		}
	})

	t.Run("text falls back to common name", func(t *testing.T) {
		infoFlags.format = "text"
		cmd, buf := captureCmd()
		if err := displayCertInfo(cmd, []string{cnOnly}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "SNI host names:\n  - cn.example\n") {
			t.Errorf("unexpected output:\n%s", buf.String())
		}
	})

	t.Run("unknown format", func(t *testing.T) {
		infoFlags.format = "xml"
		cmd, _ := captureCmd()
		if err := displayCertInfo(cmd, []string{certPath}); err == nil {
			t.Error("expected error but got none")
		}
	})

	t.Run("nonexistent certificate", func(t *testing.T) {
		infoFlags.format = "text"
		cmd, _ := captureCmd()
		if err := displayCertInfo(cmd, []string{filepath.Join(dir, "nonexistent.pem")}); err == nil {
			t.Error("expected error but got none")
		}
	})
}
