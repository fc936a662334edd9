package tls

import (
	"crypto/tls"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/187j3x1/nghttp2/internal/testutil"
)

func writePair(t *testing.T, dir, name, cn string, dnsNames ...string) KeyCertPair {
	t.Helper()
	certPath, keyPath := testutil.WriteCertificate(t, dir, name, testutil.CertOptions{
		CommonName: cn,
		DNSNames:   dnsNames,
	})
	return KeyCertPair{KeyFile: keyPath, CertFile: certPath}
}

func leafCN(t *testing.T, cert *tls.Certificate) string {
	t.Helper()
	if cert == nil {
		t.Fatal("certificate is nil")
	}
	return cert.Leaf.Subject.CommonName
}

func TestBuildDispatcher_SNISelection(t *testing.T) {
	dir := t.TempDir()
	subcerts := []KeyCertPair{
		writePair(t, dir, "a", "a.example", "a.example"),
		writePair(t, dir, "b", "b.example", "b.example"),
		writePair(t, dir, "c", "wildcard-c", "*.c.example"),
	}
	def := writePair(t, dir, "d", "d.example", "d.example")

	var results []string
	d, err := BuildDispatcher(def.KeyFile, def.CertFile, subcerts, ServerOptions{},
		WithSelectionHook(func(r string) { results = append(results, r) }))
	if err != nil {
		t.Fatalf("BuildDispatcher failed: %v", err)
	}

	tests := []struct {
		serverName string
		wantCN     string
		wantResult string
	}{
		{serverName: "a.example", wantCN: "a.example", wantResult: SelectionSNI},
		{serverName: "B.Example.", wantCN: "b.example", wantResult: SelectionSNI},
		{serverName: "x.c.example", wantCN: "wildcard-c", wantResult: SelectionSNI},
		{serverName: "d.example", wantCN: "d.example", wantResult: SelectionSNI},
		{serverName: "z.example", wantCN: "d.example", wantResult: SelectionDefault},
		{serverName: "c.example", wantCN: "d.example", wantResult: SelectionDefault},
		{serverName: "y.x.c.example", wantCN: "d.example", wantResult: SelectionDefault},
		{serverName: "", wantCN: "d.example", wantResult: SelectionDefault},
	}

	for _, tt := range tests {
		t.Run(tt.serverName, func(t *testing.T) {
			results = nil
			cert, err := d.GetCertificate(&tls.ClientHelloInfo{ServerName: tt.serverName})
			if err != nil {
				t.Fatalf("GetCertificate failed: %v", err)
			}
			if got := leafCN(t, cert); got != tt.wantCN {
				t.Errorf("selected %q, want %q", got, tt.wantCN)
			}
			if len(results) != 1 || results[0] != tt.wantResult {
				t.Errorf("selection results = %v, want [%s]", results, tt.wantResult)
			}
		})
	}

	// 4 keys: a, b, *.c and d.
	if n := d.Tree().Len(); n != 4 {
		t.Errorf("tree has %d keys, want 4", n)
	}
}

func TestBuildDispatcher_NoSubcerts(t *testing.T) {
	dir := t.TempDir()
	def := writePair(t, dir, "default", "default.example", "default.example")

	d, err := BuildDispatcher(def.KeyFile, def.CertFile, nil, ServerOptions{})
	if err != nil {
		t.Fatalf("BuildDispatcher failed: %v", err)
	}
	if d.Tree() != nil {
		t.Error("expected no lookup tree without subcerts")
	}

	for _, name := range []string{"default.example", "other.example", ""} {
		cert, result := d.Select(name)
		if cert != d.Default() || result != SelectionDefault {
			t.Errorf("Select(%q) = %v/%s, want default", name, cert, result)
		}
	}
}

func TestBuildDispatcher_EarlierSubcertWins(t *testing.T) {
	dir := t.TempDir()
	first := writePair(t, dir, "first", "first", "shared.example")
	second := writePair(t, dir, "second", "second", "shared.example")
	def := writePair(t, dir, "default", "shared.example")

	d, err := BuildDispatcher(def.KeyFile, def.CertFile, []KeyCertPair{first, second}, ServerOptions{})
	if err != nil {
		t.Fatalf("BuildDispatcher failed: %v", err)
	}

	cert, _ := d.Select("shared.example")
	if got := leafCN(t, cert); got != "first" {
		t.Errorf("selected %q, want first", got)
	}
}

func TestBuildDispatcher_CommonNameFallback(t *testing.T) {
	dir := t.TempDir()
	sub := writePair(t, dir, "cn", "cn-only.example")
	def := writePair(t, dir, "default", "default.example", "default.example")

	d, err := BuildDispatcher(def.KeyFile, def.CertFile, []KeyCertPair{sub}, ServerOptions{})
	if err != nil {
		t.Fatalf("BuildDispatcher failed: %v", err)
	}

	cert, result := d.Select("cn-only.example")
	if result != SelectionSNI || leafCN(t, cert) != "cn-only.example" {
		t.Errorf("Select = %s/%s, want SNI match on common name", leafCN(t, cert), result)
	}
}

func TestBuildDispatcher_LoadErrors(t *testing.T) {
	dir := t.TempDir()
	good := writePair(t, dir, "good", "good.example", "good.example")
	garbage := filepath.Join(dir, "garbage.pem")
	if err := os.WriteFile(garbage, []byte("not a pem"), 0644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name       string
		defaultKey string
		defaultCrt string
		subcerts   []KeyCertPair
		opts       ServerOptions
	}{
		{
			name:       "missing default cert",
			defaultKey: good.KeyFile,
			defaultCrt: filepath.Join(dir, "absent.crt"),
		},
		{
			name:       "bad subcert",
			defaultKey: good.KeyFile,
			defaultCrt: good.CertFile,
			subcerts:   []KeyCertPair{{KeyFile: garbage, CertFile: garbage}},
		},
		{
			name:       "mismatched pair",
			defaultKey: writePair(t, dir, "other", "other").KeyFile,
			defaultCrt: good.CertFile,
		},
		{
			name:       "bad cipher",
			defaultKey: good.KeyFile,
			defaultCrt: good.CertFile,
			opts:       ServerOptions{Ciphers: "RC4"},
		},
		{
			name: "nothing configured",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := BuildDispatcher(tt.defaultKey, tt.defaultCrt, tt.subcerts, tt.opts)
			var loadErr *LoadError
			if !errors.As(err, &loadErr) {
				t.Fatalf("expected *LoadError, got %v", err)
			}
		})
	}
}

func TestBuildDispatcher_EncryptedKey(t *testing.T) {
	dir := t.TempDir()
	certPath, keyPath := testutil.WriteCertificate(t, dir, "enc", testutil.CertOptions{
		CommonName: "enc.example",
		DNSNames:   []string{"enc.example"},
		Passphrase: "s3cret",
	})

	if _, err := BuildDispatcher(keyPath, certPath, nil, ServerOptions{}); err == nil {
		t.Error("expected error without passphrase file")
	}

	passwd := filepath.Join(dir, "passwd")
	if err := os.WriteFile(passwd, []byte("s3cret\n"), 0600); err != nil {
		t.Fatal(err)
	}
	d, err := BuildDispatcher(keyPath, certPath, nil, ServerOptions{PrivateKeyPasswdFile: passwd})
	if err != nil {
		t.Fatalf("BuildDispatcher failed: %v", err)
	}
	if leafCN(t, d.Default()) != "enc.example" {
		t.Error("unexpected default certificate")
	}
}

func TestDispatcher_ServerConfig(t *testing.T) {
	dir := t.TempDir()
	def := writePair(t, dir, "default", "localhost", "localhost")

	d, err := BuildDispatcher(def.KeyFile, def.CertFile, nil, ServerOptions{
		MinVersion: "1.3",
		NextProtos: []string{"h2", "http/1.1"},
	})
	if err != nil {
		t.Fatalf("BuildDispatcher failed: %v", err)
	}

	cfg := d.ServerConfig()
	if cfg.MinVersion != tls.VersionTLS13 {
		t.Errorf("MinVersion = %x", cfg.MinVersion)
	}
	if len(cfg.NextProtos) != 2 || cfg.NextProtos[0] != "h2" {
		t.Errorf("NextProtos = %v", cfg.NextProtos)
	}
	if cfg.GetCertificate == nil {
		t.Error("GetCertificate not set")
	}
	if len(d.Files()) != 2 {
		t.Errorf("Files = %v, want cert and key", d.Files())
	}

	// Clones are independent
	cfg.NextProtos[0] = "mutated"
	if d.ServerConfig().NextProtos[0] != "h2" {
		t.Error("ServerConfig shares state between calls")
	}
}
