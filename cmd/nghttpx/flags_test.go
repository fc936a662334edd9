package main

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/187j3x1/nghttp2/pkg/config"
	"github.com/187j3x1/nghttp2/pkg/server"
)

// parseFlags registers fresh proxy flags on a throwaway command and
// parses argv into them.
func parseFlags(t *testing.T, argv ...string) (*cobra.Command, *proxyFlags, []string) {
	t.Helper()
	cmd := &cobra.Command{Use: "test"}
	f := &proxyFlags{}
	f.register(cmd)
	if err := cmd.ParseFlags(argv); err != nil {
		t.Fatalf("ParseFlags(%v) failed: %v", argv, err)
	}
	return cmd, f, cmd.Flags().Args()
}

func TestProxyFlags_Overrides(t *testing.T) {
	tests := []struct {
		name  string
		argv  []string
		check func(t *testing.T, c *config.Config)
	}{
		{
			name: "bracketed IPv6 frontend",
			argv: []string{"--frontend", "[::1],8443"},
			check: func(t *testing.T, c *config.Config) {
				if c.Frontend.Host != "::1" || c.Frontend.Port != 8443 {
					t.Errorf("frontend = %s,%d", c.Frontend.Host, c.Frontend.Port)
				}
			},
		},
		{
			name: "backend and family",
			argv: []string{"-b", "backend.example,443", "--backend-ipv6"},
			check: func(t *testing.T, c *config.Config) {
				if c.Backend.Host != "backend.example" || c.Backend.Port != 443 || !c.Backend.IPv6 {
					t.Errorf("backend = %+v", c.Backend)
				}
			},
		},
		{
			name: "repeated subcerts",
			argv: []string{"--subcert", "a.key:a.crt", "--subcert", "b.key:b.crt"},
			check: func(t *testing.T, c *config.Config) {
				want := []config.SubcertConfig{{KeyFile: "a.key", CertFile: "a.crt"}, {KeyFile: "b.key", CertFile: "b.crt"}}
				if !reflect.DeepEqual(c.TLS.Subcerts, want) {
					t.Errorf("subcerts = %+v", c.TLS.Subcerts)
				}
			},
		},
		{
			name: "explicit zero rate",
			argv: []string{"--read-rate", "0", "--write-burst", "65536"},
			check: func(t *testing.T, c *config.Config) {
				if c.RateLimit.ReadRate != 0 || c.RateLimit.WriteBurst != 65536 {
					t.Errorf("rate limit = %+v", c.RateLimit)
				}
			},
		},
		{
			name: "unset flags keep configured values",
			argv: []string{"--workers", "4"},
			check: func(t *testing.T, c *config.Config) {
				if c.Process.Workers != 4 {
					t.Errorf("workers = %d", c.Process.Workers)
				}
				if c.Frontend.Port != 9000 || c.RateLimit.ReadRate != 1048576 {
					t.Errorf("unset flag overrode config: port=%d read_rate=%d", c.Frontend.Port, c.RateLimit.ReadRate)
				}
			},
		},
		{
			name: "positional key and certificate",
			argv: []string{"--npn-list", "h2", "server.key", "server.crt"},
			check: func(t *testing.T, c *config.Config) {
				if c.TLS.PrivateKeyFile != "server.key" || c.TLS.CertFile != "server.crt" {
					t.Errorf("key/cert = %q/%q", c.TLS.PrivateKeyFile, c.TLS.CertFile)
				}
				if !reflect.DeepEqual(c.TLS.NPNList, []string{"h2"}) {
					t.Errorf("npn list = %v", c.TLS.NPNList)
				}
			},
		},
		{
			name: "HTTP/2 streams and window sizes",
			argv: []string{"-c", "250", "--frontend-http2-window-bits", "18", "--backend-http2-window-bits", "20"},
			check: func(t *testing.T, c *config.Config) {
				h := c.HTTP2
				if h.MaxConcurrentStreams != 250 || h.WindowBits != 18 || h.BackendWindowBits != 20 {
					t.Errorf("http2 = %+v", h)
				}
			},
		},
		{
			name: "timeouts and modes",
			argv: []string{"--client-proxy", "--backend-read-timeout", "30s", "-k"},
			check: func(t *testing.T, c *config.Config) {
				if !c.Mode.ClientProxy || !c.TLS.Insecure || c.Backend.ReadTimeout != 30*time.Second {
					t.Errorf("mode=%+v insecure=%t read_timeout=%s", c.Mode, c.TLS.Insecure, c.Backend.ReadTimeout)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, f, args := parseFlags(t, tt.argv...)
			apply, err := f.overrides(cmd, args)
			if err != nil {
				t.Fatalf("overrides failed: %v", err)
			}

			cfg := config.DefaultConfig()
			cfg.Frontend.Port = 9000
			apply(cfg)
			tt.check(t, cfg)
		})
	}
}

func TestProxyFlags_OverridesErrors(t *testing.T) {
	tests := []struct {
		name string
		argv []string
	}{
		{"frontend without port", []string{"--frontend", "localhost"}},
		{"backend port out of range", []string{"--backend", "localhost,70000"}},
		{"subcert without separator", []string{"--subcert", "a.key"}},
		{"single positional", []string{"server.key"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, f, args := parseFlags(t, tt.argv...)
			if _, err := f.overrides(cmd, args); err == nil {
				t.Error("expected error but got none")
			}
		})
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nghttpx.yaml")
	if err := os.WriteFile(path, []byte("frontend:\n  port: 4000\n  no_tls: true\n"), 0600); err != nil {
		t.Fatal(err)
	}

	orig := rootFlags.conf
	rootFlags.conf = path
	defer func() { rootFlags.conf = orig }()

	cmd, f, args := parseFlags(t, "--backend", "127.0.0.1,8080")
	cfg, source, err := loadConfig(cmd, f, args)
	if err != nil {
		t.Fatalf("loadConfig failed: %v", err)
	}
	if source != path {
		t.Errorf("source = %q, want %q", source, path)
	}
	if cfg.Frontend.Port != 4000 || cfg.Derived.FrontendTLS {
		t.Errorf("file not applied: port=%d tls=%t", cfg.Frontend.Port, cfg.Derived.FrontendTLS)
	}
	if cfg.Backend.Port != 8080 {
		t.Errorf("flag not applied: backend port %d", cfg.Backend.Port)
	}
}

func TestLoadConfig_Errors(t *testing.T) {
	orig := rootFlags.conf
	defer func() { rootFlags.conf = orig }()
	rootFlags.conf = filepath.Join(t.TempDir(), "absent.yaml")

	tests := []struct {
		name string
		argv []string
	}{
		{"conflicting modes", []string{"--frontend-no-tls", "--client", "--http2-proxy"}},
		{"TLS frontend without certificate", nil},
		{"bad frontend", []string{"--frontend", "nope"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, f, args := parseFlags(t, tt.argv...)
			_, _, err := loadConfig(cmd, f, args)
			if server.KindOf(err) != server.KindConfiguration {
				t.Errorf("error = %v, want configuration error", err)
			}
		})
	}
}
