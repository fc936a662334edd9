package secrets

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestEnvProvider_GetSecret(t *testing.T) {
	env := map[string]string{
		"NGHTTPX_SECRET_PROXY_PASSWORD": "s3cret",
		"PLAIN":                         "value",
	}
	getenv := func(k string) string { return env[k] }

	tests := []struct {
		name    string
		prefix  string
		secret  string
		want    string
		wantErr bool
	}{
		{name: "hyphens become underscores", prefix: DefaultEnvPrefix, secret: "proxy-password", want: "s3cret"},
		{name: "case is normalized", prefix: DefaultEnvPrefix, secret: "Proxy-Password", want: "s3cret"},
		{name: "no prefix", prefix: "", secret: "plain", want: "value"},
		{name: "unset", prefix: DefaultEnvPrefix, secret: "missing", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewEnvProvider(tt.prefix, getenv)
			got, err := p.GetSecret(context.Background(), tt.secret)
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error, got %q", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("GetSecret(%q) = %q, want %q", tt.secret, got, tt.want)
			}
		})
	}
}

func TestFileProvider_GetSecret(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string, mode os.FileMode) {
		t.Helper()
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(content), mode); err != nil {
			t.Fatal(err)
		}
		if err := os.Chmod(path, mode); err != nil {
			t.Fatal(err)
		}
	}
	write("proxy-password", "  s3cret\n", 0600)
	write("read-only", "ro", 0400)
	write("world-readable", "leaked", 0644)
	if err := os.Mkdir(filepath.Join(dir, "subdir"), 0700); err != nil {
		t.Fatal(err)
	}

	p, err := NewFileProvider(dir)
	if err != nil {
		t.Fatalf("NewFileProvider failed: %v", err)
	}

	tests := []struct {
		name    string
		secret  string
		want    string
		wantErr bool
	}{
		{name: "trimmed value", secret: "proxy-password", want: "s3cret"},
		{name: "0400 accepted", secret: "read-only", want: "ro"},
		{name: "insecure permissions", secret: "world-readable", wantErr: true},
		{name: "missing", secret: "absent", wantErr: true},
		{name: "directory", secret: "subdir", wantErr: true},
		{name: "traversal", secret: "../outside-secret", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := p.GetSecret(context.Background(), tt.secret)
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error, got %q", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("GetSecret(%q) = %q, want %q", tt.secret, got, tt.want)
			}
		})
	}
}

func TestNewFileProvider_InvalidDir(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "file")
	if err := os.WriteFile(file, nil, 0600); err != nil {
		t.Fatal(err)
	}

	for _, path := range []string{filepath.Join(dir, "absent"), file} {
		if _, err := NewFileProvider(path); err == nil {
			t.Errorf("NewFileProvider(%q) should fail", path)
		}
	}
}
