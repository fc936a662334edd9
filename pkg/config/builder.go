package config

import (
	"context"
	"fmt"
	"os"
	"os/user"
	"strconv"

	"github.com/187j3x1/nghttp2/pkg/resolver"
	"github.com/187j3x1/nghttp2/pkg/security/secrets"
)

// Builder assembles a Config from its sources in precedence order:
// defaults, YAML file, environment, then programmatic overrides such as
// command-line flags. Build validates the result and computes Derived.
//
// Example:
//
//	b := config.NewBuilder()
//	if err := b.LoadFile(path, explicit); err != nil {
//	    return err
//	}
//	if err := b.ApplyEnv(); err != nil {
//	    return err
//	}
//	b.Apply(func(c *config.Config) { c.Frontend.Port = 8443 })
//	cfg, err := b.Build()
type Builder struct {
	cfg *Config

	// Source is the configuration file actually read, if any.
	Source string

	lookupUser func(name string) (*user.User, error)
	getenv     func(string) string
}

// NewBuilder returns a Builder seeded with DefaultConfig.
func NewBuilder() *Builder {
	return &Builder{
		cfg:        DefaultConfig(),
		lookupUser: lookupUser,
		getenv:     os.Getenv,
	}
}

// LoadFile decodes the YAML file at path over the current values. When
// explicit is false a missing file is silently skipped.
func (b *Builder) LoadFile(path string, explicit bool) error {
	read, err := loadFile(b.cfg, path, explicit)
	if err != nil {
		return err
	}
	if read {
		b.Source = path
	}
	return nil
}

// ApplyEnv applies NGHTTPX_* environment overrides.
func (b *Builder) ApplyEnv() error {
	return applyEnvOverrides(b.cfg, b.getenv)
}

// Apply runs fn against the configuration being built.
func (b *Builder) Apply(fn func(*Config)) *Builder {
	fn(b.cfg)
	return b
}

// Build validates the configuration, resolves the operating mode and
// derives computed fields. The returned Config is a copy; the Builder may
// be reused.
func (b *Builder) Build() (*Config, error) {
	cfg := b.cfg.clone()
	applyDefaults(cfg)

	var errs []FieldError
	if secrets.HasReferences(cfg.Backend.HTTPProxyURI) {
		uri, err := b.expandSecrets(cfg)
		if err != nil {
			errs = append(errs, FieldError{
				Field:   "backend.http_proxy_uri",
				Message: err.Error(),
			})
		}
		cfg.Backend.HTTPProxyURI = uri
	}
	if err := Validate(cfg); err != nil {
		errs = append(errs, err.(ValidationError).Errors...)
	}

	frontendTLS := !cfg.Frontend.NoTLS
	res, err := ResolveMode(cfg.Mode, frontendTLS, cfg.TLS.PrivateKeyFile, cfg.TLS.CertFile)
	if err != nil {
		errs = append(errs, err.(ValidationError).Errors...)
	}

	d := Derived{
		Mode:               res.Mode,
		ClientMode:         res.ClientMode,
		DownstreamProtocol: res.DownstreamProtocol,
		FrontendTLS:        frontendTLS && !res.ClientMode,
		BackendTLS:         (res.ClientMode || res.Mode == ModeHTTP2Bridge) && !cfg.Backend.NoTLS,
		BackendFamily:      resolver.FamilyAny,
		UID:                -1,
		GID:                -1,
	}

	switch {
	case cfg.Backend.IPv4:
		d.BackendFamily = resolver.FamilyIPv4
	case cfg.Backend.IPv6:
		d.BackendFamily = resolver.FamilyIPv6
	}

	if cfg.Backend.HTTPProxyURI != "" {
		// Syntax errors were reported by Validate.
		d.Proxy, _ = ParseProxyURI(cfg.Backend.HTTPProxyURI)
	}

	if cfg.Process.User != "" {
		uid, gid, err := b.resolveUser(cfg.Process.User)
		if err != nil {
			errs = append(errs, FieldError{
				Field:   "process.user",
				Message: err.Error(),
			})
		}
		d.UID, d.GID = uid, gid
	}

	if len(errs) > 0 {
		return nil, ValidationError{Errors: errs}
	}

	cfg.Derived = d
	return cfg, nil
}

// expandSecrets resolves ${secret:name} references in the proxy URI from
// the environment, then from Secrets.Dir when set.
func (b *Builder) expandSecrets(cfg *Config) (string, error) {
	providers := []secrets.Provider{secrets.NewEnvProvider(cfg.Secrets.EnvPrefix, b.getenv)}
	if cfg.Secrets.Dir != "" {
		fp, err := secrets.NewFileProvider(cfg.Secrets.Dir)
		if err != nil {
			return "", err
		}
		providers = append(providers, fp)
	}
	m := secrets.NewManager(nil, providers...)
	return m.Expand(context.Background(), cfg.Backend.HTTPProxyURI)
}

func (b *Builder) resolveUser(name string) (int, int, error) {
	u, err := b.lookupUser(name)
	if err != nil {
		return -1, -1, fmt.Errorf("could not get uid/gid of user %q: %w", name, err)
	}
	uid, err := strconv.Atoi(u.Uid)
	if err != nil {
		return -1, -1, fmt.Errorf("user %q has non-numeric uid %q", name, u.Uid)
	}
	gid, err := strconv.Atoi(u.Gid)
	if err != nil {
		return -1, -1, fmt.Errorf("user %q has non-numeric gid %q", name, u.Gid)
	}
	return uid, gid, nil
}

// lookupUser accepts a user name or a numeric uid.
func lookupUser(name string) (*user.User, error) {
	u, err := user.Lookup(name)
	if err == nil {
		return u, nil
	}
	if _, convErr := strconv.Atoi(name); convErr == nil {
		return user.LookupId(name)
	}
	return nil, err
}

// clone returns a copy that shares no slices with c.
func (c *Config) clone() *Config {
	out := *c
	out.TLS.Subcerts = append([]SubcertConfig(nil), c.TLS.Subcerts...)
	out.TLS.NPNList = append([]string(nil), c.TLS.NPNList...)
	return &out
}
