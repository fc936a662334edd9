package secrets

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// DefaultEnvPrefix namespaces secrets read from the environment.
const DefaultEnvPrefix = "NGHTTPX_SECRET_"

// EnvProvider loads secrets from environment variables.
//
// Secret names are upper-cased with hyphens replaced by underscores and
// prefixed, so "proxy-password" is read from NGHTTPX_SECRET_PROXY_PASSWORD.
type EnvProvider struct {
	Prefix string

	getenv func(string) string
}

// NewEnvProvider creates a provider reading variables named Prefix+NAME.
// A nil getenv means os.Getenv.
func NewEnvProvider(prefix string, getenv func(string) string) *EnvProvider {
	if getenv == nil {
		getenv = os.Getenv
	}
	return &EnvProvider{Prefix: prefix, getenv: getenv}
}

// GetSecret returns the value of the variable derived from name.
func (p *EnvProvider) GetSecret(ctx context.Context, name string) (string, error) {
	envVar := p.envVar(name)
	value := p.getenv(envVar)
	if value == "" {
		return "", fmt.Errorf("environment variable %s is not set", envVar)
	}
	return value, nil
}

// Name returns "env".
func (p *EnvProvider) Name() string {
	return "env"
}

func (p *EnvProvider) envVar(name string) string {
	return p.Prefix + strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
}
