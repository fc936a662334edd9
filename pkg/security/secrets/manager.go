package secrets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
)

// secretRefRegex matches ${secret:name} references.
var secretRefRegex = regexp.MustCompile(`\$\{secret:([^}]+)\}`)

// ErrNotFound is returned when no provider holds a secret.
var ErrNotFound = errors.New("secret not found")

// Manager resolves secrets from its providers in order; the first one
// holding a value wins.
type Manager struct {
	providers []Provider
	logger    *slog.Logger
}

// NewManager creates a Manager. A nil logger means slog.Default().
func NewManager(logger *slog.Logger, providers ...Provider) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{providers: providers, logger: logger}
}

// GetSecret returns the value of name from the first provider that has it.
func (m *Manager) GetSecret(ctx context.Context, name string) (string, error) {
	var errs []error
	for _, p := range m.providers {
		value, err := p.GetSecret(ctx, name)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
			continue
		}
		m.logger.Debug("secret resolved", "name", redactSecretName(name), "provider", p.Name())
		return value, nil
	}
	return "", fmt.Errorf("%w: %q: %w", ErrNotFound, name, errors.Join(errs...))
}

// HasReferences reports whether s contains a ${secret:name} reference.
func HasReferences(s string) bool {
	return secretRefRegex.MatchString(s)
}

// Expand replaces every ${secret:name} reference in input with its value.
// Unlike a template, a reference that cannot be resolved is an error.
func (m *Manager) Expand(ctx context.Context, input string) (string, error) {
	var failed []string
	var errs []error

	output := secretRefRegex.ReplaceAllStringFunc(input, func(match string) string {
		name := strings.TrimSpace(secretRefRegex.FindStringSubmatch(match)[1])
		value, err := m.GetSecret(ctx, name)
		if err != nil {
			failed = append(failed, name)
			errs = append(errs, err)
			return match
		}
		return value
	})

	if len(errs) > 0 {
		return "", fmt.Errorf("unresolved secret references %v: %w", failed, errors.Join(errs...))
	}
	return output, nil
}

// redactSecretName shortens a secret name for logging.
func redactSecretName(name string) string {
	if len(name) <= 4 {
		return "***"
	}
	return name[:2] + "..." + name[len(name)-2:]
}
