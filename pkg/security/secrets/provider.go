package secrets

import "context"

// Provider retrieves secret values by name.
type Provider interface {
	// GetSecret returns the value of name, or an error when the provider
	// does not hold it.
	GetSecret(ctx context.Context, name string) (string, error)

	// Name identifies the provider in logs and errors.
	Name() string
}
