package ports

import (
	"context"
	"errors"
)

// ErrSecretNotFound is returned when a secret path does not exist
var ErrSecretNotFound = errors.New("secret not found")

// SecretStore reads secrets from a secret management backend.
// Paths are backend specific:
//   - local: file path relative to the base directory
//   - vault: KV path under the configured mount
//   - aws: secret name or ARN
type SecretStore interface {
	GetSecret(ctx context.Context, path string) (string, error)
}
