package secrets

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kevin07696/flutterwave-gateway/internal/domain/ports"
)

// Provider names a secret backend
type Provider string

const (
	ProviderNone  Provider = ""
	ProviderLocal Provider = "local"
	ProviderVault Provider = "vault"
	ProviderAWS   Provider = "aws"
)

// Config selects and configures a backend
type Config struct {
	Provider  Provider
	LocalPath string
	Vault     VaultConfig
	AWS       AWSConfig
}

// New builds the configured store. ProviderNone returns a nil store.
func New(ctx context.Context, cfg Config, logger *zap.Logger) (ports.SecretStore, error) {
	switch cfg.Provider {
	case ProviderNone:
		return nil, nil
	case ProviderLocal:
		return NewLocalStore(cfg.LocalPath, logger), nil
	case ProviderVault:
		store, err := NewVaultStore(ctx, cfg.Vault, logger)
		if err != nil {
			return nil, err
		}
		return store, nil
	case ProviderAWS:
		store, err := NewAWSStore(ctx, cfg.AWS, logger)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported secret provider: %s", cfg.Provider)
	}
}

// Ref points a config field at a secret path
type Ref struct {
	Name string
	Path string
	Dest *string
}

// Resolve fills each Dest from its Path. Refs without a path, or whose Dest
// is already set, are left alone.
func Resolve(ctx context.Context, store ports.SecretStore, refs ...Ref) error {
	for _, ref := range refs {
		if ref.Path == "" || *ref.Dest != "" {
			continue
		}
		if store == nil {
			return fmt.Errorf("%s references secret %q but no secret provider is configured", ref.Name, ref.Path)
		}
		value, err := store.GetSecret(ctx, ref.Path)
		if err != nil {
			return fmt.Errorf("resolve %s: %w", ref.Name, err)
		}
		*ref.Dest = value
	}
	return nil
}
