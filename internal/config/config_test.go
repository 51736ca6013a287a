package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/kevin07696/flutterwave-gateway/internal/adapters/flutterwave"
	"github.com/kevin07696/flutterwave-gateway/internal/adapters/secrets"
)

func TestLoadFromEnv_Defaults(t *testing.T) {
	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Addr())
	assert.Equal(t, "sandbox", cfg.Gateway.Environment)
	assert.Equal(t, flutterwave.DefaultTimeout, cfg.Gateway.Timeout)
	assert.Equal(t, 5*time.Minute, cfg.Cron.SweepInterval)
	assert.Equal(t, 30*24*time.Hour, cfg.Cron.WebhookRetention)
	assert.Equal(t, "flutterwave:access_token", cfg.Redis.TokenKey)
	assert.Empty(t, cfg.Secrets.Provider)
}

func TestLoadFromEnv_Overrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9000")
	t.Setenv("FLUTTERWAVE_ENV", "production")
	t.Setenv("FLUTTERWAVE_TIMEOUT", "45")
	t.Setenv("SWEEP_INTERVAL", "90s")
	t.Setenv("RATE_LIMIT_RPS", "2.5")
	t.Setenv("LOG_DEVELOPMENT", "true")
	t.Setenv("DB_MAX_CONNS", "not-a-number")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "production", cfg.Gateway.Environment)
	assert.Equal(t, 45*time.Second, cfg.Gateway.Timeout)
	assert.Equal(t, 90*time.Second, cfg.Cron.SweepInterval)
	assert.Equal(t, 2.5, cfg.RateLimit.RPS)
	assert.True(t, cfg.Logger.Development)
	assert.Equal(t, int32(25), cfg.Database.MaxConns)
}

func TestLoadFromEnv_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "unknown environment", env: map[string]string{"FLUTTERWAVE_ENV": "staging"}},
		{name: "port out of range", env: map[string]string{"SERVER_PORT": "70000"}},
		{name: "negative retries", env: map[string]string{"FLUTTERWAVE_MAX_RETRIES": "-1"}},
		{name: "unknown secret provider", env: map[string]string{"SECRET_PROVIDER": "gcp"}},
		{name: "vault without address", env: map[string]string{"SECRET_PROVIDER": "vault"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := LoadFromEnv()
			assert.Error(t, err)
		})
	}
}

func TestGatewayConfig(t *testing.T) {
	cfg := &Config{Gateway: GatewayConfig{
		Environment:  "production",
		ClientID:     "client",
		ClientSecret: "secret",
		SecretHash:   "hash",
		APIVersion:   "2024-01-01",
		Timeout:      10 * time.Second,
		MaxRetries:   1,
	}}

	gw := cfg.GatewayConfig()
	assert.Equal(t, flutterwave.EnvironmentProduction, gw.Environment)
	assert.Equal(t, flutterwave.ProductionBaseURL, gw.BaseURL)
	assert.True(t, gw.OAuthConfigured())
	assert.Equal(t, "hash", gw.SecretHash)
	assert.Equal(t, 1, gw.MaxRetries)
	assert.NotNil(t, gw.RetryBackoff)

	cfg.Gateway.BaseURL = "http://localhost:9999"
	assert.Equal(t, "http://localhost:9999", cfg.GatewayConfig().BaseURL)
}

func TestSecretsConfig(t *testing.T) {
	cfg := &Config{Secrets: SecretsConfig{
		Provider:     "vault",
		VaultAddress: "https://vault.internal:8200",
		VaultAuth:    "approle",
		VaultRoleID:  "role",
		VaultMount:   "kv",
		VaultKV:      "v1",
		AWSRegion:    "eu-west-1",
		CacheTTL:     time.Minute,
	}}

	sc := cfg.SecretsConfig()
	assert.Equal(t, secrets.ProviderVault, sc.Provider)
	assert.Equal(t, "approle", sc.Vault.AuthMethod)
	assert.Equal(t, "kv", sc.Vault.MountPath)
	assert.Equal(t, "v1", sc.Vault.KVVersion)
	assert.Equal(t, time.Minute, sc.Vault.CacheTTL)
	assert.Equal(t, "eu-west-1", sc.AWS.Region)
}

func TestResolveSecrets(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "flutterwave"), 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "flutterwave", "secret_key"), []byte("sk_test\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "flutterwave", "hash"), []byte(`{"value":"whsec"}`), 0o600))
	store := secrets.NewLocalStore(dir, zaptest.NewLogger(t))

	cfg := &Config{
		Database: DatabaseConfig{URL: "postgres://localhost/payments"},
		Gateway: GatewayConfig{
			Environment:    "sandbox",
			SecretKeyPath:  "flutterwave/secret_key",
			SecretHashPath: "flutterwave/hash",
		},
	}

	require.NoError(t, cfg.ResolveSecrets(context.Background(), store))
	assert.Equal(t, "sk_test", cfg.Gateway.SecretKey)
	assert.Equal(t, "whsec", cfg.Gateway.SecretHash)
}

func TestResolveSecrets_Missing(t *testing.T) {
	t.Run("no database url", func(t *testing.T) {
		cfg := &Config{Gateway: GatewayConfig{Environment: "sandbox", SecretKey: "sk", SecretHash: "h"}}
		assert.ErrorContains(t, cfg.ResolveSecrets(context.Background(), nil), "DATABASE_URL")
	})

	t.Run("no webhook hash", func(t *testing.T) {
		cfg := &Config{
			Database: DatabaseConfig{URL: "postgres://localhost/payments"},
			Gateway:  GatewayConfig{Environment: "sandbox", SecretKey: "sk"},
		}
		assert.ErrorContains(t, cfg.ResolveSecrets(context.Background(), nil), "FLUTTERWAVE_SECRET_HASH")
	})

	t.Run("no credentials", func(t *testing.T) {
		cfg := &Config{
			Database: DatabaseConfig{URL: "postgres://localhost/payments"},
			Gateway:  GatewayConfig{Environment: "sandbox", SecretHash: "h"},
		}
		assert.Error(t, cfg.ResolveSecrets(context.Background(), nil))
	})

	t.Run("path without provider", func(t *testing.T) {
		cfg := &Config{Gateway: GatewayConfig{SecretKeyPath: "flutterwave/secret_key"}}
		assert.ErrorContains(t, cfg.ResolveSecrets(context.Background(), nil), "no secret provider")
	})
}
