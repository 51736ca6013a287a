package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/kevin07696/flutterwave-gateway/internal/adapters/flutterwave"
	"github.com/kevin07696/flutterwave-gateway/internal/adapters/secrets"
	"github.com/kevin07696/flutterwave-gateway/internal/domain/ports"
)

// Config holds all application configuration
type Config struct {
	Server       ServerConfig
	Database     DatabaseConfig
	Redis        RedisConfig
	Gateway      GatewayConfig
	Notification NotificationConfig
	Cron         CronConfig
	RateLimit    RateLimitConfig
	Logger       LoggerConfig
	Secrets      SecretsConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ShutdownTimeout time.Duration
}

// Addr returns the listen address
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL             string
	URLPath         string // secret path used when URL is empty
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	ApplySchema     bool // create missing tables at start-up
}

// RedisConfig holds the optional shared token cache. An empty URL keeps tokens in memory.
type RedisConfig struct {
	URL      string
	TokenKey string
}

// GatewayConfig holds Flutterwave credentials and client tuning
type GatewayConfig struct {
	Environment   string // sandbox or production
	BaseURL       string // overrides the environment default
	ClientID      string
	ClientSecret  string
	SecretKey     string
	EncryptionKey string
	SecretHash    string // verifies inbound webhooks
	APIVersion    string
	Timeout       time.Duration
	MaxRetries    int

	// Secret paths, resolved when the matching value is empty
	ClientSecretPath  string
	SecretKeyPath     string
	EncryptionKeyPath string
	SecretHashPath    string
}

// NotificationConfig holds outbound payment event delivery
type NotificationConfig struct {
	URL         string
	Secret      string
	MaxAttempts int
}

// CronConfig holds the sweep schedule and the shared secret for /cron endpoints
type CronConfig struct {
	Secret           string
	SweepInterval    time.Duration // zero disables the in-process sweep
	WebhookRetention time.Duration
}

// RateLimitConfig holds per-IP limits for the public API
type RateLimitConfig struct {
	RPS   float64
	Burst int
}

// LoggerConfig holds logging configuration
type LoggerConfig struct {
	Level       string // debug, info, warn, error
	Development bool
}

// SecretsConfig selects the secret backend
type SecretsConfig struct {
	Provider      string // local, vault or aws; empty disables lookups
	LocalPath     string
	VaultAddress  string
	VaultAuth     string // token or approle
	VaultToken    string
	VaultRoleID   string
	VaultSecretID string
	VaultMount    string
	VaultKV       string
	AWSRegion     string
	AWSProfile    string
	AWSEndpoint   string
	CacheTTL      time.Duration
}

// LoadFromEnv loads configuration from environment variables, reading a
// .env file first when one exists
func LoadFromEnv() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getEnvAsInt("SERVER_PORT", 8080),
			ShutdownTimeout: getEnvAsDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			URLPath:         getEnv("DATABASE_URL_PATH", ""),
			MaxConns:        int32(getEnvAsInt("DB_MAX_CONNS", 25)),
			MinConns:        int32(getEnvAsInt("DB_MIN_CONNS", 5)),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", time.Hour),
			ApplySchema:     getEnvAsBool("DB_APPLY_SCHEMA", false),
		},
		Redis: RedisConfig{
			URL:      getEnv("REDIS_URL", ""),
			TokenKey: getEnv("REDIS_TOKEN_KEY", "flutterwave:access_token"),
		},
		Gateway: GatewayConfig{
			Environment:       getEnv("FLUTTERWAVE_ENV", string(flutterwave.EnvironmentSandbox)),
			BaseURL:           getEnv("FLUTTERWAVE_BASE_URL", ""),
			ClientID:          getEnv("FLUTTERWAVE_CLIENT_ID", ""),
			ClientSecret:      getEnv("FLUTTERWAVE_CLIENT_SECRET", ""),
			SecretKey:         getEnv("FLUTTERWAVE_SECRET_KEY", ""),
			EncryptionKey:     getEnv("FLUTTERWAVE_ENCRYPTION_KEY", ""),
			SecretHash:        getEnv("FLUTTERWAVE_SECRET_HASH", ""),
			APIVersion:        getEnv("FLUTTERWAVE_API_VERSION", flutterwave.DefaultAPIVersion),
			Timeout:           getEnvAsDuration("FLUTTERWAVE_TIMEOUT", flutterwave.DefaultTimeout),
			MaxRetries:        getEnvAsInt("FLUTTERWAVE_MAX_RETRIES", flutterwave.DefaultMaxRetries),
			ClientSecretPath:  getEnv("FLUTTERWAVE_CLIENT_SECRET_PATH", ""),
			SecretKeyPath:     getEnv("FLUTTERWAVE_SECRET_KEY_PATH", ""),
			EncryptionKeyPath: getEnv("FLUTTERWAVE_ENCRYPTION_KEY_PATH", ""),
			SecretHashPath:    getEnv("FLUTTERWAVE_SECRET_HASH_PATH", ""),
		},
		Notification: NotificationConfig{
			URL:         getEnv("NOTIFICATION_URL", ""),
			Secret:      getEnv("NOTIFICATION_SECRET", ""),
			MaxAttempts: getEnvAsInt("NOTIFICATION_MAX_ATTEMPTS", 4),
		},
		Cron: CronConfig{
			Secret:           getEnv("CRON_SECRET", ""),
			SweepInterval:    getEnvAsDuration("SWEEP_INTERVAL", 5*time.Minute),
			WebhookRetention: getEnvAsDuration("WEBHOOK_RETENTION", 30*24*time.Hour),
		},
		RateLimit: RateLimitConfig{
			RPS:   getEnvAsFloat("RATE_LIMIT_RPS", 10),
			Burst: getEnvAsInt("RATE_LIMIT_BURST", 20),
		},
		Logger: LoggerConfig{
			Level:       getEnv("LOG_LEVEL", "info"),
			Development: getEnvAsBool("LOG_DEVELOPMENT", false),
		},
		Secrets: SecretsConfig{
			Provider:      getEnv("SECRET_PROVIDER", ""),
			LocalPath:     getEnv("SECRET_LOCAL_PATH", "./secrets"),
			VaultAddress:  getEnv("VAULT_ADDR", ""),
			VaultAuth:     getEnv("VAULT_AUTH_METHOD", "token"),
			VaultToken:    getEnv("VAULT_TOKEN", ""),
			VaultRoleID:   getEnv("VAULT_ROLE_ID", ""),
			VaultSecretID: getEnv("VAULT_SECRET_ID", ""),
			VaultMount:    getEnv("VAULT_MOUNT_PATH", "secret"),
			VaultKV:       getEnv("VAULT_KV_VERSION", "v2"),
			AWSRegion:     getEnv("AWS_REGION", "us-east-1"),
			AWSProfile:    getEnv("AWS_PROFILE", ""),
			AWSEndpoint:   getEnv("AWS_ENDPOINT", ""),
			CacheTTL:      getEnvAsDuration("SECRET_CACHE_TTL", 5*time.Minute),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	env := flutterwave.Environment(c.Gateway.Environment)
	if env != flutterwave.EnvironmentSandbox && env != flutterwave.EnvironmentProduction {
		return fmt.Errorf("FLUTTERWAVE_ENV must be sandbox or production, got %q", c.Gateway.Environment)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("SERVER_PORT out of range: %d", c.Server.Port)
	}
	if c.Gateway.MaxRetries < 0 {
		return fmt.Errorf("FLUTTERWAVE_MAX_RETRIES must be >= 0")
	}
	switch secrets.Provider(c.Secrets.Provider) {
	case secrets.ProviderNone, secrets.ProviderLocal, secrets.ProviderAWS:
	case secrets.ProviderVault:
		if c.Secrets.VaultAddress == "" {
			return fmt.Errorf("VAULT_ADDR is required when SECRET_PROVIDER=vault")
		}
	default:
		return fmt.Errorf("unsupported SECRET_PROVIDER %q", c.Secrets.Provider)
	}
	return nil
}

// ResolveSecrets fills empty credentials from their secret paths and checks
// that the values needed at runtime are present
func (c *Config) ResolveSecrets(ctx context.Context, store ports.SecretStore) error {
	err := secrets.Resolve(ctx, store,
		secrets.Ref{Name: "DATABASE_URL", Path: c.Database.URLPath, Dest: &c.Database.URL},
		secrets.Ref{Name: "FLUTTERWAVE_CLIENT_SECRET", Path: c.Gateway.ClientSecretPath, Dest: &c.Gateway.ClientSecret},
		secrets.Ref{Name: "FLUTTERWAVE_SECRET_KEY", Path: c.Gateway.SecretKeyPath, Dest: &c.Gateway.SecretKey},
		secrets.Ref{Name: "FLUTTERWAVE_ENCRYPTION_KEY", Path: c.Gateway.EncryptionKeyPath, Dest: &c.Gateway.EncryptionKey},
		secrets.Ref{Name: "FLUTTERWAVE_SECRET_HASH", Path: c.Gateway.SecretHashPath, Dest: &c.Gateway.SecretHash},
	)
	if err != nil {
		return err
	}

	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.Gateway.SecretHash == "" {
		return fmt.Errorf("FLUTTERWAVE_SECRET_HASH is required")
	}
	return c.GatewayConfig().Validate()
}

// GatewayConfig builds the client configuration for the selected environment
func (c *Config) GatewayConfig() flutterwave.Config {
	gw := flutterwave.DefaultConfig(flutterwave.Environment(c.Gateway.Environment))
	if c.Gateway.BaseURL != "" {
		gw.BaseURL = c.Gateway.BaseURL
	}
	gw.ClientID = c.Gateway.ClientID
	gw.ClientSecret = c.Gateway.ClientSecret
	gw.SecretKey = c.Gateway.SecretKey
	gw.EncryptionKey = c.Gateway.EncryptionKey
	gw.SecretHash = c.Gateway.SecretHash
	gw.APIVersion = c.Gateway.APIVersion
	gw.Timeout = c.Gateway.Timeout
	gw.MaxRetries = c.Gateway.MaxRetries
	return gw
}

// SecretsConfig maps the env settings onto the secret backend configuration
func (c *Config) SecretsConfig() secrets.Config {
	vault := secrets.DefaultVaultConfig(c.Secrets.VaultAddress)
	vault.AuthMethod = c.Secrets.VaultAuth
	vault.Token = c.Secrets.VaultToken
	vault.RoleID = c.Secrets.VaultRoleID
	vault.SecretID = c.Secrets.VaultSecretID
	vault.MountPath = c.Secrets.VaultMount
	vault.KVVersion = c.Secrets.VaultKV
	vault.CacheTTL = c.Secrets.CacheTTL

	return secrets.Config{
		Provider:  secrets.Provider(c.Secrets.Provider),
		LocalPath: c.Secrets.LocalPath,
		Vault:     vault,
		AWS: secrets.AWSConfig{
			Region:   c.Secrets.AWSRegion,
			Profile:  c.Secrets.AWSProfile,
			Endpoint: c.Secrets.AWSEndpoint,
			CacheTTL: c.Secrets.CacheTTL,
		},
	}
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration accepts Go durations ("90s") or a bare number of seconds
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	if seconds, err := strconv.Atoi(valueStr); err == nil {
		return time.Duration(seconds) * time.Second
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
