package flutterwave

import (
	"fmt"
	"strings"
	"time"

	pkgerrors "github.com/kevin07696/flutterwave-gateway/pkg/errors"
	"github.com/kevin07696/flutterwave-gateway/pkg/resilience"
)

// Environment selects the gateway deployment
type Environment string

const (
	EnvironmentSandbox    Environment = "sandbox"
	EnvironmentProduction Environment = "production"
)

const (
	SandboxBaseURL    = "https://api.flutterwave.cloud/developersandbox"
	ProductionBaseURL = "https://api.flutterwave.cloud/f4bexperience"
	DefaultTokenURL   = "https://idp.flutterwave.com/realms/flutterwave/protocol/openid-connect/token"

	DefaultAPIVersion    = "2024-01-01"
	DefaultTimeout       = 30 * time.Second
	DefaultRefreshMargin = time.Minute
	DefaultTokenLifetime = 600 * time.Second
	DefaultMaxRetries    = 3
)

// Config contains configuration for the gateway client
type Config struct {
	Environment Environment

	// BaseURL is the v4 API root.
	// Sandbox: https://api.flutterwave.cloud/developersandbox
	// Production: https://api.flutterwave.cloud/f4bexperience
	BaseURL  string
	TokenURL string

	// OAuth client credentials. When either is empty the static SecretKey is used as bearer.
	ClientID     string
	ClientSecret string
	SecretKey    string

	// EncryptionKey is the base64 AES key issued for card encryption
	EncryptionKey string

	// SecretHash verifies inbound webhooks
	SecretHash string

	APIVersion    string
	Timeout       time.Duration
	RefreshMargin time.Duration

	// MaxRetries bounds internal retries of a single logical request
	MaxRetries     int
	RetryBackoff   resilience.BackoffStrategy
	CircuitBreaker resilience.CircuitBreakerConfig
}

// DefaultConfig returns default configuration for the given environment
func DefaultConfig(environment Environment) Config {
	baseURL := ProductionBaseURL
	if environment != EnvironmentProduction {
		environment = EnvironmentSandbox
		baseURL = SandboxBaseURL
	}

	return Config{
		Environment:    environment,
		BaseURL:        baseURL,
		TokenURL:       DefaultTokenURL,
		APIVersion:     DefaultAPIVersion,
		Timeout:        DefaultTimeout,
		RefreshMargin:  DefaultRefreshMargin,
		MaxRetries:     DefaultMaxRetries,
		RetryBackoff:   resilience.GatewayRetryBackoff(),
		CircuitBreaker: resilience.DefaultCircuitBreakerConfig(),
	}
}

// OAuthConfigured reports whether client credentials are present
func (c Config) OAuthConfigured() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

// IsProduction reports whether requests go to the live gateway
func (c Config) IsProduction() bool {
	return c.Environment == EnvironmentProduction
}

// Validate checks that the client can authenticate and reach the gateway
func (c Config) Validate() error {
	if strings.TrimSpace(c.BaseURL) == "" {
		return pkgerrors.NewConfigurationError("gateway base URL is required", nil)
	}
	if !c.OAuthConfigured() && c.SecretKey == "" {
		return pkgerrors.NewConfigurationError("either OAuth client credentials or a secret key is required", nil)
	}
	if c.OAuthConfigured() && c.TokenURL == "" {
		return pkgerrors.NewConfigurationError("token URL is required for OAuth", nil)
	}
	if c.MaxRetries < 0 {
		return pkgerrors.NewConfigurationError(fmt.Sprintf("max retries must be >= 0, got %d", c.MaxRetries), nil)
	}
	return nil
}

func (c Config) withDefaults() Config {
	if c.TokenURL == "" {
		c.TokenURL = DefaultTokenURL
	}
	if c.APIVersion == "" {
		c.APIVersion = DefaultAPIVersion
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.RefreshMargin <= 0 {
		c.RefreshMargin = DefaultRefreshMargin
	}
	if c.RetryBackoff == nil {
		c.RetryBackoff = resilience.GatewayRetryBackoff()
	}
	if c.CircuitBreaker.MaxFailures == 0 {
		c.CircuitBreaker = resilience.DefaultCircuitBreakerConfig()
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	return c
}
