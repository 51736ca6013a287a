package flutterwave

import (
	"context"
	"errors"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/sync/singleflight"

	"github.com/kevin07696/flutterwave-gateway/internal/domain/ports"
	pkgerrors "github.com/kevin07696/flutterwave-gateway/pkg/errors"
	"github.com/kevin07696/flutterwave-gateway/pkg/observability"
)

const tokenRefreshKey = "access_token"

// Authenticator produces the Authorization headers for gateway requests
type Authenticator interface {
	AuthHeaders(ctx context.Context) (http.Header, error)
}

// TokenInfo is a debugging snapshot of the token state. It never includes the token value.
type TokenInfo struct {
	ExpiresAt       time.Time     `json:"expires_at,omitempty"`
	TokenType       string        `json:"token_type,omitempty"`
	TimeUntilExpiry time.Duration `json:"time_until_expiry,omitempty"`
	HasToken        bool          `json:"has_token"`
	OAuthConfigured bool          `json:"is_oauth_configured"`
}

// AuthManager obtains OAuth client-credentials tokens and caches them in a TokenStore.
// Without client credentials it falls back to the static secret key.
type AuthManager struct {
	config     Config
	store      ports.TokenStore
	httpClient *http.Client
	logger     ports.Logger
	refreshes  singleflight.Group
	now        func() time.Time
}

// NewAuthManager creates an AuthManager. A nil store uses process memory.
func NewAuthManager(config Config, store ports.TokenStore, httpClient *http.Client, logger ports.Logger) *AuthManager {
	config = config.withDefaults()
	if store == nil {
		store = NewMemoryTokenStore()
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: config.Timeout}
	}

	if !config.OAuthConfigured() {
		logger.Warn("OAuth credentials not configured, using secret key authentication")
	}

	return &AuthManager{
		config:     config,
		store:      store,
		httpClient: httpClient,
		logger:     logger,
		now:        time.Now,
	}
}

// AuthHeaders returns Authorization and Content-Type headers
func (a *AuthManager) AuthHeaders(ctx context.Context) (http.Header, error) {
	token, err := a.AccessToken(ctx)
	if err != nil {
		return nil, err
	}

	h := make(http.Header)
	h.Set("Authorization", "Bearer "+token)
	h.Set("Content-Type", "application/json")
	return h, nil
}

// AccessToken returns a bearer credential that is valid for at least the refresh margin.
// Concurrent callers that find the token stale share a single refresh.
func (a *AuthManager) AccessToken(ctx context.Context) (string, error) {
	if !a.config.OAuthConfigured() {
		if a.config.SecretKey == "" {
			return "", pkgerrors.NewConfigurationError("no gateway credentials configured", nil)
		}
		return a.config.SecretKey, nil
	}

	if token, ok := a.freshToken(ctx); ok {
		return token.Value, nil
	}

	v, err, _ := a.refreshes.Do(tokenRefreshKey, func() (interface{}, error) {
		// another caller may have refreshed while we waited
		if token, ok := a.freshToken(ctx); ok {
			return token, nil
		}
		return a.refresh(ctx)
	})
	if err != nil {
		return "", err
	}

	return v.(*ports.AccessToken).Value, nil
}

// Invalidate drops the cached token so the next call refreshes it
func (a *AuthManager) Invalidate(ctx context.Context) error {
	return a.store.Clear(ctx)
}

// IsOAuthConfigured reports whether client credentials are in use
func (a *AuthManager) IsOAuthConfigured() bool {
	return a.config.OAuthConfigured()
}

// TokenInfo reports the cached token state
func (a *AuthManager) TokenInfo(ctx context.Context) TokenInfo {
	info := TokenInfo{OAuthConfigured: a.config.OAuthConfigured()}

	token, err := a.store.Get(ctx)
	if err != nil || token == nil {
		return info
	}

	info.HasToken = token.Value != ""
	info.ExpiresAt = token.ExpiresAt
	info.TokenType = token.TokenType
	info.TimeUntilExpiry = token.ExpiresAt.Sub(a.now())
	return info
}

func (a *AuthManager) freshToken(ctx context.Context) (*ports.AccessToken, bool) {
	token, err := a.store.Get(ctx)
	if err != nil {
		if !errors.Is(err, ports.ErrTokenNotFound) {
			a.logger.Warn("Failed to read cached access token", ports.Err(err))
		}
		return nil, false
	}
	if token.IsExpired(a.now(), a.config.RefreshMargin) {
		return nil, false
	}
	return token, true
}

func (a *AuthManager) refresh(ctx context.Context) (*ports.AccessToken, error) {
	a.logger.Info("Requesting gateway access token")

	// the refresh is shared, so one caller's cancellation must not fail the others
	fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.config.Timeout)
	defer cancel()
	fetchCtx = context.WithValue(fetchCtx, oauth2.HTTPClient, a.httpClient)

	cc := clientcredentials.Config{
		ClientID:     a.config.ClientID,
		ClientSecret: a.config.ClientSecret,
		TokenURL:     a.config.TokenURL,
		AuthStyle:    oauth2.AuthStyleInParams,
	}

	tok, err := cc.Token(fetchCtx)
	if err != nil {
		observability.RecordTokenRefresh("failure")
		a.logger.Error("Failed to obtain gateway access token", ports.Err(err))
		return nil, tokenError(err)
	}

	expiresAt := tok.Expiry
	if expiresAt.IsZero() {
		expiresAt = a.now().Add(DefaultTokenLifetime)
	}

	token := ports.AccessToken{
		Value:     tok.AccessToken,
		TokenType: tok.Type(),
		ExpiresAt: expiresAt,
	}

	if err := a.store.Set(ctx, token); err != nil {
		// the token is still usable for this call
		a.logger.Warn("Failed to cache access token", ports.Err(err))
	}

	observability.RecordTokenRefresh("success")
	a.logger.Info("Gateway access token refreshed", ports.String("expires_at", expiresAt.Format(time.RFC3339)))

	return &token, nil
}

func tokenError(err error) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		if re.Response != nil && re.Response.StatusCode >= http.StatusInternalServerError {
			pe := pkgerrors.NewPaymentError("TOKEN_REQUEST_FAILED", "Token endpoint unavailable", pkgerrors.CategoryTransient, true)
			pe.Err = err
			return pe
		}
		pe := pkgerrors.NewPaymentError("TOKEN_REQUEST_FAILED", "Failed to obtain gateway access token", pkgerrors.CategoryAuthentication, false)
		pe.Err = err
		return pe
	}
	return pkgerrors.NewNetworkError(err)
}
