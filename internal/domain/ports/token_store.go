package ports

import (
	"context"
	"errors"
	"time"
)

// ErrTokenNotFound is returned by TokenStore.Get when no token is cached
var ErrTokenNotFound = errors.New("access token not found")

// AccessToken is a gateway OAuth bearer token
type AccessToken struct {
	ExpiresAt time.Time `json:"expires_at"`
	Value     string    `json:"value"`
	TokenType string    `json:"token_type"`
}

// IsExpired reports whether the token expires within margin of now
func (t AccessToken) IsExpired(now time.Time, margin time.Duration) bool {
	return t.Value == "" || !now.Add(margin).Before(t.ExpiresAt)
}

// TokenStore holds the current gateway access token.
// Implementations must be safe for concurrent use.
type TokenStore interface {
	Get(ctx context.Context) (*AccessToken, error)
	Set(ctx context.Context, token AccessToken) error
	Clear(ctx context.Context) error
}
