package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/kevin07696/flutterwave-gateway/internal/domain/ports"
)

// DefaultTokenKey is where the gateway access token is kept
const DefaultTokenKey = "flutterwave:access_token"

// Commands is the subset of the redis client the token store uses
type Commands interface {
	Get(ctx context.Context, key string) *goredis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *goredis.StatusCmd
	Del(ctx context.Context, keys ...string) *goredis.IntCmd
	Ping(ctx context.Context) *goredis.StatusCmd
}

// TokenStore shares the gateway access token between service instances.
// Entries expire with the token so a stale value is never served.
type TokenStore struct {
	client Commands
	key    string
	now    func() time.Time
}

// NewClient opens a redis client from a redis:// URL
func NewClient(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	return goredis.NewClient(opts), nil
}

// NewTokenStore creates a token store under key; an empty key uses DefaultTokenKey
func NewTokenStore(client Commands, key string) *TokenStore {
	if key == "" {
		key = DefaultTokenKey
	}
	return &TokenStore{client: client, key: key, now: time.Now}
}

// Get returns the cached token or ports.ErrTokenNotFound
func (s *TokenStore) Get(ctx context.Context) (*ports.AccessToken, error) {
	raw, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, ports.ErrTokenNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read access token: %w", err)
	}

	var token ports.AccessToken
	if err := json.Unmarshal(raw, &token); err != nil {
		return nil, fmt.Errorf("failed to decode access token: %w", err)
	}
	return &token, nil
}

// Set stores the token until it expires
func (s *TokenStore) Set(ctx context.Context, token ports.AccessToken) error {
	ttl := token.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return s.Clear(ctx)
	}

	raw, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("failed to encode access token: %w", err)
	}
	if err := s.client.Set(ctx, s.key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store access token: %w", err)
	}
	return nil
}

// Clear removes the cached token
func (s *TokenStore) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("failed to clear access token: %w", err)
	}
	return nil
}

// Ping checks the connection for health reporting
func (s *TokenStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
