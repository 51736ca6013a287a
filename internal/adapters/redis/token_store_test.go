package redis

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kevin07696/flutterwave-gateway/internal/domain/ports"
)

type setCall struct {
	key string
	ttl time.Duration
}

// fakeRedis stores values in memory and records expirations
type fakeRedis struct {
	mu      sync.Mutex
	values  map[string]string
	sets    []setCall
	failErr error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{values: make(map[string]string)}
}

func (f *fakeRedis) Get(ctx context.Context, key string) *goredis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failErr != nil {
		return goredis.NewStringResult("", f.failErr)
	}
	v, ok := f.values[key]
	if !ok {
		return goredis.NewStringResult("", goredis.Nil)
	}
	return goredis.NewStringResult(v, nil)
}

func (f *fakeRedis) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *goredis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failErr != nil {
		return goredis.NewStatusResult("", f.failErr)
	}
	f.values[key] = string(value.([]byte))
	f.sets = append(f.sets, setCall{key: key, ttl: expiration})
	return goredis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Del(ctx context.Context, keys ...string) *goredis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, k := range keys {
		if _, ok := f.values[k]; ok {
			delete(f.values, k)
			n++
		}
	}
	return goredis.NewIntResult(n, f.failErr)
}

func (f *fakeRedis) Ping(ctx context.Context) *goredis.StatusCmd {
	return goredis.NewStatusResult("PONG", f.failErr)
}

func TestTokenStore_RoundTripWithTTL(t *testing.T) {
	fake := newFakeRedis()
	store := NewTokenStore(fake, "")
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	ctx := context.Background()
	token := ports.AccessToken{Value: "tok_1", TokenType: "Bearer", ExpiresAt: now.Add(10 * time.Minute)}
	require.NoError(t, store.Set(ctx, token))

	require.Len(t, fake.sets, 1)
	assert.Equal(t, DefaultTokenKey, fake.sets[0].key)
	assert.Equal(t, 10*time.Minute, fake.sets[0].ttl)

	got, err := store.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "tok_1", got.Value)
	assert.True(t, got.ExpiresAt.Equal(token.ExpiresAt))
}

func TestTokenStore_MissingToken(t *testing.T) {
	store := NewTokenStore(newFakeRedis(), "custom:key")

	_, err := store.Get(context.Background())
	assert.ErrorIs(t, err, ports.ErrTokenNotFound)
}

func TestTokenStore_ExpiredTokenIsNotStored(t *testing.T) {
	fake := newFakeRedis()
	store := NewTokenStore(fake, "")
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, ports.AccessToken{Value: "old", ExpiresAt: time.Now().Add(-time.Minute)}))
	assert.Empty(t, fake.sets)

	_, err := store.Get(ctx)
	assert.ErrorIs(t, err, ports.ErrTokenNotFound)
}

func TestTokenStore_Clear(t *testing.T) {
	fake := newFakeRedis()
	store := NewTokenStore(fake, "")
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, ports.AccessToken{Value: "tok", ExpiresAt: time.Now().Add(time.Hour)}))
	require.NoError(t, store.Clear(ctx))

	_, err := store.Get(ctx)
	assert.ErrorIs(t, err, ports.ErrTokenNotFound)
}

func TestTokenStore_BackendErrors(t *testing.T) {
	fake := newFakeRedis()
	fake.failErr = errors.New("connection refused")
	store := NewTokenStore(fake, "")
	ctx := context.Background()

	_, err := store.Get(ctx)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ports.ErrTokenNotFound)

	assert.Error(t, store.Set(ctx, ports.AccessToken{Value: "tok", ExpiresAt: time.Now().Add(time.Hour)}))
	assert.Error(t, store.Ping(ctx))
}

func TestTokenStore_CorruptValue(t *testing.T) {
	fake := newFakeRedis()
	fake.values[DefaultTokenKey] = "not json"

	_, err := NewTokenStore(fake, "").Get(context.Background())
	assert.ErrorContains(t, err, "decode")
}

func TestNewClient_InvalidURL(t *testing.T) {
	_, err := NewClient("http://nope")
	assert.Error(t, err)

	client, err := NewClient("redis://localhost:6379/0")
	require.NoError(t, err)
	assert.NoError(t, client.Close())
}
