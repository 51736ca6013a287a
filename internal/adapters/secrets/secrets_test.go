package secrets

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	smtypes "github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kevin07696/flutterwave-gateway/internal/domain/ports"
)

func TestLocalStore(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "flutterwave"), 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "flutterwave", "client_secret"), []byte("plain-secret\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "flutterwave", "secret_hash"), []byte(`{"value":"json-secret"}`), 0o600))

	store := NewLocalStore(dir, zap.NewNop())
	ctx := context.Background()

	v, err := store.GetSecret(ctx, "flutterwave/client_secret")
	require.NoError(t, err)
	assert.Equal(t, "plain-secret", v)

	v, err = store.GetSecret(ctx, "flutterwave/secret_hash")
	require.NoError(t, err)
	assert.Equal(t, "json-secret", v)

	_, err = store.GetSecret(ctx, "flutterwave/missing")
	assert.ErrorIs(t, err, ports.ErrSecretNotFound)

	_, err = store.GetSecret(ctx, "../../etc/passwd")
	assert.ErrorIs(t, err, ports.ErrSecretNotFound)
}

func vaultServer(t *testing.T, hits *int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/v1/auth/approle/login":
			_ = json.NewEncoder(w).Encode(map[string]any{"auth": map[string]any{"client_token": "s.approle"}})
		case "/v1/secret/data/flutterwave/encryption_key":
			atomic.AddInt32(hits, 1)
			assert.Equal(t, "s.approle", r.Header.Get("X-Vault-Token"))
			_ = json.NewEncoder(w).Encode(map[string]any{
				"data": map[string]any{
					"data":     map[string]any{"value": "vault-key"},
					"metadata": map[string]any{"version": 3},
				},
			})
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"errors":[]}`))
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestVaultStore_AppRoleAndCache(t *testing.T) {
	var hits int32
	srv := vaultServer(t, &hits)

	cfg := DefaultVaultConfig(srv.URL)
	cfg.AuthMethod = "approle"
	cfg.RoleID = "role"
	cfg.SecretID = "secret"

	store, err := NewVaultStore(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		v, err := store.GetSecret(context.Background(), "flutterwave/encryption_key")
		require.NoError(t, err)
		assert.Equal(t, "vault-key", v)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))

	_, err = store.GetSecret(context.Background(), "flutterwave/missing")
	assert.ErrorIs(t, err, ports.ErrSecretNotFound)
}

func TestVaultStore_AuthConfigErrors(t *testing.T) {
	_, err := NewVaultStore(context.Background(), VaultConfig{Address: "http://127.0.0.1:1"}, zap.NewNop())
	assert.ErrorContains(t, err, "token is required")

	_, err = NewVaultStore(context.Background(), VaultConfig{Address: "http://127.0.0.1:1", AuthMethod: "ldap"}, zap.NewNop())
	assert.ErrorContains(t, err, "unsupported auth method")
}

type fakeSecretsManager struct {
	values map[string]string
	calls  int
}

func (f *fakeSecretsManager) GetSecretValue(ctx context.Context, in *secretsmanager.GetSecretValueInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	f.calls++
	v, ok := f.values[aws.ToString(in.SecretId)]
	if !ok {
		return nil, &smtypes.ResourceNotFoundException{Message: aws.String("no such secret")}
	}
	return &secretsmanager.GetSecretValueOutput{SecretString: aws.String(v)}, nil
}

func TestAWSStore(t *testing.T) {
	fake := &fakeSecretsManager{values: map[string]string{"prod/flutterwave/client_secret": "aws-secret"}}
	store := newAWSStore(fake, time.Minute, zap.NewNop())
	ctx := context.Background()

	v, err := store.GetSecret(ctx, "prod/flutterwave/client_secret")
	require.NoError(t, err)
	assert.Equal(t, "aws-secret", v)

	_, err = store.GetSecret(ctx, "prod/flutterwave/client_secret")
	require.NoError(t, err)
	assert.Equal(t, 1, fake.calls)

	_, err = store.GetSecret(ctx, "prod/other")
	assert.ErrorIs(t, err, ports.ErrSecretNotFound)
}

func TestSecretCache_Expiry(t *testing.T) {
	c := newSecretCache(time.Minute)
	now := time.Now()
	c.now = func() time.Time { return now }

	c.set("a", "1")
	v, ok := c.get("a")
	assert.True(t, ok)
	assert.Equal(t, "1", v)

	now = now.Add(2 * time.Minute)
	_, ok = c.get("a")
	assert.False(t, ok)

	disabled := newSecretCache(0)
	disabled.set("a", "1")
	_, ok = disabled.get("a")
	assert.False(t, ok)
}

type mapStore map[string]string

func (m mapStore) GetSecret(ctx context.Context, path string) (string, error) {
	if v, ok := m[path]; ok {
		return v, nil
	}
	return "", ports.ErrSecretNotFound
}

func TestResolve(t *testing.T) {
	ctx := context.Background()
	store := mapStore{"fw/secret": "from-store"}

	var fromStore, preset, unset string
	preset = "from-env"

	err := Resolve(ctx, store,
		Ref{Name: "client_secret", Path: "fw/secret", Dest: &fromStore},
		Ref{Name: "secret_hash", Path: "fw/secret", Dest: &preset},
		Ref{Name: "encryption_key", Dest: &unset},
	)
	require.NoError(t, err)
	assert.Equal(t, "from-store", fromStore)
	assert.Equal(t, "from-env", preset)
	assert.Empty(t, unset)

	var missing string
	err = Resolve(ctx, store, Ref{Name: "encryption_key", Path: "fw/nope", Dest: &missing})
	assert.True(t, errors.Is(err, ports.ErrSecretNotFound))

	err = Resolve(ctx, nil, Ref{Name: "encryption_key", Path: "fw/nope", Dest: &missing})
	assert.ErrorContains(t, err, "no secret provider")
}

func TestNew(t *testing.T) {
	store, err := New(context.Background(), Config{}, zap.NewNop())
	require.NoError(t, err)
	assert.Nil(t, store)

	store, err = New(context.Background(), Config{Provider: ProviderLocal, LocalPath: t.TempDir()}, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &LocalStore{}, store)

	_, err = New(context.Background(), Config{Provider: "gcp"}, zap.NewNop())
	assert.Error(t, err)
}
