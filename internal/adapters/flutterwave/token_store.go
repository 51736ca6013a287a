package flutterwave

import (
	"context"
	"sync"

	"github.com/kevin07696/flutterwave-gateway/internal/domain/ports"
)

// MemoryTokenStore keeps the access token in process memory
type MemoryTokenStore struct {
	mu    sync.RWMutex
	token *ports.AccessToken
}

// NewMemoryTokenStore creates an empty in-process token store
func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{}
}

// Get returns a copy of the cached token or ports.ErrTokenNotFound
func (s *MemoryTokenStore) Get(ctx context.Context) (*ports.AccessToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.token == nil {
		return nil, ports.ErrTokenNotFound
	}
	token := *s.token
	return &token, nil
}

// Set replaces the cached token
func (s *MemoryTokenStore) Set(ctx context.Context, token ports.AccessToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.token = &token
	return nil
}

// Clear drops the cached token
func (s *MemoryTokenStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.token = nil
	return nil
}
