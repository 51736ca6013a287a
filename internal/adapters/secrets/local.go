package secrets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/kevin07696/flutterwave-gateway/internal/domain/ports"
)

// LocalStore reads secrets from files under a base directory.
// WARNING: This is for development only. Use AWS Secrets Manager or Vault in production.
type LocalStore struct {
	basePath string
	logger   *zap.Logger
}

// NewLocalStore creates a filesystem secret store rooted at basePath
func NewLocalStore(basePath string, logger *zap.Logger) *LocalStore {
	return &LocalStore{basePath: basePath, logger: logger}
}

// GetSecret reads a file holding either the raw secret or {"value": "..."}
func (s *LocalStore) GetSecret(ctx context.Context, path string) (string, error) {
	clean := filepath.Clean("/" + path)
	filePath := filepath.Join(s.basePath, clean)

	s.logger.Debug("Reading secret from filesystem", zap.String("path", path))

	data, err := os.ReadFile(filePath)
	if errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("%w: %s", ports.ErrSecretNotFound, path)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read secret: %w", err)
	}

	var wrapped struct {
		Value string `json:"value"`
	}
	if err := json.Unmarshal(data, &wrapped); err == nil && wrapped.Value != "" {
		return wrapped.Value, nil
	}

	return strings.TrimSpace(string(data)), nil
}
