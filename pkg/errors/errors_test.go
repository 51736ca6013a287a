package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorCategory_Retryable(t *testing.T) {
	tests := []struct {
		category ErrorCategory
		want     bool
	}{
		{CategoryTransient, true},
		{CategoryNetwork, true},
		{CategoryValidation, false},
		{CategoryAuthentication, false},
		{CategoryPermanent, false},
		{CategoryConfiguration, false},
		{CategoryEncryption, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.category), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.category.Retryable())
		})
	}
}

func TestCategoryOf(t *testing.T) {
	wrapped := fmt.Errorf("load key: %w", NewConfigurationError("encryption key missing", nil))
	category, ok := CategoryOf(wrapped)
	assert.True(t, ok)
	assert.Equal(t, CategoryConfiguration, category)

	_, ok = CategoryOf(errors.New("plain"))
	assert.False(t, ok)
}

func TestPaymentError_Unwrap(t *testing.T) {
	cause := errors.New("connection reset")
	err := NewNetworkError(cause)
	assert.True(t, errors.Is(err, cause))
	assert.True(t, err.IsRetriable)
	assert.Contains(t, err.Error(), "connection reset")
}
