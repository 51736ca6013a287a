package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDomainError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *DomainError
		expected string
	}{
		{
			name:     "without_cause",
			err:      NewDomainError(ErrorCodePaymentNotFound, "payment transaction not found"),
			expected: "PAYMENT_NOT_FOUND: payment transaction not found",
		},
		{
			name:     "with_cause",
			err:      WrapError(ErrorCodeDatabaseError, "insert failed", errors.New("connection reset")),
			expected: "INTERNAL_DATABASE_ERROR: insert failed: connection reset",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestDomainError_IsMatchesByCode(t *testing.T) {
	wrapped := fmt.Errorf("lookup: %w", WrapError(ErrorCodePaymentNotFound, "no row", errors.New("no rows")))

	assert.ErrorIs(t, wrapped, ErrPaymentNotFound)
	assert.NotErrorIs(t, wrapped, ErrPaymentDuplicate)
	assert.True(t, IsNotFoundError(wrapped))
	assert.Equal(t, ErrorCodePaymentNotFound, GetErrorCode(wrapped))
}

func TestDomainError_WithDetailDoesNotMutateSentinel(t *testing.T) {
	detailed := ErrValidationFailed.WithDetail("field", "amount")

	require.Contains(t, detailed.Details, "field")
	assert.NotContains(t, ErrValidationFailed.Details, "field")
	assert.ErrorIs(t, detailed, ErrValidationFailed)
}

func TestErrorClassificationHelpers(t *testing.T) {
	assert.True(t, IsValidationError(ErrValidationMissingField))
	assert.False(t, IsValidationError(ErrGatewayDeclined))
	assert.True(t, IsGatewayError(ErrGatewayUnavailable))
	assert.False(t, IsGatewayError(errors.New("plain")))
	assert.Equal(t, ErrorCode(""), GetErrorCode(errors.New("plain")))
}
