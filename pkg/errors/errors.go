package errors

import (
	"errors"
	"fmt"
)

// ErrorCategory is the failure taxonomy shared by the gateway client and the service layer
type ErrorCategory string

const (
	CategoryConfiguration  ErrorCategory = "configuration_error"
	CategoryNetwork        ErrorCategory = "network_error"
	CategoryValidation     ErrorCategory = "validation_error"
	CategoryAuthentication ErrorCategory = "authentication_error"
	CategoryPermanent      ErrorCategory = "permanent_error"
	CategoryTransient      ErrorCategory = "transient_error"
	CategoryEncryption     ErrorCategory = "encryption_error"
)

// Retryable reports whether failures in this category may be retried
func (c ErrorCategory) Retryable() bool {
	return c == CategoryTransient || c == CategoryNetwork
}

// PaymentError represents a payment processing error with detailed context
type PaymentError struct {
	Err            error
	Details        map[string]interface{}
	Code           string
	Message        string
	GatewayMessage string
	Category       ErrorCategory
	IsRetriable    bool
}

func (e *PaymentError) Error() string {
	if e.GatewayMessage != "" {
		return fmt.Sprintf("%s: %s (gateway: %s)", e.Code, e.Message, e.GatewayMessage)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *PaymentError) Unwrap() error {
	return e.Err
}

// NewPaymentError creates a new payment error
func NewPaymentError(code, message string, category ErrorCategory, retriable bool) *PaymentError {
	return &PaymentError{
		Code:        code,
		Message:     message,
		Category:    category,
		IsRetriable: retriable,
		Details:     make(map[string]interface{}),
	}
}

// NewConfigurationError reports a missing or malformed setting.
func NewConfigurationError(message string, err error) *PaymentError {
	pe := NewPaymentError("CONFIGURATION_ERROR", message, CategoryConfiguration, false)
	pe.Err = err
	return pe
}

// NewNetworkError wraps a transport failure (timeout, refused connection, reset).
func NewNetworkError(err error) *PaymentError {
	pe := NewPaymentError("NETWORK_ERROR", "Failed to connect to payment gateway", CategoryNetwork, true)
	pe.Err = err
	return pe
}

// NewEncryptionError wraps a card encryption failure.
func NewEncryptionError(message string, err error) *PaymentError {
	pe := NewPaymentError("ENCRYPTION_ERROR", message, CategoryEncryption, false)
	pe.Err = err
	return pe
}

// CategoryOf returns the category of the first PaymentError in err's chain.
func CategoryOf(err error) (ErrorCategory, bool) {
	var pe *PaymentError
	if errors.As(err, &pe) {
		return pe.Category, true
	}
	return "", false
}

// ValidationError represents input validation errors
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
}

// NewValidationError creates a new validation error
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}
