package domain

import (
	"errors"
	"fmt"
)

// ErrorCode represents a machine-readable error code
type ErrorCode string

const (
	// Payment Errors (PAYMENT_*)
	ErrorCodePaymentNotFound         ErrorCode = "PAYMENT_NOT_FOUND"
	ErrorCodePaymentInvalidState     ErrorCode = "PAYMENT_INVALID_STATE"
	ErrorCodePaymentAlreadyProcessed ErrorCode = "PAYMENT_ALREADY_PROCESSED"
	ErrorCodePaymentDuplicate        ErrorCode = "PAYMENT_DUPLICATE_REFERENCE"

	// Validation Errors (VALIDATION_*)
	ErrorCodeValidationFailed       ErrorCode = "VALIDATION_FAILED"
	ErrorCodeValidationMissingField ErrorCode = "VALIDATION_MISSING_FIELD"

	// Payment Gateway Errors (GATEWAY_*)
	ErrorCodeGatewayError       ErrorCode = "GATEWAY_ERROR"
	ErrorCodeGatewayUnavailable ErrorCode = "GATEWAY_UNAVAILABLE"
	ErrorCodeGatewayDeclined    ErrorCode = "GATEWAY_DECLINED"

	// Webhook Errors (WEBHOOK_*)
	ErrorCodeWebhookSignature ErrorCode = "WEBHOOK_INVALID_SIGNATURE"
	ErrorCodeWebhookPayload   ErrorCode = "WEBHOOK_INVALID_PAYLOAD"

	// Internal Errors (INTERNAL_*)
	ErrorCodeInternalError      ErrorCode = "INTERNAL_ERROR"
	ErrorCodeDatabaseError      ErrorCode = "INTERNAL_DATABASE_ERROR"
	ErrorCodeServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
)

// DomainError represents a structured domain error with error code and context
type DomainError struct {
	Err     error
	Details map[string]interface{}
	Code    ErrorCode
	Message string
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is matches another DomainError by code so sentinels work with errors.Is
func (e *DomainError) Is(target error) bool {
	var other *DomainError
	if errors.As(target, &other) {
		return other.Code == e.Code
	}
	return false
}

// WithDetail returns a copy of the error carrying an extra detail field
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	details := make(map[string]interface{}, len(e.Details)+1)
	for k, v := range e.Details {
		details[k] = v
	}
	details[key] = value
	return &DomainError{Err: e.Err, Details: details, Code: e.Code, Message: e.Message}
}

// NewDomainError creates a new domain error
func NewDomainError(code ErrorCode, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
	}
}

// WrapError wraps an existing error with a domain error code
func WrapError(code ErrorCode, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
		Err:     err,
	}
}

// IsDomainError checks if an error is a DomainError with the given code
func IsDomainError(err error, code ErrorCode) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code == code
	}
	return false
}

// GetErrorCode extracts the error code from an error, returns empty string if not a DomainError
func GetErrorCode(err error) ErrorCode {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	return ""
}

// IsNotFoundError checks if an error represents a "not found" condition
func IsNotFoundError(err error) bool {
	return GetErrorCode(err) == ErrorCodePaymentNotFound
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	code := GetErrorCode(err)
	return code == ErrorCodeValidationFailed || code == ErrorCodeValidationMissingField
}

// IsGatewayError checks if an error is a payment gateway error
func IsGatewayError(err error) bool {
	code := GetErrorCode(err)
	return code == ErrorCodeGatewayError ||
		code == ErrorCodeGatewayUnavailable ||
		code == ErrorCodeGatewayDeclined
}

var (
	ErrPaymentNotFound         = NewDomainError(ErrorCodePaymentNotFound, "payment transaction not found")
	ErrPaymentInvalidState     = NewDomainError(ErrorCodePaymentInvalidState, "payment transaction is in invalid state for this operation")
	ErrPaymentAlreadyProcessed = NewDomainError(ErrorCodePaymentAlreadyProcessed, "payment transaction already processed")
	ErrPaymentDuplicate        = NewDomainError(ErrorCodePaymentDuplicate, "payment reference already exists")

	ErrValidationFailed       = NewDomainError(ErrorCodeValidationFailed, "validation failed")
	ErrValidationMissingField = NewDomainError(ErrorCodeValidationMissingField, "required field missing")

	ErrGatewayError       = NewDomainError(ErrorCodeGatewayError, "payment gateway error")
	ErrGatewayUnavailable = NewDomainError(ErrorCodeGatewayUnavailable, "payment gateway unavailable")
	ErrGatewayDeclined    = NewDomainError(ErrorCodeGatewayDeclined, "payment declined by gateway")

	ErrWebhookSignature = NewDomainError(ErrorCodeWebhookSignature, "invalid webhook signature")
	ErrWebhookPayload   = NewDomainError(ErrorCodeWebhookPayload, "invalid webhook payload")

	ErrInternalError      = NewDomainError(ErrorCodeInternalError, "internal server error")
	ErrDatabaseError      = NewDomainError(ErrorCodeDatabaseError, "database error")
	ErrServiceUnavailable = NewDomainError(ErrorCodeServiceUnavailable, "payment service is temporarily unavailable")
)
