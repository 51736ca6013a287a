package flutterwave

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode"

	pkgerrors "github.com/kevin07696/flutterwave-gateway/pkg/errors"
	"github.com/kevin07696/flutterwave-gateway/pkg/resilience"
)

// UnknownErrorCode is reported when the gateway body carries no error code
const UnknownErrorCode = "10000"

const (
	CodeNetworkError = "NETWORK_ERROR"
	CodeTimeout      = "TIMEOUT"
	CodeCircuitOpen  = "CIRCUIT_OPEN"
	CodeDeclined     = "DECLINED"
)

const (
	genericRetryMessage      = "The payment service is temporarily unavailable. Please try again shortly."
	genericUnexpectedMessage = "An unexpected error occurred. Please try again later."
	authFailedMessage        = "Authentication failed. Please check your credentials and try again."
)

// ErrorCodeInfo describes a documented gateway error code
type ErrorCodeInfo struct {
	Code           string
	Type           string
	Definition     string
	PossibleCauses []string
	Suggestions    []string
	Category       pkgerrors.ErrorCategory
	IsRetryable    bool
	UserMessage    string
}

// gatewayErrorCodes is the fixed v4 error table
var gatewayErrorCodes = map[string]ErrorCodeInfo{
	"10400": {
		Code:       "10400",
		Type:       "REQUEST_NOT_VALID",
		Definition: "The request was rejected due to invalid parameters or missing data",
		PossibleCauses: []string{
			"Malformed request", "Missing parameters", "Invalid JSON payload",
			"Invalid card number", "Invalid payment method", "Invalid amount format",
		},
		Suggestions: []string{
			"Check request format and required fields", "Validate card data before sending",
			"Ensure all required parameters are present", "Verify JSON structure is correct",
		},
		Category:    pkgerrors.CategoryValidation,
		UserMessage: "The payment request is invalid. Please check your details and try again.",
	},
	"10401": {
		Code:       "10401",
		Type:       "UNAUTHORIZATION",
		Definition: "The request requires authentication or has invalid credentials",
		PossibleCauses: []string{
			"Missing API key", "Expired token", "Incorrect credentials",
			"Invalid OAuth token", "Token not provided",
		},
		Suggestions: []string{
			"Check API credentials configuration", "Verify OAuth token is valid and not expired",
			"Ensure Authorization header is present", "Regenerate access token if needed",
		},
		Category:    pkgerrors.CategoryAuthentication,
		UserMessage: authFailedMessage,
	},
	"10403": {
		Code:       "10403",
		Type:       "FORBIDDEN",
		Definition: "The client does not have permission to access the resource",
		PossibleCauses: []string{
			"Insufficient privileges", "Access restrictions", "Account suspended",
			"IP whitelist restrictions", "Rate limiting exceeded",
		},
		Suggestions: []string{
			"Check account permissions and status", "Verify IP address is whitelisted",
			"Contact support for access issues", "Check rate limiting status",
		},
		Category:    pkgerrors.CategoryAuthentication,
		UserMessage: "This payment could not be processed. Please contact support.",
	},
	"10404": {
		Code:       "10404",
		Type:       "RESOURCE_NOT_FOUND",
		Definition: "The requested resource could not be found on the server",
		PossibleCauses: []string{
			"Nonexistent endpoint", "Incorrect URL", "Deleted resource",
			"Invalid transaction reference", "Payment not found",
		},
		Suggestions: []string{
			"Verify API endpoint URL", "Check transaction reference exists",
			"Ensure resource has not been deleted", "Validate API version compatibility",
		},
		Category:    pkgerrors.CategoryPermanent,
		UserMessage: "The requested payment could not be found.",
	},
	"10409": {
		Code:       "10409",
		Type:       "RESOURCE_CONFLICT",
		Definition: "A conflict occurred due to duplicate or conflicting data",
		PossibleCauses: []string{
			"Attempt to create existing resource", "Version conflict", "Duplicate transaction reference",
			"Idempotency key conflict", "Concurrent modification",
		},
		Suggestions: []string{
			"Use unique transaction references", "Implement proper idempotency handling",
			"Check for existing resources before creation", "Handle concurrent access properly",
		},
		Category:    pkgerrors.CategoryPermanent,
		UserMessage: "This payment conflicts with an existing transaction. Please use a new reference.",
	},
	"10422": {
		Code:       "10422",
		Type:       "UNPROCESSABLE",
		Definition: "The request was well-formed but contained invalid data",
		PossibleCauses: []string{
			"Failed validation", "Incorrect or incomplete fields", "Invalid card details",
			"Invalid phone number format", "Amount exceeds limits",
		},
		Suggestions: []string{
			"Validate all input fields", "Check card number format and validity",
			"Verify phone number format", "Ensure amount is within limits",
			"Review validation error details",
		},
		Category:    pkgerrors.CategoryValidation,
		UserMessage: "Some payment details are invalid. Please review them and try again.",
	},
	"10500": {
		Code:       "10500",
		Type:       "INTERNAL_SERVER_ERROR",
		Definition: "An unexpected server error occurred while processing the request",
		PossibleCauses: []string{
			"System failure", "Unhandled exceptions", "Database connection issues",
			"Third-party service failures", "Temporary system issues",
		},
		Suggestions: []string{
			"Retry the request after a delay", "Check Flutterwave service status",
			"Contact support if issue persists", "Implement exponential backoff",
			"Log error for investigation",
		},
		Category:    pkgerrors.CategoryTransient,
		IsRetryable: true,
		UserMessage: genericRetryMessage,
	},
}

// GetErrorCodeInfo returns the table entry for a gateway error code
func GetErrorCodeInfo(code string) (ErrorCodeInfo, bool) {
	info, ok := gatewayErrorCodes[code]
	return info, ok
}

// ErrorCodes lists the documented gateway error codes
func ErrorCodes() []string {
	return []string{"10400", "10401", "10403", "10404", "10409", "10422", "10500"}
}

// declineInfo classifies an issuer response reported in processor_response
type declineInfo struct {
	retryable   bool
	validation  bool
	userMessage string
}

var declineResponses = map[string]declineInfo{
	"incorrect_pin":            {validation: true, userMessage: "The PIN entered is incorrect."},
	"cannot_verify_pin":        {validation: true, userMessage: "Your PIN could not be verified. Please try again."},
	"pin_data_required":        {validation: true, userMessage: "A card PIN is required to complete this payment."},
	"pin_entry_tries_exceeded": {userMessage: "PIN entry attempts exceeded. Please contact your bank."},
	"invalid_cvv":              {validation: true, userMessage: "Incorrect CVV. Please check the security code on your card."},
	"negative_cvv_result":      {validation: true, userMessage: "Incorrect CVV. Please check the security code on your card."},
	"invalid_amount":           {validation: true, userMessage: "The payment amount is not valid for this card."},
	"invalid_account_number":   {validation: true, userMessage: "Invalid card number. Please check your card details."},
	"expired_card":             {userMessage: "Your card has expired. Please use a different payment method."},
	"insufficient_funds":       {userMessage: "Insufficient funds. Please use a different payment method or add funds to your account."},
	"lost_card_pick_up":        {userMessage: "Card reported as lost. Please contact your bank."},
	"stolen_card_pick_up":      {userMessage: "Card reported as stolen. Please contact your bank."},
	"suspected_fraud":          {userMessage: "Transaction declined for security reasons. Please contact your bank."},
	"security_violation":       {userMessage: "Transaction declined for security reasons. Please contact your bank."},
	"issuer_unavailable":       {retryable: true, userMessage: "Your bank is temporarily unavailable. Please try again shortly."},
	"system_error":             {retryable: true, userMessage: genericRetryMessage},
}

const defaultDeclineMessage = "Transaction declined by your bank. Please contact your bank or use a different payment method."

// ValidationDetail is one field-level error reported by the gateway
type ValidationDetail struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ErrorInfo is the classified form of a gateway failure. It is built once by
// Classify, ClassifyDecline or NetworkErrorInfo and not modified afterwards.
type ErrorInfo struct {
	StatusCode       int
	Code             string
	Type             string
	GatewayType      string
	Message          string
	Definition       string
	PossibleCauses   []string
	Suggestions      []string
	ValidationErrors []ValidationDetail
	Category         pkgerrors.ErrorCategory
	IsRetryable      bool
	IsValidation     bool
	IsAuthentication bool
	IsPermanent      bool
	userMessage      string
}

func (e *ErrorInfo) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("gateway error %s (%s, status %d): %s", e.Code, e.Type, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("gateway error %s (%s): %s", e.Code, e.Type, e.Message)
}

// ShouldRetry reports whether attempt (zero-based) may be followed by another
func (e *ErrorInfo) ShouldRetry(attempt, maxAttempts int) bool {
	return e.IsRetryable && attempt < maxAttempts
}

// RetryDelay is the suggested wait before retry number attempt
func (e *ErrorInfo) RetryDelay(attempt int) time.Duration {
	return RetryDelay(attempt)
}

// RetryDelay returns min(2^attempt seconds, 60s)
func RetryDelay(attempt int) time.Duration {
	return resilience.GatewayRetryBackoff().NextDelay(attempt)
}

// UserFriendlyMessage is safe to show to a payer. It never includes internal
// details for non-validation failures.
func (e *ErrorInfo) UserFriendlyMessage() string {
	switch {
	case e.IsValidation && e.Type != declineType:
		if len(e.ValidationErrors) > 0 {
			first := e.ValidationErrors[0]
			field := first.Field
			if field == "" {
				field = "input"
			}
			message := first.Message
			if message == "" {
				message = "Invalid input"
			}
			return fmt.Sprintf("%s: %s", titleField(field), message)
		}
		if e.Message != "" {
			return e.Message
		}
		return e.userMessage
	case e.userMessage != "":
		return e.userMessage
	case e.IsAuthentication:
		return authFailedMessage
	case e.Category == pkgerrors.CategoryTransient || e.Category == pkgerrors.CategoryNetwork:
		return genericRetryMessage
	default:
		return genericUnexpectedMessage
	}
}

// ToPaymentError converts the classification into the shared error taxonomy
func (e *ErrorInfo) ToPaymentError() *pkgerrors.PaymentError {
	pe := pkgerrors.NewPaymentError(e.Code, e.UserFriendlyMessage(), e.Category, e.IsRetryable)
	pe.GatewayMessage = e.Message
	pe.Err = e
	pe.Details["type"] = e.Type
	if e.GatewayType != "" {
		pe.Details["gateway_type"] = e.GatewayType
	}
	if e.StatusCode > 0 {
		pe.Details["status_code"] = e.StatusCode
	}
	if len(e.ValidationErrors) > 0 {
		pe.Details["validation_errors"] = e.ValidationErrors
	}
	return pe
}

// errorEnvelope is the failed response body
type errorEnvelope struct {
	Status string `json:"status"`
	Error  struct {
		Type             string             `json:"type"`
		Code             flexString         `json:"code"`
		Message          string             `json:"message"`
		ValidationErrors []ValidationDetail `json:"validation_errors"`
	} `json:"error"`
}

// flexString accepts both "10400" and 10400
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

// Classify maps an HTTP status and failed response body onto the error table.
// A body without a code falls back to the HTTP status.
func Classify(statusCode int, body []byte) *ErrorInfo {
	var env errorEnvelope
	_ = json.Unmarshal(body, &env)

	code := string(env.Error.Code)
	if code == "" {
		code = codeForStatus(statusCode)
	}

	info := &ErrorInfo{
		StatusCode:       statusCode,
		Code:             code,
		Type:             env.Error.Type,
		Message:          env.Error.Message,
		ValidationErrors: env.Error.ValidationErrors,
	}

	if entry, ok := gatewayErrorCodes[code]; ok {
		if info.Type == "" {
			info.Type = entry.Type
		}
		info.Definition = entry.Definition
		info.PossibleCauses = entry.PossibleCauses
		info.Suggestions = entry.Suggestions
		info.Category = entry.Category
		info.IsRetryable = entry.IsRetryable
		info.userMessage = entry.UserMessage
		info.IsValidation = code == "10400" || code == "10422"
		info.IsAuthentication = entry.Category == pkgerrors.CategoryAuthentication
		info.IsPermanent = !entry.IsRetryable
	} else {
		if info.Type == "" {
			info.Type = "UNKNOWN_ERROR"
		}
		info.Definition = "Unknown error"
		info.Category = pkgerrors.CategoryPermanent
	}

	// Server-side and throttling statuses stay retryable whatever the body says
	if statusCode >= http.StatusInternalServerError || statusCode == http.StatusTooManyRequests {
		info.IsRetryable = true
		info.IsPermanent = false
		info.Category = pkgerrors.CategoryTransient
	}

	return info
}

func codeForStatus(statusCode int) string {
	switch {
	case statusCode == http.StatusBadRequest:
		return "10400"
	case statusCode == http.StatusUnauthorized:
		return "10401"
	case statusCode == http.StatusForbidden:
		return "10403"
	case statusCode == http.StatusNotFound:
		return "10404"
	case statusCode == http.StatusConflict:
		return "10409"
	case statusCode == http.StatusUnprocessableEntity:
		return "10422"
	case statusCode >= http.StatusInternalServerError:
		return "10500"
	default:
		return UnknownErrorCode
	}
}

const declineType = "CARD_DECLINED"

// ClassifyDecline classifies a charge the issuer declined, reported as
// processor_response.type on an otherwise successful HTTP exchange
func ClassifyDecline(reason, message string) *ErrorInfo {
	decline, known := declineResponses[reason]
	if message == "" {
		if desc, ok := CardIssuerResponses[reason]; ok {
			message = desc
		} else {
			message = "Transaction declined"
		}
	}

	info := &ErrorInfo{
		Code:         CodeDeclined,
		Type:         declineType,
		GatewayType:  reason,
		Message:      message,
		Definition:   "The issuer declined the charge",
		Category:     pkgerrors.CategoryPermanent,
		IsPermanent:  true,
		IsValidation: decline.validation,
		userMessage:  decline.userMessage,
	}
	if !known {
		info.userMessage = defaultDeclineMessage
	}
	if decline.retryable {
		info.IsRetryable = true
		info.IsPermanent = false
		info.Category = pkgerrors.CategoryTransient
	}
	return info
}

// NetworkErrorInfo classifies a transport failure. Timeouts are transient.
func NetworkErrorInfo(err error) *ErrorInfo {
	code := CodeNetworkError
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		code = CodeTimeout
	}
	return &ErrorInfo{
		Code:        code,
		Type:        "NETWORK_ERROR",
		Message:     err.Error(),
		Definition:  "The payment gateway could not be reached",
		Category:    pkgerrors.CategoryNetwork,
		IsRetryable: true,
	}
}

// circuitOpenInfo is returned without a network call while the breaker is open
func circuitOpenInfo(err error) *ErrorInfo {
	return &ErrorInfo{
		Code:       CodeCircuitOpen,
		Type:       "SERVICE_UNAVAILABLE",
		Message:    err.Error(),
		Definition: "Gateway calls are suspended after repeated failures",
		Category:   pkgerrors.CategoryTransient,
	}
}

// AsErrorInfo extracts an ErrorInfo from err's chain
func AsErrorInfo(err error) (*ErrorInfo, bool) {
	var info *ErrorInfo
	if errors.As(err, &info) {
		return info, true
	}
	return nil, false
}

// titleField turns "card_number" into "Card Number"
func titleField(field string) string {
	words := strings.FieldsFunc(field, func(r rune) bool { return r == '_' || r == '.' || r == ' ' })
	for i, w := range words {
		runes := []rune(strings.ToLower(w))
		runes[0] = unicode.ToUpper(runes[0])
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}

// statusLabel is used as a metrics label
func statusLabel(info *ErrorInfo) string {
	if info.StatusCode > 0 {
		return strconv.Itoa(info.StatusCode)
	}
	return strings.ToLower(info.Code)
}
