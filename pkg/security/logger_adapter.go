package security

import (
	"strings"

	"go.uber.org/zap"

	"github.com/kevin07696/flutterwave-gateway/internal/domain/ports"
)

const redacted = "[REDACTED]"

// sensitiveKeys are field names whose values never reach the log sink
var sensitiveKeys = map[string]struct{}{
	"card_number":    {},
	"cvv":            {},
	"pin":            {},
	"otp":            {},
	"access_token":   {},
	"authorization":  {},
	"client_secret":  {},
	"secret_key":     {},
	"secret_hash":    {},
	"encryption_key": {},
	"password":       {},
}

// ZapLoggerAdapter adapts zap.Logger to the Logger port and redacts sensitive fields
type ZapLoggerAdapter struct {
	logger *zap.Logger
}

// NewZapLogger creates a new ZapLoggerAdapter
func NewZapLogger(logger *zap.Logger) *ZapLoggerAdapter {
	return &ZapLoggerAdapter{logger: logger}
}

// Info logs an info message
func (z *ZapLoggerAdapter) Info(msg string, fields ...ports.Field) {
	z.logger.Info(msg, convertFields(fields)...)
}

// Error logs an error message
func (z *ZapLoggerAdapter) Error(msg string, fields ...ports.Field) {
	z.logger.Error(msg, convertFields(fields)...)
}

// Warn logs a warning message
func (z *ZapLoggerAdapter) Warn(msg string, fields ...ports.Field) {
	z.logger.Warn(msg, convertFields(fields)...)
}

// Debug logs a debug message
func (z *ZapLoggerAdapter) Debug(msg string, fields ...ports.Field) {
	z.logger.Debug(msg, convertFields(fields)...)
}

// convertFields converts port fields to zap fields
func convertFields(fields []ports.Field) []zap.Field {
	zapFields := make([]zap.Field, len(fields))
	for i, f := range fields {
		if IsSensitiveKey(f.Key) {
			zapFields[i] = zap.String(f.Key, redacted)
			continue
		}
		if err, ok := f.Value.(error); ok {
			zapFields[i] = zap.NamedError(f.Key, err)
			continue
		}
		zapFields[i] = zap.Any(f.Key, f.Value)
	}
	return zapFields
}

// IsSensitiveKey reports whether a field with this key is redacted
func IsSensitiveKey(key string) bool {
	_, ok := sensitiveKeys[strings.ToLower(key)]
	return ok
}
