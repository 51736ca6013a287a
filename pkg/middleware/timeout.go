package middleware

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/kevin07696/flutterwave-gateway/pkg/resilience"
)

// Timeout bounds each request with the handler timeout. Requests whose
// context already carries a deadline keep it.
func Timeout(config *resilience.TimeoutConfig, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, hasDeadline := r.Context().Deadline(); hasDeadline {
				next.ServeHTTP(w, r)
				return
			}

			ctx, cancel := config.HandlerContext(r.Context())
			defer cancel()

			logger.Debug("Applied handler timeout",
				zap.String("path", r.URL.Path),
				zap.Duration("timeout", config.HTTPHandler),
			)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
