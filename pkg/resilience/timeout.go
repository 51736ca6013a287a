package resilience

import (
	"context"
	"time"
)

// TimeoutConfig defines the service's timeout hierarchy, outermost first:
//
//	HTTP Handler (60s)
//	  Service Layer (50s)
//	    Gateway API (30s per request)
//
// Each layer must finish before its parent times out.
type TimeoutConfig struct {
	HTTPHandler time.Duration
	CronJob     time.Duration

	Service time.Duration

	ExternalAPI          time.Duration
	NotificationDelivery time.Duration
}

// DefaultTimeoutConfig returns production timeout values
func DefaultTimeoutConfig() *TimeoutConfig {
	return &TimeoutConfig{
		HTTPHandler:          60 * time.Second,
		CronJob:              5 * time.Minute,
		Service:              50 * time.Second,
		ExternalAPI:          30 * time.Second,
		NotificationDelivery: 10 * time.Second,
	}
}

// TestTimeoutConfig returns shorter timeouts for testing
func TestTimeoutConfig() *TimeoutConfig {
	return &TimeoutConfig{
		HTTPHandler:          5 * time.Second,
		CronJob:              30 * time.Second,
		Service:              4 * time.Second,
		ExternalAPI:          2 * time.Second,
		NotificationDelivery: 1 * time.Second,
	}
}

// HandlerContext creates a context with timeout for HTTP handlers
func (tc *TimeoutConfig) HandlerContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, tc.HTTPHandler)
}

// CronContext creates a context with timeout for cron jobs
func (tc *TimeoutConfig) CronContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, tc.CronJob)
}

// ServiceContext creates a context with timeout for service layer operations
func (tc *TimeoutConfig) ServiceContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, tc.Service)
}

// NotificationContext creates a context for a single notification delivery attempt
func (tc *TimeoutConfig) NotificationContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, tc.NotificationDelivery)
}
