package notification

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/kevin07696/flutterwave-gateway/internal/domain"
	"github.com/kevin07696/flutterwave-gateway/internal/domain/ports"
	"github.com/kevin07696/flutterwave-gateway/pkg/encoding"
	"github.com/kevin07696/flutterwave-gateway/pkg/observability"
	"github.com/kevin07696/flutterwave-gateway/pkg/resilience"
)

const (
	HeaderSignature = "X-Webhook-Signature"
	HeaderEventType = "X-Webhook-Event-Type"
	HeaderTimestamp = "X-Webhook-Timestamp"

	DefaultMaxAttempts = 4
)

// Config configures outbound notification delivery
type Config struct {
	URL         string
	Secret      string
	MaxAttempts int
	Backoff     resilience.BackoffStrategy
	Timeouts    *resilience.TimeoutConfig
}

// Dispatcher posts signed payment events to a downstream URL.
// It implements ports.Notifier.
type Dispatcher struct {
	config     Config
	httpClient ports.HTTPClient
	logger     *zap.Logger
	sleep      func(ctx context.Context, d time.Duration) error
}

// NewDispatcher creates a dispatcher. An empty URL makes Notify a no-op.
func NewDispatcher(cfg Config, httpClient ports.HTTPClient, logger *zap.Logger) *Dispatcher {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.Backoff == nil {
		cfg.Backoff = resilience.WebhookBackoff()
	}
	if cfg.Timeouts == nil {
		cfg.Timeouts = resilience.DefaultTimeoutConfig()
	}

	return &Dispatcher{
		config:     cfg,
		httpClient: httpClient,
		logger:     logger,
		sleep:      sleepContext,
	}
}

// Notify delivers event, retrying transport failures and retryable statuses
func (d *Dispatcher) Notify(ctx context.Context, event domain.PaymentEvent) error {
	if d.config.URL == "" {
		d.logger.Debug("Notification URL not configured, skipping",
			zap.String("event_type", string(event.Type)),
			zap.String("reference", event.Reference),
		)
		return nil
	}

	payload, err := encoding.EncodeJSON(event)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}

	start := time.Now()
	var lastErr error
	for attempt := 0; attempt < d.config.MaxAttempts; attempt++ {
		if attempt > 0 {
			if err := d.sleep(ctx, d.config.Backoff.NextDelay(attempt-1)); err != nil {
				lastErr = err
				break
			}
		}

		retryable, err := d.deliver(ctx, event, payload)
		if err == nil {
			observability.RecordNotificationDelivery(string(event.Type), "success", time.Since(start).Seconds())
			d.logger.Info("Notification delivered",
				zap.String("event_type", string(event.Type)),
				zap.String("reference", event.Reference),
				zap.Int("attempts", attempt+1),
			)
			return nil
		}
		lastErr = err

		d.logger.Warn("Notification delivery failed",
			zap.String("event_type", string(event.Type)),
			zap.String("reference", event.Reference),
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)
		if !retryable {
			break
		}
	}

	observability.RecordNotificationDelivery(string(event.Type), "failed", time.Since(start).Seconds())
	return fmt.Errorf("notification delivery failed: %w", lastErr)
}

// deliver sends one attempt and reports whether a failure may be retried
func (d *Dispatcher) deliver(ctx context.Context, event domain.PaymentEvent, payload []byte) (bool, error) {
	ctx, cancel := d.config.Timeouts.NotificationContext(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.config.URL, bytes.NewReader(payload))
	if err != nil {
		return false, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderEventType, string(event.Type))
	req.Header.Set(HeaderTimestamp, event.OccurredAt.UTC().Format(time.RFC3339))
	if d.config.Secret != "" {
		req.Header.Set(HeaderSignature, Sign(payload, d.config.Secret))
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return true, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return false, nil
	}

	retryable := resp.StatusCode >= 500 ||
		resp.StatusCode == http.StatusTooManyRequests ||
		resp.StatusCode == http.StatusRequestTimeout
	return retryable, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body))
}

// Sign returns the hex HMAC-SHA256 of payload
func Sign(payload []byte, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
