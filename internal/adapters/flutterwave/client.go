package flutterwave

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/kevin07696/flutterwave-gateway/internal/domain/ports"
	pkgerrors "github.com/kevin07696/flutterwave-gateway/pkg/errors"
	"github.com/kevin07696/flutterwave-gateway/pkg/observability"
	"github.com/kevin07696/flutterwave-gateway/pkg/resilience"
)

const maxResponseBytes = 1 << 20

// tokenInvalidator is implemented by authenticators that cache tokens
type tokenInvalidator interface {
	Invalidate(ctx context.Context) error
}

// Client calls the v4 gateway API. Every call goes through the header
// builder, the circuit breaker and the classifier-driven retry loop.
type Client struct {
	config     Config
	httpClient ports.HTTPClient
	auth       Authenticator
	headers    *HeaderBuilder
	encryptor  *Encryptor
	breaker    *resilience.CircuitBreaker
	logger     ports.Logger
}

// NewClient creates a Client with injected transport and authenticator
func NewClient(config Config, httpClient ports.HTTPClient, auth Authenticator, logger ports.Logger) (*Client, error) {
	config = config.withDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}

	encryptor, err := NewEncryptor(config.EncryptionKey)
	if err != nil {
		return nil, err
	}
	if !encryptor.IsConfigured() {
		logger.Warn("Card encryption key not configured, card payments are disabled")
	}

	c := &Client{
		config:     config,
		httpClient: httpClient,
		auth:       auth,
		headers:    NewHeaderBuilder(auth, config),
		encryptor:  encryptor,
		logger:     logger,
	}

	breakerConfig := config.CircuitBreaker
	breakerConfig.IsFailure = countsAgainstCircuit
	breakerConfig.OnStateChange = func(from, to resilience.CircuitState) {
		observability.SetCircuitState(int(to))
		logger.Warn("Gateway circuit breaker state changed",
			ports.String("from", from.String()),
			ports.String("to", to.String()),
		)
	}
	c.breaker = resilience.NewCircuitBreaker(breakerConfig)

	return c, nil
}

// NewClientWithDefaults creates a Client with an http.Client bounded by
// config.Timeout and an AuthManager backed by store
func NewClientWithDefaults(config Config, store ports.TokenStore, logger ports.Logger) (*Client, *AuthManager, error) {
	config = config.withDefaults()
	httpClient := &http.Client{Timeout: config.Timeout}
	auth := NewAuthManager(config, store, httpClient, logger)

	c, err := NewClient(config, httpClient, auth, logger)
	if err != nil {
		return nil, nil, err
	}
	return c, auth, nil
}

// Encryptor exposes the card encryptor
func (c *Client) Encryptor() *Encryptor {
	return c.encryptor
}

// Config returns the effective configuration
func (c *Client) Config() Config {
	return c.config
}

// CircuitState reports the breaker state for health checks
func (c *Client) CircuitState() resilience.CircuitState {
	return c.breaker.State()
}

type requestOptions struct {
	// idempotent requests carry X-Idempotency-Key; the key is fixed before the first attempt
	idempotent     bool
	idempotencyKey string
	scenario       Scenario
	query          url.Values
}

// do sends one logical request, retrying classified transient failures.
// Gateway failures come back as *ErrorInfo; anything else is unexpected.
func (c *Client) do(ctx context.Context, operation, method, path string, payload any, opts requestOptions, out any) error {
	var body []byte
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal %s request: %w", operation, err)
		}
		body = b
	}

	key := opts.idempotencyKey
	if key == "" && opts.idempotent {
		key = NewIdempotencyKey()
	}
	// POST without a key could create duplicates on retry
	retrySafe := method == http.MethodGet || method == http.MethodPut || key != ""

	for attempt := 0; ; attempt++ {
		info, err := c.attempt(ctx, operation, method, path, body, key, opts, out)
		if err != nil {
			return err
		}
		if info == nil {
			return nil
		}

		if !retrySafe || info.Code == CodeCircuitOpen || !info.ShouldRetry(attempt, c.config.MaxRetries) {
			return info
		}

		delay := c.config.RetryBackoff.NextDelay(attempt)
		observability.RecordGatewayRetry(operation, statusLabel(info))
		c.logger.Warn("Retrying gateway request",
			ports.String("operation", operation),
			ports.Int("attempt", attempt+1),
			ports.String("code", info.Code),
			ports.Duration("delay", delay),
		)

		if err := sleepContext(ctx, delay); err != nil {
			return info
		}
	}
}

func (c *Client) attempt(ctx context.Context, operation, method, path string, body []byte, key string, opts requestOptions, out any) (*ErrorInfo, error) {
	start := time.Now()

	var info *ErrorInfo
	err := c.breaker.Call(func() error {
		i, err := c.send(ctx, operation, method, path, body, key, opts, out)
		if err != nil {
			return err
		}
		if i != nil {
			info = i
			return i
		}
		return nil
	})

	switch {
	case errors.Is(err, resilience.ErrCircuitOpen), errors.Is(err, resilience.ErrTooManyRequests):
		info = circuitOpenInfo(err)
	case err != nil && info == nil:
		observability.RecordGatewayRequest(operation, "error", time.Since(start))
		return nil, err
	}

	outcome := "success"
	if info != nil {
		outcome = string(info.Category)
	}
	observability.RecordGatewayRequest(operation, outcome, time.Since(start))

	return info, nil
}

func (c *Client) send(ctx context.Context, operation, method, path string, body []byte, key string, opts requestOptions, out any) (*ErrorInfo, error) {
	headers, err := c.headers.Headers(ctx, HeaderOptions{
		Scenario:       opts.scenario,
		IdempotencyKey: key,
		Trace:          true,
	})
	if err != nil {
		if info := credentialErrorInfo(err); info != nil {
			return info, nil
		}
		return nil, err
	}

	endpoint := c.config.BaseURL + path
	if len(opts.query) > 0 {
		endpoint += "?" + opts.query.Encode()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header = headers

	c.logger.Debug("Sending gateway request",
		ports.String("operation", operation),
		ports.String("method", method),
		ports.String("path", path),
		ports.String("trace_id", headers.Get(HeaderTraceID)),
	)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		c.logger.Warn("Gateway request failed",
			ports.String("operation", operation),
			ports.Err(err),
		)
		return NetworkErrorInfo(err), nil
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return NetworkErrorInfo(err), nil
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		info := Classify(resp.StatusCode, respBody)
		if resp.StatusCode == http.StatusUnauthorized {
			if inv, ok := c.auth.(tokenInvalidator); ok {
				if err := inv.Invalidate(ctx); err != nil {
					c.logger.Warn("Failed to invalidate access token", ports.Err(err))
				}
			}
		}
		c.logger.Warn("Gateway returned error",
			ports.String("operation", operation),
			ports.Int("status", resp.StatusCode),
			ports.String("code", info.Code),
			ports.String("type", info.Type),
		)
		return info, nil
	}

	var env envelope
	if err := json.Unmarshal(respBody, &env); err != nil {
		return nil, fmt.Errorf("failed to decode %s response: %w", operation, err)
	}
	if env.Status == ChargeStatusFailed {
		return Classify(resp.StatusCode, respBody), nil
	}

	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return nil, fmt.Errorf("failed to decode %s data: %w", operation, err)
		}
	}

	return nil, nil
}

// credentialErrorInfo turns token endpoint failures into classified gateway failures
func credentialErrorInfo(err error) *ErrorInfo {
	var pe *pkgerrors.PaymentError
	if !errors.As(err, &pe) {
		return nil
	}
	switch pe.Category {
	case pkgerrors.CategoryAuthentication, pkgerrors.CategoryTransient, pkgerrors.CategoryNetwork:
	default:
		return nil
	}
	return &ErrorInfo{
		Code:             pe.Code,
		Type:             "AUTHENTICATION_ERROR",
		Message:          pe.Error(),
		Definition:       "An access token could not be obtained",
		Category:         pe.Category,
		IsRetryable:      pe.IsRetriable,
		IsAuthentication: pe.Category == pkgerrors.CategoryAuthentication,
		IsPermanent:      !pe.IsRetriable,
	}
}

// countsAgainstCircuit trips the breaker only on gateway outages
func countsAgainstCircuit(err error) bool {
	info, ok := AsErrorInfo(err)
	if !ok {
		return false
	}
	return info.Category == pkgerrors.CategoryTransient || info.Category == pkgerrors.CategoryNetwork
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
