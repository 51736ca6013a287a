package flutterwave

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	pkgerrors "github.com/kevin07696/flutterwave-gateway/pkg/errors"
)

const (
	HeaderIdempotencyKey = "X-Idempotency-Key"
	HeaderTraceID        = "X-Trace-Id"
	HeaderScenarioKey    = "X-Scenario-Key"
	HeaderAPIVersion     = "X-API-Version"
)

// HeaderOptions selects the optional v4 headers for a request
type HeaderOptions struct {
	// Scenario is sent as X-Scenario-Key; sandbox only
	Scenario Scenario
	// IdempotencyKey pins the key; it implies Idempotency
	IdempotencyKey string
	Idempotency    bool
	Trace          bool
}

// HeaderBuilder assembles the full header set for gateway requests
type HeaderBuilder struct {
	auth       Authenticator
	apiVersion string
	production bool
}

// NewHeaderBuilder creates a HeaderBuilder for the configured environment
func NewHeaderBuilder(auth Authenticator, config Config) *HeaderBuilder {
	config = config.withDefaults()
	return &HeaderBuilder{
		auth:       auth,
		apiVersion: config.APIVersion,
		production: config.IsProduction(),
	}
}

// Headers returns Authorization, Content-Type, X-API-Version and the requested optional headers.
// The scenario is validated before any credential lookup.
func (b *HeaderBuilder) Headers(ctx context.Context, opts HeaderOptions) (http.Header, error) {
	if err := b.CheckScenario(opts.Scenario); err != nil {
		return nil, err
	}
	var scenarioKey string
	if opts.Scenario != nil {
		scenarioKey = opts.Scenario.Key()
	}

	h, err := b.auth.AuthHeaders(ctx)
	if err != nil {
		return nil, err
	}
	h.Set("Content-Type", "application/json")

	if b.apiVersion != "" {
		h.Set(HeaderAPIVersion, b.apiVersion)
	}

	if opts.IdempotencyKey != "" {
		h.Set(HeaderIdempotencyKey, opts.IdempotencyKey)
	} else if opts.Idempotency {
		h.Set(HeaderIdempotencyKey, NewIdempotencyKey())
	}

	if opts.Trace {
		h.Set(HeaderTraceID, NewTraceID())
	}

	if scenarioKey != "" {
		h.Set(HeaderScenarioKey, scenarioKey)
	}

	return h, nil
}

// CheckScenario rejects scenarios outside the sandbox and scenarios missing
// from their registry. A nil scenario is accepted.
func (b *HeaderBuilder) CheckScenario(s Scenario) error {
	if s == nil {
		return nil
	}
	if b.production {
		return pkgerrors.NewValidationError("scenario", "scenario keys are only accepted in the sandbox environment")
	}
	return s.Validate()
}

// NewIdempotencyKey returns a random UUIDv4 key
func NewIdempotencyKey() string {
	return uuid.NewString()
}

// NewTraceID returns a request trace id of the form trace_<32 hex chars>
func NewTraceID() string {
	return "trace_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}
