package flutterwave

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/kevin07696/flutterwave-gateway/pkg/errors"
)

func TestHeaders_Defaults(t *testing.T) {
	b := NewHeaderBuilder(&staticAuth{}, DefaultConfig(EnvironmentSandbox))

	h, err := b.Headers(context.Background(), HeaderOptions{})
	require.NoError(t, err)
	assert.Equal(t, "Bearer static", h.Get("Authorization"))
	assert.Equal(t, "application/json", h.Get("Content-Type"))
	assert.Equal(t, DefaultAPIVersion, h.Get(HeaderAPIVersion))
	assert.Empty(t, h.Get(HeaderIdempotencyKey))
	assert.Empty(t, h.Get(HeaderTraceID))
	assert.Empty(t, h.Get(HeaderScenarioKey))
}

func TestHeaders_IdempotencyKey(t *testing.T) {
	b := NewHeaderBuilder(&staticAuth{}, DefaultConfig(EnvironmentSandbox))

	h1, err := b.Headers(context.Background(), HeaderOptions{Idempotency: true})
	require.NoError(t, err)
	h2, err := b.Headers(context.Background(), HeaderOptions{Idempotency: true})
	require.NoError(t, err)

	k1 := h1.Get(HeaderIdempotencyKey)
	_, err = uuid.Parse(k1)
	require.NoError(t, err)
	assert.NotEqual(t, k1, h2.Get(HeaderIdempotencyKey))

	pinned, err := b.Headers(context.Background(), HeaderOptions{IdempotencyKey: "payment_ref_001"})
	require.NoError(t, err)
	assert.Equal(t, "payment_ref_001", pinned.Get(HeaderIdempotencyKey))
}

func TestHeaders_Trace(t *testing.T) {
	b := NewHeaderBuilder(&staticAuth{}, DefaultConfig(EnvironmentSandbox))

	h, err := b.Headers(context.Background(), HeaderOptions{Trace: true})
	require.NoError(t, err)
	assert.Regexp(t, `^trace_[0-9a-f]{32}$`, h.Get(HeaderTraceID))
}

func TestHeaders_Scenario(t *testing.T) {
	auth := &staticAuth{}
	b := NewHeaderBuilder(auth, DefaultConfig(EnvironmentSandbox))

	h, err := b.Headers(context.Background(), HeaderOptions{Scenario: CardScenario{Auth: "auth_avs", Issuer: "approved"}})
	require.NoError(t, err)
	assert.Equal(t, "scenario:auth_avs&issuer:approved", h.Get(HeaderScenarioKey))

	_, err = b.Headers(context.Background(), HeaderOptions{Scenario: MobileMoneyScenario{Flow: "sms_magic"}})
	var ve *pkgerrors.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, 1, auth.calls)
}

func TestHeaders_ScenarioRejectedInProduction(t *testing.T) {
	auth := &staticAuth{}
	b := NewHeaderBuilder(auth, DefaultConfig(EnvironmentProduction))

	_, err := b.Headers(context.Background(), HeaderOptions{Scenario: TransferScenario{Outcome: "successful"}})
	var ve *pkgerrors.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "scenario", ve.Field)
	assert.Equal(t, 0, auth.calls)
}

func TestHeaders_AuthFailurePropagates(t *testing.T) {
	authErr := pkgerrors.NewConfigurationError("no gateway credentials configured", nil)
	b := NewHeaderBuilder(&staticAuth{err: authErr}, DefaultConfig(EnvironmentSandbox))

	h, err := b.Headers(context.Background(), HeaderOptions{Idempotency: true})
	assert.Nil(t, h)
	assert.ErrorIs(t, err, authErr)
}
