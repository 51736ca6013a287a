package webhook

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/kevin07696/flutterwave-gateway/internal/domain"
	paymentsvc "github.com/kevin07696/flutterwave-gateway/internal/services/payment"
)

type processorFunc func(ctx context.Context, body []byte, headers http.Header) (*paymentsvc.WebhookResult, error)

func (f processorFunc) HandleWebhook(ctx context.Context, body []byte, headers http.Header) (*paymentsvc.WebhookResult, error) {
	return f(ctx, body, headers)
}

func postWebhook(t *testing.T, p Processor, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	r := mux.NewRouter()
	NewFlutterwaveHandler(p, zaptest.NewLogger(t)).RegisterRoutes(r)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/flutterwave", bytes.NewReader(body))
	req.Header.Set("verif-hash", "secret")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHandleWebhook_PassesRawBodyAndHeaders(t *testing.T) {
	body := []byte(`{"event":"charge.completed","data":{"tx_ref":"order001"}}`)
	var gotBody []byte
	var gotHash string
	p := processorFunc(func(ctx context.Context, b []byte, h http.Header) (*paymentsvc.WebhookResult, error) {
		gotBody = b
		gotHash = h.Get("verif-hash")
		return &paymentsvc.WebhookResult{EventID: "evt_1", Changed: true}, nil
	})

	w := postWebhook(t, p, body)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, body, gotBody)
	assert.Equal(t, "secret", gotHash)
	assert.JSONEq(t, `{"status":"ok","event_id":"evt_1","changed":true}`, w.Body.String())
}

func TestHandleWebhook_ErrorStatuses(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{name: "bad signature", err: domain.ErrWebhookSignature, wantStatus: http.StatusUnauthorized},
		{name: "bad payload", err: domain.ErrWebhookPayload.WithDetail("error", "eof"), wantStatus: http.StatusBadRequest},
		{name: "storage failure", err: errors.New("connection reset"), wantStatus: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := processorFunc(func(context.Context, []byte, http.Header) (*paymentsvc.WebhookResult, error) {
				return nil, tt.err
			})
			w := postWebhook(t, p, []byte(`{}`))
			assert.Equal(t, tt.wantStatus, w.Code)
			assert.NotContains(t, w.Body.String(), "connection reset")
		})
	}
}

func TestHandleWebhook_BodyTooLarge(t *testing.T) {
	called := false
	p := processorFunc(func(context.Context, []byte, http.Header) (*paymentsvc.WebhookResult, error) {
		called = true
		return &paymentsvc.WebhookResult{}, nil
	})

	w := postWebhook(t, p, bytes.Repeat([]byte("a"), maxWebhookBytes+1))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.False(t, called)
}
