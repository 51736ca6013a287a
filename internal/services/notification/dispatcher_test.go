package notification

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kevin07696/flutterwave-gateway/internal/domain"
	"github.com/kevin07696/flutterwave-gateway/pkg/resilience"
	"github.com/kevin07696/flutterwave-gateway/test/mocks"
)

func testEvent() domain.PaymentEvent {
	return domain.PaymentEvent{
		OccurredAt: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		Amount:     decimal.NewFromInt(5000),
		Type:       domain.PaymentEventSuccessful,
		PaymentID:  "pay_1",
		Reference:  "order001",
		Status:     domain.PaymentStatusSuccessful,
		Currency:   "UGX",
	}
}

func newTestDispatcher(url string, client *mocks.MockHTTPClient) *Dispatcher {
	cfg := Config{
		URL:      url,
		Secret:   "notify-secret",
		Backoff:  &resilience.FixedBackoff{Delay: time.Millisecond},
		Timeouts: resilience.TestTimeoutConfig(),
	}
	var d *Dispatcher
	if client != nil {
		d = NewDispatcher(cfg, client, zap.NewNop())
	} else {
		d = NewDispatcher(cfg, nil, zap.NewNop())
	}
	d.sleep = func(ctx context.Context, _ time.Duration) error { return ctx.Err() }
	return d
}

func TestDispatcher_DeliversSignedEvent(t *testing.T) {
	var got struct {
		body      []byte
		signature string
		eventType string
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.body, _ = io.ReadAll(r.Body)
		got.signature = r.Header.Get(HeaderSignature)
		got.eventType = r.Header.Get(HeaderEventType)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	err := newTestDispatcher(srv.URL, nil).Notify(context.Background(), testEvent())
	require.NoError(t, err)

	assert.Equal(t, "payment.successful", got.eventType)
	assert.Equal(t, Sign(got.body, "notify-secret"), got.signature)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(got.body, &decoded))
	assert.Equal(t, "order001", decoded["reference"])
	assert.Equal(t, "5000", decoded["amount"])
}

func TestDispatcher_RetriesServerErrors(t *testing.T) {
	var calls int32
	client := mocks.NewMockHTTPClient(func(req *http.Request) (*http.Response, error) {
		if atomic.AddInt32(&calls, 1) < 3 {
			return mocks.JSONResponse(http.StatusBadGateway, `{}`), nil
		}
		return mocks.JSONResponse(http.StatusOK, `{}`), nil
	})

	err := newTestDispatcher("https://hooks.example.com/payments", client).Notify(context.Background(), testEvent())
	require.NoError(t, err)
	assert.Equal(t, 3, client.CallCount())
}

func TestDispatcher_GivesUpAfterMaxAttempts(t *testing.T) {
	client := mocks.NewMockHTTPClient(func(req *http.Request) (*http.Response, error) {
		return nil, errors.New("connection refused")
	})

	err := newTestDispatcher("https://hooks.example.com/payments", client).Notify(context.Background(), testEvent())
	require.Error(t, err)
	assert.ErrorContains(t, err, "connection refused")
	assert.Equal(t, DefaultMaxAttempts, client.CallCount())
}

func TestDispatcher_DoesNotRetryClientErrors(t *testing.T) {
	client := mocks.NewMockHTTPClient(func(req *http.Request) (*http.Response, error) {
		return mocks.JSONResponse(http.StatusBadRequest, `{"error":"bad"}`), nil
	})

	err := newTestDispatcher("https://hooks.example.com/payments", client).Notify(context.Background(), testEvent())
	assert.ErrorContains(t, err, "HTTP 400")
	assert.Equal(t, 1, client.CallCount())
}

func TestDispatcher_NoURLIsNoop(t *testing.T) {
	client := mocks.NewMockHTTPClient(nil)

	err := newTestDispatcher("", client).Notify(context.Background(), testEvent())
	require.NoError(t, err)
	assert.Zero(t, client.CallCount())
}

func TestDispatcher_StopsOnCancelledContext(t *testing.T) {
	client := mocks.NewMockHTTPClient(func(req *http.Request) (*http.Response, error) {
		return mocks.JSONResponse(http.StatusServiceUnavailable, `{}`), nil
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := newTestDispatcher("https://hooks.example.com/payments", client).Notify(ctx, testEvent())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, client.CallCount())
}
