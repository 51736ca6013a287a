package middleware

import (
	"compress/gzip"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/kevin07696/flutterwave-gateway/pkg/resilience"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func requestFrom(path, addr string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, nil)
	req.RemoteAddr = addr
	return req
}

func TestRateLimiter_LimitsPerIP(t *testing.T) {
	rl := NewRateLimiter(1, 2, WithLogger(zaptest.NewLogger(t)))
	defer rl.Shutdown()
	h := rl.Middleware(okHandler)

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, requestFrom("/api/v1/payments/card", "10.0.0.1:5000"))
		assert.Equal(t, http.StatusOK, rec.Code)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, requestFrom("/api/v1/payments/card", "10.0.0.1:5001"))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), "RATE_LIMITED")

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, requestFrom("/api/v1/payments/card", "10.0.0.2:5000"))
	assert.Equal(t, http.StatusOK, rec.Code, "other clients keep their own bucket")
}

func TestRateLimiter_ExemptPrefixes(t *testing.T) {
	rl := NewRateLimiter(1, 1, WithExemptPrefixes("/webhooks/"))
	defer rl.Shutdown()
	h := rl.Middleware(okHandler)

	for i := 0; i < 5; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, requestFrom("/webhooks/flutterwave", "10.0.0.1:5000"))
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestRateLimiter_CleanupAndEviction(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	rl.Shutdown()
	rl.Shutdown()

	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }
	rl.maxSize = 2

	rl.getLimiter("a")
	now = now.Add(time.Second)
	rl.getLimiter("b")
	now = now.Add(time.Second)
	rl.getLimiter("c")
	assert.Len(t, rl.limiters, 2)
	assert.NotContains(t, rl.limiters, "a")

	now = now.Add(rl.cleanupInterval + time.Second)
	rl.getLimiter("d")
	rl.cleanup()
	assert.Len(t, rl.limiters, 1)
	assert.Contains(t, rl.limiters, "d")
}

func TestClientIP(t *testing.T) {
	assert.Equal(t, "192.0.2.1", ClientIP(requestFrom("/", "192.0.2.1:1234")))
	assert.Equal(t, "::1", ClientIP(requestFrom("/", "[::1]:1234")))
	assert.Equal(t, "pipe", ClientIP(requestFrom("/", "pipe")))
}

func jsonHandler(body string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, body)
	})
}

func TestGzipHandler(t *testing.T) {
	body := `{"status":"successful"}`
	h := GzipHandler(nil, zaptest.NewLogger(t))(jsonHandler(body))

	t.Run("compresses json", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/payments/ref-1/verify", nil)
		req.Header.Set("Accept-Encoding", "gzip, deflate")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusCreated, rec.Code)
		assert.Equal(t, "gzip", rec.Header().Get("Content-Encoding"))
		zr, err := gzip.NewReader(rec.Body)
		require.NoError(t, err)
		decoded, err := io.ReadAll(zr)
		require.NoError(t, err)
		assert.Equal(t, body, string(decoded))
	})

	t.Run("client without gzip", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/payments/ref-1/verify", nil))
		assert.Empty(t, rec.Header().Get("Content-Encoding"))
		assert.Equal(t, body, rec.Body.String())
	})

	t.Run("excluded path", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
		req.Header.Set("Accept-Encoding", "gzip")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Empty(t, rec.Header().Get("Content-Encoding"))
	})

	t.Run("binary content passes through", func(t *testing.T) {
		bin := GzipHandler(nil, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "image/png")
			_, _ = w.Write([]byte{0x89, 0x50})
		}))
		req := httptest.NewRequest(http.MethodGet, "/logo.png", nil)
		req.Header.Set("Accept-Encoding", "gzip")
		rec := httptest.NewRecorder()
		bin.ServeHTTP(rec, req)
		assert.Empty(t, rec.Header().Get("Content-Encoding"))
		assert.Equal(t, []byte{0x89, 0x50}, rec.Body.Bytes())
	})
}

func TestTimeout(t *testing.T) {
	cfg := resilience.TestTimeoutConfig()
	var deadline time.Time
	h := Timeout(cfg, zaptest.NewLogger(t))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var ok bool
		deadline, ok = r.Context().Deadline()
		assert.True(t, ok)
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.WithinDuration(t, time.Now().Add(cfg.HTTPHandler), deadline, time.Second)

	parent, cancel := context.WithTimeout(context.Background(), time.Hour)
	defer cancel()
	want, _ := parent.Deadline()
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil).WithContext(parent))
	assert.Equal(t, want, deadline)
}

func TestRecoveryAndLogging(t *testing.T) {
	logger := zaptest.NewLogger(t)
	panicking := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})
	h := Logging(logger)(Recovery(logger)(panicking))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/payments/card", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "INTERNAL_ERROR")
}
