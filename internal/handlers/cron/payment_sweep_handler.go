package cron

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	paymentsvc "github.com/kevin07696/flutterwave-gateway/internal/services/payment"
	"github.com/kevin07696/flutterwave-gateway/pkg/encoding"
	"github.com/kevin07696/flutterwave-gateway/pkg/resilience"
)

// HeaderCronSecret authenticates scheduler requests
const HeaderCronSecret = "X-Cron-Secret"

// Sweeper runs the scheduled payment maintenance jobs
type Sweeper interface {
	CheckExpiredPayments(ctx context.Context, force bool) (*paymentsvc.SweepResult, error)
	CleanupWebhooks(ctx context.Context) (int64, error)
}

// PaymentSweepHandler handles cron job endpoints for payment maintenance
type PaymentSweepHandler struct {
	sweeper    Sweeper
	logger     *zap.Logger
	cronSecret string
	timeouts   *resilience.TimeoutConfig
}

// NewPaymentSweepHandler creates a new payment sweep cron handler
func NewPaymentSweepHandler(
	sweeper Sweeper,
	logger *zap.Logger,
	cronSecret string,
	timeouts *resilience.TimeoutConfig,
) *PaymentSweepHandler {
	if timeouts == nil {
		timeouts = resilience.DefaultTimeoutConfig()
	}
	return &PaymentSweepHandler{
		sweeper:    sweeper,
		logger:     logger,
		cronSecret: cronSecret,
		timeouts:   timeouts,
	}
}

// RegisterRoutes mounts the cron endpoints
func (h *PaymentSweepHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/cron/check-expired-payments", h.CheckExpiredPayments).Methods(http.MethodPost)
	r.HandleFunc("/cron/cleanup-webhooks", h.CleanupWebhooks).Methods(http.MethodPost)
}

// CheckExpiredRequest is the optional body of POST /cron/check-expired-payments
type CheckExpiredRequest struct {
	Force bool `json:"force"`
}

// CheckExpiredResponse reports what the sweep did
type CheckExpiredResponse struct {
	Success     bool                    `json:"success"`
	Force       bool                    `json:"force"`
	Result      *paymentsvc.SweepResult `json:"result,omitempty"`
	ProcessedAt string                  `json:"processed_at"`
}

// CheckExpiredPayments handles POST /cron/check-expired-payments.
// force may be given in the body or as ?force=true.
func (h *PaymentSweepHandler) CheckExpiredPayments(w http.ResponseWriter, r *http.Request) {
	h.logger.Info("Expired payment sweep triggered",
		zap.String("remote_addr", r.RemoteAddr),
		zap.String("user_agent", r.UserAgent()),
	)

	if !h.authenticateRequest(r) {
		h.logger.Warn("Unauthorized cron request",
			zap.String("remote_addr", r.RemoteAddr),
		)
		h.respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req CheckExpiredRequest
	if r.Body != nil && r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	if q := r.URL.Query().Get("force"); q != "" {
		force, err := strconv.ParseBool(q)
		if err != nil {
			h.respondError(w, http.StatusBadRequest, "force must be true or false")
			return
		}
		req.Force = force
	}

	ctx, cancel := h.timeouts.CronContext(r.Context())
	defer cancel()

	result, err := h.sweeper.CheckExpiredPayments(ctx, req.Force)
	if err != nil {
		h.logger.Error("Expired payment sweep failed", zap.Error(err))
		h.respondError(w, http.StatusInternalServerError, "sweep failed")
		return
	}

	status := http.StatusOK
	if result.Errors > 0 {
		status = http.StatusPartialContent
	}
	h.respond(w, status, CheckExpiredResponse{
		Success:     result.Errors == 0,
		Force:       req.Force,
		Result:      result,
		ProcessedAt: time.Now().UTC().Format(time.RFC3339),
	})
}

// CleanupWebhooks handles POST /cron/cleanup-webhooks
func (h *PaymentSweepHandler) CleanupWebhooks(w http.ResponseWriter, r *http.Request) {
	if !h.authenticateRequest(r) {
		h.respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	ctx, cancel := h.timeouts.CronContext(r.Context())
	defer cancel()

	deleted, err := h.sweeper.CleanupWebhooks(ctx)
	if err != nil {
		h.logger.Error("Webhook cleanup failed", zap.Error(err))
		h.respondError(w, http.StatusInternalServerError, "cleanup failed")
		return
	}

	h.respond(w, http.StatusOK, map[string]interface{}{
		"success":      true,
		"deleted_rows": deleted,
		"processed_at": time.Now().UTC().Format(time.RFC3339),
	})
}

// authenticateRequest accepts the cron secret in X-Cron-Secret or as a bearer
// token. An unset secret rejects every request.
func (h *PaymentSweepHandler) authenticateRequest(r *http.Request) bool {
	if h.cronSecret == "" {
		return false
	}
	if secretMatches(r.Header.Get(HeaderCronSecret), h.cronSecret) {
		return true
	}
	return secretMatches(r.Header.Get("Authorization"), "Bearer "+h.cronSecret)
}

func secretMatches(got, want string) bool {
	return got != "" && subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}

func (h *PaymentSweepHandler) respondError(w http.ResponseWriter, statusCode int, message string) {
	h.respond(w, statusCode, map[string]interface{}{
		"success": false,
		"error":   message,
	})
}

func (h *PaymentSweepHandler) respond(w http.ResponseWriter, status int, body interface{}) {
	if err := encoding.WriteJSON(w, status, body); err != nil {
		h.logger.Error("Failed to encode response", zap.Error(err))
	}
}
