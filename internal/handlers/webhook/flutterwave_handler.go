package webhook

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/kevin07696/flutterwave-gateway/internal/domain"
	paymentsvc "github.com/kevin07696/flutterwave-gateway/internal/services/payment"
	"github.com/kevin07696/flutterwave-gateway/pkg/encoding"
)

const maxWebhookBytes = 1 << 20

// Processor applies verified gateway webhooks
type Processor interface {
	HandleWebhook(ctx context.Context, body []byte, headers http.Header) (*paymentsvc.WebhookResult, error)
}

// FlutterwaveHandler receives gateway webhooks
type FlutterwaveHandler struct {
	processor Processor
	logger    *zap.Logger
}

// NewFlutterwaveHandler creates a new webhook handler
func NewFlutterwaveHandler(processor Processor, logger *zap.Logger) *FlutterwaveHandler {
	return &FlutterwaveHandler{
		processor: processor,
		logger:    logger,
	}
}

// RegisterRoutes mounts POST /webhooks/flutterwave
func (h *FlutterwaveHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/webhooks/flutterwave", h.HandleWebhook).Methods(http.MethodPost)
}

// HandleWebhook handles POST /webhooks/flutterwave. The raw body is passed
// through untouched since the signature covers its exact bytes.
func (h *FlutterwaveHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBytes))
	if err != nil {
		h.respond(w, http.StatusRequestEntityTooLarge, map[string]string{"status": "error", "error": "body too large"})
		return
	}

	result, err := h.processor.HandleWebhook(r.Context(), body, r.Header)
	switch {
	case errors.Is(err, domain.ErrWebhookSignature):
		h.logger.Warn("Rejected webhook with invalid signature",
			zap.String("remote_addr", r.RemoteAddr),
		)
		h.respond(w, http.StatusUnauthorized, map[string]string{"status": "error", "error": "invalid signature"})
		return
	case errors.Is(err, domain.ErrWebhookPayload):
		h.respond(w, http.StatusBadRequest, map[string]string{"status": "error", "error": "invalid payload"})
		return
	case err != nil:
		// the gateway retries on non-2xx
		h.logger.Error("Webhook processing failed", zap.Error(err))
		h.respond(w, http.StatusInternalServerError, map[string]string{"status": "error", "error": "processing failed"})
		return
	}

	h.respond(w, http.StatusOK, map[string]interface{}{
		"status":   "ok",
		"event_id": result.EventID,
		"changed":  result.Changed,
	})
}

func (h *FlutterwaveHandler) respond(w http.ResponseWriter, status int, body interface{}) {
	if err := encoding.WriteJSON(w, status, body); err != nil {
		h.logger.Error("Failed to encode response", zap.Error(err))
	}
}
