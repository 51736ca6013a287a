package payment

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/kevin07696/flutterwave-gateway/internal/adapters/flutterwave"
	"github.com/kevin07696/flutterwave-gateway/internal/domain"
	paymentsvc "github.com/kevin07696/flutterwave-gateway/internal/services/payment"
	"github.com/kevin07696/flutterwave-gateway/pkg/encoding"
	pkgerrors "github.com/kevin07696/flutterwave-gateway/pkg/errors"
	"github.com/kevin07696/flutterwave-gateway/pkg/resilience"
)

// HeaderIdempotencyKey supplies the payment reference when the body omits it
const HeaderIdempotencyKey = "Idempotency-Key"

const maxBodyBytes = 64 << 10

// Service is the payment service surface the handler exposes
type Service interface {
	StartCardPayment(ctx context.Context, in paymentsvc.CardPaymentInput) (*paymentsvc.PaymentResult, error)
	StartMobileMoneyPayment(ctx context.Context, in paymentsvc.MobileMoneyPaymentInput) (*paymentsvc.PaymentResult, error)
	StartTransfer(ctx context.Context, in paymentsvc.TransferInput) (*paymentsvc.PaymentResult, error)
	AuthorizePayment(ctx context.Context, reference string, auth flutterwave.Authorization) (*paymentsvc.PaymentResult, error)
	VerifyPayment(ctx context.Context, reference string) (*paymentsvc.PaymentResult, error)
	RefundPayment(ctx context.Context, in paymentsvc.RefundInput) (*flutterwave.Refund, error)
}

// Handler serves the payment REST API
type Handler struct {
	service  Service
	logger   *zap.Logger
	timeouts *resilience.TimeoutConfig
}

// NewHandler creates a new payment handler. Service calls are bounded by
// timeouts.Service; a nil timeouts uses the defaults.
func NewHandler(service Service, logger *zap.Logger, timeouts *resilience.TimeoutConfig) *Handler {
	if timeouts == nil {
		timeouts = resilience.DefaultTimeoutConfig()
	}
	return &Handler{
		service:  service,
		logger:   logger,
		timeouts: timeouts,
	}
}

// RegisterRoutes mounts the payment API under /api/v1
func (h *Handler) RegisterRoutes(r *mux.Router) {
	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/payments/card", h.StartCardPayment).Methods(http.MethodPost)
	api.HandleFunc("/payments/mobile-money", h.StartMobileMoneyPayment).Methods(http.MethodPost)
	api.HandleFunc("/transfers", h.StartTransfer).Methods(http.MethodPost)
	api.HandleFunc("/payments/{reference}/authorize", h.AuthorizePayment).Methods(http.MethodPost)
	api.HandleFunc("/payments/{reference}/verify", h.VerifyPayment).Methods(http.MethodGet)
	api.HandleFunc("/payments/{reference}/refund", h.RefundPayment).Methods(http.MethodPost)
}

// StartCardPayment handles POST /api/v1/payments/card
func (h *Handler) StartCardPayment(w http.ResponseWriter, r *http.Request) {
	var req CardPaymentRequest
	if !h.decode(w, r, &req) {
		return
	}
	auth, err := req.Authorization.toAuthorization()
	if err != nil {
		h.respondValidation(w, err.Error())
		return
	}
	scenario, err := req.Scenario.card()
	if err != nil {
		h.respondValidation(w, err.Error())
		return
	}

	ctx, cancel := h.timeouts.ServiceContext(r.Context())
	defer cancel()

	result, err := h.service.StartCardPayment(ctx, paymentsvc.CardPaymentInput{
		Reference:     referenceFrom(r, req.Reference),
		Amount:        req.Amount,
		Currency:      req.Currency,
		Customer:      req.Customer,
		Card:          req.Card,
		RedirectURL:   req.RedirectURL,
		Authorization: auth,
		Meta:          req.Meta,
		Scenario:      scenario,
	})
	h.respondResult(w, result, err)
}

// StartMobileMoneyPayment handles POST /api/v1/payments/mobile-money
func (h *Handler) StartMobileMoneyPayment(w http.ResponseWriter, r *http.Request) {
	var req MobileMoneyPaymentRequest
	if !h.decode(w, r, &req) {
		return
	}
	scenario, err := req.Scenario.mobileMoney()
	if err != nil {
		h.respondValidation(w, err.Error())
		return
	}

	ctx, cancel := h.timeouts.ServiceContext(r.Context())
	defer cancel()

	result, err := h.service.StartMobileMoneyPayment(ctx, paymentsvc.MobileMoneyPaymentInput{
		Reference:   referenceFrom(r, req.Reference),
		Amount:      req.Amount,
		Currency:    req.Currency,
		Customer:    req.Customer,
		MobileMoney: req.MobileMoney,
		RedirectURL: req.RedirectURL,
		Meta:        req.Meta,
		Scenario:    scenario,
	})
	h.respondResult(w, result, err)
}

// StartTransfer handles POST /api/v1/transfers
func (h *Handler) StartTransfer(w http.ResponseWriter, r *http.Request) {
	var req TransferRequest
	if !h.decode(w, r, &req) {
		return
	}
	scenario, err := req.Scenario.transfer()
	if err != nil {
		h.respondValidation(w, err.Error())
		return
	}

	ctx, cancel := h.timeouts.ServiceContext(r.Context())
	defer cancel()

	result, err := h.service.StartTransfer(ctx, paymentsvc.TransferInput{
		Reference:           referenceFrom(r, req.Reference),
		Amount:              req.Amount,
		SourceCurrency:      req.SourceCurrency,
		DestinationCurrency: req.DestinationCurrency,
		Narration:           req.Narration,
		RecipientID:         req.RecipientID,
		Recipient:           req.Recipient,
		Scenario:            scenario,
	})
	h.respondResult(w, result, err)
}

// AuthorizePayment handles POST /api/v1/payments/{reference}/authorize
func (h *Handler) AuthorizePayment(w http.ResponseWriter, r *http.Request) {
	var req AuthorizationRequest
	if !h.decode(w, r, &req) {
		return
	}
	auth, err := req.toAuthorization()
	if err != nil {
		h.respondValidation(w, err.Error())
		return
	}

	ctx, cancel := h.timeouts.ServiceContext(r.Context())
	defer cancel()

	result, err := h.service.AuthorizePayment(ctx, mux.Vars(r)["reference"], auth)
	h.respondResult(w, result, err)
}

// VerifyPayment handles GET /api/v1/payments/{reference}/verify
func (h *Handler) VerifyPayment(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.timeouts.ServiceContext(r.Context())
	defer cancel()

	result, err := h.service.VerifyPayment(ctx, mux.Vars(r)["reference"])
	h.respondResult(w, result, err)
}

// RefundPayment handles POST /api/v1/payments/{reference}/refund
func (h *Handler) RefundPayment(w http.ResponseWriter, r *http.Request) {
	var req RefundRequest
	if r.ContentLength != 0 && !h.decode(w, r, &req) {
		return
	}

	ctx, cancel := h.timeouts.ServiceContext(r.Context())
	defer cancel()

	refund, err := h.service.RefundPayment(ctx, paymentsvc.RefundInput{
		Reference: mux.Vars(r)["reference"],
		Amount:    req.Amount,
		Reason:    req.Reason,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, refund)
}

// PaymentResponse is the API view of a payment
type PaymentResponse struct {
	Reference     string               `json:"reference"`
	Type          domain.PaymentType   `json:"type"`
	Status        domain.PaymentStatus `json:"status"`
	Amount        decimal.Decimal      `json:"amount"`
	Currency      string               `json:"currency"`
	ChargeID      string               `json:"charge_id,omitempty"`
	FailureReason string               `json:"failure_reason,omitempty"`
	NextAction    *NextActionResponse  `json:"next_action,omitempty"`
	Error         *ErrorResponse       `json:"error,omitempty"`
	Replayed      bool                 `json:"replayed,omitempty"`
}

// NextActionResponse tells the client what the payer has to do next
type NextActionResponse struct {
	Type        flutterwave.NextActionType `json:"type"`
	RedirectURL string                     `json:"redirect_url,omitempty"`
	Instruction string                     `json:"instruction,omitempty"`
}

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Code              string                         `json:"code"`
	Message           string                         `json:"message"`
	Errors            []string                       `json:"errors,omitempty"`
	ValidationErrors  []flutterwave.ValidationDetail `json:"validation_errors,omitempty"`
	RetryAfterSeconds int                            `json:"retry_after_seconds,omitempty"`
}

// newGatewayErrorResponse renders a classified gateway failure for the payer
func newGatewayErrorResponse(info *flutterwave.ErrorInfo) *ErrorResponse {
	resp := &ErrorResponse{
		Code:    info.Code,
		Message: info.UserFriendlyMessage(),
	}
	if info.IsValidation || info.IsPermanent {
		resp.ValidationErrors = info.ValidationErrors
	}
	if info.IsRetryable {
		resp.RetryAfterSeconds = retryAfterSeconds(info.RetryDelay(0))
	}
	return resp
}

func retryAfterSeconds(d time.Duration) int {
	return int(math.Ceil(d.Seconds()))
}

func setRetryAfter(w http.ResponseWriter, resp *ErrorResponse) {
	if resp != nil && resp.RetryAfterSeconds > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(resp.RetryAfterSeconds))
	}
}

func newPaymentResponse(result *paymentsvc.PaymentResult) PaymentResponse {
	p := result.Payment
	resp := PaymentResponse{
		Reference:     p.Reference,
		Type:          p.Type,
		Status:        p.Status,
		Amount:        p.Amount,
		Currency:      p.Currency,
		ChargeID:      p.GatewayChargeID,
		FailureReason: p.FailureReason,
		Replayed:      result.Replayed,
	}
	if next := result.NextAction(); next != nil {
		resp.NextAction = &NextActionResponse{
			Type:        next.Type,
			RedirectURL: next.URL(),
			Instruction: next.Note(),
		}
		if resp.NextAction.RedirectURL == "" {
			resp.NextAction.RedirectURL, _ = p.Metadata["next_action_url"].(string)
		}
		if resp.NextAction.Instruction == "" {
			resp.NextAction.Instruction, _ = p.Metadata["next_action_note"].(string)
		}
	}
	if result.Error != nil {
		resp.Error = newGatewayErrorResponse(result.Error)
	}
	return resp
}

// respondResult writes a flow outcome. A declined payment is still a
// recorded payment, so it is returned with its record.
func (h *Handler) respondResult(w http.ResponseWriter, result *paymentsvc.PaymentResult, err error) {
	if err != nil {
		h.respondError(w, err)
		return
	}

	status := http.StatusOK
	switch {
	case result.Error != nil && result.Error.IsRetryable:
		status = http.StatusServiceUnavailable
	case result.Error != nil:
		status = http.StatusPaymentRequired
	case result.NextAction() != nil:
		status = http.StatusAccepted
	}
	resp := newPaymentResponse(result)
	setRetryAfter(w, resp.Error)
	h.writeJSON(w, status, resp)
}

// respondError maps service errors to HTTP statuses. Internal details are
// logged, never returned.
func (h *Handler) respondError(w http.ResponseWriter, err error) {
	var de *domain.DomainError
	if errors.As(err, &de) {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, domain.ErrValidationFailed):
			errs, _ := de.Details["errors"].([]string)
			h.writeJSON(w, http.StatusBadRequest, ErrorResponse{
				Code:    string(de.Code),
				Message: "Payment details are not valid",
				Errors:  errs,
			})
			return
		case errors.Is(err, domain.ErrPaymentNotFound):
			status = http.StatusNotFound
		case errors.Is(err, domain.ErrPaymentDuplicate), errors.Is(err, domain.ErrPaymentInvalidState),
			errors.Is(err, domain.ErrPaymentAlreadyProcessed):
			status = http.StatusConflict
		}
		if status == http.StatusInternalServerError {
			h.logger.Error("Payment request failed", zap.Error(err))
		}
		h.writeJSON(w, status, ErrorResponse{Code: string(de.Code), Message: de.Message})
		return
	}

	if info, ok := flutterwave.AsErrorInfo(err); ok {
		status := http.StatusBadGateway
		if info.IsValidation {
			status = http.StatusBadRequest
		} else if info.IsRetryable {
			status = http.StatusServiceUnavailable
		}
		h.logger.Warn("Gateway rejected payment request",
			zap.String("code", info.Code),
			zap.String("type", info.Type),
		)
		resp := newGatewayErrorResponse(info)
		setRetryAfter(w, resp)
		h.writeJSON(w, status, resp)
		return
	}

	if category, ok := pkgerrors.CategoryOf(err); ok {
		switch {
		case category == pkgerrors.CategoryConfiguration:
			h.logger.Error("Payment service misconfigured", zap.Error(err))
			h.writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{
				Code:    "SERVICE_UNAVAILABLE",
				Message: "Payment service is temporarily unavailable",
			})
			return
		case category.Retryable():
			h.logger.Warn("Payment request failed, retry suggested", zap.Error(err))
			resp := &ErrorResponse{
				Code:              "SERVICE_UNAVAILABLE",
				Message:           "Payment service is temporarily unavailable, please try again",
				RetryAfterSeconds: retryAfterSeconds(flutterwave.RetryDelay(0)),
			}
			setRetryAfter(w, resp)
			h.writeJSON(w, http.StatusServiceUnavailable, resp)
			return
		}
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		h.writeJSON(w, http.StatusGatewayTimeout, ErrorResponse{Code: "TIMEOUT", Message: "request timed out"})
		return
	}

	h.logger.Error("Payment request failed", zap.Error(err))
	h.writeJSON(w, http.StatusInternalServerError, ErrorResponse{
		Code:    string(domain.ErrorCodeInternalError),
		Message: "internal server error",
	})
}

func (h *Handler) respondValidation(w http.ResponseWriter, messages ...string) {
	h.writeJSON(w, http.StatusBadRequest, ErrorResponse{
		Code:    string(domain.ErrorCodeValidationFailed),
		Message: "Payment details are not valid",
		Errors:  messages,
	})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		h.respondValidation(w, "request body must be valid JSON")
		return false
	}
	return true
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	if err := encoding.WriteJSON(w, status, v); err != nil {
		h.logger.Error("Failed to encode response", zap.Error(err))
	}
}

// referenceFrom prefers the body reference and falls back to the Idempotency-Key header
func referenceFrom(r *http.Request, bodyReference string) string {
	if ref := strings.TrimSpace(bodyReference); ref != "" {
		return ref
	}
	return strings.TrimSpace(r.Header.Get(HeaderIdempotencyKey))
}
