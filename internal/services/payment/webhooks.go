package payment

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kevin07696/flutterwave-gateway/internal/adapters/flutterwave"
	"github.com/kevin07696/flutterwave-gateway/internal/domain"
	"github.com/kevin07696/flutterwave-gateway/pkg/observability"
)

// Webhook processing results, as recorded in metrics
const (
	webhookProcessed = "processed"
	webhookRejected  = "rejected"
	webhookIgnored   = "ignored"
	webhookFailed    = "failed"
)

// WebhookResult describes what a webhook changed
type WebhookResult struct {
	EventID   string
	EventType string
	Reference string
	// Status is the payment status after processing; empty when no payment matched
	Status domain.PaymentStatus
	// Changed is false for replays and events that carry no final outcome
	Changed bool
}

// HandleWebhook verifies, stores and applies an inbound gateway webhook.
// Unknown references and repeated deliveries are accepted without error so
// the gateway stops retrying them.
func (s *Service) HandleWebhook(ctx context.Context, body []byte, headers http.Header) (*WebhookResult, error) {
	if err := flutterwave.VerifyWebhookSignature(s.config.WebhookSecretHash, body, headers); err != nil {
		observability.RecordWebhookReceived("unknown", webhookRejected)
		s.logger.Warn("Webhook signature rejected", zap.Error(err))
		return nil, domain.ErrWebhookSignature
	}

	payload, err := flutterwave.ParseWebhook(body)
	if err != nil {
		observability.RecordWebhookReceived("unknown", webhookRejected)
		return nil, domain.ErrWebhookPayload.WithDetail("error", err.Error())
	}

	eventType := payload.EventType()
	reference := flutterwave.NormalizeReference(payload.Data.TransactionReference())
	event := &domain.WebhookEvent{
		ID:         uuid.NewString(),
		Reference:  reference,
		EventType:  eventType,
		Payload:    body,
		ReceivedAt: s.now(),
	}
	if err := s.webhooks.Create(ctx, s.db.DB(), event); err != nil {
		observability.RecordWebhookReceived(eventType, webhookFailed)
		return nil, fmt.Errorf("store webhook: %w", err)
	}

	result := &WebhookResult{EventID: event.ID, EventType: eventType, Reference: reference}
	outcome, processErr := s.applyWebhook(ctx, payload, result)

	processingError := ""
	if processErr != nil {
		processingError = processErr.Error()
	}
	if err := s.webhooks.MarkProcessed(ctx, s.db.DB(), event.ID, processingError, s.now()); err != nil {
		s.logger.Error("Failed to mark webhook processed",
			zap.String("event_id", event.ID),
			zap.Error(err),
		)
	}

	observability.RecordWebhookReceived(eventType, outcome)
	if outcome == webhookFailed {
		return nil, processErr
	}

	s.logger.Info("Webhook handled",
		zap.String("event_id", event.ID),
		zap.String("event", eventType),
		zap.String("reference", reference),
		zap.String("outcome", outcome),
		zap.Bool("changed", result.Changed),
	)
	return result, nil
}

// applyWebhook returns the metrics outcome. Errors paired with
// webhookIgnored are recorded on the event but not surfaced to the gateway.
func (s *Service) applyWebhook(ctx context.Context, payload *flutterwave.WebhookPayload, result *WebhookResult) (string, error) {
	switch payload.EventType() {
	case flutterwave.EventChargeCompleted, flutterwave.EventChargeFailed, flutterwave.EventTransferCompleted:
	default:
		return webhookIgnored, nil
	}

	if result.Reference == "" {
		return webhookIgnored, errors.New("webhook carries no transaction reference")
	}

	status, ok := webhookOutcome(payload)
	if !ok {
		return webhookIgnored, nil
	}

	reason := ""
	if status == domain.PaymentStatusFailed {
		reason = payload.Data.FailureReason()
		if reason == "" {
			reason = "declined"
		}
	}

	record, changed, err := s.settle(ctx, result.Reference, status, reason)
	if errors.Is(err, domain.ErrPaymentNotFound) {
		s.logger.Warn("Webhook for unknown payment",
			zap.String("reference", result.Reference),
			zap.String("event", payload.EventType()),
		)
		return webhookIgnored, fmt.Errorf("no payment with reference %s", result.Reference)
	}
	if err != nil {
		return webhookFailed, err
	}

	result.Status = record.Status
	result.Changed = changed
	return webhookProcessed, nil
}

// webhookOutcome maps the reported status to a terminal payment status.
// Non-final statuses report false.
func webhookOutcome(payload *flutterwave.WebhookPayload) (domain.PaymentStatus, bool) {
	status := strings.ToLower(payload.Data.Status)
	switch {
	case flutterwave.IsSuccessfulChargeStatus(status):
		return domain.PaymentStatusSuccessful, true
	case status == flutterwave.ChargeStatusFailed:
		return domain.PaymentStatusFailed, true
	case payload.EventType() == flutterwave.EventChargeFailed:
		return domain.PaymentStatusFailed, true
	default:
		return "", false
	}
}
