package payment

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/kevin07696/flutterwave-gateway/internal/adapters/flutterwave"
	"github.com/kevin07696/flutterwave-gateway/internal/domain"
	"github.com/kevin07696/flutterwave-gateway/pkg/observability"
)

// SweepResult counts what one expiry sweep did
type SweepResult struct {
	Checked      int `json:"checked"`
	Successful   int `json:"successful"`
	Failed       int `json:"failed"`
	Expired      int `json:"expired"`
	StillPending int `json:"still_pending"`
	Errors       int `json:"errors"`
}

// CheckExpiredPayments settles pending payments whose window has closed.
// Payments the gateway reports as paid are marked successful, declined ones
// failed, and the rest expired. With force every pending payment is checked
// regardless of its window.
func (s *Service) CheckExpiredPayments(ctx context.Context, force bool) (*SweepResult, error) {
	cutoff := s.now()
	if force {
		cutoff = time.Time{}
	}

	pending, err := s.payments.ListPending(ctx, s.db.DB(), cutoff, s.config.SweepBatchSize)
	if err != nil {
		return nil, err
	}

	result := &SweepResult{}
	for _, record := range pending {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		result.Checked++

		outcome, err := s.sweepOne(ctx, record)
		if err != nil {
			result.Errors++
			observability.RecordSweepResult("error")
			s.logger.Error("Failed to check pending payment",
				zap.String("reference", record.Reference),
				zap.Error(err),
			)
			continue
		}

		switch outcome {
		case domain.PaymentStatusSuccessful:
			result.Successful++
		case domain.PaymentStatusFailed:
			result.Failed++
		case domain.PaymentStatusExpired:
			result.Expired++
		default:
			result.StillPending++
		}
		observability.RecordSweepResult(sweepLabel(outcome))
	}

	s.logger.Info("Expired payment sweep finished",
		zap.Bool("force", force),
		zap.Int("checked", result.Checked),
		zap.Int("successful", result.Successful),
		zap.Int("failed", result.Failed),
		zap.Int("expired", result.Expired),
		zap.Int("still_pending", result.StillPending),
		zap.Int("errors", result.Errors),
	)
	return result, nil
}

// sweepOne returns the status the payment ended in. Transfers still in
// flight at the gateway are left pending.
func (s *Service) sweepOne(ctx context.Context, record *domain.PaymentTransaction) (domain.PaymentStatus, error) {
	if record.GatewayChargeID == "" {
		updated, _, err := s.settle(ctx, record.Reference, domain.PaymentStatusExpired, "")
		if err != nil {
			return "", err
		}
		return updated.Status, nil
	}

	verifyCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	result, err := s.verifyWithGateway(verifyCtx, record)
	cancel()
	if err != nil {
		return "", err
	}

	status, reason := sweepOutcome(record.Type, result)
	if status == "" {
		return record.Status, nil
	}
	updated, _, err := s.settle(ctx, record.Reference, status, reason)
	if err != nil {
		return "", err
	}
	return updated.Status, nil
}

// sweepOutcome decides the terminal status for a payment past its window.
// An empty status leaves the payment alone.
func sweepOutcome(paymentType domain.PaymentType, result flutterwave.FlowResult) (domain.PaymentStatus, string) {
	switch r := result.(type) {
	case flutterwave.Failed:
		if r.Error.IsRetryable {
			return "", ""
		}
		if r.State.Status == flutterwave.ChargeStatusFailed {
			return domain.PaymentStatusFailed, failureReason(r.Error)
		}
	case flutterwave.Succeeded:
		if isSuccessfulState(paymentType, r.State.Status) {
			return domain.PaymentStatusSuccessful, ""
		}
		if paymentType == domain.PaymentTypeTransfer {
			return "", ""
		}
	}
	return domain.PaymentStatusExpired, ""
}

func sweepLabel(status domain.PaymentStatus) string {
	switch status {
	case domain.PaymentStatusSuccessful, domain.PaymentStatusFailed, domain.PaymentStatusExpired:
		return string(status)
	default:
		return "pending"
	}
}

// CleanupWebhooks deletes stored webhooks older than the retention window
func (s *Service) CleanupWebhooks(ctx context.Context) (int64, error) {
	cutoff := s.now().Add(-s.config.WebhookRetention)
	deleted, err := s.webhooks.DeleteReceivedBefore(ctx, s.db.DB(), cutoff)
	if err != nil {
		return 0, err
	}
	s.logger.Info("Old webhooks deleted",
		zap.Int64("deleted", deleted),
		zap.Time("cutoff", cutoff),
	)
	return deleted, nil
}
