package payment

import (
	"context"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/kevin07696/flutterwave-gateway/internal/adapters/flutterwave"
	"github.com/kevin07696/flutterwave-gateway/internal/domain"
)

// RefundInput refunds a settled charge. A zero Amount refunds in full.
type RefundInput struct {
	Reference string
	Amount    decimal.Decimal
	Reason    string
}

// metadata keys tracking refunds against a payment
const (
	metaRefundID       = "refund_id"
	metaRefundedAmount = "refunded_amount"
	metaRefundCount    = "refund_count"
)

// RefundPayment refunds a successful card or mobile money payment. Partial
// refunds accumulate; once the refunded total reaches the payment amount the
// payment is marked reversed.
func (s *Service) RefundPayment(ctx context.Context, in RefundInput) (*flutterwave.Refund, error) {
	record, err := s.payments.GetByReference(ctx, s.db.DB(), flutterwave.NormalizeReference(in.Reference))
	if err != nil {
		return nil, err
	}
	if record.Type == domain.PaymentTypeTransfer || record.GatewayChargeID == "" ||
		(record.Status != domain.PaymentStatusSuccessful && record.Status != domain.PaymentStatusPaid) {
		return nil, domain.ErrPaymentInvalidState.WithDetail("status", string(record.Status))
	}

	refunded := refundedAmount(record)
	remaining := record.Amount.Sub(refunded)
	amount := in.Amount
	if amount.IsZero() {
		amount = remaining
	}
	if !amount.IsPositive() || amount.GreaterThan(remaining) {
		return nil, validationFailed([]string{
			fmt.Sprintf("Refund amount must be greater than 0 and at most %s", remaining.String()),
		})
	}

	// one key per refund of this payment, so equal partial refunds stay distinct
	count := refundCount(record)
	refund, err := s.gateway.CreateRefund(ctx, flutterwave.RefundRequest{
		ChargeID:       record.GatewayChargeID,
		Amount:         amount,
		Reason:         in.Reason,
		IdempotencyKey: "refund_" + record.Reference + "_" + strconv.Itoa(count+1),
	})
	if err != nil {
		return nil, fmt.Errorf("refund payment %s: %w", record.Reference, err)
	}

	var total decimal.Decimal
	full := false
	err = s.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		locked, err := s.payments.GetByReferenceForUpdate(ctx, txOrDB(s, tx), record.Reference)
		if err != nil {
			return err
		}
		if locked.Metadata == nil {
			locked.Metadata = make(map[string]interface{})
		}

		total = refundedAmount(locked)
		if id, _ := locked.Metadata[metaRefundID].(string); id == refund.ID {
			// a concurrent request already recorded this refund
			return nil
		}
		total = total.Add(amount)
		locked.Metadata[metaRefundID] = refund.ID
		locked.Metadata[metaRefundedAmount] = total.String()
		locked.Metadata[metaRefundCount] = strconv.Itoa(refundCount(locked) + 1)
		if total.GreaterThanOrEqual(locked.Amount) {
			full = true
			if err := locked.MarkReversed(s.now()); err != nil {
				return err
			}
		} else {
			locked.UpdatedAt = s.now()
		}
		return s.payments.Update(ctx, txOrDB(s, tx), locked)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Payment refunded",
		zap.String("reference", record.Reference),
		zap.String("refund_id", refund.ID),
		zap.String("amount", amount.String()),
		zap.String("refunded_total", total.String()),
		zap.Bool("full", full),
	)
	return refund, nil
}

func refundedAmount(record *domain.PaymentTransaction) decimal.Decimal {
	raw, _ := record.Metadata[metaRefundedAmount].(string)
	total, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero
	}
	return total
}

// refundCount reads the stored count. JSON round trips may turn it into a number.
func refundCount(record *domain.PaymentTransaction) int {
	switch v := record.Metadata[metaRefundCount].(type) {
	case string:
		n, _ := strconv.Atoi(v)
		return n
	case float64:
		return int(v)
	case int:
		return v
	}
	return 0
}
