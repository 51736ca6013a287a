package flutterwave

import (
	"context"
	"errors"
	"net/http"

	"github.com/kevin07696/flutterwave-gateway/internal/domain/ports"
)

// CreateRefund refunds part or all of a settled charge
func (c *Client) CreateRefund(ctx context.Context, req RefundRequest) (*Refund, error) {
	if req.ChargeID == "" {
		return nil, errors.New("charge id is required")
	}
	if !req.Amount.IsPositive() {
		return nil, validationErrors([]string{"Amount must be greater than 0"})
	}

	payload := refundPayload{
		ChargeID: req.ChargeID,
		Amount:   req.Amount.String(),
		Reason:   req.Reason,
	}

	var refund Refund
	opts := requestOptions{idempotent: true, idempotencyKey: req.IdempotencyKey}
	if err := c.do(ctx, "create_refund", http.MethodPost, "/refunds", payload, opts, &refund); err != nil {
		return nil, err
	}

	c.logger.Info("Refund created",
		ports.String("refund_id", refund.ID),
		ports.String("charge_id", req.ChargeID),
		ports.String("status", refund.Status),
	)
	return &refund, nil
}
