package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/kevin07696/flutterwave-gateway/internal/adapters/flutterwave"
	"github.com/kevin07696/flutterwave-gateway/internal/domain"
	"github.com/kevin07696/flutterwave-gateway/internal/domain/ports"
	"github.com/kevin07696/flutterwave-gateway/pkg/observability"
)

// metadata keys used to resume a flow from the stored record
const (
	metaNextActionType = "next_action_type"
	metaNextActionURL  = "next_action_url"
	metaNextActionNote = "next_action_note"
	metaGatewayStatus  = "gateway_status"
	metaErrorCode      = "error_code"
)

// applyFlowResult writes a gateway flow outcome to the stored record under a row lock
func (s *Service) applyFlowResult(ctx context.Context, reference string, result flutterwave.FlowResult, start time.Time) (*PaymentResult, error) {
	state := result.PaymentState()
	out := &PaymentResult{State: state}
	var event domain.PaymentEventType
	var receipt *domain.PaymentReceipt

	err := s.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		record, err := s.payments.GetByReferenceForUpdate(ctx, txOrDB(s, tx), reference)
		if err != nil {
			return err
		}
		out.Payment = record

		if record.Status.IsTerminal() {
			// a webhook or sweep settled it first
			out.Replayed = true
			return nil
		}

		now := s.now()
		applyState(record, state)

		switch r := result.(type) {
		case flutterwave.Succeeded:
			switch {
			case isSuccessfulState(record.Type, state.Status):
				if err := record.MarkSuccessful(now); err != nil {
					return err
				}
				event = domain.PaymentEventSuccessful
				receipt = domain.NewPaymentReceipt(record, now)
			case state.Status == flutterwave.ChargeStatusExpired:
				if err := record.MarkExpired(now); err != nil {
					return err
				}
				event = domain.PaymentEventExpired
			case record.Type == domain.PaymentTypeTransfer || state.ChargeID != "":
				record.MarkProcessing(now)
			}
		case flutterwave.Failed:
			out.Error = r.Error
			record.Metadata[metaErrorCode] = r.Error.Code
			if r.Error.IsRetryable {
				record.FailureReason = failureReason(r.Error)
				record.UpdatedAt = now
				break
			}
			if err := record.MarkFailed(failureReason(r.Error), now); err != nil {
				return err
			}
			event = domain.PaymentEventFailed
		default:
			return fmt.Errorf("unexpected flow result %T", result)
		}

		if err := s.payments.Update(ctx, txOrDB(s, tx), record); err != nil {
			return err
		}
		if receipt != nil {
			if err := s.receipts.Create(ctx, txOrDB(s, tx), receipt); err != nil {
				return fmt.Errorf("create receipt: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.recordOutcome(out, start)
	if event != "" {
		s.notify(ctx, event, out.Payment)
	}
	return out, nil
}

// settle moves a non-terminal payment to a terminal status outside a gateway
// flow, as webhooks and the expiry sweep do. It reports whether anything changed.
func (s *Service) settle(ctx context.Context, reference string, status domain.PaymentStatus, reason string) (*domain.PaymentTransaction, bool, error) {
	var record *domain.PaymentTransaction
	changed := false

	err := s.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		var err error
		record, err = s.payments.GetByReferenceForUpdate(ctx, txOrDB(s, tx), reference)
		if err != nil {
			return err
		}

		now := s.now()
		switch status {
		case domain.PaymentStatusSuccessful:
			err = record.MarkSuccessful(now)
		case domain.PaymentStatusFailed:
			err = record.MarkFailed(reason, now)
		case domain.PaymentStatusExpired:
			err = record.MarkExpired(now)
		default:
			return domain.ErrPaymentInvalidState.WithDetail("status", string(status))
		}
		if errors.Is(err, domain.ErrPaymentAlreadyProcessed) {
			return nil
		}
		if err != nil {
			return err
		}
		changed = true

		if err := s.payments.Update(ctx, txOrDB(s, tx), record); err != nil {
			return err
		}
		if status == domain.PaymentStatusSuccessful {
			if err := s.receipts.Create(ctx, txOrDB(s, tx), domain.NewPaymentReceipt(record, now)); err != nil {
				return fmt.Errorf("create receipt: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	if changed {
		s.notify(ctx, eventForStatus(status), record)
		observability.RecordPaymentTransaction(string(record.Type), string(record.Status), record.FailureReason,
			record.Amount.InexactFloat64(), record.Currency, 0)
	}
	return record, changed, nil
}

// applyState copies gateway identifiers and the pending next action onto the record
func applyState(record *domain.PaymentTransaction, state flutterwave.PaymentState) {
	if record.Metadata == nil {
		record.Metadata = make(map[string]interface{})
	}
	if state.CustomerID != "" {
		record.GatewayCustomerID = state.CustomerID
	}
	if state.PaymentMethodID != "" {
		record.GatewayPaymentMethodID = state.PaymentMethodID
	}
	if state.ChargeID != "" {
		record.GatewayChargeID = state.ChargeID
	}
	if state.TransferID != "" {
		record.GatewayChargeID = state.TransferID
	}
	if state.Status != "" {
		record.Metadata[metaGatewayStatus] = state.Status
	}

	delete(record.Metadata, metaNextActionType)
	delete(record.Metadata, metaNextActionURL)
	delete(record.Metadata, metaNextActionNote)
	if next := state.NextAction; next != nil {
		record.Metadata[metaNextActionType] = string(next.Type)
		if url := next.URL(); url != "" {
			record.Metadata[metaNextActionURL] = url
		}
		if note := next.Note(); note != "" {
			record.Metadata[metaNextActionNote] = note
		}
	}
}

// stateFromRecord rebuilds the flow state needed to continue a stored payment
func stateFromRecord(record *domain.PaymentTransaction) flutterwave.PaymentState {
	state := flutterwave.PaymentState{
		Step:            flutterwave.StepChargeInitiated,
		CustomerID:      record.GatewayCustomerID,
		PaymentMethodID: record.GatewayPaymentMethodID,
		Reference:       record.Reference,
	}
	if record.Type == domain.PaymentTypeTransfer {
		state.TransferID = record.GatewayChargeID
	} else {
		state.ChargeID = record.GatewayChargeID
	}
	if status, ok := record.Metadata[metaGatewayStatus].(string); ok {
		state.Status = status
	}
	if t, ok := record.Metadata[metaNextActionType].(string); ok && t != "" {
		state.NextAction = &flutterwave.NextAction{Type: flutterwave.NextActionType(t)}
	}
	return state
}

func isSuccessfulState(paymentType domain.PaymentType, status string) bool {
	if paymentType == domain.PaymentTypeTransfer {
		return status == flutterwave.TransferStatusSuccessful
	}
	return flutterwave.IsSuccessfulChargeStatus(status)
}

func failureReason(info *flutterwave.ErrorInfo) string {
	if info.GatewayType != "" {
		return info.GatewayType
	}
	return info.Type
}

func eventForStatus(status domain.PaymentStatus) domain.PaymentEventType {
	switch status {
	case domain.PaymentStatusSuccessful, domain.PaymentStatusPaid:
		return domain.PaymentEventSuccessful
	case domain.PaymentStatusExpired:
		return domain.PaymentEventExpired
	default:
		return domain.PaymentEventFailed
	}
}

// txOrDB lets the repositories run on the open transaction, or on the pool
// when the transaction manager hands back none
func txOrDB(s *Service, tx pgx.Tx) ports.DBTX {
	if tx == nil {
		return s.db.DB()
	}
	return tx
}

func (s *Service) recordOutcome(out *PaymentResult, start time.Time) {
	if out.Replayed || out.Payment == nil {
		return
	}
	errorType := ""
	if out.Error != nil {
		errorType = out.Error.Type
	}
	p := out.Payment
	observability.RecordPaymentTransaction(string(p.Type), string(p.Status), errorType,
		p.Amount.InexactFloat64(), p.Currency, s.now().Sub(start).Seconds())
}

// notify hands the event to the notifier without holding up the caller
func (s *Service) notify(ctx context.Context, eventType domain.PaymentEventType, record *domain.PaymentTransaction) {
	if s.notifier == nil || record == nil {
		return
	}
	event := domain.NewPaymentEvent(eventType, record, s.now())
	ctx = context.WithoutCancel(ctx)
	s.dispatch(func() {
		if err := s.notifier.Notify(ctx, event); err != nil {
			s.logger.Warn("Payment notification not delivered",
				zap.String("reference", event.Reference),
				zap.String("event", string(event.Type)),
				zap.Error(err),
			)
		}
	})
}
