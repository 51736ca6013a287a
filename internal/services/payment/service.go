package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/kevin07696/flutterwave-gateway/internal/adapters/flutterwave"
	"github.com/kevin07696/flutterwave-gateway/internal/domain"
	"github.com/kevin07696/flutterwave-gateway/internal/domain/ports"
	pkgerrors "github.com/kevin07696/flutterwave-gateway/pkg/errors"
)

// Gateway is the part of the gateway client the service drives
type Gateway interface {
	ProcessCardPayment(ctx context.Context, req flutterwave.CardPaymentRequest) (flutterwave.FlowResult, error)
	ProcessMobileMoneyPayment(ctx context.Context, req flutterwave.MobileMoneyPaymentRequest) (flutterwave.FlowResult, error)
	CreateTransfer(ctx context.Context, req flutterwave.TransferRequest) (flutterwave.FlowResult, error)
	VerifyTransfer(ctx context.Context, transferID string) (flutterwave.FlowResult, error)
	AuthorizeCharge(ctx context.Context, state flutterwave.PaymentState, auth flutterwave.Authorization) (flutterwave.FlowResult, error)
	Verify(ctx context.Context, chargeID string) (*flutterwave.Charge, error)
	CreateRefund(ctx context.Context, req flutterwave.RefundRequest) (*flutterwave.Refund, error)
}

// Config holds service settings
type Config struct {
	// WebhookSecretHash verifies inbound gateway webhooks. Empty rejects all webhooks.
	WebhookSecretHash string
	// WebhookRetention is how long inbound webhooks are kept
	WebhookRetention time.Duration
	// SweepBatchSize bounds how many pending payments one sweep checks
	SweepBatchSize int32
}

// Service records gateway payments locally and keeps them in step with the gateway
type Service struct {
	config   Config
	db       ports.DBPort
	payments ports.PaymentRepository
	receipts ports.ReceiptRepository
	webhooks ports.WebhookEventRepository
	gateway  Gateway
	notifier ports.Notifier
	logger   *zap.Logger
	now      func() time.Time
	dispatch func(func())
}

// Option customizes a Service
type Option func(*Service)

// WithDispatcher runs notification deliveries through dispatch instead of a
// bare goroutine, so shutdown can wait for them
func WithDispatcher(dispatch func(func())) Option {
	return func(s *Service) {
		s.dispatch = dispatch
	}
}

// NewService creates a payment service
func NewService(
	cfg Config,
	db ports.DBPort,
	payments ports.PaymentRepository,
	receipts ports.ReceiptRepository,
	webhooks ports.WebhookEventRepository,
	gateway Gateway,
	notifier ports.Notifier,
	logger *zap.Logger,
	opts ...Option,
) *Service {
	if cfg.WebhookRetention <= 0 {
		cfg.WebhookRetention = 30 * 24 * time.Hour
	}
	if cfg.SweepBatchSize <= 0 {
		cfg.SweepBatchSize = 100
	}
	s := &Service{
		config:   cfg,
		db:       db,
		payments: payments,
		receipts: receipts,
		webhooks: webhooks,
		gateway:  gateway,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
		dispatch: func(f func()) { go f() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CardPaymentInput starts a card payment
type CardPaymentInput struct {
	Reference     string
	Amount        decimal.Decimal
	Currency      string
	Customer      flutterwave.CustomerRequest
	Card          flutterwave.CardData
	RedirectURL   string
	Authorization flutterwave.Authorization
	Meta          map[string]string
	Scenario      flutterwave.Scenario
}

// MobileMoneyPaymentInput starts a mobile money payment. An empty Currency
// is taken from the country.
type MobileMoneyPaymentInput struct {
	Reference   string
	Amount      decimal.Decimal
	Currency    string
	Customer    flutterwave.CustomerRequest
	MobileMoney flutterwave.MobileMoneyDetails
	RedirectURL string
	Meta        map[string]string
	Scenario    flutterwave.Scenario
}

// TransferInput starts a payout
type TransferInput struct {
	Reference           string
	Amount              decimal.Decimal
	SourceCurrency      string
	DestinationCurrency string
	Narration           string
	RecipientID         string
	Recipient           *flutterwave.RecipientRequest
	Scenario            flutterwave.Scenario
}

// PaymentResult is the outcome of a payment operation
type PaymentResult struct {
	Payment *domain.PaymentTransaction
	State   flutterwave.PaymentState
	// Error is set when the gateway flow failed
	Error *flutterwave.ErrorInfo
	// Replayed is true when an earlier result for the same reference was returned
	Replayed bool
}

// NextAction is what the payer still has to do, if anything
func (r *PaymentResult) NextAction() *flutterwave.NextAction {
	if r.Payment == nil || r.Payment.Status.IsTerminal() {
		return nil
	}
	return r.State.NextAction
}

// StartCardPayment records a card payment and runs the card flow
func (s *Service) StartCardPayment(ctx context.Context, in CardPaymentInput) (*PaymentResult, error) {
	reference := flutterwave.NormalizeReference(in.Reference)
	currency := strings.ToUpper(strings.TrimSpace(in.Currency))

	errs := validatePayment(in.Amount, currency, reference, in.Customer.Email)
	if ok, cardErrs := flutterwave.ValidateCardData(in.Card); !ok {
		errs = append(errs, cardErrs...)
	}
	if len(errs) > 0 {
		return nil, validationFailed(errs)
	}

	record, replay, err := s.beginPayment(ctx, reference, domain.PaymentTypeCard, in.Amount, currency, in.Customer)
	if err != nil || replay != nil {
		return replay, err
	}

	start := s.now()
	result, err := s.gateway.ProcessCardPayment(ctx, flutterwave.CardPaymentRequest{
		Customer: in.Customer,
		Card:     in.Card,
		Charge: flutterwave.ChargeRequest{
			Amount:         in.Amount,
			Currency:       currency,
			Reference:      reference,
			RedirectURL:    in.RedirectURL,
			Meta:           in.Meta,
			IdempotencyKey: record.IdempotencyKey,
			Scenario:       in.Scenario,
		},
		Authorization: in.Authorization,
	})
	if err != nil {
		s.logger.Error("Card payment flow error",
			zap.String("reference", reference),
			zap.Error(err),
		)
		return nil, fmt.Errorf("card payment %s: %w", reference, err)
	}

	return s.applyFlowResult(ctx, reference, result, start)
}

// StartMobileMoneyPayment records a mobile money payment and runs the mobile money flow
func (s *Service) StartMobileMoneyPayment(ctx context.Context, in MobileMoneyPaymentInput) (*PaymentResult, error) {
	reference := flutterwave.NormalizeReference(in.Reference)
	currency := strings.ToUpper(strings.TrimSpace(in.Currency))

	var errs []string
	country, mmErr := flutterwave.ValidateMobileMoney(in.MobileMoney.CountryCode, in.MobileMoney.Network, in.MobileMoney.PhoneNumber)
	if mmErr != nil {
		errs = append(errs, validationMessage(mmErr))
	} else if currency == "" {
		currency = country.Currency
	}
	errs = append(validatePayment(in.Amount, currency, reference, in.Customer.Email), errs...)
	if len(errs) > 0 {
		return nil, validationFailed(errs)
	}

	record, replay, err := s.beginPayment(ctx, reference, domain.PaymentTypeMobileMoney, in.Amount, currency, in.Customer)
	if err != nil || replay != nil {
		return replay, err
	}

	start := s.now()
	result, err := s.gateway.ProcessMobileMoneyPayment(ctx, flutterwave.MobileMoneyPaymentRequest{
		Customer:    in.Customer,
		MobileMoney: in.MobileMoney,
		Charge: flutterwave.ChargeRequest{
			Amount:         in.Amount,
			Currency:       currency,
			Reference:      reference,
			RedirectURL:    in.RedirectURL,
			Meta:           in.Meta,
			IdempotencyKey: record.IdempotencyKey,
			Scenario:       in.Scenario,
		},
	})
	if err != nil {
		s.logger.Error("Mobile money payment flow error",
			zap.String("reference", reference),
			zap.Error(err),
		)
		return nil, fmt.Errorf("mobile money payment %s: %w", reference, err)
	}

	return s.applyFlowResult(ctx, reference, result, start)
}

// StartTransfer records a payout and submits it
func (s *Service) StartTransfer(ctx context.Context, in TransferInput) (*PaymentResult, error) {
	reference := flutterwave.NormalizeReference(in.Reference)
	currency := strings.ToUpper(strings.TrimSpace(in.SourceCurrency))

	errs := validatePayment(in.Amount, currency, reference, "")
	if in.RecipientID == "" && in.Recipient == nil {
		errs = append(errs, "A recipient id or recipient details are required")
	}
	if len(errs) > 0 {
		return nil, validationFailed(errs)
	}

	customer := flutterwave.CustomerRequest{}
	if in.Recipient != nil {
		customer.Email = in.Recipient.Email
		customer.Name = in.Recipient.Name
	}

	record, replay, err := s.beginPayment(ctx, reference, domain.PaymentTypeTransfer, in.Amount, currency, customer)
	if err != nil || replay != nil {
		return replay, err
	}

	start := s.now()
	result, err := s.gateway.CreateTransfer(ctx, flutterwave.TransferRequest{
		Reference:           reference,
		Narration:           in.Narration,
		SourceCurrency:      currency,
		DestinationCurrency: in.DestinationCurrency,
		Amount:              in.Amount,
		RecipientID:         in.RecipientID,
		Recipient:           in.Recipient,
		IdempotencyKey:      record.IdempotencyKey,
		Scenario:            in.Scenario,
	})
	if err != nil {
		s.logger.Error("Transfer flow error",
			zap.String("reference", reference),
			zap.Error(err),
		)
		return nil, fmt.Errorf("transfer %s: %w", reference, err)
	}

	return s.applyFlowResult(ctx, reference, result, start)
}

// AuthorizePayment answers the pending authorization step of a card charge
func (s *Service) AuthorizePayment(ctx context.Context, reference string, auth flutterwave.Authorization) (*PaymentResult, error) {
	record, err := s.payments.GetByReference(ctx, s.db.DB(), flutterwave.NormalizeReference(reference))
	if err != nil {
		return nil, err
	}
	if record.Status.IsTerminal() {
		return &PaymentResult{Payment: record, State: stateFromRecord(record), Replayed: true}, nil
	}

	state := stateFromRecord(record)
	if record.GatewayChargeID == "" || state.NextAction == nil || !state.NextAction.Type.RequiresAuthorization() {
		return nil, domain.ErrPaymentInvalidState.WithDetail("reference", record.Reference)
	}

	start := s.now()
	result, err := s.gateway.AuthorizeCharge(ctx, state, auth)
	if err != nil {
		return nil, fmt.Errorf("authorize payment %s: %w", record.Reference, err)
	}
	return s.applyFlowResult(ctx, record.Reference, result, start)
}

// VerifyPayment refreshes a non-terminal payment from the gateway.
// Terminal payments are returned as stored.
func (s *Service) VerifyPayment(ctx context.Context, reference string) (*PaymentResult, error) {
	record, err := s.payments.GetByReference(ctx, s.db.DB(), flutterwave.NormalizeReference(reference))
	if err != nil {
		return nil, err
	}
	if record.Status.IsTerminal() || record.GatewayChargeID == "" {
		return &PaymentResult{Payment: record, State: stateFromRecord(record)}, nil
	}

	start := s.now()
	result, err := s.verifyWithGateway(ctx, record)
	if err != nil {
		return nil, fmt.Errorf("verify payment %s: %w", record.Reference, err)
	}
	return s.applyFlowResult(ctx, record.Reference, result, start)
}

// verifyWithGateway fetches the current gateway state for a recorded payment
func (s *Service) verifyWithGateway(ctx context.Context, record *domain.PaymentTransaction) (flutterwave.FlowResult, error) {
	state := stateFromRecord(record)

	if record.Type == domain.PaymentTypeTransfer {
		return s.gateway.VerifyTransfer(ctx, record.GatewayChargeID)
	}

	charge, err := s.gateway.Verify(ctx, record.GatewayChargeID)
	if err != nil {
		if info, ok := flutterwave.AsErrorInfo(err); ok {
			return flutterwave.Failed{Error: info, State: state}, nil
		}
		return nil, err
	}

	state.Step = flutterwave.StepVerified
	state.Status = strings.ToLower(charge.Status)
	state.NextAction = charge.NextAction
	if strings.EqualFold(charge.Status, flutterwave.ChargeStatusFailed) {
		reason := ""
		if charge.ProcessorResponse != nil {
			reason = charge.ProcessorResponse.Type
		}
		state.Step = flutterwave.StepFailed
		return flutterwave.Failed{Error: flutterwave.ClassifyDecline(reason, ""), State: state}, nil
	}
	return flutterwave.Succeeded{State: state}, nil
}

// beginPayment persists a new pending record. When the reference is already
// known it returns the stored result instead, unless the earlier attempt never
// reached the gateway charge, in which case the flow is re-run under the same
// idempotency key.
func (s *Service) beginPayment(ctx context.Context, reference string, paymentType domain.PaymentType, amount decimal.Decimal, currency string, customer flutterwave.CustomerRequest) (*domain.PaymentTransaction, *PaymentResult, error) {
	existing, err := s.payments.GetByReference(ctx, s.db.DB(), reference)
	switch {
	case err == nil:
		return s.resumeOrReplay(existing, paymentType, amount, currency)
	case !errors.Is(err, domain.ErrPaymentNotFound):
		return nil, nil, fmt.Errorf("lookup payment %s: %w", reference, err)
	}

	now := s.now()
	record := domain.NewPaymentTransaction(reference, paymentType, amount, currency, now)
	record.CustomerEmail = customer.Email
	if customer.Name != nil {
		record.CustomerName = customer.Name.Full()
	}
	if customer.Phone != nil {
		record.CustomerPhone = customer.Phone.CountryCode + customer.Phone.Number
	}

	if err := s.payments.Create(ctx, s.db.DB(), record); err != nil {
		if errors.Is(err, domain.ErrPaymentDuplicate) {
			existing, getErr := s.payments.GetByReference(ctx, s.db.DB(), reference)
			if getErr != nil {
				return nil, nil, getErr
			}
			return s.resumeOrReplay(existing, paymentType, amount, currency)
		}
		return nil, nil, fmt.Errorf("create payment %s: %w", reference, err)
	}

	s.logger.Info("Payment initiated",
		zap.String("reference", reference),
		zap.String("type", string(paymentType)),
		zap.String("amount", amount.String()),
		zap.String("currency", currency),
	)
	s.notify(ctx, domain.PaymentEventInitiated, record)

	return record, nil, nil
}

func (s *Service) resumeOrReplay(existing *domain.PaymentTransaction, paymentType domain.PaymentType, amount decimal.Decimal, currency string) (*domain.PaymentTransaction, *PaymentResult, error) {
	if existing.Type != paymentType || !existing.Amount.Equal(amount) || existing.Currency != currency {
		return nil, nil, domain.ErrPaymentDuplicate.WithDetail("reference", existing.Reference)
	}
	if !existing.Status.IsTerminal() && existing.GatewayChargeID == "" {
		s.logger.Info("Resuming payment that never reached the gateway",
			zap.String("reference", existing.Reference),
		)
		return existing, nil, nil
	}
	return nil, &PaymentResult{Payment: existing, State: stateFromRecord(existing), Replayed: true}, nil
}

func validatePayment(amount decimal.Decimal, currency, reference, email string) []string {
	_, errs := flutterwave.ValidatePaymentData(flutterwave.PaymentData{
		Amount:        amount,
		Currency:      currency,
		Reference:     reference,
		CustomerEmail: email,
	})
	return errs
}

// validationFailed reports input rejected before anything was recorded
func validationFailed(errs []string) error {
	return domain.ErrValidationFailed.WithDetail("errors", errs)
}

func validationMessage(err error) string {
	var ve *pkgerrors.ValidationError
	if errors.As(err, &ve) {
		return ve.Message
	}
	return err.Error()
}
