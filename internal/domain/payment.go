package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentStatus is the lifecycle state of a PaymentTransaction
type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "pending"
	PaymentStatusProcessing PaymentStatus = "processing"
	PaymentStatusSuccessful PaymentStatus = "successful"
	PaymentStatusPaid       PaymentStatus = "paid"
	PaymentStatusFailed     PaymentStatus = "failed"
	PaymentStatusCancelled  PaymentStatus = "cancelled"
	PaymentStatusExpired    PaymentStatus = "expired"
	PaymentStatusReversed   PaymentStatus = "reversed"
)

// IsTerminal reports whether no further gateway verification is needed
func (s PaymentStatus) IsTerminal() bool {
	switch s {
	case PaymentStatusSuccessful, PaymentStatusPaid, PaymentStatusFailed,
		PaymentStatusExpired, PaymentStatusCancelled, PaymentStatusReversed:
		return true
	default:
		return false
	}
}

// PaymentType identifies the gateway flow that produced the transaction
type PaymentType string

const (
	PaymentTypeCard        PaymentType = "card"
	PaymentTypeMobileMoney PaymentType = "mobile_money"
	PaymentTypeTransfer    PaymentType = "transfer"
)

// PaymentExpiryWindow is how long a pending payment stays open
const PaymentExpiryWindow = 30 * time.Minute

// PaymentTransaction is the locally persisted record of a gateway payment
type PaymentTransaction struct {
	CreatedAt              time.Time              `json:"created_at"`
	UpdatedAt              time.Time              `json:"updated_at"`
	ExpiresAt              time.Time              `json:"expires_at"`
	PaidAt                 *time.Time             `json:"paid_at,omitempty"`
	Metadata               map[string]interface{} `json:"metadata,omitempty"`
	Amount                 decimal.Decimal        `json:"amount"`
	ID                     string                 `json:"id"`
	Reference              string                 `json:"reference"`
	IdempotencyKey         string                 `json:"-"`
	Type                   PaymentType            `json:"type"`
	Status                 PaymentStatus          `json:"status"`
	Currency               string                 `json:"currency"`
	CustomerEmail          string                 `json:"customer_email"`
	CustomerName           string                 `json:"customer_name"`
	CustomerPhone          string                 `json:"customer_phone,omitempty"`
	GatewayCustomerID      string                 `json:"gateway_customer_id,omitempty"`
	GatewayPaymentMethodID string                 `json:"gateway_payment_method_id,omitempty"`
	GatewayChargeID        string                 `json:"gateway_charge_id,omitempty"`
	FailureReason          string                 `json:"failure_reason,omitempty"`
}

// NewPaymentTransaction builds a pending transaction that expires after PaymentExpiryWindow
func NewPaymentTransaction(reference string, paymentType PaymentType, amount decimal.Decimal, currency string, now time.Time) *PaymentTransaction {
	return &PaymentTransaction{
		ID:             uuid.NewString(),
		Reference:      reference,
		IdempotencyKey: IdempotencyKeyForReference(reference),
		Type:           paymentType,
		Status:         PaymentStatusPending,
		Amount:         amount,
		Currency:       strings.ToUpper(currency),
		Metadata:       make(map[string]interface{}),
		CreatedAt:      now,
		UpdatedAt:      now,
		ExpiresAt:      now.Add(PaymentExpiryWindow),
	}
}

// IdempotencyKeyForReference derives the gateway idempotency key for a payment reference.
// Resubmitting the same reference always yields the same key.
func IdempotencyKeyForReference(reference string) string {
	return "payment_" + reference
}

// IsExpired reports whether a non-terminal payment has outlived its window
func (p *PaymentTransaction) IsExpired(now time.Time) bool {
	return !p.Status.IsTerminal() && now.After(p.ExpiresAt)
}

// MarkSuccessful transitions the payment to successful
func (p *PaymentTransaction) MarkSuccessful(now time.Time) error {
	if p.Status.IsTerminal() {
		return ErrPaymentAlreadyProcessed.WithDetail("status", string(p.Status))
	}
	p.Status = PaymentStatusSuccessful
	p.PaidAt = &now
	p.UpdatedAt = now
	return nil
}

// MarkFailed transitions the payment to failed with a reason
func (p *PaymentTransaction) MarkFailed(reason string, now time.Time) error {
	if p.Status.IsTerminal() {
		return ErrPaymentAlreadyProcessed.WithDetail("status", string(p.Status))
	}
	p.Status = PaymentStatusFailed
	p.FailureReason = reason
	p.UpdatedAt = now
	return nil
}

// MarkExpired transitions the payment to expired
func (p *PaymentTransaction) MarkExpired(now time.Time) error {
	if p.Status.IsTerminal() {
		return ErrPaymentAlreadyProcessed.WithDetail("status", string(p.Status))
	}
	p.Status = PaymentStatusExpired
	p.UpdatedAt = now
	return nil
}

// MarkReversed records a full refund of a settled payment
func (p *PaymentTransaction) MarkReversed(now time.Time) error {
	if p.Status != PaymentStatusSuccessful && p.Status != PaymentStatusPaid {
		return ErrPaymentInvalidState.WithDetail("status", string(p.Status))
	}
	p.Status = PaymentStatusReversed
	p.UpdatedAt = now
	return nil
}

// MarkProcessing records that the gateway accepted the charge and is awaiting an outcome
func (p *PaymentTransaction) MarkProcessing(now time.Time) {
	if p.Status.IsTerminal() {
		return
	}
	p.Status = PaymentStatusProcessing
	p.UpdatedAt = now
}

// PaymentReceipt is issued once for every successful payment
type PaymentReceipt struct {
	IssuedAt      time.Time       `json:"issued_at"`
	Amount        decimal.Decimal `json:"amount"`
	ID            string          `json:"id"`
	ReceiptNumber string          `json:"receipt_number"`
	PaymentID     string          `json:"payment_id"`
	Reference     string          `json:"reference"`
	Currency      string          `json:"currency"`
	CustomerEmail string          `json:"customer_email"`
}

// NewPaymentReceipt builds the receipt for a successful payment
func NewPaymentReceipt(p *PaymentTransaction, now time.Time) *PaymentReceipt {
	return &PaymentReceipt{
		ID:            uuid.NewString(),
		ReceiptNumber: "RCP-" + now.UTC().Format("20060102") + "-" + p.Reference,
		PaymentID:     p.ID,
		Reference:     p.Reference,
		Amount:        p.Amount,
		Currency:      p.Currency,
		CustomerEmail: p.CustomerEmail,
		IssuedAt:      now,
	}
}

// WebhookEvent is an inbound gateway webhook kept for audit and replay
type WebhookEvent struct {
	ReceivedAt      time.Time  `json:"received_at"`
	ProcessedAt     *time.Time `json:"processed_at,omitempty"`
	Payload         []byte     `json:"-"`
	ID              string     `json:"id"`
	Reference       string     `json:"reference"`
	EventType       string     `json:"event_type"`
	ProcessingError string     `json:"processing_error,omitempty"`
	Processed       bool       `json:"processed"`
}

// PaymentEventType names a notification emitted on a payment state change
type PaymentEventType string

const (
	PaymentEventInitiated  PaymentEventType = "payment.initiated"
	PaymentEventSuccessful PaymentEventType = "payment.successful"
	PaymentEventFailed     PaymentEventType = "payment.failed"
	PaymentEventExpired    PaymentEventType = "payment.expired"
)

// PaymentEvent is the payload handed to the notification dispatcher
type PaymentEvent struct {
	OccurredAt time.Time        `json:"occurred_at"`
	Amount     decimal.Decimal  `json:"amount"`
	Type       PaymentEventType `json:"type"`
	PaymentID  string           `json:"payment_id"`
	Reference  string           `json:"reference"`
	Status     PaymentStatus    `json:"status"`
	Currency   string           `json:"currency"`
	Email      string           `json:"customer_email,omitempty"`
}

// NewPaymentEvent snapshots the payment for a notification
func NewPaymentEvent(eventType PaymentEventType, p *PaymentTransaction, now time.Time) PaymentEvent {
	return PaymentEvent{
		OccurredAt: now,
		Amount:     p.Amount,
		Type:       eventType,
		PaymentID:  p.ID,
		Reference:  p.Reference,
		Status:     p.Status,
		Currency:   p.Currency,
		Email:      p.CustomerEmail,
	}
}
