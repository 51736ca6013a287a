// Package fixtures provides test data builders and helpers.
package fixtures

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/kevin07696/flutterwave-gateway/internal/domain"
)

// PaymentBuilder provides fluent API for building test payments.
type PaymentBuilder struct {
	payment *domain.PaymentTransaction
}

// NewPayment creates a pending card payment of 5000 UGX with sensible defaults.
func NewPayment(reference string) *PaymentBuilder {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	p := domain.NewPaymentTransaction(reference, domain.PaymentTypeCard, decimal.NewFromInt(5000), "UGX", now)
	p.CustomerEmail = "payer@example.com"
	p.CustomerName = "Ada Okello"
	return &PaymentBuilder{payment: p}
}

func (b *PaymentBuilder) WithType(t domain.PaymentType) *PaymentBuilder {
	b.payment.Type = t
	return b
}

func (b *PaymentBuilder) WithStatus(status domain.PaymentStatus) *PaymentBuilder {
	b.payment.Status = status
	return b
}

func (b *PaymentBuilder) WithAmount(amount decimal.Decimal, currency string) *PaymentBuilder {
	b.payment.Amount = amount
	b.payment.Currency = currency
	return b
}

func (b *PaymentBuilder) WithChargeID(id string) *PaymentBuilder {
	b.payment.GatewayChargeID = id
	return b
}

func (b *PaymentBuilder) WithExpiresAt(t time.Time) *PaymentBuilder {
	b.payment.ExpiresAt = t
	return b
}

func (b *PaymentBuilder) WithMetadata(key string, value interface{}) *PaymentBuilder {
	b.payment.Metadata[key] = value
	return b
}

// Build returns the built payment
func (b *PaymentBuilder) Build() *domain.PaymentTransaction {
	return b.payment
}
