package ports

import (
	"context"
	"time"

	"github.com/kevin07696/flutterwave-gateway/internal/domain"
)

// PaymentRepository persists payment transactions
type PaymentRepository interface {
	// Create inserts a new transaction; a duplicate reference yields domain.ErrPaymentDuplicate
	Create(ctx context.Context, db DBTX, payment *domain.PaymentTransaction) error

	// GetByReference returns domain.ErrPaymentNotFound when absent
	GetByReference(ctx context.Context, db DBTX, reference string) (*domain.PaymentTransaction, error)

	// GetByReferenceForUpdate locks the row for the surrounding transaction
	GetByReferenceForUpdate(ctx context.Context, db DBTX, reference string) (*domain.PaymentTransaction, error)

	// Update writes status, gateway identifiers and timestamps
	Update(ctx context.Context, db DBTX, payment *domain.PaymentTransaction) error

	// ListPending returns non-terminal payments, oldest first.
	// expiredBefore filters to payments whose window closed before that instant; zero means all.
	ListPending(ctx context.Context, db DBTX, expiredBefore time.Time, limit int32) ([]*domain.PaymentTransaction, error)
}

// ReceiptRepository persists receipts for successful payments
type ReceiptRepository interface {
	// Create inserts the receipt; one receipt per payment
	Create(ctx context.Context, db DBTX, receipt *domain.PaymentReceipt) error
	GetByPaymentID(ctx context.Context, db DBTX, paymentID string) (*domain.PaymentReceipt, error)
}

// WebhookEventRepository keeps inbound gateway webhooks
type WebhookEventRepository interface {
	Create(ctx context.Context, db DBTX, event *domain.WebhookEvent) error
	MarkProcessed(ctx context.Context, db DBTX, id string, processingError string, at time.Time) error
	DeleteReceivedBefore(ctx context.Context, db DBTX, cutoff time.Time) (int64, error)
}
