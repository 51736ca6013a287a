package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/kevin07696/flutterwave-gateway/internal/domain"
	"github.com/kevin07696/flutterwave-gateway/internal/domain/ports"
)

// ErrReceiptNotFound is returned when a payment has no receipt yet
var ErrReceiptNotFound = errors.New("receipt not found")

// ReceiptRepository implements ports.ReceiptRepository on payment_receipts
type ReceiptRepository struct {
	db ports.DBTX
}

func NewReceiptRepository(db ports.DBPort) *ReceiptRepository {
	return &ReceiptRepository{db: db.DB()}
}

// Create inserts a receipt. A second receipt for the same payment is ignored.
func (r *ReceiptRepository) Create(ctx context.Context, db ports.DBTX, receipt *domain.PaymentReceipt) error {
	if db == nil {
		db = r.db
	}
	amount, err := decimalToNumeric(receipt.Amount)
	if err != nil {
		return err
	}

	_, err = db.Exec(ctx, `
		INSERT INTO payment_receipts (
			id, receipt_number, payment_id, reference, amount, currency, customer_email, issued_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT DO NOTHING`,
		receipt.ID, receipt.ReceiptNumber, receipt.PaymentID, receipt.Reference,
		amount, receipt.Currency, nullText(receipt.CustomerEmail), receipt.IssuedAt,
	)
	if err != nil {
		return fmt.Errorf("create receipt: %w", err)
	}
	return nil
}

// GetByPaymentID returns ErrReceiptNotFound when absent
func (r *ReceiptRepository) GetByPaymentID(ctx context.Context, db ports.DBTX, paymentID string) (*domain.PaymentReceipt, error) {
	if db == nil {
		db = r.db
	}

	var (
		receipt domain.PaymentReceipt
		amount  pgtype.Numeric
	)
	err := db.QueryRow(ctx, `
		SELECT id::text, receipt_number, payment_id::text, reference, amount, currency,
			COALESCE(customer_email, ''), issued_at
		FROM payment_receipts WHERE payment_id = $1`, paymentID,
	).Scan(&receipt.ID, &receipt.ReceiptNumber, &receipt.PaymentID, &receipt.Reference,
		&amount, &receipt.Currency, &receipt.CustomerEmail, &receipt.IssuedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrReceiptNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get receipt: %w", err)
	}

	if receipt.Amount, err = pgNumericToDecimal(amount); err != nil {
		return nil, err
	}
	return &receipt, nil
}
