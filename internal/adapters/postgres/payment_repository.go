package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/kevin07696/flutterwave-gateway/internal/domain"
	"github.com/kevin07696/flutterwave-gateway/internal/domain/ports"
)

const paymentColumns = `id::text, reference, idempotency_key, type, status, amount, currency,
	COALESCE(customer_email, ''), COALESCE(customer_name, ''), COALESCE(customer_phone, ''),
	COALESCE(gateway_customer_id, ''), COALESCE(gateway_payment_method_id, ''),
	COALESCE(gateway_charge_id, ''), COALESCE(failure_reason, ''), metadata,
	created_at, updated_at, expires_at, paid_at`

// PaymentRepository implements ports.PaymentRepository on payment_transactions
type PaymentRepository struct {
	db ports.DBTX
}

// NewPaymentRepository creates a repository that defaults to db.DB() when no executor is passed
func NewPaymentRepository(db ports.DBPort) *PaymentRepository {
	return &PaymentRepository{db: db.DB()}
}

func (r *PaymentRepository) exec(db ports.DBTX) ports.DBTX {
	if db != nil {
		return db
	}
	return r.db
}

// Create inserts a new payment transaction
func (r *PaymentRepository) Create(ctx context.Context, db ports.DBTX, p *domain.PaymentTransaction) error {
	amount, err := decimalToNumeric(p.Amount)
	if err != nil {
		return err
	}
	metadata, err := marshalMetadata(p.Metadata)
	if err != nil {
		return err
	}

	_, err = r.exec(db).Exec(ctx, `
		INSERT INTO payment_transactions (
			id, reference, idempotency_key, type, status, amount, currency,
			customer_email, customer_name, customer_phone,
			gateway_customer_id, gateway_payment_method_id, gateway_charge_id,
			failure_reason, metadata, created_at, updated_at, expires_at, paid_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`,
		p.ID, p.Reference, p.IdempotencyKey, string(p.Type), string(p.Status), amount, p.Currency,
		nullText(p.CustomerEmail), nullText(p.CustomerName), nullText(p.CustomerPhone),
		nullText(p.GatewayCustomerID), nullText(p.GatewayPaymentMethodID), nullText(p.GatewayChargeID),
		nullText(p.FailureReason), metadata, p.CreatedAt, p.UpdatedAt, p.ExpiresAt, p.PaidAt,
	)
	if isUniqueViolation(err) {
		return domain.ErrPaymentDuplicate.WithDetail("reference", p.Reference)
	}
	if err != nil {
		return fmt.Errorf("create payment transaction: %w", err)
	}
	return nil
}

// GetByReference loads a payment by its transaction reference
func (r *PaymentRepository) GetByReference(ctx context.Context, db ports.DBTX, reference string) (*domain.PaymentTransaction, error) {
	row := r.exec(db).QueryRow(ctx, `SELECT `+paymentColumns+` FROM payment_transactions WHERE reference = $1`, reference)
	return scanPayment(row)
}

// GetByReferenceForUpdate loads and row-locks a payment; db should be a transaction
func (r *PaymentRepository) GetByReferenceForUpdate(ctx context.Context, db ports.DBTX, reference string) (*domain.PaymentTransaction, error) {
	row := r.exec(db).QueryRow(ctx, `SELECT `+paymentColumns+` FROM payment_transactions WHERE reference = $1 FOR UPDATE`, reference)
	return scanPayment(row)
}

// Update writes the mutable fields of a payment
func (r *PaymentRepository) Update(ctx context.Context, db ports.DBTX, p *domain.PaymentTransaction) error {
	metadata, err := marshalMetadata(p.Metadata)
	if err != nil {
		return err
	}

	tag, err := r.exec(db).Exec(ctx, `
		UPDATE payment_transactions SET
			status = $2,
			customer_email = $3,
			customer_name = $4,
			customer_phone = $5,
			gateway_customer_id = $6,
			gateway_payment_method_id = $7,
			gateway_charge_id = $8,
			failure_reason = $9,
			metadata = $10,
			updated_at = $11,
			paid_at = $12
		WHERE reference = $1`,
		p.Reference, string(p.Status),
		nullText(p.CustomerEmail), nullText(p.CustomerName), nullText(p.CustomerPhone),
		nullText(p.GatewayCustomerID), nullText(p.GatewayPaymentMethodID), nullText(p.GatewayChargeID),
		nullText(p.FailureReason), metadata, p.UpdatedAt, p.PaidAt,
	)
	if err != nil {
		return fmt.Errorf("update payment transaction: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrPaymentNotFound.WithDetail("reference", p.Reference)
	}
	return nil
}

// ListPending returns payments that still await an outcome, oldest first
func (r *PaymentRepository) ListPending(ctx context.Context, db ports.DBTX, expiredBefore time.Time, limit int32) ([]*domain.PaymentTransaction, error) {
	var cutoff pgtype.Timestamptz
	if !expiredBefore.IsZero() {
		cutoff = pgtype.Timestamptz{Time: expiredBefore, Valid: true}
	}

	rows, err := r.exec(db).Query(ctx, `
		SELECT `+paymentColumns+`
		FROM payment_transactions
		WHERE status IN ('pending', 'processing')
		  AND ($1::timestamptz IS NULL OR expires_at < $1)
		ORDER BY created_at ASC
		LIMIT $2`, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending payments: %w", err)
	}
	defer rows.Close()

	var payments []*domain.PaymentTransaction
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list pending payments: %w", err)
	}
	return payments, nil
}

func scanPayment(row pgx.Row) (*domain.PaymentTransaction, error) {
	var (
		p           domain.PaymentTransaction
		paymentType string
		status      string
		amount      pgtype.Numeric
		metadata    []byte
	)

	err := row.Scan(
		&p.ID, &p.Reference, &p.IdempotencyKey, &paymentType, &status, &amount, &p.Currency,
		&p.CustomerEmail, &p.CustomerName, &p.CustomerPhone,
		&p.GatewayCustomerID, &p.GatewayPaymentMethodID, &p.GatewayChargeID,
		&p.FailureReason, &metadata, &p.CreatedAt, &p.UpdatedAt, &p.ExpiresAt, &p.PaidAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrPaymentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan payment transaction: %w", err)
	}

	p.Type = domain.PaymentType(paymentType)
	p.Status = domain.PaymentStatus(status)
	if p.Amount, err = pgNumericToDecimal(amount); err != nil {
		return nil, err
	}
	if p.Metadata, err = unmarshalMetadata(metadata); err != nil {
		return nil, err
	}
	return &p, nil
}
