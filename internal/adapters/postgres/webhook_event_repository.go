package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/kevin07696/flutterwave-gateway/internal/domain"
	"github.com/kevin07696/flutterwave-gateway/internal/domain/ports"
)

// WebhookEventRepository implements ports.WebhookEventRepository on payment_webhooks
type WebhookEventRepository struct {
	db ports.DBTX
}

func NewWebhookEventRepository(db ports.DBPort) *WebhookEventRepository {
	return &WebhookEventRepository{db: db.DB()}
}

func (r *WebhookEventRepository) exec(db ports.DBTX) ports.DBTX {
	if db != nil {
		return db
	}
	return r.db
}

// Create stores the raw webhook as received
func (r *WebhookEventRepository) Create(ctx context.Context, db ports.DBTX, event *domain.WebhookEvent) error {
	_, err := r.exec(db).Exec(ctx, `
		INSERT INTO payment_webhooks (id, reference, event_type, payload, processed, received_at)
		VALUES ($1, $2, $3, $4, FALSE, $5)`,
		event.ID, nullText(event.Reference), event.EventType, event.Payload, event.ReceivedAt,
	)
	if err != nil {
		return fmt.Errorf("create webhook event: %w", err)
	}
	return nil
}

// MarkProcessed records the processing outcome; an empty processingError means success
func (r *WebhookEventRepository) MarkProcessed(ctx context.Context, db ports.DBTX, id string, processingError string, at time.Time) error {
	_, err := r.exec(db).Exec(ctx, `
		UPDATE payment_webhooks
		SET processed = TRUE, processing_error = $2, processed_at = $3
		WHERE id = $1`,
		id, nullText(processingError), at,
	)
	if err != nil {
		return fmt.Errorf("mark webhook processed: %w", err)
	}
	return nil
}

// DeleteReceivedBefore removes webhooks older than cutoff and returns how many were deleted
func (r *WebhookEventRepository) DeleteReceivedBefore(ctx context.Context, db ports.DBTX, cutoff time.Time) (int64, error) {
	tag, err := r.exec(db).Exec(ctx, `DELETE FROM payment_webhooks WHERE received_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete old webhooks: %w", err)
	}
	return tag.RowsAffected(), nil
}
