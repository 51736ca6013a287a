// Package mocks provides shared mock implementations for testing.
package mocks

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/kevin07696/flutterwave-gateway/internal/domain"
	"github.com/kevin07696/flutterwave-gateway/internal/domain/ports"
)

// MemoryStore is an in-memory stand-in for the Postgres adapter. It
// implements ports.DBPort and the payment, receipt and webhook repositories.
// WithTransaction runs fn with a nil transaction; repositories ignore the executor.
type MemoryStore struct {
	mu       sync.Mutex
	payments map[string]*domain.PaymentTransaction
	receipts map[string]*domain.PaymentReceipt
	webhooks map[string]*domain.WebhookEvent

	// Errors injected into the next matching call
	CreateErr error
	UpdateErr error
	ListErr   error
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		payments: make(map[string]*domain.PaymentTransaction),
		receipts: make(map[string]*domain.PaymentReceipt),
		webhooks: make(map[string]*domain.WebhookEvent),
	}
}

func (m *MemoryStore) DB() ports.DBTX { return nil }

func (m *MemoryStore) WithTransaction(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error {
	return fn(ctx, nil)
}

// Payments returns the payment repository view
func (m *MemoryStore) Payments() ports.PaymentRepository { return paymentRepo{m} }

// Receipts returns the receipt repository view
func (m *MemoryStore) Receipts() ports.ReceiptRepository { return receiptRepo{m} }

// Webhooks returns the webhook repository view
func (m *MemoryStore) Webhooks() ports.WebhookEventRepository { return webhookRepo{m} }

// Seed stores a payment as-is
func (m *MemoryStore) Seed(p *domain.PaymentTransaction) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payments[p.Reference] = clonePayment(p)
}

// Payment returns a copy of the stored payment, or nil
func (m *MemoryStore) Payment(reference string) *domain.PaymentTransaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.payments[reference]; ok {
		return clonePayment(p)
	}
	return nil
}

// Receipt returns the receipt for a payment id, or nil
func (m *MemoryStore) Receipt(paymentID string) *domain.PaymentReceipt {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.receipts[paymentID]
}

// ReceiptCount returns how many receipts were issued
func (m *MemoryStore) ReceiptCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.receipts)
}

// Webhook returns a copy of a stored webhook event, or nil
func (m *MemoryStore) Webhook(id string) *domain.WebhookEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.webhooks[id]; ok {
		c := *e
		return &c
	}
	return nil
}

// WebhookCount returns how many webhook events are stored
func (m *MemoryStore) WebhookCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.webhooks)
}

func clonePayment(p *domain.PaymentTransaction) *domain.PaymentTransaction {
	c := *p
	c.Metadata = make(map[string]interface{}, len(p.Metadata))
	for k, v := range p.Metadata {
		c.Metadata[k] = v
	}
	return &c
}

type paymentRepo struct{ m *MemoryStore }

func (r paymentRepo) Create(ctx context.Context, db ports.DBTX, p *domain.PaymentTransaction) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if err := r.m.CreateErr; err != nil {
		r.m.CreateErr = nil
		return err
	}
	if _, ok := r.m.payments[p.Reference]; ok {
		return domain.ErrPaymentDuplicate.WithDetail("reference", p.Reference)
	}
	r.m.payments[p.Reference] = clonePayment(p)
	return nil
}

func (r paymentRepo) GetByReference(ctx context.Context, db ports.DBTX, reference string) (*domain.PaymentTransaction, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	p, ok := r.m.payments[reference]
	if !ok {
		return nil, domain.ErrPaymentNotFound.WithDetail("reference", reference)
	}
	return clonePayment(p), nil
}

func (r paymentRepo) GetByReferenceForUpdate(ctx context.Context, db ports.DBTX, reference string) (*domain.PaymentTransaction, error) {
	return r.GetByReference(ctx, db, reference)
}

func (r paymentRepo) Update(ctx context.Context, db ports.DBTX, p *domain.PaymentTransaction) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if err := r.m.UpdateErr; err != nil {
		r.m.UpdateErr = nil
		return err
	}
	if _, ok := r.m.payments[p.Reference]; !ok {
		return domain.ErrPaymentNotFound.WithDetail("reference", p.Reference)
	}
	r.m.payments[p.Reference] = clonePayment(p)
	return nil
}

func (r paymentRepo) ListPending(ctx context.Context, db ports.DBTX, expiredBefore time.Time, limit int32) ([]*domain.PaymentTransaction, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if err := r.m.ListErr; err != nil {
		r.m.ListErr = nil
		return nil, err
	}
	var out []*domain.PaymentTransaction
	for _, p := range r.m.payments {
		if p.Status != domain.PaymentStatusPending && p.Status != domain.PaymentStatusProcessing {
			continue
		}
		if !expiredBefore.IsZero() && !p.ExpiresAt.Before(expiredBefore) {
			continue
		}
		out = append(out, clonePayment(p))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].Reference < out[j].Reference
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > int(limit) {
		out = out[:limit]
	}
	return out, nil
}

type receiptRepo struct{ m *MemoryStore }

func (r receiptRepo) Create(ctx context.Context, db ports.DBTX, receipt *domain.PaymentReceipt) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.receipts[receipt.PaymentID]; !ok {
		r.m.receipts[receipt.PaymentID] = receipt
	}
	return nil
}

func (r receiptRepo) GetByPaymentID(ctx context.Context, db ports.DBTX, paymentID string) (*domain.PaymentReceipt, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	receipt, ok := r.m.receipts[paymentID]
	if !ok {
		return nil, domain.ErrPaymentNotFound.WithDetail("payment_id", paymentID)
	}
	return receipt, nil
}

type webhookRepo struct{ m *MemoryStore }

func (r webhookRepo) Create(ctx context.Context, db ports.DBTX, event *domain.WebhookEvent) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	c := *event
	r.m.webhooks[event.ID] = &c
	return nil
}

func (r webhookRepo) MarkProcessed(ctx context.Context, db ports.DBTX, id string, processingError string, at time.Time) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	e, ok := r.m.webhooks[id]
	if !ok {
		return domain.ErrWebhookPayload.WithDetail("id", id)
	}
	e.Processed = true
	e.ProcessingError = processingError
	e.ProcessedAt = &at
	return nil
}

func (r webhookRepo) DeleteReceivedBefore(ctx context.Context, db ports.DBTX, cutoff time.Time) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var n int64
	for id, e := range r.m.webhooks {
		if e.ReceivedAt.Before(cutoff) {
			delete(r.m.webhooks, id)
			n++
		}
	}
	return n, nil
}
