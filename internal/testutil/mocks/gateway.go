package mocks

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/kevin07696/flutterwave-gateway/internal/adapters/flutterwave"
	"github.com/kevin07696/flutterwave-gateway/internal/domain"
)

// MockGateway mocks the gateway operations the payment service drives
type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) ProcessCardPayment(ctx context.Context, req flutterwave.CardPaymentRequest) (flutterwave.FlowResult, error) {
	args := m.Called(ctx, req)
	return flowResult(args.Get(0)), args.Error(1)
}

func (m *MockGateway) ProcessMobileMoneyPayment(ctx context.Context, req flutterwave.MobileMoneyPaymentRequest) (flutterwave.FlowResult, error) {
	args := m.Called(ctx, req)
	return flowResult(args.Get(0)), args.Error(1)
}

func (m *MockGateway) CreateTransfer(ctx context.Context, req flutterwave.TransferRequest) (flutterwave.FlowResult, error) {
	args := m.Called(ctx, req)
	return flowResult(args.Get(0)), args.Error(1)
}

func (m *MockGateway) VerifyTransfer(ctx context.Context, transferID string) (flutterwave.FlowResult, error) {
	args := m.Called(ctx, transferID)
	return flowResult(args.Get(0)), args.Error(1)
}

func (m *MockGateway) AuthorizeCharge(ctx context.Context, state flutterwave.PaymentState, auth flutterwave.Authorization) (flutterwave.FlowResult, error) {
	args := m.Called(ctx, state, auth)
	return flowResult(args.Get(0)), args.Error(1)
}

func (m *MockGateway) Verify(ctx context.Context, chargeID string) (*flutterwave.Charge, error) {
	args := m.Called(ctx, chargeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*flutterwave.Charge), args.Error(1)
}

func (m *MockGateway) CreateRefund(ctx context.Context, req flutterwave.RefundRequest) (*flutterwave.Refund, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*flutterwave.Refund), args.Error(1)
}

func flowResult(v interface{}) flutterwave.FlowResult {
	if v == nil {
		return nil
	}
	return v.(flutterwave.FlowResult)
}

// RecordingNotifier keeps every event it is asked to deliver
type RecordingNotifier struct {
	mu     sync.Mutex
	events []domain.PaymentEvent
	Err    error
}

func (n *RecordingNotifier) Notify(ctx context.Context, event domain.PaymentEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	return n.Err
}

// Types returns the event types in delivery order
func (n *RecordingNotifier) Types() []domain.PaymentEventType {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]domain.PaymentEventType, len(n.events))
	for i, e := range n.events {
		out[i] = e.Type
	}
	return out
}
