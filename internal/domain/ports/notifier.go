package ports

import (
	"context"

	"github.com/kevin07696/flutterwave-gateway/internal/domain"
)

// Notifier delivers payment state changes to downstream consumers
type Notifier interface {
	Notify(ctx context.Context, event domain.PaymentEvent) error
}
