package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	paymentTransactionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_transactions_total",
		Help: "Total number of payment transactions by final or interim status",
	}, []string{
		"payment_type", // card, mobile_money, transfer
		"status",       // pending, successful, failed, expired
		"error_type",   // classifier type for failures, empty otherwise
	})

	paymentAmountTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_amount_total",
		Help: "Total successful payment amount in major currency units",
	}, []string{
		"payment_type",
		"currency",
	})

	paymentProcessingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "payment_processing_duration_seconds",
		Help:    "Time to run a payment flow end to end",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
	}, []string{
		"payment_type",
		"status",
	})

	webhooksReceivedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_webhooks_received_total",
		Help: "Total inbound gateway webhooks",
	}, []string{
		"event_type",
		"result", // processed, rejected, ignored, failed
	})

	notificationDeliveriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notification_deliveries_total",
		Help: "Total notification delivery attempts",
	}, []string{
		"event_type",
		"status", // success, failed
	})

	notificationDeliveryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "notification_delivery_duration_seconds",
		Help:    "Time to deliver a notification",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	}, []string{
		"event_type",
	})

	expiredPaymentSweepsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "expired_payment_sweep_results_total",
		Help: "Outcomes of the expired payment sweep per payment",
	}, []string{
		"result", // successful, failed, expired, pending, error
	})
)

// RecordPaymentTransaction records a payment status change and its flow duration
func RecordPaymentTransaction(paymentType, status, errorType string, amount float64, currency string, durationSeconds float64) {
	paymentTransactionsTotal.WithLabelValues(paymentType, status, errorType).Inc()
	paymentProcessingDuration.WithLabelValues(paymentType, status).Observe(durationSeconds)

	if status == "successful" {
		paymentAmountTotal.WithLabelValues(paymentType, currency).Add(amount)
	}
}

// RecordWebhookReceived records an inbound gateway webhook
func RecordWebhookReceived(eventType, result string) {
	webhooksReceivedTotal.WithLabelValues(eventType, result).Inc()
}

// RecordNotificationDelivery records an outbound notification delivery
func RecordNotificationDelivery(eventType, status string, durationSeconds float64) {
	notificationDeliveriesTotal.WithLabelValues(eventType, status).Inc()
	notificationDeliveryDuration.WithLabelValues(eventType).Observe(durationSeconds)
}

// RecordSweepResult records one payment handled by the expired payment sweep
func RecordSweepResult(result string) {
	expiredPaymentSweepsTotal.WithLabelValues(result).Inc()
}
