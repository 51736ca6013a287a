package flutterwave

import (
	"context"
	"net/http"

	"github.com/kevin07696/flutterwave-gateway/internal/domain/ports"
)

// CardPaymentRequest carries everything a card flow needs
type CardPaymentRequest struct {
	Customer      CustomerRequest
	Card          CardData
	Charge        ChargeRequest
	Authorization Authorization
}

// CreateCardPaymentMethod validates and encrypts the card, then registers it.
// Invalid card data comes back as a validation *ErrorInfo before any request.
func (c *Client) CreateCardPaymentMethod(ctx context.Context, customerID string, card CardData) (*PaymentMethod, error) {
	if ok, errs := ValidateCardData(card); !ok {
		return nil, validationErrors(errs)
	}

	encrypted, err := c.encryptor.EncryptCard(card)
	if err != nil {
		return nil, err
	}

	req := paymentMethodRequest{
		Type:       PaymentMethodCard,
		Card:       encrypted,
		CustomerID: customerID,
	}

	var method PaymentMethod
	if err := c.do(ctx, "create_payment_method", http.MethodPost, "/payment-methods", req, requestOptions{idempotent: true}, &method); err != nil {
		return nil, err
	}

	c.logger.Info("Card payment method created",
		ports.String("customer_id", customerID),
		ports.String("payment_method_id", method.ID),
	)
	return &method, nil
}

// ProcessCardPayment runs customer, payment method, charge, authorization and
// verification in order, stopping at the first failure
func (c *Client) ProcessCardPayment(ctx context.Context, req CardPaymentRequest) (FlowResult, error) {
	state := PaymentState{Reference: req.Charge.Reference}

	if err := c.headers.CheckScenario(req.Charge.Scenario); err != nil {
		return failedOrError(state, fieldValidation(err))
	}
	customer, err := c.CreateCustomer(ctx, req.Customer)
	if err != nil {
		return failedOrError(state, err)
	}
	state.CustomerID = customer.ID
	state.Step = StepCustomerCreated

	method, err := c.CreateCardPaymentMethod(ctx, customer.ID, req.Card)
	if err != nil {
		return failedOrError(state, err)
	}
	state.PaymentMethodID = method.ID
	state.Step = StepPaymentMethodCreated

	return c.CompleteCharge(ctx, state, CompleteRequest{Charge: req.Charge, Authorization: req.Authorization})
}
