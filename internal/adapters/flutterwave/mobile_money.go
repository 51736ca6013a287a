package flutterwave

import (
	"context"
	"net/http"
	"strings"

	"github.com/kevin07696/flutterwave-gateway/internal/domain/ports"
)

// MobileMoneyPaymentRequest carries everything a mobile money flow needs.
// An empty Charge.Currency is filled from the country table.
type MobileMoneyPaymentRequest struct {
	Customer    CustomerRequest
	MobileMoney MobileMoneyDetails
	Charge      ChargeRequest
}

// CreateMobileMoneyPaymentMethod validates the wallet against SupportedCountries and registers it
func (c *Client) CreateMobileMoneyPaymentMethod(ctx context.Context, customerID string, details MobileMoneyDetails) (*PaymentMethod, error) {
	country, err := ValidateMobileMoney(details.CountryCode, details.Network, details.PhoneNumber)
	if err != nil {
		return nil, fieldValidation(err)
	}

	details.CountryCode = country.CountryCode
	details.PhoneNumber = strings.TrimSpace(details.PhoneNumber)

	req := paymentMethodRequest{
		Type:        PaymentMethodMobileMoney,
		MobileMoney: &details,
		Currency:    country.Currency,
		CustomerID:  customerID,
	}

	var method PaymentMethod
	if err := c.do(ctx, "create_payment_method", http.MethodPost, "/payment-methods", req, requestOptions{idempotent: true}, &method); err != nil {
		return nil, err
	}

	c.logger.Info("Mobile money payment method created",
		ports.String("customer_id", customerID),
		ports.String("payment_method_id", method.ID),
		ports.String("network", details.Network),
	)
	return &method, nil
}

// EnsureCustomer reuses a customer registered with the same email or creates one
func (c *Client) EnsureCustomer(ctx context.Context, req CustomerRequest) (*Customer, error) {
	existing, err := c.FindCustomerByEmail(ctx, req.Email)
	switch {
	case err == nil && existing != nil:
		c.logger.Debug("Reusing gateway customer", ports.String("customer_id", existing.ID))
		return existing, nil
	case err != nil:
		if _, ok := AsErrorInfo(err); !ok {
			return nil, err
		}
		c.logger.Warn("Customer lookup failed, creating a new customer", ports.Err(err))
	}
	return c.CreateCustomer(ctx, req)
}

// ProcessMobileMoneyPayment runs the mobile money flow. Mobile money charges
// finish on the payer's device, so the result is usually pending with a
// payment_instruction or redirect_url next action.
func (c *Client) ProcessMobileMoneyPayment(ctx context.Context, req MobileMoneyPaymentRequest) (FlowResult, error) {
	state := PaymentState{Reference: req.Charge.Reference}

	if err := c.headers.CheckScenario(req.Charge.Scenario); err != nil {
		return failedOrError(state, fieldValidation(err))
	}
	country, err := ValidateMobileMoney(req.MobileMoney.CountryCode, req.MobileMoney.Network, req.MobileMoney.PhoneNumber)
	if err != nil {
		return failedOrError(state, fieldValidation(err))
	}
	if req.Charge.Currency == "" {
		req.Charge.Currency = country.Currency
	}

	customer, err := c.EnsureCustomer(ctx, req.Customer)
	if err != nil {
		return failedOrError(state, err)
	}
	state.CustomerID = customer.ID
	state.Step = StepCustomerCreated

	method, err := c.CreateMobileMoneyPaymentMethod(ctx, customer.ID, req.MobileMoney)
	if err != nil {
		return failedOrError(state, err)
	}
	state.PaymentMethodID = method.ID
	state.Step = StepPaymentMethodCreated

	return c.CompleteCharge(ctx, state, CompleteRequest{Charge: req.Charge})
}
