package flutterwave

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/kevin07696/flutterwave-gateway/internal/domain/ports"
	pkgerrors "github.com/kevin07696/flutterwave-gateway/pkg/errors"
)

// FlowStep names how far a payment flow got
type FlowStep string

const (
	StepCustomerCreated      FlowStep = "customer_created"
	StepPaymentMethodCreated FlowStep = "payment_method_created"
	StepChargeInitiated      FlowStep = "charge_initiated"
	StepAuthorized           FlowStep = "authorized"
	StepVerified             FlowStep = "verified"
	StepFailed               FlowStep = "failed"
)

// PaymentState is threaded through the steps of a flow
type PaymentState struct {
	Step            FlowStep    `json:"step"`
	CustomerID      string      `json:"customer_id,omitempty"`
	PaymentMethodID string      `json:"payment_method_id,omitempty"`
	ChargeID        string      `json:"charge_id,omitempty"`
	TransferID      string      `json:"transfer_id,omitempty"`
	Reference       string      `json:"reference,omitempty"`
	Status          string      `json:"status,omitempty"`
	NextAction      *NextAction `json:"next_action,omitempty"`
}

// Pending reports whether the payer still has to act
func (s PaymentState) Pending() bool {
	return s.NextAction != nil && !IsTerminalChargeStatus(s.Status)
}

// FlowResult is either Succeeded or Failed
type FlowResult interface {
	isFlowResult()
	PaymentState() PaymentState
}

// Succeeded means every step the gateway asked for has completed or is
// waiting on the payer (redirect, instruction, authorization data)
type Succeeded struct {
	State PaymentState
}

// Failed carries the classified gateway failure and the state reached before it
type Failed struct {
	Error *ErrorInfo
	State PaymentState
}

func (Succeeded) isFlowResult() {}
func (Failed) isFlowResult()    {}

func (r Succeeded) PaymentState() PaymentState { return r.State }
func (r Failed) PaymentState() PaymentState    { return r.State }

// failedOrError routes classified gateway failures into a Failed result and
// returns every other error unchanged
func failedOrError(state PaymentState, err error) (FlowResult, error) {
	if info, ok := AsErrorInfo(err); ok {
		state.Step = StepFailed
		return Failed{Error: info, State: state}, nil
	}
	return nil, err
}

// Authorization is the payload used to answer a next action
type Authorization interface {
	payload(enc *Encryptor) (map[string]any, error)
	Answers() NextActionType
}

// OTPAuthorization answers requires_otp
type OTPAuthorization struct {
	Code string
}

// AVSAuthorization answers requires_additional_fields
type AVSAuthorization struct {
	Address Address
}

// PINAuthorization answers requires_pin. The PIN is encrypted before sending.
type PINAuthorization struct {
	PIN string
}

func (OTPAuthorization) Answers() NextActionType { return NextActionRequiresOTP }
func (AVSAuthorization) Answers() NextActionType { return NextActionRequiresAdditionalFields }
func (PINAuthorization) Answers() NextActionType { return NextActionRequiresPIN }

func (a OTPAuthorization) payload(*Encryptor) (map[string]any, error) {
	if strings.TrimSpace(a.Code) == "" {
		return nil, errors.New("otp code is required")
	}
	return map[string]any{"type": "otp", "otp": map[string]string{"code": a.Code}}, nil
}

func (a AVSAuthorization) payload(*Encryptor) (map[string]any, error) {
	if a.Address.Line1 == "" || a.Address.City == "" || a.Address.Country == "" {
		return nil, errors.New("address line1, city and country are required")
	}
	return map[string]any{"type": "avs", "avs": map[string]any{"address": a.Address}}, nil
}

func (a PINAuthorization) payload(enc *Encryptor) (map[string]any, error) {
	if strings.TrimSpace(a.PIN) == "" {
		return nil, errors.New("pin is required")
	}
	if !enc.IsConfigured() {
		return nil, notConfigured()
	}
	nonce, err := GenerateNonce(enc.random)
	if err != nil {
		return nil, err
	}
	encrypted, err := enc.Encrypt(a.PIN, nonce)
	if err != nil {
		return nil, err
	}
	return map[string]any{"type": "pin", "pin": map[string]string{"nonce": nonce, "encrypted_pin": encrypted}}, nil
}

// CreateCustomer registers the payer with the gateway
func (c *Client) CreateCustomer(ctx context.Context, req CustomerRequest) (*Customer, error) {
	if !ValidEmail(req.Email) {
		return nil, validationErrors([]string{"Customer email must be valid"})
	}

	var customer Customer
	if err := c.do(ctx, "create_customer", http.MethodPost, "/customers", req, requestOptions{idempotent: true}, &customer); err != nil {
		return nil, err
	}
	if customer.ID == "" {
		return nil, errors.New("gateway returned customer without id")
	}

	c.logger.Info("Gateway customer created", ports.String("customer_id", customer.ID))
	return &customer, nil
}

// FindCustomerByEmail returns the first customer with the email, or nil
func (c *Client) FindCustomerByEmail(ctx context.Context, email string) (*Customer, error) {
	var customers []Customer
	opts := requestOptions{query: url.Values{"email": {email}}}
	if err := c.do(ctx, "search_customers", http.MethodGet, "/customers", nil, opts, &customers); err != nil {
		return nil, err
	}
	if len(customers) == 0 {
		return nil, nil
	}
	return &customers[0], nil
}

// InitiateCharge posts the charge. The reference is normalised and the
// request carries an idempotency key that is reused across retries.
func (c *Client) InitiateCharge(ctx context.Context, req ChargeRequest) (*Charge, error) {
	if req.CustomerID == "" || req.PaymentMethodID == "" {
		return nil, errors.New("customer id and payment method id are required for charge initiation")
	}
	if ok, errs := ValidatePaymentData(PaymentData{Amount: req.Amount, Currency: req.Currency, Reference: req.Reference}); !ok {
		return nil, validationErrors(errs)
	}

	payload := chargePayload{
		Amount:          json.Number(req.Amount.String()),
		Currency:        strings.ToUpper(req.Currency),
		Reference:       NormalizeReference(req.Reference),
		CustomerID:      req.CustomerID,
		PaymentMethodID: req.PaymentMethodID,
		RedirectURL:     req.RedirectURL,
		Meta:            req.Meta,
	}

	opts := requestOptions{idempotent: true, idempotencyKey: req.IdempotencyKey, scenario: req.Scenario}

	var charge Charge
	if err := c.do(ctx, "initiate_charge", http.MethodPost, "/charges", payload, opts, &charge); err != nil {
		return nil, err
	}

	c.logger.Info("Charge initiated",
		ports.String("charge_id", charge.ID),
		ports.String("status", charge.Status),
	)
	return &charge, nil
}

// Authorize answers a charge's next action with PUT /charges/{id}
func (c *Client) Authorize(ctx context.Context, chargeID string, auth Authorization) (*Charge, error) {
	if chargeID == "" {
		return nil, errors.New("charge id is required")
	}
	if auth == nil {
		return nil, errors.New("authorization is required")
	}

	authPayload, err := auth.payload(c.encryptor)
	if err != nil {
		return nil, fmt.Errorf("invalid %s authorization: %w", auth.Answers(), err)
	}

	var charge Charge
	body := map[string]any{"authorization": authPayload}
	if err := c.do(ctx, "authorize_charge", http.MethodPut, "/charges/"+url.PathEscape(chargeID), body, requestOptions{}, &charge); err != nil {
		return nil, err
	}
	return &charge, nil
}

// Verify fetches the current charge state
func (c *Client) Verify(ctx context.Context, chargeID string) (*Charge, error) {
	if chargeID == "" {
		return nil, errors.New("charge id is required")
	}

	var charge Charge
	if err := c.do(ctx, "verify_charge", http.MethodGet, "/charges/"+url.PathEscape(chargeID), nil, requestOptions{}, &charge); err != nil {
		return nil, err
	}
	return &charge, nil
}

// CompleteRequest drives a flow from an existing payment method to a terminal
// or payer-actionable state
type CompleteRequest struct {
	Charge        ChargeRequest
	Authorization Authorization
}

// CompleteCharge initiates the charge, answers any authorization next action
// and verifies the result. It stops at the first failure.
func (c *Client) CompleteCharge(ctx context.Context, state PaymentState, req CompleteRequest) (FlowResult, error) {
	req.Charge.CustomerID = state.CustomerID
	req.Charge.PaymentMethodID = state.PaymentMethodID
	state.Reference = req.Charge.Reference

	charge, err := c.InitiateCharge(ctx, req.Charge)
	if err != nil {
		return failedOrError(state, err)
	}
	state = applyCharge(state, charge, StepChargeInitiated)

	if f := declineResult(state, charge); f != nil {
		return f, nil
	}

	return c.continueCharge(ctx, state, charge.NextAction, req.Authorization)
}

// AuthorizeCharge answers the pending next action of an initiated charge and verifies it
func (c *Client) AuthorizeCharge(ctx context.Context, state PaymentState, auth Authorization) (FlowResult, error) {
	if state.NextAction == nil || !state.NextAction.Type.RequiresAuthorization() {
		return nil, fmt.Errorf("charge %s is not waiting for authorization", state.ChargeID)
	}
	return c.continueCharge(ctx, state, state.NextAction, auth)
}

func (c *Client) continueCharge(ctx context.Context, state PaymentState, next *NextAction, auth Authorization) (FlowResult, error) {
	if next != nil {
		if !next.Type.Known() {
			return nil, fmt.Errorf("unsupported next action %q for charge %s", next.Type, state.ChargeID)
		}

		switch {
		case next.Type == NextActionRedirectURL || next.Type == NextActionPaymentInstruction:
			state.NextAction = next
			state.Status = ChargeStatusPending
			return Succeeded{State: state}, nil

		case auth == nil:
			// the caller supplies authorization data in a later request
			state.NextAction = next
			state.Status = ChargeStatusPending
			return Succeeded{State: state}, nil

		case auth.Answers() != next.Type:
			return nil, fmt.Errorf("%s authorization does not answer %s", auth.Answers(), next.Type)
		}

		charge, err := c.Authorize(ctx, state.ChargeID, auth)
		if err != nil {
			return failedOrError(state, err)
		}
		state = applyCharge(state, charge, StepAuthorized)

		if f := declineResult(state, charge); f != nil {
			return f, nil
		}

		if n := charge.NextAction; n != nil {
			if !n.Type.Known() {
				return nil, fmt.Errorf("unsupported next action %q for charge %s", n.Type, state.ChargeID)
			}
			// a second step (PIN then OTP) is answered in a later request
			state.NextAction = n
			state.Status = ChargeStatusPending
			return Succeeded{State: state}, nil
		}
	}

	charge, err := c.Verify(ctx, state.ChargeID)
	if err != nil {
		return failedOrError(state, err)
	}
	state = applyCharge(state, charge, StepVerified)

	if f := declineResult(state, charge); f != nil {
		return f, nil
	}
	return Succeeded{State: state}, nil
}

func applyCharge(state PaymentState, charge *Charge, step FlowStep) PaymentState {
	state.Step = step
	if charge.ID != "" {
		state.ChargeID = charge.ID
	}
	if charge.Status != "" {
		state.Status = strings.ToLower(charge.Status)
	}
	state.NextAction = charge.NextAction
	return state
}

// declineResult turns a failed charge status into a classified Failed result
func declineResult(state PaymentState, charge *Charge) FlowResult {
	if !strings.EqualFold(charge.Status, ChargeStatusFailed) {
		return nil
	}
	reason := ""
	if charge.ProcessorResponse != nil {
		reason = charge.ProcessorResponse.Type
	}
	state.Step = StepFailed
	return Failed{Error: ClassifyDecline(reason, ""), State: state}
}

// fieldValidation turns a field-level ValidationError into a classified
// validation failure. Other errors pass through.
func fieldValidation(err error) error {
	var ve *pkgerrors.ValidationError
	if !errors.As(err, &ve) {
		return err
	}
	return &ErrorInfo{
		Code:             "10400",
		Type:             "REQUEST_NOT_VALID",
		Message:          ve.Message,
		Definition:       "The request was rejected before it was sent",
		ValidationErrors: []ValidationDetail{{Field: ve.Field, Message: ve.Message}},
		Category:         pkgerrors.CategoryValidation,
		IsValidation:     true,
		IsPermanent:      true,
	}
}

// validationErrors reports input rejected before any request was sent
func validationErrors(errs []string) error {
	return &ErrorInfo{
		Code:         "10400",
		Type:         "REQUEST_NOT_VALID",
		Message:      strings.Join(errs, "; "),
		Definition:   "The request was rejected before it was sent",
		Category:     pkgerrors.CategoryValidation,
		IsValidation: true,
		IsPermanent:  true,
	}
}
