package flutterwave

import (
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

// envelope is the success response body: {status, message, data}
type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type Name struct {
	First  string `json:"first,omitempty"`
	Middle string `json:"middle,omitempty"`
	Last   string `json:"last,omitempty"`
}

// Full joins the non-empty name parts
func (n Name) Full() string {
	return strings.Join(strings.Fields(n.First+" "+n.Middle+" "+n.Last), " ")
}

type Phone struct {
	CountryCode string `json:"country_code"`
	Number      string `json:"number"`
}

type Address struct {
	City       string `json:"city,omitempty"`
	Country    string `json:"country,omitempty"`
	Line1      string `json:"line1,omitempty"`
	Line2      string `json:"line2,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
	State      string `json:"state,omitempty"`
}

// CustomerRequest is the body of POST /customers
type CustomerRequest struct {
	Email   string            `json:"email"`
	Name    *Name             `json:"name,omitempty"`
	Phone   *Phone            `json:"phone,omitempty"`
	Address *Address          `json:"address,omitempty"`
	Meta    map[string]string `json:"meta,omitempty"`
}

// Customer is a gateway customer record
type Customer struct {
	ID      string   `json:"id"`
	Email   string   `json:"email"`
	Name    Name     `json:"name"`
	Phone   *Phone   `json:"phone,omitempty"`
	Address *Address `json:"address,omitempty"`
}

const (
	PaymentMethodCard        = "card"
	PaymentMethodMobileMoney = "mobile_money"
)

// MobileMoneyDetails identifies a mobile wallet
type MobileMoneyDetails struct {
	CountryCode string `json:"country_code"`
	Network     string `json:"network"`
	PhoneNumber string `json:"phone_number"`
}

type paymentMethodRequest struct {
	Type        string              `json:"type"`
	Card        *EncryptedCard      `json:"card,omitempty"`
	MobileMoney *MobileMoneyDetails `json:"mobile_money,omitempty"`
	Currency    string              `json:"currency,omitempty"`
	CustomerID  string              `json:"customer_id"`
}

// PaymentMethod is a tokenised card or wallet bound to a customer
type PaymentMethod struct {
	ID         string `json:"id"`
	Type       string `json:"type"`
	CustomerID string `json:"customer_id"`
}

// ChargeRequest starts a charge against an existing payment method
type ChargeRequest struct {
	Amount          decimal.Decimal
	Currency        string
	Reference       string
	CustomerID      string
	PaymentMethodID string
	RedirectURL     string
	Meta            map[string]string

	// IdempotencyKey is reused verbatim; a fresh key is generated when empty
	IdempotencyKey string
	Scenario       Scenario
}

type chargePayload struct {
	Amount          json.Number       `json:"amount"`
	Currency        string            `json:"currency"`
	Reference       string            `json:"reference"`
	CustomerID      string            `json:"customer_id"`
	PaymentMethodID string            `json:"payment_method_id"`
	RedirectURL     string            `json:"redirect_url,omitempty"`
	Meta            map[string]string `json:"meta,omitempty"`
}

// NormalizeReference strips the characters the charge endpoint rejects
func NormalizeReference(reference string) string {
	return strings.NewReplacer("_", "", "-", "", " ", "").Replace(reference)
}

// NextActionType is the step a charge needs before it can complete
type NextActionType string

const (
	NextActionRequiresOTP              NextActionType = "requires_otp"
	NextActionRequiresAdditionalFields NextActionType = "requires_additional_fields"
	NextActionRequiresPIN              NextActionType = "requires_pin"
	NextActionRedirectURL              NextActionType = "redirect_url"
	NextActionPaymentInstruction       NextActionType = "payment_instruction"
)

// Known reports whether the flow drivers have a handling path for t
func (t NextActionType) Known() bool {
	switch t {
	case NextActionRequiresOTP, NextActionRequiresAdditionalFields, NextActionRequiresPIN,
		NextActionRedirectURL, NextActionPaymentInstruction:
		return true
	}
	return false
}

// RequiresAuthorization reports whether t is resolved with PUT /charges/{id}
func (t NextActionType) RequiresAuthorization() bool {
	return t == NextActionRequiresOTP || t == NextActionRequiresAdditionalFields || t == NextActionRequiresPIN
}

// NextAction is returned by the gateway when a charge needs payer interaction
type NextAction struct {
	Type        NextActionType `json:"type"`
	RedirectURL *struct {
		URL string `json:"url"`
	} `json:"redirect_url,omitempty"`
	PaymentInstruction *struct {
		Note string `json:"note"`
	} `json:"payment_instruction,omitempty"`
	RequiresAdditionalFields *struct {
		Fields []string `json:"fields"`
	} `json:"requires_additional_fields,omitempty"`
}

// URL is the redirect target for redirect_url actions
func (n *NextAction) URL() string {
	if n == nil || n.RedirectURL == nil {
		return ""
	}
	return n.RedirectURL.URL
}

// Note is the payer instruction for payment_instruction actions
func (n *NextAction) Note() string {
	if n == nil || n.PaymentInstruction == nil || n.PaymentInstruction.Note == "" {
		return "Please follow the payment instructions"
	}
	return n.PaymentInstruction.Note
}

// ProcessorResponse carries the issuer outcome of a charge
type ProcessorResponse struct {
	Type string `json:"type"`
	Code string `json:"code"`
}

// Charge is the gateway view of a charge
type Charge struct {
	ID                string             `json:"id"`
	Amount            json.Number        `json:"amount"`
	Currency          string             `json:"currency"`
	Reference         string             `json:"reference"`
	Status            string             `json:"status"`
	CustomerID        string             `json:"customer_id"`
	PaymentMethodID   string             `json:"payment_method_id"`
	NextAction        *NextAction        `json:"next_action,omitempty"`
	ProcessorResponse *ProcessorResponse `json:"processor_response,omitempty"`
	CreatedDatetime   string             `json:"created_datetime,omitempty"`
}

// Charge statuses reported by the gateway
const (
	ChargeStatusPending   = "pending"
	ChargeStatusSucceeded = "succeeded"
	ChargeStatusSuccess   = "successful"
	ChargeStatusFailed    = "failed"
	ChargeStatusExpired   = "expired"
)

// IsTerminalChargeStatus reports whether status can no longer change
func IsTerminalChargeStatus(status string) bool {
	switch strings.ToLower(status) {
	case ChargeStatusSucceeded, ChargeStatusSuccess, ChargeStatusFailed, ChargeStatusExpired:
		return true
	}
	return false
}

// IsSuccessfulChargeStatus reports whether the charge settled
func IsSuccessfulChargeStatus(status string) bool {
	s := strings.ToLower(status)
	return s == ChargeStatusSucceeded || s == ChargeStatusSuccess
}

// RefundRequest is the body of POST /refunds
type RefundRequest struct {
	ChargeID       string          `json:"-"`
	Amount         decimal.Decimal `json:"-"`
	Reason         string          `json:"-"`
	IdempotencyKey string          `json:"-"`
}

type refundPayload struct {
	ChargeID string `json:"charge_id"`
	Amount   string `json:"amount"`
	Reason   string `json:"reason,omitempty"`
}

// Refund is the gateway view of a refund
type Refund struct {
	ID       string      `json:"id"`
	ChargeID string      `json:"charge_id"`
	Amount   json.Number `json:"amount"`
	Status   string      `json:"status"`
	Reason   string      `json:"reason,omitempty"`
}
