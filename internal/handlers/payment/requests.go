package payment

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/kevin07696/flutterwave-gateway/internal/adapters/flutterwave"
)

// CardPaymentRequest is the body of POST /api/v1/payments/card
type CardPaymentRequest struct {
	Reference     string                      `json:"reference"`
	Amount        decimal.Decimal             `json:"amount"`
	Currency      string                      `json:"currency"`
	Customer      flutterwave.CustomerRequest `json:"customer"`
	Card          flutterwave.CardData        `json:"card"`
	RedirectURL   string                      `json:"redirect_url,omitempty"`
	Authorization *AuthorizationRequest       `json:"authorization,omitempty"`
	Meta          map[string]string           `json:"meta,omitempty"`
	Scenario      *ScenarioRequest            `json:"scenario,omitempty"`
}

// MobileMoneyPaymentRequest is the body of POST /api/v1/payments/mobile-money
type MobileMoneyPaymentRequest struct {
	Reference   string                         `json:"reference"`
	Amount      decimal.Decimal                `json:"amount"`
	Currency    string                         `json:"currency,omitempty"`
	Customer    flutterwave.CustomerRequest    `json:"customer"`
	MobileMoney flutterwave.MobileMoneyDetails `json:"mobile_money"`
	RedirectURL string                         `json:"redirect_url,omitempty"`
	Meta        map[string]string              `json:"meta,omitempty"`
	Scenario    *ScenarioRequest               `json:"scenario,omitempty"`
}

// TransferRequest is the body of POST /api/v1/transfers
type TransferRequest struct {
	Reference           string                        `json:"reference"`
	Amount              decimal.Decimal               `json:"amount"`
	SourceCurrency      string                        `json:"source_currency"`
	DestinationCurrency string                        `json:"destination_currency"`
	Narration           string                        `json:"narration,omitempty"`
	RecipientID         string                        `json:"recipient_id,omitempty"`
	Recipient           *flutterwave.RecipientRequest `json:"recipient,omitempty"`
	Scenario            *ScenarioRequest              `json:"scenario,omitempty"`
}

// RefundRequest is the body of POST /api/v1/payments/{reference}/refund
type RefundRequest struct {
	Amount decimal.Decimal `json:"amount"`
	Reason string          `json:"reason,omitempty"`
}

// AuthorizationRequest answers a pending next action.
// Type is one of otp, pin or avs.
type AuthorizationRequest struct {
	Type    string               `json:"type"`
	OTP     string               `json:"otp,omitempty"`
	PIN     string               `json:"pin,omitempty"`
	Address *flutterwave.Address `json:"address,omitempty"`
}

// ScenarioRequest selects a sandbox outcome. Card payments use Auth and
// Issuer, mobile money uses Flow and transfers use Outcome.
type ScenarioRequest struct {
	Auth    string `json:"auth,omitempty"`
	Issuer  string `json:"issuer,omitempty"`
	Flow    string `json:"flow,omitempty"`
	Outcome string `json:"outcome,omitempty"`
}

var errAuthorizationType = errors.New("authorization type must be otp, pin or avs")

func (a *AuthorizationRequest) toAuthorization() (flutterwave.Authorization, error) {
	if a == nil {
		return nil, nil
	}
	switch strings.ToLower(a.Type) {
	case "otp":
		if a.OTP == "" {
			return nil, errors.New("otp is required")
		}
		return flutterwave.OTPAuthorization{Code: a.OTP}, nil
	case "pin":
		if a.PIN == "" {
			return nil, errors.New("pin is required")
		}
		return flutterwave.PINAuthorization{PIN: a.PIN}, nil
	case "avs":
		if a.Address == nil {
			return nil, errors.New("address is required")
		}
		return flutterwave.AVSAuthorization{Address: *a.Address}, nil
	default:
		return nil, errAuthorizationType
	}
}

func (s *ScenarioRequest) card() (flutterwave.Scenario, error) {
	if s == nil {
		return nil, nil
	}
	return flutterwave.NewCardScenario(s.Auth, s.Issuer)
}

func (s *ScenarioRequest) mobileMoney() (flutterwave.Scenario, error) {
	if s == nil {
		return nil, nil
	}
	return flutterwave.NewMobileMoneyScenario(s.Flow)
}

func (s *ScenarioRequest) transfer() (flutterwave.Scenario, error) {
	if s == nil {
		return nil, nil
	}
	return flutterwave.NewTransferScenario(s.Outcome)
}
