package flutterwave

import (
	"fmt"
	"sort"

	pkgerrors "github.com/kevin07696/flutterwave-gateway/pkg/errors"
)

// CardScenarios are the sandbox card authentication flows
var CardScenarios = map[string]string{
	"auth_pin":     "Mock PIN authentication",
	"auth_pin_3ds": "Mock failover from PIN to 3DS",
	"auth_3ds":     "Mock 3DS authentication",
	"auth_avs":     "Mock noauth (AVS) flow",
}

// CardIssuerResponses are the sandbox issuer outcomes that can follow a card scenario
var CardIssuerResponses = map[string]string{
	"approved":             "Transaction approved",
	"partial_approval":     "Partial approval",
	"no_reason_to_decline": "No reason to decline",

	"incorrect_pin":            "Incorrect PIN entered",
	"cannot_verify_pin":        "Cannot verify PIN",
	"pin_data_required":        "PIN data required",
	"pin_entry_tries_exceeded": "PIN entry tries exceeded",

	"expired_card":          "Card has expired",
	"lost_card_pick_up":     "Lost card - pick up",
	"stolen_card_pick_up":   "Stolen card - pick up",
	"pick_up_card_fraud":    "Pick up card - fraud",
	"pick_up_card_no_fraud": "Pick up card - no fraud",

	"insufficient_funds":     "Insufficient funds",
	"no_checking_account":    "No checking account",
	"no_savings_account":     "No savings account",
	"invalid_account_number": "Invalid account number",

	"do_not_honor":                       "Do not honor",
	"exceeds_approval_amount_limit":      "Exceeds approval amount limit",
	"exceeds_withdrawal_limit":           "Exceeds withdrawal limit",
	"invalid_amount":                     "Invalid amount",
	"invalid_cvv":                        "Invalid CVV",
	"invalid_transaction":                "Invalid transaction",
	"transaction_not_permitted_card":     "Transaction not permitted for card",
	"transaction_not_permitted_terminal": "Transaction not permitted for terminal",

	"security_violation":  "Security violation",
	"suspected_fraud":     "Suspected fraud",
	"negative_cvv_result": "Negative CVV result",
	"blocked_first_use":   "Blocked first use",

	"error":                           "System error",
	"issuer_unavailable":              "Issuer unavailable",
	"system_error":                    "System error",
	"file_temporarily_not_available":  "File temporarily not available",
	"unable_to_locate_record_in_file": "Unable to locate record in file",
	"unable_to_route_transaction":     "Unable to route transaction",

	"cannot_complete_violation_of_law":     "Cannot complete - violation of law",
	"invalid_merchant":                     "Invalid merchant",
	"invalid_restricted_service_code":      "Invalid restricted service code",
	"no_action_taken":                      "No action taken",
	"no_such_issuer":                       "No such issuer",
	"refer_to_issuer":                      "Refer to issuer",
	"refer_to_issuer_special_condition":    "Refer to issuer - special condition",
	"reenter_transaction":                  "Reenter transaction",
	"transaction_does_not_fulfill_aml_req": "Transaction does not fulfill AML requirements",
	"unsolicited_reversal":                 "Unsolicited reversal",
	"already_reversed":                     "Already reversed",
}

// MobileMoneyScenarios are the sandbox mobile money flows
var MobileMoneyScenarios = map[string]string{
	"default":       "Default flow (notification on mobile device)",
	"auth_redirect": "Redirect flow (authorization page)",
}

// TransferScenarios are the sandbox transfer outcomes
var TransferScenarios = map[string]string{
	"successful": "Successful transfer",

	"account_resolved_failed": "Account resolution failed",
	"no_account_found":        "No account found",

	"amount_below_limit_error":     "Amount below limit",
	"amount_exceed_limit_error":    "Amount exceeds limit",
	"currency_amount_below_limit":  "Currency amount below limit",
	"currency_amount_exceed_limit": "Currency amount exceeds limit",
	"invalid_amount":               "Invalid amount",
	"invalid_amount_validation":    "Invalid amount validation",

	"day_limit_error":               "Daily limit error",
	"day_transfer_limit_exceeded":   "Daily transfer limit exceeded",
	"month_limit_error":             "Monthly limit error",
	"month_transfer_limit_exceeded": "Monthly transfer limit exceeded",

	"insufficient_balance": "Insufficient balance",

	"invalid_currency":        "Invalid currency",
	"invalid_wallet_currency": "Invalid wallet currency",

	"duplicate_reference":      "Duplicate reference",
	"invalid_reference":        "Invalid reference",
	"invalid_reference_length": "Invalid reference length",

	"invalid_bulk_data": "Invalid bulk data",
	"invalid_payouts":   "Invalid payouts",
	"file_too_large":    "File too large",

	"blocked_bank":                "Blocked bank",
	"disabled_transfer":           "Disabled transfer",
	"payout_creation_error":       "Payout creation error",
	"unavailable_transfer_option": "Unavailable transfer option",
}

// Scenario is a sandbox directive telling the test gateway which outcome to simulate.
// It is serialized into X-Scenario-Key only when a request is sent.
type Scenario interface {
	// Key renders the wire form, e.g. "scenario:auth_avs&issuer:approved"
	Key() string
	// Validate checks the scenario against its registry
	Validate() error
	isScenario()
}

// CardScenario selects a card authentication flow and, optionally, an issuer outcome
type CardScenario struct {
	Auth   string
	Issuer string
}

// MobileMoneyScenario selects a mobile money flow
type MobileMoneyScenario struct {
	Flow string
}

// TransferScenario selects a transfer outcome
type TransferScenario struct {
	Outcome string
}

func (CardScenario) isScenario()        {}
func (MobileMoneyScenario) isScenario() {}
func (TransferScenario) isScenario()    {}

func (s CardScenario) Key() string {
	if s.Issuer == "" {
		return "scenario:" + s.Auth
	}
	return "scenario:" + s.Auth + "&issuer:" + s.Issuer
}

func (s CardScenario) Validate() error {
	if _, ok := CardScenarios[s.Auth]; !ok {
		return pkgerrors.NewValidationError("scenario", fmt.Sprintf("invalid card scenario: %q", s.Auth))
	}
	if s.Issuer == "" {
		return nil
	}
	if _, ok := CardIssuerResponses[s.Issuer]; !ok {
		return pkgerrors.NewValidationError("issuer", fmt.Sprintf("invalid issuer response: %q", s.Issuer))
	}
	return nil
}

func (s MobileMoneyScenario) Key() string { return "scenario:" + s.Flow }

func (s MobileMoneyScenario) Validate() error {
	if _, ok := MobileMoneyScenarios[s.Flow]; !ok {
		return pkgerrors.NewValidationError("scenario", fmt.Sprintf("invalid mobile money scenario: %q", s.Flow))
	}
	return nil
}

func (s TransferScenario) Key() string { return "scenario:" + s.Outcome }

func (s TransferScenario) Validate() error {
	if _, ok := TransferScenarios[s.Outcome]; !ok {
		return pkgerrors.NewValidationError("scenario", fmt.Sprintf("invalid transfer scenario: %q", s.Outcome))
	}
	return nil
}

// NewCardScenario builds a validated card scenario
func NewCardScenario(auth, issuer string) (CardScenario, error) {
	s := CardScenario{Auth: auth, Issuer: issuer}
	if err := s.Validate(); err != nil {
		return CardScenario{}, err
	}
	return s, nil
}

// NewMobileMoneyScenario builds a validated mobile money scenario
func NewMobileMoneyScenario(flow string) (MobileMoneyScenario, error) {
	s := MobileMoneyScenario{Flow: flow}
	if err := s.Validate(); err != nil {
		return MobileMoneyScenario{}, err
	}
	return s, nil
}

// NewTransferScenario builds a validated transfer scenario
func NewTransferScenario(outcome string) (TransferScenario, error) {
	s := TransferScenario{Outcome: outcome}
	if err := s.Validate(); err != nil {
		return TransferScenario{}, err
	}
	return s, nil
}

// CardScenarioKey validates and renders a card scenario key
func CardScenarioKey(auth, issuer string) (string, error) {
	s, err := NewCardScenario(auth, issuer)
	if err != nil {
		return "", err
	}
	return s.Key(), nil
}

// ScenarioNames returns the sorted names of a registry
func ScenarioNames(registry map[string]string) []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
