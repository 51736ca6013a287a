package flutterwave

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/kevin07696/flutterwave-gateway/internal/domain/ports"
	pkgerrors "github.com/kevin07696/flutterwave-gateway/pkg/errors"
)

// BankAccount identifies a payout bank account
type BankAccount struct {
	AccountNumber string `json:"account_number"`
	Code          string `json:"code"`
}

// RecipientRequest is the body of POST /transfers/recipients. Type is the
// payout rail, e.g. "bank_ugx" or "mobile_money_ugx".
type RecipientRequest struct {
	Type        string              `json:"type"`
	Name        *Name               `json:"name,omitempty"`
	Email       string              `json:"email,omitempty"`
	Bank        *BankAccount        `json:"bank,omitempty"`
	MobileMoney *MobileMoneyDetails `json:"mobile_money,omitempty"`
}

// TransferRecipient is a saved payout destination
type TransferRecipient struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

// TransferRequest sends money out. Either RecipientID or Recipient is required.
type TransferRequest struct {
	Reference           string
	Narration           string
	SourceCurrency      string
	DestinationCurrency string
	Amount              decimal.Decimal
	RecipientID         string
	Recipient           *RecipientRequest

	IdempotencyKey string
	Scenario       Scenario
}

type transferPayload struct {
	Action             string             `json:"action"`
	Reference          string             `json:"reference"`
	Narration          string             `json:"narration,omitempty"`
	PaymentInstruction paymentInstruction `json:"payment_instruction"`
}

type paymentInstruction struct {
	SourceCurrency      string         `json:"source_currency"`
	DestinationCurrency string         `json:"destination_currency"`
	Amount              transferAmount `json:"amount"`
	RecipientID         string         `json:"recipient_id"`
}

type transferAmount struct {
	AppliesTo string      `json:"applies_to"`
	Value     json.Number `json:"value"`
}

// Transfer is the gateway view of a payout
type Transfer struct {
	ID        string `json:"id"`
	Reference string `json:"reference"`
	Status    string `json:"status"`
	Narration string `json:"narration,omitempty"`
	Type      string `json:"type,omitempty"`
}

// Transfer statuses reported by the gateway
const (
	TransferStatusNew        = "new"
	TransferStatusPending    = "pending"
	TransferStatusSuccessful = "successful"
	TransferStatusFailed     = "failed"
)

// CreateTransferRecipient registers a payout destination
func (c *Client) CreateTransferRecipient(ctx context.Context, req RecipientRequest) (*TransferRecipient, error) {
	if req.Type == "" || (req.Bank == nil && req.MobileMoney == nil) {
		return nil, validationErrors([]string{"Recipient type and bank or mobile money details are required"})
	}

	var recipient TransferRecipient
	if err := c.do(ctx, "create_transfer_recipient", http.MethodPost, "/transfers/recipients", req, requestOptions{idempotent: true}, &recipient); err != nil {
		return nil, err
	}
	return &recipient, nil
}

// CreateTransfer creates the recipient when needed and submits an instant transfer
func (c *Client) CreateTransfer(ctx context.Context, req TransferRequest) (FlowResult, error) {
	state := PaymentState{Reference: req.Reference}

	if errs := validateTransfer(req); len(errs) > 0 {
		return failedOrError(state, validationErrors(errs))
	}
	if err := c.headers.CheckScenario(req.Scenario); err != nil {
		return failedOrError(state, fieldValidation(err))
	}

	recipientID := req.RecipientID
	if recipientID == "" {
		recipient, err := c.CreateTransferRecipient(ctx, *req.Recipient)
		if err != nil {
			return failedOrError(state, err)
		}
		recipientID = recipient.ID
	}

	destination := req.DestinationCurrency
	if destination == "" {
		destination = req.SourceCurrency
	}

	payload := transferPayload{
		Action:    "instant",
		Reference: NormalizeReference(req.Reference),
		Narration: req.Narration,
		PaymentInstruction: paymentInstruction{
			SourceCurrency:      strings.ToUpper(req.SourceCurrency),
			DestinationCurrency: strings.ToUpper(destination),
			Amount: transferAmount{
				AppliesTo: "destination_currency",
				Value:     json.Number(req.Amount.String()),
			},
			RecipientID: recipientID,
		},
	}

	opts := requestOptions{idempotent: true, idempotencyKey: req.IdempotencyKey, scenario: req.Scenario}

	var transfer Transfer
	if err := c.do(ctx, "create_transfer", http.MethodPost, "/transfers", payload, opts, &transfer); err != nil {
		return failedOrError(state, err)
	}

	c.logger.Info("Transfer created",
		ports.String("transfer_id", transfer.ID),
		ports.String("status", transfer.Status),
	)

	return transferResult(state, &transfer), nil
}

// VerifyTransfer fetches the current transfer state
func (c *Client) VerifyTransfer(ctx context.Context, transferID string) (FlowResult, error) {
	if transferID == "" {
		return nil, errors.New("transfer id is required")
	}

	state := PaymentState{TransferID: transferID}

	var transfer Transfer
	if err := c.do(ctx, "verify_transfer", http.MethodGet, "/transfers/"+url.PathEscape(transferID), nil, requestOptions{}, &transfer); err != nil {
		return failedOrError(state, err)
	}
	state.Reference = transfer.Reference

	return transferResult(state, &transfer), nil
}

func transferResult(state PaymentState, transfer *Transfer) FlowResult {
	state.TransferID = transfer.ID
	state.Status = strings.ToLower(transfer.Status)
	state.Step = StepVerified

	if state.Status == TransferStatusFailed {
		state.Step = StepFailed
		return Failed{
			State: state,
			Error: &ErrorInfo{
				Code:        "TRANSFER_FAILED",
				Type:        "TRANSFER_FAILED",
				Message:     "transfer " + transfer.ID + " failed",
				Definition:  "The payout could not be completed",
				Category:    pkgerrors.CategoryPermanent,
				IsPermanent: true,
				userMessage: "The transfer could not be completed. Please contact support.",
			},
		}
	}
	return Succeeded{State: state}
}

func validateTransfer(req TransferRequest) []string {
	var errs []string
	if !req.Amount.IsPositive() {
		errs = append(errs, "Amount must be greater than 0")
	}
	if !currencyPattern.MatchString(req.SourceCurrency) {
		errs = append(errs, "Currency must be a 3-letter code (e.g., UGX)")
	}
	if req.DestinationCurrency != "" && !currencyPattern.MatchString(req.DestinationCurrency) {
		errs = append(errs, "Destination currency must be a 3-letter code")
	}
	if len(strings.TrimSpace(req.Reference)) < 3 {
		errs = append(errs, "Transaction reference must be at least 3 characters")
	}
	if req.RecipientID == "" && req.Recipient == nil {
		errs = append(errs, "Recipient is required")
	}
	return errs
}
