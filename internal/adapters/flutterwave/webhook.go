package flutterwave

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
)

const (
	HeaderWebhookSignature = "flutterwave-signature"
	HeaderVerifHash        = "verif-hash"
)

// Webhook event types
const (
	EventChargeCompleted   = "charge.completed"
	EventChargeFailed      = "charge.failed"
	EventTransferCompleted = "transfer.completed"
)

var (
	// ErrWebhookSecretMissing means no secret hash is configured; webhooks are rejected
	ErrWebhookSecretMissing = errors.New("webhook secret hash not configured")
	// ErrInvalidWebhookSignature means no signature header matched the body
	ErrInvalidWebhookSignature = errors.New("invalid webhook signature")
)

// VerifyWebhookSignature checks the body against the configured secret hash.
// It accepts an HMAC-SHA256 of the raw body (base64 or hex) in either
// signature header, or the secret hash itself in verif-hash.
func VerifyWebhookSignature(secretHash string, body []byte, headers http.Header) error {
	if secretHash == "" {
		return ErrWebhookSecretMissing
	}

	mac := hmac.New(sha256.New, []byte(secretHash))
	mac.Write(body)
	sum := mac.Sum(nil)

	candidates := []string{headers.Get(HeaderWebhookSignature), headers.Get(HeaderVerifHash)}
	for _, sig := range candidates {
		sig = strings.TrimSpace(sig)
		if sig == "" {
			continue
		}
		if decoded, err := base64.StdEncoding.DecodeString(sig); err == nil && hmac.Equal(decoded, sum) {
			return nil
		}
		if decoded, err := hex.DecodeString(sig); err == nil && hmac.Equal(decoded, sum) {
			return nil
		}
	}

	if vh := headers.Get(HeaderVerifHash); vh != "" &&
		subtle.ConstantTimeCompare([]byte(vh), []byte(secretHash)) == 1 {
		return nil
	}

	return ErrInvalidWebhookSignature
}

// SignWebhookBody returns the base64 HMAC-SHA256 the gateway sends for body
func SignWebhookBody(secretHash string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secretHash))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// WebhookPayload is the inbound event body
type WebhookPayload struct {
	ID    string      `json:"id,omitempty"`
	Event string      `json:"event"`
	Type  string      `json:"type,omitempty"`
	Data  WebhookData `json:"data"`
}

// WebhookData is the charge or transfer the event is about
type WebhookData struct {
	ID                string          `json:"id"`
	TxRef             string          `json:"tx_ref"`
	Reference         string          `json:"reference"`
	Status            string          `json:"status"`
	Amount            json.Number     `json:"amount"`
	Currency          string          `json:"currency"`
	ProcessorResponse json.RawMessage `json:"processor_response,omitempty"`
}

// EventType prefers "event" and falls back to the v4 "type" field
func (p WebhookPayload) EventType() string {
	if p.Event != "" {
		return p.Event
	}
	return p.Type
}

// TransactionReference prefers tx_ref and falls back to reference
func (d WebhookData) TransactionReference() string {
	if d.TxRef != "" {
		return d.TxRef
	}
	return d.Reference
}

// FailureReason reads processor_response as either a string or {type}
func (d WebhookData) FailureReason() string {
	if len(d.ProcessorResponse) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(d.ProcessorResponse, &s); err == nil {
		return s
	}
	var pr ProcessorResponse
	if err := json.Unmarshal(d.ProcessorResponse, &pr); err == nil {
		return pr.Type
	}
	return ""
}

// ParseWebhook decodes a verified webhook body
func ParseWebhook(body []byte) (*WebhookPayload, error) {
	var p WebhookPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, err
	}
	if p.EventType() == "" {
		return nil, errors.New("webhook event type is missing")
	}
	return &p, nil
}
