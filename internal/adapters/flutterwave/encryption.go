package flutterwave

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	pkgerrors "github.com/kevin07696/flutterwave-gateway/pkg/errors"
)

// ErrEncryptionNotConfigured is wrapped by every encryption call made without a key
var ErrEncryptionNotConfigured = errors.New("card encryption key not configured")

const (
	nonceLength   = 12
	nonceAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
)

// CardData is raw card input. It must never be logged or persisted.
type CardData struct {
	CardNumber     string `json:"card_number"`
	CVV            string `json:"cvv"`
	ExpiryMonth    string `json:"expiry_month"`
	ExpiryYear     string `json:"expiry_year"`
	CardholderName string `json:"cardholder_name"`
}

// String redacts everything except the last four digits
func (c CardData) String() string {
	last4 := ""
	if n := len(c.CardNumber); n >= 4 {
		last4 = c.CardNumber[n-4:]
	}
	return fmt.Sprintf("CardData{number: ****%s}", last4)
}

// GoString keeps %#v from printing the raw fields
func (c CardData) GoString() string {
	return c.String()
}

// EncryptedCard is the card payload accepted by POST /payment-methods
type EncryptedCard struct {
	Nonce                string `json:"nonce"`
	EncryptedCardNumber  string `json:"encrypted_card_number"`
	EncryptedCVV         string `json:"encrypted_cvv"`
	EncryptedExpiryMonth string `json:"encrypted_expiry_month"`
	EncryptedExpiryYear  string `json:"encrypted_expiry_year"`
	CardholderName       string `json:"cardholder_name,omitempty"`
}

// Encryptor seals card fields with AES-GCM under the gateway-issued key
type Encryptor struct {
	aead   cipher.AEAD
	random io.Reader
}

// NewEncryptor decodes a base64 AES key. An empty key yields an unconfigured
// Encryptor whose calls fail with ErrEncryptionNotConfigured.
func NewEncryptor(encodedKey string) (*Encryptor, error) {
	e := &Encryptor{random: rand.Reader}

	encodedKey = strings.TrimSpace(encodedKey)
	if encodedKey == "" {
		return e, nil
	}

	key, err := base64.StdEncoding.DecodeString(encodedKey)
	if err != nil {
		return nil, pkgerrors.NewConfigurationError("encryption key is not valid base64", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, pkgerrors.NewConfigurationError("encryption key must be 16, 24 or 32 bytes", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, pkgerrors.NewConfigurationError("failed to initialise AES-GCM", err)
	}

	e.aead = aead
	return e, nil
}

// IsConfigured reports whether an encryption key is loaded
func (e *Encryptor) IsConfigured() bool {
	return e != nil && e.aead != nil
}

// EncryptCard encrypts number, CVV and expiry under one fresh nonce.
// The cardholder name is passed through in plaintext.
//
// The charge payload carries a single nonce for all card fields, so every
// field is sealed with the same key and nonce. Do not reuse this scheme for
// anything the gateway does not require it for.
func (e *Encryptor) EncryptCard(card CardData) (*EncryptedCard, error) {
	if !e.IsConfigured() {
		return nil, notConfigured()
	}

	nonce, err := GenerateNonce(e.random)
	if err != nil {
		return nil, pkgerrors.NewEncryptionError("failed to generate nonce", err)
	}

	fields := []struct {
		name  string
		value string
		dst   *string
	}{
		{"card_number", card.CardNumber, nil},
		{"cvv", card.CVV, nil},
		{"expiry_month", card.ExpiryMonth, nil},
		{"expiry_year", card.ExpiryYear, nil},
	}

	out := &EncryptedCard{Nonce: nonce, CardholderName: card.CardholderName}
	fields[0].dst = &out.EncryptedCardNumber
	fields[1].dst = &out.EncryptedCVV
	fields[2].dst = &out.EncryptedExpiryMonth
	fields[3].dst = &out.EncryptedExpiryYear

	for _, f := range fields {
		ct, err := e.Encrypt(f.value, nonce)
		if err != nil {
			return nil, pkgerrors.NewEncryptionError("failed to encrypt "+f.name, err)
		}
		*f.dst = ct
	}

	return out, nil
}

// Encrypt seals plaintext with the given 12-character nonce and returns base64 ciphertext
func (e *Encryptor) Encrypt(plaintext, nonce string) (string, error) {
	if !e.IsConfigured() {
		return "", notConfigured()
	}
	if plaintext == "" || nonce == "" {
		return "", pkgerrors.NewEncryptionError("plaintext and nonce are required", nil)
	}
	if len(nonce) != e.aead.NonceSize() {
		return "", pkgerrors.NewEncryptionError(fmt.Sprintf("nonce must be %d bytes", e.aead.NonceSize()), nil)
	}

	sealed := e.aead.Seal(nil, []byte(nonce), []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens base64 ciphertext produced by Encrypt with the same nonce
func (e *Encryptor) Decrypt(ciphertext, nonce string) (string, error) {
	if !e.IsConfigured() {
		return "", notConfigured()
	}
	if len(nonce) != e.aead.NonceSize() {
		return "", pkgerrors.NewEncryptionError(fmt.Sprintf("nonce must be %d bytes", e.aead.NonceSize()), nil)
	}

	sealed, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", pkgerrors.NewEncryptionError("ciphertext is not valid base64", err)
	}

	plain, err := e.aead.Open(nil, []byte(nonce), sealed, nil)
	if err != nil {
		return "", pkgerrors.NewEncryptionError("failed to decrypt ciphertext", err)
	}
	return string(plain), nil
}

// GenerateNonce returns a 12-character alphanumeric nonce read from r
func GenerateNonce(r io.Reader) (string, error) {
	// 248 is the largest multiple of len(nonceAlphabet) below 256; rejecting
	// bytes at or above it keeps the distribution uniform
	const limit = 256 - 256%len(nonceAlphabet)

	out := make([]byte, 0, nonceLength)
	buf := make([]byte, nonceLength*2)
	for len(out) < nonceLength {
		if _, err := io.ReadFull(r, buf); err != nil {
			return "", err
		}
		for _, b := range buf {
			if int(b) >= limit {
				continue
			}
			out = append(out, nonceAlphabet[int(b)%len(nonceAlphabet)])
			if len(out) == nonceLength {
				break
			}
		}
	}
	return string(out), nil
}

func notConfigured() error {
	return pkgerrors.NewConfigurationError("card encryption is not configured", ErrEncryptionNotConfigured)
}
