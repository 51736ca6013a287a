package flutterwave

import (
	"strconv"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/kevin07696/flutterwave-gateway/pkg/errors"
)

func TestValidateCardData_AcceptsKnownTestCard(t *testing.T) {
	ok, errs := ValidateCardData(validCard())
	assert.True(t, ok)
	assert.Empty(t, errs)
}

func TestValidateCardData_RejectsEachFieldIndependently(t *testing.T) {
	lastYear := strconv.Itoa(time.Now().Year() - 1)

	tests := []struct {
		name   string
		mutate func(*CardData)
		want   string
	}{
		{"luhn failure", func(c *CardData) { c.CardNumber = "4111111111111112" }, "Invalid card number"},
		{"too short", func(c *CardData) { c.CardNumber = "411111111111" }, "Invalid card number"},
		{"non digits", func(c *CardData) { c.CardNumber = "4111-1111-1111-1111" }, "Invalid card number"},
		{"two digit cvv", func(c *CardData) { c.CVV = "12" }, "Invalid CVV (must be 3-4 digits)"},
		{"month 13", func(c *CardData) { c.ExpiryMonth = "13" }, "Invalid expiry month (must be 1-12)"},
		{"past year", func(c *CardData) { c.ExpiryYear = lastYear }, "Invalid expiry year"},
		{"empty name", func(c *CardData) { c.CardholderName = "" }, "Invalid cardholder name"},
		{"blank name", func(c *CardData) { c.CardholderName = "  J " }, "Invalid cardholder name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			card := validCard()
			tt.mutate(&card)

			ok, errs := ValidateCardData(card)
			assert.False(t, ok)
			require.Len(t, errs, 1)
			assert.Equal(t, tt.want, errs[0])
		})
	}
}

func TestValidateCardData_ExpiryInCurrentYear(t *testing.T) {
	now := time.Date(2026, time.June, 15, 0, 0, 0, 0, time.UTC)

	card := validCard()
	card.ExpiryYear = "2026"
	card.ExpiryMonth = "05"
	ok, errs := validateCardDataAt(card, now)
	assert.False(t, ok)
	assert.Equal(t, []string{"Card has expired"}, errs)

	card.ExpiryMonth = "06"
	ok, _ = validateCardDataAt(card, now)
	assert.True(t, ok)

	card.ExpiryYear = "27"
	ok, _ = validateCardDataAt(card, now)
	assert.True(t, ok)
}

func TestValidateCardData_CollectsAllErrors(t *testing.T) {
	ok, errs := ValidateCardData(CardData{})
	assert.False(t, ok)
	assert.Len(t, errs, 5)
}

func TestValidatePaymentData(t *testing.T) {
	tests := []struct {
		name string
		data PaymentData
		want []string
	}{
		{
			name: "valid",
			data: PaymentData{Amount: decimal.NewFromInt(5000), Currency: "UGX", Reference: "order-1", CustomerEmail: "a@b.co"},
		},
		{
			name: "missing fields",
			data: PaymentData{},
			want: []string{"Amount is required", "Currency is required", "Tx_Ref is required"},
		},
		{
			name: "bad values",
			data: PaymentData{Amount: decimal.NewFromInt(-1), Currency: "UGXX", Reference: "ab", CustomerEmail: "nope"},
			want: []string{
				"Amount must be greater than 0",
				"Currency must be a 3-letter code (e.g., UGX)",
				"Transaction reference must be at least 3 characters",
				"Customer email must be valid",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, errs := ValidatePaymentData(tt.data)
			assert.Equal(t, len(tt.want) == 0, ok)
			assert.Equal(t, tt.want, errs)
		})
	}
}

func TestValidateMobileMoney(t *testing.T) {
	country, err := ValidateMobileMoney("+256", "Airtel", "700000000")
	require.NoError(t, err)
	assert.Equal(t, "UGX", country.Currency)
	assert.Equal(t, "East Africa", country.Region)

	_, err = ValidateMobileMoney("999", "mtn", "700000000")
	var ve *pkgerrors.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "Country 999 is not supported for mobile money payments", ve.Message)

	_, err = ValidateMobileMoney("254", "mtn", "700000000")
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "Network mtn is not supported in 254. Supported networks: airtel, mpesa", ve.Message)

	_, err = ValidateMobileMoney("254", "mpesa", "07-00")
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "phone_number", ve.Field)
}

func TestSupportedCountryCodes(t *testing.T) {
	codes := SupportedCountryCodes()
	assert.Len(t, codes, 10)
	assert.Equal(t, "221", codes[0])
	assert.Equal(t, "265", codes[len(codes)-1])
}

func TestNormalizeReference(t *testing.T) {
	assert.Equal(t, "order2024001a", NormalizeReference("order_2024-001 a"))
}
