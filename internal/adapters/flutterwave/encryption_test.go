package flutterwave

import (
	"bytes"
	"encoding/base64"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/kevin07696/flutterwave-gateway/pkg/errors"
)

func TestEncryptor_RoundTrip(t *testing.T) {
	enc, err := NewEncryptor(testEncryptionKey)
	require.NoError(t, err)
	require.True(t, enc.IsConfigured())

	card := validCard()
	encrypted, err := enc.EncryptCard(card)
	require.NoError(t, err)

	assert.Len(t, encrypted.Nonce, 12)
	assert.Regexp(t, regexp.MustCompile(`^[A-Za-z0-9]{12}$`), encrypted.Nonce)
	assert.Equal(t, "John Doe", encrypted.CardholderName)
	assert.NotContains(t, encrypted.EncryptedCardNumber, card.CardNumber)

	for plain, sealed := range map[string]string{
		card.CardNumber:  encrypted.EncryptedCardNumber,
		card.CVV:         encrypted.EncryptedCVV,
		card.ExpiryMonth: encrypted.EncryptedExpiryMonth,
		card.ExpiryYear:  encrypted.EncryptedExpiryYear,
	} {
		_, err := base64.StdEncoding.DecodeString(sealed)
		require.NoError(t, err)

		opened, err := enc.Decrypt(sealed, encrypted.Nonce)
		require.NoError(t, err)
		assert.Equal(t, plain, opened)
	}
}

func TestEncryptor_FreshNoncePerCall(t *testing.T) {
	enc, err := NewEncryptor(testEncryptionKey)
	require.NoError(t, err)

	a, err := enc.EncryptCard(validCard())
	require.NoError(t, err)
	b, err := enc.EncryptCard(validCard())
	require.NoError(t, err)

	assert.NotEqual(t, a.Nonce, b.Nonce)
	assert.NotEqual(t, a.EncryptedCardNumber, b.EncryptedCardNumber)
}

func TestEncryptor_NotConfigured(t *testing.T) {
	enc, err := NewEncryptor("")
	require.NoError(t, err)
	assert.False(t, enc.IsConfigured())

	_, err = enc.EncryptCard(validCard())
	require.ErrorIs(t, err, ErrEncryptionNotConfigured)

	_, err = enc.Encrypt("4111111111111111", "abcdefghijkl")
	require.ErrorIs(t, err, ErrEncryptionNotConfigured)
}

func TestNewEncryptor_InvalidKeys(t *testing.T) {
	tests := []struct {
		name string
		key  string
	}{
		{"not base64", "%%%"},
		{"wrong length", base64.StdEncoding.EncodeToString([]byte("short"))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewEncryptor(tt.key)
			category, ok := pkgerrors.CategoryOf(err)
			require.True(t, ok)
			assert.Equal(t, pkgerrors.CategoryConfiguration, category)
		})
	}
}

func TestEncryptor_RejectsBadInput(t *testing.T) {
	enc, err := NewEncryptor(testEncryptionKey)
	require.NoError(t, err)

	_, err = enc.Encrypt("", "abcdefghijkl")
	assert.Error(t, err)
	_, err = enc.Encrypt("4111", "short")
	assert.Error(t, err)

	sealed, err := enc.Encrypt("4111", "abcdefghijkl")
	require.NoError(t, err)
	_, err = enc.Decrypt(sealed, "lkjihgfedcba")
	category, ok := pkgerrors.CategoryOf(err)
	require.True(t, ok)
	assert.Equal(t, pkgerrors.CategoryEncryption, category)
}

func TestGenerateNonce_Alphabet(t *testing.T) {
	// bytes >= 248 are skipped, the rest map onto the alphabet
	src := bytes.NewReader(append(bytes.Repeat([]byte{255}, 4), bytes.Repeat([]byte{0, 61, 62}, 20)...))
	nonce, err := GenerateNonce(src)
	require.NoError(t, err)
	assert.Equal(t, "A9AA9AA9AA9A", nonce)
}

func TestCardData_StringRedacts(t *testing.T) {
	card := validCard()
	assert.Equal(t, "CardData{number: ****1111}", card.String())
	assert.NotContains(t, card.GoString(), "123")
}
