package flutterwave

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/kevin07696/flutterwave-gateway/pkg/errors"
)

func TestCardScenarioKey(t *testing.T) {
	key, err := CardScenarioKey("auth_avs", "approved")
	require.NoError(t, err)
	assert.Equal(t, "scenario:auth_avs&issuer:approved", key)

	key, err = CardScenarioKey("auth_3ds", "")
	require.NoError(t, err)
	assert.Equal(t, "scenario:auth_3ds", key)
}

func TestCardScenarioKey_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		auth   string
		issuer string
		field  string
	}{
		{"unknown auth", "auth_magic", "approved", "scenario"},
		{"unknown issuer", "auth_pin", "maybe", "issuer"},
		{"empty auth", "", "", "scenario"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := CardScenarioKey(tt.auth, tt.issuer)
			var ve *pkgerrors.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
			assert.NotEmpty(t, ve.Message)
		})
	}
}

func TestMobileMoneyAndTransferScenarios(t *testing.T) {
	mm, err := NewMobileMoneyScenario("auth_redirect")
	require.NoError(t, err)
	assert.Equal(t, "scenario:auth_redirect", mm.Key())

	tr, err := NewTransferScenario("insufficient_balance")
	require.NoError(t, err)
	assert.Equal(t, "scenario:insufficient_balance", tr.Key())

	_, err = NewMobileMoneyScenario("ussd")
	assert.Error(t, err)
	_, err = NewTransferScenario("teleport")
	assert.Error(t, err)
}

func TestScenarioNames_Sorted(t *testing.T) {
	names := ScenarioNames(CardScenarios)
	assert.Equal(t, []string{"auth_3ds", "auth_avs", "auth_pin", "auth_pin_3ds"}, names)
}
