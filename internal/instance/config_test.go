package instance

import (
	"testing"

	"github.com/jaydenbeard/wasubstrate/internal/wacreds"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateCredsAcceptsFreshCreds(t *testing.T) {
	creds, err := wacreds.InitAuthCreds()
	require.NoError(t, err)
	assert.NoError(t, ValidateCreds(creds))
}

func TestValidateCredsRejectsZeroRegistrationID(t *testing.T) {
	creds, err := wacreds.InitAuthCreds()
	require.NoError(t, err)
	creds.RegistrationID = 0

	err = ValidateCreds(creds)
	require.Error(t, err)
	var cerr *ConfigError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, InvalidRegistrationId, cerr.Kind)
}

func TestValidateCredsRejectsOversizeRegistrationID(t *testing.T) {
	creds, err := wacreds.InitAuthCreds()
	require.NoError(t, err)
	creds.RegistrationID = 0x4000

	err = ValidateCreds(creds)
	require.Error(t, err)
	var cerr *ConfigError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, InvalidRegistrationId, cerr.Kind)
}

func TestValidateCredsRejectsShortAdvSecret(t *testing.T) {
	creds, err := wacreds.InitAuthCreds()
	require.NoError(t, err)
	creds.AdvSecretKey = creds.AdvSecretKey[:16]

	err = ValidateCreds(creds)
	require.Error(t, err)
	var cerr *ConfigError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, KeySizeMismatch, cerr.Kind)
}

func TestDefaultConfigValues(t *testing.T) {
	cfg := DefaultConfig("/tmp/auth")
	assert.Equal(t, "/tmp/auth", cfg.AuthDir)
	assert.Equal(t, uint8(3), cfg.ReconnectAttempts)
	assert.Equal(t, uint8(5), cfg.BatchSize)
}
