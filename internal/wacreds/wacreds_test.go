package wacreds

import (
	"encoding/base64"
	"testing"

	"github.com/jaydenbeard/wasubstrate/internal/wacrypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitAuthCredsInvariants(t *testing.T) {
	creds, err := InitAuthCreds()
	require.NoError(t, err)

	assert.NotEqual(t, [32]byte{}, creds.SignedIdentityKey.Public)
	assert.NotEqual(t, [32]byte{}, creds.NoiseKey.Public)
	assert.Equal(t, uint32(1), creds.SignedPreKey.KeyID)
	assert.Equal(t, uint32(1), creds.NextPreKeyID)
	assert.Len(t, creds.AdvSecretKey, 32)
	assert.NotZero(t, creds.RegistrationID)
	assert.LessOrEqual(t, creds.RegistrationID, uint16(0x3FFF))

	sigPub := wacrypto.AsSignalPub(creds.SignedIdentityKey.Public)
	err = wacrypto.Verify(creds.SignedIdentityKey.Public, sigPub[:], creds.SignedPreKey.Signature)
	// The signature is over the signed pre-key's public key, not the
	// identity key — verifying against the wrong message must fail.
	assert.Error(t, err)

	spkPub := wacrypto.AsSignalPub(creds.SignedPreKey.KeyPair.Public)
	assert.NoError(t, wacrypto.Verify(creds.SignedIdentityKey.Public, spkPub[:], creds.SignedPreKey.Signature))
}

func TestInitAuthCredsFreshEveryCall(t *testing.T) {
	a, err := InitAuthCreds()
	require.NoError(t, err)
	b, err := InitAuthCreds()
	require.NoError(t, err)
	assert.NotEqual(t, a.SignedIdentityKey.Private, b.SignedIdentityKey.Private)
	assert.NotEqual(t, a.AdvSecretKey, b.AdvSecretKey)
}

func TestUpdateCredsAfterPairing(t *testing.T) {
	creds, err := InitAuthCreds()
	require.NoError(t, err)

	name := "My Phone"
	updated := UpdateCredsAfterPairing(creds, "12025551234.0:1@s.whatsapp.net", &name)
	assert.Equal(t, "12025551234.0:1@s.whatsapp.net", updated.Me.ID)
	assert.Equal(t, "My Phone", updated.Me.Name)
}

func TestAdvSecretKeyBase64RoundTrips(t *testing.T) {
	creds, err := InitAuthCreds()
	require.NoError(t, err)
	encoded := creds.AdvSecretKeyBase64()
	assert.NotEmpty(t, encoded)

	decoded, err := base64.StdEncoding.DecodeString(encoded)
	require.NoError(t, err)
	assert.Equal(t, creds.AdvSecretKey, decoded)
}
