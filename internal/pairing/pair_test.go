package pairing

import (
	"testing"

	"github.com/jaydenbeard/wasubstrate/internal/metrics"
	"github.com/jaydenbeard/wasubstrate/internal/wacrypto"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildPairSuccessStanza(t *testing.T, advSecret []byte, accountKey wacrypto.KeyPair, responderIdentityPub [33]byte) Node {
	t.Helper()
	details := []byte("opaque-device-details-blob")

	accountSigMsg := concatBytes(accountSigPrefix, details, responderIdentityPub[:])
	accountSig, err := wacrypto.Sign(accountKey.Private, accountSigMsg)
	require.NoError(t, err)

	inner := ADVSignedDeviceIdentity{
		Details:             details,
		AccountSignatureKey: wacrypto.AsSignalPub(accountKey.Public)[:],
		AccountSignature:    accountSig,
	}
	innerEncoded := EncodeADVSignedDeviceIdentity(inner)

	hmacTag := wacrypto.HMACSHA256(advSecret, concatBytes(hmacPrefixDefault, innerEncoded))
	var hmacEnvelope ADVSignedDeviceIdentityHMAC
	hmacEnvelope.Details = innerEncoded
	copy(hmacEnvelope.HMAC[:], hmacTag)
	hmacEnvelope.AccountType = AccountTypeDefault
	envelopeEncoded := EncodeADVSignedDeviceIdentityHMAC(hmacEnvelope)

	return Node{
		Tag:   "iq",
		Attrs: map[string]string{"id": "pair-1"},
		Children: []Node{
			{Tag: "device-identity", Attrs: map[string]string{"key-index": "0"}, Content: envelopeEncoded},
			{Tag: "device", Attrs: map[string]string{"jid": "12025551234:0@s.whatsapp.net", "lid": "98765@lid"}},
			{Tag: "platform", Attrs: map[string]string{"name": "smba"}},
		},
	}
}

func TestConfigureSuccessfulPairingHappyPath(t *testing.T) {
	advSecret := make([]byte, 32)
	accountKey, err := wacrypto.GenerateKeyPair()
	require.NoError(t, err)
	responderIdentity, err := wacrypto.GenerateKeyPair()
	require.NoError(t, err)
	responderPub := wacrypto.AsSignalPub(responderIdentity.Public)

	stanza := buildPairSuccessStanza(t, advSecret, accountKey, responderPub)

	delta, reply, err := ConfigureSuccessfulPairing(stanza, PairingCreds{
		AdvSecretKey:      advSecret,
		SignedIdentityKey: responderIdentity,
	})
	require.NoError(t, err)

	assert.True(t, delta.Registered)
	assert.Equal(t, "12025551234:0@s.whatsapp.net", delta.Me.ID)
	assert.Equal(t, "98765@lid", delta.Me.LID)
	assert.Equal(t, "smba", delta.Platform)
	require.Len(t, delta.SignalIdentities, 1)

	assert.Equal(t, "iq", reply.Tag)
	signNode, ok := reply.Child("pair-device-sign")
	require.True(t, ok)
	identityNode, ok := signNode.Child("device-identity")
	require.True(t, ok)

	replyDecoded, err := DecodeADVSignedDeviceIdentity(identityNode.Content)
	require.NoError(t, err)
	assert.True(t, replyDecoded.HasDeviceSignature)
	assert.Empty(t, replyDecoded.AccountSignatureKey)
}

func TestConfigureSuccessfulPairingRecordsMetrics(t *testing.T) {
	advSecret := make([]byte, 32)
	accountKey, err := wacrypto.GenerateKeyPair()
	require.NoError(t, err)
	responderIdentity, err := wacrypto.GenerateKeyPair()
	require.NoError(t, err)
	responderPub := wacrypto.AsSignalPub(responderIdentity.Public)
	stanza := buildPairSuccessStanza(t, advSecret, accountKey, responderPub)

	okBefore := testutil.ToFloat64(metrics.PairingAttemptsTotal.WithLabelValues("ok"))
	_, _, err = ConfigureSuccessfulPairing(stanza, PairingCreds{
		AdvSecretKey:      advSecret,
		SignedIdentityKey: responderIdentity,
	})
	require.NoError(t, err)
	assert.Equal(t, okBefore+1, testutil.ToFloat64(metrics.PairingAttemptsTotal.WithLabelValues("ok")))

	badHMACBefore := testutil.ToFloat64(metrics.PairingAttemptsTotal.WithLabelValues(BadHMAC.String()))
	wrongSecret := make([]byte, 32)
	wrongSecret[0] = 0xFF
	_, _, err = ConfigureSuccessfulPairing(stanza, PairingCreds{
		AdvSecretKey:      wrongSecret,
		SignedIdentityKey: responderIdentity,
	})
	require.Error(t, err)
	assert.Equal(t, badHMACBefore+1, testutil.ToFloat64(metrics.PairingAttemptsTotal.WithLabelValues(BadHMAC.String())))
}

func TestConfigureSuccessfulPairingBadHMAC(t *testing.T) {
	advSecret := make([]byte, 32)
	accountKey, err := wacrypto.GenerateKeyPair()
	require.NoError(t, err)
	responderIdentity, err := wacrypto.GenerateKeyPair()
	require.NoError(t, err)
	responderPub := wacrypto.AsSignalPub(responderIdentity.Public)

	stanza := buildPairSuccessStanza(t, advSecret, accountKey, responderPub)

	wrongSecret := make([]byte, 32)
	wrongSecret[0] = 0xFF
	_, _, err = ConfigureSuccessfulPairing(stanza, PairingCreds{
		AdvSecretKey:      wrongSecret,
		SignedIdentityKey: responderIdentity,
	})
	require.Error(t, err)
	var pairErr *PairError
	require.ErrorAs(t, err, &pairErr)
	assert.Equal(t, BadHMAC, pairErr.Kind)
}

func TestConfigureSuccessfulPairingMissingChild(t *testing.T) {
	_, _, err := ConfigureSuccessfulPairing(Node{Tag: "iq"}, PairingCreds{})
	require.Error(t, err)
	var pairErr *PairError
	require.ErrorAs(t, err, &pairErr)
	assert.Equal(t, MalformedNode, pairErr.Kind)
}
