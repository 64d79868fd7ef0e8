// Package pairing implements the pair-success algorithm (spec §4.5): it
// verifies the ADV HMAC and account signature, generates this device's
// signature over the account's device details, and produces both a
// credentials delta and the reply node the caller sends back. It performs
// no I/O — grounded on the literal handlePair/handlePairSuccess algorithm
// in the whatsmeow example, restructured to be a pure function.
package pairing

import (
	"crypto/hmac"
	"errors"

	"github.com/jaydenbeard/wasubstrate/internal/metrics"
	"github.com/jaydenbeard/wasubstrate/internal/wacreds"
	"github.com/jaydenbeard/wasubstrate/internal/wacrypto"
)

var (
	hmacPrefixHosted    = []byte{6, 5}
	hmacPrefixDefault   = []byte{}
	devicePrefixHosted  = []byte{6, 6}
	devicePrefixDefault = []byte{6, 1}
	accountSigPrefix    = []byte{6, 0}
)

// PairingCreds is the subset of credentials C5 needs (spec §4.5 inputs).
type PairingCreds struct {
	AdvSecretKey      []byte
	SignedIdentityKey wacrypto.KeyPair
}

// CredsDelta is the set of credential fields pairing sets (spec §4.5 step
// 9); the caller merges this into its Credentials and persists it.
type CredsDelta struct {
	Registered       bool
	Account          wacreds.AccountDetails
	Me               wacreds.Me
	Platform         string
	SignalIdentities []wacreds.SignalIdentity
}

// ConfigureSuccessfulPairing runs the full pair-success algorithm over a
// parsed pair-success stanza and returns the credentials delta plus the
// reply node to send. No I/O; the caller persists delta and transmits
// reply.
func ConfigureSuccessfulPairing(stanza Node, creds PairingCreds) (CredsDelta, Node, error) {
	delta, reply, err := configureSuccessfulPairing(stanza, creds)
	metrics.RecordPairingAttempt(pairingResultLabel(err))
	return delta, reply, err
}

func pairingResultLabel(err error) string {
	if err == nil {
		return "ok"
	}
	var perr *PairError
	if errors.As(err, &perr) {
		return perr.Kind.String()
	}
	return "error"
}

func configureSuccessfulPairing(stanza Node, creds PairingCreds) (CredsDelta, Node, error) {
	deviceIdentityNode, ok := stanza.Child("device-identity")
	if !ok {
		return CredsDelta{}, Node{}, newPairErr(MalformedNode, "pair-success missing device-identity child")
	}
	deviceNode, ok := stanza.Child("device")
	if !ok {
		return CredsDelta{}, Node{}, newPairErr(MalformedNode, "pair-success missing device child")
	}
	platformNode, hasPlatform := stanza.Child("platform")
	bizNode, hasBiz := stanza.Child("biz")

	hmacEnvelope, err := DecodeADVSignedDeviceIdentityHMAC(deviceIdentityNode.Content)
	if err != nil {
		return CredsDelta{}, Node{}, newPairErr(MalformedNode, "decode device-identity content: %v", err)
	}
	isHosted := hmacEnvelope.AccountType == AccountTypeHosted

	prefix := hmacPrefixDefault
	if isHosted {
		prefix = hmacPrefixHosted
	}
	expected := wacrypto.HMACSHA256(creds.AdvSecretKey, concatBytes(prefix, hmacEnvelope.Details))
	if !hmac.Equal(expected, hmacEnvelope.HMAC[:]) {
		return CredsDelta{}, Node{}, newPairErr(BadHMAC, "account HMAC mismatch")
	}

	signedIdentity, err := DecodeADVSignedDeviceIdentity(hmacEnvelope.Details)
	if err != nil {
		return CredsDelta{}, Node{}, newPairErr(MalformedNode, "decode ADVSignedDeviceIdentity: %v", err)
	}

	identityPub33 := wacrypto.AsSignalPub(creds.SignedIdentityKey.Public)
	accountSigMsg := concatBytes(accountSigPrefix, signedIdentity.Details, identityPub33[:])
	accountSigKey32, err := wacrypto.StripSignalPub(signedIdentity.AccountSignatureKey)
	if err != nil {
		return CredsDelta{}, Node{}, newPairErr(BadAccountSignature, "malformed account signature key: %v", err)
	}
	if err := wacrypto.Verify(accountSigKey32, accountSigMsg, signedIdentity.AccountSignature); err != nil {
		return CredsDelta{}, Node{}, newPairErr(BadAccountSignature, "account signature verification failed: %v", err)
	}

	devicePrefix := devicePrefixDefault
	if isHosted {
		devicePrefix = devicePrefixHosted
	}
	deviceSigMsg := concatBytes(devicePrefix, signedIdentity.Details, identityPub33[:], signedIdentity.AccountSignatureKey)
	deviceSignature, err := wacrypto.Sign(creds.SignedIdentityKey.Private, deviceSigMsg)
	if err != nil {
		return CredsDelta{}, Node{}, err
	}

	reply := ADVSignedDeviceIdentity{
		Details:            signedIdentity.Details,
		AccountSignatureKey: nil, // cleared in the reply per spec §4.5 step 7
		AccountSignature:    signedIdentity.AccountSignature,
		DeviceSignature:     deviceSignature,
		HasDeviceSignature:  true,
	}
	replyContent := EncodeADVSignedDeviceIdentity(reply)

	keyIndex, _ := deviceIdentityNode.Attr("key-index")
	msgID, _ := stanza.Attr("id")

	replyNode := Node{
		Tag: "iq",
		Attrs: map[string]string{
			"type": "result",
			"to":   "s.whatsapp.net",
			"id":   msgID,
		},
		Children: []Node{
			{
				Tag: "pair-device-sign",
				Children: []Node{
					{
						Tag:     "device-identity",
						Attrs:   map[string]string{"key-index": keyIndex},
						Content: replyContent,
					},
				},
			},
		},
	}

	jid, _ := deviceNode.Attr("jid")
	lid, _ := deviceNode.Attr("lid")
	var bizName string
	if hasBiz {
		bizName, _ = bizNode.Attr("name")
	}
	var platform string
	if hasPlatform {
		platform, _ = platformNode.Attr("name")
	}

	delta := CredsDelta{
		Registered: true,
		Account: wacreds.AccountDetails{
			Details:             signedIdentity.Details,
			AccountSignatureKey: signedIdentity.AccountSignatureKey,
			AccountSignature:    signedIdentity.AccountSignature[:],
			DeviceSignature:     deviceSignature[:],
		},
		Me: wacreds.Me{
			ID:   jid,
			Name: bizName,
			LID:  lid,
		},
		Platform: platform,
		SignalIdentities: []wacreds.SignalIdentity{
			{
				Name:          lid,
				DeviceID:      0,
				IdentifierKey: signedIdentity.AccountSignatureKey,
			},
		},
	}
	return delta, replyNode, nil
}

func concatBytes(parts ...[]byte) []byte {
	var total int
	for _, p := range parts {
		total += len(p)
	}
	out := make([]byte, 0, total)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}
