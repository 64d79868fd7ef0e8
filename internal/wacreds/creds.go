// Package wacreds constructs and transforms the long-lived credential set
// an instance carries: identity/noise/pairing key pairs, the active signed
// pre-key, and the fields pairing fills in. No I/O; callers persist what
// this package returns.
package wacreds

import (
	"crypto/rand"
	"encoding/base64"
	"io"

	"github.com/jaydenbeard/wasubstrate/internal/wacrypto"
)

// SignedPreKey is a medium-lived pre-key signed by the identity key.
type SignedPreKey struct {
	KeyID     uint32
	KeyPair   wacrypto.KeyPair
	Signature [64]byte
}

// PreKey is a one-time pre-key consumed by exactly one pkmsg.
type PreKey struct {
	KeyID  uint32
	Pair   wacrypto.KeyPair
	Used   bool
	UsedAt *int64
}

// AccountDetails carries the pair-success account fields, once set.
type AccountDetails struct {
	Details            []byte
	AccountSignatureKey []byte
	AccountSignature    []byte
	DeviceSignature     []byte
}

// Me identifies the paired account.
type Me struct {
	ID   string
	Name string
	LID  string
}

// SignalIdentity is one entry of creds.signalIdentities, populated by
// pairing (spec §4.5 step 9).
type SignalIdentity struct {
	Name          string
	DeviceID      uint32
	IdentifierKey []byte
}

// AccountSettings holds the small mutable settings blob carried on creds.
type AccountSettings struct {
	UnarchiveChats bool
}

// Credentials is the full per-instance credential set (spec §3).
type Credentials struct {
	SignedIdentityKey wacrypto.KeyPair
	NoiseKey          wacrypto.KeyPair
	PairingEphemeral  wacrypto.KeyPair
	SignedPreKey      SignedPreKey
	RegistrationID    uint16
	AdvSecretKey      []byte // 32 random bytes, stored base64-encoded at rest

	NextPreKeyID            uint32
	FirstUnuploadedPreKeyID uint32
	AccountSyncCounter      uint32
	AccountSettings         AccountSettings
	Registered              bool

	Account          *AccountDetails
	Me               *Me
	Platform         string
	SignalIdentities []SignalIdentity
	CompanionKey     []byte // opaque passthrough, never interpreted here (spec §9)
}

// InitAuthCreds builds a fresh credential set for a brand-new instance,
// per spec §4.2. registered is always false until a successful pairing.
func InitAuthCreds() (Credentials, error) {
	identity, err := wacrypto.GenerateKeyPair()
	if err != nil {
		return Credentials{}, err
	}
	noise, err := wacrypto.GenerateKeyPair()
	if err != nil {
		return Credentials{}, err
	}
	pairingEphemeral, err := wacrypto.GenerateKeyPair()
	if err != nil {
		return Credentials{}, err
	}

	signedPreKeyPair, err := wacrypto.GenerateKeyPair()
	if err != nil {
		return Credentials{}, err
	}
	sig, err := wacrypto.Sign(identity.Private, wacrypto.AsSignalPub(signedPreKeyPair.Public)[:])
	if err != nil {
		return Credentials{}, err
	}

	regID, err := freshRegistrationID()
	if err != nil {
		return Credentials{}, err
	}

	advSecret := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, advSecret); err != nil {
		return Credentials{}, err
	}

	return Credentials{
		SignedIdentityKey: identity,
		NoiseKey:          noise,
		PairingEphemeral:  pairingEphemeral,
		SignedPreKey: SignedPreKey{
			KeyID:     1,
			KeyPair:   signedPreKeyPair,
			Signature: sig,
		},
		RegistrationID:          regID,
		AdvSecretKey:            advSecret,
		NextPreKeyID:            1,
		FirstUnuploadedPreKeyID: 1,
		AccountSyncCounter:      0,
		AccountSettings:         AccountSettings{UnarchiveChats: false},
		Registered:              false,
	}, nil
}

// freshRegistrationID draws a 14-bit id from two random bytes masked with
// 0x3FFF, saturated to at least 1 (spec §4.2, invariant §3.3: 1..16383).
func freshRegistrationID() (uint16, error) {
	var b [2]byte
	if _, err := io.ReadFull(rand.Reader, b[:]); err != nil {
		return 0, err
	}
	id := (uint16(b[0])<<8 | uint16(b[1])) & 0x3FFF
	if id == 0 {
		id = 1
	}
	return id, nil
}

// UpdateCredsAfterPairing applies the minor fields pairing sets directly
// on creds (the account/me/platform/signalIdentities fields themselves are
// supplied by internal/pairing's CredsDelta; this helper covers the
// simpler "register this device" path spec §4.2 also names).
func UpdateCredsAfterPairing(creds Credentials, jid string, displayName *string) Credentials {
	creds.Registered = true
	me := Me{ID: jid}
	if displayName != nil {
		me.Name = *displayName
	}
	creds.Me = &me
	if creds.Platform == "" {
		creds.Platform = "web"
	}
	return creds
}

// AdvSecretKeyBase64 returns the base64 representation stored at rest.
func (c Credentials) AdvSecretKeyBase64() string {
	return base64.StdEncoding.EncodeToString(c.AdvSecretKey)
}
