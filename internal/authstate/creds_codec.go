package authstate

import (
	"encoding/base64"
	"encoding/json"

	"github.com/jaydenbeard/wasubstrate/internal/wacreds"
	"github.com/jaydenbeard/wasubstrate/internal/wacrypto"
)

// credsJSON mirrors wacreds.Credentials with every key pair and byte slice
// base64-encoded, matching the teacher's "store key pairs as base64 JSON
// strings" convention (spec §4.3).
type credsJSON struct {
	SignedIdentityKey keyPairJSON `json:"signedIdentityKey"`
	NoiseKey          keyPairJSON `json:"noiseKey"`
	PairingEphemeral  keyPairJSON `json:"pairingEphemeralKeyPair"`
	SignedPreKey      struct {
		KeyID     uint32      `json:"keyId"`
		KeyPair   keyPairJSON `json:"keyPair"`
		Signature string      `json:"signature"`
	} `json:"signedPreKey"`
	RegistrationID          uint16 `json:"registrationId"`
	AdvSecretKey            string `json:"advSecretKey"`
	NextPreKeyID            uint32 `json:"nextPreKeyId"`
	FirstUnuploadedPreKeyID uint32 `json:"firstUnuploadedPreKeyId"`
	AccountSyncCounter      uint32 `json:"accountSyncCounter"`
	AccountSettings         struct {
		UnarchiveChats bool `json:"unarchiveChats"`
	} `json:"accountSettings"`
	Registered       bool                 `json:"registered"`
	Account          *accountJSON         `json:"account,omitempty"`
	Me               *wacreds.Me          `json:"me,omitempty"`
	Platform         string               `json:"platform,omitempty"`
	SignalIdentities []signalIdentityJSON `json:"signalIdentities,omitempty"`
	CompanionKey     string               `json:"companionKey,omitempty"`
}

type keyPairJSON struct {
	Private string `json:"private"`
	Public  string `json:"public"`
}

type accountJSON struct {
	Details             string `json:"details"`
	AccountSignatureKey string `json:"accountSignatureKey"`
	AccountSignature    string `json:"accountSignature"`
	DeviceSignature     string `json:"deviceSignature"`
}

type signalIdentityJSON struct {
	Name          string `json:"name"`
	DeviceID      uint32 `json:"deviceId"`
	IdentifierKey string `json:"identifierKey"`
}

func b64(b []byte) string { return base64.StdEncoding.EncodeToString(b) }

func unb64(s string) ([]byte, error) { return base64.StdEncoding.DecodeString(s) }

func keyPairToJSON(kp wacrypto.KeyPair) keyPairJSON {
	return keyPairJSON{Private: b64(kp.Private[:]), Public: b64(kp.Public[:])}
}

func keyPairFromJSON(j keyPairJSON) (wacrypto.KeyPair, error) {
	var kp wacrypto.KeyPair
	priv, err := unb64(j.Private)
	if err != nil {
		return kp, err
	}
	pub, err := unb64(j.Public)
	if err != nil {
		return kp, err
	}
	copy(kp.Private[:], priv)
	copy(kp.Public[:], pub)
	return kp, nil
}

// EncodeCredentials renders creds as the base64-JSON blob persisted in the
// credentials.creds_json column.
func EncodeCredentials(c wacreds.Credentials) ([]byte, error) {
	j := credsJSON{
		SignedIdentityKey:       keyPairToJSON(c.SignedIdentityKey),
		NoiseKey:                keyPairToJSON(c.NoiseKey),
		PairingEphemeral:        keyPairToJSON(c.PairingEphemeral),
		RegistrationID:          c.RegistrationID,
		AdvSecretKey:            b64(c.AdvSecretKey),
		NextPreKeyID:            c.NextPreKeyID,
		FirstUnuploadedPreKeyID: c.FirstUnuploadedPreKeyID,
		AccountSyncCounter:      c.AccountSyncCounter,
		Registered:              c.Registered,
		Me:                      c.Me,
		Platform:                c.Platform,
		CompanionKey:            b64(c.CompanionKey),
	}
	j.SignedPreKey.KeyID = c.SignedPreKey.KeyID
	j.SignedPreKey.KeyPair = keyPairToJSON(c.SignedPreKey.KeyPair)
	j.SignedPreKey.Signature = b64(c.SignedPreKey.Signature[:])
	j.AccountSettings.UnarchiveChats = c.AccountSettings.UnarchiveChats

	if c.Account != nil {
		j.Account = &accountJSON{
			Details:             b64(c.Account.Details),
			AccountSignatureKey: b64(c.Account.AccountSignatureKey),
			AccountSignature:    b64(c.Account.AccountSignature),
			DeviceSignature:     b64(c.Account.DeviceSignature),
		}
	}
	for _, si := range c.SignalIdentities {
		j.SignalIdentities = append(j.SignalIdentities, signalIdentityJSON{
			Name:          si.Name,
			DeviceID:      si.DeviceID,
			IdentifierKey: b64(si.IdentifierKey),
		})
	}
	return json.Marshal(j)
}

// DecodeCredentials reverses EncodeCredentials. PairingEphemeral is
// regenerated by the caller on cold start per spec §8 "round-trip modulo
// pairingEphemeralKeyPair"; here it is decoded as-stored since authstate
// itself has no policy about regeneration timing.
func DecodeCredentials(data []byte) (wacreds.Credentials, error) {
	var j credsJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return wacreds.Credentials{}, err
	}
	var c wacreds.Credentials
	var err error
	if c.SignedIdentityKey, err = keyPairFromJSON(j.SignedIdentityKey); err != nil {
		return c, err
	}
	if c.NoiseKey, err = keyPairFromJSON(j.NoiseKey); err != nil {
		return c, err
	}
	if c.PairingEphemeral, err = keyPairFromJSON(j.PairingEphemeral); err != nil {
		return c, err
	}
	spkPair, err := keyPairFromJSON(j.SignedPreKey.KeyPair)
	if err != nil {
		return c, err
	}
	sig, err := unb64(j.SignedPreKey.Signature)
	if err != nil {
		return c, err
	}
	c.SignedPreKey.KeyID = j.SignedPreKey.KeyID
	c.SignedPreKey.KeyPair = spkPair
	copy(c.SignedPreKey.Signature[:], sig)

	c.RegistrationID = j.RegistrationID
	if c.AdvSecretKey, err = unb64(j.AdvSecretKey); err != nil {
		return c, err
	}
	c.NextPreKeyID = j.NextPreKeyID
	c.FirstUnuploadedPreKeyID = j.FirstUnuploadedPreKeyID
	c.AccountSyncCounter = j.AccountSyncCounter
	c.AccountSettings.UnarchiveChats = j.AccountSettings.UnarchiveChats
	c.Registered = j.Registered
	c.Me = j.Me
	c.Platform = j.Platform
	if j.CompanionKey != "" {
		if c.CompanionKey, err = unb64(j.CompanionKey); err != nil {
			return c, err
		}
	}
	if j.Account != nil {
		acct := &wacreds.AccountDetails{}
		if acct.Details, err = unb64(j.Account.Details); err != nil {
			return c, err
		}
		if acct.AccountSignatureKey, err = unb64(j.Account.AccountSignatureKey); err != nil {
			return c, err
		}
		if acct.AccountSignature, err = unb64(j.Account.AccountSignature); err != nil {
			return c, err
		}
		if acct.DeviceSignature, err = unb64(j.Account.DeviceSignature); err != nil {
			return c, err
		}
		c.Account = acct
	}
	for _, si := range j.SignalIdentities {
		key, err := unb64(si.IdentifierKey)
		if err != nil {
			return c, err
		}
		c.SignalIdentities = append(c.SignalIdentities, wacreds.SignalIdentity{
			Name:          si.Name,
			DeviceID:      si.DeviceID,
			IdentifierKey: key,
		})
	}
	return c, nil
}
