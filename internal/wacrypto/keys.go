package wacrypto

import (
	"crypto/rand"
	"io"

	"golang.org/x/crypto/curve25519"
)

// KeyPair is a Curve25519 key pair. Public is always the raw 32-byte
// Montgomery u-coordinate; the 0x05 version prefix used on the wire and
// for signature input is added only by AsSignalPub.
type KeyPair struct {
	Private [32]byte
	Public  [32]byte
}

// GenerateKeyPair produces a fresh Curve25519 key pair.
func GenerateKeyPair() (KeyPair, error) {
	var priv [32]byte
	if _, err := io.ReadFull(rand.Reader, priv[:]); err != nil {
		return KeyPair{}, err
	}
	pub, err := curve25519.X25519(priv[:], curve25519.Basepoint)
	if err != nil {
		return KeyPair{}, err
	}
	var kp KeyPair
	kp.Private = priv
	copy(kp.Public[:], pub)
	return kp, nil
}

// AsSignalPub prepends the 0x05 Curve25519 type byte used on the wire and
// as XEdDSA signature input. The KeyPair form is always the bare 32 bytes.
func AsSignalPub(pub [32]byte) [33]byte {
	var out [33]byte
	out[0] = 0x05
	copy(out[1:], pub[:])
	return out
}

// StripSignalPub removes the 0x05 prefix from a 33-byte wire public key.
// It accepts bare 32-byte keys unchanged for callers that may receive
// either form.
func StripSignalPub(pub []byte) ([32]byte, error) {
	var out [32]byte
	switch len(pub) {
	case 32:
		copy(out[:], pub)
	case 33:
		if pub[0] != 0x05 {
			return out, newErr(ShortKey, "unexpected key type byte 0x%02x", pub[0])
		}
		copy(out[:], pub[1:])
	default:
		return out, newErr(ShortKey, "public key must be 32 or 33 bytes, got %d", len(pub))
	}
	return out, nil
}

// SharedSecret performs X25519 ECDH. pub must be the 33-byte signal form;
// callers holding a bare 32-byte key should call AsSignalPub first.
func SharedSecret(priv [32]byte, pub33 [33]byte) ([32]byte, error) {
	var out [32]byte
	secret, err := curve25519.X25519(priv[:], pub33[1:])
	if err != nil {
		return out, err
	}
	copy(out[:], secret)
	return out, nil
}
