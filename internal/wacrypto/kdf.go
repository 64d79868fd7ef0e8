package wacrypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"hash"
	"io"

	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/pbkdf2"
)

// HKDFOptions controls the optional salt/info inputs to HKDF. A zero value
// uses a zero-filled salt (hash-length) and empty info, matching the
// defaults the wire protocol relies on when expanding root/chain keys.
type HKDFOptions struct {
	Salt []byte
	Info []byte
}

// HKDF expands ikm into length bytes using HKDF-SHA256.
func HKDF(ikm []byte, length int, opts HKDFOptions) ([]byte, error) {
	salt := opts.Salt
	if salt == nil {
		salt = make([]byte, sha256.Size)
	}
	r := hkdf.New(sha256.New, ikm, salt, opts.Info)
	out := make([]byte, length)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, err
	}
	return out, nil
}

// HMACSHA256 computes an HMAC-SHA256 tag over data with the given key.
func HMACSHA256(key, data []byte) []byte {
	return macSum(sha256.New, key, data)
}

// HMACSHA512 computes an HMAC-SHA512 tag over data with the given key.
func HMACSHA512(key, data []byte) []byte {
	return macSum(sha512.New, key, data)
}

func macSum(newHash func() hash.Hash, key, data []byte) []byte {
	m := hmac.New(newHash, key)
	m.Write(data)
	return m.Sum(nil)
}

// VerifyHMACSHA256 checks tag against the expected HMAC-SHA256 of data in
// constant time.
func VerifyHMACSHA256(key, data, tag []byte) error {
	expected := HMACSHA256(key, data)
	if !hmac.Equal(expected, tag) {
		return newErr(BadTag, "HMAC-SHA256 mismatch")
	}
	return nil
}

// DerivePairingCodeKey derives the 32-byte key used to wrap a pairing-code
// exchange, per spec §4.1: PBKDF2-HMAC-SHA256, 131072 iterations.
func DerivePairingCodeKey(code, salt []byte) []byte {
	return pbkdf2.Key(code, salt, 131072, 32, sha256.New)
}
