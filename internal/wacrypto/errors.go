// Package wacrypto implements the pure cryptographic primitives the
// session substrate is built on: Curve25519 key agreement, XEdDSA
// signatures, HKDF, HMAC, AES-GCM/CTR/CBC, and PKCS7 padding.
package wacrypto

import "fmt"

// CryptoErrorKind discriminates the ways a primitive can fail.
type CryptoErrorKind int

const (
	BadSignature CryptoErrorKind = iota
	BadTag
	PadError
	ShortKey
	ShortSignature
)

func (k CryptoErrorKind) String() string {
	switch k {
	case BadSignature:
		return "BadSignature"
	case BadTag:
		return "BadTag"
	case PadError:
		return "PadError"
	case ShortKey:
		return "ShortKey"
	case ShortSignature:
		return "ShortSignature"
	default:
		return "Unknown"
	}
}

// CryptoError is the error type wacrypto's own checks fail with. Errors
// from the underlying libraries (crypto/aes, crypto/rand, curve25519, hkdf,
// edwards25519) are returned unwrapped by the functions that call them.
type CryptoError struct {
	Kind CryptoErrorKind
	Msg  string
}

func (e *CryptoError) Error() string {
	if e.Msg == "" {
		return "wacrypto: " + e.Kind.String()
	}
	return fmt.Sprintf("wacrypto: %s: %s", e.Kind, e.Msg)
}

func newErr(kind CryptoErrorKind, format string, args ...any) *CryptoError {
	return &CryptoError{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}
