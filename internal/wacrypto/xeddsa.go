package wacrypto

import (
	"crypto/rand"
	"crypto/sha512"
	"encoding/binary"
	"io"

	"filippo.io/edwards25519"
	"filippo.io/edwards25519/field"
)

// Sign produces an XEdDSA signature: a Curve25519 private key signs a
// message by way of its birationally-equivalent Edwards25519 point,
// without ever publishing a separate signing key.
func Sign(priv [32]byte, message []byte) ([64]byte, error) {
	var sig [64]byte

	a, err := new(edwards25519.Scalar).SetBytesWithClamping(priv[:])
	if err != nil {
		return sig, err
	}
	A := new(edwards25519.Point).ScalarBaseMult(a)
	aBytes := A.Bytes()
	if aBytes[31]&0x80 != 0 {
		a = new(edwards25519.Scalar).Negate(a)
		A = new(edwards25519.Point).ScalarBaseMult(a)
		aBytes = A.Bytes()
	}
	aScalarBytes := a.Bytes()

	var nonce [64]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return sig, err
	}

	h1 := sha512.New()
	h1.Write(aScalarBytes)
	h1.Write(message)
	h1.Write(nonce[:])
	r, err := new(edwards25519.Scalar).SetUniformBytes(h1.Sum(nil))
	if err != nil {
		return sig, err
	}
	R := new(edwards25519.Point).ScalarBaseMult(r)
	RBytes := R.Bytes()

	h2 := sha512.New()
	h2.Write(RBytes)
	h2.Write(aBytes)
	h2.Write(message)
	hScalar, err := new(edwards25519.Scalar).SetUniformBytes(h2.Sum(nil))
	if err != nil {
		return sig, err
	}

	s := new(edwards25519.Scalar).MultiplyAdd(hScalar, a, r)
	sBytes := s.Bytes()

	copy(sig[:32], RBytes)
	copy(sig[32:], sBytes)
	return sig, nil
}

// Verify checks an XEdDSA signature against a Curve25519 public key
// (bare 32 bytes). Returns CryptoError{BadSignature} on mismatch or a
// malformed signature.
func Verify(pub [32]byte, message []byte, sig [64]byte) error {
	A, err := montgomeryToEdwards(pub)
	if err != nil {
		return newErr(BadSignature, "public key is not a valid curve point: %v", err)
	}
	RBytes := sig[:32]
	sBytes := sig[32:64]

	R, err := new(edwards25519.Point).SetBytes(RBytes)
	if err != nil {
		return newErr(BadSignature, "malformed R: %v", err)
	}
	s, err := new(edwards25519.Scalar).SetCanonicalBytes(sBytes)
	if err != nil {
		return newErr(BadSignature, "malformed s: %v", err)
	}

	h2 := sha512.New()
	h2.Write(RBytes)
	h2.Write(A.Bytes())
	h2.Write(message)
	hScalar, err := new(edwards25519.Scalar).SetUniformBytes(h2.Sum(nil))
	if err != nil {
		return newErr(BadSignature, "hash reduction failed: %v", err)
	}

	sB := new(edwards25519.Point).ScalarBaseMult(s)
	hA := new(edwards25519.Point).ScalarMult(hScalar, A)
	rhs := new(edwards25519.Point).Add(R, hA)

	if sB.Equal(rhs) != 1 {
		return newErr(BadSignature, "signature verification failed")
	}
	return nil
}

// montgomeryToEdwards converts a Curve25519 public key (u-coordinate) to
// the canonical Edwards point with sign bit 0, the convention XEdDSA uses
// so a verifier with only the Montgomery public key can reconstruct the
// exact point the signer used.
func montgomeryToEdwards(u [32]byte) (*edwards25519.Point, error) {
	uEl, err := new(field.Element).SetBytes(u[:])
	if err != nil {
		return nil, err
	}
	one := new(field.Element).One()

	numY := new(field.Element).Subtract(uEl, one)
	denY := new(field.Element).Add(uEl, one)
	denYInv := new(field.Element).Invert(denY)
	y := new(field.Element).Multiply(numY, denYInv)

	y2 := new(field.Element).Square(y)
	numX := new(field.Element).Subtract(y2, one)
	d := edwardsD()
	denX := new(field.Element).Add(new(field.Element).Multiply(d, y2), one)

	x, wasSquare := new(field.Element).SqrtRatio(numX, denX)
	if wasSquare == 0 {
		return nil, newErr(BadSignature, "u is not on the curve")
	}
	if x.IsNegative() == 1 {
		x.Negate(x)
	}

	yBytes := y.Bytes()
	return new(edwards25519.Point).SetBytes(yBytes)
}

// edwardsD returns the Edwards25519 curve constant d = -121665/121666.
func edwardsD() *field.Element {
	c121665 := smallFieldElement(121665)
	c121666 := smallFieldElement(121666)
	num := new(field.Element).Negate(c121665)
	inv := new(field.Element).Invert(c121666)
	return new(field.Element).Multiply(num, inv)
}

func smallFieldElement(v uint64) *field.Element {
	var buf [32]byte
	binary.LittleEndian.PutUint64(buf[:8], v)
	el, err := new(field.Element).SetBytes(buf[:])
	if err != nil {
		panic(err)
	}
	return el
}
