package wacrypto

import (
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHKDFDeterministic(t *testing.T) {
	ikm := []byte("input key material")
	a, err := HKDF(ikm, 64, HKDFOptions{Info: []byte("ctx")})
	require.NoError(t, err)
	b, err := HKDF(ikm, 64, HKDFOptions{Info: []byte("ctx")})
	require.NoError(t, err)
	assert.Equal(t, a, b)

	c, err := HKDF(ikm, 64, HKDFOptions{Info: []byte("other")})
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}

func TestVerifyHMACSHA256(t *testing.T) {
	key := []byte("mac-key")
	data := []byte("payload")
	tag := HMACSHA256(key, data)
	assert.NoError(t, VerifyHMACSHA256(key, data, tag))
	assert.Error(t, VerifyHMACSHA256(key, data, append([]byte{}, tag[:len(tag)-1]...)))
}

func TestGCMRoundTrip(t *testing.T) {
	key := make([]byte, 32)
	_, _ = rand.Read(key)
	nonce := make([]byte, 12)
	_, _ = rand.Read(nonce)

	ciphertext, err := EncryptGCM(key, nonce, []byte("hello signal"), nil)
	require.NoError(t, err)

	plaintext, err := DecryptGCM(key, nonce, ciphertext, nil)
	require.NoError(t, err)
	assert.Equal(t, "hello signal", string(plaintext))

	ciphertext[0] ^= 0xFF
	_, err = DecryptGCM(key, nonce, ciphertext, nil)
	assert.Error(t, err)
}

func TestCBCRoundTrip(t *testing.T) {
	key := make([]byte, 32)
	_, _ = rand.Read(key)

	ciphertext, err := EncryptCBC(key, []byte("pad me please"))
	require.NoError(t, err)

	plaintext, err := DecryptCBC(key, ciphertext)
	require.NoError(t, err)
	assert.Equal(t, "pad me please", string(plaintext))
}

func TestPKCS7UnpadRejectsMalformed(t *testing.T) {
	_, err := PKCS7Unpad([]byte{}, 16)
	assert.Error(t, err)

	_, err = PKCS7Unpad([]byte{1, 2, 3, 4}, 16)
	assert.Error(t, err)

	bad := make([]byte, 16)
	bad[15] = 17 // padLen > blockSize
	_, err = PKCS7Unpad(bad, 16)
	assert.Error(t, err)
}

func TestXEdDSASignVerifyRoundTrip(t *testing.T) {
	kp, err := GenerateKeyPair()
	require.NoError(t, err)

	msg := []byte("device identity details")
	sig, err := Sign(kp.Private, msg)
	require.NoError(t, err)

	assert.NoError(t, Verify(kp.Public, msg, sig))

	tampered := append([]byte{}, msg...)
	tampered[0] ^= 0x01
	assert.Error(t, Verify(kp.Public, tampered, sig))
}

func TestSharedSecretAgrees(t *testing.T) {
	alice, err := GenerateKeyPair()
	require.NoError(t, err)
	bob, err := GenerateKeyPair()
	require.NoError(t, err)

	s1, err := SharedSecret(alice.Private, AsSignalPub(bob.Public))
	require.NoError(t, err)
	s2, err := SharedSecret(bob.Private, AsSignalPub(alice.Public))
	require.NoError(t, err)
	assert.Equal(t, s1, s2)
}

func TestStripSignalPubRoundTrip(t *testing.T) {
	kp, err := GenerateKeyPair()
	require.NoError(t, err)
	wire := AsSignalPub(kp.Public)

	stripped, err := StripSignalPub(wire[:])
	require.NoError(t, err)
	assert.Equal(t, kp.Public, stripped)

	_, err = StripSignalPub([]byte{0x01, 0x02})
	assert.Error(t, err)
}
