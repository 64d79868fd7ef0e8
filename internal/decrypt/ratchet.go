package decrypt

import (
	"encoding/base64"
	"encoding/json"

	"github.com/jaydenbeard/wasubstrate/internal/wacrypto"
)

// maxSkippedMessageKeys bounds how many out-of-order message keys a
// session will buffer before giving up on a skipped chain position.
const maxSkippedMessageKeys = 2000

// KDF info labels, matching the root/chain/message KDF separation the
// Double Ratchet spec requires (grounded on PollisV3.RootKDF/ChainKDF/
// MsgKDF in actuallydan-pollis/internal/signal/signal.go).
const (
	rootKDFInfo  = "wasubstrate/RootKDF"
	chainKDFByte = byte(0x02)
	msgKDFByte   = byte(0x01)
	msgKDFInfo   = "wasubstrate/MsgKDF"
)

// skippedKey is a buffered message key for a ratchet position that
// arrived out of order (spec §4.6 "ratchet step").
type skippedKey struct {
	DHPub     [32]byte `json:"dhPub"`
	N         uint32   `json:"n"`
	CipherKey []byte   `json:"cipherKey"`
	Nonce     []byte   `json:"nonce"`
}

// ratchetState is the full per-peer Double Ratchet state, serialized as
// the opaque session record authstate persists (spec §3 "Session record").
// DHSelf is the receiving-side ratchet key pair: for a session bootstrapped
// via pkmsg this starts as the active SignedPreKey (this component never
// sends, so no sending-chain keys are maintained — message sending is an
// explicit Non-goal).
type ratchetState struct {
	RootKey      []byte       `json:"rootKey"`
	DHSelfPriv   [32]byte     `json:"dhSelfPriv"`
	DHSelfPub    [32]byte     `json:"dhSelfPub"`
	DHRemote     [32]byte     `json:"dhRemote"`
	DHRemoteSet  bool         `json:"dhRemoteSet"`
	RecvChainKey []byte       `json:"recvChainKey"`
	RecvN        uint32       `json:"recvN"`
	Skipped      []skippedKey `json:"skipped"`
}

func encodeRatchetState(s ratchetState) []byte {
	out, _ := json.Marshal(s)
	return out
}

func decodeRatchetState(data []byte) (ratchetState, error) {
	var s ratchetState
	err := json.Unmarshal(data, &s)
	return s, err
}

// kdfRK is the root KDF: given the current root key and a fresh DH output,
// derives a new root key and a receiving chain key.
func kdfRK(rootKey, dhOut []byte) (newRoot, chainKey []byte, err error) {
	out, err := wacrypto.HKDF(dhOut, 64, wacrypto.HKDFOptions{Salt: rootKey, Info: []byte(rootKDFInfo)})
	if err != nil {
		return nil, nil, err
	}
	return out[:32], out[32:], nil
}

// kdfCK is the chain KDF: advances chainKey one step, returning the next
// chain key and the message key seed for the current step.
func kdfCK(chainKey []byte) (nextChainKey, messageKeySeed []byte) {
	messageKeySeed = wacrypto.HMACSHA256(chainKey, []byte{msgKDFByte})
	nextChainKey = wacrypto.HMACSHA256(chainKey, []byte{chainKDFByte})
	return nextChainKey, messageKeySeed
}

// messageKeyFromSeed expands a chain-step seed into an AES-GCM key + nonce
// (grounded on deriveMessageKey in actuallydan-pollis/internal/signal/signal.go).
func messageKeyFromSeed(seed []byte) (cipherKey, nonce []byte, err error) {
	out, err := wacrypto.HKDF(seed, 44, wacrypto.HKDFOptions{Info: []byte(msgKDFInfo)})
	if err != nil {
		return nil, nil, err
	}
	return out[:32], out[32:44], nil
}

// advanceToN walks the receiving chain from its current position up to
// (but not including) targetN, buffering every skipped message key so an
// out-of-order arrival can still be decrypted (spec §4.6 ratchet step).
func advanceToN(state *ratchetState, targetN uint32) error {
	if targetN < state.RecvN {
		return nil // already advanced past this position; caller checks skipped list
	}
	for state.RecvN < targetN {
		if len(state.Skipped) >= maxSkippedMessageKeys {
			return newErr(RatchetMismatch, "too many skipped messages buffered")
		}
		next, seed := kdfCK(state.RecvChainKey)
		cipherKey, nonce, err := messageKeyFromSeed(seed)
		if err != nil {
			return err
		}
		state.Skipped = append(state.Skipped, skippedKey{
			DHPub: state.DHRemote, N: state.RecvN, CipherKey: cipherKey, Nonce: nonce,
		})
		state.RecvChainKey = next
		state.RecvN++
	}
	return nil
}

// takeSkipped returns and removes a previously-buffered key for (dhPub, n).
func takeSkipped(state *ratchetState, dhPub [32]byte, n uint32) (cipherKey, nonce []byte, ok bool) {
	for i, sk := range state.Skipped {
		if sk.DHPub == dhPub && sk.N == n {
			state.Skipped = append(state.Skipped[:i], state.Skipped[i+1:]...)
			return sk.CipherKey, sk.Nonce, true
		}
	}
	return nil, nil, false
}

func decodeBase64(s string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(s)
}
