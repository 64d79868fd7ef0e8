package decrypt

import (
	"context"
	"errors"

	"github.com/jaydenbeard/wasubstrate/internal/metrics"
	"github.com/jaydenbeard/wasubstrate/internal/signalstore"
	"github.com/jaydenbeard/wasubstrate/internal/wacrypto"
)

// EncryptedNode is the transport-in shape C6 consumes (spec §6): an
// encrypted node with its type, sender JID, optional remote identity key
// (pkmsg only), and the session's raw payload bytes.
type EncryptedNode struct {
	Type              string // "pkmsg" | "msg" | "skmsg" | "plaintext"
	SenderJID         string
	RemoteIdentityKey []byte
	Payload           []byte
}

// Decrypt dispatches node to the Signal primitives per spec §4.6 and
// returns PKCS7-unpadded cleartext ready for downstream proto decoding.
func Decrypt(ctx context.Context, store *signalstore.Store, node EncryptedNode) ([]byte, error) {
	plaintext, err := decrypt(ctx, store, node)
	metrics.RecordDecrypt(node.Type, decryptResultLabel(err))
	return plaintext, err
}

func decryptResultLabel(err error) string {
	if err == nil {
		return "ok"
	}
	var derr *DecryptError
	if errors.As(err, &derr) {
		return derr.Kind.String()
	}
	return "error"
}

func decrypt(ctx context.Context, store *signalstore.Store, node EncryptedNode) ([]byte, error) {
	addr := signalstore.ResolveAddress(node.SenderJID)

	switch node.Type {
	case "plaintext":
		return wacrypto.PKCS7Unpad(node.Payload, 16)

	case "pkmsg":
		return decryptPKMsg(ctx, store, addr, node)

	case "msg":
		return decryptMsg(ctx, store, addr, node)

	case "skmsg":
		return nil, newErr(UnsupportedType, "group messages (skmsg) are out of scope")

	default:
		return nil, newErr(UnsupportedType, "unrecognized message type %q", node.Type)
	}
}

func decryptPKMsg(ctx context.Context, store *signalstore.Store, addr signalstore.Address, node EncryptedNode) ([]byte, error) {
	if node.RemoteIdentityKey != nil {
		key33, err := toSignalPub33(node.RemoteIdentityKey)
		if err != nil {
			return nil, newErr(Tampered, "malformed remote identity key: %v", err)
		}
		if _, err := store.SaveIdentity(ctx, addr, key33); err != nil {
			return nil, newErr(Tampered, "store identity: %v", err)
		}
	}

	header, err := decodePreKeyMessageHeader(node.Payload)
	if err != nil {
		return nil, newErr(Tampered, "malformed pkmsg payload: %v", err)
	}

	existing := store.LoadSession(addr)
	if existing != nil {
		if state, derr := decodeRatchetState(existing); derr == nil {
			if plaintext, newState, werr := decryptWhisperMessage(header.Message, state); werr == nil {
				if err := store.StoreSession(ctx, addr, encodeRatchetState(newState)); err != nil {
					return nil, err
				}
				return wacrypto.PKCS7Unpad(plaintext, 16)
			}
			// fall through to a fresh X3DH bootstrap (spec §4.6 step 3c)
		}
	}

	plaintext, state, keyID, err := processPreKeyWhisperMessage(store, header)
	if err != nil {
		return nil, err
	}
	if err := store.StoreSession(ctx, addr, encodeRatchetState(state)); err != nil {
		return nil, err
	}
	if keyID != nil {
		if err := store.RemovePreKey(ctx, *keyID); err != nil {
			return nil, err
		}
	}
	return wacrypto.PKCS7Unpad(plaintext, 16)
}

func decryptMsg(ctx context.Context, store *signalstore.Store, addr signalstore.Address, node EncryptedNode) ([]byte, error) {
	existing := store.LoadSession(addr)
	if existing == nil {
		return nil, newErr(NoSession, "no session for %s", addr)
	}
	state, err := decodeRatchetState(existing)
	if err != nil {
		return nil, newErr(RatchetMismatch, "malformed session state: %v", err)
	}
	header, err := decodeMessageHeader(node.Payload)
	if err != nil {
		return nil, newErr(RatchetMismatch, "malformed msg payload: %v", err)
	}
	plaintext, newState, err := decryptWhisperMessage(header, state)
	if err != nil {
		return nil, newErr(RatchetMismatch, "%v", err)
	}
	if err := store.StoreSession(ctx, addr, encodeRatchetState(newState)); err != nil {
		return nil, err
	}
	return wacrypto.PKCS7Unpad(plaintext, 16)
}

// processPreKeyWhisperMessage consumes the referenced one-time pre-key,
// performs X3DH to derive the root key, initializes the receiving side of
// the Double Ratchet, and decrypts the embedded first message (spec §4.6
// step 3b).
func processPreKeyWhisperMessage(store *signalstore.Store, header PreKeyMessageHeader) ([]byte, ratchetState, *uint32, error) {
	senderBaseKey, err := decodeBase64(header.BaseKey)
	if err != nil {
		return nil, ratchetState{}, nil, newErr(Tampered, "malformed base key: %v", err)
	}
	senderIdentityKey, err := decodeBase64(header.IdentityKey)
	if err != nil {
		return nil, ratchetState{}, nil, newErr(Tampered, "malformed identity key: %v", err)
	}
	var senderBase32, senderIdentity32 [32]byte
	copy(senderBase32[:], senderBaseKey)
	copy(senderIdentity32[:], senderIdentityKey)

	identity := store.GetIdentityKeyPair()
	signedPreKey := store.LoadSignedPreKey()

	var oneTimePriv *[32]byte
	var keyID *uint32
	if header.PreKeyID != nil {
		pk := store.LoadPreKey(*header.PreKeyID)
		if pk == nil {
			return nil, ratchetState{}, nil, newErr(UnknownPreKey, "pre-key %d not found", *header.PreKeyID)
		}
		var priv [32]byte
		copy(priv[:], pk.PrivateKey)
		oneTimePriv = &priv
		id := *header.PreKeyID
		keyID = &id
	}

	dh1, err := wacrypto.SharedSecret(identity.PrivKey, wacrypto.AsSignalPub(senderBase32))
	if err != nil {
		return nil, ratchetState{}, nil, err
	}
	dh2, err := wacrypto.SharedSecret(signedPreKey.KeyPair.Private, wacrypto.AsSignalPub(senderIdentity32))
	if err != nil {
		return nil, ratchetState{}, nil, err
	}
	dh3, err := wacrypto.SharedSecret(signedPreKey.KeyPair.Private, wacrypto.AsSignalPub(senderBase32))
	if err != nil {
		return nil, ratchetState{}, nil, err
	}
	master := append(append(append([]byte{}, dh1[:]...), dh2[:]...), dh3[:]...)
	if oneTimePriv != nil {
		dh4, err := wacrypto.SharedSecret(*oneTimePriv, wacrypto.AsSignalPub(senderBase32))
		if err != nil {
			return nil, ratchetState{}, nil, err
		}
		master = append(master, dh4[:]...)
	}

	rootKey, err := wacrypto.HKDF(master, 32, wacrypto.HKDFOptions{Info: []byte("wasubstrate/X3DH")})
	if err != nil {
		return nil, ratchetState{}, nil, err
	}

	state := ratchetState{
		RootKey:    rootKey,
		DHSelfPriv: signedPreKey.KeyPair.Private,
		DHSelfPub:  signedPreKey.KeyPair.Public,
	}

	plaintext, state, err := applyWhisperStep(state, header.Message)
	if err != nil {
		return nil, ratchetState{}, nil, newErr(Tampered, "%v", err)
	}
	return plaintext, state, keyID, nil
}

// decryptWhisperMessage is the existing-session ratchet-step path used by
// "msg" and by the duplicate-first-message retry on "pkmsg" (spec §4.6
// step 3c / step 4).
func decryptWhisperMessage(header MessageHeader, state ratchetState) ([]byte, ratchetState, error) {
	return applyWhisperStep(state, header)
}

// applyWhisperStep performs (if needed) a DH ratchet step to catch up to
// header's ratchet public key, advances the receiving chain to header.N
// (buffering any skipped keys), and decrypts the ciphertext.
func applyWhisperStep(state ratchetState, header MessageHeader) ([]byte, ratchetState, error) {
	dhPubBytes, err := decodeBase64(header.DHPub)
	if err != nil {
		return nil, state, err
	}
	var dhPub [32]byte
	copy(dhPub[:], dhPubBytes)

	if !state.DHRemoteSet || dhPub != state.DHRemote {
		if cipherKey, nonce, ok := takeSkipped(&state, dhPub, header.N); ok {
			plaintext, err := decryptWithKey(cipherKey, nonce, header.Ciphertext)
			if err != nil {
				return nil, state, err
			}
			return plaintext, state, nil
		}
		if state.DHRemoteSet {
			// The sender ratcheted to a new DH key; PN records how far the
			// old receiving chain ran before it did. Buffer whatever that
			// chain still owes before it's discarded, or a message still
			// in flight on it becomes undecryptable forever.
			if err := advanceToN(&state, header.PN); err != nil {
				return nil, state, err
			}
		}
		dh, err := wacrypto.SharedSecret(state.DHSelfPriv, wacrypto.AsSignalPub(dhPub))
		if err != nil {
			return nil, state, err
		}
		newRoot, chainKey, err := kdfRK(state.RootKey, dh[:])
		if err != nil {
			return nil, state, err
		}
		state.RootKey = newRoot
		state.RecvChainKey = chainKey
		state.DHRemote = dhPub
		state.DHRemoteSet = true
		state.RecvN = 0
	} else if header.N < state.RecvN {
		if cipherKey, nonce, ok := takeSkipped(&state, dhPub, header.N); ok {
			plaintext, err := decryptWithKey(cipherKey, nonce, header.Ciphertext)
			if err != nil {
				return nil, state, err
			}
			return plaintext, state, nil
		}
		return nil, state, newErr(RatchetMismatch, "message %d already consumed and not buffered", header.N)
	}

	if err := advanceToN(&state, header.N); err != nil {
		return nil, state, err
	}
	nextChain, seed := kdfCK(state.RecvChainKey)
	cipherKey, nonce, err := messageKeyFromSeed(seed)
	if err != nil {
		return nil, state, err
	}
	plaintext, err := decryptWithKey(cipherKey, nonce, header.Ciphertext)
	if err != nil {
		return nil, state, err
	}
	state.RecvChainKey = nextChain
	state.RecvN = header.N + 1
	return plaintext, state, nil
}

func decryptWithKey(cipherKey, nonce []byte, ciphertextB64 string) ([]byte, error) {
	ciphertext, err := decodeBase64(ciphertextB64)
	if err != nil {
		return nil, err
	}
	return wacrypto.DecryptGCM(cipherKey, nonce, ciphertext, nil)
}

func toSignalPub33(key []byte) ([]byte, error) {
	stripped, err := wacrypto.StripSignalPub(key)
	if err != nil {
		return nil, err
	}
	full := wacrypto.AsSignalPub(stripped)
	return full[:], nil
}
