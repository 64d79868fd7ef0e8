package decrypt

import "encoding/json"

// MessageHeader carries one Double-Ratchet step's worth of metadata
// alongside the ciphertext (ciphertext is AES-GCM output, tag suffixed).
type MessageHeader struct {
	DHPub      string `json:"dhPub"`
	N          uint32 `json:"n"`
	PN         uint32 `json:"pn"`
	Ciphertext string `json:"ciphertext"`
}

// PreKeyMessageHeader is the pkmsg payload: an X3DH bootstrap plus the
// first embedded ratchet message.
type PreKeyMessageHeader struct {
	RegistrationID uint32        `json:"registrationId"`
	PreKeyID       *uint32       `json:"preKeyId,omitempty"`
	SignedPreKeyID uint32        `json:"signedPreKeyId"`
	BaseKey        string        `json:"baseKey"`
	IdentityKey    string        `json:"identityKey"`
	Message        MessageHeader `json:"message"`
}

func decodeMessageHeader(payload []byte) (MessageHeader, error) {
	var h MessageHeader
	err := json.Unmarshal(payload, &h)
	return h, err
}

func decodePreKeyMessageHeader(payload []byte) (PreKeyMessageHeader, error) {
	var h PreKeyMessageHeader
	err := json.Unmarshal(payload, &h)
	return h, err
}
