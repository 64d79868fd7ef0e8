package authstate

import (
	"encoding/base64"
	"encoding/json"
	"strconv"
	"strings"
)

// StoreType discriminates the six entity kinds the store holds (spec §4.3,
// Design Note "Heterogeneous value type").
type StoreType string

const (
	TypePreKey          StoreType = "pre-key"
	TypeSession         StoreType = "session"
	TypeSenderKey       StoreType = "sender-key"
	TypeIdentity        StoreType = "identity"
	TypeAppStateKey     StoreType = "app-state-sync-key"
	TypeAppStateVersion StoreType = "app-state-sync-version"
)

// critical types flush synchronously; everything else is debounced
// (spec §4.3 "mutex-guarded persist", §5 ordering guarantee 4).
func (t StoreType) critical() bool {
	return t == TypeSession || t == TypeIdentity
}

// PreKeyValue is the StoreType=pre-key payload.
type PreKeyValue struct {
	KeyID     uint32
	PublicKey []byte // 32B raw
	PrivateKey []byte // 32B raw
	Used      bool
	UsedAt    *int64 // unix millis
}

// IdentityValue is the StoreType=identity payload. IdentityKey is always
// stored 33B-prefixed with 0x05 (spec invariant §3.1).
type IdentityValue struct {
	IdentityKey []byte
	TrustLevel  uint8
	UpdatedAt   int64
}

// AppStateVersionValue is the StoreType=app-state-sync-version payload.
type AppStateVersionValue struct {
	Version uint64
	Hash    []byte
}

// SessionEnvelope implements the sum-type wire encoding for session
// records (spec §3 invariant 7 / §9 "Session-record polymorphism"):
// {__type:"bytes",base64} | {__type:"string",utf8} | raw JSON object, plus
// a legacy {type:"Buffer",data:[...]} form accepted on read.
type SessionEnvelope struct {
	Bytes  []byte          // set when the record is binary
	Text   *string         // set when the record is a plain string
	Object json.RawMessage // set when the record is a JSON object
}

// EncodeSessionEnvelope produces the canonical on-disk JSON for a binary
// session record: always {__type:"bytes", base64}.
func EncodeSessionEnvelope(record []byte) []byte {
	env := struct {
		Type   string `json:"__type"`
		Base64 string `json:"base64"`
	}{Type: "bytes", Base64: base64.StdEncoding.EncodeToString(record)}
	out, _ := json.Marshal(env)
	return out
}

// DecodeSessionEnvelope accepts all four forms a reader must honor.
func DecodeSessionEnvelope(raw []byte) (SessionEnvelope, error) {
	var discriminated struct {
		Type string `json:"__type"`
		// legacy Buffer form; "data" is a JSON array of byte values, not a
		// base64 string, so it cannot be unmarshaled directly into []byte.
		LegacyType string `json:"type"`
		Data       []int  `json:"data"`
		Base64     string `json:"base64"`
		UTF8       string `json:"utf8"`
	}
	if err := json.Unmarshal(raw, &discriminated); err != nil {
		return SessionEnvelope{}, err
	}

	switch discriminated.Type {
	case "bytes":
		b, err := base64.StdEncoding.DecodeString(discriminated.Base64)
		if err != nil {
			return SessionEnvelope{}, err
		}
		return SessionEnvelope{Bytes: b}, nil
	case "string":
		s := discriminated.UTF8
		return SessionEnvelope{Text: &s}, nil
	case "":
		if discriminated.LegacyType == "Buffer" && discriminated.Data != nil {
			b := make([]byte, len(discriminated.Data))
			for i, v := range discriminated.Data {
				b[i] = byte(v)
			}
			return SessionEnvelope{Bytes: b}, nil
		}
		// raw JSON object, passed through untouched
		return SessionEnvelope{Object: json.RawMessage(raw)}, nil
	default:
		return SessionEnvelope{Object: json.RawMessage(raw)}, nil
	}
}

// AsBytes flattens any envelope form to bytes for the decrypt pipeline:
// Bytes pass through; Text is UTF-8 encoded; Object is re-marshaled JSON.
func (e SessionEnvelope) AsBytes() []byte {
	if e.Bytes != nil {
		return e.Bytes
	}
	if e.Text != nil {
		return []byte(*e.Text)
	}
	return []byte(e.Object)
}

// SessionID identifies a session row by (jid, device). String() renders
// the preferred jid:device form; ParseSessionID accepts jid:device and,
// for read-compatibility, the legacy jid.device form.
type SessionID struct {
	JID    string
	Device uint32
}

func (s SessionID) String() string {
	return s.JID + ":" + strconv.FormatUint(uint64(s.Device), 10)
}

// ParseSessionID splits a combined "jid:device" (preferred) or legacy
// "jid.device" identifier, per spec §4.3.
func ParseSessionID(id string) (SessionID, bool) {
	if i := strings.LastIndex(id, ":"); i >= 0 {
		if dev, err := strconv.ParseUint(id[i+1:], 10, 32); err == nil {
			return SessionID{JID: id[:i], Device: uint32(dev)}, true
		}
	}
	if i := strings.LastIndex(id, "."); i >= 0 {
		suffix := id[i+1:]
		if suffix != "" && allDigits(suffix) {
			if dev, err := strconv.ParseUint(suffix, 10, 32); err == nil {
				return SessionID{JID: id[:i], Device: uint32(dev)}, true
			}
		}
	}
	return SessionID{}, false
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// SenderKeyID identifies a sender-key row by (groupID, senderID).
type SenderKeyID struct {
	GroupID  string
	SenderID string
}

func (s SenderKeyID) String() string { return s.GroupID + ":" + s.SenderID }
