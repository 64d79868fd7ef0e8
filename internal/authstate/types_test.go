package authstate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionEnvelopeBytesRoundTrip(t *testing.T) {
	record := []byte{0x01, 0x02, 0x03, 0xFF}
	encoded := EncodeSessionEnvelope(record)

	env, err := DecodeSessionEnvelope(encoded)
	require.NoError(t, err)
	assert.Equal(t, record, env.AsBytes())
}

func TestSessionEnvelopeStringForm(t *testing.T) {
	env, err := DecodeSessionEnvelope([]byte(`{"__type":"string","utf8":"hello"}`))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(env.AsBytes()))
}

func TestSessionEnvelopeLegacyBufferForm(t *testing.T) {
	env, err := DecodeSessionEnvelope([]byte(`{"type":"Buffer","data":[1,2,3,255]}`))
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 255}, env.AsBytes())
}

func TestSessionEnvelopeRawObjectForm(t *testing.T) {
	env, err := DecodeSessionEnvelope([]byte(`{"foo":"bar"}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"foo":"bar"}`, string(env.AsBytes()))
}

func TestSessionIDStringAndParse(t *testing.T) {
	id := SessionID{JID: "12025551234", Device: 3}
	assert.Equal(t, "12025551234:3", id.String())

	parsed, ok := ParseSessionID("12025551234:3")
	require.True(t, ok)
	assert.Equal(t, id, parsed)

	legacy, ok := ParseSessionID("12025551234.7")
	require.True(t, ok)
	assert.Equal(t, SessionID{JID: "12025551234", Device: 7}, legacy)

	_, ok = ParseSessionID("not-a-session-id")
	assert.False(t, ok)
}

func TestSenderKeyIDString(t *testing.T) {
	id := SenderKeyID{GroupID: "120363@g.us", SenderID: "12025551234:0"}
	assert.Equal(t, "120363@g.us:12025551234:0", id.String())
}

func TestStoreTypeCritical(t *testing.T) {
	assert.True(t, TypeSession.critical())
	assert.True(t, TypeIdentity.critical())
	assert.False(t, TypePreKey.critical())
	assert.False(t, TypeSenderKey.critical())
	assert.False(t, TypeAppStateKey.critical())
	assert.False(t, TypeAppStateVersion.critical())
}

func TestStoreErrorString(t *testing.T) {
	err := newStoreErr(NotFound, "pre-key %d missing", 7)
	assert.Contains(t, err.Error(), "NotFound")
	assert.Contains(t, err.Error(), "pre-key 7 missing")
}
