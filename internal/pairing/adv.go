package pairing

import (
	"encoding/binary"
	"fmt"
)

// ADV* structures stand in for the upstream ADV protobuf schema (spec §6
// calls these wire formats "opaque to this spec"; see DESIGN.md for why a
// deterministic length-prefixed binary codec is used here instead of
// generated protobuf). Only the fields the pair-success algorithm (§4.5)
// actually reads or writes are modeled.

// AccountType discriminates a regular account from a hosted (business
// API) one; it selects the HMAC/signature domain-separation prefixes.
type AccountType int32

const (
	AccountTypeDefault AccountType = 0
	AccountTypeHosted  AccountType = 1
)

// ADVSignedDeviceIdentityHMAC is the outer envelope carried in the
// device-identity node's content.
type ADVSignedDeviceIdentityHMAC struct {
	Details     []byte
	HMAC        [32]byte
	AccountType AccountType
}

// ADVSignedDeviceIdentity is the inner, HMAC-protected payload.
type ADVSignedDeviceIdentity struct {
	Details             []byte // opaque device-details bytes signed over directly
	AccountSignatureKey []byte // bare 32B or 0x05-prefixed 33B, cleared on re-encode for the reply (spec §4.5 step 7)
	AccountSignature    [64]byte
	DeviceSignature     [64]byte
	HasDeviceSignature  bool
}

func putBytes(buf *[]byte, b []byte) {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(b)))
	*buf = append(*buf, lenBuf[:]...)
	*buf = append(*buf, b...)
}

func takeBytes(data []byte, offset int) ([]byte, int, error) {
	if offset+4 > len(data) {
		return nil, 0, fmt.Errorf("adv: truncated length prefix at offset %d", offset)
	}
	n := int(binary.BigEndian.Uint32(data[offset : offset+4]))
	offset += 4
	if offset+n > len(data) {
		return nil, 0, fmt.Errorf("adv: truncated field at offset %d (want %d bytes)", offset, n)
	}
	return data[offset : offset+n], offset + n, nil
}

// EncodeADVSignedDeviceIdentityHMAC serializes the HMAC envelope.
func EncodeADVSignedDeviceIdentityHMAC(v ADVSignedDeviceIdentityHMAC) []byte {
	var buf []byte
	putBytes(&buf, v.Details)
	buf = append(buf, v.HMAC[:]...)
	var accountType [4]byte
	binary.BigEndian.PutUint32(accountType[:], uint32(v.AccountType))
	buf = append(buf, accountType[:]...)
	return buf
}

// DecodeADVSignedDeviceIdentityHMAC parses the HMAC envelope (spec §4.5
// step 2).
func DecodeADVSignedDeviceIdentityHMAC(data []byte) (ADVSignedDeviceIdentityHMAC, error) {
	var v ADVSignedDeviceIdentityHMAC
	details, offset, err := takeBytes(data, 0)
	if err != nil {
		return v, err
	}
	if offset+32+4 > len(data) {
		return v, fmt.Errorf("adv: truncated HMAC envelope")
	}
	v.Details = details
	copy(v.HMAC[:], data[offset:offset+32])
	offset += 32
	v.AccountType = AccountType(binary.BigEndian.Uint32(data[offset : offset+4]))
	return v, nil
}

// EncodeADVSignedDeviceIdentity serializes the inner signed-identity
// payload. DeviceSignature is only written when HasDeviceSignature is set,
// and AccountSignatureKey may be empty (spec §4.5 step 7: cleared in the
// re-encoded reply).
func EncodeADVSignedDeviceIdentity(v ADVSignedDeviceIdentity) []byte {
	var buf []byte
	putBytes(&buf, v.Details)
	putBytes(&buf, v.AccountSignatureKey)
	buf = append(buf, v.AccountSignature[:]...)
	if v.HasDeviceSignature {
		buf = append(buf, 1)
		buf = append(buf, v.DeviceSignature[:]...)
	} else {
		buf = append(buf, 0)
	}
	return buf
}

// DecodeADVSignedDeviceIdentity parses the inner signed-identity payload
// (spec §4.5 step 4).
func DecodeADVSignedDeviceIdentity(data []byte) (ADVSignedDeviceIdentity, error) {
	var v ADVSignedDeviceIdentity
	details, offset, err := takeBytes(data, 0)
	if err != nil {
		return v, err
	}
	v.Details = details

	accountKey, offset2, err := takeBytes(data, offset)
	if err != nil {
		return v, err
	}
	v.AccountSignatureKey = accountKey
	offset = offset2

	if offset+64 > len(data) {
		return v, fmt.Errorf("adv: truncated account signature")
	}
	copy(v.AccountSignature[:], data[offset:offset+64])
	offset += 64

	if offset >= len(data) {
		return v, fmt.Errorf("adv: truncated device-signature flag")
	}
	if data[offset] == 1 {
		offset++
		if offset+64 > len(data) {
			return v, fmt.Errorf("adv: truncated device signature")
		}
		copy(v.DeviceSignature[:], data[offset:offset+64])
		v.HasDeviceSignature = true
	}
	return v, nil
}
