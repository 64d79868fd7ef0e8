package signalstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveAddressStripsServer(t *testing.T) {
	addr := ResolveAddress("12025551234:3@s.whatsapp.net")
	assert.Equal(t, "12025551234", addr.Name)
	assert.Equal(t, uint32(3), addr.DeviceID)
}

func TestResolveAddressDefaultsDeviceZero(t *testing.T) {
	addr := ResolveAddress("12025551234@s.whatsapp.net")
	assert.Equal(t, "12025551234", addr.Name)
	assert.Equal(t, uint32(0), addr.DeviceID)
}

func TestResolveAddressLIDSuffix(t *testing.T) {
	addr := ResolveAddress("987654321:0@lid")
	assert.Equal(t, "987654321_1", addr.Name)
	assert.Equal(t, uint32(0), addr.DeviceID)
}

func TestResolveAddressLegacyDotDevice(t *testing.T) {
	addr := ResolveAddress("12025551234.2@s.whatsapp.net")
	assert.Equal(t, "12025551234", addr.Name)
	assert.Equal(t, uint32(2), addr.DeviceID)
}

func TestAddressString(t *testing.T) {
	addr := Address{Name: "12025551234", DeviceID: 5}
	assert.Equal(t, "12025551234", addr.String())
}

type fakeForeignAddress struct {
	name     string
	deviceID uint32
}

func (f fakeForeignAddress) GetName() string     { return f.name }
func (f fakeForeignAddress) GetDeviceID() uint32 { return f.deviceID }

func TestResolveForeign(t *testing.T) {
	addr := ResolveForeign(fakeForeignAddress{name: "12025551234", deviceID: 1})
	assert.Equal(t, Address{Name: "12025551234", DeviceID: 1}, addr)
}
