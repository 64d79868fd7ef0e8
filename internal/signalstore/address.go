// Package signalstore adapts internal/authstate's generic cache into the
// libsignal-shaped contract a session builder and cipher expect: identity
// keys, registration id, pre-key/session/sender-key CRUD, and address
// resolution (spec §4.4).
package signalstore

import "strings"

// Address is the resolved (name, deviceId) pair Signal operations key on.
// LID-derived names carry a trailing "_1" (spec §4.4, glossary "LID").
type Address struct {
	Name     string
	DeviceID uint32
}

func (a Address) String() string { return a.Name }

const lidServer = "lid"

// ResolveAddress implements spec §4.4's deterministic parsing rules over a
// bare JID string ("user[:device]@server" or legacy "user.device@server").
func ResolveAddress(jid string) Address {
	user := jid
	server := ""
	if i := strings.LastIndex(jid, "@"); i >= 0 {
		user = jid[:i]
		server = jid[i+1:]
	}

	name, deviceID := splitUserDevice(user)

	if server == lidServer && !strings.HasSuffix(name, "_1") {
		name += "_1"
	}
	return Address{Name: name, DeviceID: deviceID}
}

func splitUserDevice(user string) (string, uint32) {
	if i := strings.LastIndex(user, ":"); i >= 0 {
		if dev, ok := parseDigits(user[i+1:]); ok {
			return user[:i], dev
		}
	}
	if i := strings.LastIndex(user, "."); i >= 0 {
		suffix := user[i+1:]
		if suffix != "" && isAllDigits(suffix) {
			if dev, ok := parseDigits(suffix); ok {
				return user[:i], dev
			}
		}
	}
	return user, 0
}

func parseDigits(s string) (uint32, bool) {
	if s == "" || !isAllDigits(s) {
		return 0, false
	}
	var n uint32
	for _, r := range s {
		n = n*10 + uint32(r-'0')
	}
	return n, true
}

func isAllDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// ForeignAddress is the duck-typed shape spec §4.4 allows in place of a
// bare string or {name, deviceId}: any value exposing GetName/GetDeviceID.
type ForeignAddress interface {
	GetName() string
	GetDeviceID() uint32
}

// ResolveForeign converts a ForeignAddress into this package's Address
// without re-parsing a JID (the caller already split name/device).
func ResolveForeign(f ForeignAddress) Address {
	return Address{Name: f.GetName(), DeviceID: f.GetDeviceID()}
}
