package instance

import (
	"time"

	"github.com/jaydenbeard/wasubstrate/internal/wacreds"
)

// Config is the set of recognized per-instance options (spec §6).
type Config struct {
	AuthDir           string
	QRTimeout         time.Duration
	ReconnectAttempts uint8
	BatchSize         uint8
	InitDelay         time.Duration
	VerboseSignalLog  bool
}

// DefaultConfig returns the spec-mandated defaults, overridable per field.
func DefaultConfig(authDir string) Config {
	return Config{
		AuthDir:           authDir,
		QRTimeout:         60 * time.Second,
		ReconnectAttempts: 3,
		BatchSize:         5,
	}
}

// ValidateCreds checks freshly generated credentials against the bounds
// spec §8 invariant 1 requires, returning *ConfigError (never a bare
// error) so callers can pattern-match on Kind and abort instance creation.
// Key-pair halves are fixed-size [32]byte arrays and so cannot mismatch by
// construction; only caller-supplied, variable-length material (the adv
// secret) needs a runtime length check.
func ValidateCreds(c wacreds.Credentials) error {
	if c.RegistrationID < 1 || c.RegistrationID > 0x3FFF {
		return newConfigErr(InvalidRegistrationId, "registration id out of [1, 16383] range")
	}
	if len(c.AdvSecretKey) != 32 {
		return newConfigErr(KeySizeMismatch, "adv secret key must be 32 bytes")
	}
	return nil
}
