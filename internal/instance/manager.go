package instance

import (
	"context"
	"fmt"

	"github.com/jaydenbeard/wasubstrate/internal/authstate"
	"github.com/jaydenbeard/wasubstrate/internal/signalstore"
	"github.com/jaydenbeard/wasubstrate/internal/wacreds"
)

// Manager owns the per-instance lifecycle: registry status transitions,
// the auth-state store, and the Signal store derived from it. One Manager
// per logical device registration.
type Manager struct {
	InstanceID string
	Config     Config
	Registry   *Store
	Auth       *authstate.Store
	Signal     *signalstore.Store
}

// New validates cfg and creds, then brings up an instance's stores. On
// any ConfigError the instance is never registered and no stores are
// constructed, matching spec §7's "abort instance creation" semantics.
func New(ctx context.Context, instanceID string, cfg Config, auth *authstate.Store, reg *Store, creds wacreds.Credentials) (*Manager, error) {
	if err := ValidateCreds(creds); err != nil {
		return nil, err
	}

	if err := reg.Upsert(ctx, instanceID, Connecting); err != nil {
		return nil, fmt.Errorf("instance: register %s: %w", instanceID, err)
	}

	return &Manager{
		InstanceID: instanceID,
		Config:     cfg,
		Registry:   reg,
		Auth:       auth,
		Signal:     signalstore.NewStore(auth, creds, instanceID),
	}, nil
}

// OnQRCode transitions the instance into the QR-pending state.
func (m *Manager) OnQRCode(ctx context.Context) error {
	return m.Registry.Upsert(ctx, m.InstanceID, QRCode)
}

// OnPairingSuccess transitions the instance to connected and persists the
// updated credentials, per spec §6's "the core upserts status on pairing
// success (connected)". SaveCreds emits CredsUpdate on the instance's bus,
// so this is the only emit point for a pairing-success delta.
func (m *Manager) OnPairingSuccess(ctx context.Context, updated wacreds.Credentials) error {
	if err := m.Auth.SaveCreds(ctx, updated); err != nil {
		return fmt.Errorf("instance: save creds after pairing: %w", err)
	}
	return m.Registry.Upsert(ctx, m.InstanceID, Connected)
}

// OnConnectionLoss transitions the instance to disconnected, per spec
// §6's "the core upserts status on ... loss (disconnected)".
func (m *Manager) OnConnectionLoss(ctx context.Context) error {
	return m.Registry.Upsert(ctx, m.InstanceID, Disconnected)
}
