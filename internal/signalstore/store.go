package signalstore

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"io"
	"log"
	"os"
	"sync"

	"github.com/jaydenbeard/wasubstrate/internal/authstate"
	"github.com/jaydenbeard/wasubstrate/internal/wacreds"
	"github.com/jaydenbeard/wasubstrate/internal/wacrypto"
)

// IdentityKeyPair is the 0x05-prefixed public/raw private pair
// GetIdentityKeyPair returns (spec §4.4).
type IdentityKeyPair struct {
	PubKey  [33]byte
	PrivKey [32]byte
}

// Store is the per-identity libsignal-shaped adapter over an
// authstate.Store. It never runs as a process-wide singleton: callers hold
// one Store per instance, indexed by identity public key via Registry.
type Store struct {
	auth   *authstate.Store
	logger *log.Logger

	mu    sync.Mutex
	creds wacreds.Credentials
}

// NewStore wraps auth with the initial credential snapshot. Registration
// id and identity key come from creds; subsequent mutations (e.g. a fresh
// registration id minted by GetLocalRegistrationId) are written back
// through auth.SaveCreds.
func NewStore(auth *authstate.Store, creds wacreds.Credentials, instanceID string) *Store {
	return &Store{
		auth:   auth,
		creds:  creds,
		logger: log.New(os.Stdout, "[SIGNALSTORE:"+instanceID+"] ", log.Ldate|log.Ltime|log.LUTC),
	}
}

// GetIdentityKeyPair returns the instance's identity key, public prefixed.
func (s *Store) GetIdentityKeyPair() IdentityKeyPair {
	s.mu.Lock()
	defer s.mu.Unlock()
	return IdentityKeyPair{
		PubKey:  wacrypto.AsSignalPub(s.creds.SignedIdentityKey.Public),
		PrivKey: s.creds.SignedIdentityKey.Private,
	}
}

// GetLocalRegistrationId returns the cached registration id, minting and
// persisting a fresh one if none is set (spec §4.4).
func (s *Store) GetLocalRegistrationId(ctx context.Context) (uint16, error) {
	s.mu.Lock()
	if s.creds.RegistrationID != 0 {
		id := s.creds.RegistrationID
		s.mu.Unlock()
		return id, nil
	}
	s.logger.Println("warning: registrationId missing, generating a fresh one")
	var b [2]byte
	if _, err := io.ReadFull(rand.Reader, b[:]); err != nil {
		s.mu.Unlock()
		return 0, err
	}
	id := (uint16(b[0])<<8 | uint16(b[1])) & 0x3FFF
	if id == 0 {
		id = 1
	}
	s.creds.RegistrationID = id
	creds := s.creds
	s.mu.Unlock()

	if err := s.auth.SaveCreds(ctx, creds); err != nil {
		return 0, err
	}
	return id, nil
}

// SaveIdentity stores key33 for addr. Returns true if this is the first
// sighting or the key is unchanged, false if it differs from a
// previously-trusted key — either way the new key is accepted (TOFU with
// update, spec §4.4/§9).
func (s *Store) SaveIdentity(ctx context.Context, addr Address, key33 []byte) (bool, error) {
	existing := s.auth.LoadIdentity(addr.Name)
	unchanged := existing == nil || bytesEqual(existing.IdentityKey, key33)

	err := s.auth.Set(ctx, map[authstate.StoreType]map[string]any{
		authstate.TypeIdentity: {
			addr.Name: &authstate.IdentityValue{IdentityKey: key33, TrustLevel: 1},
		},
	})
	if err != nil {
		return false, err
	}
	return unchanged, nil
}

// LoadIdentity returns the 33B-prefixed identity key for addr, or nil.
func (s *Store) LoadIdentity(addr Address) []byte {
	v := s.auth.LoadIdentity(addr.Name)
	if v == nil {
		return nil
	}
	return v.IdentityKey
}

// IsTrustedIdentity always returns true under the TOFU policy; a change
// from the previously stored key is logged by SaveIdentity, never refused
// here (spec §4.4).
func (s *Store) IsTrustedIdentity(addr Address, key []byte) bool {
	return true
}

// LoadPreKey returns the pre-key for keyID, or nil if unknown/used.
func (s *Store) LoadPreKey(keyID uint32) *authstate.PreKeyValue {
	return s.auth.LoadPreKey(keyID)
}

// RemovePreKey marks keyID used (a one-time pre-key is consumed by exactly
// one pkmsg, spec invariant §3.6).
func (s *Store) RemovePreKey(ctx context.Context, keyID uint32) error {
	return s.auth.MarkPreKeyAsUsed(ctx, keyID)
}

// LoadSignedPreKey returns the active signed pre-key straight from creds.
func (s *Store) LoadSignedPreKey() wacreds.SignedPreKey {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.creds.SignedPreKey
}

// LoadSession returns the cached ratchet state bytes for addr, or nil.
func (s *Store) LoadSession(addr Address) []byte {
	return s.auth.LoadSession(authstate.SessionID{JID: addr.Name, Device: addr.DeviceID})
}

// StoreSession persists record for addr (critical type: synchronous).
func (s *Store) StoreSession(ctx context.Context, addr Address, record []byte) error {
	id := authstate.SessionID{JID: addr.Name, Device: addr.DeviceID}
	return s.auth.Set(ctx, map[authstate.StoreType]map[string]any{
		authstate.TypeSession: {id.String(): record},
	})
}

// ContainsSession reports whether a session exists for addr.
func (s *Store) ContainsSession(addr Address) bool {
	return s.LoadSession(addr) != nil
}

// DeleteSession removes the session for addr.
func (s *Store) DeleteSession(ctx context.Context, addr Address) error {
	id := authstate.SessionID{JID: addr.Name, Device: addr.DeviceID}
	return s.auth.Set(ctx, map[authstate.StoreType]map[string]any{
		authstate.TypeSession: {id.String(): nil},
	})
}

// DeleteAllSessions removes every session for name across all devices.
func (s *Store) DeleteAllSessions(ctx context.Context, name string) error {
	return s.auth.DeleteAllSessions(ctx, name)
}

// GetSubDeviceSessions returns every device id with a cached session under
// name (spec §4.4).
func (s *Store) GetSubDeviceSessions(name string) []uint32 {
	return s.auth.SubDeviceSessions(name)
}

// LoadSenderKey returns the cached sender key for (groupID, senderID).
func (s *Store) LoadSenderKey(groupID, senderID string) []byte {
	res := s.auth.Get(authstate.TypeSenderKey, []string{(authstate.SenderKeyID{GroupID: groupID, SenderID: senderID}).String()})
	for _, v := range res {
		return v.([]byte)
	}
	return nil
}

// StoreSenderKey persists the sender key for (groupID, senderID).
func (s *Store) StoreSenderKey(ctx context.Context, groupID, senderID string, key []byte) error {
	id := authstate.SenderKeyID{GroupID: groupID, SenderID: senderID}
	return s.auth.Set(ctx, map[authstate.StoreType]map[string]any{
		authstate.TypeSenderKey: {id.String(): key},
	})
}

// GetCompanionKey returns the opaque companion key passthrough (spec §9).
func (s *Store) GetCompanionKey() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.creds.CompanionKey
}

// UpdateCompanionKey replaces the opaque companion key and persists creds.
func (s *Store) UpdateCompanionKey(ctx context.Context, key []byte) error {
	s.mu.Lock()
	s.creds.CompanionKey = key
	creds := s.creds
	s.mu.Unlock()
	return s.auth.SaveCreds(ctx, creds)
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Registry indexes Stores by identity public key so multiple instances
// never share process-wide mutable state (spec §4.4, Design Note
// "Singleton with hidden state").
type Registry struct {
	mu     sync.Mutex
	stores map[string]*Store
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{stores: make(map[string]*Store)}
}

// GetOrCreate returns the Store for the given identity public key,
// constructing one from auth/creds on first access.
func (r *Registry) GetOrCreate(identityPub [32]byte, auth *authstate.Store, creds wacreds.Credentials, instanceID string) *Store {
	key := base64.StdEncoding.EncodeToString(identityPub[:])
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.stores[key]; ok {
		return s
	}
	s := NewStore(auth, creds, instanceID)
	r.stores[key] = s
	return s
}
