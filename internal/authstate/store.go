package authstate

import (
	"context"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/jaydenbeard/wasubstrate/internal/events"
	"github.com/jaydenbeard/wasubstrate/internal/metrics"
	"github.com/jaydenbeard/wasubstrate/internal/wacreds"
)

const debounceInterval = 100 * time.Millisecond

// lowPreKeyThreshold is the "fewer than 5 available" trigger for the
// prekeys.low event (spec §3, §6).
const lowPreKeyThreshold = 5

// Store is the mutex-guarded, debounce-flushing auth-state cache described
// in spec §4.3. One Store exists per instance; the underlying *sql.DB
// connection pool is process-wide (spec §5 "shared-resource policy").
type Store struct {
	db         *sql.DB
	instanceID string
	bus        *events.Bus
	logger     *log.Logger

	mu sync.Mutex

	preKeys          map[uint32]*PreKeyValue
	sessions         map[SessionID][]byte
	senderKeys       map[SenderKeyID][]byte
	identities       map[string]*IdentityValue
	appStateKeys     map[string][]byte
	appStateVersions map[string]*AppStateVersionValue

	newSessionIDs map[SessionID]struct{}

	dirty      map[StoreType]map[string]struct{}
	flushTimer *time.Timer

	markUsedCount int
}

// NewStore constructs a Store for instanceID over an already-connected
// database pool and event bus, and primes the cache from disk (spec §4.3
// "PreKey cache load").
func NewStore(ctx context.Context, db *sql.DB, bus *events.Bus, instanceID string) (*Store, error) {
	s := &Store{
		db:               db,
		instanceID:       instanceID,
		bus:              bus,
		logger:           log.New(os.Stdout, fmt.Sprintf("[AUTHSTATE:%s] ", instanceID), log.Ldate|log.Ltime|log.LUTC),
		preKeys:          make(map[uint32]*PreKeyValue),
		sessions:         make(map[SessionID][]byte),
		senderKeys:       make(map[SenderKeyID][]byte),
		identities:       make(map[string]*IdentityValue),
		appStateKeys:     make(map[string][]byte),
		appStateVersions: make(map[string]*AppStateVersionValue),
		dirty:            make(map[StoreType]map[string]struct{}),
		newSessionIDs:    make(map[SessionID]struct{}),
	}
	if err := s.preload(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) preload(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx, `SELECT key_id, public_key, private_key, used, used_at FROM pre_keys WHERE instance_id = $1`, s.instanceID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var keyID uint32
		var pub, priv string
		var used bool
		var usedAt sql.NullTime
		if err := rows.Scan(&keyID, &pub, &priv, &used, &usedAt); err != nil {
			return err
		}
		pk, err := decodePreKeyRow(keyID, pub, priv, used, usedAt)
		if err != nil {
			return err
		}
		s.preKeys[keyID] = pk
	}

	sessRows, err := s.db.QueryContext(ctx, `SELECT jid, device, record FROM sessions WHERE instance_id = $1`, s.instanceID)
	if err != nil {
		return err
	}
	defer sessRows.Close()
	for sessRows.Next() {
		var jid string
		var device uint32
		var record []byte
		if err := sessRows.Scan(&jid, &device, &record); err != nil {
			return err
		}
		env, err := DecodeSessionEnvelope(record)
		if err != nil {
			s.logger.Printf("skipping malformed session record for %s:%d: %v", jid, device, err)
			continue
		}
		s.sessions[SessionID{JID: jid, Device: device}] = env.AsBytes()
	}

	idRows, err := s.db.QueryContext(ctx, `SELECT jid, identity_key, trust_level, updated_at FROM identities WHERE instance_id = $1`, s.instanceID)
	if err != nil {
		return err
	}
	defer idRows.Close()
	for idRows.Next() {
		var jid, keyB64 string
		var trust uint8
		var updatedAt time.Time
		if err := idRows.Scan(&jid, &keyB64, &trust, &updatedAt); err != nil {
			return err
		}
		key, err := base64.StdEncoding.DecodeString(keyB64)
		if err != nil {
			return err
		}
		if len(key) == 32 {
			key = append([]byte{0x05}, key...)
		}
		s.identities[jid] = &IdentityValue{IdentityKey: key, TrustLevel: trust, UpdatedAt: updatedAt.UnixMilli()}
	}

	skRows, err := s.db.QueryContext(ctx, `SELECT group_id, sender_id, sender_key FROM sender_keys WHERE instance_id = $1`, s.instanceID)
	if err != nil {
		return err
	}
	defer skRows.Close()
	for skRows.Next() {
		var groupID, senderID string
		var key []byte
		if err := skRows.Scan(&groupID, &senderID, &key); err != nil {
			return err
		}
		s.senderKeys[SenderKeyID{GroupID: groupID, SenderID: senderID}] = key
	}

	askRows, err := s.db.QueryContext(ctx, `SELECT key_id, key_data FROM app_state_keys WHERE instance_id = $1`, s.instanceID)
	if err != nil {
		return err
	}
	defer askRows.Close()
	for askRows.Next() {
		var keyID string
		var data []byte
		if err := askRows.Scan(&keyID, &data); err != nil {
			return err
		}
		s.appStateKeys[keyID] = data
	}

	avRows, err := s.db.QueryContext(ctx, `SELECT name, version, hash FROM app_state_versions WHERE instance_id = $1`, s.instanceID)
	if err != nil {
		return err
	}
	defer avRows.Close()
	for avRows.Next() {
		var name string
		var version uint64
		var hash []byte
		if err := avRows.Scan(&name, &version, &hash); err != nil {
			return err
		}
		s.appStateVersions[name] = &AppStateVersionValue{Version: version, Hash: hash}
	}
	return nil
}

func decodePreKeyRow(keyID uint32, pubB64, privB64 string, used bool, usedAt sql.NullTime) (*PreKeyValue, error) {
	pub, err := base64.StdEncoding.DecodeString(pubB64)
	if err != nil {
		return nil, err
	}
	priv, err := base64.StdEncoding.DecodeString(privB64)
	if err != nil {
		return nil, err
	}
	pk := &PreKeyValue{KeyID: keyID, PublicKey: pub, PrivateKey: priv, Used: used}
	if usedAt.Valid {
		ms := usedAt.Time.UnixMilli()
		pk.UsedAt = &ms
	}
	return pk, nil
}

// Get returns the cached entries of the given type, filtered to ids if
// non-empty. A nil/absent result for any requested id is simply omitted
// from the returned map (spec §4.3 "read failures return absence").
func (s *Store) Get(storeType StoreType, ids []string) map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()

	want := func(id string) bool {
		if len(ids) == 0 {
			return true
		}
		for _, wantID := range ids {
			if wantID == id {
				return true
			}
		}
		return false
	}

	out := make(map[string]any)
	switch storeType {
	case TypePreKey:
		for id, v := range s.preKeys {
			key := fmt.Sprintf("%d", id)
			if want(key) {
				out[key] = v
			}
		}
	case TypeSession:
		for id, v := range s.sessions {
			key := id.String()
			if want(key) {
				out[key] = v
			}
		}
	case TypeSenderKey:
		for id, v := range s.senderKeys {
			key := id.String()
			if want(key) {
				out[key] = v
			}
		}
	case TypeIdentity:
		for id, v := range s.identities {
			if want(id) {
				out[id] = v
			}
		}
	case TypeAppStateKey:
		for id, v := range s.appStateKeys {
			if want(id) {
				out[id] = v
			}
		}
	case TypeAppStateVersion:
		for id, v := range s.appStateVersions {
			if want(id) {
				out[id] = v
			}
		}
	}
	return out
}

// Set applies a batch keyed by type then id; a nil value deletes. Critical
// types (session, identity) flush synchronously before Set returns;
// everything else is cached immediately and flushed on a 100ms debounce
// (spec §4.3, §5 ordering guarantees 1/3/4).
func (s *Store) Set(ctx context.Context, batch map[StoreType]map[string]any) error {
	s.mu.Lock()
	var criticalTouched []StoreType
	for storeType, entries := range batch {
		for id, value := range entries {
			s.applyLocked(storeType, id, value)
			s.markDirtyLocked(storeType, id)
		}
		if storeType.critical() {
			criticalTouched = append(criticalTouched, storeType)
		}
	}
	s.scheduleDebounceLocked()
	s.mu.Unlock()

	for _, st := range criticalTouched {
		if err := s.flushType(ctx, st); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) applyLocked(storeType StoreType, id string, value any) {
	switch storeType {
	case TypePreKey:
		var keyID uint32
		fmt.Sscanf(id, "%d", &keyID)
		if value == nil {
			delete(s.preKeys, keyID)
			return
		}
		s.preKeys[keyID] = value.(*PreKeyValue)
	case TypeSession:
		sid, ok := ParseSessionID(id)
		if !ok {
			return
		}
		if value == nil {
			delete(s.sessions, sid)
			delete(s.newSessionIDs, sid)
			return
		}
		if _, existed := s.sessions[sid]; !existed {
			s.newSessionIDs[sid] = struct{}{}
		}
		s.sessions[sid] = value.([]byte)
	case TypeSenderKey:
		parts := splitSenderKeyID(id)
		if value == nil {
			delete(s.senderKeys, parts)
			return
		}
		s.senderKeys[parts] = value.([]byte)
	case TypeIdentity:
		if value == nil {
			delete(s.identities, id)
			return
		}
		next := value.(*IdentityValue)
		if existing, ok := s.identities[id]; ok && !bytesEqual(existing.IdentityKey, next.IdentityKey) {
			s.logger.Printf("identity changed for %s (trust-on-first-use update)", id)
		}
		s.identities[id] = next
	case TypeAppStateKey:
		if value == nil {
			delete(s.appStateKeys, id)
			return
		}
		s.appStateKeys[id] = value.([]byte)
	case TypeAppStateVersion:
		if value == nil {
			delete(s.appStateVersions, id)
			return
		}
		s.appStateVersions[id] = value.(*AppStateVersionValue)
	}
}

func splitSenderKeyID(id string) SenderKeyID {
	for i := len(id) - 1; i >= 0; i-- {
		if id[i] == ':' {
			return SenderKeyID{GroupID: id[:i], SenderID: id[i+1:]}
		}
	}
	return SenderKeyID{GroupID: id}
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

func (s *Store) markDirtyLocked(storeType StoreType, id string) {
	if s.dirty[storeType] == nil {
		s.dirty[storeType] = make(map[string]struct{})
	}
	s.dirty[storeType][id] = struct{}{}
}

func (s *Store) scheduleDebounceLocked() {
	if s.flushTimer != nil {
		return
	}
	s.flushTimer = time.AfterFunc(debounceInterval, s.runDebouncedFlush)
}

func (s *Store) runDebouncedFlush() {
	ctx := context.Background()
	s.mu.Lock()
	s.flushTimer = nil
	pending := s.dirty
	s.dirty = make(map[StoreType]map[string]struct{})
	s.mu.Unlock()

	for storeType := range pending {
		if storeType.critical() {
			continue // already flushed synchronously in Set
		}
		if err := s.flushType(ctx, storeType); err != nil {
			s.logger.Printf("debounced flush of %s failed, will retry next cycle: %v", storeType, err)
			s.mu.Lock()
			for id := range pending[storeType] {
				s.markDirtyLocked(storeType, id)
			}
			s.scheduleDebounceLocked()
			s.mu.Unlock()
		}
	}
}

// flushType writes every cached entry of storeType to the database. It is
// called synchronously for critical types and from the debounce timer for
// everything else.
func (s *Store) flushType(ctx context.Context, storeType StoreType) error {
	start := time.Now()
	err := s.dispatchFlush(ctx, storeType)
	metrics.RecordFlushLatency(storeType.critical(), time.Since(start).Seconds())
	return err
}

func (s *Store) dispatchFlush(ctx context.Context, storeType StoreType) error {
	switch storeType {
	case TypePreKey:
		return s.flushPreKeys(ctx)
	case TypeSession:
		return s.flushSessions(ctx)
	case TypeSenderKey:
		return s.flushSenderKeys(ctx)
	case TypeIdentity:
		return s.flushIdentities(ctx)
	case TypeAppStateKey:
		return s.flushAppStateKeys(ctx)
	case TypeAppStateVersion:
		return s.flushAppStateVersions(ctx)
	}
	return nil
}

func (s *Store) flushPreKeys(ctx context.Context) error {
	s.mu.Lock()
	snapshot := make(map[uint32]*PreKeyValue, len(s.preKeys))
	for k, v := range s.preKeys {
		snapshot[k] = v
	}
	s.mu.Unlock()

	for keyID, pk := range snapshot {
		var usedAt *time.Time
		if pk.UsedAt != nil {
			t := time.UnixMilli(*pk.UsedAt)
			usedAt = &t
		}
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO pre_keys (instance_id, key_id, public_key, private_key, used, used_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (instance_id, key_id) DO UPDATE
			SET public_key = EXCLUDED.public_key, private_key = EXCLUDED.private_key,
			    used = EXCLUDED.used, used_at = EXCLUDED.used_at`,
			s.instanceID, keyID, base64.StdEncoding.EncodeToString(pk.PublicKey),
			base64.StdEncoding.EncodeToString(pk.PrivateKey), pk.Used, usedAt)
		if err != nil {
			return newStoreErr(IOFailure, "pre_keys upsert: %v", err)
		}
	}
	return nil
}

func (s *Store) flushSessions(ctx context.Context) error {
	s.mu.Lock()
	snapshot := make(map[SessionID][]byte, len(s.sessions))
	for k, v := range s.sessions {
		snapshot[k] = v
	}
	isNew := make(map[SessionID]bool, len(s.newSessionIDs))
	for k := range s.newSessionIDs {
		isNew[k] = true
	}
	s.newSessionIDs = make(map[SessionID]struct{})
	s.mu.Unlock()

	for id, record := range snapshot {
		envelope := EncodeSessionEnvelope(record)
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO sessions (instance_id, jid, device, record, updated_at)
			VALUES ($1, $2, $3, $4::jsonb, now())
			ON CONFLICT (instance_id, jid, device) DO UPDATE
			SET record = EXCLUDED.record, updated_at = now()`,
			s.instanceID, id.JID, id.Device, string(envelope))
		if err != nil {
			return newStoreErr(IOFailure, "sessions upsert: %v", err)
		}
		s.bus.Emit(ctx, s.instanceID, events.SessionStored, events.SessionStoredPayload{JID: id.JID, Device: id.Device})
		metrics.RecordSessionStored(isNew[id])
	}
	return nil
}

func (s *Store) flushSenderKeys(ctx context.Context) error {
	s.mu.Lock()
	snapshot := make(map[SenderKeyID][]byte, len(s.senderKeys))
	for k, v := range s.senderKeys {
		snapshot[k] = v
	}
	s.mu.Unlock()

	for id, key := range snapshot {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO sender_keys (instance_id, group_id, sender_id, sender_key)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (instance_id, group_id, sender_id) DO UPDATE SET sender_key = EXCLUDED.sender_key`,
			s.instanceID, id.GroupID, id.SenderID, key)
		if err != nil {
			return newStoreErr(IOFailure, "sender_keys upsert: %v", err)
		}
	}
	return nil
}

func (s *Store) flushIdentities(ctx context.Context) error {
	s.mu.Lock()
	snapshot := make(map[string]*IdentityValue, len(s.identities))
	for k, v := range s.identities {
		snapshot[k] = v
	}
	s.mu.Unlock()

	for jid, id := range snapshot {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO identities (instance_id, jid, identity_key, trust_level, updated_at)
			VALUES ($1, $2, $3, $4, now())
			ON CONFLICT (instance_id, jid) DO UPDATE
			SET identity_key = EXCLUDED.identity_key, trust_level = EXCLUDED.trust_level, updated_at = now()`,
			s.instanceID, jid, base64.StdEncoding.EncodeToString(id.IdentityKey), id.TrustLevel)
		if err != nil {
			return newStoreErr(IOFailure, "identities upsert: %v", err)
		}
		s.bus.Emit(ctx, s.instanceID, events.IdentityChanged, events.IdentityChangedPayload{JID: jid})
		metrics.RecordIdentityChange(s.instanceID)
	}
	return nil
}

func (s *Store) flushAppStateKeys(ctx context.Context) error {
	s.mu.Lock()
	snapshot := make(map[string][]byte, len(s.appStateKeys))
	for k, v := range s.appStateKeys {
		snapshot[k] = v
	}
	s.mu.Unlock()

	for keyID, data := range snapshot {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO app_state_keys (instance_id, key_id, key_data)
			VALUES ($1, $2, $3)
			ON CONFLICT (instance_id, key_id) DO UPDATE SET key_data = EXCLUDED.key_data`,
			s.instanceID, keyID, data)
		if err != nil {
			return newStoreErr(IOFailure, "app_state_keys upsert: %v", err)
		}
	}
	return nil
}

func (s *Store) flushAppStateVersions(ctx context.Context) error {
	s.mu.Lock()
	snapshot := make(map[string]*AppStateVersionValue, len(s.appStateVersions))
	for k, v := range s.appStateVersions {
		snapshot[k] = v
	}
	s.mu.Unlock()

	for name, v := range snapshot {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO app_state_versions (instance_id, name, version, hash)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (instance_id, name) DO UPDATE SET version = EXCLUDED.version, hash = EXCLUDED.hash`,
			s.instanceID, name, v.Version, v.Hash)
		if err != nil {
			return newStoreErr(IOFailure, "app_state_versions upsert: %v", err)
		}
	}
	return nil
}

// LoadCreds reads the single credentials row for this instance.
func (s *Store) LoadCreds(ctx context.Context) (wacreds.Credentials, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT creds_json FROM credentials WHERE instance_id = $1`, s.instanceID).Scan(&data)
	if err == sql.ErrNoRows {
		return wacreds.Credentials{}, newStoreErr(NotFound, "no credentials for instance %s", s.instanceID)
	}
	if err != nil {
		return wacreds.Credentials{}, newStoreErr(IOFailure, "credentials select: %v", err)
	}
	return DecodeCredentials(data)
}

// SaveCreds upserts the single credentials row (critical: synchronous).
func (s *Store) SaveCreds(ctx context.Context, creds wacreds.Credentials) error {
	data, err := EncodeCredentials(creds)
	if err != nil {
		return err
	}
	signedPreKeyID := sql.NullInt64{Int64: int64(creds.SignedPreKey.KeyID), Valid: true}
	noiseKeyJSON, err := json.Marshal(keyPairToJSON(creds.NoiseKey))
	if err != nil {
		return err
	}
	identityKeyJSON, err := json.Marshal(keyPairToJSON(creds.SignedIdentityKey))
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO credentials (instance_id, registration_id, noise_key, identity_key, adv_secret_key,
			signed_pre_key_id, signed_pre_key_pub, signed_pre_key_priv, signed_pre_key_sig, companion_key, creds_json, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, now())
		ON CONFLICT (instance_id) DO UPDATE SET
			registration_id = EXCLUDED.registration_id,
			noise_key = EXCLUDED.noise_key,
			identity_key = EXCLUDED.identity_key,
			adv_secret_key = EXCLUDED.adv_secret_key,
			signed_pre_key_id = EXCLUDED.signed_pre_key_id,
			signed_pre_key_pub = EXCLUDED.signed_pre_key_pub,
			signed_pre_key_priv = EXCLUDED.signed_pre_key_priv,
			signed_pre_key_sig = EXCLUDED.signed_pre_key_sig,
			companion_key = EXCLUDED.companion_key,
			creds_json = EXCLUDED.creds_json,
			updated_at = now()`,
		s.instanceID,
		creds.RegistrationID,
		string(noiseKeyJSON),
		string(identityKeyJSON),
		creds.AdvSecretKeyBase64(),
		signedPreKeyID,
		base64.StdEncoding.EncodeToString(creds.SignedPreKey.KeyPair.Public[:]),
		base64.StdEncoding.EncodeToString(creds.SignedPreKey.KeyPair.Private[:]),
		base64.StdEncoding.EncodeToString(creds.SignedPreKey.Signature[:]),
		base64.StdEncoding.EncodeToString(creds.CompanionKey),
		data,
	)
	if err != nil {
		return newStoreErr(IOFailure, "credentials upsert: %v", err)
	}
	s.bus.Emit(ctx, s.instanceID, events.CredsUpdate, creds)
	return nil
}

// MarkPreKeyAsUsed sets used=true, usedAt=now for keyID and flushes that
// pre-key synchronously (a used pre-key must never be handed out again,
// spec invariant §3.6, so it cannot wait on the debounce window). Every
// 10th call schedules an async GC pass (spec §4.3).
func (s *Store) MarkPreKeyAsUsed(ctx context.Context, keyID uint32) error {
	s.mu.Lock()
	pk, ok := s.preKeys[keyID]
	if !ok {
		s.mu.Unlock()
		return newStoreErr(NotFound, "pre-key %d not found", keyID)
	}
	now := time.Now().UnixMilli()
	pk.Used = true
	pk.UsedAt = &now
	s.markUsedCount++
	shouldGC := s.markUsedCount%10 == 0
	s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, `
		UPDATE pre_keys SET used = true, used_at = $3 WHERE instance_id = $1 AND key_id = $2`,
		s.instanceID, keyID, time.UnixMilli(now)); err != nil {
		return newStoreErr(IOFailure, "mark pre-key used: %v", err)
	}

	if shouldGC {
		go func() {
			if err := s.CleanupUsedPreKeys(context.Background()); err != nil {
				s.logger.Printf("pre-key GC pass failed: %v", err)
			}
		}()
	}

	if remaining := s.CountAvailablePreKeys(); remaining < lowPreKeyThreshold {
		s.bus.Emit(ctx, s.instanceID, events.PreKeysLow, events.PreKeysLowPayload{Count: remaining})
	}
	return nil
}

// CleanupUsedPreKeys physically deletes every used pre-key row for this
// instance, in and out of cache.
func (s *Store) CleanupUsedPreKeys(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM pre_keys WHERE instance_id = $1 AND used = true`, s.instanceID); err != nil {
		return newStoreErr(IOFailure, "pre-key GC: %v", err)
	}
	s.mu.Lock()
	for id, pk := range s.preKeys {
		if pk.Used {
			delete(s.preKeys, id)
		}
	}
	s.mu.Unlock()
	return nil
}

// CountAvailablePreKeys returns the number of unused pre-keys cached for
// this instance and updates the pre-keys-remaining gauge. It emits no
// event itself; MarkPreKeyAsUsed emits prekeys.low when this count drops
// below lowPreKeyThreshold.
func (s *Store) CountAvailablePreKeys() uint32 {
	s.mu.Lock()
	var n uint32
	for _, pk := range s.preKeys {
		if !pk.Used {
			n++
		}
	}
	s.mu.Unlock()
	metrics.UpdatePreKeysRemaining(s.instanceID, n)
	return n
}

// LoadPreKey returns the cached pre-key, or nil if absent/used.
func (s *Store) LoadPreKey(keyID uint32) *PreKeyValue {
	s.mu.Lock()
	defer s.mu.Unlock()
	pk, ok := s.preKeys[keyID]
	if !ok || pk.Used {
		return nil
	}
	return pk
}

// LoadSession returns the cached session record, or nil if none exists.
func (s *Store) LoadSession(id SessionID) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions[id]
}

// LoadIdentity returns the cached identity, or nil if none exists.
func (s *Store) LoadIdentity(jid string) *IdentityValue {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identities[jid]
}

// SubDeviceSessions scans cached session keys for a given bare name,
// returning their device ids (spec §4.4 getSubDeviceSessions).
func (s *Store) SubDeviceSessions(name string) []uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var devices []uint32
	for id := range s.sessions {
		if id.JID == name {
			devices = append(devices, id.Device)
		}
	}
	return devices
}

// DeleteAllSessions removes every cached/persisted session for name.
func (s *Store) DeleteAllSessions(ctx context.Context, name string) error {
	s.mu.Lock()
	for id := range s.sessions {
		if id.JID == name {
			delete(s.sessions, id)
		}
	}
	s.mu.Unlock()
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE instance_id = $1 AND jid = $2`, s.instanceID, name); err != nil {
		return newStoreErr(IOFailure, "delete all sessions: %v", err)
	}
	return nil
}
