package authstate

import "database/sql"

// schemaStatements creates the tables described in spec §6. Statements are
// idempotent so EnsureSchema can run on every process start, matching the
// teacher's connect-then-migrate style in NewPostgresDB.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS credentials (
		instance_id TEXT PRIMARY KEY,
		registration_id INTEGER NOT NULL,
		noise_key TEXT NOT NULL,
		identity_key TEXT NOT NULL,
		adv_secret_key TEXT NOT NULL,
		signed_pre_key_id INTEGER,
		signed_pre_key_pub TEXT,
		signed_pre_key_priv TEXT,
		signed_pre_key_sig TEXT,
		companion_key TEXT,
		creds_json TEXT NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS sessions (
		instance_id TEXT NOT NULL,
		jid TEXT NOT NULL,
		device INTEGER NOT NULL,
		record JSONB NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (instance_id, jid, device)
	)`,
	`CREATE TABLE IF NOT EXISTS pre_keys (
		instance_id TEXT NOT NULL,
		key_id INTEGER NOT NULL,
		public_key TEXT NOT NULL,
		private_key TEXT NOT NULL,
		used BOOLEAN NOT NULL DEFAULT false,
		used_at TIMESTAMPTZ,
		PRIMARY KEY (instance_id, key_id)
	)`,
	`CREATE TABLE IF NOT EXISTS identities (
		instance_id TEXT NOT NULL,
		jid TEXT NOT NULL,
		identity_key TEXT NOT NULL,
		trust_level SMALLINT NOT NULL DEFAULT 0,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (instance_id, jid)
	)`,
	`CREATE TABLE IF NOT EXISTS sender_keys (
		instance_id TEXT NOT NULL,
		group_id TEXT NOT NULL,
		sender_id TEXT NOT NULL,
		sender_key BYTEA NOT NULL,
		PRIMARY KEY (instance_id, group_id, sender_id)
	)`,
	`CREATE TABLE IF NOT EXISTS app_state_keys (
		instance_id TEXT NOT NULL,
		key_id TEXT NOT NULL,
		key_data BYTEA NOT NULL,
		PRIMARY KEY (instance_id, key_id)
	)`,
	`CREATE TABLE IF NOT EXISTS app_state_versions (
		instance_id TEXT NOT NULL,
		name TEXT NOT NULL,
		version BIGINT NOT NULL,
		hash BYTEA NOT NULL,
		PRIMARY KEY (instance_id, name)
	)`,
}

// EnsureSchema creates the auth-state tables if they do not already exist.
func EnsureSchema(db *sql.DB) error {
	for _, stmt := range schemaStatements {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
