package instance

import "database/sql"

// schemaStatements creates the instance-registry table described in spec
// §6. Idempotent so EnsureSchema can run on every process start, matching
// authstate.EnsureSchema's migrate-on-boot style.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS instances (
		instance_id TEXT PRIMARY KEY,
		status TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
}

// EnsureSchema creates the instance-registry table if it does not exist.
func EnsureSchema(db *sql.DB) error {
	for _, stmt := range schemaStatements {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
