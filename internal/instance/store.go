// Package instance implements the core's instance-registry boundary
// (spec §6): a durable (instanceId, createdAt, updatedAt, status) row per
// logical device registration, plus the Consul service-discovery
// registration an orchestrator process performs alongside it.
package instance

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/jaydenbeard/wasubstrate/internal/metrics"
)

// Record is one row of the instance registry.
type Record struct {
	InstanceID string
	Status     Status
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Store is the Postgres-backed instance registry. One Store is shared
// process-wide; callers pass instanceID to scope each call, mirroring the
// authstate.Store convention of a single shared DB handle.
type Store struct {
	db     *sql.DB
	logger *log.Logger
}

// NewStore wires a Store to an already-connected, already-migrated DB
// handle.
func NewStore(db *sql.DB) *Store {
	return &Store{
		db:     db,
		logger: log.New(os.Stdout, "[INSTANCE] ", log.Ldate|log.Ltime|log.LUTC),
	}
}

// Upsert creates the row if absent or updates its status and updatedAt.
// Called on every lifecycle transition: connecting, qr_code, connected
// (pairing success), disconnected (connection loss).
func (s *Store) Upsert(ctx context.Context, instanceID string, status Status) error {
	if !status.valid() {
		return fmt.Errorf("instance: invalid status %q", status)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO instances (instance_id, status, created_at, updated_at)
		VALUES ($1, $2, now(), now())
		ON CONFLICT (instance_id) DO UPDATE SET status = $2, updated_at = now()`,
		instanceID, string(status))
	if err != nil {
		return fmt.Errorf("instance: upsert %s: %w", instanceID, err)
	}
	metrics.UpdateInstanceStatus(instanceID, string(status), allStatuses)
	return nil
}

// MarkConnected upserts status=connected, the transition spec §6 names
// explicitly for pairing success.
func (s *Store) MarkConnected(ctx context.Context, instanceID string) error {
	return s.Upsert(ctx, instanceID, Connected)
}

// MarkDisconnected upserts status=disconnected, the transition spec §6
// names explicitly for connection loss.
func (s *Store) MarkDisconnected(ctx context.Context, instanceID string) error {
	return s.Upsert(ctx, instanceID, Disconnected)
}

// Get returns the current record for instanceID, or nil if no row exists.
func (s *Store) Get(ctx context.Context, instanceID string) (*Record, error) {
	var r Record
	var status string
	err := s.db.QueryRowContext(ctx,
		`SELECT instance_id, status, created_at, updated_at FROM instances WHERE instance_id = $1`,
		instanceID,
	).Scan(&r.InstanceID, &status, &r.CreatedAt, &r.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("instance: get %s: %w", instanceID, err)
	}
	r.Status = Status(status)
	return &r, nil
}

// List returns every instance row, ordered by creation time. cmd/waservice
// calls it at startup to log how many instances are known.
func (s *Store) List(ctx context.Context) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT instance_id, status, created_at, updated_at FROM instances ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("instance: list: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var r Record
		var status string
		if err := rows.Scan(&r.InstanceID, &status, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("instance: list scan: %w", err)
		}
		r.Status = Status(status)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Delete removes an instance's registry row, used on explicit logout.
func (s *Store) Delete(ctx context.Context, instanceID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM instances WHERE instance_id = $1`, instanceID); err != nil {
		return fmt.Errorf("instance: delete %s: %w", instanceID, err)
	}
	return nil
}
