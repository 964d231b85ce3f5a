// package repositories provides the persistence layer for library snapshots.
//
// The library core only produces and consumes opaque snapshot blobs; this
// package stores them per account in SQLite so the cache survives process
// restarts.
package repositories

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"skytune/internal/shared"
)

// SnapshotRepository stores one snapshot blob per account. It satisfies the
// library's SnapshotStore interface.
type SnapshotRepository struct {
	db *sql.DB
}

// NewSnapshotRepository creates a new SnapshotRepository with the given database connection
func NewSnapshotRepository(db *sql.DB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

// Migrate creates the snapshots table if it does not exist.
func (r *SnapshotRepository) Migrate() error {
	query := `
		CREATE TABLE IF NOT EXISTS snapshots (
			account TEXT PRIMARY KEY,
			schema INTEGER NOT NULL,
			payload BLOB NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`
	if _, err := r.db.Exec(query); err != nil {
		return fmt.Errorf("failed to create snapshots table: %w", err)
	}
	return nil
}

// Save upserts the snapshot blob for an account.
func (r *SnapshotRepository) Save(account string, blob []byte) error {
	query := `
		INSERT INTO snapshots (account, schema, payload, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(account) DO UPDATE SET
			schema = excluded.schema,
			payload = excluded.payload,
			updated_at = excluded.updated_at`

	if _, err := r.db.Exec(query, account, schemaOf(blob), blob, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

// Load retrieves the snapshot blob for an account. A missing row surfaces as
// [shared.ErrNotFound].
func (r *SnapshotRepository) Load(account string) ([]byte, error) {
	var blob []byte
	err := r.db.QueryRow("SELECT payload FROM snapshots WHERE account = ?", account).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: snapshot for account %s", shared.ErrNotFound, account)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}
	return blob, nil
}

// Delete removes the snapshot for an account. Deleting a missing snapshot is
// not an error.
func (r *SnapshotRepository) Delete(account string) error {
	if _, err := r.db.Exec("DELETE FROM snapshots WHERE account = ?", account); err != nil {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}
	return nil
}

// UpdatedAt reports when an account's snapshot was last written.
func (r *SnapshotRepository) UpdatedAt(account string) (time.Time, error) {
	var updated time.Time
	err := r.db.QueryRow("SELECT updated_at FROM snapshots WHERE account = ?", account).Scan(&updated)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, fmt.Errorf("%w: snapshot for account %s", shared.ErrNotFound, account)
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to read snapshot timestamp: %w", err)
	}
	return updated, nil
}

// schemaOf extracts the embedded schema version from a snapshot blob without
// fully decoding it, for the indexed column only. The blob stays the source
// of truth.
func schemaOf(blob []byte) int {
	var header struct {
		Schema int `json:"schema"`
	}
	if err := json.Unmarshal(blob, &header); err != nil {
		return 0
	}
	return header.Schema
}
