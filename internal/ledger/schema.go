// Package ledger records runner history in a local SQLite database.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// SchemaVersion is the current schema version.
const SchemaVersion = 2

const schemaV2 = `
CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY,
    started_at TEXT NOT NULL,
    finished_at TEXT,
    base_url TEXT NOT NULL,
    input_file TEXT NOT NULL,
    start_requests INTEGER NOT NULL DEFAULT 0,
    listed INTEGER NOT NULL DEFAULT 0,
    saved INTEGER NOT NULL DEFAULT 0,
    failed INTEGER NOT NULL DEFAULT 0,
    error TEXT
);

CREATE TABLE IF NOT EXISTS fetches (
    seq INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    simulation_id TEXT NOT NULL,
    status INTEGER NOT NULL,  -- HTTP status, 0 when the request never completed
    path TEXT,
    fetched_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_fetches_run ON fetches(run_id);

CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);

CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at TEXT NOT NULL
);
`

// migrateV1toV2 drops the one-row-per-simulation key on fetches so that a
// listing with repeated ids keeps every fetch
const migrateV1toV2 = `
ALTER TABLE fetches RENAME TO fetches_v1;

CREATE TABLE fetches (
    seq INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    simulation_id TEXT NOT NULL,
    status INTEGER NOT NULL,
    path TEXT,
    fetched_at TEXT NOT NULL
);

INSERT INTO fetches (run_id, simulation_id, status, path, fetched_at)
    SELECT run_id, simulation_id, status, path, fetched_at FROM fetches_v1 ORDER BY rowid;

DROP TABLE fetches_v1;
`

// InitSchema creates the tables on a fresh database and migrates older ones.
func InitSchema(ctx context.Context, db *sql.DB) error {
	var version sql.NullInt64
	err := db.QueryRowContext(ctx, `SELECT MAX(version) FROM schema_version`).Scan(&version)
	if err == nil && version.Valid && version.Int64 >= SchemaVersion {
		return nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if version.Valid && version.Int64 == 1 {
		if _, err := tx.ExecContext(ctx, migrateV1toV2); err != nil {
			return fmt.Errorf("failed to migrate fetches: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, schemaV2); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO schema_version (version, applied_at) VALUES (?, ?)`,
		SchemaVersion, time.Now().UTC().Format(time.RFC3339)); err != nil {
		return fmt.Errorf("failed to record schema version: %w", err)
	}

	return tx.Commit()
}
