package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// Run is one execution of the lifecycle sequence
type Run struct {
	ID            string
	StartedAt     time.Time
	FinishedAt    time.Time
	BaseURL       string
	InputFile     string
	StartRequests int
	Listed        int
	Saved         int
	Failed        int
	Error         string
}

// Fetch is the outcome of fetching one simulation during a run
type Fetch struct {
	RunID        string
	SimulationID string
	// Status is the HTTP status, 0 when no response was received
	Status    int
	Path      string
	FetchedAt time.Time
}

// Ledger stores runs and fetch outcomes. A nil *Ledger is valid and records
// nothing; reads on it return empty results.
type Ledger struct {
	db   *sql.DB
	path string
}

// Open opens (creating if needed) the ledger database at path
func Open(path string) (*Ledger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create ledger directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := InitSchema(context.Background(), db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Ledger{db: db, path: path}, nil
}

// Path returns the database file location
func (l *Ledger) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// Close closes the database. Safe to call on nil receiver.
func (l *Ledger) Close() error {
	if l == nil || l.db == nil {
		return nil
	}
	return l.db.Close()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s sql.NullString) time.Time {
	if !s.Valid || s.String == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s.String)
	if err != nil {
		return time.Time{}
	}
	return t
}

// BeginRun inserts a new run row. ID and StartedAt must be set.
func (l *Ledger) BeginRun(ctx context.Context, run *Run) error {
	if l == nil {
		return nil
	}
	if run.ID == "" {
		return fmt.Errorf("run id is required")
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}

	_, err := l.db.ExecContext(ctx,
		`INSERT INTO runs (id, started_at, base_url, input_file) VALUES (?, ?, ?, ?)`,
		run.ID, formatTime(run.StartedAt), run.BaseURL, run.InputFile)
	if err != nil {
		return fmt.Errorf("failed to insert run %s: %w", run.ID, err)
	}
	return nil
}

// RecordFetch stores the outcome of one simulation fetch
func (l *Ledger) RecordFetch(ctx context.Context, f Fetch) error {
	if l == nil {
		return nil
	}
	if f.FetchedAt.IsZero() {
		f.FetchedAt = time.Now()
	}

	_, err := l.db.ExecContext(ctx,
		`INSERT INTO fetches (run_id, simulation_id, status, path, fetched_at) VALUES (?, ?, ?, ?, ?)`,
		f.RunID, f.SimulationID, f.Status, f.Path, formatTime(f.FetchedAt))
	if err != nil {
		return fmt.Errorf("failed to record fetch of %s: %w", f.SimulationID, err)
	}
	return nil
}

// FinishRun writes the final counters and error of a run
func (l *Ledger) FinishRun(ctx context.Context, run *Run) error {
	if l == nil {
		return nil
	}
	if run.FinishedAt.IsZero() {
		run.FinishedAt = time.Now()
	}

	res, err := l.db.ExecContext(ctx,
		`UPDATE runs SET finished_at = ?, start_requests = ?, listed = ?, saved = ?, failed = ?, error = ? WHERE id = ?`,
		formatTime(run.FinishedAt), run.StartRequests, run.Listed, run.Saved, run.Failed, run.Error, run.ID)
	if err != nil {
		return fmt.Errorf("failed to finish run %s: %w", run.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("run %s not found", run.ID)
	}
	return nil
}

// RecentRuns returns up to limit runs, newest first
func (l *Ledger) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	if l == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 10
	}

	rows, err := l.db.QueryContext(ctx, `
		SELECT id, started_at, finished_at, base_url, input_file, start_requests, listed, saved, failed, error
		FROM runs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var started, finished, runErr sql.NullString
		if err := rows.Scan(&r.ID, &started, &finished, &r.BaseURL, &r.InputFile,
			&r.StartRequests, &r.Listed, &r.Saved, &r.Failed, &runErr); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		r.StartedAt = parseTime(started)
		r.FinishedAt = parseTime(finished)
		r.Error = runErr.String
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Fetches returns the fetch outcomes of a run in the order they were recorded
func (l *Ledger) Fetches(ctx context.Context, runID string) ([]Fetch, error) {
	if l == nil {
		return nil, nil
	}

	rows, err := l.db.QueryContext(ctx, `
		SELECT run_id, simulation_id, status, path, fetched_at
		FROM fetches WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query fetches: %w", err)
	}
	defer rows.Close()

	var fetches []Fetch
	for rows.Next() {
		var f Fetch
		var path, fetched sql.NullString
		if err := rows.Scan(&f.RunID, &f.SimulationID, &f.Status, &path, &fetched); err != nil {
			return nil, fmt.Errorf("failed to scan fetch: %w", err)
		}
		f.Path = path.String
		f.FetchedAt = parseTime(fetched)
		fetches = append(fetches, f)
	}
	return fetches, rows.Err()
}
