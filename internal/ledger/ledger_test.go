package ledger

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestLedger(t *testing.T) *Ledger {
	t.Helper()
	l, err := Open(filepath.Join(t.TempDir(), "nested", "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return l
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.db")

	l, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, l.BeginRun(context.Background(), &Run{ID: NewRunID(), BaseURL: "u", InputFile: "f"}))
	require.NoError(t, l.Close())

	l, err = Open(path)
	require.NoError(t, err)
	defer l.Close()
	assert.Equal(t, path, l.Path())

	runs, err := l.RecentRuns(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestRunLifecycle(t *testing.T) {
	ctx := context.Background()
	l := openTestLedger(t)

	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	run := &Run{
		ID:        NewRunID(),
		StartedAt: started,
		BaseURL:   "http://localhost:8009/api",
		InputFile: "your_file.xml",
	}
	require.NoError(t, l.BeginRun(ctx, run))

	require.NoError(t, l.RecordFetch(ctx, Fetch{RunID: run.ID, SimulationID: "1", Status: 200, Path: "simulation_1.json"}))
	require.NoError(t, l.RecordFetch(ctx, Fetch{RunID: run.ID, SimulationID: "2", Status: 404}))

	run.FinishedAt = started.Add(25 * time.Second)
	run.StartRequests = 3
	run.Listed = 2
	run.Saved = 1
	run.Failed = 1
	require.NoError(t, l.FinishRun(ctx, run))

	runs, err := l.RecentRuns(ctx, 5)
	require.NoError(t, err)
	require.Len(t, runs, 1)

	got := runs[0]
	assert.Equal(t, run.ID, got.ID)
	assert.True(t, got.StartedAt.Equal(started))
	assert.True(t, got.FinishedAt.Equal(run.FinishedAt))
	assert.Equal(t, 3, got.StartRequests)
	assert.Equal(t, 2, got.Listed)
	assert.Equal(t, 1, got.Saved)
	assert.Equal(t, 1, got.Failed)
	assert.Empty(t, got.Error)

	fetches, err := l.Fetches(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, fetches, 2)
	assert.Equal(t, "1", fetches[0].SimulationID)
	assert.Equal(t, 200, fetches[0].Status)
	assert.Equal(t, "simulation_1.json", fetches[0].Path)
	assert.Equal(t, "2", fetches[1].SimulationID)
	assert.Equal(t, 404, fetches[1].Status)
	assert.Empty(t, fetches[1].Path)
	assert.False(t, fetches[1].FetchedAt.IsZero())
}

func TestRecordFetchKeepsRepeatedIDs(t *testing.T) {
	ctx := context.Background()
	l := openTestLedger(t)

	run := &Run{ID: NewRunID()}
	require.NoError(t, l.BeginRun(ctx, run))
	require.NoError(t, l.RecordFetch(ctx, Fetch{RunID: run.ID, SimulationID: "1", Status: 200, Path: "simulation_1.json"}))
	require.NoError(t, l.RecordFetch(ctx, Fetch{RunID: run.ID, SimulationID: "1", Status: 500}))
	require.NoError(t, l.RecordFetch(ctx, Fetch{RunID: run.ID, SimulationID: "2", Status: 200, Path: "simulation_2.json"}))

	fetches, err := l.Fetches(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, fetches, 3)
	assert.Equal(t, 200, fetches[0].Status)
	assert.Equal(t, "1", fetches[1].SimulationID)
	assert.Equal(t, 500, fetches[1].Status)
	assert.Equal(t, "2", fetches[2].SimulationID)
}

const schemaV1Fetches = `
CREATE TABLE runs (
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
CREATE TABLE fetches (
    run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    simulation_id TEXT NOT NULL,
    status INTEGER NOT NULL,
    path TEXT,
    fetched_at TEXT NOT NULL,
    PRIMARY KEY (run_id, simulation_id)
);
CREATE TABLE schema_version (version INTEGER PRIMARY KEY, applied_at TEXT NOT NULL);
INSERT INTO schema_version VALUES (1, '2026-01-01T00:00:00Z');
INSERT INTO runs (id, started_at, base_url, input_file) VALUES ('old-run', '2026-01-01T00:00:00Z', 'u', 'f');
INSERT INTO fetches VALUES ('old-run', '7', 200, 'simulation_7.json', '2026-01-01T00:00:01Z');
`

func TestOpenMigratesVersion1(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "runs.db")

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, schemaV1Fetches)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	l, err := Open(path)
	require.NoError(t, err)
	defer l.Close()

	fetches, err := l.Fetches(ctx, "old-run")
	require.NoError(t, err)
	require.Len(t, fetches, 1)
	assert.Equal(t, "7", fetches[0].SimulationID)
	assert.Equal(t, "simulation_7.json", fetches[0].Path)

	require.NoError(t, l.RecordFetch(ctx, Fetch{RunID: "old-run", SimulationID: "7", Status: 404}))
	fetches, err = l.Fetches(ctx, "old-run")
	require.NoError(t, err)
	assert.Len(t, fetches, 2)
}

func TestFinishRunRecordsError(t *testing.T) {
	ctx := context.Background()
	l := openTestLedger(t)

	run := &Run{ID: NewRunID()}
	require.NoError(t, l.BeginRun(ctx, run))
	run.Error = "failed to list simulations: connection refused"
	require.NoError(t, l.FinishRun(ctx, run))

	runs, err := l.RecentRuns(ctx, 1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, run.Error, runs[0].Error)
}

func TestFinishUnknownRun(t *testing.T) {
	l := openTestLedger(t)
	err := l.FinishRun(context.Background(), &Run{ID: NewRunID()})
	assert.Error(t, err)
}

func TestBeginRunRequiresID(t *testing.T) {
	l := openTestLedger(t)
	assert.Error(t, l.BeginRun(context.Background(), &Run{}))
}

func TestRecordFetchRequiresRun(t *testing.T) {
	l := openTestLedger(t)
	err := l.RecordFetch(context.Background(), Fetch{RunID: "missing", SimulationID: "1", Status: 200})
	assert.Error(t, err, "foreign keys should reject fetches of unknown runs")
}

func TestRecentRunsNewestFirst(t *testing.T) {
	ctx := context.Background()
	l := openTestLedger(t)

	var ids []string
	for i := 0; i < 4; i++ {
		run := &Run{ID: NewRunID()}
		require.NoError(t, l.BeginRun(ctx, run))
		ids = append(ids, run.ID)
	}

	runs, err := l.RecentRuns(ctx, 3)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, ids[3], runs[0].ID)
	assert.Equal(t, ids[2], runs[1].ID)
	assert.Equal(t, ids[1], runs[2].ID)
}

func TestNilLedger(t *testing.T) {
	ctx := context.Background()
	var l *Ledger

	assert.Empty(t, l.Path())
	assert.NoError(t, l.BeginRun(ctx, &Run{}))
	assert.NoError(t, l.RecordFetch(ctx, Fetch{}))
	assert.NoError(t, l.FinishRun(ctx, &Run{}))
	assert.NoError(t, l.Close())

	runs, err := l.RecentRuns(ctx, 5)
	assert.NoError(t, err)
	assert.Empty(t, runs)
}

func TestNewRunIDMonotonic(t *testing.T) {
	prev := NewRunID()
	assert.Len(t, prev, 26)
	for i := 0; i < 100; i++ {
		next := NewRunID()
		assert.Greater(t, next, prev)
		prev = next
	}
}
