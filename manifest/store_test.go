package manifest

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "out", FileName))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestRunLifecycle(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	require.NoError(t, store.BeginRun(ctx, Run{ID: "run-1", OutputRoot: "/out", ConfigJSON: `{"jobs":1}`}))

	run, err := store.GetRun(ctx, "run-1")
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.Equal(t, RunRunning, run.Status)
	assert.Nil(t, run.FinishedAt)

	require.NoError(t, store.Record(ctx, Outcome{
		RunID: "run-1", SourceKey: "/a.wav", Source: "a.wav", Feature: "mfcc",
		Status: StatusRendered, Path: "/out/a.wav/mfcc.png",
	}))
	require.NoError(t, store.Record(ctx, Outcome{
		RunID: "run-1", SourceKey: "/a.wav", Source: "a.wav", Feature: "mfcc_beat_delta",
		Status: StatusFailed, Stage: "compute", Error: "no beats detected",
	}))

	finished, err := store.FinishRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, RunPartial, finished.Status)
	assert.Equal(t, 1, finished.Rendered)
	assert.Equal(t, 1, finished.Failed)
	require.NotNil(t, finished.FinishedAt)

	failed, err := store.Outcomes(ctx, "run-1", StatusFailed)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "compute", failed[0].Stage)
	assert.Equal(t, "no beats detected", failed[0].Error)
	assert.Empty(t, failed[0].Path)

	all, err := store.Outcomes(ctx, "run-1")
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestRecordUpserts(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	require.NoError(t, store.BeginRun(ctx, Run{ID: "r", OutputRoot: "/out", StartedAt: time.Now()}))

	o := Outcome{RunID: "r", SourceKey: "k", Source: "s", Feature: "mfcc", Status: StatusFailed, Stage: "render"}
	require.NoError(t, store.Record(ctx, o))
	o.Status, o.Stage, o.Path = StatusRendered, "", "/out/s/mfcc.png"
	require.NoError(t, store.Record(ctx, o))

	stats, err := store.Stats(ctx, "r")
	require.NoError(t, err)
	assert.Equal(t, map[Status]int{StatusRendered: 1}, stats)

	run, err := store.FinishRun(ctx, "r")
	require.NoError(t, err)
	assert.Equal(t, RunCompleted, run.Status)
}

func TestRecordRequiresRun(t *testing.T) {
	store := openStore(t)
	err := store.Record(context.Background(), Outcome{RunID: "missing", Source: "s", Feature: "f", Status: StatusRendered})
	assert.Error(t, err)

	assert.Error(t, store.BeginRun(context.Background(), Run{}))
}

func TestRunsOrderAndEmptyRun(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.BeginRun(ctx, Run{ID: "old", OutputRoot: "/o", StartedAt: base}))
	require.NoError(t, store.BeginRun(ctx, Run{ID: "new", OutputRoot: "/o", StartedAt: base.Add(time.Hour)}))

	runs, err := store.Runs(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "new", runs[0].ID)

	run, err := store.FinishRun(ctx, "old")
	require.NoError(t, err)
	assert.Equal(t, RunFailed, run.Status)

	missing, err := store.GetRun(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestReopenChecksSchemaVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	store, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	_, err = db.Exec("UPDATE schema_version SET version = 99")
	require.NoError(t, err)
	require.NoError(t, db.Close())

	_, err = Open(path)
	assert.ErrorIs(t, err, ErrSchemaMismatch)
}

func TestIsSQLiteBusy(t *testing.T) {
	assert.False(t, isSQLiteBusy(nil))
	assert.True(t, isSQLiteBusy(errors.New("database is locked (5) (SQLITE_BUSY)")))
	assert.False(t, isSQLiteBusy(errors.New("constraint failed")))
}
