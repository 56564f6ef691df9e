package state

import (
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapmix/internal/testutil"
	"github.com/leapstack-labs/leapmix/pkg/core"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store := NewSQLiteStore(testutil.NewTestLogger(t))
	require.NoError(t, store.Open(":memory:"))
	require.NoError(t, store.InitSchema())
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStore_OpenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")

	store := NewSQLiteStore(nil)
	require.NoError(t, store.Open(path))
	require.NoError(t, store.InitSchema())

	run, err := store.CreateRun("mix")
	require.NoError(t, err)
	require.NoError(t, store.Close())

	// reopen and migrate again: schema is already current
	store = NewSQLiteStore(nil)
	require.NoError(t, store.Open(path))
	defer func() { _ = store.Close() }()
	require.NoError(t, store.InitSchema())

	got, err := store.GetRun(run.ID)
	require.NoError(t, err)
	assert.Equal(t, "mix", got.Recipe)

	version, err := store.GetMigrationVersion()
	require.NoError(t, err)
	assert.Equal(t, int64(1), version)
}

func TestSQLiteStore_NotOpened(t *testing.T) {
	store := NewSQLiteStore(nil)

	_, err := store.CreateRun("mix")
	assert.EqualError(t, err, "database not opened")
	_, err = store.ListRuns("", 0)
	assert.EqualError(t, err, "database not opened")
	assert.EqualError(t, store.RecordBuild(&core.RecipeBuild{}), "database not opened")
	assert.NoError(t, store.Close())
}

func TestSQLiteStore_RunLifecycle(t *testing.T) {
	store := newTestStore(t)

	run, err := store.CreateRun("mix")
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, core.RunStatusRunning, run.Status)

	got, err := store.GetRun(run.ID)
	require.NoError(t, err)
	assert.Equal(t, core.RunStatusRunning, got.Status)
	assert.Nil(t, got.CompletedAt)
	assert.Empty(t, got.Error)

	require.NoError(t, store.CompleteRun(run.ID, core.RunStatusFailed, "boom"))

	got, err = store.GetRun(run.ID)
	require.NoError(t, err)
	assert.Equal(t, core.RunStatusFailed, got.Status)
	require.NotNil(t, got.CompletedAt)
	assert.False(t, got.CompletedAt.Before(got.StartedAt))
	assert.Equal(t, "boom", got.Error)
}

func TestSQLiteStore_RunNotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetRun("missing")
	assert.ErrorContains(t, err, "run not found")

	err = store.CompleteRun("missing", core.RunStatusCompleted, "")
	assert.ErrorContains(t, err, "run not found")
}

func TestSQLiteStore_ListRuns(t *testing.T) {
	store := newTestStore(t)

	first, err := store.CreateRun("a")
	require.NoError(t, err)
	second, err := store.CreateRun("b")
	require.NoError(t, err)
	third, err := store.CreateRun("a")
	require.NoError(t, err)

	all, err := store.ListRuns("", 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, third.ID, all[0].ID)
	assert.Equal(t, second.ID, all[1].ID)
	assert.Equal(t, first.ID, all[2].ID)

	onlyA, err := store.ListRuns("a", 0)
	require.NoError(t, err)
	require.Len(t, onlyA, 2)
	assert.Equal(t, third.ID, onlyA[0].ID)

	limited, err := store.ListRuns("", 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, third.ID, limited[0].ID)

	none, err := store.ListRuns("nope", 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSQLiteStore_Builds(t *testing.T) {
	store := newTestStore(t)

	run, err := store.CreateRun("mix")
	require.NoError(t, err)

	base := time.Now().UTC()
	child := &core.RecipeBuild{RunID: run.ID, Recipe: "child", Reused: true, Rows: 10, BuiltAt: base}
	parent := &core.RecipeBuild{RunID: run.ID, Recipe: "mix", Rows: 25, ElapsedMS: 12, BuiltAt: base.Add(time.Millisecond)}
	require.NoError(t, store.RecordBuild(child))
	require.NoError(t, store.RecordBuild(parent))
	assert.NotEmpty(t, child.ID)

	builds, err := store.GetBuildsForRun(run.ID)
	require.NoError(t, err)
	require.Len(t, builds, 2)
	assert.Equal(t, "child", builds[0].Recipe)
	assert.True(t, builds[0].Reused)
	assert.Equal(t, int64(10), builds[0].Rows)
	assert.Equal(t, "mix", builds[1].Recipe)
	assert.False(t, builds[1].Reused)
	assert.Equal(t, int64(12), builds[1].ElapsedMS)

	latest, err := store.GetLatestBuild("mix")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, parent.ID, latest.ID)

	latest, err = store.GetLatestBuild("never")
	require.NoError(t, err)
	assert.Nil(t, latest)
}

func TestSQLiteStore_RecordBuildUnknownRun(t *testing.T) {
	store := newTestStore(t)

	err := store.RecordBuild(&core.RecipeBuild{RunID: "missing", Recipe: "mix"})
	assert.Error(t, err, "foreign key to runs must be enforced")
}

func newMockStore(t *testing.T) (*SQLiteStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return &SQLiteStore{db: db, logger: testutil.NewTestLogger(t)}, mock
}

func TestSQLiteStore_CreateRunExecError(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO runs").WillReturnError(errors.New("disk full"))

	_, err := store.CreateRun("mix")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create run")
	assert.Contains(t, err.Error(), "disk full")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLiteStore_ListRunsQueryError(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT (.+) FROM runs WHERE recipe").
		WithArgs("mix", -1).
		WillReturnError(sql.ErrConnDone)

	_, err := store.ListRuns("mix", 0)
	assert.ErrorIs(t, err, sql.ErrConnDone)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLiteStore_GetLatestBuildScanError(t *testing.T) {
	store, mock := newMockStore(t)

	rows := sqlmock.NewRows([]string{"id", "run_id", "recipe", "reused", "rows", "elapsed_ms", "built_at"}).
		AddRow("b1", "r1", "mix", false, "not-a-number", 0, time.Now())
	mock.ExpectQuery("SELECT (.+) FROM recipe_builds").WithArgs("mix").WillReturnRows(rows)

	_, err := store.GetLatestBuild("mix")
	assert.ErrorContains(t, err, "failed to get latest build")
	assert.NoError(t, mock.ExpectationsWereMet())
}
