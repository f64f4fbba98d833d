package database

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(Config{
		Path: filepath.Join(t.TempDir(), "nested", "runs.db"),
		Name: "runs",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestNew_CreatesDirectoryAndDefaultsProfile(t *testing.T) {
	db := newTestDB(t)

	assert.Equal(t, ProfileStandard, db.Profile())
	assert.Equal(t, "runs", db.Name())
	assert.True(t, filepath.IsAbs(db.Path()))
	assert.FileExists(t, db.Path())
}

func TestBuildConnectionString(t *testing.T) {
	s := buildConnectionString("/tmp/a.db", ProfileCache)
	assert.Contains(t, s, "/tmp/a.db?_pragma=journal_mode(WAL)")
	assert.Contains(t, s, "synchronous(OFF)")

	s = buildConnectionString("file:mem?mode=memory", ProfileStandard)
	assert.Contains(t, s, "file:mem?mode=memory&_pragma=journal_mode(WAL)")
	assert.Contains(t, s, "synchronous(NORMAL)")
}

func TestMigrate(t *testing.T) {
	db := newTestDB(t)

	require.NoError(t, db.Migrate())
	// idempotent
	require.NoError(t, db.Migrate())

	var count int
	err := db.Conn().QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'frontier_runs'",
	).Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestMigrate_UnknownSchema(t *testing.T) {
	db, err := New(Config{Path: filepath.Join(t.TempDir(), "x.db"), Name: "unknown"})
	require.NoError(t, err)
	defer db.Close()

	assert.Error(t, db.Migrate())
}

func TestWithTransaction(t *testing.T) {
	db := newTestDB(t)
	_, err := db.Conn().Exec("CREATE TABLE t (v INTEGER)")
	require.NoError(t, err)

	count := func() int {
		var n int
		require.NoError(t, db.Conn().QueryRow("SELECT COUNT(*) FROM t").Scan(&n))
		return n
	}

	require.NoError(t, WithTransaction(db.Conn(), func(tx *sql.Tx) error {
		_, err := tx.Exec("INSERT INTO t VALUES (1)")
		return err
	}))
	assert.Equal(t, 1, count())

	boom := errors.New("boom")
	err = WithTransaction(db.Conn(), func(tx *sql.Tx) error {
		if _, err := tx.Exec("INSERT INTO t VALUES (2)"); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, count())

	err = WithTransaction(db.Conn(), func(tx *sql.Tx) error {
		_, _ = tx.Exec("INSERT INTO t VALUES (3)")
		panic("unexpected")
	})
	assert.ErrorContains(t, err, "panic in transaction")
	assert.Equal(t, 1, count())

	assert.Error(t, WithTransaction(nil, func(*sql.Tx) error { return nil }))
}

func TestHealthCheckAndMaintenance(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.Migrate())

	assert.NoError(t, db.HealthCheck(context.Background()))
	assert.NoError(t, db.WALCheckpoint(""))
	assert.NoError(t, db.WALCheckpoint("PASSIVE"))
	assert.Error(t, db.WALCheckpoint("DROP TABLE"))

	stats, err := db.GetStats()
	require.NoError(t, err)
	assert.Greater(t, stats.PageCount, int64(0))
	assert.Greater(t, stats.PageSize, int64(0))
}

func TestSnapshot(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.Migrate())
	_, err := db.Conn().Exec(`INSERT INTO frontier_runs
		(run_id, created_at, assets, aggregation, requested, converged, skipped, max_sharpe, payload)
		VALUES ('r1', 1, '["A","B"]', 'sum', 5, 5, 0, 1.2, x'00')`)
	require.NoError(t, err)

	dst := filepath.Join(t.TempDir(), "snap", "runs.db")
	require.NoError(t, db.Snapshot(context.Background(), dst))
	assert.FileExists(t, dst)

	copyDB, err := sql.Open("sqlite", dst)
	require.NoError(t, err)
	defer copyDB.Close()

	var count int
	require.NoError(t, copyDB.QueryRow("SELECT COUNT(*) FROM frontier_runs").Scan(&count))
	assert.Equal(t, 1, count)

	err = db.Snapshot(context.Background(), dst)
	assert.ErrorContains(t, err, "already exists")
}
