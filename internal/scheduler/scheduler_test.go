package scheduler

import (
	"context"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/falcone-gk/Finance-Instruments/internal/database"
)

type countingJob struct {
	runs atomic.Int32
	err  error
}

func (j *countingJob) Name() string { return "counting" }

func (j *countingJob) Run() error {
	j.runs.Add(1)
	return j.err
}

func TestScheduler_AddJob(t *testing.T) {
	s := New(zerolog.Nop())

	assert.NoError(t, s.AddJob("@every 1s", &countingJob{}))
	assert.NoError(t, s.AddJob("0 */5 * * * *", &countingJob{}))
	assert.Error(t, s.AddJob("not a schedule", &countingJob{}))
}

func TestScheduler_RunsJobs(t *testing.T) {
	s := New(zerolog.Nop())
	ok := &countingJob{}
	failing := &countingJob{err: errors.New("boom")}

	require.NoError(t, s.AddJob("@every 1s", ok))
	require.NoError(t, s.AddJob("@every 1s", failing))

	s.Start()
	assert.Eventually(t, func() bool {
		return ok.runs.Load() > 0 && failing.runs.Load() > 0
	}, 5*time.Second, 50*time.Millisecond)
	s.Stop()
}

func TestScheduler_RunNow(t *testing.T) {
	s := New(zerolog.Nop())
	job := &countingJob{err: errors.New("boom")}

	assert.EqualError(t, s.RunNow(job), "boom")
	assert.Equal(t, int32(1), job.runs.Load())
}

type fakePruner struct {
	cutoff  time.Time
	deleted int64
	err     error
}

func (f *fakePruner) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	f.cutoff = cutoff
	return f.deleted, f.err
}

func TestRunRetentionJob(t *testing.T) {
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	pruner := &fakePruner{deleted: 3}

	job := NewRunRetentionJob(pruner, 24*time.Hour, zerolog.Nop())
	job.now = func() time.Time { return now }

	assert.Equal(t, "run_retention", job.Name())
	require.NoError(t, job.Run())
	assert.Equal(t, now.Add(-24*time.Hour), pruner.cutoff)

	pruner.err = errors.New("locked")
	assert.ErrorContains(t, job.Run(), "locked")

	assert.Error(t, NewRunRetentionJob(pruner, 0, zerolog.Nop()).Run())
}

type fakeCheckpointer struct {
	name  string
	err   error
	calls int
}

func (f *fakeCheckpointer) Name() string { return f.name }

func (f *fakeCheckpointer) WALCheckpoint(mode string) error {
	f.calls++
	return f.err
}

func TestWALCheckpointJob(t *testing.T) {
	good := &fakeCheckpointer{name: "a"}
	bad := &fakeCheckpointer{name: "b", err: errors.New("busy")}
	after := &fakeCheckpointer{name: "c"}

	job := NewWALCheckpointJob(zerolog.Nop(), good, bad, after)
	assert.Equal(t, "wal_checkpoint", job.Name())

	err := job.Run()
	assert.EqualError(t, err, "busy")
	assert.Equal(t, 1, good.calls)
	assert.Equal(t, 1, after.calls)
}

func TestWALCheckpointJob_RealDatabase(t *testing.T) {
	db, err := database.New(database.Config{Path: filepath.Join(t.TempDir(), "runs.db"), Name: "runs"})
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, db.Migrate())

	assert.NoError(t, NewWALCheckpointJob(zerolog.Nop(), db).Run())
}
