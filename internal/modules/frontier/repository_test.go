package frontier

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/falcone-gk/Finance-Instruments/internal/database"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepository(t *testing.T) *RunRepository {
	t.Helper()
	db, err := database.New(database.Config{Path: filepath.Join(t.TempDir(), "runs.db"), Name: "runs"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.Migrate())
	return NewRunRepository(db.Conn(), zerolog.Nop())
}

func testRun(id string, created time.Time) Run {
	return Run{
		Frontier: &Frontier{
			RunID:  id,
			Assets: []string{"bonds", "equity"},
			Points: []Point{
				{Weights: []float64{0.7, 0.3}, ExpectedReturn: 0.05, Risk: 0.08, SharpeRatio: 0.625, SharpeDefined: true, Target: 0.05},
				{Weights: []float64{0.2, 0.8}, ExpectedReturn: 0.09, Risk: 0.15, SharpeRatio: 0.6, SharpeDefined: true, Target: 0.09},
			},
			Requested: 3,
			Converged: 2,
			Skipped:   1,
			Gaps:      []float64{0.07},
		},
		MaxSharpe:   Point{Weights: []float64{0.6, 0.4}, ExpectedReturn: 0.06, Risk: 0.09, SharpeRatio: 0.667, SharpeDefined: true},
		Aggregation: "sum",
		CreatedAt:   created,
	}
}

func TestRunRepository_SaveAndGet(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Save(ctx, testRun("run-1", created)))

	got, err := repo.Get(ctx, "run-1")
	require.NoError(t, err)
	require.NotNil(t, got.Frontier)
	assert.Equal(t, "run-1", got.Frontier.RunID)
	assert.Equal(t, []string{"bonds", "equity"}, got.Frontier.Assets)
	assert.Len(t, got.Frontier.Points, 2)
	assert.Equal(t, []float64{0.07}, got.Frontier.Gaps)
	assert.InDelta(t, 0.667, got.MaxSharpe.SharpeRatio, 1e-12)
	assert.Equal(t, "sum", got.Aggregation)
	assert.True(t, created.Equal(got.CreatedAt))
}

func TestRunRepository_SaveIsIdempotent(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	first := testRun("run-1", time.Now())
	require.NoError(t, repo.Save(ctx, first))

	second := testRun("run-1", time.Now())
	second.Aggregation = "mean"
	require.NoError(t, repo.Save(ctx, second))

	got, err := repo.Get(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "sum", got.Aggregation)

	runs, err := repo.List(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestRunRepository_SaveRequiresRunID(t *testing.T) {
	repo := newTestRepository(t)

	assert.Error(t, repo.Save(context.Background(), Run{}))
	assert.Error(t, repo.Save(context.Background(), Run{Frontier: &Frontier{}}))
}

func TestRunRepository_GetMissing(t *testing.T) {
	repo := newTestRepository(t)

	_, err := repo.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestRunRepository_ListNewestFirst(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, repo.Save(ctx, testRun(id, base.Add(time.Duration(i)*time.Hour))))
	}

	runs, err := repo.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "c", runs[0].RunID)
	assert.Equal(t, "b", runs[1].RunID)
	assert.Equal(t, []string{"bonds", "equity"}, runs[0].Assets)
	assert.Equal(t, 2, runs[0].Converged)
	assert.Equal(t, 1, runs[0].Skipped)
	assert.True(t, base.Add(2*time.Hour).Equal(runs[0].CreatedAt))

	empty := newTestRepository(t)
	none, err := empty.List(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestRunRepository_DeleteOlderThan(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, repo.Save(ctx, testRun("old", now.Add(-48*time.Hour))))
	require.NoError(t, repo.Save(ctx, testRun("new", now)))

	n, err := repo.DeleteOlderThan(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = repo.Get(ctx, "old")
	assert.ErrorIs(t, err, ErrRunNotFound)
	_, err = repo.Get(ctx, "new")
	assert.NoError(t, err)
}
