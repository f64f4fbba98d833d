package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// RunPruner deletes stored frontier runs older than a cutoff.
type RunPruner interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// Checkpointer flushes a write-ahead log.
type Checkpointer interface {
	WALCheckpoint(mode string) error
	Name() string
}

// RunRetentionJob drops frontier runs past their retention window
type RunRetentionJob struct {
	runs      RunPruner
	retention time.Duration
	timeout   time.Duration
	now       func() time.Time
	log       zerolog.Logger
}

// NewRunRetentionJob creates a new RunRetentionJob
func NewRunRetentionJob(runs RunPruner, retention time.Duration, log zerolog.Logger) *RunRetentionJob {
	return &RunRetentionJob{
		runs:      runs,
		retention: retention,
		timeout:   time.Minute,
		now:       time.Now,
		log:       log.With().Str("job", "run_retention").Logger(),
	}
}

// Name returns the job name
func (j *RunRetentionJob) Name() string {
	return "run_retention"
}

// Run executes the retention job
func (j *RunRetentionJob) Run() error {
	if j.retention <= 0 {
		return fmt.Errorf("run retention must be positive, got %s", j.retention)
	}

	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	cutoff := j.now().Add(-j.retention)
	deleted, err := j.runs.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("failed to prune frontier runs: %w", err)
	}

	j.log.Info().
		Int64("deleted", deleted).
		Time("cutoff", cutoff).
		Msg("Pruned frontier runs")
	return nil
}

// WALCheckpointJob truncates the WAL of each database
type WALCheckpointJob struct {
	databases []Checkpointer
	log       zerolog.Logger
}

// NewWALCheckpointJob creates a new WALCheckpointJob
func NewWALCheckpointJob(log zerolog.Logger, databases ...Checkpointer) *WALCheckpointJob {
	return &WALCheckpointJob{
		databases: databases,
		log:       log.With().Str("job", "wal_checkpoint").Logger(),
	}
}

// Name returns the job name
func (j *WALCheckpointJob) Name() string {
	return "wal_checkpoint"
}

// Run executes the checkpoint. A failing database does not stop the others.
func (j *WALCheckpointJob) Run() error {
	var firstErr error
	checked := 0
	for _, db := range j.databases {
		if db == nil {
			continue
		}
		if err := db.WALCheckpoint("TRUNCATE"); err != nil {
			j.log.Warn().Err(err).Str("database", db.Name()).Msg("WAL checkpoint failed")
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		checked++
	}

	j.log.Debug().Int("checked", checked).Msg("WAL checkpoints completed")
	return firstErr
}
