package frontier

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
)

// ErrRunNotFound is returned when no stored run has the requested ID.
var ErrRunNotFound = errors.New("frontier run not found")

// Run is a served frontier together with the request context that produced it.
type Run struct {
	Frontier    *Frontier `json:"frontier" msgpack:"frontier"`
	MaxSharpe   Point     `json:"max_sharpe" msgpack:"max_sharpe"`
	Aggregation string    `json:"aggregation" msgpack:"aggregation"`
	CreatedAt   time.Time `json:"created_at" msgpack:"created_at"`
}

// RunSummary is the listing view of a stored run.
type RunSummary struct {
	RunID          string    `json:"run_id" msgpack:"run_id"`
	CreatedAt      time.Time `json:"created_at" msgpack:"created_at"`
	Assets         []string  `json:"assets" msgpack:"assets"`
	Aggregation    string    `json:"aggregation" msgpack:"aggregation"`
	Requested      int       `json:"requested" msgpack:"requested"`
	Converged      int       `json:"converged" msgpack:"converged"`
	Skipped        int       `json:"skipped" msgpack:"skipped"`
	MaxSharpeRatio float64   `json:"max_sharpe_ratio" msgpack:"max_sharpe_ratio"`
}

// RunRepository handles frontier run database operations
// Database: runs.db (frontier_runs table)
type RunRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRunRepository creates a new run repository
func NewRunRepository(db *sql.DB, log zerolog.Logger) *RunRepository {
	return &RunRepository{
		db:  db,
		log: log.With().Str("repo", "frontier_runs").Logger(),
	}
}

// Save stores a run. Saving the same run ID twice keeps the first copy.
func (r *RunRepository) Save(ctx context.Context, run Run) error {
	if run.Frontier == nil || run.Frontier.RunID == "" {
		return fmt.Errorf("cannot save run without a frontier run ID")
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}

	payload, err := msgpack.Marshal(run)
	if err != nil {
		return fmt.Errorf("failed to encode run %s: %w", run.Frontier.RunID, err)
	}
	assets, err := json.Marshal(run.Frontier.Assets)
	if err != nil {
		return fmt.Errorf("failed to encode assets of run %s: %w", run.Frontier.RunID, err)
	}

	query := `
		INSERT OR IGNORE INTO frontier_runs
			(run_id, created_at, assets, aggregation, requested, converged, skipped, max_sharpe, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	res, err := r.db.ExecContext(ctx, query,
		run.Frontier.RunID,
		run.CreatedAt.Unix(),
		string(assets),
		run.Aggregation,
		run.Frontier.Requested,
		run.Frontier.Converged,
		run.Frontier.Skipped,
		run.MaxSharpe.SharpeRatio,
		payload,
	)
	if err != nil {
		return fmt.Errorf("failed to insert run %s: %w", run.Frontier.RunID, err)
	}

	if n, _ := res.RowsAffected(); n > 0 {
		r.log.Debug().
			Str("run_id", run.Frontier.RunID).
			Int("payload_bytes", len(payload)).
			Msg("Stored frontier run")
	}
	return nil
}

// Get loads a run by ID
func (r *RunRepository) Get(ctx context.Context, runID string) (*Run, error) {
	var payload []byte
	err := r.db.QueryRowContext(ctx,
		"SELECT payload FROM frontier_runs WHERE run_id = ?", runID,
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query run %s: %w", runID, err)
	}

	var run Run
	if err := msgpack.Unmarshal(payload, &run); err != nil {
		return nil, fmt.Errorf("failed to decode run %s: %w", runID, err)
	}
	return &run, nil
}

// List returns the most recent runs, newest first
func (r *RunRepository) List(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT run_id, created_at, assets, aggregation, requested, converged, skipped, max_sharpe
		FROM frontier_runs
		ORDER BY created_at DESC, run_id
		LIMIT ?
	`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query frontier runs: %w", err)
	}
	defer rows.Close()

	summaries := make([]RunSummary, 0)
	for rows.Next() {
		var s RunSummary
		var createdAtUnix int64
		var assets string

		if err := rows.Scan(
			&s.RunID,
			&createdAtUnix,
			&assets,
			&s.Aggregation,
			&s.Requested,
			&s.Converged,
			&s.Skipped,
			&s.MaxSharpeRatio,
		); err != nil {
			return nil, fmt.Errorf("failed to scan frontier run: %w", err)
		}

		s.CreatedAt = time.Unix(createdAtUnix, 0).UTC()
		if err := json.Unmarshal([]byte(assets), &s.Assets); err != nil {
			return nil, fmt.Errorf("failed to decode assets of run %s: %w", s.RunID, err)
		}
		summaries = append(summaries, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating frontier runs: %w", err)
	}

	return summaries, nil
}

// DeleteOlderThan removes runs created before cutoff and returns how many were removed
func (r *RunRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, "DELETE FROM frontier_runs WHERE created_at < ?", cutoff.Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to delete old frontier runs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted frontier runs: %w", err)
	}
	return n, nil
}
