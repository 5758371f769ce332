package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/playlog/internal/models"
)

// RunRepository persists [models.PipelineRun] entries in the pipeline_runs table created by migrations.
type RunRepository struct {
	db *sql.DB
}

// NewRunRepository creates a new RunRepository with the given database connection
func NewRunRepository(db *sql.DB) *RunRepository {
	return &RunRepository{db: db}
}

// Start inserts a run record.
func (r *RunRepository) Start(ctx context.Context, run *models.PipelineRun) error {
	if err := run.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	query := `
		INSERT INTO pipeline_runs (id, started_at, finished_at, state, stage, plays, tracks, artists, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		run.ID,
		run.StartedAt.UTC(),
		nullTime(run.FinishedAt),
		string(run.State),
		string(run.Stage),
		run.Plays,
		run.Tracks,
		run.Artists,
		run.Error,
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	return nil
}

// Finish updates the terminal state, counts and error of a run.
func (r *RunRepository) Finish(ctx context.Context, run *models.PipelineRun) error {
	if err := run.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	query := `
		UPDATE pipeline_runs
		SET finished_at = ?, state = ?, stage = ?, plays = ?, tracks = ?, artists = ?, error = ?
		WHERE id = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		nullTime(run.FinishedAt),
		string(run.State),
		string(run.Stage),
		run.Plays,
		run.Tracks,
		run.Artists,
		run.Error,
		run.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("run not found: %s", run.ID)
	}

	return nil
}

// Get retrieves a run by ID.
func (r *RunRepository) Get(ctx context.Context, id string) (*models.PipelineRun, error) {
	query := `
		SELECT id, started_at, finished_at, state, stage, plays, tracks, artists, error
		FROM pipeline_runs
		WHERE id = ?
	`

	run, err := scanRun(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run not found: %s", id)
	}
	return run, err
}

// List returns the most recent runs, newest first. A non-positive limit returns every run.
func (r *RunRepository) List(ctx context.Context, limit int) ([]*models.PipelineRun, error) {
	query := `
		SELECT id, started_at, finished_at, state, stage, plays, tracks, artists, error
		FROM pipeline_runs
		ORDER BY started_at DESC, rowid DESC
	`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	runs := []*models.PipelineRun{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return runs, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*models.PipelineRun, error) {
	var (
		run        models.PipelineRun
		state      string
		stage      string
		finishedAt sql.NullTime
	)

	err := s.Scan(&run.ID, &run.StartedAt, &finishedAt, &state, &stage, &run.Plays, &run.Tracks, &run.Artists, &run.Error)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}

	run.State = models.RunState(state)
	run.Stage = models.RunState(stage)
	if finishedAt.Valid {
		t := finishedAt.Time
		run.FinishedAt = &t
	}

	return &run, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
