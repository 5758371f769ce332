// package tasks runs the listening history pipeline: fetch, transform, load.
package tasks

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/playlog/internal/models"
	"github.com/desertthunder/playlog/internal/repositories"
	"github.com/desertthunder/playlog/internal/services"
	"github.com/desertthunder/playlog/internal/shared"
	"github.com/desertthunder/playlog/internal/transform"
)

// DefaultLimit is the number of play items requested when [RunOptions.Limit] is not positive.
const DefaultLimit = services.MaxRecentlyPlayed

// HistoryProvider supplies recently played items, newest first.
type HistoryProvider interface {
	RecentlyPlayed(ctx context.Context, limit int, after time.Time) ([]models.PlayItem, error)
}

// Loader appends a transformed batch to storage.
type Loader interface {
	AppendBatch(ctx context.Context, batch *transform.Batch) (repositories.LoadCounts, error)
}

// RunRecorder keeps the run log.
type RunRecorder interface {
	Start(ctx context.Context, run *models.PipelineRun) error
	Finish(ctx context.Context, run *models.PipelineRun) error
}

// RunOptions controls a single pipeline run.
type RunOptions struct {
	Limit int       // items to request, 1..50
	After time.Time // only request plays after this instant when non-zero
}

func (o RunOptions) normalize() RunOptions {
	if o.Limit <= 0 || o.Limit > services.MaxRecentlyPlayed {
		o.Limit = DefaultLimit
	}
	return o
}

// RunResult summarizes a pipeline run.
type RunResult struct {
	ID         string          `json:"id"`
	State      models.RunState `json:"state"`
	Fetched    int             `json:"fetched"`
	Plays      int             `json:"plays"`
	Tracks     int             `json:"tracks"`
	Artists    int             `json:"artists"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
}

// StageError is returned by [PipelineEngine.Run] when a stage fails.
type StageError struct {
	Stage models.RunState
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// PipelineEngine moves recently played history from a provider into storage.
type PipelineEngine struct {
	provider HistoryProvider
	loader   Loader
	runs     RunRecorder
	logger   *log.Logger
	now      func() time.Time
}

// NewPipelineEngine creates a new PipelineEngine. runs may be nil to skip the run log.
func NewPipelineEngine(provider HistoryProvider, loader Loader, runs RunRecorder) *PipelineEngine {
	return &PipelineEngine{
		provider: provider,
		loader:   loader,
		runs:     runs,
		logger:   shared.NewLogger(io.Discard),
		now:      time.Now,
	}
}

// WithLogger sets the logger used for run log warnings and stage transitions.
func (e *PipelineEngine) WithLogger(l *log.Logger) *PipelineEngine {
	if l != nil {
		e.logger = l
	}
	return e
}

// sendProgress sends a progress update through the channel without blocking.
func (e *PipelineEngine) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// Run fetches, transforms and loads one page of recently played history.
//
// On failure the returned result is in the failed state and carries whatever counts were
// written before the failure; the error is a [*StageError] naming the stage.
// Relations appended before a failing relation keep their rows.
func (e *PipelineEngine) Run(ctx context.Context, opts RunOptions, progress chan<- ProgressUpdate) (*RunResult, error) {
	if e.provider == nil {
		return nil, fmt.Errorf("%w: history provider not initialized", shared.ErrInvalidArgument)
	}
	if e.loader == nil {
		return nil, fmt.Errorf("%w: loader not initialized", shared.ErrInvalidArgument)
	}

	opts = opts.normalize()
	run := models.NewPipelineRun(shared.GenerateID(), e.now())
	result := &RunResult{ID: run.ID, State: run.State, StartedAt: run.StartedAt}
	logger := shared.WithLogger(e.logger, "run", run.ID)

	if err := e.advance(run, result, models.StateFetching); err != nil {
		return result, err
	}
	e.record(ctx, logger, run, true)
	e.sendProgress(progress, fetchingUpdate(opts))

	items, err := e.provider.RecentlyPlayed(ctx, opts.Limit, opts.After)
	if err != nil {
		return e.fail(ctx, logger, run, result, progress, err)
	}
	result.Fetched = len(items)
	logger.Debug("fetched play items", "count", len(items))

	if err := e.advance(run, result, models.StateTransforming); err != nil {
		return result, err
	}
	e.sendProgress(progress, transformingUpdate(len(items)))

	batch, err := transform.RecentlyPlayed(items)
	if err != nil {
		return e.fail(ctx, logger, run, result, progress, err)
	}

	if err := e.advance(run, result, models.StateLoading); err != nil {
		return result, err
	}
	plays, tracks, artists := batch.Counts()
	e.sendProgress(progress, loadingUpdate(plays, tracks, artists))

	counts, err := e.loader.AppendBatch(ctx, batch)
	e.setCounts(run, result, counts)
	if err != nil {
		return e.fail(ctx, logger, run, result, progress, err)
	}

	if err := run.Complete(e.now()); err != nil {
		return result, err
	}
	result.State = run.State
	result.FinishedAt = *run.FinishedAt
	e.record(ctx, logger, run, false)
	e.sendProgress(progress, doneUpdate(counts))

	logger.Info("pipeline run complete", "plays", counts.Plays, "tracks", counts.Tracks, "artists", counts.Artists)
	return result, nil
}

func (e *PipelineEngine) advance(run *models.PipelineRun, result *RunResult, next models.RunState) error {
	if err := run.Advance(next); err != nil {
		return err
	}
	result.State = next
	e.logger.Debug("pipeline state", "run", run.ID, "state", next)
	return nil
}

func (e *PipelineEngine) setCounts(run *models.PipelineRun, result *RunResult, counts repositories.LoadCounts) {
	run.Plays, run.Tracks, run.Artists = counts.Plays, counts.Tracks, counts.Artists
	result.Plays, result.Tracks, result.Artists = counts.Plays, counts.Tracks, counts.Artists
}

func (e *PipelineEngine) fail(
	ctx context.Context, logger *log.Logger, run *models.PipelineRun, result *RunResult,
	progress chan<- ProgressUpdate, err error,
) (*RunResult, error) {
	stageErr := &StageError{Stage: run.State, Err: err}

	run.Fail(err, e.now())
	result.State = run.State
	result.FinishedAt = *run.FinishedAt

	e.record(ctx, logger, run, false)
	e.sendProgress(progress, failedUpdate(stageErr))

	logger.Error("pipeline run failed", "stage", stageErr.Stage, "error", err)
	return result, stageErr
}

// record writes the run log entry. Failures are logged and never change the run outcome.
func (e *PipelineEngine) record(ctx context.Context, logger *log.Logger, run *models.PipelineRun, start bool) {
	if e.runs == nil {
		return
	}

	var err error
	if start {
		err = e.runs.Start(ctx, run)
	} else {
		err = e.runs.Finish(ctx, run)
	}

	if err != nil {
		logger.Warn("failed to record pipeline run", "state", run.State, "error", err)
	}
}
