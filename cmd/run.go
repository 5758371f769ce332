package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/desertthunder/playlog/internal/formatter"
	"github.com/desertthunder/playlog/internal/repositories"
	"github.com/desertthunder/playlog/internal/shared"
	"github.com/desertthunder/playlog/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Run executes one pipeline run: fetch recently played items, normalize them and append them to the database.
func (r *Runner) Run(ctx context.Context, cmd *cli.Command) error {
	useJSON := cmd.Bool("json")

	opts := tasks.RunOptions{Limit: cmd.Int("limit")}
	if opts.Limit == 0 {
		opts.Limit = r.config.Pipeline.Limit
	}
	if opts.Limit < 0 || opts.Limit > tasks.DefaultLimit {
		return fmt.Errorf("%w: limit must be between 1 and %d, got %d", shared.ErrInvalidArgument, tasks.DefaultLimit, opts.Limit)
	}

	provider, err := r.openProvider(ctx)
	if err != nil {
		return err
	}

	store, err := r.openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	if cmd.Bool("since-last") {
		latest, ok, err := repositories.NewHistoryQueries(store.DB()).LatestPlayedAt(ctx)
		if err != nil {
			return err
		}
		if ok {
			opts.After = latest
			r.logger.Info("fetching plays after latest stored play", "after", latest)
		}
	}

	engine := tasks.NewPipelineEngine(provider, store, repositories.NewRunRepository(store.DB())).
		WithLogger(r.logger)

	progress := make(chan tasks.ProgressUpdate, 16)
	result, runErr := engine.Run(ctx, opts, progress)
	close(progress)

	if !useJSON {
		for update := range progress {
			r.writePlain("[%d/%d] %s\n", update.Step, update.Total, update.Message)
		}
	}

	if runErr != nil {
		if errors.Is(runErr, shared.ErrTokenExpired) {
			r.writePlain("%s Spotify rejected the saved token. Run 'playlog auth' and try again.\n", formatter.Styles.Warn("⚠"))
		}
		if result != nil && result.Plays > 0 {
			r.logger.Warn("run failed after a partial load", "plays", result.Plays, "tracks", result.Tracks, "artists", result.Artists)
		}
		return runErr
	}

	if useJSON {
		return r.writeJSON(result, true)
	}

	r.writePlain("\n%s\n", formatter.Styles.Title("Run "+result.ID))
	r.writePlain("Fetched: %d\n", result.Fetched)
	r.writePlain("Plays:   %d\n", result.Plays)
	r.writePlain("Tracks:  %d\n", result.Tracks)
	r.writePlain("Artists: %d\n", result.Artists)

	return nil
}
