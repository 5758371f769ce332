package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/playlog/internal/repositories"
	"github.com/desertthunder/playlog/internal/shared"
	"github.com/desertthunder/playlog/internal/tasks"
	"github.com/desertthunder/playlog/internal/ui"
	"github.com/urfave/cli/v3"
)

// Browse launches the interactive terminal UI over the stored history.
//
// Runs can be started from the UI when a token is saved; otherwise the lists are read-only.
func (r *Runner) Browse(ctx context.Context, cmd *cli.Command) error {
	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, logFile, err := shared.NewFileLogger(cmd.String("log-file"))
	if err != nil {
		return err
	}
	defer logFile.Close()
	r.logger = fileLogger

	store, err := r.openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	opts := ui.Options{TopN: cmd.Int("limit"), Run: tasks.RunOptions{Limit: r.config.Pipeline.Limit}}

	var pipeline ui.Pipeline
	provider, err := r.openProvider(ctx)
	if err != nil {
		r.logger.Warn("runs disabled", "error", err)
		opts.Notice = fmt.Sprintf("Runs disabled: %v", err)
	} else {
		pipeline = tasks.NewPipelineEngine(provider, store, repositories.NewRunRepository(store.DB())).
			WithLogger(r.logger)
	}

	model := ui.NewModel(ctx, repositories.NewHistoryQueries(store.DB()), pipeline, opts)
	p := tea.NewProgram(model, tea.WithContext(ctx), tea.WithAltScreen())

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	return model.Err()
}
