package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/playlog/internal/formatter"
	"github.com/desertthunder/playlog/internal/repositories"
	"github.com/desertthunder/playlog/internal/shared"
	"github.com/urfave/cli/v3"
)

// outputMode reads the mutually exclusive --json and --csv flags.
func outputMode(cmd *cli.Command) (useJSON, useCSV bool, err error) {
	useJSON = cmd.Bool("json")
	useCSV = cmd.Bool("csv")
	if useJSON && useCSV {
		return false, false, fmt.Errorf("%w: --json and --csv cannot be combined", shared.ErrInvalidArgument)
	}
	return useJSON, useCSV, nil
}

// render writes data as JSON, the report as CSV, or the report as a table.
func (r *Runner) render(data any, report formatter.Report, useJSON, useCSV bool) error {
	switch {
	case useJSON:
		return r.writeJSON(data, true)
	case useCSV:
		return report.WriteCSV(r.output)
	default:
		return r.writePlain("%s", report.Table())
	}
}

// Top prints the most played tracks.
func (r *Runner) Top(ctx context.Context, cmd *cli.Command) error {
	useJSON, useCSV, err := outputMode(cmd)
	if err != nil {
		return err
	}

	store, err := r.openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	rows, err := repositories.NewHistoryQueries(store.DB()).TopTracks(ctx, cmd.Int("limit"))
	if err != nil {
		return err
	}

	return r.render(rows, formatter.TopTracksReport(rows), useJSON, useCSV)
}

// Daily prints the number of plays per day, newest first.
func (r *Runner) Daily(ctx context.Context, cmd *cli.Command) error {
	useJSON, useCSV, err := outputMode(cmd)
	if err != nil {
		return err
	}

	store, err := r.openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	rows, err := repositories.NewHistoryQueries(store.DB()).PlaysPerDay(ctx)
	if err != nil {
		return err
	}

	return r.render(rows, formatter.DailyPlaysReport(rows), useJSON, useCSV)
}

// Runs prints the most recent pipeline runs.
func (r *Runner) Runs(ctx context.Context, cmd *cli.Command) error {
	store, err := r.openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := repositories.NewRunRepository(store.DB()).List(ctx, cmd.Int("limit"))
	if err != nil {
		return err
	}

	return r.render(runs, formatter.RunsReport(runs), cmd.Bool("json"), false)
}

// statusReport is the JSON form of the status command.
type statusReport struct {
	Authorized bool                      `json:"authorized"`
	Database   string                    `json:"database"`
	LatestPlay string                    `json:"latest_play,omitempty"`
	Relations  []formatter.RelationCount `json:"relations"`
}

// Status prints whether a token is saved, the latest stored play, and the row count of each relation.
func (r *Runner) Status(ctx context.Context, cmd *cli.Command) error {
	store, err := r.openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	names, err := store.Relations(ctx)
	if err != nil {
		return err
	}

	report := statusReport{
		Authorized: r.config.Credentials.Spotify.HasToken(),
		Database:   r.config.Database.Path,
		Relations:  make([]formatter.RelationCount, 0, len(names)),
	}

	for _, name := range names {
		n, err := store.Count(ctx, name)
		if err != nil {
			return err
		}
		report.Relations = append(report.Relations, formatter.RelationCount{Relation: name, Rows: n})
	}

	latest, ok, err := repositories.NewHistoryQueries(store.DB()).LatestPlayedAt(ctx)
	if err != nil {
		return err
	}
	if ok {
		report.LatestPlay = latest.Local().Format("2006-01-02 15:04:05")
	}

	if cmd.Bool("json") {
		return r.writeJSON(report, true)
	}

	auth := formatter.Styles.Err("✗ not authorized (run 'playlog auth')")
	if report.Authorized {
		auth = formatter.Styles.OK("✓ authorized")
	}
	r.writePlain("Spotify:  %s\n", auth)
	r.writePlain("Database: %s\n", report.Database)
	if report.LatestPlay != "" {
		r.writePlain("Latest:   %s\n", report.LatestPlay)
	}
	r.writePlain("\n%s", formatter.StatusReport(report.Relations).Table())

	return nil
}
