// submodule cmd contains command definitions
package main

import (
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"
)

const version = "0.1.0"

// app builds the root command with the global flags and every subcommand.
func (r *Runner) app() *cli.Command {
	return &cli.Command{
		Name:    "playlog",
		Usage:   "Collect Spotify listening history into SQLite and report on it",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   "config.toml",
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Enable debug logging",
			},
		},
		Before:   r.before,
		Commands: r.register(),
	}
}

// setupCommand writes the config template and prepares the database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "setup",
		Usage:  "Create config.toml if missing, initialize the database and run migrations",
		Action: r.Setup,
	}
}

// authCommand runs the OAuth2 authorization code flow.
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "auth",
		Usage:  "Authorize playlog to read your Spotify listening history",
		Action: r.Auth,
	}
}

// runCommand executes one pipeline run.
func runCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Fetch recently played tracks and append them to the database",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Number of recently played items to fetch (1-50, default from config)",
			},
			&cli.BoolFlag{
				Name:  "since-last",
				Usage: "Only fetch plays newer than the latest stored play",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output the run result as JSON",
			},
		},
		Action: r.Run,
	}
}

// topCommand reports the most played tracks.
func topCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "top",
		Usage: "Show the most played tracks",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"n"},
				Usage:   "Number of tracks to show",
				Value:   10,
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
			&cli.BoolFlag{
				Name:  "csv",
				Usage: "Output CSV",
			},
		},
		Action: r.Top,
	}
}

// dailyCommand reports plays per day.
func dailyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "daily",
		Usage: "Show the number of plays per day",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
			&cli.BoolFlag{
				Name:  "csv",
				Usage: "Output CSV",
			},
		},
		Action: r.Daily,
	}
}

// runsCommand lists the run log.
func runsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "runs",
		Usage: "List recent pipeline runs",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Number of runs to show (0 for all)",
				Value: 20,
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
		},
		Action: r.Runs,
	}
}

// statusCommand reports authorization state and relation sizes.
func statusCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Show authorization state and row counts per relation",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
		},
		Action: r.Status,
	}
}

// browseCommand opens the interactive history browser.
func browseCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "browse",
		Usage: "Browse top tracks and daily plays interactively, and start runs",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"n"},
				Usage:   "Number of top tracks to list",
				Value:   10,
			},
			&cli.StringFlag{
				Name:  "log-file",
				Usage: "File receiving logs while the UI is open",
				Value: filepath.Join(os.TempDir(), "playlog-browse.log"),
			},
		},
		Action: r.Browse,
	}
}
