package main

import (
	"context"
	"fmt"
	"os"

	"github.com/desertthunder/playlog/internal/formatter"
	"github.com/desertthunder/playlog/internal/shared"
	"github.com/urfave/cli/v3"
)

// Setup creates the config file from the embedded template if it is missing, then initializes the database.
func (r *Runner) Setup(ctx context.Context, cmd *cli.Command) error {
	if _, err := os.Stat(r.configPath); os.IsNotExist(err) {
		r.logger.Info("config file not found, creating from template", "path", r.configPath)
		if err := shared.CreateConfigFile(r.configPath); err != nil {
			return err
		}

		config, err := shared.LoadConfig(r.configPath)
		if err != nil {
			return err
		}
		r.config = config
		r.writePlain("%s Created %s\n", formatter.Styles.OK("✓"), r.configPath)
	}

	r.logger.Info("initializing database", "path", r.config.Database.Path)

	store, err := r.openStore()
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer store.Close()

	version, err := shared.CurrentVersion(store.DB())
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	r.logger.Infof("setup complete for database: %v", r.config.Database.Path)
	r.writePlain("%s Database ready at %s (schema version %d)\n", formatter.Styles.OK("✓"), r.config.Database.Path, version)

	if !r.config.Credentials.Spotify.HasCredentials() {
		r.writePlain("\n%s\n", formatter.Styles.Title("Next steps:"))
		r.writePlain("1. Create an app at https://developer.spotify.com/dashboard with redirect URI %s\n",
			r.config.Credentials.Spotify.RedirectURI)
		r.writePlain("2. Set client_id and client_secret under [credentials.spotify] in %s\n", r.configPath)
		r.writePlain("3. Run 'playlog auth'\n")
	}

	return nil
}
