package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/playlog/internal/repositories"
	"github.com/desertthunder/playlog/internal/services"
	"github.com/desertthunder/playlog/internal/shared"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

const defaultAuthTimeout = 2 * time.Minute

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config      *shared.Config
	configPath  string
	spotifyOpts services.SpotifyOpts
	httpClient  *http.Client
	logger      *log.Logger
	output      io.Writer
	openBrowser func(string) error
	authTimeout time.Duration
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config      *shared.Config
	ConfigPath  string
	Spotify     services.SpotifyOpts // endpoint overrides for the provider
	HTTPClient  *http.Client
	Logger      *log.Logger
	Output      io.Writer
	OpenBrowser func(string) error
	AuthTimeout time.Duration
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.OpenBrowser == nil {
		opts.OpenBrowser = shared.OpenBrowser
	}
	if opts.AuthTimeout <= 0 {
		opts.AuthTimeout = defaultAuthTimeout
	}

	return &Runner{
		config:      opts.Config,
		configPath:  opts.ConfigPath,
		spotifyOpts: opts.Spotify,
		httpClient:  opts.HTTPClient,
		logger:      opts.Logger,
		output:      opts.Output,
		openBrowser: opts.OpenBrowser,
		authTimeout: opts.AuthTimeout,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, authCommand, runCommand, topCommand, dailyCommand, runsCommand, statusCommand, browseCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// before applies the global flags: log level and configuration file.
func (r *Runner) before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if cmd.Bool("debug") {
		shared.SetLogLevel(r.logger, log.DebugLevel)
	}

	r.configPath = cmd.String("config")
	config, err := shared.LoadOrDefault(r.configPath)
	if err != nil {
		return ctx, err
	}
	if err := config.Validate(); err != nil {
		return ctx, err
	}

	r.config = config
	r.logger.Debug("configuration loaded", "path", r.configPath, "database", config.Database.Path)
	return ctx, nil
}

// openStore opens the configured database and brings its schema up to date.
func (r *Runner) openStore() (*repositories.Store, error) {
	store, err := repositories.OpenStore(r.config.Database)
	if err != nil {
		return nil, err
	}

	if err := shared.RunMigrations(store.DB()); err != nil {
		store.Close()
		return nil, fmt.Errorf("%w: %v", shared.ErrStoreUnavailable, err)
	}
	return store, nil
}

// newSpotifyService builds the provider client from the configured credentials and endpoint overrides.
func (r *Runner) newSpotifyService() (*services.SpotifyService, error) {
	creds := r.config.Credentials.Spotify
	if !creds.HasCredentials() {
		return nil, fmt.Errorf("%w: set client_id and client_secret under [credentials.spotify] in %s",
			shared.ErrMissingCredentials, r.configPath)
	}

	opts := r.spotifyOpts
	if opts.HTTPClient == nil {
		opts.HTTPClient = r.httpClient
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = r.config.Pipeline.RateLimit
	}
	opts.Logger = r.logger

	return services.NewSpotifyService(creds, opts)
}

// openProvider returns an authenticated provider whose refreshed tokens are written back to the config file.
func (r *Runner) openProvider(ctx context.Context) (*services.SpotifyService, error) {
	svc, err := r.newSpotifyService()
	if err != nil {
		return nil, err
	}

	if !r.config.Credentials.Spotify.HasToken() {
		return nil, fmt.Errorf("%w: run 'playlog auth' first", shared.ErrNotAuthenticated)
	}

	svc.SetTokenRefreshCallback(func(token *oauth2.Token) {
		if err := r.saveTokens(token); err != nil {
			r.logger.Warn("failed to persist refreshed token", "error", err)
			return
		}
		r.logger.Debug("refreshed token saved", "path", r.configPath)
	})

	if err := svc.OAuthenticate(ctx, r.config.Credentials.Spotify.Token()); err != nil {
		return nil, err
	}
	return svc, nil
}

// saveTokens copies token into the config and writes it to the config file when one is set.
func (r *Runner) saveTokens(token *oauth2.Token) error {
	if r.config == nil {
		return fmt.Errorf("%w: config is nil", shared.ErrInvalidConfig)
	}

	if err := r.config.Credentials.Spotify.Update(token); err != nil {
		return fmt.Errorf("failed to update spotify configuration: %w", err)
	}

	if r.configPath == "" {
		return nil
	}

	if err := shared.SaveConfig(r.configPath, r.config); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	return nil
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
