package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/mixtape/internal/matching"
	"github.com/desertthunder/mixtape/internal/models"
	"github.com/desertthunder/mixtape/internal/repositories"
	"github.com/desertthunder/mixtape/internal/services"
	"github.com/desertthunder/mixtape/internal/shared"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
//
// Storage and adapters are opened lazily by [Runner.open] so commands like setup can run before a
// database exists.
type Runner struct {
	config     *shared.Config
	configPath string
	logger     *log.Logger
	output     io.Writer
	input      io.Reader

	db        *sql.DB
	store     repositories.Store
	session   *services.Session
	registry  *services.Registry
	selection *repositories.SelectionRepository
	transfers *repositories.TransferRepository
	closers   []func() error
}

// RunnerOpts contains configuration options for creating a Runner.
//
// Any of DB, Store, Session and Registry may be injected; the rest are built from Config on first use.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Logger     *log.Logger
	Output     io.Writer
	Input      io.Reader
	DB         *sql.DB
	Store      repositories.Store
	Session    *services.Session
	Registry   *services.Registry
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.Input == nil {
		opts.Input = os.Stdin
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		logger:     opts.Logger,
		output:     opts.Output,
		input:      opts.Input,
		db:         opts.DB,
		store:      opts.Store,
		session:    opts.Session,
		registry:   opts.Registry,
	}
}

// app builds the root command. Global flags are resolved in its Before hook.
func (r *Runner) app() *cli.Command {
	return &cli.Command{
		Name:    "mixtape",
		Usage:   "Transfer playlists between Spotify, YouTube and Apple Music",
		Version: "0.1.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   "config.toml",
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Enable debug logging",
			},
		},
		Before:   r.before,
		After:    r.after,
		Commands: r.register(),
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, authCommand, playlistsCommand, searchCommand, selectCommand, transferCommand, historyCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

func (r *Runner) before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if r.configPath == "" {
		r.configPath = cmd.String("config")
	}
	if r.config == nil {
		r.config = r.loadConfig()
	}

	level := r.config.Log.Level
	if cmd.Bool("verbose") {
		level = "debug"
	}
	if err := shared.SetLogLevel(r.logger, level); err != nil {
		return ctx, err
	}
	return ctx, nil
}

func (r *Runner) after(ctx context.Context, cmd *cli.Command) error {
	return r.Close()
}

// loadConfig reads r.configPath, falling back to defaults when the file is missing or invalid.
func (r *Runner) loadConfig() *shared.Config {
	if _, err := os.Stat(r.configPath); err != nil {
		r.logger.Debug("config file not found, using defaults", "path", r.configPath)
		return shared.DefaultConfig()
	}
	config, err := shared.LoadConfig(r.configPath)
	if err != nil {
		r.logger.Warn("failed to load config, using defaults", "error", err)
		return shared.DefaultConfig()
	}
	return config
}

// open builds the database, key/value store, session, repositories and provider registry.
func (r *Runner) open(ctx context.Context) error {
	if r.config == nil {
		r.config = shared.DefaultConfig()
	}

	if r.db == nil {
		db, err := shared.NewDatabase(r.config.Database.Path)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		shared.ConfigureDatabase(db, r.config.Database.MaxOpenConns, r.config.Database.MaxIdleConns)
		if err := shared.RunMigrations(ctx, db); err != nil {
			db.Close()
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		r.db = db
		r.closers = append(r.closers, db.Close)
	}

	if r.store == nil {
		store, err := r.openStore(ctx)
		if err != nil {
			return err
		}
		r.store = store
	}
	if r.session == nil {
		r.session = services.NewSession(r.store, r.logger)
	}
	if r.selection == nil {
		r.selection = repositories.NewSelectionRepository(r.store)
	}
	if r.transfers == nil {
		r.transfers = repositories.NewTransferRepository(r.db)
	}
	if r.registry == nil {
		r.registry = r.buildRegistry(ctx)
	}
	return nil
}

func (r *Runner) openStore(ctx context.Context) (repositories.Store, error) {
	switch r.config.Storage.Driver {
	case "redis":
		client, err := repositories.DialRedis(ctx, r.config.Storage.RedisAddr, r.config.Storage.RedisDB)
		if err != nil {
			return nil, err
		}
		r.closers = append(r.closers, client.Close)
		r.logger.Debug("using redis session store", "addr", r.config.Storage.RedisAddr)
		return repositories.NewRedisStore(client, "mixtape:"), nil
	default:
		return repositories.NewSQLiteStore(r.db), nil
	}
}

// buildRegistry registers every provider whose credentials are configured.
func (r *Runner) buildRegistry(ctx context.Context) *services.Registry {
	opts := services.NewOptions(r.config, r.session, r.logger)
	creds := r.config.Credentials
	registry := services.NewRegistry()

	if svc, err := services.NewSpotifyService(services.SpotifyConfig{
		ClientID:    creds.Spotify.ClientID,
		RedirectURI: creds.Spotify.RedirectURI,
	}, opts); err == nil {
		registry.Register(svc)
	} else {
		r.logger.Debug("spotify disabled", "error", err)
	}

	if svc, err := services.NewYouTubeService(ctx, services.GoogleConfig{
		ClientID:    creds.Google.ClientID,
		RedirectURI: creds.Google.RedirectURI,
	}, opts); err == nil {
		registry.Register(svc)
	} else {
		r.logger.Debug("youtube disabled", "error", err)
	}

	var key []byte
	if creds.Apple.PrivateKeyPath != "" {
		data, err := os.ReadFile(creds.Apple.PrivateKeyPath)
		if err != nil {
			r.logger.Warn("failed to read apple private key", "path", creds.Apple.PrivateKeyPath, "error", err)
		}
		key = data
	}
	if svc, err := services.NewAppleMusicService(services.AppleConfig{
		TeamID:     creds.Apple.TeamID,
		KeyID:      creds.Apple.KeyID,
		PrivateKey: key,
		Storefront: creds.Apple.Storefront,
	}, opts); err == nil {
		registry.Register(svc)
	} else {
		r.logger.Debug("apple music disabled", "error", err)
	}

	return registry
}

// Close releases the database and store connections opened by [Runner.open].
func (r *Runner) Close() error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		errs = append(errs, r.closers[i]())
	}
	r.closers = nil
	return errors.Join(errs...)
}

// service opens the runner and resolves a provider argument.
func (r *Runner) service(ctx context.Context, name string) (services.Service, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: provider (one of spotify, google, apple)", shared.ErrMissingArgument)
	}
	if err := r.open(ctx); err != nil {
		return nil, err
	}
	id, err := models.ParseProviderID(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
	}
	svc, err := r.registry.Get(id)
	if err != nil {
		return nil, fmt.Errorf("%w (set its credentials in %s)", err, r.configPath)
	}
	return svc, nil
}

// matcher builds the track matcher from the transfer config.
func (r *Runner) matcher() (*matching.Matcher, error) {
	return matching.NewMatcher(r.config.Transfer.MatchThreshold, matching.Algorithm(r.config.Transfer.MatchAlgorithm))
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

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
