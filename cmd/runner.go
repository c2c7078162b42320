package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/renderkit/internal/catalog"
	"github.com/desertthunder/renderkit/internal/formatter"
	"github.com/desertthunder/renderkit/internal/loopback"
	"github.com/desertthunder/renderkit/internal/renderer"
	"github.com/desertthunder/renderkit/internal/repositories"
	"github.com/desertthunder/renderkit/internal/services"
	"github.com/desertthunder/renderkit/internal/session"
	"github.com/desertthunder/renderkit/internal/shared"
	"github.com/desertthunder/renderkit/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
//
// Sessions and the library database are opened on first use and released by [Runner.Close].
type Runner struct {
	config      *shared.Config
	configPath  string
	backendName string
	httpClient  *http.Client
	logger      *log.Logger
	output      io.Writer

	openBackend func(ctx context.Context) (*services.Backend, error)
	session     *session.Session
	db          *sql.DB
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Backend    string // loopback (default), bridge or library
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer

	// OpenBackend replaces backend construction from config.
	OpenBackend func(ctx context.Context) (*services.Backend, error)
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
	if opts.Backend == "" {
		opts.Backend = services.BackendLoopback
	}

	r := &Runner{
		config:      opts.Config,
		configPath:  opts.ConfigPath,
		backendName: opts.Backend,
		httpClient:  opts.HTTPClient,
		logger:      opts.Logger,
		output:      opts.Output,
		openBackend: opts.OpenBackend,
	}
	if r.openBackend == nil {
		r.openBackend = r.backendFromConfig
	}
	return r
}

// SetLogger replaces the runner's logger, e.g. with a file logger while the TUI owns the terminal.
func (r *Runner) SetLogger(l *log.Logger) {
	r.logger = l
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, libraryCommand, browseCommand, searchCommand, queueCommand, rendererCommand,
		groupCommand, dumpCommand, serveCommand, tuiCommand, apiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// configure applies the global flags. Runs before every command.
func (r *Runner) configure(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if path := cmd.String("config"); path != "" {
		r.configPath = path
		if _, err := os.Stat(path); err == nil {
			config, err := shared.LoadConfig(path)
			if err != nil {
				r.logger.Warn("failed to load config, using defaults", "path", path, "error", err)
			} else {
				r.config = config
			}
		} else if cmd.IsSet("config") {
			r.logger.Warn("config file not found, using defaults", "path", path)
		}
	}

	if cmd.IsSet("backend") {
		r.backendName = cmd.String("backend")
	}

	if level := cmd.String("log-level"); level != "" {
		ll, err := shared.ParseLevel(level)
		if err != nil {
			return ctx, err
		}
		shared.SetLogLevel(r.logger, ll)
	}
	return ctx, nil
}

// Close releases the session and the library database.
func (r *Runner) Close() error {
	var err error
	if r.session != nil {
		err = r.session.Close()
		r.session = nil
	}
	if r.db != nil {
		if cerr := r.db.Close(); err == nil {
			err = cerr
		}
		r.db = nil
	}
	return err
}

// database opens the library database and brings its schema up to date.
func (r *Runner) database() (*sql.DB, error) {
	if r.db != nil {
		return r.db, nil
	}

	db, err := shared.OpenLibrary(r.config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	applied, err := shared.RunMigrations(db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	if applied > 0 {
		r.logger.Debug("applied migrations", "count", applied, "path", r.config.Database.Path)
	}

	r.db = db
	return db, nil
}

func (r *Runner) library() (*repositories.Library, error) {
	db, err := r.database()
	if err != nil {
		return nil, err
	}
	return repositories.NewLibrary(db, r.logger), nil
}

// backendFromConfig builds the backend named by --backend.
func (r *Runner) backendFromConfig(ctx context.Context) (*services.Backend, error) {
	switch r.backendName {
	case services.BackendLoopback, "":
		return services.NewLoopbackBackend(loopback.Demo()), nil
	case services.BackendBridge:
		return services.NewBridgeBackend(r.config.Bridge, r.httpClient, r.logger), nil
	case services.BackendLibrary:
		lib, err := r.library()
		if err != nil {
			return nil, err
		}
		return services.NewLibraryBackend(lib, loopback.Demo().Device)
	default:
		return nil, fmt.Errorf("%w: backend %q (want loopback, bridge or library)", shared.ErrInvalidFlag, r.backendName)
	}
}

// open returns the runner's session, connecting on first use. store, when non-nil, receives
// dump snapshots.
func (r *Runner) open(ctx context.Context, store tasks.SnapshotStore) (*session.Session, error) {
	if r.session != nil {
		return r.session, nil
	}

	backend, err := r.openBackend(ctx)
	if err != nil {
		return nil, err
	}

	s, err := session.Open(ctx, backend, session.Options{
		Timeout: r.config.Client.CallTimeout.Duration,
		Cache:   catalog.NewPageCache(r.config.Cache, r.logger),
		Store:   store,
		Logger:  r.logger,
	})
	if err != nil {
		backend.Close()
		return nil, err
	}

	r.logger.Debug("session opened", "backend", backend.Name, "renderers", len(s.Manager().Renderers()))
	r.session = s
	return s, nil
}

// renderer opens the session and resolves --renderer (ID or name; empty for the first renderer).
func (r *Runner) renderer(ctx context.Context, cmd *cli.Command) (*session.Session, *renderer.Hub, error) {
	s, err := r.open(ctx, nil)
	if err != nil {
		return nil, nil, err
	}
	h, err := s.Renderer(cmd.String("renderer"))
	if err != nil {
		return nil, nil, err
	}
	return s, h, nil
}

func (r *Runner) format(cmd *cli.Command) (formatter.Format, error) {
	return formatter.ParseFormat(cmd.String("format"))
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	output, err := shared.MarshalJSON(data, pretty)
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

// printProgress writes progress updates until the channel is closed, then closes done.
func (r *Runner) printProgress(progress <-chan tasks.ProgressUpdate, done chan<- struct{}) {
	defer close(done)
	for update := range progress {
		switch update.Phase {
		case tasks.FetchPage:
			r.writePlain("📥 %s\n", update.Message)
		case tasks.FetchState, tasks.FetchQueue, tasks.CheckGroups, tasks.SaveSnapshot:
			r.writePlain("📊 %s\n", update.Message)
		default:
			r.writePlain("   %s\n", update.Message)
		}
	}
}
