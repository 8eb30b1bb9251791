package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/vidx/internal/app"
	"github.com/desertthunder/vidx/internal/shared"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
//
// The application container is built on first use so commands like setup never open the API client.
type Runner struct {
	config     *shared.Config
	configPath string
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer
	app        *app.Container
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
	// Container replaces the lazily built container, mainly for tests.
	Container *app.Container
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

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
		app:        opts.Container,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, authCommand, videosCommand, uploadCommand, playlistsCommand, searchCommand, cacheCommand, tuiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// container builds the application container and restores the saved session.
func (r *Runner) container(ctx context.Context) (*app.Container, error) {
	if r.app != nil {
		return r.app, nil
	}
	c, err := app.New(app.Options{Config: r.config, Logger: r.logger, HTTPClient: r.httpClient})
	if err != nil {
		return nil, err
	}
	if err := c.Start(ctx); err != nil {
		r.logger.Warn("failed to restore session", "error", err)
	}
	r.app = c
	return c, nil
}

// authed is [Runner.container] for commands that need a signed-in user.
func (r *Runner) authed(ctx context.Context) (*app.Container, error) {
	c, err := r.container(ctx)
	if err != nil {
		return nil, err
	}
	if err := c.Auth.Require(); err != nil {
		return nil, fmt.Errorf("%w: run 'vidx auth login' first", err)
	}
	return c, nil
}

// Close releases the container, if one was built.
func (r *Runner) Close() error {
	if r.app == nil {
		return nil
	}
	return r.app.Close()
}

// SetLogger replaces the runner's logger, e.g. to move output off the terminal while the TUI runs.
func (r *Runner) SetLogger(l *log.Logger) {
	r.logger = l
	if r.app != nil {
		r.app.Logger = l
	}
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

// emit writes data as JSON when --json is set and calls plain otherwise.
func (r *Runner) emit(cmd *cli.Command, data any, plain func() error) error {
	if cmd.Bool("json") {
		return r.writeJSON(data, cmd.Bool("pretty"))
	}
	return plain()
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
