package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/crossfade/internal/services"
	"github.com/desertthunder/crossfade/internal/shared"
	"github.com/desertthunder/crossfade/internal/tasks"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configPath string
	spotify    services.Service
	youtube    services.Service
	logger     *log.Logger
	output     io.Writer
	engine     *tasks.ConversionEngine
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string // where refreshed tokens are saved; empty keeps them in memory
	Spotify    services.Service
	YouTube    services.Service
	Logger     *log.Logger
	Output     io.Writer
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

	r := &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		spotify:    opts.Spotify,
		youtube:    opts.YouTube,
		logger:     opts.Logger,
		output:     opts.Output,
	}
	r.engine = r.newEngine(nil)
	return r
}

// newEngine builds a conversion engine over the configured services. Engines built after the
// first share its match cache.
func (r *Runner) newEngine(recorder tasks.ConversionRecorder) *tasks.ConversionEngine {
	opts := tasks.ConversionOpts{
		Config:   r.config.Matching,
		Recorder: recorder,
		Logger:   r.logger,
	}
	if r.engine != nil {
		opts.Cache = r.engine.Cache()
	}

	var svcs []services.Service
	for _, svc := range []services.Service{r.spotify, r.youtube} {
		if svc != nil {
			svcs = append(svcs, svc)
		}
	}
	return tasks.NewConversionEngine(opts, svcs...)
}

// SetLogger swaps the logger used by commands and the engine.
func (r *Runner) SetLogger(logger *log.Logger) {
	r.logger = logger
	r.engine = r.newEngine(nil)
}

func (r *Runner) before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if cmd.Bool("verbose") {
		shared.SetLogLevel(r.logger, log.DebugLevel)
	}
	return ctx, nil
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, authCommand, playlistsCommand, convertCommand, matchCommand, queriesCommand, historyCommand, tuiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// service resolves a platform name to its configured Service.
func (r *Runner) service(platform string) (services.Service, error) {
	switch platform {
	case services.PlatformSpotify:
		if r.spotify == nil {
			return nil, fmt.Errorf("%w: Spotify service not initialized (set client_id and client_secret)", shared.ErrServiceUnavailable)
		}
		return r.spotify, nil
	case services.PlatformYouTube, "ytmusic":
		if r.youtube == nil {
			return nil, fmt.Errorf("%w: YouTube Music service not initialized", shared.ErrServiceUnavailable)
		}
		return r.youtube, nil
	default:
		return nil, fmt.Errorf("%w: invalid service '%s' (must be 'spotify' or 'youtube')", shared.ErrInvalidArgument, platform)
	}
}

// saveTokens copies token into the config and writes it to configPath when one is set.
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
	r.logger.Debug("spotify tokens saved", "path", r.configPath)
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
