package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	json "github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/crux/internal/shared"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
//
// The application behind the commands is opened on first use and shared by every command
// run through the same Runner.
type Runner struct {
	config     *shared.Config
	configPath string
	logger     *log.Logger
	output     io.Writer
	registry   *prometheus.Registry
	app        *App
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Logger     *log.Logger
	Output     io.Writer
	Registry   *prometheus.Registry
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
	if opts.Registry == nil {
		opts.Registry = prometheus.NewRegistry()
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		logger:     opts.Logger,
		output:     opts.Output,
		registry:   opts.Registry,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, tracksCommand, browseCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// Load reads the configuration named by the --config flag, falling back to the defaults when
// the file does not exist. CRUX_* environment variables override both.
func (r *Runner) Load(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	path := cmd.String("config")

	config, err := shared.LoadConfig(path)
	switch {
	case err == nil:
		r.logger.Debug("loaded config", "path", path)
	case errors.Is(err, os.ErrNotExist):
		config = shared.DefaultConfig()
		if err := shared.ApplyEnv(config); err != nil {
			return ctx, err
		}
	default:
		return ctx, err
	}

	if cmd.Bool("read-only") {
		config.Limits.ReadOnly = true
	}
	if err := config.Validate(); err != nil {
		return ctx, err
	}
	level, _ := shared.ParseLevel(config.Log.Level)
	shared.SetLogLevel(r.logger, level)

	r.config = config
	r.configPath = path
	return ctx, nil
}

// Stats logs the engine counters gathered during the run when --stats is set.
func (r *Runner) Stats(ctx context.Context, cmd *cli.Command) error {
	if !cmd.Bool("stats") {
		return nil
	}

	families, err := r.registry.Gather()
	if err != nil {
		return fmt.Errorf("failed to gather metrics: %w", err)
	}
	for _, family := range families {
		for _, metric := range family.GetMetric() {
			kv := []any{}
			for _, label := range metric.GetLabel() {
				kv = append(kv, label.GetName(), label.GetValue())
			}
			switch {
			case metric.GetCounter() != nil:
				kv = append(kv, "value", metric.GetCounter().GetValue())
			case metric.GetGauge() != nil:
				kv = append(kv, "value", metric.GetGauge().GetValue())
			case metric.GetHistogram() != nil:
				kv = append(kv, "count", metric.GetHistogram().GetSampleCount(), "sum", metric.GetHistogram().GetSampleSum())
			}
			r.logger.Info(family.GetName(), kv...)
		}
	}
	return nil
}

// open returns the application, opening it on first use.
func (r *Runner) open(ctx context.Context) (*App, error) {
	if r.app != nil {
		return r.app, nil
	}
	app, err := OpenApp(ctx, r.config, r.logger, r.registry)
	if err != nil {
		return nil, err
	}
	r.app = app
	return app, nil
}

// Close releases the application if one was opened.
func (r *Runner) Close() {
	if r.app == nil {
		return
	}
	if err := r.app.Close(); err != nil {
		r.logger.Warn("failed to close application", "error", err)
	}
	r.app = nil
}

// SetLogger replaces the logger used by the runner and by the application opened after it.
func (r *Runner) SetLogger(logger *log.Logger) {
	r.logger = logger
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
