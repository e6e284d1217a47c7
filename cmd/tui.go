package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/crux/internal/repositories"
	"github.com/desertthunder/crux/internal/shared"
	"github.com/desertthunder/crux/internal/ui"
)

// Browse launches the interactive track browser.
func (r *Runner) Browse(ctx context.Context, cmd *cli.Command) error {
	sort, err := repositories.TrackSchema.ParseSort(cmd.String("sort"))
	if err != nil {
		return fmt.Errorf("%w: %w", shared.ErrInvalidFlag, err)
	}

	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, file, err := shared.NewFileLogger(cmd.String("log-file"))
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	defer file.Close()
	shared.SetLogLevel(fileLogger, r.logger.GetLevel())
	r.SetLogger(fileLogger)

	app, err := r.open(ctx)
	if err != nil {
		return err
	}

	opts := []ui.Option{ui.WithSort(sort)}
	if app.Cache != nil {
		opts = append(opts, ui.WithCache(app.Cache))
	}

	model := ui.NewModel(ctx, app.Tracks, int(cmd.Int("size")), opts...)
	p := tea.NewProgram(model, tea.WithContext(ctx))

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}
