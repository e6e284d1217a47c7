package main

import (
	"context"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/crux/internal/shared"
)

func newCLI(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "crux",
		Usage:   "Manage a local track library through the crux lifecycle engine",
		Version: "0.1.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   "config.toml",
			},
			&cli.BoolFlag{
				Name:  "read-only",
				Usage: "Reject creates, updates and deletes",
			},
			&cli.BoolFlag{
				Name:  "stats",
				Usage: "Log engine metrics before exiting",
			},
		},
		Before:   r.Load,
		After:    r.Stats,
		Commands: r.register(),
	}
}

func main() {
	logger := shared.NewLogger(nil)
	runner := NewRunner(RunnerOpts{Logger: logger})

	if err := newCLI(runner).Run(context.Background(), os.Args); err != nil {
		runner.Close()
		logger.Fatalf("application error: %v", err)
	}
	runner.Close()
}
