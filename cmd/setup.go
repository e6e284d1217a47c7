package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/crux/internal/shared"
)

// setupCommand handles setup operations for the configuration file and the database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:   "database",
				Usage:  "Create the configuration file if needed, then initialize the database",
				Action: r.SetupDatabase,
			},
			{
				Name:   "rollback",
				Usage:  "Roll back the most recent SQLite migration",
				Action: r.RollbackDatabase,
			},
			{
				Name:   "config",
				Usage:  "Print the effective configuration, environment overrides included",
				Action: r.ShowConfig,
			},
		},
	}
}

// SetupDatabase initializes the database and runs migrations.
//
// A missing configuration file is created from the embedded template first.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	configPath := r.configPath
	if configPath == "" {
		configPath = "config.toml"
	}

	if _, err := os.Stat(configPath); err != nil {
		r.logger.Info("config file not found, creating from template", "path", configPath)
		if err := shared.CreateConfigFile(configPath); err != nil {
			return fmt.Errorf("failed to create config file: %w", err)
		}

		config, err := shared.LoadConfig(configPath)
		if err != nil {
			return fmt.Errorf("failed to load created config: %w", err)
		}
		if err := config.Validate(); err != nil {
			return err
		}
		r.config = config
		r.logger.Info("config file created", "path", configPath)
	}

	r.logger.Info("initializing database", "driver", r.config.Database.Driver)
	if _, err := r.open(ctx); err != nil {
		return err
	}

	r.writePlain("✓ Database ready (%s)\n", r.describeDatabase())
	return nil
}

// RollbackDatabase reverts the newest applied migration of the SQLite database.
func (r *Runner) RollbackDatabase(ctx context.Context, cmd *cli.Command) error {
	if r.config.Database.Driver != shared.DriverSQLite {
		return fmt.Errorf("%w: rollback needs the %s driver, not %s", shared.ErrInvalidConfig, shared.DriverSQLite, r.config.Database.Driver)
	}

	db, err := shared.NewDatabase(r.config.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to create database: %w", err)
	}
	defer db.Close()

	version, err := shared.RollbackMigration(ctx, db)
	if err != nil {
		return fmt.Errorf("failed to roll back migration: %w", err)
	}
	r.logger.Info("rolled back migration", "version", version)
	r.writePlain("✓ Rolled back migration %d\n", version)
	return nil
}

// ShowConfig prints the configuration the other commands run with.
func (r *Runner) ShowConfig(ctx context.Context, cmd *cli.Command) error {
	r.writePlainHeader(fmt.Sprintf("Configuration (%s)", r.configPath))
	return shared.WriteConfig(r.output, r.config)
}

func (r *Runner) describeDatabase() string {
	switch r.config.Database.Driver {
	case shared.DriverSQLite, shared.DriverGormSQLite:
		return fmt.Sprintf("%s at %s", r.config.Database.Driver, r.config.Database.Path)
	default:
		return r.config.Database.Driver
	}
}
