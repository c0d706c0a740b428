package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/desertthunder/crossfade/internal/repositories"
	"github.com/desertthunder/crossfade/internal/shared"
	"github.com/urfave/cli/v3"
)

// SetupDatabase initializes the database and runs migrations.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")

	var config *shared.Config
	if _, err := os.Stat(configPath); err == nil {
		if config, err = shared.LoadConfig(configPath); err != nil {
			r.logger.Warn("failed to load config, using defaults", "error", err)
			config = shared.DefaultConfig()
		}
	} else {
		r.logger.Info("config file not found, creating from template", "path", configPath)
		if err := shared.CreateConfigFile(configPath); err != nil {
			r.logger.Warn("failed to create config file, using defaults", "error", err)
			config = shared.DefaultConfig()
		} else {
			r.logger.Info("config file created", "path", configPath)
			if config, err = shared.LoadConfig(configPath); err != nil {
				r.logger.Warn("failed to load created config, using defaults", "error", err)
				config = shared.DefaultConfig()
			}
		}
	}

	r.logger.Info("initializing database", "path", config.Database.Path)

	db, err := openDatabase(config.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	if cmd.Bool("rollback") {
		if err := shared.RollbackMigration(db); err != nil {
			return err
		}
		r.logger.Warn("rolled back latest migration", "path", config.Database.Path)
		return r.writePlain("✓ Rolled back latest migration in %s\n", config.Database.Path)
	}

	version, err := shared.SchemaVersion(db)
	if err != nil {
		return err
	}

	r.logger.Infof("setup complete for database: %v", config.Database.Path)
	return r.writePlain("✓ Database ready at %s (schema %04d)\n", config.Database.Path, version)
}

// openDatabase opens the history database and brings its schema up to date.
func openDatabase(cfg shared.DatabaseConfig) (*sql.DB, error) {
	db, err := shared.NewDatabase(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to create database: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		shared.ConfigureDatabase(db, cfg.MaxOpenConns, cfg.MaxIdleConns)
	}

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return db, nil
}

// openHistory returns the conversion repository and a func closing its database.
func (r *Runner) openHistory() (*repositories.ConversionRepository, func(), error) {
	db, err := openDatabase(r.config.Database)
	if err != nil {
		return nil, nil, err
	}
	return repositories.NewConversionRepository(db), func() { db.Close() }, nil
}
