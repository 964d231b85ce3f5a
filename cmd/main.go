package main

import (
	"context"
	"os"

	"github.com/urfave/cli/v3"

	"skytune/internal/library"
	"skytune/internal/remote"
	"skytune/internal/repositories"
	"skytune/internal/shared"
)

func main() {
	logger := shared.NewLogger(nil)

	config := shared.DefaultConfig()
	if _, err := os.Stat("config.toml"); err == nil {
		if loadedConfig, err := shared.LoadConfig("config.toml"); err == nil {
			config = loadedConfig
		}
	}

	var store library.SnapshotStore
	if db, err := shared.NewDatabase(config.Database.Path); err == nil {
		shared.ConfigureDatabase(db, config.Database.MaxOpenConns, config.Database.MaxIdleConns)
		repo := repositories.NewSnapshotRepository(db)
		if err := repo.Migrate(); err == nil {
			store = repo
		} else {
			logger.Warn("snapshot table migration failed, running without persistence", "err", err)
		}
	} else {
		logger.Warn("database unavailable, running without persistence", "err", err)
	}

	dial := func() remote.Client {
		return remote.NewMobileClient(config, logger)
	}
	manager := library.NewManager(config, store, dial, logger)

	runner := NewRunner(RunnerOpts{
		Config:  config,
		Manager: manager,
		Logger:  logger,
	})

	app := &cli.Command{
		Name:     "skytune",
		Usage:    "Browse and stream a cloud music library",
		Version:  "0.1.0",
		Commands: runner.register(),
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		logger.Fatalf("application error: %v", err)
	}
}
