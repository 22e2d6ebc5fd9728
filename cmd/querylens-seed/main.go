package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/querylens/querylens/internal/config"
	"github.com/querylens/querylens/internal/database"
	"github.com/querylens/querylens/internal/demo/seed"
	"github.com/querylens/querylens/internal/observability"
)

func main() {
	cfg, err := config.LoadFromEnv("querylens-seed")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}
	seedCfg, err := seed.LoadConfigFromEnv(os.LookupEnv)
	if err != nil {
		slog.Error("failed to load seed config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg, os.Stdout)
	ctx, cancel := context.WithTimeout(context.Background(), seedCfg.Timeout)
	defer cancel()

	db, err := database.Open(ctx, database.DBConfig{
		Driver:       cfg.Database.Driver,
		DSN:          cfg.Database.DSN,
		MaxOpenConns: 1,
	})
	if err != nil {
		logger.Error("failed to open database", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	seeder, err := seed.NewSeeder(db, cfg.Database.Dialect(), seedCfg, logger)
	if err != nil {
		logger.Error("failed to initialize seeder", slog.Any("error", err))
		os.Exit(1)
	}
	summary, err := seeder.Seed(ctx)
	if err != nil {
		logger.Error("seeding failed", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("demo data ready", slog.Any("rows", summary.Rows))
}
