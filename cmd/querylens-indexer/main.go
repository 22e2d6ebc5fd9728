package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/querylens/querylens/internal/app"
	"github.com/querylens/querylens/internal/config"
	"github.com/querylens/querylens/internal/observability"
)

func main() {
	once := flag.Bool("once", false, "run a single rebuild and exit")
	verify := flag.Bool("verify", false, "with -once, verify the index instead of rebuilding it")
	flag.Parse()

	cfg, err := config.LoadFromEnv("querylens-indexer")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg, os.Stdout)
	application, err := app.New(context.Background(), cfg, logger, app.Overrides{})
	if err != nil {
		logger.Error("failed to initialize application", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() { _ = application.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *once {
		code := runOnce(ctx, application, logger, *verify)
		stop()
		_ = application.Close()
		os.Exit(code)
	}

	logger.Info("indexer worker started",
		slog.Duration("refresh_interval", cfg.Indexer.RefreshInterval),
		slog.Duration("verify_interval", cfg.Indexer.VerifyInterval),
		slog.String("vector_backend", cfg.VectorStore.Backend),
	)
	if err := application.Indexer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("indexer worker failed", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("indexer worker stopped")
}

func runOnce(ctx context.Context, application *app.App, logger *slog.Logger, verify bool) int {
	if verify {
		summary, err := application.Indexer.RunVerifyOnce(ctx)
		if err != nil {
			logger.Error("index verify failed", slog.Any("error", err))
			return 1
		}
		logger.Info("index verify finished",
			slog.Bool("consistent", summary.Consistent),
			slog.Int("missing_tables", summary.Missing),
			slog.Int("extra_tables", summary.Extra),
			slog.Int("mismatched_tables", summary.Mismatched),
		)
		if !summary.Consistent {
			return 3
		}
		return 0
	}

	summary, err := application.Indexer.RunRebuildOnce(ctx)
	if err != nil {
		logger.Error("index rebuild failed", slog.Any("error", err))
		return 1
	}
	logger.Info("index rebuild finished",
		slog.String("status", summary.Status),
		slog.Int("tables", summary.Tables),
		slog.Int("written", summary.Write.Written),
		slog.Int("failed", summary.Write.Failed),
	)
	return 0
}
