package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/querylens/querylens/internal/api"
	"github.com/querylens/querylens/internal/app"
	"github.com/querylens/querylens/internal/config"
	"github.com/querylens/querylens/internal/observability"
)

func main() {
	cfg, err := config.LoadFromEnv("querylens-api")
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

	// An in-process vector index starts empty; fill it once before serving.
	if cfg.VectorStore.Backend == "memory" && cfg.Indexer.RebuildOnStart {
		go func() {
			summary, err := application.Indexer.RunRebuildOnce(ctx)
			if err != nil {
				logger.Error("initial index rebuild failed", slog.Any("error", err))
				return
			}
			logger.Info("initial index rebuild finished",
				slog.String("status", summary.Status),
				slog.Int("tables", summary.Tables),
			)
		}()
	}

	handler := api.NewHandler(cfg, application.APIDependencies())
	server := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	go func() {
		logger.Info("starting api server",
			slog.String("addr", cfg.HTTP.Address),
			slog.String("dialect", cfg.Database.Dialect()),
			slog.String("retrieval_strategy", cfg.Retrieval.Strategy),
			slog.String("embedder", application.Embedder.ID()),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api server failed", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("shutting down api server")
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", slog.Any("error", err))
		_ = server.Close()
		os.Exit(1)
	}
}
