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

	"github.com/duckmesh/duckrca/internal/api"
	"github.com/duckmesh/duckrca/internal/config"
	"github.com/duckmesh/duckrca/internal/observability"
	duckdbengine "github.com/duckmesh/duckrca/internal/query/duckdb"
	"github.com/duckmesh/duckrca/internal/tools"
)

func main() {
	cfg, err := config.LoadFromEnv("duckrca-api")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg, os.Stdout)
	registry, err := tools.NewRegistryFromConfig(cfg, duckdbengine.NewEngine(), logger)
	if err != nil {
		logger.Error("failed to initialize tools", slog.Any("error", err))
		os.Exit(1)
	}

	deps := api.Dependencies{
		Logger: logger,
		Tools:  registry,
		Readiness: api.CombineReadinessChecks(
			api.CheckDataDir(cfg),
			api.CheckObjectStoreConfig(cfg),
		),
		DependencyTimout: time.Second,
	}

	handler := api.NewHandler(cfg, deps)
	server := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("starting tool server",
			slog.String("addr", cfg.HTTP.Address),
			slog.String("data_dir", cfg.Tools.DataDir),
			slog.Int("token_budget", cfg.Tools.TokenBudget),
			slog.String("estimator", cfg.Tools.Estimator),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("tool server failed", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("shutting down tool server")
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", slog.Any("error", err))
		_ = server.Close()
		os.Exit(1)
	}
}
