package main

import (
	"log/slog"
	"os"

	"github.com/duckmesh/duckrca/internal/config"
	"github.com/duckmesh/duckrca/internal/demo/dataset"
	"github.com/duckmesh/duckrca/internal/observability"
)

func main() {
	cfg, err := config.LoadFromEnv("duckrca-demo-data")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := observability.NewLogger(cfg, os.Stdout)

	demoCfg, err := dataset.LoadConfigFromEnv(os.LookupEnv)
	if err != nil {
		logger.Error("failed to load demo dataset config", slog.Any("error", err))
		os.Exit(1)
	}

	written, err := dataset.Write(demoCfg, logger)
	if err != nil {
		logger.Error("failed to write demo dataset", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("demo dataset ready",
		slog.String("output_dir", demoCfg.OutputDir),
		slog.Int("files", len(written)),
		slog.Int64("seed", demoCfg.Seed),
		slog.String("incident_service", demoCfg.IncidentService),
		slog.String("incident_region", demoCfg.IncidentRegion),
	)
}
