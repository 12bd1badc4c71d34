package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/duckmesh/duckrca/internal/agent"
	"github.com/duckmesh/duckrca/internal/config"
	"github.com/duckmesh/duckrca/internal/observability"
	duckdbengine "github.com/duckmesh/duckrca/internal/query/duckdb"
	s3store "github.com/duckmesh/duckrca/internal/storage/s3"
	"github.com/duckmesh/duckrca/internal/task"
	"github.com/duckmesh/duckrca/internal/tools"
)

const (
	previewRunes  = 100
	uploadTimeout = 30 * time.Second
)

func main() {
	cfg, err := config.LoadFromEnv("duckrca-agent")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	fs := flag.NewFlagSet("duckrca-agent", flag.ExitOnError)
	taskFile := fs.String("task", cfg.Agent.TaskFile, "task file with a task_description field")
	outputFile := fs.String("output", cfg.Agent.OutputFile, "transcript output path")
	_ = fs.Parse(os.Args[1:])

	logger := observability.NewLogger(cfg, os.Stderr)

	loaded, err := task.Load(*taskFile)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("Task loaded successfully.")

	registry, err := tools.NewRegistryFromConfig(cfg, duckdbengine.NewEngine(), logger)
	if err != nil {
		logger.Error("failed to initialize tools", slog.Any("error", err))
		os.Exit(1)
	}

	runner, err := agent.NewRunner(agent.Config{
		BaseURL:     cfg.Agent.BaseURL,
		APIKey:      cfg.Agent.APIKey,
		Model:       cfg.Agent.Model,
		Temperature: cfg.Agent.Temperature,
		Timeout:     cfg.Agent.Timeout,
		MaxSteps:    cfg.Agent.MaxSteps,
	}, registry, logger)
	if err != nil {
		logger.Error("failed to initialize agent", slog.Any("error", err))
		os.Exit(1)
	}
	runner.OnEvent = func(event agent.Event) { printEvent(os.Stdout, event) }

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Println("Starting analysis...")
	messages, runErr := runner.Run(ctx, loaded.Description)
	if runErr != nil {
		logger.Error("agent run ended with error", slog.Any("error", runErr))
	}

	savedAt := time.Now()
	transcript := task.NewTranscript(savedAt, agent.TranscriptMessages(messages))
	data, err := task.Save(*outputFile, transcript)
	if err != nil {
		logger.Error("failed to save transcript", slog.Any("error", err))
		os.Exit(1)
	}
	fmt.Printf("Output saved to %s\n", *outputFile)

	if cfg.ObjectStore.Enabled {
		uploadCtx, cancel := uploadContext(ctx)
		err := upload(uploadCtx, cfg, *outputFile, data, savedAt, logger)
		cancel()
		if err != nil {
			logger.Error("failed to upload transcript", slog.Any("error", err))
			os.Exit(1)
		}
	}

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		os.Exit(1)
	}
}

// uploadContext outlives an interrupted run so a transcript saved after
// SIGINT still reaches the archive.
func uploadContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(parent), uploadTimeout)
}

func upload(ctx context.Context, cfg config.Config, outputFile string, data []byte, savedAt time.Time, logger *slog.Logger) error {
	archive, err := s3store.New(ctx, s3store.Config{
		Endpoint:         cfg.ObjectStore.Endpoint,
		Region:           cfg.ObjectStore.Region,
		Bucket:           cfg.ObjectStore.Bucket,
		AccessKeyID:      cfg.ObjectStore.AccessKeyID,
		SecretAccessKey:  cfg.ObjectStore.SecretAccessKey,
		UseSSL:           cfg.ObjectStore.UseSSL,
		Prefix:           cfg.ObjectStore.Prefix,
		AutoCreateBucket: cfg.ObjectStore.AutoCreateBucket,
	})
	if err != nil {
		return err
	}
	name := strings.TrimSuffix(filepath.Base(outputFile), filepath.Ext(outputFile))
	info, err := task.Upload(ctx, archive, name, data, savedAt)
	if err != nil {
		return err
	}
	logger.Info("transcript uploaded",
		slog.String("bucket", cfg.ObjectStore.Bucket),
		slog.String("key", info.Key),
		slog.Int64("size", info.Size),
	)
	return nil
}

func printEvent(w io.Writer, event agent.Event) {
	switch event.Kind {
	case agent.EventTask:
		_, _ = fmt.Fprintf(w, "User: %s...\n", preview(event.Content))
	case agent.EventToolCalls:
		_, _ = fmt.Fprintf(w, "Agent calling tools: [%s]\n", strings.Join(event.ToolNames, ", "))
	case agent.EventAnswer:
		_, _ = fmt.Fprintf(w, "Agent: %s\n", event.Content)
	}
}

func preview(text string) string {
	runes := []rune(text)
	if len(runes) <= previewRunes {
		return text
	}
	return string(runes[:previewRunes])
}
