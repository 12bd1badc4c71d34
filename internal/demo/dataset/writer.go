package dataset

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/parquet-go/parquet-go"

	"github.com/duckmesh/duckrca/internal/observability"
)

// WrittenFile describes one parquet file produced by Write.
type WrittenFile struct {
	Path string
	Rows int
}

// EncodeParquet writes rows as a single parquet file using the struct's
// parquet tags as the schema.
func EncodeParquet[T any](rows []T) ([]byte, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("rows are required")
	}
	buf := bytes.NewBuffer(nil)
	writer := parquet.NewGenericWriter[T](buf)
	if _, err := writer.Write(rows); err != nil {
		return nil, fmt.Errorf("write parquet rows: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close parquet writer: %w", err)
	}
	return buf.Bytes(), nil
}

// Write generates the scenario under cfg.OutputDir:
//
//	region-a/metrics.parquet
//	region-b/metrics.parquet
//	logs/app-logs.parquet
//	traces/spans.parquet
func Write(cfg Config, logger *slog.Logger) ([]WrittenFile, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = observability.DiscardLogger()
	}

	generator := NewGenerator(cfg)
	written := make([]WrittenFile, 0, 4)
	for _, region := range regions {
		rows := generator.Metrics(region)
		file, err := writeRows(cfg.OutputDir, filepath.Join(region, "metrics.parquet"), rows)
		if err != nil {
			return written, err
		}
		written = append(written, file)
	}

	logs, err := writeRows(cfg.OutputDir, filepath.Join("logs", "app-logs.parquet"), generator.Logs())
	if err != nil {
		return written, err
	}
	written = append(written, logs)

	spans, err := writeRows(cfg.OutputDir, filepath.Join("traces", "spans.parquet"), generator.Spans())
	if err != nil {
		return written, err
	}
	written = append(written, spans)

	for _, file := range written {
		logger.Info("demo parquet file written", slog.String("path", file.Path), slog.Int("rows", file.Rows))
	}
	return written, nil
}

func writeRows[T any](root, relative string, rows []T) (WrittenFile, error) {
	data, err := EncodeParquet(rows)
	if err != nil {
		return WrittenFile{}, fmt.Errorf("encode %s: %w", relative, err)
	}
	path := filepath.Join(root, relative)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return WrittenFile{}, fmt.Errorf("create directory for %s: %w", relative, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return WrittenFile{}, fmt.Errorf("write %s: %w", relative, err)
	}
	return WrittenFile{Path: path, Rows: len(rows)}, nil
}
