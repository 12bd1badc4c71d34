package tools

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/duckmesh/duckrca/internal/query"
)

type SchemaReport struct {
	File     string         `json:"file"`
	RowCount int64          `json:"row_count"`
	Columns  []query.Column `json:"columns"`
}

// GetSchema reports the ordered columns and row count of one parquet file.
// The file is read on every call.
func (t *Toolset) GetSchema(ctx context.Context, parquetFile string) string {
	start := time.Now()

	if _, err := os.Stat(parquetFile); err != nil {
		t.observe(ctx, ToolGetSchema, KindFileNotFound, start, slog.String("file", parquetFile))
		return errorJSON(fileNotFoundMessage(parquetFile))
	}

	schema, err := t.inspect(ctx, parquetFile)
	if err != nil {
		t.observe(ctx, ToolGetSchema, KindSchemaReadError, start, slog.String("file", parquetFile), slog.Any("error", err))
		return errorJSON(query.EngineMessage(err))
	}

	columns := schema.Columns
	if columns == nil {
		columns = []query.Column{}
	}
	payload, err := encodeIndentedJSON(SchemaReport{
		File:     t.displayPath(parquetFile),
		RowCount: schema.RowCount,
		Columns:  columns,
	})
	if err != nil {
		t.observe(ctx, ToolGetSchema, KindSchemaReadError, start, slog.Any("error", err))
		return errorJSON(err.Error())
	}

	result, kind := t.enforce(payload, ToolGetSchema)
	t.observe(ctx, ToolGetSchema, kind, start,
		slog.String("file", parquetFile),
		slog.Int("columns", len(columns)),
		slog.Int64("rows", schema.RowCount),
	)
	return result
}
