package tools

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	"github.com/duckmesh/duckrca/internal/query"
)

const noResultsMessage = "Query executed successfully but returned no results."

// QueryParquetFiles binds each file to a table identifier derived from its
// name, runs sqlText against those bindings and returns at most limit rows.
// A limit below one falls back to the default.
func (t *Toolset) QueryParquetFiles(ctx context.Context, parquetFiles []string, sqlText string, limit int) string {
	start := time.Now()

	for _, path := range parquetFiles {
		if _, err := os.Stat(path); err != nil {
			t.observe(ctx, ToolQuery, KindFileNotFound, start, slog.String("file", path))
			return errorJSON(queryFileNotFoundMessage(path))
		}
	}

	if limit < 1 {
		limit = t.DefaultLimit
		if limit < 1 {
			limit = DefaultQueryLimit
		}
	}

	bindings := query.BindTables(parquetFiles)
	execCtx, cancel := t.withTimeout(ctx)
	defer cancel()

	result, err := t.Engine.Execute(execCtx, query.Request{
		SQL:      sqlText,
		Bindings: bindings,
		MaxRows:  limit,
	})
	if err != nil {
		message := query.EngineMessage(err)
		kind := ClassifyQueryError(message)
		t.observe(ctx, ToolQuery, kind, start,
			slog.Int("files", len(parquetFiles)),
			slog.String("details", message),
		)
		if kind == KindQueryExecutionError {
			return encodeJSON(executionErrorReply{Error: queryErrorTitle(kind), Details: message})
		}
		return encodeJSON(queryErrorReply{
			Error:           queryErrorTitle(kind),
			Details:         message,
			Query:           sqlText,
			AvailableTables: boundIdentifiers(bindings, err),
		})
	}

	if !result.HasResultSet() {
		t.observe(ctx, ToolQuery, "", start, slog.Int("files", len(parquetFiles)), slog.Int("rows", 0))
		return encodeJSON(messageReply{Message: noResultsMessage})
	}

	records := result.Rows
	if len(records) > limit {
		records = records[:limit]
	}
	payload, err := encodeIndentedJSON(buildRows(result.Columns, records))
	if err != nil {
		t.observe(ctx, ToolQuery, KindQueryExecutionError, start, slog.Any("error", err))
		return encodeJSON(executionErrorReply{Error: queryErrorTitle(KindQueryExecutionError), Details: err.Error()})
	}

	reply, kind := t.enforce(payload, ToolQuery)
	t.observe(ctx, ToolQuery, kind, start,
		slog.Int("files", len(parquetFiles)),
		slog.Int("rows", len(records)),
		slog.String("engine_duration", result.Duration.String()),
	)
	return reply
}

// boundIdentifiers lists the identifiers registered before the failure. A
// failed view creation includes the identifier being created.
func boundIdentifiers(bindings []query.TableBinding, err error) []string {
	identifiers := query.Identifiers(bindings)
	var engineErr *query.EngineError
	if !errors.As(err, &engineErr) || engineErr.Identifier == "" {
		return identifiers
	}
	for i, identifier := range identifiers {
		if identifier == engineErr.Identifier {
			return identifiers[:i+1]
		}
	}
	return identifiers
}
