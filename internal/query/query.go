package query

import (
	"context"
	"errors"
	"time"
)

// TableBinding maps a SQL-visible identifier to one parquet file for the
// lifetime of a single Execute call.
type TableBinding struct {
	Identifier string
	Path       string
}

type Column struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Schema describes one file at the moment of inspection.
type Schema struct {
	Columns  []Column
	RowCount int64
}

type Request struct {
	SQL      string
	Bindings []TableBinding
	// MaxRows stops row iteration early; zero reads every row.
	MaxRows int
}

type Result struct {
	Columns []string
	Rows    [][]any
	// NoResultSet marks statements such as DDL and DML whose driver columns
	// only carry a status placeholder.
	NoResultSet bool
	Duration    time.Duration
}

func (r Result) HasResultSet() bool {
	return !r.NoResultSet && len(r.Columns) > 0
}

type Engine interface {
	Execute(ctx context.Context, request Request) (Result, error)
	Inspect(ctx context.Context, path string) (Schema, error)
}

// EngineError keeps the engine's own message apart from the operation
// context added while wrapping.
type EngineError struct {
	Op         string
	Identifier string
	Err        error
}

func (e *EngineError) Error() string {
	if e.Identifier != "" {
		return e.Op + " " + e.Identifier + ": " + e.Err.Error()
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *EngineError) Unwrap() error {
	return e.Err
}

// EngineMessage returns the raw engine message carried by err.
func EngineMessage(err error) string {
	if err == nil {
		return ""
	}
	var engineErr *EngineError
	if errors.As(err, &engineErr) {
		return engineErr.Err.Error()
	}
	return err.Error()
}
