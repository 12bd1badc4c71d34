package duckdb

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	duckdbdriver "github.com/marcboeker/go-duckdb/v2"

	"github.com/duckmesh/duckrca/internal/query"
)

// Opener returns a fresh database handle. Each Execute and Inspect call
// owns the handle it opens and closes it before returning.
type Opener func() (*sql.DB, error)

type Engine struct {
	Open Opener
}

func NewEngine() *Engine {
	return &Engine{Open: OpenInMemory}
}

func OpenInMemory() (*sql.DB, error) {
	return sql.Open("duckdb", "")
}

func (e *Engine) Execute(ctx context.Context, request query.Request) (query.Result, error) {
	if strings.TrimSpace(request.SQL) == "" {
		return query.Result{}, fmt.Errorf("sql is required")
	}

	start := time.Now()
	db, err := e.open()
	if err != nil {
		return query.Result{}, err
	}
	defer func() { _ = db.Close() }()

	// Views are connection scoped in an in-memory database, so the bindings
	// and the statement share one connection.
	conn, err := db.Conn(ctx)
	if err != nil {
		return query.Result{}, fmt.Errorf("acquire duckdb connection: %w", err)
	}
	defer func() { _ = conn.Close() }()

	for _, binding := range request.Bindings {
		viewSQL := fmt.Sprintf(`CREATE OR REPLACE VIEW %s AS SELECT * FROM read_parquet(%s)`, quoteIdent(binding.Identifier), quoteString(binding.Path))
		if _, err := conn.ExecContext(ctx, viewSQL); err != nil {
			return query.Result{}, &query.EngineError{Op: "create view", Identifier: binding.Identifier, Err: err}
		}
	}

	var result query.Result
	err = conn.Raw(func(driverConn any) error {
		duckConn, ok := driverConn.(*duckdbdriver.Conn)
		if !ok {
			return fmt.Errorf("unexpected driver connection %T", driverConn)
		}
		var execErr error
		result, execErr = executeStatement(ctx, duckConn, request)
		return execErr
	})
	if err != nil {
		return query.Result{}, err
	}
	result.Duration = time.Since(start)
	return result, nil
}

// executeStatement prepares request.SQL once so the statement type decides
// whether the placeholder columns DuckDB reports for DDL and DML are kept.
func executeStatement(ctx context.Context, conn *duckdbdriver.Conn, request query.Request) (query.Result, error) {
	prepared, err := conn.PrepareContext(ctx, request.SQL)
	if err != nil {
		return query.Result{}, &query.EngineError{Op: "execute query", Err: err}
	}
	defer func() { _ = prepared.Close() }()

	stmt, ok := prepared.(*duckdbdriver.Stmt)
	if !ok {
		return query.Result{}, fmt.Errorf("unexpected driver statement %T", prepared)
	}
	stmtType, err := stmt.StatementType()
	if err != nil {
		return query.Result{}, &query.EngineError{Op: "statement type", Err: err}
	}

	rows, err := stmt.QueryContext(ctx, nil)
	if err != nil {
		return query.Result{}, &query.EngineError{Op: "execute query", Err: err}
	}
	defer func() { _ = rows.Close() }()

	if !returnsRows(stmtType) {
		return query.Result{NoResultSet: true}, nil
	}

	columns := rows.Columns()
	resultRows := make([][]any, 0)
	values := make([]driver.Value, len(columns))
	for request.MaxRows <= 0 || len(resultRows) < request.MaxRows {
		err := rows.Next(values)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return query.Result{}, &query.EngineError{Op: "scan row", Err: err}
		}
		row := make([]any, len(values))
		for i, value := range values {
			row[i] = normalizeValue(value)
		}
		resultRows = append(resultRows, row)
	}

	return query.Result{Columns: columns, Rows: resultRows}, nil
}

func returnsRows(stmtType duckdbdriver.StmtType) bool {
	switch stmtType {
	case duckdbdriver.STATEMENT_TYPE_SELECT,
		duckdbdriver.STATEMENT_TYPE_EXPLAIN,
		duckdbdriver.STATEMENT_TYPE_PRAGMA,
		duckdbdriver.STATEMENT_TYPE_CALL,
		duckdbdriver.STATEMENT_TYPE_RELATION,
		duckdbdriver.STATEMENT_TYPE_EXECUTE,
		duckdbdriver.STATEMENT_TYPE_LOGICAL_PLAN:
		return true
	default:
		return false
	}
}

// Inspect reads column names and types with a zero-row probe and then
// counts every row in the file.
func (e *Engine) Inspect(ctx context.Context, path string) (query.Schema, error) {
	db, err := e.open()
	if err != nil {
		return query.Schema{}, err
	}
	defer func() { _ = db.Close() }()

	source := "read_parquet(" + quoteString(path) + ")"

	rows, err := db.QueryContext(ctx, "SELECT * FROM "+source+" LIMIT 0")
	if err != nil {
		return query.Schema{}, &query.EngineError{Op: "probe schema", Err: err}
	}
	columnTypes, err := rows.ColumnTypes()
	if err != nil {
		_ = rows.Close()
		return query.Schema{}, &query.EngineError{Op: "probe schema", Err: err}
	}
	columns := make([]query.Column, 0, len(columnTypes))
	for _, columnType := range columnTypes {
		columns = append(columns, query.Column{Name: columnType.Name(), Type: columnType.DatabaseTypeName()})
	}
	if err := rows.Close(); err != nil {
		return query.Schema{}, &query.EngineError{Op: "probe schema", Err: err}
	}

	var rowCount int64
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+source).Scan(&rowCount); err != nil {
		return query.Schema{}, &query.EngineError{Op: "count rows", Err: err}
	}

	return query.Schema{Columns: columns, RowCount: rowCount}, nil
}

func (e *Engine) open() (*sql.DB, error) {
	opener := e.Open
	if opener == nil {
		opener = OpenInMemory
	}
	db, err := opener()
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	db.SetMaxOpenConns(1)
	return db, nil
}

// normalizeValue converts driver values into JSON-encodable ones. Times
// become ISO-8601 text at any nesting depth inside lists, structs and maps.
func normalizeValue(value any) any {
	switch typed := value.(type) {
	case nil:
		return nil
	case []byte:
		return string(typed)
	case time.Time:
		return typed.Format(time.RFC3339Nano)
	case float64:
		return normalizeFloat(typed)
	case float32:
		return normalizeFloat(float64(typed))
	case []any:
		out := make([]any, len(typed))
		for i, item := range typed {
			out[i] = normalizeValue(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(typed))
		for key, item := range typed {
			out[key] = normalizeValue(item)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(typed))
		for key, item := range typed {
			out[fmt.Sprint(normalizeValue(key))] = normalizeValue(item)
		}
		return out
	case interface{ Float64() float64 }:
		return normalizeFloat(typed.Float64())
	case fmt.Stringer:
		return typed.String()
	default:
		return typed
	}
}

func normalizeFloat(value float64) any {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return fmt.Sprint(value)
	}
	return value
}

func quoteIdent(value string) string {
	return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
}

func quoteString(value string) string {
	return `'` + strings.ReplaceAll(value, `'`, `''`) + `'`
}
