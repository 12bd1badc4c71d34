package duckdb

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/parquet-go/parquet-go"

	"github.com/duckmesh/duckrca/internal/query"
)

type row struct {
	ID    int64  `parquet:"id"`
	Value string `parquet:"value"`
}

func TestExecuteQueriesBoundParquetViews(t *testing.T) {
	dir := t.TempDir()
	path := writeParquet(t, filepath.Join(dir, "events.parquet"), []row{{ID: 1, Value: "a"}, {ID: 2, Value: "b"}, {ID: 3, Value: "c"}})

	result, err := NewEngine().Execute(context.Background(), query.Request{
		SQL:      "SELECT COUNT(*) AS c FROM events",
		Bindings: query.BindTables([]string{path}),
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if len(result.Columns) != 1 || result.Columns[0] != "c" {
		t.Fatalf("columns = %v", result.Columns)
	}
	if len(result.Rows) != 1 {
		t.Fatalf("rows = %d", len(result.Rows))
	}
	if result.Rows[0][0] != int64(3) {
		t.Fatalf("count = %#v", result.Rows[0][0])
	}
}

func TestExecuteBindsCollidingBaseNames(t *testing.T) {
	dir := t.TempDir()
	first := writeParquet(t, filepath.Join(dir, "a", "data.parquet"), []row{{ID: 1, Value: "a"}})
	second := writeParquet(t, filepath.Join(dir, "b", "data.parquet"), []row{{ID: 2, Value: "b"}, {ID: 3, Value: "c"}})

	result, err := NewEngine().Execute(context.Background(), query.Request{
		SQL:      "SELECT (SELECT COUNT(*) FROM data) AS first_count, (SELECT COUNT(*) FROM data_1) AS second_count",
		Bindings: query.BindTables([]string{first, second}),
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if result.Rows[0][0] != int64(1) || result.Rows[0][1] != int64(2) {
		t.Fatalf("row = %#v", result.Rows[0])
	}
}

func TestExecuteStopsAtMaxRows(t *testing.T) {
	dir := t.TempDir()
	rows := make([]row, 0, 25)
	for i := 0; i < 25; i++ {
		rows = append(rows, row{ID: int64(i), Value: "v"})
	}
	path := writeParquet(t, filepath.Join(dir, "metrics.parquet"), rows)

	result, err := NewEngine().Execute(context.Background(), query.Request{
		SQL:      "SELECT id, value FROM metrics ORDER BY id",
		Bindings: query.BindTables([]string{path}),
		MaxRows:  4,
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if len(result.Rows) != 4 {
		t.Fatalf("rows = %d, want 4", len(result.Rows))
	}
	if result.Rows[3][0] != int64(3) || result.Rows[3][1] != "v" {
		t.Fatalf("last row = %#v", result.Rows[3])
	}
}

func TestExecuteNormalizesNestedTimestamps(t *testing.T) {
	result, err := NewEngine().Execute(context.Background(), query.Request{
		SQL: "SELECT TIMESTAMP '2024-03-01 10:15:00' AS at, [TIMESTAMP '2024-03-01 10:16:00'] AS seen, {'first': TIMESTAMP '2024-03-01 10:17:00'} AS bounds",
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	values := result.Rows[0]
	if values[0] != "2024-03-01T10:15:00Z" {
		t.Fatalf("at = %#v", values[0])
	}
	list, ok := values[1].([]any)
	if !ok || len(list) != 1 || list[0] != "2024-03-01T10:16:00Z" {
		t.Fatalf("seen = %#v", values[1])
	}
	bounds, ok := values[2].(map[string]any)
	if !ok || bounds["first"] != "2024-03-01T10:17:00Z" {
		t.Fatalf("bounds = %#v", values[2])
	}
}

func TestExecuteReturnsEngineErrorForUnknownTable(t *testing.T) {
	_, err := NewEngine().Execute(context.Background(), query.Request{SQL: "SELECT * FROM missing_table"})
	if err == nil {
		t.Fatal("Execute() expected error")
	}
	var engineErr *query.EngineError
	if !errors.As(err, &engineErr) {
		t.Fatalf("error type = %T", err)
	}
	if !strings.Contains(strings.ToLower(query.EngineMessage(err)), "missing_table") {
		t.Fatalf("EngineMessage() = %q", query.EngineMessage(err))
	}
}

func TestExecuteFlagsStatementsWithoutResultSet(t *testing.T) {
	dir := t.TempDir()
	path := writeParquet(t, filepath.Join(dir, "events.parquet"), []row{{ID: 1, Value: "a"}})

	statements := []string{
		"CREATE TABLE t (a INTEGER)",
		"SET threads = 1",
		"CREATE TABLE copied AS SELECT * FROM events",
		"CREATE TABLE t (a INTEGER); INSERT INTO t VALUES (1), (2)",
	}
	for _, statement := range statements {
		result, err := NewEngine().Execute(context.Background(), query.Request{
			SQL:      statement,
			Bindings: query.BindTables([]string{path}),
		})
		if err != nil {
			t.Fatalf("Execute(%q) error = %v", statement, err)
		}
		if result.HasResultSet() || !result.NoResultSet {
			t.Fatalf("Execute(%q) = %#v, want no result set", statement, result)
		}
	}
}

func TestExecuteKeepsResultSetForEmptySelect(t *testing.T) {
	dir := t.TempDir()
	path := writeParquet(t, filepath.Join(dir, "events.parquet"), []row{{ID: 1, Value: "a"}})

	result, err := NewEngine().Execute(context.Background(), query.Request{
		SQL:      "SELECT id FROM events WHERE id > 100",
		Bindings: query.BindTables([]string{path}),
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !result.HasResultSet() || len(result.Rows) != 0 {
		t.Fatalf("result = %#v, want empty result set", result)
	}
}

func TestExecuteRejectsEmptySQL(t *testing.T) {
	if _, err := NewEngine().Execute(context.Background(), query.Request{SQL: "  "}); err == nil {
		t.Fatal("Execute() expected error for empty sql")
	}
}

func TestInspectReportsColumnsAndRowCount(t *testing.T) {
	dir := t.TempDir()
	path := writeParquet(t, filepath.Join(dir, "logs.parquet"), []row{{ID: 1, Value: "a"}, {ID: 2, Value: "b"}})

	engine := NewEngine()
	schema, err := engine.Inspect(context.Background(), path)
	if err != nil {
		t.Fatalf("Inspect() error = %v", err)
	}
	if schema.RowCount != 2 {
		t.Fatalf("RowCount = %d", schema.RowCount)
	}
	want := []query.Column{{Name: "id", Type: "BIGINT"}, {Name: "value", Type: "VARCHAR"}}
	if len(schema.Columns) != len(want) {
		t.Fatalf("columns = %#v", schema.Columns)
	}
	for i := range want {
		if schema.Columns[i] != want[i] {
			t.Fatalf("column[%d] = %#v, want %#v", i, schema.Columns[i], want[i])
		}
	}

	again, err := engine.Inspect(context.Background(), path)
	if err != nil {
		t.Fatalf("Inspect() second call error = %v", err)
	}
	if again.RowCount != schema.RowCount || len(again.Columns) != len(schema.Columns) {
		t.Fatalf("second Inspect() = %#v, first = %#v", again, schema)
	}
}

func TestInspectFailsOnCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.parquet")
	if err := os.WriteFile(path, []byte("not parquet"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if _, err := NewEngine().Inspect(context.Background(), path); err == nil {
		t.Fatal("Inspect() expected error for corrupt file")
	}
}

func TestExecuteWrapsViewCreationFailure(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectExec(`CREATE OR REPLACE VIEW "it's" AS SELECT * FROM read_parquet('/data/it''s.parquet')`).
		WillReturnError(errors.New("IO Error: No files found that match the pattern"))
	mock.ExpectClose()

	engine := &Engine{Open: func() (*sql.DB, error) { return db, nil }}
	_, err := engine.Execute(context.Background(), query.Request{
		SQL:      "SELECT 1",
		Bindings: []query.TableBinding{{Identifier: "it's", Path: "/data/it's.parquet"}},
	})
	var engineErr *query.EngineError
	if !errors.As(err, &engineErr) {
		t.Fatalf("error = %v, want EngineError", err)
	}
	if engineErr.Op != "create view" || engineErr.Identifier != "it's" {
		t.Fatalf("EngineError = %#v", engineErr)
	}
	if got := query.EngineMessage(err); got != "IO Error: No files found that match the pattern" {
		t.Fatalf("EngineMessage() = %q", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet() error = %v", err)
	}
}

func TestInspectUsesProbeColumnTypes(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery(`SELECT * FROM read_parquet('/data/spans.parquet') LIMIT 0`).
		WillReturnRows(sqlmock.NewRowsWithColumnDefinition(
			sqlmock.NewColumn("trace_id").OfType("VARCHAR", ""),
			sqlmock.NewColumn("duration_ms").OfType("DOUBLE", float64(0)),
		))
	mock.ExpectQuery(`SELECT COUNT(*) FROM read_parquet('/data/spans.parquet')`).
		WillReturnRows(sqlmock.NewRows([]string{"count_star()"}).AddRow(int64(42)))
	mock.ExpectClose()

	engine := &Engine{Open: func() (*sql.DB, error) { return db, nil }}
	schema, err := engine.Inspect(context.Background(), "/data/spans.parquet")
	if err != nil {
		t.Fatalf("Inspect() error = %v", err)
	}
	if schema.RowCount != 42 {
		t.Fatalf("RowCount = %d", schema.RowCount)
	}
	if schema.Columns[1] != (query.Column{Name: "duration_ms", Type: "DOUBLE"}) {
		t.Fatalf("columns = %#v", schema.Columns)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet() error = %v", err)
	}
}

func TestOpenFailureIsWrapped(t *testing.T) {
	engine := &Engine{Open: func() (*sql.DB, error) { return nil, errors.New("boom") }}
	_, err := engine.Inspect(context.Background(), "x.parquet")
	if err == nil || !strings.Contains(err.Error(), "open duckdb") {
		t.Fatalf("Inspect() error = %v", err)
	}
}

func TestNormalizeValueHandlesSpecialFloatsAndMaps(t *testing.T) {
	normalized := normalizeValue(map[any]any{int32(1): []byte("x")})
	mapped, ok := normalized.(map[string]any)
	if !ok || mapped["1"] != "x" {
		t.Fatalf("normalizeValue(map) = %#v", normalized)
	}
	if got := normalizeValue(float64(1) / zero()); got != "+Inf" {
		t.Fatalf("normalizeValue(+Inf) = %#v", got)
	}
}

func zero() float64 { return 0 }

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return db, mock
}

func writeParquet(t *testing.T, path string, rows []row) string {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	file, err := os.Create(path)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	writer := parquet.NewGenericWriter[row](file)
	if _, err := writer.Write(rows); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("writer.Close() error = %v", err)
	}
	if err := file.Close(); err != nil {
		t.Fatalf("file.Close() error = %v", err)
	}
	return path
}
