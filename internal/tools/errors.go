package tools

import (
	"fmt"
	"strings"
)

// ErrorKind names a failure reported at the tool boundary. Kinds are never
// returned as Go errors to callers; they select the JSON shape of the reply
// and label metrics.
type ErrorKind string

const (
	KindDirectoryNotFound   ErrorKind = "DirectoryNotFound"
	KindNotADirectory       ErrorKind = "NotADirectory"
	KindFileNotFound        ErrorKind = "FileNotFound"
	KindSchemaReadError     ErrorKind = "SchemaReadError"
	KindSQLSyntaxError      ErrorKind = "SqlSyntaxError"
	KindTableReferenceError ErrorKind = "TableReferenceError"
	KindQueryExecutionError ErrorKind = "QueryExecutionError"
	KindTokenBudgetExceeded ErrorKind = "TokenBudgetExceeded"
	KindInvalidArguments    ErrorKind = "InvalidArguments"
	KindUnknownTool         ErrorKind = "UnknownTool"
)

// ClassifyQueryError maps an engine message to a query error kind by
// case-insensitive substring match. Syntax markers win over table markers.
func ClassifyQueryError(message string) ErrorKind {
	lowered := strings.ToLower(message)
	switch {
	case strings.Contains(lowered, "syntax error"), strings.Contains(lowered, "parser error"):
		return KindSQLSyntaxError
	case strings.Contains(lowered, "catalog"), strings.Contains(lowered, "table"):
		return KindTableReferenceError
	default:
		return KindQueryExecutionError
	}
}

func queryErrorTitle(kind ErrorKind) string {
	switch kind {
	case KindSQLSyntaxError:
		return "SQL syntax error"
	case KindTableReferenceError:
		return "Table reference error"
	default:
		return "Query execution failed"
	}
}

type errorReply struct {
	Error string `json:"error"`
}

// queryErrorReply keeps available_tables present even when no file was bound.
type queryErrorReply struct {
	Error           string   `json:"error"`
	Details         string   `json:"details"`
	Query           string   `json:"query"`
	AvailableTables []string `json:"available_tables"`
}

type executionErrorReply struct {
	Error   string `json:"error"`
	Details string `json:"details"`
}

type messageReply struct {
	Message string `json:"message"`
}

type emptyListingReply struct {
	Message string      `json:"message"`
	Files   []FileEntry `json:"files"`
}

func directoryNotFoundMessage(directory string) string {
	return "Directory not found: " + directory
}

func notADirectoryMessage(directory string) string {
	return "Path is not a directory: " + directory
}

func fileNotFoundMessage(path string) string {
	return "Parquet file not found: " + path
}

func queryFileNotFoundMessage(path string) string {
	return fmt.Sprintf("%s\nPlease check the file path and ensure the file exists. "+
		"You may use '%s' to discover available parquet files.", fileNotFoundMessage(path), ToolListTables)
}
