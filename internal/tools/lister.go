package tools

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/duckmesh/duckrca/internal/query"
)

const noFilesMessage = "No parquet files found in directory"

// FileEntry carries either metadata or an error for one discovered file.
type FileEntry struct {
	Filename    string `json:"filename"`
	Path        string `json:"path"`
	RowCount    *int64 `json:"row_count,omitempty"`
	ColumnCount *int   `json:"column_count,omitempty"`
	Error       string `json:"error,omitempty"`
}

// ListTablesInDirectory reports every parquet file under directory at any
// depth. A file that cannot be read gets an error entry and the listing
// continues. An empty directory lists DataDir when one is configured.
func (t *Toolset) ListTablesInDirectory(ctx context.Context, directory string) string {
	start := time.Now()

	if strings.TrimSpace(directory) == "" && t.DataDir != "" {
		directory = t.DataDir
	}

	info, err := os.Stat(directory)
	if err != nil {
		t.observe(ctx, ToolListTables, KindDirectoryNotFound, start, slog.String("directory", directory))
		return errorJSON(directoryNotFoundMessage(directory))
	}
	if !info.IsDir() {
		t.observe(ctx, ToolListTables, KindNotADirectory, start, slog.String("directory", directory))
		return errorJSON(notADirectoryMessage(directory))
	}

	paths := discoverParquetFiles(directory)
	if len(paths) == 0 {
		t.observe(ctx, ToolListTables, "", start, slog.String("directory", directory), slog.Int("files", 0))
		return encodeJSON(emptyListingReply{Message: noFilesMessage, Files: []FileEntry{}})
	}

	entries := make([]FileEntry, 0, len(paths))
	unreadable := 0
	for _, path := range paths {
		entry := FileEntry{Filename: filepath.Base(path), Path: t.displayPath(path)}
		schema, err := t.inspect(ctx, path)
		if err != nil {
			entry.Error = "Could not read file: " + query.EngineMessage(err)
			unreadable++
		} else {
			rowCount := schema.RowCount
			columnCount := len(schema.Columns)
			entry.RowCount = &rowCount
			entry.ColumnCount = &columnCount
		}
		entries = append(entries, entry)
	}

	payload, err := encodeIndentedJSON(entries)
	if err != nil {
		t.observe(ctx, ToolListTables, KindQueryExecutionError, start, slog.Any("error", err))
		return errorJSON(err.Error())
	}
	t.observe(ctx, ToolListTables, "", start,
		slog.String("directory", directory),
		slog.Int("files", len(entries)),
		slog.Int("unreadable", unreadable),
	)
	return payload
}

func (t *Toolset) inspect(ctx context.Context, path string) (query.Schema, error) {
	ctx, cancel := t.withTimeout(ctx)
	defer cancel()
	return t.Engine.Inspect(ctx, path)
}

// discoverParquetFiles walks root in lexical order and returns every
// non-directory entry with a .parquet suffix. Subdirectories that cannot
// be read are skipped.
func discoverParquetFiles(root string) []string {
	paths := make([]string, 0)
	_ = filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			if entry != nil && entry.IsDir() && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		if entry.IsDir() {
			return nil
		}
		if strings.HasSuffix(entry.Name(), ".parquet") {
			paths = append(paths, path)
		}
		return nil
	})
	return paths
}
