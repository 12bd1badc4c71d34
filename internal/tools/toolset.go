package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/duckmesh/duckrca/internal/observability"
	"github.com/duckmesh/duckrca/internal/query"
	"github.com/duckmesh/duckrca/internal/tokenbudget"
)

const (
	ToolListTables = "list_tables_in_directory"
	ToolGetSchema  = "get_schema"
	ToolQuery      = "query_parquet_files"

	DefaultQueryLimit = 10
)

// Toolset implements the three tabular tools. Every method returns JSON
// text; failures are encoded in the payload rather than returned.
// A Toolset holds no per-call state and is safe for concurrent use.
type Toolset struct {
	Engine       query.Engine
	Budget       *tokenbudget.Enforcer
	Logger       *slog.Logger
	DefaultLimit int
	QueryTimeout time.Duration
	// DataDir is listed when list_tables_in_directory gets an empty directory.
	DataDir string
	// Getwd resolves the directory used to shorten displayed paths.
	Getwd func() (string, error)
}

func NewToolset(engine query.Engine, budget *tokenbudget.Enforcer, logger *slog.Logger) *Toolset {
	if budget == nil {
		budget = tokenbudget.NewEnforcer(tokenbudget.DefaultBudget, tokenbudget.CharEstimator{CharsPerToken: tokenbudget.DefaultCharsPerToken})
	}
	if logger == nil {
		logger = observability.DiscardLogger()
	}
	return &Toolset{
		Engine:       engine,
		Budget:       budget,
		Logger:       logger,
		DefaultLimit: DefaultQueryLimit,
		Getwd:        os.Getwd,
	}
}

// displayPath shortens absolute paths under the working directory to a
// relative form and leaves every other path as given.
func (t *Toolset) displayPath(path string) string {
	if !filepath.IsAbs(path) || t.Getwd == nil {
		return path
	}
	cwd, err := t.Getwd()
	if err != nil {
		return path
	}
	rel, err := filepath.Rel(cwd, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return path
	}
	return rel
}

func (t *Toolset) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if t.QueryTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, t.QueryTimeout)
}

func (t *Toolset) enforce(payload, contextLabel string) (string, ErrorKind) {
	if t.Budget == nil {
		return payload, ""
	}
	enforced := t.Budget.Enforce(payload, contextLabel)
	if enforced != payload {
		return enforced, KindTokenBudgetExceeded
	}
	return payload, ""
}

func (t *Toolset) observe(ctx context.Context, tool string, kind ErrorKind, start time.Time, attrs ...slog.Attr) {
	elapsed := time.Since(start)
	observability.ObserveToolCall(tool, string(kind), elapsed)
	if t.Logger == nil {
		return
	}
	attrs = append(attrs,
		slog.String("tool", tool),
		slog.String("duration", elapsed.String()),
		slog.String("trace_id", observability.TraceIDFromContext(ctx)),
	)
	if kind == "" {
		t.Logger.LogAttrs(ctx, slog.LevelDebug, "tool call completed", attrs...)
		return
	}
	attrs = append(attrs, slog.String("outcome", string(kind)))
	t.Logger.LogAttrs(ctx, slog.LevelWarn, "tool call failed", attrs...)
}

// encodeJSON writes compact JSON without HTML escaping.
func encodeJSON(value any) string {
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(value); err != nil {
		return `{"error":"encode response"}`
	}
	return strings.TrimSuffix(buf.String(), "\n")
}

func encodeIndentedJSON(value any) (string, error) {
	return tokenbudget.MarshalIndent(value)
}

func errorJSON(message string) string {
	return encodeJSON(errorReply{Error: message})
}
