package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/xeipuuv/gojsonschema"
)

// Definition describes a tool to a model or an HTTP client.
type Definition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

type toolHandler func(ctx context.Context, args json.RawMessage) string

type registeredTool struct {
	definition Definition
	schema     *gojsonschema.Schema
	handler    toolHandler
}

// Registry dispatches named calls with JSON arguments to a Toolset after
// validating the arguments against each tool's parameter schema.
type Registry struct {
	toolset *Toolset
	tools   map[string]registeredTool
	order   []string
}

// FileList accepts either a single path or a list of paths.
type FileList []string

func (f *FileList) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*f = FileList{single}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return fmt.Errorf("parquet_files must be a string or a list of strings")
	}
	*f = many
	return nil
}

type listTablesArgs struct {
	Directory string `json:"directory"`
}

type getSchemaArgs struct {
	ParquetFile string `json:"parquet_file"`
}

type queryArgs struct {
	ParquetFiles FileList `json:"parquet_files"`
	Query        string   `json:"query"`
	Limit        *int     `json:"limit"`
}

func NewRegistry(toolset *Toolset) (*Registry, error) {
	registry := &Registry{toolset: toolset, tools: make(map[string]registeredTool)}

	if err := registry.register(Definition{
		Name:        ToolListTables,
		Description: "List all parquet files in a directory (searched recursively) with row and column counts.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"directory": map[string]any{"type": "string", "description": "Directory path to search for parquet files (empty string searches the default data directory)"},
			},
			"required": []any{"directory"},
		},
	}, func(ctx context.Context, raw json.RawMessage) string {
		var args listTablesArgs
		if err := json.Unmarshal(raw, &args); err != nil {
			return invalidArguments(ToolListTables, err)
		}
		return toolset.ListTablesInDirectory(ctx, args.Directory)
	}); err != nil {
		return nil, err
	}

	if err := registry.register(Definition{
		Name:        ToolGetSchema,
		Description: "Get the column names, column types and row count of a parquet file.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"parquet_file": map[string]any{"type": "string", "description": "Path to the parquet file to inspect"},
			},
			"required": []any{"parquet_file"},
		},
	}, func(ctx context.Context, raw json.RawMessage) string {
		var args getSchemaArgs
		if err := json.Unmarshal(raw, &args); err != nil {
			return invalidArguments(ToolGetSchema, err)
		}
		return toolset.GetSchema(ctx, args.ParquetFile)
	}); err != nil {
		return nil, err
	}

	if err := registry.register(Definition{
		Name: ToolQuery,
		Description: "Query parquet files with SQL. Each file is available as a table named after the file " +
			"(e.g. 'data.parquet' -> 'data'; hyphens and spaces become underscores, repeated names get _1, _2 suffixes).",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"parquet_files": map[string]any{
					"description": "Path or list of paths to parquet files",
					"anyOf": []any{
						map[string]any{"type": "string"},
						map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
					},
				},
				"query": map[string]any{"type": "string", "description": "SQL query to execute"},
				"limit": map[string]any{"type": "integer", "minimum": 1, "description": "Maximum number of records to return (default 10)"},
			},
			"required": []any{"parquet_files", "query"},
		},
	}, func(ctx context.Context, raw json.RawMessage) string {
		var args queryArgs
		if err := json.Unmarshal(raw, &args); err != nil {
			return invalidArguments(ToolQuery, err)
		}
		limit := 0
		if args.Limit != nil {
			limit = *args.Limit
		}
		return toolset.QueryParquetFiles(ctx, args.ParquetFiles, args.Query, limit)
	}); err != nil {
		return nil, err
	}

	return registry, nil
}

func (r *Registry) register(definition Definition, handler toolHandler) error {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(definition.Parameters))
	if err != nil {
		return fmt.Errorf("compile schema for tool %q: %w", definition.Name, err)
	}
	r.tools[definition.Name] = registeredTool{definition: definition, schema: schema, handler: handler}
	r.order = append(r.order, definition.Name)
	return nil
}

func (r *Registry) Has(name string) bool {
	_, ok := r.tools[name]
	return ok
}

func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

func (r *Registry) Definitions() []Definition {
	definitions := make([]Definition, 0, len(r.order))
	for _, name := range r.order {
		definitions = append(definitions, r.tools[name].definition)
	}
	return definitions
}

// OpenAITools returns the registry as OpenAI function tool definitions.
func (r *Registry) OpenAITools() []openai.Tool {
	definitions := r.Definitions()
	tools := make([]openai.Tool, 0, len(definitions))
	for _, definition := range definitions {
		tools = append(tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        definition.Name,
				Description: definition.Description,
				Parameters:  definition.Parameters,
			},
		})
	}
	return tools
}

// Call runs the named tool with rawArgs and always returns JSON text.
func (r *Registry) Call(ctx context.Context, name string, rawArgs json.RawMessage) string {
	start := time.Now()
	tool, ok := r.tools[name]
	if !ok {
		r.toolset.observe(ctx, "unknown", KindUnknownTool, start, slog.String("requested", name))
		return errorJSON(fmt.Sprintf("Unknown tool: %s. Available tools: %s", name, strings.Join(r.order, ", ")))
	}

	if len(strings.TrimSpace(string(rawArgs))) == 0 {
		rawArgs = json.RawMessage("{}")
	}
	result, err := tool.schema.Validate(gojsonschema.NewBytesLoader(rawArgs))
	if err != nil {
		r.toolset.observe(ctx, name, KindInvalidArguments, start)
		return invalidArguments(name, err)
	}
	if !result.Valid() {
		problems := make([]string, 0, len(result.Errors()))
		for _, problem := range result.Errors() {
			problems = append(problems, problem.String())
		}
		r.toolset.observe(ctx, name, KindInvalidArguments, start)
		return errorJSON(fmt.Sprintf("Invalid arguments for %s: %s", name, strings.Join(problems, "; ")))
	}

	return tool.handler(ctx, rawArgs)
}

func invalidArguments(name string, err error) string {
	return errorJSON(fmt.Sprintf("Invalid arguments for %s: %v", name, err))
}
