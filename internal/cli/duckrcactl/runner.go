package duckrcactl

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

type Options struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
	Stdout     io.Writer
	Stderr     io.Writer
}

type request struct {
	method string
	path   string
	body   any
}

func Run(ctx context.Context, args []string, defaults Options) int {
	stdout := defaults.Stdout
	if stdout == nil {
		stdout = io.Discard
	}
	stderr := defaults.Stderr
	if stderr == nil {
		stderr = io.Discard
	}

	fs := flag.NewFlagSet("duckrcactl", flag.ContinueOnError)
	fs.SetOutput(stderr)

	baseURL := fs.String("base-url", firstNonEmpty(defaults.BaseURL, "http://localhost:8080"), "duckrca tool server base URL")
	timeout := fs.Duration("timeout", durationOr(defaults.Timeout, 30*time.Second), "HTTP timeout (e.g. 30s)")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() < 1 {
		writeUsage(stderr)
		return 2
	}

	req, err := buildRequest(fs.Arg(0), fs.Args()[1:], stderr)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "%v\n\n", err)
		writeUsage(stderr)
		return 2
	}

	client := defaults.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: *timeout}
	}

	endpoint := strings.TrimRight(*baseURL, "/") + req.path
	code, responseBody, err := doRequest(ctx, client, req.method, endpoint, req.body)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "request failed: %v\n", err)
		return 1
	}

	if code >= 400 {
		_, _ = fmt.Fprintf(stderr, "http %d: %s\n", code, strings.TrimSpace(string(responseBody)))
		return 1
	}

	if pretty, ok := prettyJSON(responseBody); ok {
		_, _ = fmt.Fprintln(stdout, pretty)
		return 0
	}
	if len(responseBody) > 0 {
		_, _ = fmt.Fprintln(stdout, string(responseBody))
	}
	return 0
}

func buildRequest(command string, args []string, stderr io.Writer) (request, error) {
	switch strings.TrimSpace(command) {
	case "health":
		return request{method: http.MethodGet, path: "/v1/health"}, nil
	case "ready":
		return request{method: http.MethodGet, path: "/v1/ready"}, nil
	case "tools":
		return request{method: http.MethodGet, path: "/v1/tools"}, nil
	case "list":
		if len(args) != 1 {
			return request{}, fmt.Errorf("list requires exactly one directory")
		}
		return request{
			method: http.MethodPost,
			path:   "/v1/tools/list_tables_in_directory",
			body:   map[string]any{"directory": args[0]},
		}, nil
	case "schema":
		if len(args) != 1 {
			return request{}, fmt.Errorf("schema requires exactly one parquet file")
		}
		return request{
			method: http.MethodPost,
			path:   "/v1/tools/get_schema",
			body:   map[string]any{"parquet_file": args[0]},
		}, nil
	case "query":
		queryFlags := flag.NewFlagSet("query", flag.ContinueOnError)
		queryFlags.SetOutput(stderr)
		limit := queryFlags.Int("limit", 0, "maximum number of rows to return (server default when 0)")
		if err := queryFlags.Parse(args); err != nil {
			return request{}, err
		}
		if queryFlags.NArg() < 2 {
			return request{}, fmt.Errorf("query requires a SQL statement and at least one parquet file")
		}
		body := map[string]any{
			"query":         queryFlags.Arg(0),
			"parquet_files": queryFlags.Args()[1:],
		}
		if *limit > 0 {
			body["limit"] = *limit
		}
		return request{method: http.MethodPost, path: "/v1/tools/query_parquet_files", body: body}, nil
	default:
		return request{}, fmt.Errorf("unknown command %q", command)
	}
}

func doRequest(ctx context.Context, client *http.Client, method, url string, payload any) (int, []byte, error) {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, responseBody, nil
}

// prettyJSON indents raw in place so key order from the server is kept.
func prettyJSON(raw []byte) (string, bool) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return "", false
	}
	var out bytes.Buffer
	if err := json.Indent(&out, trimmed, "", "  "); err != nil {
		return "", false
	}
	return out.String(), true
}

func writeUsage(w io.Writer) {
	_, _ = fmt.Fprintln(w, "usage: duckrcactl [flags] <command> [args]")
	_, _ = fmt.Fprintln(w, "")
	_, _ = fmt.Fprintln(w, "commands:")
	_, _ = fmt.Fprintln(w, "  health                              GET /v1/health")
	_, _ = fmt.Fprintln(w, "  ready                               GET /v1/ready")
	_, _ = fmt.Fprintln(w, "  tools                               GET /v1/tools")
	_, _ = fmt.Fprintln(w, "  list <dir>                          list parquet files under dir")
	_, _ = fmt.Fprintln(w, "  schema <file>                       show columns and row count")
	_, _ = fmt.Fprintln(w, "  query [-limit N] <sql> <file>...    run SQL over parquet files")
}

func firstNonEmpty(a, b string) string {
	if strings.TrimSpace(a) != "" {
		return strings.TrimSpace(a)
	}
	return b
}

func durationOr(v, fallback time.Duration) time.Duration {
	if v > 0 {
		return v
	}
	return fallback
}
