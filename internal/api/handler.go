package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/duckmesh/duckrca/internal/config"
	"github.com/duckmesh/duckrca/internal/observability"
	"github.com/duckmesh/duckrca/internal/tools"
)

const maxToolBodyBytes = 1 << 20

type ReadinessCheck func(ctx context.Context) error

// ToolDispatcher is the subset of tools.Registry the handler needs.
type ToolDispatcher interface {
	Has(name string) bool
	Names() []string
	Definitions() []tools.Definition
	Call(ctx context.Context, name string, rawArgs json.RawMessage) string
}

type Dependencies struct {
	Logger           *slog.Logger
	Readiness        ReadinessCheck
	DependencyTimout time.Duration
	Tools            ToolDispatcher
}

func NewHandler(cfg config.Config, deps Dependencies) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /v1/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "service": cfg.Service.Name})
	})

	mux.HandleFunc("GET /v1/ready", func(w http.ResponseWriter, r *http.Request) {
		if deps.Readiness == nil {
			writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
			return
		}
		timeout := deps.DependencyTimout
		if timeout <= 0 {
			timeout = 2 * time.Second
		}
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()
		if err := deps.Readiness(ctx); err != nil {
			writeError(r.Context(), w, http.StatusServiceUnavailable, "NOT_READY", err.Error(), true, nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
	})

	mux.Handle("GET /v1/metrics", promhttp.Handler())

	mux.HandleFunc("GET /v1/tools", func(w http.ResponseWriter, r *http.Request) {
		handleListTools(deps, w, r)
	})
	mux.HandleFunc("POST /v1/tools/{name}", func(w http.ResponseWriter, r *http.Request) {
		handleCallTool(deps, w, r)
	})

	middlewares := []func(http.Handler) http.Handler{
		observability.TraceMiddleware,
		observability.MetricsMiddleware,
	}
	if deps.Logger != nil {
		middlewares = append(middlewares, observability.LoggingMiddleware(deps.Logger))
	}
	return chain(mux, middlewares...)
}

func handleListTools(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Tools == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "TOOLS_NOT_CONFIGURED", "tool registry is not configured", false, nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tools": deps.Tools.Definitions()})
}

func handleCallTool(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Tools == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "TOOLS_NOT_CONFIGURED", "tool registry is not configured", false, nil)
		return
	}

	name := r.PathValue("name")
	if !deps.Tools.Has(name) {
		writeError(r.Context(), w, http.StatusNotFound, "TOOL_NOT_FOUND", fmt.Sprintf("unknown tool %q", name), false, map[string]any{
			"available_tools": deps.Tools.Names(),
		})
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxToolBodyBytes))
	if err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_BODY", "could not read request body", false, map[string]any{"details": err.Error()})
		return
	}
	if strings.TrimSpace(string(body)) == "" {
		body = []byte("{}")
	}
	if !json.Valid(body) {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "tool arguments must be a JSON object", false, nil)
		return
	}

	result := deps.Tools.Call(r.Context(), name, json.RawMessage(body))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, result)
}

// CheckDataDir reports the server not ready until the configured data directory exists.
func CheckDataDir(cfg config.Config) ReadinessCheck {
	return func(_ context.Context) error {
		if cfg.Tools.DataDir == "" {
			return nil
		}
		info, err := os.Stat(cfg.Tools.DataDir)
		if err != nil {
			return fmt.Errorf("data directory %s: %w", cfg.Tools.DataDir, err)
		}
		if !info.IsDir() {
			return fmt.Errorf("data directory %s is not a directory", cfg.Tools.DataDir)
		}
		return nil
	}
}

func CheckObjectStoreConfig(cfg config.Config) ReadinessCheck {
	return func(_ context.Context) error {
		if !cfg.ObjectStore.Enabled {
			return nil
		}
		if cfg.ObjectStore.Endpoint == "" {
			return errors.New("object store endpoint is not configured")
		}
		if cfg.ObjectStore.Bucket == "" {
			return errors.New("object store bucket is not configured")
		}
		return nil
	}
}

func CombineReadinessChecks(checks ...ReadinessCheck) ReadinessCheck {
	filtered := make([]ReadinessCheck, 0, len(checks))
	for _, check := range checks {
		if check != nil {
			filtered = append(filtered, check)
		}
	}
	return func(ctx context.Context) error {
		for _, check := range filtered {
			if err := check(ctx); err != nil {
				return err
			}
		}
		return nil
	}
}

func chain(base http.Handler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	wrapped := base
	for i := len(middlewares) - 1; i >= 0; i-- {
		wrapped = middlewares[i](wrapped)
	}
	return wrapped
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(ctx context.Context, w http.ResponseWriter, status int, code, message string, retryable bool, extra map[string]any) {
	writeJSON(w, status, map[string]any{
		"error_code": code,
		"message":    message,
		"retryable":  retryable,
		"context":    extra,
		"trace_id":   observability.TraceIDFromContext(ctx),
	})
}
