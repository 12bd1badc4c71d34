package observability

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/duckmesh/duckrca/internal/config"
)

func TestNewLoggerJSONIncludesServiceAndProfile(t *testing.T) {
	cfg, err := config.Load("duckrca-agent", func(key string) (string, bool) {
		if key == "DUCKRCA_LOG_JSON" {
			return "true", true
		}
		return "", false
	})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	var buf bytes.Buffer
	NewLogger(cfg, &buf).Info("tool_call")

	var decoded map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("log line is not JSON: %v (%s)", err, buf.String())
	}
	if decoded["service"] != "duckrca-agent" {
		t.Fatalf("service = %#v", decoded["service"])
	}
	if decoded["profile"] != "dev" {
		t.Fatalf("profile = %#v", decoded["profile"])
	}
}

func TestNewLoggerTextRespectsLevel(t *testing.T) {
	cfg, err := config.Load("duckrca-api", func(key string) (string, bool) {
		if key == "DUCKRCA_LOG_LEVEL" {
			return "warn", true
		}
		return "", false
	})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	var buf bytes.Buffer
	logger := NewLogger(cfg, &buf)
	logger.Info("hidden")
	logger.Warn("shown")
	if strings.Contains(buf.String(), "hidden") {
		t.Fatalf("info line leaked at warn level: %s", buf.String())
	}
	if !strings.Contains(buf.String(), "shown") {
		t.Fatalf("warn line missing: %s", buf.String())
	}
}
