package task

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/duckmesh/duckrca/internal/storage"
)

const (
	MessageHuman  = "human"
	MessageAI     = "ai"
	MessageTool   = "tool"
	MessageSystem = "system"
)

type ToolCall struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
	ID   string         `json:"id"`
	Type string         `json:"type"`
}

type Message struct {
	Type       string     `json:"type"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	Name       string     `json:"name,omitempty"`
}

// Transcript is the full message exchange of one agent run.
type Transcript struct {
	Timestamp string    `json:"timestamp"`
	Messages  []Message `json:"messages"`
}

func NewTranscript(savedAt time.Time, messages []Message) Transcript {
	if messages == nil {
		messages = []Message{}
	}
	return Transcript{Timestamp: savedAt.Format(time.RFC3339Nano), Messages: messages}
}

func (t Transcript) Encode() ([]byte, error) {
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(t); err != nil {
		return nil, fmt.Errorf("encode transcript: %w", err)
	}
	return buf.Bytes(), nil
}

// Save writes the transcript as indented JSON, creating parent directories.
func Save(path string, transcript Transcript) ([]byte, error) {
	data, err := transcript.Encode()
	if err != nil {
		return nil, err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create transcript dir: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return nil, fmt.Errorf("write transcript %s: %w", path, err)
	}
	return data, nil
}

// Upload archives encoded transcript bytes under a date-partitioned key
// derived from name, then reads the object back to confirm the archive holds
// every byte.
func Upload(ctx context.Context, archive storage.TranscriptArchive, name string, data []byte, savedAt time.Time) (storage.ObjectInfo, error) {
	if archive == nil {
		return storage.ObjectInfo{}, fmt.Errorf("transcript archive is required")
	}
	key, err := storage.BuildTranscriptPath(name, savedAt)
	if err != nil {
		return storage.ObjectInfo{}, err
	}
	uploaded, err := archive.Put(ctx, key, data)
	if err != nil {
		return storage.ObjectInfo{}, fmt.Errorf("upload transcript: %w", err)
	}
	stored, err := archive.Stat(ctx, key)
	if err != nil {
		return storage.ObjectInfo{}, fmt.Errorf("verify transcript upload: %w", err)
	}
	if stored.Size != int64(len(data)) {
		return storage.ObjectInfo{}, fmt.Errorf("verify transcript upload: stored %d bytes, want %d", stored.Size, len(data))
	}
	if uploaded.ETag != "" && stored.ETag != "" && uploaded.ETag != stored.ETag {
		return storage.ObjectInfo{}, fmt.Errorf("verify transcript upload: etag %q, want %q", stored.ETag, uploaded.ETag)
	}
	return stored, nil
}
