package task

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/tidwall/jsonc"
)

var (
	ErrTaskNotFound = errors.New("task file not found")
	ErrInvalidTask  = errors.New("task file is not valid")
)

// Task is the analysis request handed to the agent. Task files are JSON;
// comments and trailing commas are tolerated.
type Task struct {
	Description string `json:"task_description"`
}

func Parse(data []byte) (Task, error) {
	var task Task
	if err := json.Unmarshal(jsonc.ToJSON(data), &task); err != nil {
		return Task{}, fmt.Errorf("%w: %v", ErrInvalidTask, err)
	}
	task.Description = strings.TrimSpace(task.Description)
	if task.Description == "" {
		return Task{}, fmt.Errorf("%w: task_description is required", ErrInvalidTask)
	}
	return task, nil
}

func Load(path string) (Task, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Task{}, fmt.Errorf("%w: %s", ErrTaskNotFound, path)
		}
		return Task{}, fmt.Errorf("read task file %s: %w", path, err)
	}
	task, err := Parse(data)
	if err != nil {
		return Task{}, fmt.Errorf("%s: %w", path, err)
	}
	return task, nil
}
