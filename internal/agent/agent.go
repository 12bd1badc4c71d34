package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/duckmesh/duckrca/internal/observability"
)

var ErrMaxSteps = errors.New("agent reached the step limit without a final answer")

const (
	defaultModel    = "gpt-4o"
	defaultMaxSteps = 25
	defaultTimeout  = 2 * time.Minute
)

type ChatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// ToolCaller executes named tools and describes them to the model.
type ToolCaller interface {
	Call(ctx context.Context, name string, rawArgs json.RawMessage) string
	OpenAITools() []openai.Tool
}

var _ ChatClient = (*openai.Client)(nil)

type Config struct {
	BaseURL      string
	APIKey       string
	Model        string
	Temperature  float64
	Timeout      time.Duration
	MaxSteps     int
	SystemPrompt string
}

type EventKind string

const (
	EventTask       EventKind = "task"
	EventToolCalls  EventKind = "tool_calls"
	EventToolResult EventKind = "tool_result"
	EventAnswer     EventKind = "answer"
)

type Event struct {
	Kind      EventKind
	Step      int
	Content   string
	ToolNames []string
	ToolName  string
}

// Runner drives a tool-calling chat loop: the model either answers or asks
// for tool calls, whose results are appended before the next request.
type Runner struct {
	client       ChatClient
	tools        ToolCaller
	model        string
	temperature  float32
	maxSteps     int
	systemPrompt string
	logger       *slog.Logger
	// OnEvent receives progress as the conversation grows.
	OnEvent func(Event)
}

func NewRunner(cfg Config, tools ToolCaller, logger *slog.Logger) (*Runner, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("api key is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	clientConfig := openai.DefaultConfig(strings.TrimSpace(cfg.APIKey))
	clientConfig.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	clientConfig.HTTPClient = &http.Client{Timeout: timeout}
	return NewRunnerWithClient(cfg, openai.NewClientWithConfig(clientConfig), tools, logger)
}

func NewRunnerWithClient(cfg Config, client ChatClient, tools ToolCaller, logger *slog.Logger) (*Runner, error) {
	if client == nil {
		return nil, fmt.Errorf("chat client is required")
	}
	if tools == nil {
		return nil, fmt.Errorf("tools are required")
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultModel
	}
	maxSteps := cfg.MaxSteps
	if maxSteps <= 0 {
		maxSteps = defaultMaxSteps
	}
	if logger == nil {
		logger = observability.DiscardLogger()
	}
	return &Runner{
		client:       client,
		tools:        tools,
		model:        model,
		temperature:  requestTemperature(cfg.Temperature),
		maxSteps:     maxSteps,
		systemPrompt: strings.TrimSpace(cfg.SystemPrompt),
		logger:       logger,
	}, nil
}

// Run sends the task and loops until the model answers without tool calls.
// The conversation so far is returned with every error, including
// ErrMaxSteps.
func (r *Runner) Run(ctx context.Context, description string) ([]openai.ChatCompletionMessage, error) {
	messages := make([]openai.ChatCompletionMessage, 0, 8)
	if r.systemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: r.systemPrompt})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: description})
	r.emit(Event{Kind: EventTask, Content: description})

	definitions := r.tools.OpenAITools()
	for step := 1; step <= r.maxSteps; step++ {
		if err := ctx.Err(); err != nil {
			return messages, err
		}
		resp, err := r.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:       r.model,
			Messages:    messages,
			Tools:       definitions,
			Temperature: r.temperature,
		})
		if err != nil {
			return messages, fmt.Errorf("request chat completion: %w", err)
		}
		if len(resp.Choices) == 0 {
			return messages, fmt.Errorf("empty chat completion choices")
		}

		reply := resp.Choices[0].Message
		reply.Role = openai.ChatMessageRoleAssistant
		messages = append(messages, reply)

		if len(reply.ToolCalls) == 0 {
			r.logger.InfoContext(ctx, "agent answered", slog.Int("step", step), slog.String("model", r.model))
			r.emit(Event{Kind: EventAnswer, Step: step, Content: reply.Content})
			return messages, nil
		}

		names := make([]string, 0, len(reply.ToolCalls))
		for _, call := range reply.ToolCalls {
			names = append(names, call.Function.Name)
		}
		r.logger.InfoContext(ctx, "agent calling tools", slog.Int("step", step), slog.Any("tools", names))
		r.emit(Event{Kind: EventToolCalls, Step: step, Content: reply.Content, ToolNames: names})

		for _, call := range reply.ToolCalls {
			result := r.tools.Call(ctx, call.Function.Name, json.RawMessage(call.Function.Arguments))
			messages = append(messages, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    result,
				Name:       call.Function.Name,
				ToolCallID: call.ID,
			})
			r.emit(Event{Kind: EventToolResult, Step: step, Content: result, ToolName: call.Function.Name})
		}
	}

	r.logger.WarnContext(ctx, "agent stopped at step limit", slog.Int("max_steps", r.maxSteps))
	return messages, ErrMaxSteps
}

func (r *Runner) emit(event Event) {
	if r.OnEvent != nil {
		r.OnEvent(event)
	}
}

// requestTemperature maps zero to the smallest positive float32 because
// the request field omits a literal zero.
func requestTemperature(value float64) float32 {
	if value <= 0 {
		return math.SmallestNonzeroFloat32
	}
	return float32(value)
}
