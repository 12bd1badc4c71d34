package agent

import (
	"encoding/json"

	"github.com/sashabaranov/go-openai"

	"github.com/duckmesh/duckrca/internal/task"
)

// TranscriptMessages converts chat messages into transcript entries.
func TranscriptMessages(messages []openai.ChatCompletionMessage) []task.Message {
	out := make([]task.Message, 0, len(messages))
	for _, message := range messages {
		switch message.Role {
		case openai.ChatMessageRoleUser:
			out = append(out, task.Message{Type: task.MessageHuman, Content: message.Content})
		case openai.ChatMessageRoleAssistant:
			calls := make([]task.ToolCall, 0, len(message.ToolCalls))
			for _, call := range message.ToolCalls {
				calls = append(calls, task.ToolCall{
					Name: call.Function.Name,
					Args: decodeArguments(call.Function.Arguments),
					ID:   call.ID,
					Type: "tool_call",
				})
			}
			out = append(out, task.Message{Type: task.MessageAI, Content: message.Content, ToolCalls: calls})
		case openai.ChatMessageRoleTool:
			out = append(out, task.Message{
				Type:       task.MessageTool,
				Content:    message.Content,
				ToolCallID: message.ToolCallID,
				Name:       message.Name,
			})
		default:
			out = append(out, task.Message{Type: message.Role, Content: message.Content})
		}
	}
	return out
}

func decodeArguments(raw string) map[string]any {
	args := map[string]any{}
	if raw == "" {
		return args
	}
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return map[string]any{"raw": raw}
	}
	return args
}
