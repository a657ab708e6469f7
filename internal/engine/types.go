package engine

import (
	"context"
	"encoding/json"
	"fmt"
)

// MessageRole represents the role of a chat message.
type MessageRole string

const (
	RoleSystem    MessageRole = "system"
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleTool      MessageRole = "tool"
)

// ChatMessage is the provider-agnostic message we pass around.
type ChatMessage struct {
	Role    MessageRole
	Content string
	// Name carries the tool call ID for tool-role messages; providers need it
	// to link a result back to the originating call.
	Name     string
	ToolName string
	// ToolCalls stores the calls an assistant message requested. Providers
	// require them when reconstructing the wire-format conversation.
	ToolCalls []ToolCall
	// Media holds non-text attachments (images, documents) produced by
	// directive expansion. Providers that cannot carry a media kind drop it.
	Media []MediaPart
}

// Validate checks if the ChatMessage is valid.
func (m ChatMessage) Validate() error {
	switch m.Role {
	case RoleSystem, RoleUser, RoleAssistant, RoleTool:
	default:
		return fmt.Errorf("invalid message role: %s", m.Role)
	}
	if m.Role == RoleTool && m.Name == "" {
		return fmt.Errorf("tool messages must have a Name field")
	}
	return nil
}

// MediaPart is a non-text attachment riding alongside a message.
type MediaPart struct {
	Type   string `json:"type"` // "image" | "document"
	URL    string `json:"url"`  // data URL or remote URL
	Format string `json:"format,omitempty"`
}

// Usage holds token accounting returned by providers.
type Usage struct {
	Prompt     int
	Completion int
	Total      int
}

// ToolCall represents a function/tool the assistant requested.
type ToolCall struct {
	ID   string         `json:"id"` // provider tool call ID (e.g. OpenAI's call_xxx)
	Name string         `json:"function"`
	Args map[string]any `json:"arguments"`
	// Error is set by a provider when the call arrived incomplete (e.g. the
	// stream ended mid-arguments); the orchestrator folds it into the result.
	Error string `json:"error,omitempty"`
}

// LLMResponse is a normalized result of one chat call.
type LLMResponse struct {
	Assistant    ChatMessage
	ToolCalls    []ToolCall // zero or more tool calls requested by the model
	Usage        Usage
	FinishReason string // "stop" | "length" | "tool_calls" | "content_filter"
}

// LLMClient abstracts the chosen SDK (OpenAI, Anthropic, ...).
type LLMClient interface {
	Chat(ctx context.Context, model string, messages []ChatMessage, toolSchemas []ToolSchema, opts ChatOptions) (LLMResponse, error)
	Stream(ctx context.Context, model string, messages []ChatMessage, toolSchemas []ToolSchema, opts ChatOptions) (<-chan StreamEvent, <-chan error)
}

// ChatOptions keeps the knobs forwarded to the SDK.
type ChatOptions struct {
	Temperature     float32
	MaxOutputTokens int
}

// ToolSchema is the JSON schema the provider expects for function calling.
type ToolSchema struct {
	Name        string
	Description string
	JSONSchema  string // raw JSON string
}

// Export renders the schema in the generic function-calling envelope:
// {"type":"function","function":{"name":...,"description":...,"parameters":{...}}}.
func (ts ToolSchema) Export() (map[string]any, error) {
	var params map[string]any
	if err := json.Unmarshal([]byte(ts.JSONSchema), &params); err != nil {
		return nil, fmt.Errorf("invalid tool schema JSON for %s: %w", ts.Name, err)
	}
	return map[string]any{
		"type": "function",
		"function": map[string]any{
			"name":        ts.Name,
			"description": ts.Description,
			"parameters":  params,
		},
	}, nil
}

// StreamEvent represents a streaming event from the LLM.
type StreamEvent struct {
	Type     string   // "text_delta" | "tool_call" | "usage"
	Text     string   // for text_delta
	ToolCall ToolCall // for tool_call
	Usage    Usage    // for usage
}
