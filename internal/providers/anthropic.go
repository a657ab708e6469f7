package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/myassine/ibis/internal/engine"

	anthropic "github.com/liushuangls/go-anthropic/v2"
)

const anthropicDefaultMaxTokens = 4096

// AnthropicClient implements engine.LLMClient against the Anthropic
// Messages API.
type AnthropicClient struct {
	client *anthropic.Client
	log    *slog.Logger
}

func NewAnthropicClient(apiKey string) *AnthropicClient {
	return &AnthropicClient{
		client: anthropic.NewClient(apiKey),
		log:    slog.Default().With("provider", "anthropic"),
	}
}

// toAnthropicMessages splits the conversation into system parts and turn
// messages. Tool results become user-role tool_result blocks and must
// follow an assistant turn that used tools; orphans are skipped.
func (c *AnthropicClient) toAnthropicMessages(messages []engine.ChatMessage) ([]anthropic.MessageSystemPart, []anthropic.Message) {
	var systemParts []anthropic.MessageSystemPart
	var out []anthropic.Message
	var prevAssistantHadToolCalls bool

	for _, msg := range messages {
		switch msg.Role {
		case engine.RoleSystem:
			systemParts = append(systemParts, anthropic.MessageSystemPart{
				Type: "text",
				Text: msg.Content,
			})
			prevAssistantHadToolCalls = false
		case engine.RoleUser:
			out = append(out, anthropic.Message{
				Role:    anthropic.RoleUser,
				Content: c.userContent(msg),
			})
			prevAssistantHadToolCalls = false
		case engine.RoleAssistant:
			var content []anthropic.MessageContent
			if strings.TrimSpace(msg.Content) != "" {
				content = append(content, anthropic.NewTextMessageContent(msg.Content))
			}
			for _, tc := range msg.ToolCalls {
				argsJSON, _ := json.Marshal(tc.Args)
				content = append(content, anthropic.NewToolUseMessageContent(tc.ID, tc.Name, json.RawMessage(argsJSON)))
			}
			out = append(out, anthropic.Message{
				Role:    anthropic.RoleAssistant,
				Content: content,
			})
			prevAssistantHadToolCalls = len(msg.ToolCalls) > 0
		case engine.RoleTool:
			if !prevAssistantHadToolCalls {
				continue
			}
			content := msg.Content
			if content == "" {
				content = "{}"
			}
			// msg.Name carries the tool_use_id, not the tool name.
			out = append(out, anthropic.Message{
				Role:    anthropic.RoleUser,
				Content: []anthropic.MessageContent{anthropic.NewToolResultMessageContent(msg.Name, content, false)},
			})
		}
	}
	return systemParts, out
}

// userContent renders a user turn, attaching base64 images as image blocks.
// Remote image URLs and documents have no rendering here and are dropped
// with a warning.
func (c *AnthropicClient) userContent(msg engine.ChatMessage) []anthropic.MessageContent {
	content := []anthropic.MessageContent{anthropic.NewTextMessageContent(msg.Content)}
	for _, part := range msg.Media {
		if part.Type != "image" {
			c.log.Warn("dropping unsupported attachment", "type", part.Type, "format", part.Format)
			continue
		}
		mediaType, data, ok := splitDataURL(part.URL)
		if !ok {
			c.log.Warn("dropping non-inline image attachment", "url", part.URL)
			continue
		}
		content = append(content, anthropic.NewImageMessageContent(
			anthropic.NewMessageContentSource(anthropic.MessagesContentSourceTypeBase64, mediaType, data),
		))
	}
	return content
}

// splitDataURL breaks "data:<mediatype>;base64,<data>" into its parts.
func splitDataURL(url string) (mediaType, data string, ok bool) {
	if !strings.HasPrefix(url, "data:") {
		return "", "", false
	}
	rest := strings.TrimPrefix(url, "data:")
	meta, data, found := strings.Cut(rest, ",")
	if !found || !strings.HasSuffix(meta, ";base64") {
		return "", "", false
	}
	return strings.TrimSuffix(meta, ";base64"), data, true
}

func toAnthropicTools(toolSchemas []engine.ToolSchema) ([]anthropic.ToolDefinition, error) {
	var toolDefs []anthropic.ToolDefinition
	for _, ts := range toolSchemas {
		var schemaObj map[string]any
		if err := json.Unmarshal([]byte(ts.JSONSchema), &schemaObj); err != nil {
			return nil, fmt.Errorf("invalid tool schema JSON for %s: %w", ts.Name, err)
		}
		toolDefs = append(toolDefs, anthropic.ToolDefinition{
			Name:        ts.Name,
			Description: ts.Description,
			InputSchema: schemaObj,
		})
	}
	return toolDefs, nil
}

func (c *AnthropicClient) buildRequest(modelName string, messages []engine.ChatMessage, toolSchemas []engine.ToolSchema, opts engine.ChatOptions) (anthropic.MessagesRequest, error) {
	systemParts, msgs := c.toAnthropicMessages(messages)

	maxTokens := anthropicDefaultMaxTokens
	if opts.MaxOutputTokens > 0 {
		maxTokens = opts.MaxOutputTokens
	}
	temperature := float32(0.1)
	if opts.Temperature > 0 {
		temperature = opts.Temperature
	}

	req := anthropic.MessagesRequest{
		Model:       anthropic.Model(modelName),
		Messages:    msgs,
		MaxTokens:   maxTokens,
		Temperature: &temperature,
	}
	if len(systemParts) > 0 {
		req.MultiSystem = systemParts
	}
	toolDefs, err := toAnthropicTools(toolSchemas)
	if err != nil {
		return req, err
	}
	if len(toolDefs) > 0 {
		req.Tools = toolDefs
	}
	return req, nil
}

// Chat implements engine.LLMClient.
func (c *AnthropicClient) Chat(ctx context.Context, modelName string, messages []engine.ChatMessage, toolSchemas []engine.ToolSchema, opts engine.ChatOptions) (engine.LLMResponse, error) {
	req, err := c.buildRequest(modelName, messages, toolSchemas, opts)
	if err != nil {
		return engine.LLMResponse{}, err
	}

	resp, err := c.client.CreateMessages(ctx, req)
	if err != nil {
		httpStatus, retryAfter := extractErrorMetadata(err)
		return engine.LLMResponse{}, engine.WrapGatewayError(err, httpStatus, retryAfter)
	}

	var textContent string
	var toolCalls []engine.ToolCall
	for _, block := range resp.Content {
		switch block.Type {
		case anthropic.MessagesContentTypeText:
			if block.Text != nil {
				textContent += *block.Text
			}
		case "tool_use":
			if block.MessageContentToolUse == nil || block.ID == "" || block.Name == "" {
				continue
			}
			args := make(map[string]any)
			if len(block.Input) > 0 {
				if err := json.Unmarshal(block.Input, &args); err != nil {
					args = make(map[string]any)
				}
			}
			toolCalls = append(toolCalls, engine.ToolCall{
				ID:   block.ID,
				Name: block.Name,
				Args: args,
			})
		}
	}

	finishReason := "stop"
	switch {
	case len(toolCalls) > 0:
		finishReason = "tool_calls"
	case resp.StopReason == "max_tokens":
		finishReason = "length"
	case resp.StopReason == "content_filtered":
		finishReason = "content_filter"
	}

	return engine.LLMResponse{
		Assistant: engine.ChatMessage{
			Role:      engine.RoleAssistant,
			Content:   textContent,
			ToolCalls: toolCalls,
		},
		ToolCalls: toolCalls,
		Usage: engine.Usage{
			Prompt:     resp.Usage.InputTokens,
			Completion: resp.Usage.OutputTokens,
			Total:      resp.Usage.InputTokens + resp.Usage.OutputTokens,
		},
		FinishReason: finishReason,
	}, nil
}

// Stream implements engine.LLMClient. The SDK streams through callbacks,
// which are adapted onto the event channel.
func (c *AnthropicClient) Stream(ctx context.Context, modelName string, messages []engine.ChatMessage, toolSchemas []engine.ToolSchema, opts engine.ChatOptions) (<-chan engine.StreamEvent, <-chan error) {
	eventCh := make(chan engine.StreamEvent, 10)
	errCh := make(chan error, 1)

	go func() {
		defer close(eventCh)
		defer close(errCh)

		base, err := c.buildRequest(modelName, messages, toolSchemas, opts)
		if err != nil {
			errCh <- err
			return
		}
		req := anthropic.MessagesStreamRequest{MessagesRequest: base}

		req.OnError = func(errResp anthropic.ErrorResponse) {
			select {
			case errCh <- fmt.Errorf("anthropic streaming error: %s", errResp.Error.Message):
			default:
			}
		}

		req.OnContentBlockDelta = func(delta anthropic.MessagesEventContentBlockDeltaData) {
			if delta.Delta.Type != "text_delta" || delta.Delta.Text == nil {
				return
			}
			select {
			case eventCh <- engine.StreamEvent{Type: "text_delta", Text: *delta.Delta.Text}:
			case <-ctx.Done():
			}
		}

		req.OnContentBlockStop = func(stop anthropic.MessagesEventContentBlockStopData, content anthropic.MessageContent) {
			if content.Type != "tool_use" || content.MessageContentToolUse == nil {
				return
			}
			tc := content.MessageContentToolUse
			args := make(map[string]any)
			if len(tc.Input) > 0 {
				if err := json.Unmarshal(tc.Input, &args); err != nil {
					args = make(map[string]any)
				}
			}
			select {
			case eventCh <- engine.StreamEvent{Type: "tool_call", ToolCall: engine.ToolCall{
				ID:   tc.ID,
				Name: tc.Name,
				Args: args,
			}}:
			case <-ctx.Done():
			}
		}

		resp, err := c.client.CreateMessagesStream(ctx, req)
		if err != nil {
			httpStatus, retryAfter := extractErrorMetadata(err)
			select {
			case errCh <- engine.WrapGatewayError(err, httpStatus, retryAfter):
			default:
			}
			return
		}

		if resp.Usage.InputTokens > 0 {
			select {
			case eventCh <- engine.StreamEvent{Type: "usage", Usage: engine.Usage{
				Prompt:     resp.Usage.InputTokens,
				Completion: resp.Usage.OutputTokens,
				Total:      resp.Usage.InputTokens + resp.Usage.OutputTokens,
			}}:
			case <-ctx.Done():
			}
		}
	}()

	return eventCh, errCh
}
