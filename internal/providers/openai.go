package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"

	"github.com/myassine/ibis/internal/engine"

	openai "github.com/meguminnnnnnnnn/go-openai"
)

// OpenAIClient implements engine.LLMClient against the OpenAI chat API, or
// any OpenAI-compatible endpoint selected via baseURL.
type OpenAIClient struct {
	client *openai.Client
	log    *slog.Logger
}

func NewOpenAIClient(apiKey, baseURL string) *OpenAIClient {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &OpenAIClient{
		client: openai.NewClientWithConfig(config),
		log:    slog.Default().With("provider", "openai"),
	}
}

// toOpenAIMessages renders the conversation in OpenAI wire shape. Tool
// results must follow an assistant message carrying tool_calls; anything
// else would be rejected by the API, so orphaned tool messages are skipped.
func (c *OpenAIClient) toOpenAIMessages(messages []engine.ChatMessage) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	var prevAssistantHadToolCalls bool

	for _, msg := range messages {
		switch msg.Role {
		case engine.RoleSystem:
			out = append(out, openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleSystem,
				Content: msg.Content,
			})
			prevAssistantHadToolCalls = false
		case engine.RoleUser:
			out = append(out, c.userMessage(msg))
			prevAssistantHadToolCalls = false
		case engine.RoleAssistant:
			// The SDK serializes an empty string as null, which the API
			// rejects on tool-call turns. A single space is accepted.
			content := msg.Content
			if content == "" {
				content = " "
			}
			var toolCalls []openai.ToolCall
			for _, tc := range msg.ToolCalls {
				argsJSON, _ := json.Marshal(tc.Args)
				toolCalls = append(toolCalls, openai.ToolCall{
					ID:   tc.ID,
					Type: "function",
					Function: openai.FunctionCall{
						Name:      tc.Name,
						Arguments: string(argsJSON),
					},
				})
			}
			out = append(out, openai.ChatCompletionMessage{
				Role:      openai.ChatMessageRoleAssistant,
				Content:   content,
				ToolCalls: toolCalls,
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
			// msg.Name carries the provider's tool call id, not the tool name.
			out = append(out, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				ToolCallID: msg.Name,
				Content:    content,
			})
		}
	}
	return out
}

// userMessage renders a user turn, switching to multi-part content when the
// message carries image attachments. Documents have no chat-API rendering
// here and are dropped with a warning.
func (c *OpenAIClient) userMessage(msg engine.ChatMessage) openai.ChatCompletionMessage {
	var images []engine.MediaPart
	for _, part := range msg.Media {
		switch part.Type {
		case "image":
			images = append(images, part)
		default:
			c.log.Warn("dropping unsupported attachment", "type", part.Type, "format", part.Format)
		}
	}
	if len(images) == 0 {
		return openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleUser,
			Content: msg.Content,
		}
	}

	parts := []openai.ChatMessagePart{{
		Type: openai.ChatMessagePartTypeText,
		Text: msg.Content,
	}}
	for _, img := range images {
		parts = append(parts, openai.ChatMessagePart{
			Type:     openai.ChatMessagePartTypeImageURL,
			ImageURL: &openai.ChatMessageImageURL{URL: img.URL},
		})
	}
	return openai.ChatCompletionMessage{
		Role:         openai.ChatMessageRoleUser,
		MultiContent: parts,
	}
}

func toOpenAITools(toolSchemas []engine.ToolSchema) ([]openai.Tool, error) {
	var tools []openai.Tool
	for _, ts := range toolSchemas {
		var schemaObj map[string]any
		if err := json.Unmarshal([]byte(ts.JSONSchema), &schemaObj); err != nil {
			return nil, fmt.Errorf("invalid tool schema JSON for %s: %w", ts.Name, err)
		}
		tools = append(tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        ts.Name,
				Description: ts.Description,
				Parameters:  schemaObj,
			},
		})
	}
	return tools, nil
}

func (c *OpenAIClient) buildRequest(modelName string, messages []engine.ChatMessage, toolSchemas []engine.ToolSchema, opts engine.ChatOptions) (openai.ChatCompletionRequest, error) {
	req := openai.ChatCompletionRequest{
		Model:    modelName,
		Messages: c.toOpenAIMessages(messages),
	}
	tools, err := toOpenAITools(toolSchemas)
	if err != nil {
		return req, err
	}
	if len(tools) > 0 {
		req.Tools = tools
		req.ToolChoice = "auto"
	}
	if opts.MaxOutputTokens > 0 {
		req.MaxTokens = opts.MaxOutputTokens
	}
	if opts.Temperature > 0 {
		req.Temperature = &opts.Temperature
	}
	return req, nil
}

// Chat implements engine.LLMClient.
func (c *OpenAIClient) Chat(ctx context.Context, modelName string, messages []engine.ChatMessage, toolSchemas []engine.ToolSchema, opts engine.ChatOptions) (engine.LLMResponse, error) {
	req, err := c.buildRequest(modelName, messages, toolSchemas, opts)
	if err != nil {
		return engine.LLMResponse{}, err
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		httpStatus, retryAfter := extractErrorMetadata(err)
		return engine.LLMResponse{}, engine.WrapGatewayError(err, httpStatus, retryAfter)
	}
	if len(resp.Choices) == 0 {
		return engine.LLMResponse{}, errors.New("empty response from OpenAI")
	}

	choice := resp.Choices[0]
	var toolCalls []engine.ToolCall
	for _, tc := range choice.Message.ToolCalls {
		args := make(map[string]any)
		if tc.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
				args = make(map[string]any)
			}
		}
		toolCalls = append(toolCalls, engine.ToolCall{
			ID:   tc.ID,
			Name: tc.Function.Name,
			Args: args,
		})
	}

	finishReason := "stop"
	switch {
	case len(toolCalls) > 0:
		finishReason = "tool_calls"
	case choice.FinishReason == openai.FinishReasonLength:
		finishReason = "length"
	case choice.FinishReason == openai.FinishReasonContentFilter:
		finishReason = "content_filter"
	}

	return engine.LLMResponse{
		Assistant: engine.ChatMessage{
			Role:      engine.RoleAssistant,
			Content:   choice.Message.Content,
			ToolCalls: toolCalls,
		},
		ToolCalls: toolCalls,
		Usage: engine.Usage{
			Prompt:     resp.Usage.PromptTokens,
			Completion: resp.Usage.CompletionTokens,
			Total:      resp.Usage.TotalTokens,
		},
		FinishReason: finishReason,
	}, nil
}

// toolCallAccumulator collects the field-by-field tool call deltas OpenAI
// streams. Arguments arrive as raw JSON fragments and are parsed at stream
// end.
type toolCallAccumulator struct {
	call     engine.ToolCall
	argsJSON strings.Builder
	index    int
}

// Stream implements engine.LLMClient with real streaming. Text deltas are
// forwarded as they arrive; tool calls are accumulated until the stream
// ends, then emitted in the order the model started them.
func (c *OpenAIClient) Stream(ctx context.Context, modelName string, messages []engine.ChatMessage, toolSchemas []engine.ToolSchema, opts engine.ChatOptions) (<-chan engine.StreamEvent, <-chan error) {
	eventCh := make(chan engine.StreamEvent, 10)
	errCh := make(chan error, 1)

	go func() {
		defer close(eventCh)
		defer close(errCh)

		req, err := c.buildRequest(modelName, messages, toolSchemas, opts)
		if err != nil {
			errCh <- err
			return
		}
		req.Stream = true
		req.StreamOptions = &openai.StreamOptions{IncludeUsage: true}

		stream, err := c.client.CreateChatCompletionStream(ctx, req)
		if err != nil {
			httpStatus, retryAfter := extractErrorMetadata(err)
			errCh <- engine.WrapGatewayError(err, httpStatus, retryAfter)
			return
		}
		defer stream.Close()

		accums := make(map[string]*toolCallAccumulator)
		nextIndex := 0
		var finalUsage engine.Usage

		for {
			response, err := stream.Recv()
			if err != nil {
				if !errors.Is(err, io.EOF) {
					httpStatus, retryAfter := extractErrorMetadata(err)
					errCh <- engine.WrapGatewayError(err, httpStatus, retryAfter)
					return
				}
				c.emitAccumulated(ctx, eventCh, accums, finalUsage)
				return
			}

			// The final chunk may carry usage with no choices when
			// stream_options.include_usage is set.
			if response.Usage != nil && response.Usage.TotalTokens > 0 {
				finalUsage = engine.Usage{
					Prompt:     response.Usage.PromptTokens,
					Completion: response.Usage.CompletionTokens,
					Total:      response.Usage.TotalTokens,
				}
			}
			if len(response.Choices) == 0 {
				continue
			}
			delta := response.Choices[0].Delta

			if delta.Content != "" {
				select {
				case eventCh <- engine.StreamEvent{Type: "text_delta", Text: delta.Content}:
				case <-ctx.Done():
					return
				}
			}

			for _, tcDelta := range delta.ToolCalls {
				acc := c.accumulatorFor(accums, tcDelta, &nextIndex)
				if acc == nil {
					continue
				}
				if tcDelta.Function.Name != "" {
					acc.call.Name = tcDelta.Function.Name
				}
				if tcDelta.Function.Arguments != "" {
					acc.argsJSON.WriteString(tcDelta.Function.Arguments)
				}
			}
		}
	}()

	return eventCh, errCh
}

// accumulatorFor finds or creates the accumulator a delta belongs to. Deltas
// may identify their call by id or, before the id has streamed, by index.
func (c *OpenAIClient) accumulatorFor(accums map[string]*toolCallAccumulator, tcDelta openai.ToolCall, nextIndex *int) *toolCallAccumulator {
	if tcDelta.ID != "" {
		if acc, ok := accums[tcDelta.ID]; ok {
			return acc
		}
		if tcDelta.Index != nil {
			// The id may arrive after the first index-keyed fragment.
			for key, acc := range accums {
				if acc.index == *tcDelta.Index && strings.HasPrefix(key, "index_") {
					delete(accums, key)
					acc.call.ID = tcDelta.ID
					accums[tcDelta.ID] = acc
					return acc
				}
			}
		}
		acc := &toolCallAccumulator{
			call:  engine.ToolCall{ID: tcDelta.ID},
			index: *nextIndex,
		}
		*nextIndex++
		accums[tcDelta.ID] = acc
		return acc
	}
	if tcDelta.Index == nil {
		return nil
	}
	for _, acc := range accums {
		if acc.index == *tcDelta.Index {
			return acc
		}
	}
	key := fmt.Sprintf("index_%d", *tcDelta.Index)
	acc := &toolCallAccumulator{
		call:  engine.ToolCall{ID: key},
		index: *tcDelta.Index,
	}
	accums[key] = acc
	return acc
}

// emitAccumulated flushes completed tool calls in start order, then usage.
// Malformed argument JSON is surfaced on the call's Error field so the loop
// can report it to the model instead of executing.
func (c *OpenAIClient) emitAccumulated(ctx context.Context, eventCh chan<- engine.StreamEvent, accums map[string]*toolCallAccumulator, usage engine.Usage) {
	ordered := make([]*toolCallAccumulator, 0, len(accums))
	for _, acc := range accums {
		if acc.call.Name == "" {
			continue
		}
		ordered = append(ordered, acc)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].index < ordered[j].index })

	for _, acc := range ordered {
		acc.call.Args = make(map[string]any)
		raw := acc.argsJSON.String()
		if raw != "" {
			if err := json.Unmarshal([]byte(raw), &acc.call.Args); err != nil {
				c.log.Warn("tool call arguments did not parse", "tool", acc.call.Name, "bytes", len(raw), "err", err)
				acc.call.Error = fmt.Sprintf("invalid JSON in arguments: %v", err)
			}
		}
		select {
		case eventCh <- engine.StreamEvent{Type: "tool_call", ToolCall: acc.call}:
		case <-ctx.Done():
			return
		}
	}

	if usage.Total > 0 {
		select {
		case eventCh <- engine.StreamEvent{Type: "usage", Usage: usage}:
		case <-ctx.Done():
		}
	}
}
