// Package orchestrator drives the tool-calling cycle: call the model with
// the session's API projection, execute any requested tools, feed the
// results back, and repeat until the model produces a final answer or the
// iteration cap forces one.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/myassine/ibis/internal/engine"
	"github.com/myassine/ibis/internal/session"
)

// DefaultMaxIterations caps tool-calling rounds before a final answer is
// forced.
const DefaultMaxIterations = 10

type phase int

const (
	phaseAwaitingModel phase = iota
	phaseExecutingTools
	phaseForcedFinal
)

func (p phase) String() string {
	switch p {
	case phaseAwaitingModel:
		return "awaiting_model"
	case phaseExecutingTools:
		return "executing_tools"
	case phaseForcedFinal:
		return "forced_final"
	}
	return "unknown"
}

// Loop is the tool-calling state machine. One Loop may serve many sessions;
// each Run owns its session exclusively for the duration of the turn.
type Loop struct {
	llm           engine.LLMClient
	tools         engine.ToolRegistry
	opts          engine.ChatOptions
	maxIterations int
	log           *slog.Logger

	// OnDelta, when set, switches model calls to streaming and receives each
	// text fragment as it arrives.
	OnDelta func(text string)
}

func New(llm engine.LLMClient, tools engine.ToolRegistry, opts engine.ChatOptions) *Loop {
	return &Loop{
		llm:           llm,
		tools:         tools,
		opts:          opts,
		maxIterations: DefaultMaxIterations,
		log:           slog.Default().With("component", "orchestrator"),
	}
}

// SetMaxIterations overrides the iteration cap. Values below 1 are ignored.
func (l *Loop) SetMaxIterations(n int) {
	if n >= 1 {
		l.maxIterations = n
	}
}

// Run drives the loop over the session until the model returns an answer
// with no tool calls, or the iteration cap forces one last non-tool call.
// Every response's usage is accumulated into the session total. Tool
// failures are folded into the conversation as tool results, never raised.
func (l *Loop) Run(ctx context.Context, s *session.Session) (string, error) {
	schemas := l.tools.Schemas()

	for iter := 0; iter < l.maxIterations; iter++ {
		l.log.Debug("state transition", "phase", phaseAwaitingModel, "iteration", iter)
		resp, err := l.complete(ctx, s.Model, s.ProjectForAPI(), schemas)
		if err != nil {
			return "", err
		}

		usage := usagePtr(resp.Usage)
		if len(resp.ToolCalls) == 0 {
			s.AppendAssistant(resp.Assistant.Content, usage, nil)
			return resp.Assistant.Content, nil
		}

		l.log.Debug("state transition", "phase", phaseExecutingTools, "calls", len(resp.ToolCalls))
		s.AppendAssistant(resp.Assistant.Content, usage, resp.ToolCalls)
		// Results must land in the session in emission order: later calls may
		// reference earlier results by id.
		for _, call := range resp.ToolCalls {
			result := l.execute(ctx, call)
			s.AppendTool(result, call.ID, call.Name)
		}
	}

	// Cap reached: one final call with tools disabled, accepted as-is.
	l.log.Debug("state transition", "phase", phaseForcedFinal)
	resp, err := l.complete(ctx, s.Model, s.ProjectForAPI(), nil)
	if err != nil {
		return "", err
	}
	s.AppendAssistant(resp.Assistant.Content, usagePtr(resp.Usage), nil)
	return resp.Assistant.Content, nil
}

// execute runs one tool call and renders its outcome as a tool result
// string. Errors become "ERROR: ..." results so the model can react.
func (l *Loop) execute(ctx context.Context, call engine.ToolCall) string {
	if call.Error != "" {
		return "ERROR: " + call.Error
	}
	tool, ok := l.tools.Get(call.Name)
	if !ok {
		return fmt.Sprintf("ERROR: unknown tool %q", call.Name)
	}
	if err := tool.ValidateArgs(call.Args); err != nil {
		return "ERROR: " + err.Error()
	}
	out, err := tool.Fn(ctx, call.Args)
	if err != nil {
		execErr := &engine.ToolExecutionError{ToolName: call.Name, Err: err}
		l.log.Warn("tool failed", "tool", call.Name, "err", err)
		return "ERROR: " + execErr.Error()
	}
	return out
}

// complete performs one model call, streaming when OnDelta is set.
func (l *Loop) complete(ctx context.Context, model string, msgs []engine.ChatMessage, schemas []engine.ToolSchema) (engine.LLMResponse, error) {
	if l.OnDelta == nil {
		return l.llm.Chat(ctx, model, msgs, schemas, l.opts)
	}

	events, errs := l.llm.Stream(ctx, model, msgs, schemas, l.opts)
	var resp engine.LLMResponse
	var text strings.Builder
	for ev := range events {
		switch ev.Type {
		case "text_delta":
			text.WriteString(ev.Text)
			l.OnDelta(ev.Text)
		case "tool_call":
			resp.ToolCalls = append(resp.ToolCalls, ev.ToolCall)
		case "usage":
			resp.Usage = ev.Usage
		}
	}
	if err := <-errs; err != nil {
		return engine.LLMResponse{}, err
	}
	resp.Assistant = engine.ChatMessage{
		Role:      engine.RoleAssistant,
		Content:   text.String(),
		ToolCalls: resp.ToolCalls,
	}
	return resp, nil
}

func usagePtr(u engine.Usage) *session.TokenUsage {
	if u == (engine.Usage{}) {
		return nil
	}
	converted := session.UsageFromEngine(u)
	return &converted
}
