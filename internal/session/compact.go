package session

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/myassine/ibis/internal/engine"
)

// FallbackSystemPrompt is used when a session has no system message at
// compaction time.
const FallbackSystemPrompt = "You are a helpful assistant"

// FallbackCompactInstruction is the summarization request sent when no
// "compact" prompt is configured.
const FallbackCompactInstruction = "Please provide a comprehensive summary of this conversation."

var (
	summaryTagRe  = regexp.MustCompile(`(?is)<summary>\s*(.*?)\s*</summary>`)
	analysisTagRe = regexp.MustCompile(`(?is)<analysis>.*?</analysis>\s*`)
)

// CompactError reports a failed summarization. The session is left exactly
// as it was whenever this error is returned.
type CompactError struct {
	Reason string
	Err    error
}

func (e *CompactError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("compaction failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("compaction failed: %s", e.Reason)
}

func (e *CompactError) Unwrap() error { return e.Err }

// Compactor generates a summary of a session's history and installs it as
// the session's compaction state.
type Compactor struct {
	llm         engine.LLMClient
	model       string
	instruction string
}

// NewCompactor creates a compactor. An empty instruction falls back to
// FallbackCompactInstruction.
func NewCompactor(llm engine.LLMClient, model, instruction string) *Compactor {
	if instruction == "" {
		instruction = FallbackCompactInstruction
	}
	return &Compactor{llm: llm, model: model, instruction: instruction}
}

// CanCompact reports whether the session is eligible for compaction and,
// when it is not, why.
func (c *Compactor) CanCompact(s *Session) (bool, string) {
	if s == nil {
		return false, "no active session"
	}
	if s.IsCompacted() {
		return false, "session is already compacted"
	}
	if s.NonSystemCount() < 2 {
		return false, "not enough messages to compact"
	}
	return true, ""
}

// Compact summarizes the session's history and installs the compaction
// watermark at the current message count. The stored messages are never
// touched; projection is the only thing that changes.
func (c *Compactor) Compact(ctx context.Context, s *Session) (string, error) {
	if ok, reason := c.CanCompact(s); !ok {
		return "", &CompactError{Reason: reason}
	}

	msgs := c.buildRequest(s)
	resp, err := c.llm.Chat(ctx, c.model, msgs, nil, engine.ChatOptions{})
	if err != nil {
		return "", &CompactError{Reason: "model call failed", Err: err}
	}

	summary := ExtractSummary(resp.Assistant.Content)
	if summary == "" {
		return "", &CompactError{Reason: "model returned an empty summary"}
	}

	s.Compaction = &Compaction{
		Summary:  summary,
		CutIndex: len(s.Messages),
	}
	s.touch()
	return summary, nil
}

// Reset drops the compaction state. Resetting an uncompacted session is a
// no-op.
func (c *Compactor) Reset(s *Session) {
	if s == nil {
		return
	}
	s.Compaction = nil
	s.touch()
}

// buildRequest assembles the summarization conversation: the system prompt
// (or a generic fallback), every non-system message verbatim, and a trailing
// user-role summarization instruction.
func (c *Compactor) buildRequest(s *Session) []engine.ChatMessage {
	system, ok := s.SystemPrompt()
	if !ok || system == "" {
		system = FallbackSystemPrompt
	}

	msgs := make([]engine.ChatMessage, 0, len(s.Messages)+2)
	msgs = append(msgs, engine.ChatMessage{Role: engine.RoleSystem, Content: system})
	for _, m := range s.Messages {
		if m.Role == engine.RoleSystem {
			continue
		}
		msgs = append(msgs, m.toChat())
	}
	msgs = append(msgs, engine.ChatMessage{Role: engine.RoleUser, Content: c.instruction})
	return msgs
}

// ExtractSummary pulls the summary out of a raw model response: the content
// between case-insensitive <summary> tags when present, otherwise the full
// response with any <analysis> block stripped.
func ExtractSummary(raw string) string {
	if m := summaryTagRe.FindStringSubmatch(raw); m != nil {
		if inner := strings.TrimSpace(m[1]); inner != "" {
			return inner
		}
	}
	return strings.TrimSpace(analysisTagRe.ReplaceAllString(raw, ""))
}
