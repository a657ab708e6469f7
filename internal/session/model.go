package session

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/myassine/ibis/internal/engine"
)

// TokenUsage tracks token accounting for one message or one session. The
// totals are stored as reported by the provider, not force-corrected.
type TokenUsage struct {
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	TotalTokens  int     `json:"total_tokens"`
	Cost         float64 `json:"cost"`
}

// Add accumulates another usage record into this one.
func (u *TokenUsage) Add(other TokenUsage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
	u.TotalTokens += other.TotalTokens
	u.Cost += other.Cost
}

// UsageFromEngine converts provider-level usage counters.
func UsageFromEngine(u engine.Usage) TokenUsage {
	return TokenUsage{
		InputTokens:  u.Prompt,
		OutputTokens: u.Completion,
		TotalTokens:  u.Total,
	}
}

// Message is one turn of the conversation.
type Message struct {
	Role       engine.MessageRole `json:"role"`
	Content    string             `json:"content"`
	Timestamp  time.Time          `json:"timestamp"`
	TokenUsage *TokenUsage        `json:"token_usage,omitempty"`
	ToolCalls  []engine.ToolCall  `json:"tool_calls,omitempty"`
	ToolCallID string             `json:"tool_call_id,omitempty"`
	ToolName   string             `json:"tool_name,omitempty"`
	Media      []engine.MediaPart `json:"media,omitempty"`
}

func (m Message) toChat() engine.ChatMessage {
	return engine.ChatMessage{
		Role:      m.Role,
		Content:   m.Content,
		Name:      m.ToolCallID,
		ToolName:  m.ToolName,
		ToolCalls: m.ToolCalls,
		Media:     m.Media,
	}
}

// Compaction is the view-transformation state installed by the Compactor.
// CutIndex is fixed at install time (= len(Messages)) and never moves;
// messages at or after it stay in the API projection verbatim.
type Compaction struct {
	Summary  string
	CutIndex int
}

// Session is the canonical conversation history plus running accounting.
// It is the unit of persistence and of concurrency: one conversational
// turn owns it at a time.
type Session struct {
	ID             string
	Name           string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	Messages       []Message
	TotalUsage     TokenUsage
	Provider       string
	Model          string
	CustomProvider string
	Compaction     *Compaction
}

// New creates a fresh session.
func New(name, provider, model, customProvider string) *Session {
	now := time.Now().UTC()
	return &Session{
		ID:             uuid.NewString(),
		Name:           name,
		CreatedAt:      now,
		UpdatedAt:      now,
		Provider:       provider,
		Model:          model,
		CustomProvider: customProvider,
	}
}

func (s *Session) touch() {
	s.UpdatedAt = time.Now().UTC()
}

// Rename changes the session's display name.
func (s *Session) Rename(name string) {
	s.Name = name
	s.touch()
}

// AppendUser appends a user message, optionally carrying media attachments
// produced by directive expansion.
func (s *Session) AppendUser(text string, media ...engine.MediaPart) {
	s.Messages = append(s.Messages, Message{
		Role:      engine.RoleUser,
		Content:   text,
		Timestamp: time.Now().UTC(),
		Media:     media,
	})
	s.touch()
}

// AppendAssistant appends an assistant message. Usage, when present, is
// attached to the message and accumulated into the session total.
func (s *Session) AppendAssistant(text string, usage *TokenUsage, toolCalls []engine.ToolCall) {
	s.Messages = append(s.Messages, Message{
		Role:       engine.RoleAssistant,
		Content:    text,
		Timestamp:  time.Now().UTC(),
		TokenUsage: usage,
		ToolCalls:  toolCalls,
	})
	if usage != nil {
		s.TotalUsage.Add(*usage)
	}
	s.touch()
}

// AppendTool appends a tool result keyed by the originating call id.
func (s *Session) AppendTool(result, toolCallID, toolName string) {
	s.Messages = append(s.Messages, Message{
		Role:       engine.RoleTool,
		Content:    result,
		Timestamp:  time.Now().UTC(),
		ToolCallID: toolCallID,
		ToolName:   toolName,
	})
	s.touch()
}

// SetSystemPrompt replaces any existing system message and reinserts the
// prompt at position 0.
func (s *Session) SetSystemPrompt(text string) {
	kept := s.Messages[:0]
	for _, m := range s.Messages {
		if m.Role != engine.RoleSystem {
			kept = append(kept, m)
		}
	}
	s.Messages = append([]Message{{
		Role:      engine.RoleSystem,
		Content:   text,
		Timestamp: time.Now().UTC(),
	}}, kept...)
	s.touch()
}

// SystemPrompt returns the system message content, if one exists.
func (s *Session) SystemPrompt() (string, bool) {
	for _, m := range s.Messages {
		if m.Role == engine.RoleSystem {
			return m.Content, true
		}
	}
	return "", false
}

// NonSystemCount counts messages other than the system prompt.
func (s *Session) NonSystemCount() int {
	n := 0
	for _, m := range s.Messages {
		if m.Role != engine.RoleSystem {
			n++
		}
	}
	return n
}

// ClearLastN removes the last n non-system messages. When preserveCost is
// false the session total is re-summed from the retained messages.
func (s *Session) ClearLastN(n int, preserveCost bool) {
	removed := 0
	for i := len(s.Messages) - 1; i >= 0 && removed < n; i-- {
		if s.Messages[i].Role == engine.RoleSystem {
			continue
		}
		s.Messages = append(s.Messages[:i], s.Messages[i+1:]...)
		removed++
	}
	if !preserveCost {
		s.recomputeUsage()
	}
	s.touch()
}

// ClearHistory drops every message, optionally keeping the system prompt.
// The session total is re-summed from what remains.
func (s *Session) ClearHistory(keepSystem bool) {
	var kept []Message
	if keepSystem {
		for _, m := range s.Messages {
			if m.Role == engine.RoleSystem {
				kept = append(kept, m)
				break
			}
		}
	}
	s.Messages = kept
	s.Compaction = nil
	s.recomputeUsage()
	s.touch()
}

func (s *Session) recomputeUsage() {
	var total TokenUsage
	for _, m := range s.Messages {
		if m.TokenUsage != nil {
			total.Add(*m.TokenUsage)
		}
	}
	s.TotalUsage = total
}

// IsCompacted reports whether a non-empty compaction summary is installed.
func (s *Session) IsCompacted() bool {
	return s.Compaction != nil && s.Compaction.Summary != ""
}

// ProjectForAPI builds the message list actually sent to the model.
//
// Uncompacted sessions project verbatim, system first. Compacted sessions
// project the system prompt (if any), one synthetic assistant message
// carrying the summary, then every message at or after the cut index,
// excluding the system message. The stored history is identical either way;
// compaction only changes this view.
func (s *Session) ProjectForAPI() []engine.ChatMessage {
	out := make([]engine.ChatMessage, 0, len(s.Messages)+1)
	for _, m := range s.Messages {
		if m.Role == engine.RoleSystem {
			out = append(out, m.toChat())
			break
		}
	}

	if !s.IsCompacted() {
		for _, m := range s.Messages {
			if m.Role == engine.RoleSystem {
				continue
			}
			out = append(out, m.toChat())
		}
		return out
	}

	out = append(out, engine.ChatMessage{
		Role:    engine.RoleAssistant,
		Content: s.Compaction.Summary,
	})
	for i := s.Compaction.CutIndex; i < len(s.Messages); i++ {
		if s.Messages[i].Role == engine.RoleSystem {
			continue
		}
		out = append(out, s.Messages[i].toChat())
	}
	return out
}

// record is the persisted wire shape of a Session.
type record struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	Messages       []Message  `json:"messages"`
	TotalUsage     TokenUsage `json:"total_usage"`
	Provider       string     `json:"provider"`
	Model          string     `json:"model"`
	CustomProvider string     `json:"custom_provider,omitempty"`
	Compacted      bool       `json:"compacted"`
	CompactSummary *string    `json:"compact_summary"`
	CompactIndex   *int       `json:"compact_index"`
}

func (s *Session) MarshalJSON() ([]byte, error) {
	rec := record{
		ID:             s.ID,
		Name:           s.Name,
		CreatedAt:      s.CreatedAt,
		UpdatedAt:      s.UpdatedAt,
		Messages:       s.Messages,
		TotalUsage:     s.TotalUsage,
		Provider:       s.Provider,
		Model:          s.Model,
		CustomProvider: s.CustomProvider,
	}
	if rec.Messages == nil {
		rec.Messages = []Message{}
	}
	if s.Compaction != nil {
		rec.Compacted = s.IsCompacted()
		rec.CompactSummary = &s.Compaction.Summary
		rec.CompactIndex = &s.Compaction.CutIndex
	}
	return json.Marshal(rec)
}

func (s *Session) UnmarshalJSON(data []byte) error {
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return err
	}
	s.ID = rec.ID
	s.Name = rec.Name
	s.CreatedAt = rec.CreatedAt
	s.UpdatedAt = rec.UpdatedAt
	s.Messages = rec.Messages
	s.TotalUsage = rec.TotalUsage
	s.Provider = rec.Provider
	s.Model = rec.Model
	s.CustomProvider = rec.CustomProvider
	s.Compaction = nil
	if rec.CompactSummary != nil {
		c := &Compaction{Summary: *rec.CompactSummary}
		if rec.CompactIndex != nil {
			c.CutIndex = *rec.CompactIndex
		}
		s.Compaction = c
	}
	return nil
}

// Info is a lightweight representation for listing sessions.
type Info struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	MessageCount int       `json:"message_count"`
	Provider     string    `json:"provider"`
	Model        string    `json:"model"`
}
