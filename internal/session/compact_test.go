package session

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/myassine/ibis/internal/engine"
)

// fakeLLM is a scripted gateway for tests.
type fakeLLM struct {
	response string
	err      error
	gotMsgs  []engine.ChatMessage
	calls    int
}

func (f *fakeLLM) Chat(ctx context.Context, model string, messages []engine.ChatMessage, tools []engine.ToolSchema, opts engine.ChatOptions) (engine.LLMResponse, error) {
	f.calls++
	f.gotMsgs = messages
	if f.err != nil {
		return engine.LLMResponse{}, f.err
	}
	return engine.LLMResponse{
		Assistant: engine.ChatMessage{Role: engine.RoleAssistant, Content: f.response},
	}, nil
}

func (f *fakeLLM) Stream(ctx context.Context, model string, messages []engine.ChatMessage, tools []engine.ToolSchema, opts engine.ChatOptions) (<-chan engine.StreamEvent, <-chan error) {
	eventCh := make(chan engine.StreamEvent)
	errCh := make(chan error, 1)
	close(eventCh)
	errCh <- errors.New("streaming not scripted")
	close(errCh)
	return eventCh, errCh
}

func TestCanCompactRules(t *testing.T) {
	c := NewCompactor(&fakeLLM{}, "test-model", "")

	ok, reason := c.CanCompact(nil)
	assert.False(t, ok)
	assert.NotEmpty(t, reason)

	s := New("t", "openai", "gpt-4o-mini", "")
	s.SetSystemPrompt("You are X")
	s.AppendUser("only one")
	ok, _ = c.CanCompact(s)
	assert.False(t, ok, "one non-system message is not enough")

	s.AppendAssistant("an answer", nil, nil)
	ok, _ = c.CanCompact(s)
	assert.True(t, ok)

	s.Compaction = &Compaction{Summary: "done", CutIndex: len(s.Messages)}
	ok, _ = c.CanCompact(s)
	assert.False(t, ok, "already-compacted session must be rejected")
}

func TestCompactInstallsWatermark(t *testing.T) {
	llm := &fakeLLM{response: "<summary>the gist</summary>"}
	c := NewCompactor(llm, "test-model", "")

	s := seededSession()
	storedBefore := len(s.Messages)

	summary, err := c.Compact(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, "the gist", summary)
	require.NotNil(t, s.Compaction)
	assert.Equal(t, storedBefore, s.Compaction.CutIndex)
	assert.Len(t, s.Messages, storedBefore, "stored history must not change")

	// system + 4 history messages + trailing instruction
	require.Len(t, llm.gotMsgs, 6)
	assert.Equal(t, engine.RoleSystem, llm.gotMsgs[0].Role)
	assert.Equal(t, engine.RoleUser, llm.gotMsgs[5].Role)
	assert.Equal(t, FallbackCompactInstruction, llm.gotMsgs[5].Content)
}

func TestCompactUsesFallbackSystemPrompt(t *testing.T) {
	llm := &fakeLLM{response: "plain summary"}
	c := NewCompactor(llm, "test-model", "")

	s := New("bare", "openai", "gpt-4o-mini", "")
	s.AppendUser("q")
	s.AppendAssistant("a", nil, nil)

	_, err := c.Compact(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, FallbackSystemPrompt, llm.gotMsgs[0].Content)
}

func TestCompactRejectsTwice(t *testing.T) {
	llm := &fakeLLM{response: "<summary>first</summary>"}
	c := NewCompactor(llm, "test-model", "")

	s := seededSession()
	_, err := c.Compact(context.Background(), s)
	require.NoError(t, err)

	_, err = c.Compact(context.Background(), s)
	require.Error(t, err)
	var cErr *CompactError
	require.ErrorAs(t, err, &cErr)
	assert.Equal(t, "first", s.Compaction.Summary, "summary must not be overwritten")
	assert.Equal(t, 1, llm.calls, "no second model call for a compacted session")
}

func TestCompactFailureLeavesSessionUntouched(t *testing.T) {
	llm := &fakeLLM{err: errors.New("boom")}
	c := NewCompactor(llm, "test-model", "")

	s := seededSession()
	projBefore := s.ProjectForAPI()

	_, err := c.Compact(context.Background(), s)
	require.Error(t, err)
	assert.Nil(t, s.Compaction)
	assert.Equal(t, projBefore, s.ProjectForAPI())
}

func TestCompactEmptySummaryFails(t *testing.T) {
	llm := &fakeLLM{response: "   "}
	c := NewCompactor(llm, "test-model", "")

	s := seededSession()
	_, err := c.Compact(context.Background(), s)
	var cErr *CompactError
	require.ErrorAs(t, err, &cErr)
	assert.Nil(t, s.Compaction)
}

func TestResetRestoresProjection(t *testing.T) {
	llm := &fakeLLM{response: "<summary>S1</summary>"}
	c := NewCompactor(llm, "test-model", "")

	s := seededSession()
	projBefore := s.ProjectForAPI()

	_, err := c.Compact(context.Background(), s)
	require.NoError(t, err)
	require.Len(t, s.ProjectForAPI(), 2)

	c.Reset(s)
	assert.Nil(t, s.Compaction)
	assert.Equal(t, projBefore, s.ProjectForAPI())

	// Resetting again is a no-op.
	c.Reset(s)
	assert.Nil(t, s.Compaction)
}

func TestExtractSummary(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want string
	}{
		{"tagged", "<summary>inner</summary>", "inner"},
		{"tagged with noise", "preface <SUMMARY>\n inner \n</SUMMARY> trailer", "inner"},
		{"analysis stripped", "<analysis>thinking...</analysis>the real summary", "the real summary"},
		{"plain", "just text", "just text"},
		{"empty tags fall through", "<summary>  </summary>leftover", "<summary>  </summary>leftover"},
		{"empty", "   ", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ExtractSummary(tc.raw))
		})
	}
}
