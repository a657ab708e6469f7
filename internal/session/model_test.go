package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/myassine/ibis/internal/engine"
)

func seededSession() *Session {
	s := New("test", "anthropic", "claude-3-sonnet-20240229", "")
	s.SetSystemPrompt("You are X")
	s.AppendUser("first question")
	s.AppendAssistant("first answer", &TokenUsage{InputTokens: 10, OutputTokens: 5, TotalTokens: 15}, nil)
	s.AppendUser("second question")
	s.AppendAssistant("second answer", &TokenUsage{InputTokens: 20, OutputTokens: 8, TotalTokens: 28}, nil)
	return s
}

func TestProjectionUncompacted(t *testing.T) {
	s := seededSession()

	proj := s.ProjectForAPI()
	require.Len(t, proj, 5)
	assert.Equal(t, engine.RoleSystem, proj[0].Role)
	assert.Equal(t, "You are X", proj[0].Content)
	assert.Equal(t, engine.RoleAssistant, proj[4].Role)
	assert.Equal(t, "second answer", proj[4].Content)
}

func TestProjectionCompacted(t *testing.T) {
	s := seededSession()
	s.Compaction = &Compaction{Summary: "S1", CutIndex: len(s.Messages)}

	proj := s.ProjectForAPI()
	require.Len(t, proj, 2)
	assert.Equal(t, engine.RoleSystem, proj[0].Role)
	assert.Equal(t, "You are X", proj[0].Content)
	assert.Equal(t, engine.RoleAssistant, proj[1].Role)
	assert.Equal(t, "S1", proj[1].Content)
}

func TestProjectionAfterCompactionGrows(t *testing.T) {
	s := seededSession()
	s.Compaction = &Compaction{Summary: "S1", CutIndex: len(s.Messages)}

	s.AppendUser("third question")

	proj := s.ProjectForAPI()
	require.Len(t, proj, 3)
	assert.Equal(t, engine.RoleUser, proj[2].Role)
	assert.Equal(t, "third question", proj[2].Content)
}

func TestProjectionWithoutSystemPrompt(t *testing.T) {
	s := New("bare", "openai", "gpt-4o-mini", "")
	s.AppendUser("hello")
	s.AppendAssistant("hi", nil, nil)

	proj := s.ProjectForAPI()
	require.Len(t, proj, 2)
	assert.Equal(t, engine.RoleUser, proj[0].Role)

	s.Compaction = &Compaction{Summary: "short", CutIndex: len(s.Messages)}
	proj = s.ProjectForAPI()
	require.Len(t, proj, 1)
	assert.Equal(t, "short", proj[0].Content)
}

func TestSetSystemPromptReplaces(t *testing.T) {
	s := seededSession()
	s.SetSystemPrompt("You are Y")

	systems := 0
	for _, m := range s.Messages {
		if m.Role == engine.RoleSystem {
			systems++
		}
	}
	assert.Equal(t, 1, systems)
	assert.Equal(t, engine.RoleSystem, s.Messages[0].Role)
	assert.Equal(t, "You are Y", s.Messages[0].Content)
	assert.Equal(t, 4, s.NonSystemCount())
}

func TestAppendAssistantAccumulatesUsage(t *testing.T) {
	s := seededSession()
	assert.Equal(t, 30, s.TotalUsage.InputTokens)
	assert.Equal(t, 13, s.TotalUsage.OutputTokens)
	assert.Equal(t, 43, s.TotalUsage.TotalTokens)
}

func TestClearLastNRecomputesUsage(t *testing.T) {
	s := seededSession()
	s.ClearLastN(2, false)

	assert.Equal(t, 2, s.NonSystemCount())
	assert.Equal(t, 15, s.TotalUsage.TotalTokens)

	_, hasSystem := s.SystemPrompt()
	assert.True(t, hasSystem)
}

func TestClearLastNPreservesCost(t *testing.T) {
	s := seededSession()
	before := s.TotalUsage
	s.ClearLastN(2, true)

	assert.Equal(t, 2, s.NonSystemCount())
	assert.Equal(t, before, s.TotalUsage)
}

func TestClearHistoryKeepsSystem(t *testing.T) {
	s := seededSession()
	s.Compaction = &Compaction{Summary: "S1", CutIndex: len(s.Messages)}
	s.ClearHistory(true)

	require.Len(t, s.Messages, 1)
	assert.Equal(t, engine.RoleSystem, s.Messages[0].Role)
	assert.Nil(t, s.Compaction)
	assert.Equal(t, TokenUsage{}, s.TotalUsage)
}

func TestToolMessagesProject(t *testing.T) {
	s := New("tools", "openai", "gpt-4o-mini", "")
	s.AppendUser("what is the weather")
	s.AppendAssistant("", nil, []engine.ToolCall{{ID: "call_1", Name: "get_weather", Args: map[string]any{"city": "Tunis"}}})
	s.AppendTool("sunny", "call_1", "get_weather")

	proj := s.ProjectForAPI()
	require.Len(t, proj, 3)
	require.Len(t, proj[1].ToolCalls, 1)
	assert.Equal(t, "call_1", proj[1].ToolCalls[0].ID)
	assert.Equal(t, engine.RoleTool, proj[2].Role)
	assert.Equal(t, "call_1", proj[2].Name)
	assert.Equal(t, "get_weather", proj[2].ToolName)
}
