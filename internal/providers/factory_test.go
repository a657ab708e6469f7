package providers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFactorySelectsOpenAI(t *testing.T) {
	client, model, err := New(Settings{Provider: "openai", APIKey: "sk-test", Model: "gpt-4o"})
	require.NoError(t, err)
	assert.IsType(t, &OpenAIClient{}, client)
	assert.Equal(t, "gpt-4o", model)
}

func TestFactorySelectsAnthropic(t *testing.T) {
	client, model, err := New(Settings{Provider: "anthropic", APIKey: "sk-ant", Model: "claude-sonnet-4-20250514"})
	require.NoError(t, err)
	assert.IsType(t, &AnthropicClient{}, client)
	assert.Equal(t, "claude-sonnet-4-20250514", model)
}

func TestFactoryPresetDefaults(t *testing.T) {
	client, model, err := New(Settings{Provider: "deepseek", APIKey: "sk-ds"})
	require.NoError(t, err)
	assert.IsType(t, &OpenAIClient{}, client)
	assert.Equal(t, "deepseek-chat", model)
}

func TestFactoryOllamaNeedsNoKey(t *testing.T) {
	_, model, err := New(Settings{Provider: "ollama"})
	require.NoError(t, err)
	assert.Equal(t, "llama3.1", model)
}

func TestFactoryCustomRequiresBaseURLAndModel(t *testing.T) {
	_, _, err := New(Settings{Provider: "custom", Model: "local"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "base URL")

	_, _, err = New(Settings{Provider: "custom", BaseURL: "http://localhost:8080/v1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model")

	client, model, err := New(Settings{Provider: "custom", BaseURL: "http://localhost:8080/v1", Model: "local"})
	require.NoError(t, err)
	assert.IsType(t, &OpenAIClient{}, client)
	assert.Equal(t, "local", model)
}

func TestFactoryRejectsUnknownProvider(t *testing.T) {
	_, _, err := New(Settings{Provider: "does-not-exist", APIKey: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown provider")
}

func TestFactoryMissingKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	_, _, err := New(Settings{Provider: "openai"})
	require.Error(t, err)
}

func TestSplitDataURL(t *testing.T) {
	mediaType, data, ok := splitDataURL("data:image/png;base64,aGVsbG8=")
	require.True(t, ok)
	assert.Equal(t, "image/png", mediaType)
	assert.Equal(t, "aGVsbG8=", data)

	_, _, ok = splitDataURL("https://example.com/cat.png")
	assert.False(t, ok)

	_, _, ok = splitDataURL("data:image/png,rawdata")
	assert.False(t, ok, "only base64 payloads are inline-renderable")
}

func TestExtractErrorMetadata(t *testing.T) {
	status, retryAfter := extractErrorMetadata(errString("status code 429, retry-after: 12"))
	assert.Equal(t, 429, status)
	assert.Equal(t, "12", retryAfter)

	status, retryAfter = extractErrorMetadata(errString("connection reset"))
	assert.Zero(t, status)
	assert.Empty(t, retryAfter)
}

type errString string

func (e errString) Error() string { return string(e) }
