package providers

import (
	"fmt"
	"os"

	"github.com/myassine/ibis/internal/engine"
)

// Settings selects and parameterizes a provider. Zero fields fall back to
// the provider's environment variables and defaults.
type Settings struct {
	Provider string // openai, anthropic, deepseek, groq, ollama, custom
	Model    string
	APIKey   string
	BaseURL  string // custom OpenAI-compatible endpoint
}

// preset is an OpenAI-compatible provider reachable through the OpenAI
// client with a different base URL.
type preset struct {
	envKey       string
	envModel     string
	envBaseURL   string
	defaultModel string
	baseURL      string
	keyOptional  bool
}

var presets = map[string]preset{
	"deepseek": {
		envKey:       "DEEPSEEK_API_KEY",
		envModel:     "DEEPSEEK_MODEL",
		defaultModel: "deepseek-chat",
		baseURL:      "https://api.deepseek.com/v1",
	},
	"groq": {
		envKey:       "GROQ_API_KEY",
		envModel:     "GROQ_MODEL",
		defaultModel: "llama-3.1-70b-versatile",
		baseURL:      "https://api.groq.com/openai/v1",
	},
	"ollama": {
		envKey:       "OLLAMA_API_KEY",
		envModel:     "OLLAMA_MODEL",
		envBaseURL:   "OLLAMA_BASE_URL",
		defaultModel: "llama3.1",
		baseURL:      "http://localhost:11434/v1",
		keyOptional:  true,
	},
}

// New builds an engine.LLMClient from settings, resolving missing values
// from the environment. It returns the client and the model it should be
// called with.
func New(s Settings) (engine.LLMClient, string, error) {
	provider := s.Provider
	if provider == "" {
		provider = os.Getenv("LLM_PROVIDER")
	}
	if provider == "" {
		provider = "openai"
	}

	switch provider {
	case "openai":
		apiKey := firstNonEmpty(s.APIKey, os.Getenv("OPENAI_API_KEY"))
		if apiKey == "" {
			return nil, "", fmt.Errorf("OPENAI_API_KEY not set")
		}
		model := firstNonEmpty(s.Model, os.Getenv("OPENAI_MODEL"), "gpt-4o-mini")
		baseURL := firstNonEmpty(s.BaseURL, os.Getenv("OPENAI_BASE_URL"))
		return NewOpenAIClient(apiKey, baseURL), model, nil

	case "anthropic":
		apiKey := firstNonEmpty(s.APIKey, os.Getenv("ANTHROPIC_API_KEY"))
		if apiKey == "" {
			return nil, "", fmt.Errorf("ANTHROPIC_API_KEY not set")
		}
		model := firstNonEmpty(s.Model, os.Getenv("ANTHROPIC_MODEL"), "claude-sonnet-4-20250514")
		return NewAnthropicClient(apiKey), model, nil

	case "custom":
		baseURL := firstNonEmpty(s.BaseURL, os.Getenv("CUSTOM_BASE_URL"))
		if baseURL == "" {
			return nil, "", fmt.Errorf("custom provider requires a base URL")
		}
		model := firstNonEmpty(s.Model, os.Getenv("CUSTOM_MODEL"))
		if model == "" {
			return nil, "", fmt.Errorf("custom provider requires a model")
		}
		apiKey := firstNonEmpty(s.APIKey, os.Getenv("CUSTOM_API_KEY"), "unused")
		return NewOpenAIClient(apiKey, baseURL), model, nil
	}

	p, ok := presets[provider]
	if !ok {
		return nil, "", fmt.Errorf("unknown provider: %s (supported: openai, anthropic, deepseek, groq, ollama, custom)", provider)
	}

	apiKey := firstNonEmpty(s.APIKey, os.Getenv(p.envKey))
	if apiKey == "" {
		if !p.keyOptional {
			return nil, "", fmt.Errorf("%s not set", p.envKey)
		}
		apiKey = provider
	}
	model := firstNonEmpty(s.Model, os.Getenv(p.envModel), p.defaultModel)
	baseURL := p.baseURL
	if p.envBaseURL != "" {
		baseURL = firstNonEmpty(os.Getenv(p.envBaseURL), baseURL)
	}
	return NewOpenAIClient(apiKey, baseURL), model, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
