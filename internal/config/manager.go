package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/natefinch/atomic"
)

// Config holds the user's persistent preferences.
type Config struct {
	Provider      string `json:"provider,omitempty"` // openai, anthropic, deepseek, groq, ollama, custom
	Model         string `json:"model,omitempty"`
	APIKey        string `json:"api_key,omitempty"`
	BaseURL       string `json:"base_url,omitempty"`       // endpoint override for custom providers
	DefaultPrompt string `json:"default_prompt,omitempty"` // named system prompt applied to new sessions
	MaxIterations int    `json:"max_iterations,omitempty"` // tool-calling rounds per turn
}

// Manager handles loading and saving the configuration.
type Manager struct {
	configDir string
}

// NewManager creates a manager rooted at the user's config directory.
func NewManager() (*Manager, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get user config dir: %w", err)
	}
	return &Manager{configDir: filepath.Join(configDir, "ibis")}, nil
}

// NewManagerAt creates a manager rooted at an explicit directory.
func NewManagerAt(dir string) *Manager {
	return &Manager{configDir: dir}
}

// Dir returns the directory holding config.json, prompts, and sessions.
func (m *Manager) Dir() string {
	return m.configDir
}

// ConfigPath returns the absolute path to the config.json file.
func (m *Manager) ConfigPath() string {
	return filepath.Join(m.configDir, "config.json")
}

// Load reads the configuration from disk. A missing file yields an empty
// Config and no error.
func (m *Manager) Load() (*Config, error) {
	data, err := os.ReadFile(m.ConfigPath())
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{}, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config json: %w", err)
	}
	return &cfg, nil
}

// Save writes the configuration atomically with owner-only permissions,
// since it may carry an API key.
func (m *Manager) Save(cfg *Config) error {
	if err := os.MkdirAll(m.configDir, 0o755); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	path := m.ConfigPath()
	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	if err := os.Chmod(path, 0o600); err != nil {
		return fmt.Errorf("failed to restrict config permissions: %w", err)
	}
	return nil
}

// Exists reports whether the configuration file has been created.
func (m *Manager) Exists() bool {
	_, err := os.Stat(m.ConfigPath())
	return !os.IsNotExist(err)
}
