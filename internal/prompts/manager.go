// Package prompts manages the user's named system prompts, persisted as a
// single prompts.json in the config directory. A prompt name is what the
// /prompt command and config default_prompt refer to.
package prompts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/natefinch/atomic"
)

// DefaultName is the prompt applied to new sessions when no other prompt is
// configured. It always exists and cannot be deleted.
const DefaultName = "default"

const defaultContent = "You are a helpful assistant"

// Manager loads, saves, and hot-reloads named prompts.
type Manager struct {
	path string
	log  *slog.Logger

	mu      sync.RWMutex
	prompts map[string]string
}

// NewManager creates a manager backed by dir/prompts.json, seeding the file
// with the default prompt when absent.
func NewManager(dir string) (*Manager, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create prompts dir: %w", err)
	}
	m := &Manager{
		path: filepath.Join(dir, "prompts.json"),
		log:  slog.Default().With("component", "prompts"),
	}
	if err := m.reload(); err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
		m.prompts = map[string]string{DefaultName: defaultContent}
		if err := m.flush(); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Get returns the named prompt's content.
func (m *Manager) Get(name string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	content, ok := m.prompts[name]
	return content, ok
}

// Save creates or overwrites a named prompt.
func (m *Manager) Save(name, content string) error {
	if name == "" {
		return fmt.Errorf("prompt name cannot be empty")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prompts[name] = content
	return m.flush()
}

// Delete removes a named prompt. The default prompt cannot be deleted.
func (m *Manager) Delete(name string) error {
	if name == DefaultName {
		return fmt.Errorf("the %q prompt cannot be deleted", DefaultName)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.prompts[name]; !ok {
		return fmt.Errorf("prompt not found: %s", name)
	}
	delete(m.prompts, name)
	return m.flush()
}

// List returns all prompt names sorted.
func (m *Manager) List() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.prompts))
	for name := range m.prompts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Watch reloads the prompt file when it changes on disk, so edits made
// outside the REPL take effect without a restart. Blocks until ctx is done.
func (m *Manager) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory: editors replace the file, which would drop a
	// watch on the file itself.
	if err := watcher.Add(filepath.Dir(m.path)); err != nil {
		return fmt.Errorf("failed to watch prompts dir: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Name != m.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if err := m.reloadLocked(); err != nil {
				m.log.Warn("prompt reload failed", "err", err)
				continue
			}
			m.log.Debug("prompts reloaded", "path", m.path)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			m.log.Warn("prompt watcher error", "err", err)
		}
	}
}

func (m *Manager) reloadLocked() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reload()
}

// reload replaces the in-memory set from disk. Caller holds the lock when
// one is needed.
func (m *Manager) reload() error {
	data, err := os.ReadFile(m.path)
	if err != nil {
		return err
	}
	loaded := make(map[string]string)
	if err := json.Unmarshal(data, &loaded); err != nil {
		return fmt.Errorf("failed to parse prompts file: %w", err)
	}
	if _, ok := loaded[DefaultName]; !ok {
		loaded[DefaultName] = defaultContent
	}
	m.prompts = loaded
	return nil
}

// flush writes the in-memory set atomically. Caller holds the lock.
func (m *Manager) flush() error {
	data, err := json.MarshalIndent(m.prompts, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal prompts: %w", err)
	}
	if err := atomic.WriteFile(m.path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write prompts file: %w", err)
	}
	return nil
}
