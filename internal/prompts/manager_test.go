package prompts

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManagerSeedsDefaultPrompt(t *testing.T) {
	m, err := NewManager(t.TempDir())
	require.NoError(t, err)

	content, ok := m.Get(DefaultName)
	require.True(t, ok)
	assert.Equal(t, "You are a helpful assistant", content)
	assert.Equal(t, []string{DefaultName}, m.List())
}

func TestManagerSaveGetDelete(t *testing.T) {
	m, err := NewManager(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, m.Save("reviewer", "You review Go code"))
	content, ok := m.Get("reviewer")
	require.True(t, ok)
	assert.Equal(t, "You review Go code", content)
	assert.Equal(t, []string{DefaultName, "reviewer"}, m.List())

	require.NoError(t, m.Delete("reviewer"))
	_, ok = m.Get("reviewer")
	assert.False(t, ok)
}

func TestManagerDefaultUndeletable(t *testing.T) {
	m, err := NewManager(t.TempDir())
	require.NoError(t, err)

	require.Error(t, m.Delete(DefaultName))
	_, ok := m.Get(DefaultName)
	assert.True(t, ok)
}

func TestManagerDeleteUnknown(t *testing.T) {
	m, err := NewManager(t.TempDir())
	require.NoError(t, err)
	require.Error(t, m.Delete("nope"))
}

func TestManagerPersistsAcrossInstances(t *testing.T) {
	dir := t.TempDir()
	m1, err := NewManager(dir)
	require.NoError(t, err)
	require.NoError(t, m1.Save("compact", "Summarize tersely"))

	m2, err := NewManager(dir)
	require.NoError(t, err)
	content, ok := m2.Get("compact")
	require.True(t, ok)
	assert.Equal(t, "Summarize tersely", content)
}

func TestManagerWatchPicksUpExternalEdit(t *testing.T) {
	dir := t.TempDir()
	m, err := NewManager(dir)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Watch(ctx)

	// Give the watcher a moment to register.
	time.Sleep(100 * time.Millisecond)

	edited := `{"default": "You are a helpful assistant", "external": "added outside the process"}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "prompts.json"), []byte(edited), 0o644))

	require.Eventually(t, func() bool {
		_, ok := m.Get("external")
		return ok
	}, 2*time.Second, 20*time.Millisecond)
}
