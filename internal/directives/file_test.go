package directives

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileHandlerReadsAndWraps(t *testing.T) {
	base := t.TempDir()
	path := filepath.Join(base, "notes.md")
	require.NoError(t, os.WriteFile(path, []byte("# Notes\nsome content\n"), 0o644))

	h := NewFileHandler(base)
	require.NoError(t, h.Validate("notes.md"))

	res, err := h.Process(context.Background(), "notes.md")
	require.NoError(t, err)
	assert.Equal(t, "<notes.md>\n# Notes\nsome content\n</notes.md>", res.Content)
	assert.Empty(t, res.Media)
}

func TestFileHandlerMissingListsAttemptedLocations(t *testing.T) {
	base := t.TempDir()
	h := NewFileHandler(base)

	err := h.Validate("missing.txt")
	require.Error(t, err)

	var rErr *ResolutionError
	require.ErrorAs(t, err, &rErr)
	require.Len(t, rErr.Tried, 2)

	cwd, _ := os.Getwd()
	assert.Equal(t, filepath.Join(cwd, "missing.txt"), rErr.Tried[0])
	assert.Equal(t, filepath.Join(base, "missing.txt"), rErr.Tried[1])
	assert.Contains(t, err.Error(), "Tried locations:")
}

func TestFileHandlerAbsolutePath(t *testing.T) {
	base := t.TempDir()
	other := t.TempDir()
	path := filepath.Join(other, "abs.txt")
	require.NoError(t, os.WriteFile(path, []byte("absolute"), 0o644))

	h := NewFileHandler(base)
	res, err := h.Process(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "<abs.txt>\nabsolute\n</abs.txt>", res.Content)
}

func TestFileHandlerBaseDirFallback(t *testing.T) {
	base := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(base, "fallback.txt"), []byte("found"), 0o644))

	h := NewFileHandler(base)
	res, err := h.Process(context.Background(), "fallback.txt")
	require.NoError(t, err)
	assert.Contains(t, res.Content, "found")
}

func TestFileHandlerSizeCap(t *testing.T) {
	base := t.TempDir()
	path := filepath.Join(base, "big.txt")
	require.NoError(t, os.WriteFile(path, make([]byte, 2048), 0o644))

	h := NewFileHandler(base)
	h.maxSize = 1024

	_, err := h.Process(context.Background(), "big.txt")
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Contains(t, err.Error(), "limit")
}

func TestFileHandlerCompletions(t *testing.T) {
	base := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(base, "alpha.txt"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(base, "alpine.go"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(base, "binary.bin"), nil, 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(base, "alcove"), 0o755))

	h := NewFileHandler(base)
	got := h.SuggestCompletions("al")
	assert.Contains(t, got, "alpha.txt")
	assert.Contains(t, got, "alpine.go")
	assert.Contains(t, got, "alcove"+string(filepath.Separator))
	assert.NotContains(t, got, "binary.bin")
}
