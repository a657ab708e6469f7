package directives

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedFolder(t *testing.T) string {
	t.Helper()
	base := t.TempDir()
	root := filepath.Join(base, "project")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "src"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".git"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "build"), 0o755))

	write := func(rel, content string) {
		require.NoError(t, os.WriteFile(filepath.Join(root, rel), []byte(content), 0o644))
	}
	write("README.md", "hello project")
	write("src/main.go", "package main")
	write("src/logo.png", "not text")
	write(".git/config", "[core]")
	write("build/out.log", "generated")
	write(".gitignore", "build/\n")
	return root
}

func TestFolderHandlerWalks(t *testing.T) {
	root := seedFolder(t)
	h := NewFolderHandler(filepath.Dir(root))

	res, err := h.Process(context.Background(), root)
	require.NoError(t, err)

	assert.Contains(t, res.Content, "<project>")
	assert.Contains(t, res.Content, "README.md")
	assert.Contains(t, res.Content, "hello project")
	assert.Contains(t, res.Content, filepath.Join("src", "main.go"))
	assert.Contains(t, res.Content, "package main")

	assert.NotContains(t, res.Content, "logo.png", "non-text files are skipped")
	assert.NotContains(t, res.Content, "[core]", ".git is skipped")
	assert.NotContains(t, res.Content, "out.log", "gitignored paths are skipped")
}

func TestFolderHandlerMissing(t *testing.T) {
	h := NewFolderHandler(t.TempDir())

	err := h.Validate("no-such-dir")
	var rErr *ResolutionError
	require.ErrorAs(t, err, &rErr)
	assert.Len(t, rErr.Tried, 2)
}

func TestFolderHandlerRejectsFileArg(t *testing.T) {
	base := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(base, "plain.txt"), []byte("x"), 0o644))

	h := NewFolderHandler(base)
	err := h.Validate(filepath.Join(base, "plain.txt"))
	assert.Error(t, err, "a file is not a folder")
}
