package directives

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShellDenyList(t *testing.T) {
	h := NewShellHandler(t.TempDir())

	blocked := []string{
		"rm -rf /",
		"rm -rf *",
		"echo hi > /etc/passwd",
		"cat notes.txt >> log.txt",
		"find . | rm",
		"ls; rm important",
		"true & rm important",
		"mkfs.ext4 /dev/sda1",
		"dd if=/dev/zero of=/dev/sda",
		"shutdown -h now",
	}
	for _, cmd := range blocked {
		err := h.Validate(cmd)
		require.Error(t, err, "expected %q to be blocked", cmd)
		var vErr *ValidationError
		assert.ErrorAs(t, err, &vErr)
	}

	allowed := []string{
		"ls -la",
		"git status",
		"date +%d",
		"grep -r pattern .",
		"echo add",
	}
	for _, cmd := range allowed {
		assert.NoError(t, h.Validate(cmd), "expected %q to pass", cmd)
	}
}

func TestShellRejectedBeforeSpawn(t *testing.T) {
	h := NewShellHandler(t.TempDir())
	// Validation gates Process in the pipeline; a deny-listed command never
	// reaches a subprocess.
	p := NewPipeline(NewRegistry(), h)

	_, _, err := p.Process(context.Background(), "please run $(rm -rf /)")
	var dErr *DirectiveError
	require.ErrorAs(t, err, &dErr)
	require.Len(t, dErr.Failures, 1)
	var vErr *ValidationError
	assert.ErrorAs(t, dErr.Failures[0], &vErr)
}

func TestShellCapturesStdout(t *testing.T) {
	h := NewShellHandler(t.TempDir())

	res, err := h.Process(context.Background(), "echo hello world")
	require.NoError(t, err)
	assert.Equal(t, "<$(echo hello world)>\nhello world\n</$(echo hello world)>", res.Content)
}

func TestShellNoOutputFallback(t *testing.T) {
	h := NewShellHandler(t.TempDir())

	res, err := h.Process(context.Background(), "true")
	require.NoError(t, err)
	assert.Equal(t, "<$(true)>\n(No output)\n</$(true)>", res.Content)
}

func TestShellNonZeroExitCarriesStderr(t *testing.T) {
	h := NewShellHandler(t.TempDir())

	_, err := h.Process(context.Background(), "ls /definitely/not/a/real/path/here")
	require.Error(t, err)
	var eErr *ExecutionError
	require.ErrorAs(t, err, &eErr)
	assert.Contains(t, eErr.Error(), "No such file")
}

func TestShellRunsInBaseDir(t *testing.T) {
	dir := t.TempDir()
	h := NewShellHandler(dir)

	res, err := h.Process(context.Background(), "pwd")
	require.NoError(t, err)
	assert.Contains(t, res.Content, dir)
}

func TestShellTimeout(t *testing.T) {
	h := NewShellHandler(t.TempDir())
	h.timeout = 100 * time.Millisecond
	h.grace = 100 * time.Millisecond

	start := time.Now()
	_, err := h.Process(context.Background(), "sleep 5")
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "timed out")
	assert.Less(t, elapsed, 2*time.Second)
}
