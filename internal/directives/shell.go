package directives

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
	"syscall"
	"time"

	"github.com/google/shlex"
)

// DefaultShellTimeout is the wall-clock limit for one $() substitution.
const DefaultShellTimeout = 300 * time.Second

// denyPatterns rejects dangerous commands before anything is spawned.
var denyPatterns = []struct {
	re     *regexp.Regexp
	reason string
}{
	{regexp.MustCompile(`rm\s+-rf\s+[/*]`), "recursive delete on a root path"},
	{regexp.MustCompile(`>>?`), "output redirection"},
	{regexp.MustCompile(`\|\s*rm\b`), "pipe to rm"},
	{regexp.MustCompile(`;\s*rm\b`), "chained rm"},
	{regexp.MustCompile(`&\s*rm\b`), "chained rm"},
	{regexp.MustCompile(`\bmkfs`), "filesystem format command"},
	{regexp.MustCompile(`\bdd\b`), "raw disk write command"},
}

// deniedCommands rejects by leading token what the regexes above may miss.
var deniedCommands = map[string]bool{
	"mkfs": true, "dd": true, "shutdown": true, "reboot": true, "halt": true,
}

// ShellHandler executes $(cmd) substitutions. The command runs with its
// working directory pinned to the base path, under a hard timeout with a
// terminate-then-kill escalation.
type ShellHandler struct {
	baseDir string
	timeout time.Duration
	grace   time.Duration
}

func NewShellHandler(baseDir string) *ShellHandler {
	return &ShellHandler{
		baseDir: baseDir,
		timeout: DefaultShellTimeout,
		grace:   5 * time.Second,
	}
}

func (h *ShellHandler) Name() string        { return "shell" }
func (h *ShellHandler) Description() string { return "Execute a shell command and include its output" }

func (h *ShellHandler) SubstitutionPolicy() Policy { return PolicyKeep }

// Validate screens the command against the deny-list. It runs before any
// subprocess is spawned.
func (h *ShellHandler) Validate(arg string) error {
	for _, p := range denyPatterns {
		if p.re.MatchString(arg) {
			return &ValidationError{
				Directive: h.Name(),
				Arg:       arg,
				Reason:    "blocked dangerous command: " + p.reason,
			}
		}
	}
	if tokens, err := shlex.Split(arg); err == nil && len(tokens) > 0 {
		head := tokens[0]
		if i := strings.IndexByte(head, '.'); i > 0 {
			head = head[:i] // mkfs.ext4 and friends
		}
		if deniedCommands[head] {
			return &ValidationError{
				Directive: h.Name(),
				Arg:       arg,
				Reason:    fmt.Sprintf("blocked dangerous command: %s", tokens[0]),
			}
		}
	}
	return nil
}

func (h *ShellHandler) Process(ctx context.Context, arg string) (Result, error) {
	runCtx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	cmd := exec.Command("/bin/sh", "-c", arg)
	cmd.Dir = h.baseDir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return Result{}, &ExecutionError{Directive: h.Name(), Arg: arg, Err: err}
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	select {
	case err := <-done:
		if err != nil {
			msg := strings.TrimSpace(stderr.String())
			if msg == "" {
				msg = err.Error()
			}
			return Result{}, &ExecutionError{
				Directive: h.Name(),
				Arg:       arg,
				Err:       fmt.Errorf("command failed: %s", msg),
			}
		}
	case <-runCtx.Done():
		// Escalate: ask nicely, then kill once the grace window passes.
		_ = cmd.Process.Signal(syscall.SIGTERM)
		select {
		case <-done:
		case <-time.After(h.grace):
			_ = cmd.Process.Kill()
			<-done
		}
		return Result{}, &ExecutionError{
			Directive: h.Name(),
			Arg:       arg,
			Err:       fmt.Errorf("command timed out after %s", h.timeout),
		}
	}

	out := strings.TrimSpace(stdout.String())
	if out == "" {
		out = "(No output)"
	}
	return Result{Content: fmt.Sprintf("<$(%s)>\n%s\n</$(%s)>", arg, out, arg)}, nil
}

func (h *ShellHandler) SuggestCompletions(partial string) []string { return nil }
