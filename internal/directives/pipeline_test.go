package directives

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/myassine/ibis/internal/engine"
)

type stubHandler struct {
	name   string
	policy Policy
	out    string
	media  []engine.MediaPart
	err    error
	delay  time.Duration
	seen   []string
}

func (h *stubHandler) Name() string               { return h.name }
func (h *stubHandler) Description() string        { return "stub" }
func (h *stubHandler) SubstitutionPolicy() Policy { return h.policy }
func (h *stubHandler) Validate(arg string) error  { return nil }

func (h *stubHandler) Process(ctx context.Context, arg string) (Result, error) {
	if h.delay > 0 {
		time.Sleep(h.delay)
	}
	h.seen = append(h.seen, arg)
	if h.err != nil {
		return Result{}, h.err
	}
	out := h.out
	if out != "" {
		out = out + ":" + arg
	}
	return Result{Content: out, Media: h.media}, nil
}

func (h *stubHandler) SuggestCompletions(string) []string { return nil }

func TestUnknownDirectivesLeftUntouched(t *testing.T) {
	reg := NewRegistry(&stubHandler{name: "file", policy: PolicyKeep, out: "F"})
	p := NewPipeline(reg, nil)

	raw := "ping @alice(hello) and email @bob about it"
	expanded, media, err := p.Process(context.Background(), raw)
	require.NoError(t, err)
	assert.Equal(t, raw, expanded)
	assert.Empty(t, media)
}

func TestNoSpaceBeforeParen(t *testing.T) {
	h := &stubHandler{name: "file", policy: PolicyKeep, out: "F"}
	p := NewPipeline(NewRegistry(h), nil)

	expanded, _, err := p.Process(context.Background(), "see @file (notes.txt)")
	require.NoError(t, err)
	assert.Equal(t, "see @file (notes.txt)", expanded)
	assert.Empty(t, h.seen)
}

func TestKeepPolicyAppendsOutOfLine(t *testing.T) {
	h := &stubHandler{name: "file", policy: PolicyKeep, out: "CONTENT"}
	p := NewPipeline(NewRegistry(h), nil)

	expanded, _, err := p.Process(context.Background(), "please read @file(notes.txt) closely")
	require.NoError(t, err)
	assert.Equal(t, "please read @file(notes.txt) closely\n\nCONTENT:notes.txt", expanded)
}

func TestErasePolicyRemovesDirectiveAndEmitsMedia(t *testing.T) {
	h := &stubHandler{
		name:   "image",
		policy: PolicyErase,
		media:  []engine.MediaPart{{Type: "image", URL: "data:image/png;base64,xxx", Format: "png"}},
	}
	p := NewPipeline(NewRegistry(h), nil)

	expanded, media, err := p.Process(context.Background(), "look at @image(cat.png) now")
	require.NoError(t, err)
	assert.Equal(t, "look at  now", expanded)
	require.Len(t, media, 1)
	assert.Equal(t, "image", media[0].Type)
	assert.NotContains(t, expanded, "data:image/png")
}

func TestArgumentQuotesStripped(t *testing.T) {
	h := &stubHandler{name: "file", policy: PolicyKeep, out: "F"}
	p := NewPipeline(NewRegistry(h), nil)

	_, _, err := p.Process(context.Background(), `@file("quoted path.txt")`)
	require.NoError(t, err)
	require.Len(t, h.seen, 1)
	assert.Equal(t, "quoted path.txt", h.seen[0])
}

func TestEmptyArgumentIsError(t *testing.T) {
	h := &stubHandler{name: "file", policy: PolicyKeep, out: "F"}
	p := NewPipeline(NewRegistry(h), nil)

	_, _, err := p.Process(context.Background(), "@file()")
	var dErr *DirectiveError
	require.ErrorAs(t, err, &dErr)
	require.Len(t, dErr.Failures, 1)
	var vErr *ValidationError
	assert.ErrorAs(t, dErr.Failures[0], &vErr)
}

func TestAllFailuresAggregated(t *testing.T) {
	file := &stubHandler{name: "file", policy: PolicyKeep, err: errors.New("file boom")}
	folder := &stubHandler{name: "folder", policy: PolicyKeep, err: errors.New("folder boom")}
	ok := &stubHandler{name: "github", policy: PolicyKeep, out: "G"}
	p := NewPipeline(NewRegistry(file, folder, ok), nil)

	_, _, err := p.Process(context.Background(), "@file(a) @folder(b) @github(c)")
	var dErr *DirectiveError
	require.ErrorAs(t, err, &dErr)
	assert.Len(t, dErr.Failures, 2)
	assert.Contains(t, err.Error(), "file boom")
	assert.Contains(t, err.Error(), "folder boom")

	// The non-failing sibling was still attempted.
	assert.Equal(t, []string{"c"}, ok.seen)
}

func TestOutputOrderingDeterministic(t *testing.T) {
	// The slow handler finishes last; its output must still appear in match
	// order, shell substitutions ahead of @ directives.
	slow := &stubHandler{name: "file", policy: PolicyKeep, out: "FILE", delay: 50 * time.Millisecond}
	fast := &stubHandler{name: "folder", policy: PolicyKeep, out: "DIR"}
	shell := NewShellHandler(t.TempDir())
	p := NewPipeline(NewRegistry(slow, fast), shell)

	raw := "@file(a) then $(echo one) then @folder(b) then $(echo two)"
	for i := 0; i < 3; i++ {
		expanded, _, err := p.Process(context.Background(), raw)
		require.NoError(t, err)

		idxOne := strings.Index(expanded, "<$(echo one)>")
		idxTwo := strings.Index(expanded, "<$(echo two)>")
		idxFile := strings.Index(expanded, "FILE:a")
		idxDir := strings.Index(expanded, "DIR:b")
		require.True(t, idxOne >= 0 && idxTwo >= 0 && idxFile >= 0 && idxDir >= 0)
		assert.Less(t, idxOne, idxTwo, "shell outputs keep source order")
		assert.Less(t, idxTwo, idxFile, "shell outputs come before directive outputs")
		assert.Less(t, idxFile, idxDir, "directive outputs keep source order")
	}
}

func TestNoDirectivesPassThrough(t *testing.T) {
	p := NewPipeline(NewRegistry(), nil)
	expanded, media, err := p.Process(context.Background(), "plain text, nothing to expand")
	require.NoError(t, err)
	assert.Equal(t, "plain text, nothing to expand", expanded)
	assert.Empty(t, media)
}
