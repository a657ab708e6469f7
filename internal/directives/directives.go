// Package directives expands inline markers in user input before the text is
// sent to a model: @name(arg) for registered handlers and $(cmd) for shell
// substitution.
package directives

import (
	"context"

	"github.com/myassine/ibis/internal/engine"
)

// Policy describes what the pipeline does to the directive text itself after
// a successful expansion.
type Policy int

const (
	// PolicyKeep leaves the directive text in place; the produced content is
	// appended out-of-line after the rewritten input.
	PolicyKeep Policy = iota
	// PolicyErase removes the directive from the rewritten input; the handler
	// emits media records instead of inline text.
	PolicyErase
)

// Result is a handler's output: inline text, media records, or both.
type Result struct {
	Content string
	Media   []engine.MediaPart
}

// Handler is the capability interface implemented by each directive kind.
type Handler interface {
	Name() string
	Description() string
	// Validate gates Process. It must fail with a descriptive error that
	// includes attempted resolution locations where that applies.
	Validate(arg string) error
	Process(ctx context.Context, arg string) (Result, error)
	SuggestCompletions(partial string) []string
	SubstitutionPolicy() Policy
}
