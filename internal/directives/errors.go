package directives

import (
	"fmt"
	"strings"
)

// ValidationError reports a bad or missing directive argument. It never
// aborts sibling directives.
type ValidationError struct {
	Directive string
	Arg       string
	Reason    string
}

func (e *ValidationError) Error() string {
	if e.Arg == "" {
		return fmt.Sprintf("@%s: %s", e.Directive, e.Reason)
	}
	return fmt.Sprintf("@%s(%s): %s", e.Directive, e.Arg, e.Reason)
}

// ResolutionError reports a path or URL that could not be found. It carries
// every location that was attempted.
type ResolutionError struct {
	Kind  string // e.g. "file", "folder"
	Path  string
	Tried []string
}

func (e *ResolutionError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s not found: %s\nTried locations:", e.Kind, e.Path)
	for _, loc := range e.Tried {
		fmt.Fprintf(&b, "\n  - %s", loc)
	}
	return b.String()
}

// ExecutionError reports a subprocess or network failure while expanding a
// directive.
type ExecutionError struct {
	Directive string
	Arg       string
	Err       error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("@%s(%s): %v", e.Directive, e.Arg, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// DirectiveError aggregates every individual directive failure from one
// pipeline run. The pipeline attempts all directives before returning it.
type DirectiveError struct {
	Failures []error
}

func (e *DirectiveError) Error() string {
	if len(e.Failures) == 1 {
		return e.Failures[0].Error()
	}
	msgs := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		msgs = append(msgs, f.Error())
	}
	return fmt.Sprintf("%d directives failed:\n%s", len(e.Failures), strings.Join(msgs, "\n"))
}

func (e *DirectiveError) Unwrap() []error { return e.Failures }
