package directives

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/myassine/ibis/internal/engine"
)

// Pipeline scans raw input, dispatches every directive occurrence to its
// handler, rewrites the input per each handler's substitution policy, and
// appends the collected content after the rewritten text.
type Pipeline struct {
	registry *Registry
	shell    *ShellHandler
	log      *slog.Logger
}

func NewPipeline(registry *Registry, shell *ShellHandler) *Pipeline {
	return &Pipeline{
		registry: registry,
		shell:    shell,
		log:      slog.Default().With("component", "directives"),
	}
}

type match struct {
	start, end int
	arg        string
	handler    Handler
}

type outcome struct {
	res Result
	err error
}

// Process expands every directive in raw. All directives are attempted; the
// individual failures, if any, come back as one aggregated DirectiveError.
//
// Output ordering is deterministic: shell substitutions first, then @
// directives, left-to-right within each class.
func (p *Pipeline) Process(ctx context.Context, raw string) (string, []engine.MediaPart, error) {
	matches := p.scan(raw)
	if len(matches) == 0 {
		return raw, nil, nil
	}

	// Handlers are independent I/O operations; run them concurrently and
	// join before rewriting so ordering stays reproducible.
	outcomes := make([]outcome, len(matches))
	var wg sync.WaitGroup
	for i, m := range matches {
		wg.Add(1)
		go func(i int, m match) {
			defer wg.Done()
			outcomes[i] = p.run(ctx, m)
		}(i, m)
	}
	wg.Wait()

	var failures []error
	var outputs []string
	var media []engine.MediaPart
	for i := range matches {
		o := outcomes[i]
		if o.err != nil {
			p.log.Warn("directive failed", "directive", matches[i].handler.Name(), "err", o.err)
			failures = append(failures, o.err)
			continue
		}
		if o.res.Content != "" {
			outputs = append(outputs, o.res.Content)
		}
		media = append(media, o.res.Media...)
	}
	if len(failures) > 0 {
		return "", nil, &DirectiveError{Failures: failures}
	}

	expanded := eraseSpans(raw, matches, outcomes)
	if len(outputs) > 0 {
		expanded = expanded + "\n\n" + strings.Join(outputs, "\n\n")
	}
	return expanded, media, nil
}

// scan locates every directive span: $() substitutions first, then
// registered @name(arg) directives, each in source order.
func (p *Pipeline) scan(raw string) []match {
	var matches []match
	if p.shell != nil {
		for _, idx := range shellPattern.FindAllStringSubmatchIndex(raw, -1) {
			matches = append(matches, match{
				start:   idx[0],
				end:     idx[1],
				arg:     raw[idx[2]:idx[3]],
				handler: p.shell,
			})
		}
	}
	if re := p.registry.pattern(); re != nil {
		for _, idx := range re.FindAllStringSubmatchIndex(raw, -1) {
			name := raw[idx[2]:idx[3]]
			h, ok := p.registry.Lookup(name)
			if !ok {
				continue
			}
			matches = append(matches, match{
				start:   idx[0],
				end:     idx[1],
				arg:     raw[idx[4]:idx[5]],
				handler: h,
			})
		}
	}
	return matches
}

func (p *Pipeline) run(ctx context.Context, m match) outcome {
	arg := strings.TrimSpace(m.arg)
	arg = strings.Trim(arg, `"'`)
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return outcome{err: &ValidationError{Directive: m.handler.Name(), Reason: "empty argument"}}
	}
	if err := m.handler.Validate(arg); err != nil {
		return outcome{err: err}
	}
	res, err := m.handler.Process(ctx, arg)
	if err != nil {
		return outcome{err: err}
	}
	return outcome{res: res}
}

// eraseSpans removes the directive text of successful erase-policy handlers
// from the input; everything else stays in place.
func eraseSpans(raw string, matches []match, outcomes []outcome) string {
	type span struct{ start, end int }
	var erase []span
	for i, m := range matches {
		if outcomes[i].err == nil && m.handler.SubstitutionPolicy() == PolicyErase {
			erase = append(erase, span{m.start, m.end})
		}
	}
	if len(erase) == 0 {
		return raw
	}
	sort.Slice(erase, func(i, j int) bool { return erase[i].start < erase[j].start })

	var b strings.Builder
	pos := 0
	for _, sp := range erase {
		if sp.start < pos {
			continue
		}
		b.WriteString(raw[pos:sp.start])
		pos = sp.end
	}
	b.WriteString(raw[pos:])
	return strings.TrimSpace(b.String())
}
