package directives

import (
	"regexp"
	"sort"
	"strings"
	"sync"
)

// shellPattern matches $(cmd) shell-substitution spans.
var shellPattern = regexp.MustCompile(`\$\((.*?)\)`)

// Registry holds the directive handlers keyed by name. It is built once at
// startup and read-only afterwards.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	pat      *regexp.Regexp
}

func NewRegistry(handlers ...Handler) *Registry {
	r := &Registry{handlers: make(map[string]Handler)}
	for _, h := range handlers {
		r.Register(h)
	}
	return r
}

func (r *Registry) Register(h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[h.Name()] = h
	r.pat = nil
}

func (r *Registry) Lookup(name string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[name]
	return h, ok
}

// Names returns the registered directive names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// pattern matches @name(arg) only for registered names, with no space
// allowed between the name and the paren. Unknown @names are left alone so
// ordinary @mentions in prose never trigger a handler.
func (r *Registry) pattern() *regexp.Regexp {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pat != nil {
		return r.pat
	}
	if len(r.handlers) == 0 {
		return nil
	}
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, regexp.QuoteMeta(name))
	}
	sort.Strings(names)
	r.pat = regexp.MustCompile(`@(` + strings.Join(names, "|") + `)\(([^)]*)\)`)
	return r.pat
}
