package engine

import (
	"context"
	"fmt"
	"sort"

	"github.com/xeipuuv/gojsonschema"
)

type ToolFunc func(ctx context.Context, args map[string]any) (string, error)

type Tool struct {
	Name        string
	Description string
	SchemaJSON  string
	Fn          ToolFunc
}

// ValidateArgs validates the provided arguments against the tool's JSON schema.
func (t Tool) ValidateArgs(args map[string]any) error {
	schemaLoader := gojsonschema.NewStringLoader(t.SchemaJSON)
	documentLoader := gojsonschema.NewGoLoader(args)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}

	if !result.Valid() {
		var errorMsgs []string
		for _, err := range result.Errors() {
			errorMsgs = append(errorMsgs, err.String())
		}
		return &ToolValidationError{
			ToolName: t.Name,
			Errors:   errorMsgs,
		}
	}

	return nil
}

// ToolRegistry holds every tool the model may call. Registered once at
// startup, read-only afterwards, safe to share across sessions.
type ToolRegistry map[string]Tool

func (r ToolRegistry) Register(t Tool) {
	r[t.Name] = t
}

func (r ToolRegistry) Get(name string) (Tool, bool) {
	t, ok := r[name]
	return t, ok
}

// Schemas returns the tool schemas sorted by name for deterministic requests.
func (r ToolRegistry) Schemas() []ToolSchema {
	s := make([]ToolSchema, 0, len(r))
	for _, t := range r {
		s = append(s, ToolSchema{
			Name:        t.Name,
			Description: t.Description,
			JSONSchema:  t.SchemaJSON,
		})
	}
	sort.Slice(s, func(i, j int) bool { return s[i].Name < s[j].Name })
	return s
}
