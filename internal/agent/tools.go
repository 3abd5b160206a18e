package agent

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

type Tool interface {
	Name() string
	Description() string
	InputSchema() any
	Execute(ctx context.Context, input string) (string, error)
}

type CapabilityKind string

const CapabilityWebSearch CapabilityKind = "web_search"

// Capability is a Tool tagged with the kind of external service it reaches.
type Capability interface {
	Tool
	Kind() CapabilityKind
}

type Registry struct {
	tools   map[string]Capability
	schemas map[string]*gojsonschema.Schema
}

func NewRegistry() *Registry {
	return &Registry{
		tools:   make(map[string]Capability),
		schemas: make(map[string]*gojsonschema.Schema),
	}
}

// Register adds c and compiles its input schema. A capability whose schema
// does not compile is still registered, without input validation.
func (r *Registry) Register(c Capability) {
	r.tools[c.Name()] = c
	schema, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(c.InputSchema()))
	if err != nil {
		slog.Warn("tool input schema does not compile", "tool", c.Name(), "error", err)
		delete(r.schemas, c.Name())
		return
	}
	r.schemas[c.Name()] = schema
}

// Validate checks input against the named capability's schema.
func (r *Registry) Validate(name, input string) error {
	schema, ok := r.schemas[name]
	if !ok {
		return nil
	}
	result, err := schema.Validate(gojsonschema.NewStringLoader(input))
	if err != nil {
		return fmt.Errorf("invalid input for %s: %w", name, err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("invalid input for %s: %s", name, strings.Join(msgs, "; "))
	}
	return nil
}

func (r *Registry) Get(name string) (Capability, bool) {
	c, ok := r.tools[name]
	return c, ok
}

// All returns the registered capabilities ordered by name.
func (r *Registry) All() []Capability {
	out := make([]Capability, 0, len(r.tools))
	for _, c := range r.tools {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

func (r *Registry) Len() int { return len(r.tools) }

// Scope returns a registry holding only the named capabilities.
func (r *Registry) Scope(names []string) (*Registry, error) {
	scoped := NewRegistry()
	for _, name := range names {
		c, ok := r.tools[name]
		if !ok {
			return nil, fmt.Errorf("unknown tool %q", name)
		}
		scoped.tools[name] = c
		if schema, ok := r.schemas[name]; ok {
			scoped.schemas[name] = schema
		}
	}
	return scoped, nil
}
