// Package tools provides the tool registry, the built-in tools, and the
// execution service that gates every invocation behind the policy engine.
package tools

import (
	"context"
	"sync"

	"github.com/mfelder/turnstile/internal/domain"
)

// Tool is a capability the agent can invoke during a conversation.
type Tool interface {
	// Name returns the tool's identifier.
	Name() string

	// Description returns a human-readable description for the model.
	Description() string

	// InputSchema returns the JSON Schema for the tool's input.
	InputSchema() string

	// Execute runs the tool with the given JSON input and returns its output.
	Execute(ctx context.Context, input string) (string, error)
}

// Registry holds available tools. It is read-only during a turn.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool.
func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Name()] = t
}

// Get returns a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// IsRegistered reports whether a tool with the given name exists.
func (r *Registry) IsRegistered(name string) bool {
	_, ok := r.Get(name)
	return ok
}

// List returns definitions for all registered tools.
func (r *Registry) List() []domain.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	defs := make([]domain.ToolDefinition, 0, len(r.tools))
	for _, t := range r.tools {
		defs = append(defs, domain.ToolDefinition{
			Name:        t.Name(),
			Description: t.Description(),
			Schema:      t.InputSchema(),
		})
	}
	return defs
}
