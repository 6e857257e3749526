// Package contextbuild assembles the context bundle sent to the model for
// one turn: system prompt, transcript, and tool schemas.
package contextbuild

import (
	"context"
	"encoding/json"

	"github.com/mfelder/turnstile/internal/llm"
	"github.com/mfelder/turnstile/internal/session"
	"github.com/mfelder/turnstile/internal/tools"
)

// Bundle is the assembled payload for one completion request.
type Bundle struct {
	System   string
	Messages []llm.Message
	Tools    []llm.ToolSchema
}

// Assembler builds the context bundle for a session.
type Assembler interface {
	Build(ctx context.Context, sess *session.Session, registry *tools.Registry) (Bundle, error)
}

// MemorySearcher is an optional collaborator that returns stored context
// snippets relevant to a query.
type MemorySearcher interface {
	Search(ctx context.Context, query string, limit int) ([]string, error)
}

// Builder is the default Assembler.
type Builder struct {
	agentName   string
	extraPrompt string
	memory      MemorySearcher // may be nil
}

// NewBuilder creates a context builder. memory may be nil.
func NewBuilder(agentName, extraPrompt string, memory MemorySearcher) *Builder {
	return &Builder{agentName: agentName, extraPrompt: extraPrompt, memory: memory}
}

// Build assembles the bundle from the session transcript and registry.
// When a memory searcher is present, snippets matching the latest user
// message are folded into the system prompt.
func (b *Builder) Build(ctx context.Context, sess *session.Session, registry *tools.Registry) (Bundle, error) {
	defs := registry.List()

	var memoryNotes []string
	if b.memory != nil {
		if query := latestUserText(sess); query != "" {
			notes, err := b.memory.Search(ctx, query, 5)
			if err != nil {
				return Bundle{}, err
			}
			memoryNotes = notes
		}
	}

	bundle := Bundle{
		System: buildSystemPrompt(promptConfig{
			AgentName:   b.agentName,
			ExtraPrompt: b.extraPrompt,
			Tools:       defs,
			MemoryNotes: memoryNotes,
		}),
	}

	for _, m := range sess.Messages {
		bundle.Messages = append(bundle.Messages, llm.Message{
			Role:    string(m.Role),
			Content: m.Content,
		})
	}

	for _, d := range defs {
		bundle.Tools = append(bundle.Tools, llm.ToolSchema{
			Name:        d.Name,
			Description: d.Description,
			InputSchema: d.Schema,
		})
	}
	return bundle, nil
}

// ToolSchemasJSON renders the bundle's tool schemas as a JSON array string.
func (b Bundle) ToolSchemasJSON() string {
	if len(b.Tools) == 0 {
		return "[]"
	}
	data, err := json.Marshal(b.Tools)
	if err != nil {
		return "[]"
	}
	return string(data)
}

func latestUserText(sess *session.Session) string {
	for i := len(sess.Messages) - 1; i >= 0; i-- {
		if sess.Messages[i].Role == "user" {
			return sess.Messages[i].Content
		}
	}
	return ""
}
