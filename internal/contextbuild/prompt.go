package contextbuild

import (
	"fmt"
	"strings"
	"time"

	"github.com/mfelder/turnstile/internal/domain"
)

// promptConfig controls system prompt generation.
type promptConfig struct {
	AgentName   string
	ExtraPrompt string
	Tools       []domain.ToolDefinition
	MemoryNotes []string
}

// buildSystemPrompt constructs the system prompt for the model.
func buildSystemPrompt(cfg promptConfig) string {
	var b strings.Builder

	if cfg.AgentName != "" {
		fmt.Fprintf(&b, "You are %s, a conversational assistant.\n", cfg.AgentName)
	}
	fmt.Fprintf(&b, "Current date: %s\n\n", time.Now().Format("2006-01-02"))

	b.WriteString("Guidelines:\n")
	b.WriteString("- When using tools, explain what you're doing.\n")
	b.WriteString("- Prefer short, direct answers.\n")

	if len(cfg.Tools) > 0 {
		b.WriteString("\n## Available Tools\n\n")
		for _, t := range cfg.Tools {
			fmt.Fprintf(&b, "### %s\n%s\n", t.Name, t.Description)
			if t.Schema != "" {
				fmt.Fprintf(&b, "Input schema: %s\n", t.Schema)
			}
			b.WriteString("\n")
		}
	}

	if len(cfg.MemoryNotes) > 0 {
		b.WriteString("\n## Relevant Memory\n\n")
		for _, note := range cfg.MemoryNotes {
			fmt.Fprintf(&b, "- %s\n", note)
		}
	}

	if cfg.ExtraPrompt != "" {
		b.WriteString("\n")
		b.WriteString(cfg.ExtraPrompt)
		b.WriteString("\n")
	}

	return b.String()
}
