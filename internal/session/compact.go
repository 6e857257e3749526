package session

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mfelder/turnstile/internal/bus"
	"github.com/mfelder/turnstile/internal/domain"
)

// PrunedPlaceholder replaces tool-result content when pruning. Pruning never
// deletes a message entry, only its content.
const PrunedPlaceholder = "[Tool result pruned for brevity]"

// maxSynopsisSnippets bounds how many user-message snippets the generated
// synopsis includes.
const maxSynopsisSnippets = 3

// snippetLen bounds each synopsis snippet.
const snippetLen = 60

// Compact replaces older transcript messages with a summary, keeping at most
// maxMessagesToKeep trailing messages — extended as needed so the last user
// message always survives. If summaryText is empty a synopsis is generated
// from the compacted prefix.
func (s *Session) Compact(maxMessagesToKeep int, pruneToolResults bool, summaryText string) (*Session, bus.ContextCompacted, error) {
	if maxMessagesToKeep <= 0 {
		return nil, bus.ContextCompacted{}, fmt.Errorf("compact: maxMessagesToKeep must be positive, got %d", maxMessagesToKeep)
	}

	size := len(s.Messages)
	if size == 0 {
		return s.clone(), bus.ContextCompacted{SessionID: s.ID}, nil
	}

	keepCount := maxMessagesToKeep
	if lastUser := s.lastUserIndex(); lastUser >= 0 && size-keepCount > lastUser {
		keepCount = size - lastUser
	}
	if keepCount > size {
		keepCount = size
	}

	compacted := s.Messages[:size-keepCount]
	kept := append([]domain.Message(nil), s.Messages[size-keepCount:]...)

	toolPruned := 0
	if pruneToolResults {
		for _, m := range compacted {
			if m.Role == domain.RoleTool {
				toolPruned++
			}
		}
	}

	c := s.clone()
	c.Messages = kept
	c.Metadata.UpdatedAt = time.Now()

	text := ""
	if len(compacted) > 0 {
		text = summaryText
		if text == "" {
			text = synopsis(compacted)
		}
		summary := CompactionSummary{
			ID:                uuid.New().String(),
			MessageRangeStart: 0,
			MessageRangeEnd:   len(compacted) - 1,
			SummaryText:       text,
			Timestamp:         time.Now(),
			PrunedToolResults: toolPruned,
		}
		c.Summaries = append(c.Summaries, summary)
		header := domain.Message{
			Role:      domain.RoleSystem,
			Content:   fmt.Sprintf("[Previous conversation summary: %s]", text),
			Timestamp: time.Now(),
		}
		c.Messages = append([]domain.Message{header}, c.Messages...)
	}

	if pruneToolResults {
		for i := range c.Messages {
			if c.Messages[i].Role == domain.RoleTool {
				c.Messages[i].Content = PrunedPlaceholder
			}
		}
	}

	ev := bus.ContextCompacted{
		SessionID:         c.ID,
		MessagesBefore:    size,
		MessagesAfter:     len(c.Messages),
		ToolResultsPruned: toolPruned,
		Summary:           text,
	}
	return c, ev, nil
}

// PruneToolResults replaces every tool message's content with the
// placeholder. Transcript length is unchanged.
func (s *Session) PruneToolResults() (*Session, bus.ToolResultsPruned) {
	c := s.clone()
	pruned := 0
	for i := range c.Messages {
		if c.Messages[i].Role == domain.RoleTool {
			c.Messages[i].Content = PrunedPlaceholder
			pruned++
		}
	}
	if pruned > 0 {
		c.Metadata.UpdatedAt = time.Now()
	}
	return c, bus.ToolResultsPruned{SessionID: c.ID, Pruned: pruned}
}

// synopsis builds a fallback summary for a compacted prefix: message counts
// plus up to three truncated user-message snippets.
func synopsis(msgs []domain.Message) string {
	users, assistants := 0, 0
	var snippets []string
	for _, m := range msgs {
		switch m.Role {
		case domain.RoleUser:
			users++
			if len(snippets) < maxSynopsisSnippets {
				snippets = append(snippets, truncate(strings.TrimSpace(m.Content), snippetLen))
			}
		case domain.RoleAssistant:
			assistants++
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d user and %d assistant messages", users, assistants)
	if len(snippets) > 0 {
		b.WriteString(". Topics: ")
		b.WriteString(strings.Join(snippets, "; "))
	}
	return b.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
