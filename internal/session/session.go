// Package session implements the immutable-update conversation aggregate:
// transcript, compaction, tool-result pruning, and token estimation. Every
// mutating operation returns a new Session value; callers serialize turns
// through the per-key lock table in this package.
package session

import (
	"time"

	"github.com/google/uuid"

	"github.com/mfelder/turnstile/internal/bus"
	"github.com/mfelder/turnstile/internal/domain"
)

// CompactionConfig tunes when and how a session transcript is compacted.
type CompactionConfig struct {
	ReserveTokensFloor        int  `json:"reserveTokensFloor" yaml:"reserveTokensFloor"`
	SoftThresholdTokens       int  `json:"softThresholdTokens" yaml:"softThresholdTokens"`
	SoftThresholdMessages     int  `json:"softThresholdMessages" yaml:"softThresholdMessages"`
	DefaultMaxMessagesToKeep  int  `json:"defaultMaxMessagesToKeep" yaml:"defaultMaxMessagesToKeep"`
	PruneToolResultsOnCompact bool `json:"pruneToolResultsOnCompact" yaml:"pruneToolResultsOnCompact"`
}

// DefaultCompactionConfig returns the defaults used when config omits them.
func DefaultCompactionConfig() CompactionConfig {
	return CompactionConfig{
		ReserveTokensFloor:        2048,
		SoftThresholdTokens:       1024,
		SoftThresholdMessages:     10,
		DefaultMaxMessagesToKeep:  30,
		PruneToolResultsOnCompact: true,
	}
}

// CompactionSummary records one compaction pass. A session's summary list
// only ever grows.
type CompactionSummary struct {
	ID                string    `json:"id"`
	MessageRangeStart int       `json:"messageRangeStart"`
	MessageRangeEnd   int       `json:"messageRangeEnd"`
	SummaryText       string    `json:"summaryText"`
	Timestamp         time.Time `json:"timestamp"`
	PrunedToolResults int       `json:"prunedToolResults"`
}

// Metadata carries non-transcript session state.
type Metadata struct {
	AgentID   string    `json:"agentId"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Session is the conversation aggregate. The key is immutable; the
// transcript and summaries are updated by returning new Session values.
type Session struct {
	ID        string              `json:"id"`
	Key       domain.SessionKey   `json:"key"`
	Messages  []domain.Message    `json:"messages,omitempty"`
	Config    CompactionConfig    `json:"config"`
	Metadata  Metadata            `json:"metadata"`
	Summaries []CompactionSummary `json:"summaries,omitempty"`
}

// New creates an empty session for the given key.
func New(key domain.SessionKey, agentID string) *Session {
	now := time.Now()
	return &Session{
		ID:     uuid.New().String(),
		Key:    key,
		Config: DefaultCompactionConfig(),
		Metadata: Metadata{
			AgentID:   agentID,
			CreatedAt: now,
			UpdatedAt: now,
		},
	}
}

// clone returns a shallow copy with its own message and summary slices.
func (s *Session) clone() *Session {
	c := *s
	c.Messages = append([]domain.Message(nil), s.Messages...)
	c.Summaries = append([]CompactionSummary(nil), s.Summaries...)
	return &c
}

// WithMessage appends a message and returns the new session version.
func (s *Session) WithMessage(msg domain.Message) (*Session, bus.MessageAdded) {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	c := s.clone()
	c.Messages = append(c.Messages, msg)
	c.Metadata.UpdatedAt = time.Now()
	return c, bus.MessageAdded{SessionID: c.ID, Role: msg.Role}
}

// EstimateTokens approximates transcript size: len(content)/4 + 4 per message.
func (s *Session) EstimateTokens() int {
	total := 0
	for _, m := range s.Messages {
		total += len(m.Content)/4 + 4
	}
	return total
}

// ShouldCompact reports whether the transcript is within the soft token
// threshold of the model's context limit.
func (s *Session) ShouldCompact(currentTokens, maxTokens int) bool {
	return currentTokens > maxTokens-s.Config.SoftThresholdTokens
}

// ShouldCompactByMessageCount reports whether the transcript is within the
// soft message threshold of the configured maximum.
func (s *Session) ShouldCompactByMessageCount(maxMessages int) bool {
	return len(s.Messages) > maxMessages-s.Config.SoftThresholdMessages
}

// lastUserIndex returns the index of the chronologically last user message,
// or -1 if the transcript has none.
func (s *Session) lastUserIndex() int {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Role == domain.RoleUser {
			return i
		}
	}
	return -1
}
