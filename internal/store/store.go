// Package store provides session persistence: the repository port plus
// in-memory and SQLite-backed implementations.
package store

import (
	"time"

	"github.com/mfelder/turnstile/internal/domain"
	"github.com/mfelder/turnstile/internal/session"
)

// SessionIndexEntry is the lightweight per-session index record used for
// lookups without loading the full transcript.
type SessionIndexEntry struct {
	SessionID    string    `json:"sessionId"`
	Key          string    `json:"key"`
	AgentID      string    `json:"agentId"`
	UpdatedAt    time.Time `json:"updatedAt"`
	MessageCount int       `json:"messageCount"`
}

// SessionRepository persists session state. FindByKey and FindByID return
// (nil, nil) when no session exists.
type SessionRepository interface {
	FindByKey(key domain.SessionKey) (*session.Session, error)
	FindByID(id string) (*session.Session, error)

	// Save upserts the session record, replaces its transcript with the
	// session's current messages, and appends any new summaries.
	Save(s *session.Session) error

	// AppendMessage adds a single message to an existing transcript.
	AppendMessage(sessionID string, msg domain.Message) error

	// ListAll returns the session index, most recently updated first.
	ListAll() ([]SessionIndexEntry, error)
}
