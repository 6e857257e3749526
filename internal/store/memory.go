package store

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/mfelder/turnstile/internal/domain"
	"github.com/mfelder/turnstile/internal/session"
)

// MemoryRepository is an in-memory SessionRepository for tests and
// single-process deployments without persistence.
type MemoryRepository struct {
	mu       sync.RWMutex
	sessions map[string]*session.Session // id → session
	byKey    map[string]string           // key string → id
}

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		sessions: make(map[string]*session.Session),
		byKey:    make(map[string]string),
	}
}

func (r *MemoryRepository) FindByKey(key domain.SessionKey) (*session.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byKey[key.String()]
	if !ok {
		return nil, nil
	}
	return copySession(r.sessions[id]), nil
}

func (r *MemoryRepository) FindByID(id string) (*session.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, nil
	}
	return copySession(s), nil
}

func (r *MemoryRepository) Save(s *session.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.ID] = copySession(s)
	r.byKey[s.Key.String()] = s.ID
	return nil
}

func (r *MemoryRepository) AppendMessage(sessionID string, msg domain.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[sessionID]
	if !ok {
		return fmt.Errorf("appending message: session %s not found", sessionID)
	}
	s.Messages = append(s.Messages, msg)
	s.Metadata.UpdatedAt = time.Now()
	return nil
}

func (r *MemoryRepository) ListAll() ([]SessionIndexEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := make([]SessionIndexEntry, 0, len(r.sessions))
	for _, s := range r.sessions {
		entries = append(entries, SessionIndexEntry{
			SessionID:    s.ID,
			Key:          s.Key.String(),
			AgentID:      s.Metadata.AgentID,
			UpdatedAt:    s.Metadata.UpdatedAt,
			MessageCount: len(s.Messages),
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].UpdatedAt.After(entries[j].UpdatedAt)
	})
	return entries, nil
}

func copySession(s *session.Session) *session.Session {
	if s == nil {
		return nil
	}
	c := *s
	c.Messages = append([]domain.Message(nil), s.Messages...)
	c.Summaries = append([]session.CompactionSummary(nil), s.Summaries...)
	return &c
}
