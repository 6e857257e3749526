package session

import (
	"sync"

	"github.com/mfelder/turnstile/internal/domain"
)

// KeyLocks serializes turns per session key: exactly one turn executes per
// key at any instant, while different keys run fully in parallel.
//
// Entries are created lazily and never removed, so the table grows with the
// number of distinct keys seen over the process lifetime. Bounding it with
// LRU eviction of idle locks is a possible improvement for long-running
// deployments.
type KeyLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewKeyLocks creates an empty lock table.
func NewKeyLocks() *KeyLocks {
	return &KeyLocks{locks: make(map[string]*sync.Mutex)}
}

// Get returns the lock for the given key, creating it on first use.
func (l *KeyLocks) Get(key domain.SessionKey) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()

	k := key.String()
	m, ok := l.locks[k]
	if !ok {
		m = &sync.Mutex{}
		l.locks[k] = m
	}
	return m
}

// Len returns the number of distinct keys seen so far.
func (l *KeyLocks) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
