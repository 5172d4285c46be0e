// Package memory provides in-memory implementations of outbound ports.
package memory

import (
	"context"
	"sync"

	"github.com/vitrina-app/vitrina/internal/domain/session"
)

// SessionStorage implements session.Storage with a map keyed by storage key.
// Thread-safe for concurrent access. Nothing survives the process; used by
// the front server when storage.driver is "memory", and by tests.
type SessionStorage struct {
	*records
	key string
}

type records struct {
	mu sync.RWMutex
	m  map[string]session.Session
}

var _ session.Storage = (*SessionStorage)(nil)

// NewSessionStorage creates an empty storage for key. An empty key selects
// session.StorageKey.
func NewSessionStorage(key string) *SessionStorage {
	if key == "" {
		key = session.StorageKey
	}
	return &SessionStorage{
		records: &records{m: make(map[string]session.Session)},
		key:     key,
	}
}

// WithKey returns a storage for another key sharing the same records.
func (s *SessionStorage) WithKey(key string) *SessionStorage {
	return &SessionStorage{records: s.records, key: key}
}

// Load returns the record for the key.
func (s *SessionStorage) Load(context.Context) (session.Session, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.m[s.key]
	return sess, ok && !sess.IsZero(), nil
}

// Save replaces the record for the key.
func (s *SessionStorage) Save(_ context.Context, sess session.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[s.key] = sess
	return nil
}

// Clear removes the record for the key.
func (s *SessionStorage) Clear(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, s.key)
	return nil
}

// Len returns the number of stored records.
func (s *SessionStorage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.m)
}
