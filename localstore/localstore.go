// Package localstore is the durable key-value store used for session
// persistence and cache fallbacks, deliberately separate from the contest
// dataset: clearing votes must not destroy "who am I". Keys in use:
// currentSession:{sid}, lastUsername, globalUsers, globalAllScores.
package localstore

import (
	"errors"
	"sync"
)

var ErrKeyNotFound = errors.New("key not found")

type Store interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Remove(key string) error

	// Keys lists keys with the given prefix. Needed by the global
	// competition clear, which wipes every persisted session.
	Keys(prefix string) ([]string, error)
}

// MemoryStore is the test double for Store.
type MemoryStore struct {
	mu sync.RWMutex
	kv map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{kv: make(map[string]string)}
}

func (s *MemoryStore) Get(key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.kv[key]
	if !ok {
		return "", ErrKeyNotFound
	}
	return v, nil
}

func (s *MemoryStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.kv[key] = value
	return nil
}

func (s *MemoryStore) Remove(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.kv, key)
	return nil
}

func (s *MemoryStore) Keys(prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var keys []string
	for k := range s.kv {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			keys = append(keys, k)
		}
	}
	return keys, nil
}
