package auth

import (
	"sync"
	"time"
)

// TTLStore is a key-value map with per-key expiry. It backs the challenge
// and session records: get-then-maybe-delete and set-with-ttl are atomic
// per key, no cross-key coordination is needed.
type TTLStore struct {
	mu      sync.Mutex
	entries map[string]ttlEntry
	now     func() time.Time
}

type ttlEntry struct {
	value     any
	expiresAt time.Time
}

func NewTTLStore() *TTLStore {
	return NewTTLStoreWithNow(time.Now)
}

func NewTTLStoreWithNow(now func() time.Time) *TTLStore {
	s := &TTLStore{
		entries: make(map[string]ttlEntry),
		now:     now,
	}
	go s.sweep()
	return s
}

func (s *TTLStore) sweep() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		s.mu.Lock()
		now := s.now()
		for key, entry := range s.entries {
			if now.After(entry.expiresAt) {
				delete(s.entries, key)
			}
		}
		s.mu.Unlock()
	}
}

func (s *TTLStore) Set(key string, value any, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = ttlEntry{value: value, expiresAt: s.now().Add(ttl)}
}

func (s *TTLStore) Get(key string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok {
		return nil, false
	}
	if s.now().After(entry.expiresAt) {
		delete(s.entries, key)
		return nil, false
	}
	return entry.value, true
}

// Consume returns the value and removes the key in one step. Used for
// single-use challenges: the record is gone whether or not the caller's
// proof turns out to be valid.
func (s *TTLStore) Consume(key string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok {
		return nil, false
	}
	delete(s.entries, key)
	if s.now().After(entry.expiresAt) {
		return nil, false
	}
	return entry.value, true
}

func (s *TTLStore) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
}

func (s *TTLStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
