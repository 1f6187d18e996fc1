package cache

import (
	"sync"
	"time"
)

// ExpiringSet remembers keys until their own deadline passes. Unlike
// LRUCache it has no capacity, so a key is never forgotten early.
type ExpiringSet struct {
	mu    sync.Mutex
	items map[string]time.Time
	now   func() time.Time
}

func NewExpiringSet() *ExpiringSet {
	return &ExpiringSet{items: make(map[string]time.Time), now: time.Now}
}

// WithClock replaces the time source. Intended for tests.
func (s *ExpiringSet) WithClock(now func() time.Time) *ExpiringSet {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
	return s
}

// Add keeps key for ttl. A later deadline for the same key wins.
func (s *ExpiringSet) Add(key string, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	deadline := s.now().Add(ttl)
	if cur, ok := s.items[key]; ok && cur.After(deadline) {
		return
	}
	s.items[key] = deadline
}

// Contains reports whether key was added and has not expired yet.
func (s *ExpiringSet) Contains(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	deadline, ok := s.items[key]
	if !ok {
		return false
	}
	if s.now().After(deadline) {
		delete(s.items, key)
		return false
	}
	return true
}

// CleanExpired drops expired keys and returns how many were dropped.
func (s *ExpiringSet) CleanExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	n := 0
	for key, deadline := range s.items {
		if now.After(deadline) {
			delete(s.items, key)
			n++
		}
	}
	return n
}

func (s *ExpiringSet) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}
