package ratelimit

import "sync"

// MemoryStore is the in-process bucket store. State is ephemeral: a restart
// resets every bucket to full, which is an accepted trade-off.
type MemoryStore struct {
	mu      sync.RWMutex
	buckets map[Key]*Bucket
}

// NewMemoryStore creates an empty in-memory bucket store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		buckets: make(map[Key]*Bucket),
	}
}

// Resolve returns the bucket for key, creating it exactly once. Concurrent
// first requests for the same key race on the write lock; the loser discards
// its candidate bucket and adopts the winner's.
func (s *MemoryStore) Resolve(key Key, create func() *Bucket) *Bucket {
	s.mu.RLock()
	b, ok := s.buckets[key]
	s.mu.RUnlock()
	if ok {
		return b
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok := s.buckets[key]; ok {
		return b
	}
	b = create()
	s.buckets[key] = b
	return b
}

// Reset removes the bucket for key.
func (s *MemoryStore) Reset(key Key) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.buckets, key)
}

// Len reports the number of live buckets.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.buckets)
}
