package rules

import (
	"sync"
	"time"
)

// Store holds the current rule snapshot. The refresh loop replaces it
// wholesale; readers get an immutable snapshot and never observe a
// half-built set.
type Store struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewStore returns a Store holding an empty snapshot, which resolves
// to everything open until the first refresh lands.
func NewStore() *Store {
	return &Store{snap: Snapshot{Rules: RuleSet{}}}
}

// Set replaces the current snapshot.
func (s *Store) Set(rs RuleSet) {
	s.mu.Lock()
	s.snap = Snapshot{Rules: rs, FetchedAt: time.Now()}
	s.mu.Unlock()
}

// Current returns the current snapshot.
func (s *Store) Current() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}
