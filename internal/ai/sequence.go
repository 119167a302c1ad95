package ai

import (
	"sync"
	"time"

	"zenith/internal/cache"
)

// Sequencer tracks the newest suggestion request per form session so that
// a slow response to an older request can be recognised and dropped.
type Sequencer struct {
	mu     sync.Mutex
	latest *cache.LRUCache[uint64]
}

func NewSequencer() *Sequencer {
	return &Sequencer{latest: cache.NewLRUCache[uint64](1024, 30*time.Minute)}
}

// Begin records seq as issued for session and reports whether it is the
// newest seen so far.
func (s *Sequencer) Begin(session string, seq uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.latest.Get(session); ok && cur > seq {
		return false
	}
	s.latest.Set(session, seq)
	return true
}

// Current reports whether seq is still the newest request for session.
func (s *Sequencer) Current(session string, seq uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.latest.Get(session)
	return !ok || cur == seq
}

// Cache exposes the session table for periodic cleanup.
func (s *Sequencer) Cache() *cache.LRUCache[uint64] { return s.latest }
