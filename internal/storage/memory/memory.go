// Package memory is a process-local storage slot, used for tests and
// throwaway sessions.
package memory

import (
	"context"
	"sync"

	"zenith/internal/storage"
)

type Slot struct {
	mu     sync.Mutex
	values map[string][]byte
	writes int
}

func New() *Slot {
	return &Slot{values: make(map[string][]byte)}
}

// NewWith returns a slot pre-populated with value under key.
func NewWith(key string, value []byte) *Slot {
	s := New()
	s.values[key] = append([]byte(nil), value...)
	return s
}

func (s *Slot) Read(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	if !ok {
		return nil, storage.ErrSlotEmpty
	}
	return append([]byte(nil), v...), nil
}

func (s *Slot) Write(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = append([]byte(nil), value...)
	s.writes++
	return nil
}

// Writes reports how many times Write succeeded.
func (s *Slot) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

func (s *Slot) Close() error { return nil }
