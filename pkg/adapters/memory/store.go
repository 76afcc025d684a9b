package memory

import (
	"context"
	"sync"
)

// TipStore implements ports.TipStore in memory.
// Safe for concurrent use.
type TipStore struct {
	used map[string]map[string]bool
	mu   sync.RWMutex
}

// NewTipStore creates a new in-memory tip store.
func NewTipStore() *TipStore {
	return &TipStore{
		used: make(map[string]map[string]bool),
	}
}

// Used returns a copy of the used wells of a rack so callers can't mutate the store.
func (s *TipStore) Used(ctx context.Context, rackID string) (map[string]bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ret := make(map[string]bool, len(s.used[rackID]))
	for well := range s.used[rackID] {
		ret[well] = true
	}
	return ret, nil
}

// MarkUsed records wells as used.
func (s *TipStore) MarkUsed(ctx context.Context, rackID string, wells []string) error {
	if len(wells) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	rack, ok := s.used[rackID]
	if !ok {
		rack = make(map[string]bool)
		s.used[rackID] = rack
	}
	for _, w := range wells {
		rack[w] = true
	}
	return nil
}

// MarkAvailable forgets that wells were used.
func (s *TipStore) MarkAvailable(ctx context.Context, rackID string, wells []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, w := range wells {
		delete(s.used[rackID], w)
	}
	return nil
}

// Reset forgets every used well of a rack.
func (s *TipStore) Reset(ctx context.Context, rackID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.used, rackID)
	return nil
}
