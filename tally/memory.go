// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package tally

import (
	"context"
	"sync"
	"sync/atomic"
)

// MemoryStore keeps counters in process memory.
// The map lock is only taken to create or list counters; increments are
// lock-free on the counter itself.
type MemoryStore struct {
	mu    sync.RWMutex
	polls map[string]map[string]*atomic.Int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		polls: make(map[string]map[string]*atomic.Int64),
	}
}

func (s *MemoryStore) Increment(_ context.Context, pollID, optionID string, delta int64) (int64, error) {
	return s.counter(pollID, optionID).Add(delta), nil
}

func (s *MemoryStore) Snapshot(_ context.Context, pollID string) (map[string]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counters := s.polls[pollID]
	counts := make(map[string]int64, len(counters))
	for optionID, c := range counters {
		counts[optionID] = c.Load()
	}
	return counts, nil
}

// Reset replaces every counter of the poll with counts.
func (s *MemoryStore) Reset(_ context.Context, pollID string, counts map[string]int64) error {
	counters := make(map[string]*atomic.Int64, len(counts))
	for optionID, n := range counts {
		c := new(atomic.Int64)
		c.Store(n)
		counters[optionID] = c
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.polls[pollID] = counters
	return nil
}

func (s *MemoryStore) counter(pollID, optionID string) *atomic.Int64 {
	s.mu.RLock()
	c, ok := s.polls[pollID][optionID]
	s.mu.RUnlock()
	if ok {
		return c
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	counters, ok := s.polls[pollID]
	if !ok {
		counters = make(map[string]*atomic.Int64)
		s.polls[pollID] = counters
	}
	if c, ok := counters[optionID]; ok {
		return c
	}
	c = new(atomic.Int64)
	counters[optionID] = c
	return c
}
