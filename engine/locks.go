// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package engine

import (
	"hash/fnv"
	"sync"
)

const DefaultStripes = 256

// pollLock serialises work on the polls that hash to it.
//
// gate is held shared by a vote from its ledger write until its deltas are
// published, and exclusively by reconciliation.
// emit orders tally mutations with their publishes, and makes an observer's
// subscribe plus snapshot atomic with respect to them.
type pollLock struct {
	gate sync.RWMutex
	emit sync.Mutex
}

type stripedLocks struct {
	stripes []pollLock
}

func newStripedLocks(n int) *stripedLocks {
	if n <= 0 {
		n = DefaultStripes
	}
	return &stripedLocks{stripes: make([]pollLock, n)}
}

func (s *stripedLocks) get(pollID string) *pollLock {
	h := fnv.New32a()
	h.Write([]byte(pollID))
	return &s.stripes[h.Sum32()%uint32(len(s.stripes))]
}
