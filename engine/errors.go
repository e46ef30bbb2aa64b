// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package engine

import "errors"

var (
	ErrInvalidInput  = errors.New("invalid vote input")
	ErrNotFound      = errors.New("poll or option not found")
	ErrDuplicateVote = errors.New("already voted for this option")
	ErrNoActiveVote  = errors.New("no active vote")
	// ErrTallyUpdate means the vote is recorded but the live tally could not
	// be updated. The poll is queued for reconciliation; clients may retry.
	ErrTallyUpdate = errors.New("tally update failed")
)
