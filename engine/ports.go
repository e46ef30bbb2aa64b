// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package engine

import (
	"context"

	"github.com/danielhkuo/livepoll/models"
)

// Ledger is the durable record of active votes.
// Conflicts are reported with ledger.ErrConflict and ledger.ErrVoteNotFound.
type Ledger interface {
	GetActiveVote(ctx context.Context, voterID, pollID string) (models.Vote, bool, error)
	CreateVote(ctx context.Context, voterID, pollID, optionID string) (models.Vote, error)
	ReplaceVoteOption(ctx context.Context, voteID, fromOptionID, toOptionID string) (models.Vote, error)
	DeleteVote(ctx context.Context, voteID, optionID string) error
	CountVotes(ctx context.Context, pollID string) (map[string]int64, error)
}

// TallyStore holds the derived per-option counters.
type TallyStore interface {
	Increment(ctx context.Context, pollID, optionID string, delta int64) (int64, error)
	Snapshot(ctx context.Context, pollID string) (map[string]int64, error)
	Reset(ctx context.Context, pollID string, counts map[string]int64) error
}

// PollRegistry answers membership questions about polls and options.
type PollRegistry interface {
	OptionBelongsToPoll(ctx context.Context, pollID, optionID string) (bool, error)
	PollExists(ctx context.Context, pollID string) (bool, error)
}
