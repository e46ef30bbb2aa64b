// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package ledger is the durable vote ledger: one row per (voter, poll).

Every mutation is a single SQL statement, so no partial state is ever left
behind:

	vote, err := l.CreateVote(ctx, voterID, pollID, optionID)   // INSERT
	vote, err := l.ReplaceVoteOption(ctx, vote.ID, from, to)    // conditional UPDATE
	err := l.DeleteVote(ctx, vote.ID, vote.OptionID)            // conditional DELETE

CreateVote relies on the UNIQUE (voter_id, poll_id) constraint and returns
ErrConflict when it fires. ReplaceVoteOption and DeleteVote only match a row
that still points at the option the caller last saw, and report ErrConflict
or ErrVoteNotFound otherwise, so two racing switches cannot both succeed.

Unique violations are detected for PostgreSQL (SQLSTATE 23505) and SQLite
(SQLITE_CONSTRAINT_UNIQUE).
*/
package ledger
