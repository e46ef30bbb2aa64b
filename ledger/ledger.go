// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/danielhkuo/livepoll/models"
)

var (
	ErrConflict     = errors.New("vote conflict")
	ErrVoteNotFound = errors.New("vote not found")
)

// Ledger is the durable record of active votes, backed by the vote table.
type Ledger struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

func New(db *sql.DB, logger *slog.Logger) *Ledger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ledger{
		db:     db,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// GetActiveVote returns the voter's vote on the poll, if any.
func (l *Ledger) GetActiveVote(ctx context.Context, voterID, pollID string) (models.Vote, bool, error) {
	var vote models.Vote
	err := l.db.QueryRowContext(ctx, `
		SELECT id, voter_id, poll_id, option_id, created_at, updated_at
		FROM vote
		WHERE voter_id = $1 AND poll_id = $2
	`, voterID, pollID).Scan(
		&vote.ID, &vote.VoterID, &vote.PollID, &vote.OptionID,
		&vote.CreatedAt, &vote.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return models.Vote{}, false, nil
	}
	if err != nil {
		return models.Vote{}, false, l.logError("failed to query vote", err, "poll_id", pollID)
	}
	return vote, true, nil
}

// CreateVote inserts the voter's first vote on a poll.
// Returns ErrConflict if the voter already has one; the UNIQUE
// (voter_id, poll_id) constraint decides, so concurrent creates cannot both win.
func (l *Ledger) CreateVote(ctx context.Context, voterID, pollID, optionID string) (models.Vote, error) {
	now := l.now()
	vote := models.Vote{
		ID:        uuid.NewString(),
		VoterID:   voterID,
		PollID:    pollID,
		OptionID:  optionID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err := l.db.ExecContext(ctx, `
		INSERT INTO vote (id, voter_id, poll_id, option_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, vote.ID, vote.VoterID, vote.PollID, vote.OptionID, vote.CreatedAt, vote.UpdatedAt)

	if err != nil {
		if isUniqueViolation(err) {
			return models.Vote{}, ErrConflict
		}
		return models.Vote{}, l.logError("failed to insert vote", err, "poll_id", pollID, "option_id", optionID)
	}
	return vote, nil
}

// ReplaceVoteOption moves a vote from one option to another in a single
// conditional update. Returns ErrConflict if the vote no longer points at
// fromOptionID, or if from and to are the same option.
func (l *Ledger) ReplaceVoteOption(ctx context.Context, voteID, fromOptionID, toOptionID string) (models.Vote, error) {
	if fromOptionID == toOptionID {
		return models.Vote{}, ErrConflict
	}

	now := l.now()
	res, err := l.db.ExecContext(ctx, `
		UPDATE vote
		SET option_id = $1, updated_at = $2
		WHERE id = $3 AND option_id = $4
	`, toOptionID, now, voteID, fromOptionID)
	if err != nil {
		return models.Vote{}, l.logError("failed to update vote", err, "vote_id", voteID)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return models.Vote{}, l.logError("failed to read affected rows", err, "vote_id", voteID)
	}
	if n == 0 {
		return models.Vote{}, ErrConflict
	}

	var vote models.Vote
	err = l.db.QueryRowContext(ctx, `
		SELECT id, voter_id, poll_id, option_id, created_at, updated_at
		FROM vote
		WHERE id = $1
	`, voteID).Scan(
		&vote.ID, &vote.VoterID, &vote.PollID, &vote.OptionID,
		&vote.CreatedAt, &vote.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		// Retracted between the update and the read.
		return models.Vote{}, ErrConflict
	}
	if err != nil {
		return models.Vote{}, l.logError("failed to query vote", err, "vote_id", voteID)
	}
	return vote, nil
}

// DeleteVote removes a vote if it still points at optionID.
func (l *Ledger) DeleteVote(ctx context.Context, voteID, optionID string) error {
	res, err := l.db.ExecContext(ctx, `
		DELETE FROM vote WHERE id = $1 AND option_id = $2
	`, voteID, optionID)
	if err != nil {
		return l.logError("failed to delete vote", err, "vote_id", voteID)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return l.logError("failed to read affected rows", err, "vote_id", voteID)
	}
	if n == 0 {
		return ErrVoteNotFound
	}
	return nil
}

// CountVotes returns the number of votes per option of a poll.
// Options without votes are absent.
func (l *Ledger) CountVotes(ctx context.Context, pollID string) (map[string]int64, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT option_id, COUNT(*)
		FROM vote
		WHERE poll_id = $1
		GROUP BY option_id
	`, pollID)
	if err != nil {
		return nil, l.logError("failed to count votes", err, "poll_id", pollID)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var optionID string
		var n int64
		if err := rows.Scan(&optionID, &n); err != nil {
			return nil, l.logError("failed to scan vote count", err, "poll_id", pollID)
		}
		counts[optionID] = n
	}
	if err := rows.Err(); err != nil {
		return nil, l.logError("failed to iterate vote counts", err, "poll_id", pollID)
	}
	return counts, nil
}

func (l *Ledger) logError(msg string, err error, attrs ...any) error {
	l.logger.Error(msg, append(attrs, "error", err)...)
	return fmt.Errorf("%s: %w", msg, err)
}

// isUniqueViolation recognises unique constraint failures from both drivers.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return true
		case sqlite3.SQLITE_CONSTRAINT:
			// Extended codes disabled; fall back to the message.
			return strings.Contains(liteErr.Error(), "UNIQUE")
		}
	}
	return false
}
