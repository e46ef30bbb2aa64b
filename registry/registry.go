// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/danielhkuo/livepoll/models"
)

var (
	ErrPollNotFound   = errors.New("poll not found")
	ErrInvalidPoll    = errors.New("invalid poll")
	ErrTooFewOptions  = errors.New("poll must have at least 2 options")
	ErrDuplicateTitle = errors.New("option titles must be unique")
)

const (
	MinOptions = 2
	MaxOptions = 50

	DefaultCacheSize = 4096
)

// Registry resolves polls and their options.
type Registry struct {
	db     *sql.DB
	logger *slog.Logger
	// option id -> poll id; options never move between polls
	owners *lru.Cache[string, string]
}

func New(db *sql.DB, logger *slog.Logger, cacheSize int) (*Registry, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	owners, err := lru.New[string, string](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create option cache: %w", err)
	}
	return &Registry{db: db, logger: logger, owners: owners}, nil
}

// CreatePoll inserts a poll and its options in one transaction.
func (r *Registry) CreatePoll(ctx context.Context, title string, options []string) (models.PollWithOptions, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return models.PollWithOptions{}, fmt.Errorf("%w: title is required", ErrInvalidPoll)
	}
	if len(options) < MinOptions {
		return models.PollWithOptions{}, ErrTooFewOptions
	}
	if len(options) > MaxOptions {
		return models.PollWithOptions{}, fmt.Errorf("%w: at most %d options", ErrInvalidPoll, MaxOptions)
	}

	labels := make([]string, 0, len(options))
	seen := make(map[string]bool, len(options))
	for i, o := range options {
		o = strings.TrimSpace(o)
		if o == "" {
			return models.PollWithOptions{}, fmt.Errorf("%w: option %d is empty", ErrInvalidPoll, i)
		}
		if seen[o] {
			return models.PollWithOptions{}, ErrDuplicateTitle
		}
		seen[o] = true
		labels = append(labels, o)
	}

	poll := models.PollWithOptions{
		Poll: models.Poll{
			ID:        uuid.NewString(),
			Title:     title,
			CreatedAt: time.Now().UTC(),
		},
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return models.PollWithOptions{}, r.logError("failed to begin transaction", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO poll (id, title, created_at)
		VALUES ($1, $2, $3)
	`, poll.ID, poll.Title, poll.CreatedAt)
	if err != nil {
		return models.PollWithOptions{}, r.logError("failed to insert poll", err)
	}

	for i, label := range labels {
		opt := models.Option{
			ID:       uuid.NewString(),
			PollID:   poll.ID,
			Title:    label,
			Position: i,
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO poll_option (id, poll_id, title, position)
			VALUES ($1, $2, $3, $4)
		`, opt.ID, opt.PollID, opt.Title, opt.Position)
		if err != nil {
			return models.PollWithOptions{}, r.logError("failed to insert option", err, "poll_id", poll.ID)
		}
		poll.Options = append(poll.Options, opt)
	}

	if err := tx.Commit(); err != nil {
		return models.PollWithOptions{}, r.logError("failed to commit poll", err, "poll_id", poll.ID)
	}

	for _, opt := range poll.Options {
		r.owners.Add(opt.ID, poll.ID)
	}

	r.logger.Info("poll created", "poll_id", poll.ID, "options", len(poll.Options))
	return poll, nil
}

// GetPoll returns a poll with its options ordered by position.
// Votes are left at zero; callers fill them from the tally.
func (r *Registry) GetPoll(ctx context.Context, pollID string) (models.PollWithOptions, error) {
	var poll models.PollWithOptions
	err := r.db.QueryRowContext(ctx, `
		SELECT id, title, created_at FROM poll WHERE id = $1
	`, pollID).Scan(&poll.ID, &poll.Title, &poll.CreatedAt)
	if err == sql.ErrNoRows {
		return models.PollWithOptions{}, ErrPollNotFound
	}
	if err != nil {
		return models.PollWithOptions{}, r.logError("failed to query poll", err, "poll_id", pollID)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, poll_id, title, position
		FROM poll_option
		WHERE poll_id = $1
		ORDER BY position
	`, pollID)
	if err != nil {
		return models.PollWithOptions{}, r.logError("failed to query options", err, "poll_id", pollID)
	}
	defer rows.Close()

	for rows.Next() {
		var opt models.Option
		if err := rows.Scan(&opt.ID, &opt.PollID, &opt.Title, &opt.Position); err != nil {
			return models.PollWithOptions{}, r.logError("failed to scan option", err, "poll_id", pollID)
		}
		poll.Options = append(poll.Options, opt)
		r.owners.Add(opt.ID, pollID)
	}
	if err := rows.Err(); err != nil {
		return models.PollWithOptions{}, r.logError("failed to iterate options", err, "poll_id", pollID)
	}

	return poll, nil
}

// OptionBelongsToPoll reports whether optionID is an option of pollID.
func (r *Registry) OptionBelongsToPoll(ctx context.Context, pollID, optionID string) (bool, error) {
	if owner, ok := r.owners.Get(optionID); ok {
		return owner == pollID, nil
	}

	var owner string
	err := r.db.QueryRowContext(ctx, `
		SELECT poll_id FROM poll_option WHERE id = $1
	`, optionID).Scan(&owner)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, r.logError("failed to query option", err, "option_id", optionID)
	}

	r.owners.Add(optionID, owner)
	return owner == pollID, nil
}

func (r *Registry) PollExists(ctx context.Context, pollID string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM poll WHERE id = $1)
	`, pollID).Scan(&exists)
	if err != nil {
		return false, r.logError("failed to query poll", err, "poll_id", pollID)
	}
	return exists, nil
}

// ListPollIDs returns every poll id, oldest first.
func (r *Registry) ListPollIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id FROM poll ORDER BY created_at, id`)
	if err != nil {
		return nil, r.logError("failed to list polls", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, r.logError("failed to scan poll id", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, r.logError("failed to iterate polls", err)
	}
	return ids, nil
}

func (r *Registry) logError(msg string, err error, attrs ...any) error {
	r.logger.Error(msg, append(attrs, "error", err)...)
	return fmt.Errorf("%s: %w", msg, err)
}
