// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/danielhkuo/livepoll/auth"
	"github.com/danielhkuo/livepoll/hub"
	"github.com/danielhkuo/livepoll/ledger"
	"github.com/danielhkuo/livepoll/metrics"
	"github.com/danielhkuo/livepoll/models"
)

const (
	DefaultReconcileConcurrency = 4

	maxRetractAttempts = 3
)

type Dependencies struct {
	Ledger   Ledger
	Tally    TallyStore
	Registry PollRegistry
	Hub      *hub.Hub
	Logger   *slog.Logger
	Metrics  *metrics.VoteMetrics

	// Stripes is the number of per-poll lock stripes.
	Stripes int
	// ReconcileConcurrency bounds how many polls ReconcileAll rebuilds at once.
	ReconcileConcurrency int
}

// Engine applies vote transitions and keeps the tally and the hub in step
// with the ledger.
type Engine struct {
	ledger   Ledger
	tally    TallyStore
	registry PollRegistry
	hub      *hub.Hub
	logger   *slog.Logger
	metrics  *metrics.VoteMetrics

	locks       *stripedLocks
	seqs        sync.Map // poll id -> *atomic.Uint64
	dirty       sync.Map // poll id -> struct{}
	concurrency int
}

// Result is the outcome of a vote transition.
type Result struct {
	Vote  *models.Vote
	State models.VoterState
}

// Observation is a consistent starting point for a live observer: the
// subscription delivers exactly the deltas after Snapshot.Seq.
type Observation struct {
	Snapshot     models.TallySnapshot
	Subscription *hub.Subscription
}

type change struct {
	optionID string
	delta    int64
}

func New(deps Dependencies) *Engine {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.NopVoteMetrics()
	}
	if deps.ReconcileConcurrency <= 0 {
		deps.ReconcileConcurrency = DefaultReconcileConcurrency
	}
	return &Engine{
		ledger:      deps.Ledger,
		tally:       deps.Tally,
		registry:    deps.Registry,
		hub:         deps.Hub,
		logger:      deps.Logger,
		metrics:     deps.Metrics,
		locks:       newStripedLocks(deps.Stripes),
		concurrency: deps.ReconcileConcurrency,
	}
}

// SubmitVote moves the voter to VotedFor(optionID).
//
// A first vote creates a ledger row and increments the option. A vote for a
// different option replaces the row and publishes the old option's decrement
// before the new option's increment. Voting again for the current option
// returns ErrDuplicateVote and changes nothing.
//
// Once validation passes the mutation runs to completion even if ctx is
// cancelled.
func (e *Engine) SubmitVote(ctx context.Context, voterID, pollID, optionID string) (Result, error) {
	if voterID == "" || pollID == "" || optionID == "" {
		return Result{}, ErrInvalidInput
	}

	ok, err := e.registry.OptionBelongsToPoll(ctx, pollID, optionID)
	if err != nil {
		return Result{}, fmt.Errorf("failed to resolve option: %w", err)
	}
	if !ok {
		e.metrics.AddVote(metrics.OutcomeNotFound)
		return Result{}, ErrNotFound
	}

	ctx = context.WithoutCancel(ctx)

	lock := e.locks.get(pollID)
	lock.gate.RLock()
	defer lock.gate.RUnlock()

	current, found, err := e.ledger.GetActiveVote(ctx, voterID, pollID)
	if err != nil {
		e.metrics.AddVote(metrics.OutcomeFailed)
		return Result{}, fmt.Errorf("failed to read active vote: %w", err)
	}

	switch {
	case !found:
		return e.createVote(ctx, lock, voterID, pollID, optionID)
	case current.OptionID == optionID:
		e.metrics.AddVote(metrics.OutcomeDuplicate)
		return Result{}, ErrDuplicateVote
	default:
		return e.switchVote(ctx, lock, current, optionID)
	}
}

func (e *Engine) createVote(ctx context.Context, lock *pollLock, voterID, pollID, optionID string) (Result, error) {
	vote, err := e.ledger.CreateVote(ctx, voterID, pollID, optionID)
	if errors.Is(err, ledger.ErrConflict) {
		e.metrics.AddVote(metrics.OutcomeDuplicate)
		return Result{}, ErrDuplicateVote
	}
	if err != nil {
		e.metrics.AddVote(metrics.OutcomeFailed)
		return Result{}, fmt.Errorf("failed to record vote: %w", err)
	}

	res := Result{
		Vote: &vote,
		State: models.VoterState{
			State:      models.StateVoted,
			OptionID:   optionID,
			Transition: models.TransitionCreated,
		},
	}

	if err := e.apply(ctx, lock, pollID, change{optionID, +1}); err != nil {
		return res, err
	}

	e.metrics.AddVote(metrics.OutcomeCreated)
	e.logger.Info("vote recorded",
		"poll_id", pollID,
		"option_id", optionID,
		"voter_id", auth.ShortToken(voterID),
	)
	return res, nil
}

func (e *Engine) switchVote(ctx context.Context, lock *pollLock, current models.Vote, optionID string) (Result, error) {
	vote, err := e.ledger.ReplaceVoteOption(ctx, current.ID, current.OptionID, optionID)
	if errors.Is(err, ledger.ErrConflict) {
		// A concurrent switch or retract got there first.
		e.metrics.AddVote(metrics.OutcomeDuplicate)
		return Result{}, ErrDuplicateVote
	}
	if err != nil {
		e.metrics.AddVote(metrics.OutcomeFailed)
		return Result{}, fmt.Errorf("failed to switch vote: %w", err)
	}

	res := Result{
		Vote: &vote,
		State: models.VoterState{
			State:            models.StateVoted,
			OptionID:         optionID,
			PreviousOptionID: current.OptionID,
			Transition:       models.TransitionSwitched,
		},
	}

	err = e.apply(ctx, lock, current.PollID,
		change{current.OptionID, -1},
		change{optionID, +1},
	)
	if err != nil {
		return res, err
	}

	e.metrics.AddVote(metrics.OutcomeSwitched)
	e.logger.Info("vote switched",
		"poll_id", current.PollID,
		"from_option_id", current.OptionID,
		"option_id", optionID,
		"voter_id", auth.ShortToken(current.VoterID),
	)
	return res, nil
}

// RetractVote moves the voter back to Unvoted.
func (e *Engine) RetractVote(ctx context.Context, voterID, pollID string) (Result, error) {
	if voterID == "" || pollID == "" {
		return Result{}, ErrInvalidInput
	}

	exists, err := e.registry.PollExists(ctx, pollID)
	if err != nil {
		return Result{}, fmt.Errorf("failed to resolve poll: %w", err)
	}
	if !exists {
		return Result{}, ErrNotFound
	}

	ctx = context.WithoutCancel(ctx)

	lock := e.locks.get(pollID)
	lock.gate.RLock()
	defer lock.gate.RUnlock()

	for attempt := 0; attempt < maxRetractAttempts; attempt++ {
		current, found, err := e.ledger.GetActiveVote(ctx, voterID, pollID)
		if err != nil {
			return Result{}, fmt.Errorf("failed to read active vote: %w", err)
		}
		if !found {
			return Result{}, ErrNoActiveVote
		}

		err = e.ledger.DeleteVote(ctx, current.ID, current.OptionID)
		if errors.Is(err, ledger.ErrVoteNotFound) {
			// Switched or retracted concurrently; look again.
			continue
		}
		if err != nil {
			return Result{}, fmt.Errorf("failed to retract vote: %w", err)
		}

		res := Result{
			State: models.VoterState{
				State:            models.StateUnvoted,
				PreviousOptionID: current.OptionID,
				Transition:       models.TransitionRetracted,
			},
		}
		if err := e.apply(ctx, lock, pollID, change{current.OptionID, -1}); err != nil {
			return res, err
		}

		e.metrics.AddVote(metrics.OutcomeRetracted)
		e.logger.Info("vote retracted",
			"poll_id", pollID,
			"option_id", current.OptionID,
			"voter_id", auth.ShortToken(voterID),
		)
		return res, nil
	}

	return Result{}, ErrNoActiveVote
}

// apply updates the tally and publishes one delta per change, in order.
// The ledger has already been written; on failure the poll is marked dirty
// and ErrTallyUpdate is returned.
func (e *Engine) apply(ctx context.Context, lock *pollLock, pollID string, changes ...change) error {
	lock.emit.Lock()
	defer lock.emit.Unlock()

	for _, c := range changes {
		n, err := e.increment(ctx, pollID, c)
		if err != nil {
			e.metrics.AddVote(metrics.OutcomeFailed)
			e.logger.Error("tally update failed, poll queued for reconciliation",
				"poll_id", pollID,
				"option_id", c.optionID,
				"delta", c.delta,
				"error", err,
			)
			return fmt.Errorf("%w: %v", ErrTallyUpdate, err)
		}
		e.publish(pollID, c.optionID, n)
	}
	return nil
}

// increment retries once. Any failed attempt marks the poll dirty, since a
// failed call may still have been applied by the store.
func (e *Engine) increment(ctx context.Context, pollID string, c change) (int64, error) {
	n, err := e.tally.Increment(ctx, pollID, c.optionID, c.delta)
	if err == nil {
		return n, nil
	}
	e.markDirty(pollID)

	n, err = e.tally.Increment(ctx, pollID, c.optionID, c.delta)
	if err != nil {
		return 0, err
	}
	return n, nil
}

// publish must be called with the poll's emit lock held.
func (e *Engine) publish(pollID, optionID string, votes int64) {
	ev := models.DeltaEvent{
		PollID:   pollID,
		OptionID: optionID,
		Votes:    votes,
		Seq:      e.seq(pollID).Add(1),
	}
	e.hub.Publish(pollID, ev)
	e.metrics.DeltasPublished.Add(1)
}

// OpenPollObserver subscribes to the poll and reads its tally in one step
// with respect to that poll's publishes, so the subscription starts exactly
// after the snapshot.
func (e *Engine) OpenPollObserver(ctx context.Context, pollID string) (Observation, error) {
	if err := e.requirePoll(ctx, pollID); err != nil {
		return Observation{}, err
	}

	lock := e.locks.get(pollID)
	lock.emit.Lock()
	defer lock.emit.Unlock()

	sub, err := e.hub.Subscribe(pollID)
	if err != nil {
		return Observation{}, fmt.Errorf("failed to subscribe: %w", err)
	}

	snap, err := e.snapshot(ctx, pollID)
	if err != nil {
		sub.Close()
		return Observation{}, err
	}

	return Observation{Snapshot: snap, Subscription: sub}, nil
}

// Tally returns the current counts of a poll.
func (e *Engine) Tally(ctx context.Context, pollID string) (models.TallySnapshot, error) {
	if err := e.requirePoll(ctx, pollID); err != nil {
		return models.TallySnapshot{}, err
	}

	lock := e.locks.get(pollID)
	lock.emit.Lock()
	defer lock.emit.Unlock()

	return e.snapshot(ctx, pollID)
}

// snapshot must be called with the poll's emit lock held.
func (e *Engine) snapshot(ctx context.Context, pollID string) (models.TallySnapshot, error) {
	counts, err := e.tally.Snapshot(ctx, pollID)
	if err != nil {
		return models.TallySnapshot{}, fmt.Errorf("failed to read tally: %w", err)
	}
	return models.TallySnapshot{
		PollID: pollID,
		Counts: counts,
		Seq:    e.seq(pollID).Load(),
	}, nil
}

func (e *Engine) requirePoll(ctx context.Context, pollID string) error {
	if pollID == "" {
		return ErrInvalidInput
	}
	exists, err := e.registry.PollExists(ctx, pollID)
	if err != nil {
		return fmt.Errorf("failed to resolve poll: %w", err)
	}
	if !exists {
		return ErrNotFound
	}
	return nil
}

func (e *Engine) seq(pollID string) *atomic.Uint64 {
	if v, ok := e.seqs.Load(pollID); ok {
		return v.(*atomic.Uint64)
	}
	v, _ := e.seqs.LoadOrStore(pollID, new(atomic.Uint64))
	return v.(*atomic.Uint64)
}

func (e *Engine) markDirty(pollID string) {
	e.dirty.Store(pollID, struct{}{})
}

// Dirty reports whether the poll is waiting for reconciliation.
func (e *Engine) Dirty(pollID string) bool {
	_, ok := e.dirty.Load(pollID)
	return ok
}
