// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package engine

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/danielhkuo/livepoll/metrics"
)

// Reconcile rebuilds the poll's tally from the ledger.
//
// It waits for in-flight votes on the poll to finish and holds new ones off
// until it is done. Every option whose count changed gets a delta, so live
// observers converge too.
func (e *Engine) Reconcile(ctx context.Context, pollID string) error {
	lock := e.locks.get(pollID)
	lock.gate.Lock()
	defer lock.gate.Unlock()

	e.dirty.Delete(pollID)

	counts, err := e.ledger.CountVotes(ctx, pollID)
	if err != nil {
		e.markDirty(pollID)
		e.metrics.AddReconcile(metrics.ReconcileFailed)
		return fmt.Errorf("failed to count votes: %w", err)
	}

	lock.emit.Lock()
	defer lock.emit.Unlock()

	before, err := e.tally.Snapshot(ctx, pollID)
	if err != nil {
		e.markDirty(pollID)
		e.metrics.AddReconcile(metrics.ReconcileFailed)
		return fmt.Errorf("failed to read tally: %w", err)
	}

	// Tally entries outlive their last vote.
	for optionID := range before {
		if _, ok := counts[optionID]; !ok {
			counts[optionID] = 0
		}
	}

	if err := e.tally.Reset(ctx, pollID, counts); err != nil {
		e.markDirty(pollID)
		e.metrics.AddReconcile(metrics.ReconcileFailed)
		return fmt.Errorf("failed to reset tally: %w", err)
	}

	changed := diff(before, counts)
	for _, optionID := range changed {
		e.publish(pollID, optionID, counts[optionID])
	}

	if len(changed) == 0 {
		e.metrics.AddReconcile(metrics.ReconcileClean)
		return nil
	}

	e.metrics.AddReconcile(metrics.ReconcileRepaired)
	e.logger.Warn("tally reconciled",
		"poll_id", pollID,
		"changed_options", len(changed),
	)
	return nil
}

// ReconcileAll reconciles the given polls with bounded concurrency.
// Every poll is attempted; the first error is returned.
func (e *Engine) ReconcileAll(ctx context.Context, pollIDs []string) error {
	var g errgroup.Group
	g.SetLimit(e.concurrency)

	for _, pollID := range pollIDs {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := e.Reconcile(ctx, pollID); err != nil {
				e.logger.Error("reconcile failed", "poll_id", pollID, "error", err)
				return fmt.Errorf("poll %s: %w", pollID, err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// ReconcileDirty reconciles every poll marked dirty by a tally failure and
// returns how many it attempted.
func (e *Engine) ReconcileDirty(ctx context.Context) (int, error) {
	var pollIDs []string
	e.dirty.Range(func(key, _ any) bool {
		pollIDs = append(pollIDs, key.(string))
		return true
	})
	if len(pollIDs) == 0 {
		return 0, nil
	}
	return len(pollIDs), e.ReconcileAll(ctx, pollIDs)
}

// diff returns the options whose count differs, in a stable order.
// Missing entries count as zero.
func diff(before, after map[string]int64) []string {
	var changed []string
	for optionID, n := range after {
		if before[optionID] != n {
			changed = append(changed, optionID)
		}
	}
	for optionID, n := range before {
		if _, ok := after[optionID]; !ok && n != 0 {
			changed = append(changed, optionID)
		}
	}
	sort.Strings(changed)
	return changed
}
