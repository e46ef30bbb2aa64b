// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package engine owns the vote state machine of a voter on a poll:

	Unvoted --SubmitVote(o)--> VotedFor(o)
	VotedFor(o) --SubmitVote(o')--> VotedFor(o')   (o' != o)
	VotedFor(o) --SubmitVote(o)--> ErrDuplicateVote
	VotedFor(o) --RetractVote--> Unvoted

Every transition writes the ledger first, then the tally, then publishes one
delta per touched option to the hub. A switch publishes the old option's
decrement before the new option's increment.

# Concurrency

There is no global lock. Each poll maps onto a lock stripe holding two locks:

  - gate (RWMutex): votes hold it shared for their whole mutation;
    Reconcile holds it exclusively so it sees a quiet ledger.
  - emit (Mutex): held around each tally change and its publish, and by
    OpenPollObserver around subscribe plus snapshot.

Because emit orders publishes, counts reach observers in the order the
counters took them, and each poll's deltas carry a gap-free sequence number.
A snapshot records the last sequence number it reflects.

At most one active vote per voter and poll is guaranteed by the ledger's
unique constraint and conditional updates, not by these locks.

# Failures

A tally increment is retried once. Any failed attempt marks the poll dirty;
if the retry fails too, SubmitVote returns ErrTallyUpdate even though the vote
is recorded. ReconcileDirty rebuilds dirty polls from the ledger and publishes
corrective deltas.
*/
package engine
