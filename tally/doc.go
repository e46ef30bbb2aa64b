// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package tally holds the derived per-option vote counters.

Both stores offer the same three operations:

	n, err := store.Increment(ctx, pollID, optionID, +1)  // atomic add-and-fetch
	counts, err := store.Snapshot(ctx, pollID)           // option id -> count
	err := store.Reset(ctx, pollID, counts)              // replace all counters

MemoryStore is the default. Its counters are lost on restart and rebuilt
from the ledger at startup.

RedisStore keeps a sorted set per poll and survives restarts:

	client, err := tally.DialRedis("redis://localhost:6379/0")
	store := tally.NewRedisStore(client, tally.DefaultKeyPrefix)

Stores never check that counts stay non-negative. Decrements are only issued
for options that previously received the matching increment.
*/
package tally
