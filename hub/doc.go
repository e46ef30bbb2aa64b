// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package hub is the in-process broadcast hub for tally delta events.

Each poll has its own topic with its own lock, so publishing to one poll never
waits on another. Topics appear on first Subscribe and are removed once they
have had no subscribers for the grace period:

	h := hub.New(hub.Options{GracePeriod: 30 * time.Second, Buffer: 64})

	sub, err := h.Subscribe(pollID)
	defer sub.Close()
	for ev := range sub.Events() {
		// ...
	}
	if sub.Lagged() {
		// dropped for falling behind; resync from a snapshot
	}

Publish never blocks. A subscriber whose buffer is full is removed and its
channel closed with Lagged set, so it can tell a gap happened. Late
subscribers get no replay; pair Subscribe with a tally snapshot instead.
*/
package hub
