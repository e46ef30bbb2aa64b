// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package observer streams a poll's live tally to one client.

A Session sends a snapshot, then forwards each delta until the client leaves:

	obs, err := eng.OpenPollObserver(ctx, pollID)
	sink, err := observer.NewSSESink(w)
	err = observer.NewSession(eng, pollID, sink, logger).Run(ctx, obs)

Messages are JSON:

	{"type":"snapshot","poll_id":"...","counts":{"<option>":3},"seq":12,"votes":0}
	{"type":"delta","poll_id":"...","option_id":"<option>","votes":4,"seq":13}

Deltas carry the option's new count, not an increment, and seq grows by one
per delta on a poll. A client that sees a gap in seq can reconnect; a
session that the hub dropped for lagging sends a fresh snapshot on its own.

Two sinks are provided: SSESink for text/event-stream responses and
WebSocketSink for golang.org/x/net/websocket connections.
*/
package observer
