// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package handlers contains HTTP request handlers for the livepoll API.

# Handler Types

  - PollHandler: poll creation and lookup with current counts
  - VotingHandler: vote submission, switching and retraction
  - ResultsHandler: live results over websocket or Server-Sent Events

Handlers are thin. They validate ids as UUIDs, resolve the voter session
and translate engine errors to status codes:

	engine.ErrInvalidInput  → 400
	engine.ErrNotFound      → 404
	engine.ErrNoActiveVote  → 404
	engine.ErrDuplicateVote → 409
	engine.ErrTallyUpdate   → 503 with Retry-After: 1

# Voter Sessions

A voter is identified by the signed sessionId cookie. The first vote from a
browser mints a token and sets the cookie (HttpOnly, path /, 30 days).
Cookies that fail verification are ignored.

# Live Results

	GET /polls/{pollID}/results

With an Upgrade: websocket header the connection is upgraded and each message
is a JSON text frame. With Accept: text/event-stream the response is an event
stream whose event name is the message type. Otherwise the current snapshot
is returned as JSON.

Streams start with a snapshot, then one delta per count change. A client that
falls too far behind is sent a fresh snapshot.
*/
package handlers
