// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package models defines request, response, and domain types shared across
packages.

# Request Types

  - CreatePollRequest: title, options
  - SubmitVoteRequest: poll_option_id

# Response Types

  - CreatePollResponse: poll_id
  - SubmitVoteResponse: session_id, vote, state
  - GetPollResponse: poll with per-option scores, seq
  - ErrorResponse: error, message

# Domain Types

  - Poll, Option, PollWithOptions: registry records
  - Vote: one active vote per voter per poll
  - VoterState: result of a vote transition
  - DeltaEvent: one option's new count, sequenced per poll
  - TallySnapshot: all counts of a poll plus the last applied seq
  - ObserverMessage: wire format for observer sessions

# Observer Messages

Sessions send one snapshot, then deltas:

	{"type":"snapshot","poll_id":"...","counts":{"opt-a":3},"seq":12}
	{"type":"delta","poll_id":"...","option_id":"opt-a","votes":4,"seq":13}

A client that sees a delta whose seq is not exactly one past the previous
message should discard its state and reconnect.
*/
package models
