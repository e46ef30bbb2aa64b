// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package models

import "time"

// Voter state constants
const (
	StateUnvoted = "unvoted"
	StateVoted   = "voted"
)

// Transition constants
const (
	TransitionCreated   = "created"
	TransitionSwitched  = "switched"
	TransitionRetracted = "retracted"
)

// Observer message types
const (
	MessageSnapshot = "snapshot"
	MessageDelta    = "delta"
)

// Request types

type CreatePollRequest struct {
	Title   string   `json:"title"`
	Options []string `json:"options"`
}

type SubmitVoteRequest struct {
	PollOptionID string `json:"poll_option_id"`
}

// Response types

type CreatePollResponse struct {
	PollID string `json:"poll_id"`
}

type SubmitVoteResponse struct {
	SessionID string     `json:"session_id"`
	Vote      *Vote      `json:"vote,omitempty"`
	State     VoterState `json:"state"`
}

type GetPollResponse struct {
	Poll PollWithOptions `json:"poll"`
	Seq  uint64          `json:"seq"`
}

// Domain types

type Poll struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
}

type Option struct {
	ID       string `json:"id"`
	PollID   string `json:"poll_id"`
	Title    string `json:"title"`
	Position int    `json:"position"`
	Votes    int64  `json:"votes"`
}

type PollWithOptions struct {
	Poll    `json:"poll"`
	Options []Option `json:"options"`
}

// Vote is one voter's active choice on a poll.
// At most one exists per (VoterID, PollID).
type Vote struct {
	ID        string    `json:"id"`
	VoterID   string    `json:"-"` // Never expose in JSON
	PollID    string    `json:"poll_id"`
	OptionID  string    `json:"option_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// VoterState is where a voter stands on a poll after a transition.
type VoterState struct {
	State            string `json:"state"`
	OptionID         string `json:"option_id,omitempty"`
	PreviousOptionID string `json:"previous_option_id,omitempty"`
	Transition       string `json:"transition"`
}

// DeltaEvent is one option's new count after a tally change.
// Seq increases by one for every event published on a poll.
type DeltaEvent struct {
	PollID   string `json:"poll_id"`
	OptionID string `json:"option_id"`
	Votes    int64  `json:"votes"`
	Seq      uint64 `json:"seq"`
}

// TallySnapshot is the full tally of a poll. Seq is the sequence number of the
// last DeltaEvent reflected in Counts.
type TallySnapshot struct {
	PollID string           `json:"poll_id"`
	Counts map[string]int64 `json:"counts"`
	Seq    uint64           `json:"seq"`
}

// ObserverMessage is what observer sessions write to the wire.
type ObserverMessage struct {
	Type     string           `json:"type"`
	PollID   string           `json:"poll_id"`
	OptionID string           `json:"option_id,omitempty"`
	Votes    int64            `json:"votes"`
	Counts   map[string]int64 `json:"counts,omitempty"`
	Seq      uint64           `json:"seq"`
}

// SnapshotMessage wraps a snapshot for the wire.
func SnapshotMessage(s TallySnapshot) ObserverMessage {
	counts := s.Counts
	if counts == nil {
		counts = map[string]int64{}
	}
	return ObserverMessage{
		Type:   MessageSnapshot,
		PollID: s.PollID,
		Counts: counts,
		Seq:    s.Seq,
	}
}

// DeltaMessage wraps a delta for the wire.
func DeltaMessage(e DeltaEvent) ObserverMessage {
	return ObserverMessage{
		Type:     MessageDelta,
		PollID:   e.PollID,
		OptionID: e.OptionID,
		Votes:    e.Votes,
		Seq:      e.Seq,
	}
}

// Error response

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
