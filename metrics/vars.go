// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package metrics

const (
	Namespace     = "livepoll"
	VoteSubsystem = "vote"
	HubSubsystem  = "hub"
	APISubsystem  = "api"
)

// Label values for VoteMetrics.Votes
const (
	OutcomeCreated   = "created"
	OutcomeSwitched  = "switched"
	OutcomeRetracted = "retracted"
	OutcomeDuplicate = "duplicate"
	OutcomeNotFound  = "not_found"
	OutcomeFailed    = "failed"
)

// Label values for VoteMetrics.Reconciliations
const (
	ReconcileClean    = "clean"
	ReconcileRepaired = "repaired"
	ReconcileFailed   = "failed"
)
