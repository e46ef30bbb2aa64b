// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package metrics

import (
	"github.com/go-kit/kit/metrics"
	"github.com/go-kit/kit/metrics/discard"
	prometheus "github.com/go-kit/kit/metrics/prometheus"
	stdprometheus "github.com/prometheus/client_golang/prometheus"
)

type VoteMetrics struct {
	Votes           metrics.Counter
	DeltasPublished metrics.Counter
	Reconciliations metrics.Counter

	Observers         metrics.Gauge
	LaggedSubscribers metrics.Counter
}

func (m *VoteMetrics) AddVote(outcome string) {
	m.Votes.With("outcome", outcome).Add(1)
}

func (m *VoteMetrics) AddReconcile(result string) {
	m.Reconciliations.With("result", result).Add(1)
}

func PromVoteMetrics() *VoteMetrics {
	return &VoteMetrics{
		Votes: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: VoteSubsystem,
			Name:      "votes_total",
			Help:      "Vote submissions by outcome.",
		}, []string{"outcome"}),
		DeltasPublished: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: VoteSubsystem,
			Name:      "deltas_published_total",
			Help:      "Tally delta events handed to the hub.",
		}, []string{}),
		Reconciliations: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: VoteSubsystem,
			Name:      "reconciliations_total",
			Help:      "Tally reconciliations by result.",
		}, []string{"result"}),
		Observers: prometheus.NewGaugeFrom(stdprometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: HubSubsystem,
			Name:      "observers",
			Help:      "Number of live observer subscriptions.",
		}, []string{}),
		LaggedSubscribers: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: HubSubsystem,
			Name:      "lagged_subscribers_total",
			Help:      "Subscriptions dropped because their buffer was full.",
		}, []string{}),
	}
}

func NopVoteMetrics() *VoteMetrics {
	return &VoteMetrics{
		Votes:           discard.NewCounter(),
		DeltasPublished: discard.NewCounter(),
		Reconciliations: discard.NewCounter(),

		Observers:         discard.NewGauge(),
		LaggedSubscribers: discard.NewCounter(),
	}
}
