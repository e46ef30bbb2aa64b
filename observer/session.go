// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package observer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/danielhkuo/livepoll/engine"
	"github.com/danielhkuo/livepoll/hub"
	"github.com/danielhkuo/livepoll/models"
)

// Sink writes observer messages to one client.
type Sink interface {
	Send(msg models.ObserverMessage) error
}

// Opener starts an observation; *engine.Engine implements it.
type Opener interface {
	OpenPollObserver(ctx context.Context, pollID string) (engine.Observation, error)
}

// Session streams one poll's tally to one client: a snapshot first, then
// every delta. When the client falls behind and the hub drops it, the session
// opens a new observation and starts over with a fresh snapshot.
type Session struct {
	opener Opener
	pollID string
	sink   Sink
	logger *slog.Logger

	resyncs int
}

func NewSession(opener Opener, pollID string, sink Sink, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		opener: opener,
		pollID: pollID,
		sink:   sink,
		logger: logger.With("poll_id", pollID),
	}
}

// Run takes ownership of obs and blocks until ctx is done, the hub shuts
// down or the sink fails. Only sink and reopen failures are returned.
func (s *Session) Run(ctx context.Context, obs engine.Observation) error {
	for {
		lagged, err := s.stream(ctx, obs)
		obs.Subscription.Close()
		if err != nil || !lagged {
			return err
		}

		s.resyncs++
		s.logger.Warn("observer lagged, resyncing", "resyncs", s.resyncs)

		obs, err = s.opener.OpenPollObserver(ctx, s.pollID)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("failed to reopen observation: %w", err)
		}
	}
}

// Resyncs returns how many times the session recovered from lag.
func (s *Session) Resyncs() int { return s.resyncs }

func (s *Session) stream(ctx context.Context, obs engine.Observation) (lagged bool, err error) {
	if err := s.sink.Send(models.SnapshotMessage(obs.Snapshot)); err != nil {
		return false, fmt.Errorf("failed to send snapshot: %w", err)
	}
	return s.forward(ctx, obs.Subscription)
}

func (s *Session) forward(ctx context.Context, sub *hub.Subscription) (bool, error) {
	for {
		select {
		case <-ctx.Done():
			return false, nil
		case ev, ok := <-sub.Events():
			if !ok {
				return sub.Lagged(), nil
			}
			if err := s.sink.Send(models.DeltaMessage(ev)); err != nil {
				return false, fmt.Errorf("failed to send delta: %w", err)
			}
		}
	}
}
