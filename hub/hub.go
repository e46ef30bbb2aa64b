// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package hub

import (
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/danielhkuo/livepoll/metrics"
	"github.com/danielhkuo/livepoll/models"
)

var ErrClosed = errors.New("hub closed")

const DefaultBuffer = 64

type Options struct {
	// GracePeriod is how long a topic with no subscribers is kept.
	// Zero tears it down as soon as the last subscriber leaves.
	GracePeriod time.Duration
	// Buffer is the per-subscriber channel capacity.
	Buffer  int
	Logger  *slog.Logger
	Metrics *metrics.VoteMetrics
}

// Hub fans delta events out to the subscribers of each poll.
type Hub struct {
	mu     sync.RWMutex
	polls  map[string]*topic
	closed bool

	grace   time.Duration
	buffer  int
	logger  *slog.Logger
	metrics *metrics.VoteMetrics
}

type topic struct {
	pollID  string
	mu      sync.Mutex
	subs    map[*Subscription]struct{}
	timer   *time.Timer
	gen     uint64
	removed bool
}

// Subscription is one observer's view of a poll topic.
// Events is closed when the subscription ends for any reason.
type Subscription struct {
	pollID string
	events chan models.DeltaEvent
	lagged atomic.Bool
	topic  *topic
	hub    *Hub
}

func New(opts Options) *Hub {
	if opts.Buffer <= 0 {
		opts.Buffer = DefaultBuffer
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NopVoteMetrics()
	}
	return &Hub{
		polls:   make(map[string]*topic),
		grace:   opts.GracePeriod,
		buffer:  opts.Buffer,
		logger:  opts.Logger,
		metrics: opts.Metrics,
	}
}

// Subscribe registers a new subscriber on the poll's topic, creating the
// topic if needed. Only events published after Subscribe returns are
// delivered.
func (h *Hub) Subscribe(pollID string) (*Subscription, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, ErrClosed
	}

	t, ok := h.polls[pollID]
	if !ok {
		t = &topic{pollID: pollID, subs: make(map[*Subscription]struct{})}
		h.polls[pollID] = t
	}

	sub := &Subscription{
		pollID: pollID,
		events: make(chan models.DeltaEvent, h.buffer),
		topic:  t,
		hub:    h,
	}

	t.mu.Lock()
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.gen++
	t.subs[sub] = struct{}{}
	t.mu.Unlock()

	h.metrics.Observers.Add(1)
	return sub, nil
}

// Publish delivers ev to every current subscriber of the poll and returns
// how many received it. It never blocks: a subscriber whose buffer is full
// is dropped and marked lagged.
func (h *Hub) Publish(pollID string, ev models.DeltaEvent) int {
	for {
		h.mu.RLock()
		t, ok := h.polls[pollID]
		h.mu.RUnlock()
		if !ok {
			return 0
		}

		delivered, idle, gen, live := t.publish(h, ev)
		if !live {
			// Torn down between lookup and lock; look again.
			continue
		}
		if idle {
			h.scheduleTeardown(t, gen)
		}
		return delivered
	}
}

func (t *topic) publish(h *Hub, ev models.DeltaEvent) (delivered int, idle bool, gen uint64, live bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.removed {
		return 0, false, 0, false
	}

	lagged := 0
	for sub := range t.subs {
		select {
		case sub.events <- ev:
			delivered++
		default:
			sub.lagged.Store(true)
			t.drop(h, sub)
			lagged++
		}
	}

	if lagged > 0 {
		h.metrics.LaggedSubscribers.Add(float64(lagged))
		h.logger.Warn("dropped lagging subscribers", "poll_id", t.pollID, "count", lagged)
		if len(t.subs) == 0 {
			t.gen++
			return delivered, true, t.gen, true
		}
	}
	return delivered, false, 0, true
}

// drop must be called with t.mu held.
func (t *topic) drop(h *Hub, sub *Subscription) {
	if _, ok := t.subs[sub]; !ok {
		return
	}
	delete(t.subs, sub)
	close(sub.events)
	h.metrics.Observers.Add(-1)
}

func (h *Hub) unsubscribe(sub *Subscription) {
	t := sub.topic

	t.mu.Lock()
	if _, ok := t.subs[sub]; !ok {
		t.mu.Unlock()
		return
	}
	t.drop(h, sub)
	idle := len(t.subs) == 0
	if idle {
		t.gen++
	}
	gen := t.gen
	t.mu.Unlock()

	if idle {
		h.scheduleTeardown(t, gen)
	}
}

// scheduleTeardown removes the topic once it has stayed idle for the grace
// period. gen identifies the idle spell; a later Subscribe bumps it.
func (h *Hub) scheduleTeardown(t *topic, gen uint64) {
	if h.grace <= 0 {
		h.teardown(t, gen)
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.gen != gen || t.removed {
		return
	}
	if t.timer != nil {
		t.timer.Stop()
	}
	t.timer = time.AfterFunc(h.grace, func() { h.teardown(t, gen) })
}

func (h *Hub) teardown(t *topic, gen uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.removed || t.gen != gen || len(t.subs) > 0 {
		return
	}
	t.removed = true
	t.timer = nil
	if h.polls[t.pollID] == t {
		delete(h.polls, t.pollID)
	}
	h.logger.Debug("poll topic torn down", "poll_id", t.pollID)
}

// Close ends every subscription. Later Subscribe calls return ErrClosed
// and Publish becomes a no-op.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true

	for pollID, t := range h.polls {
		t.mu.Lock()
		if t.timer != nil {
			t.timer.Stop()
			t.timer = nil
		}
		for sub := range t.subs {
			t.drop(h, sub)
		}
		t.removed = true
		t.mu.Unlock()
		delete(h.polls, pollID)
	}
}

// Topics returns the number of live poll topics.
func (h *Hub) Topics() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.polls)
}

// Subscribers returns the number of subscribers on a poll.
func (h *Hub) Subscribers(pollID string) int {
	h.mu.RLock()
	t, ok := h.polls[pollID]
	h.mu.RUnlock()
	if !ok {
		return 0
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.subs)
}

func (s *Subscription) PollID() string { return s.pollID }

// Events yields deltas in publish order.
func (s *Subscription) Events() <-chan models.DeltaEvent { return s.events }

// Lagged reports whether the subscription was dropped for falling behind.
// Only meaningful once Events is closed.
func (s *Subscription) Lagged() bool { return s.lagged.Load() }

// Close unsubscribes. Safe to call more than once.
func (s *Subscription) Close() { s.hub.unsubscribe(s) }
