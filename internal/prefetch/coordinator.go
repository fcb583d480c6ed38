// Cinifob - Movie Discovery and Watch Tracking
// Copyright 2026 hishamktd
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hishamktd/cinifob

// Package prefetch debounces speculative movie detail fetches triggered by
// clients hovering over movie cards, and runs the background worker that
// performs them.
//
// A Coordinator tracks at most one pending timer. Every new request replaces
// whatever was pending (last write wins), so a burst of hovers collapses to a
// single dispatch for the card the pointer finally rests on:
//
//	c := prefetch.NewCoordinator(worker, prefetch.Options{})
//	c.RequestSinglePrefetch(550, models.PriorityHigh)
//	c.RequestSinglePrefetch(551, models.PriorityHigh) // 550 is dropped
//	// ~300ms later: worker.Prefetch(551, high)
package prefetch

import (
	"sync"
	"time"

	"github.com/hishamktd/cinifob/internal/metrics"
	"github.com/hishamktd/cinifob/internal/models"
)

// DefaultDelay is the quiet period before a scheduled prefetch dispatches.
const DefaultDelay = 300 * time.Millisecond

// Worker performs prefetches. Calls are fire-and-forget: the coordinator
// never observes the outcome.
type Worker interface {
	Prefetch(id int, priority models.Priority)
	PrefetchBatch(ids []int, priority models.Priority)
}

// Options configures a Coordinator. Zero values select defaults.
type Options struct {
	// Delay before a scheduled request dispatches. Non-positive means DefaultDelay.
	Delay time.Duration

	// BatchPriority is used for RequestBatchPrefetch dispatches. Defaults to low.
	BatchPriority models.Priority

	// Clock defaults to RealClock.
	Clock Clock
}

func (o Options) withDefaults() Options {
	if o.Delay <= 0 {
		o.Delay = DefaultDelay
	}
	if !o.BatchPriority.Valid() {
		o.BatchPriority = models.PriorityLow
	}
	if o.Clock == nil {
		o.Clock = RealClock{}
	}
	return o
}

// Coordinator debounces prefetch requests for one client.
type Coordinator struct {
	worker Worker
	opts   Options

	mu       sync.Mutex
	timer    Timer
	gen      uint64
	lastUsed time.Time
}

// NewCoordinator returns a Coordinator dispatching to worker.
func NewCoordinator(worker Worker, opts Options) *Coordinator {
	opts = opts.withDefaults()
	return &Coordinator{
		worker:   worker,
		opts:     opts,
		lastUsed: opts.Clock.Now(),
	}
}

// Delay returns the effective debounce delay.
func (c *Coordinator) Delay() time.Duration {
	return c.opts.Delay
}

// RequestSinglePrefetch schedules a prefetch of id after the delay,
// replacing any pending request.
func (c *Coordinator) RequestSinglePrefetch(id int, priority models.Priority) {
	metrics.PrefetchRequests.WithLabelValues("single").Inc()
	c.schedule(func() {
		c.worker.Prefetch(id, priority)
		metrics.PrefetchDispatched.WithLabelValues("single").Inc()
	})
}

// CancelPendingPrefetch drops the pending request, if any.
func (c *Coordinator) CancelPendingPrefetch() {
	c.cancel()
}

// cancel drops the pending request and reports whether there was one.
func (c *Coordinator) cancel() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastUsed = c.opts.Clock.Now()

	if c.timer == nil {
		return false
	}
	c.timer.Stop()
	c.timer = nil
	c.gen++
	metrics.PrefetchCancelled.Inc()
	return true
}

// RequestBatchPrefetch prefetches all ids. With immediate set the worker is
// called before this method returns and any pending timer is left alone.
// Otherwise the batch replaces the pending request and fires after the delay.
// An empty batch is ignored.
func (c *Coordinator) RequestBatchPrefetch(ids []int, immediate bool) {
	if len(ids) == 0 {
		return
	}
	batch := make([]int, len(ids))
	copy(batch, ids)
	priority := c.opts.BatchPriority

	if immediate {
		metrics.PrefetchRequests.WithLabelValues("batch_immediate").Inc()
		c.mu.Lock()
		c.lastUsed = c.opts.Clock.Now()
		c.mu.Unlock()

		c.worker.PrefetchBatch(batch, priority)
		metrics.PrefetchDispatched.WithLabelValues("batch").Inc()
		return
	}

	metrics.PrefetchRequests.WithLabelValues("batch").Inc()
	c.schedule(func() {
		c.worker.PrefetchBatch(batch, priority)
		metrics.PrefetchDispatched.WithLabelValues("batch").Inc()
	})
}

// Pending reports whether a scheduled request is waiting to fire.
func (c *Coordinator) Pending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.timer != nil
}

// idleSince returns the last time the coordinator was used and whether it
// has a pending request.
func (c *Coordinator) idleSince() (time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastUsed, c.timer != nil
}

func (c *Coordinator) schedule(dispatch func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastUsed = c.opts.Clock.Now()

	if c.timer != nil {
		c.timer.Stop()
		metrics.PrefetchReplaced.Inc()
	}
	c.gen++
	gen := c.gen
	c.timer = c.opts.Clock.AfterFunc(c.opts.Delay, func() { c.fire(gen, dispatch) })
}

// fire runs dispatch unless the timer was superseded after it started
// firing. Stop cannot recall a callback that is already running, so the
// generation check is what keeps a replaced request from dispatching.
func (c *Coordinator) fire(gen uint64, dispatch func()) {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	c.timer = nil
	c.mu.Unlock()

	dispatch()
}
