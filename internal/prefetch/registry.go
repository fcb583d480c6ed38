// Cinifob - Movie Discovery and Watch Tracking
// Copyright 2026 hishamktd
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hishamktd/cinifob

package prefetch

import (
	"context"
	"sync"
	"time"

	"github.com/hishamktd/cinifob/internal/logging"
	"github.com/hishamktd/cinifob/internal/metrics"
)

// Registry hands out one Coordinator per client key (the user ID), so one
// user's hovering never replaces another user's pending prefetch.
type Registry struct {
	worker Worker
	opts   Options

	mu           sync.Mutex
	coordinators map[string]*Coordinator
}

// NewRegistry creates an empty registry. Every coordinator it creates shares
// worker and opts.
func NewRegistry(worker Worker, opts Options) *Registry {
	return &Registry{
		worker:       worker,
		opts:         opts.withDefaults(),
		coordinators: make(map[string]*Coordinator),
	}
}

// For returns the coordinator for key, creating it on first use.
func (r *Registry) For(key string) *Coordinator {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.coordinators[key]; ok {
		return c
	}
	c := NewCoordinator(r.worker, r.opts)
	r.coordinators[key] = c
	metrics.PrefetchCoordinators.Set(float64(len(r.coordinators)))
	return c
}

// Cancel cancels the pending prefetch for key. It reports false when key
// has no coordinator.
func (r *Registry) Cancel(key string) bool {
	r.mu.Lock()
	c, ok := r.coordinators[key]
	r.mu.Unlock()
	if !ok {
		return false
	}
	c.CancelPendingPrefetch()
	return true
}

// CancelAll cancels every pending prefetch and returns how many were
// pending. Coordinators stay registered.
func (r *Registry) CancelAll() int {
	r.mu.Lock()
	coordinators := make([]*Coordinator, 0, len(r.coordinators))
	for _, c := range r.coordinators {
		coordinators = append(coordinators, c)
	}
	r.mu.Unlock()

	cancelled := 0
	for _, c := range coordinators {
		if c.cancel() {
			cancelled++
		}
	}
	return cancelled
}

// Len returns the number of live coordinators.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.coordinators)
}

// Sweep removes coordinators unused for longer than idle with nothing
// pending, and returns how many were removed.
func (r *Registry) Sweep(idle time.Duration) int {
	cutoff := r.opts.Clock.Now().Add(-idle)

	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for key, c := range r.coordinators {
		lastUsed, pending := c.idleSince()
		if pending || lastUsed.After(cutoff) {
			continue
		}
		delete(r.coordinators, key)
		removed++
	}
	metrics.PrefetchCoordinators.Set(float64(len(r.coordinators)))
	return removed
}

// Sweeper periodically sweeps a Registry. It implements suture.Service.
type Sweeper struct {
	registry *Registry
	interval time.Duration
	idle     time.Duration
}

// NewSweeper sweeps registry every interval, dropping coordinators idle
// for longer than idle.
func NewSweeper(registry *Registry, interval, idle time.Duration) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Sweeper{registry: registry, interval: interval, idle: idle}
}

func (s *Sweeper) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if n := s.registry.Sweep(s.idle); n > 0 {
				logging.Debug().Int("removed", n).Int("live", s.registry.Len()).Msg("Swept idle prefetch coordinators")
			}
		}
	}
}

func (s *Sweeper) String() string {
	return "prefetch-sweeper"
}
