// Cinifob - Movie Discovery and Watch Tracking
// Copyright 2026 hishamktd
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hishamktd/cinifob

package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/thejerf/suture/v4"
	"github.com/thejerf/sutureslog"
)

// Layer selects the supervisor a service runs under. Layers stop in reverse
// declaration order, so the API stops taking requests before the prefetch
// pipeline drains, and both finish before storage maintenance stops.
type Layer int

const (
	// LayerData holds storage maintenance: detail store GC, DuckDB
	// checkpoints and the prefetch coordinator sweeper.
	LayerData Layer = iota
	// LayerMessaging holds the prefetch pipeline and the sync manager.
	LayerMessaging
	// LayerAPI holds the HTTP server.
	LayerAPI

	numLayers
)

func (l Layer) String() string {
	switch l {
	case LayerData:
		return "data-layer"
	case LayerMessaging:
		return "messaging-layer"
	case LayerAPI:
		return "api-layer"
	default:
		return fmt.Sprintf("layer(%d)", int(l))
	}
}

// TreeConfig holds the restart policy shared by every layer.
type TreeConfig struct {
	// FailureThreshold is the number of failures before a layer backs off.
	FailureThreshold float64

	// FailureDecay is the failure decay rate in seconds.
	FailureDecay float64

	// FailureBackoff is how long a layer waits once over the threshold.
	FailureBackoff time.Duration

	// ShutdownTimeout bounds how long each layer waits for its services.
	ShutdownTimeout time.Duration
}

// DefaultTreeConfig returns suture's own defaults.
func DefaultTreeConfig() TreeConfig {
	return TreeConfig{
		FailureThreshold: 5.0,
		FailureDecay:     30.0,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  10 * time.Second,
	}
}

func (c TreeConfig) withDefaults() TreeConfig {
	d := DefaultTreeConfig()
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = d.FailureThreshold
	}
	if c.FailureDecay <= 0 {
		c.FailureDecay = d.FailureDecay
	}
	if c.FailureBackoff <= 0 {
		c.FailureBackoff = d.FailureBackoff
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = d.ShutdownTimeout
	}
	return c
}

// Tree runs one suture supervisor per Layer. Each layer restarts its own
// failing services; the tree only orders startup and shutdown.
type Tree struct {
	config TreeConfig
	layers [numLayers]*suture.Supervisor

	mu        sync.Mutex
	unstopped []suture.UnstoppedService
}

// NewTree builds the layer supervisors. Zero fields in config take
// DefaultTreeConfig values. Supervisor events are logged through logger.
func NewTree(logger *slog.Logger, config TreeConfig) *Tree {
	config = config.withDefaults()
	hook := (&sutureslog.Handler{Logger: logger}).MustHook()

	t := &Tree{config: config}
	for l := LayerData; l < numLayers; l++ {
		t.layers[l] = suture.New(l.String(), suture.Spec{
			EventHook:        hook,
			FailureThreshold: config.FailureThreshold,
			FailureDecay:     config.FailureDecay,
			FailureBackoff:   config.FailureBackoff,
			Timeout:          config.ShutdownTimeout,
		})
	}
	return t
}

// Add runs svc in layer. It panics on an unknown layer.
func (t *Tree) Add(layer Layer, svc suture.Service) suture.ServiceToken {
	if layer < 0 || layer >= numLayers {
		panic(fmt.Sprintf("supervisor: unknown %s", layer))
	}
	return t.layers[layer].Add(svc)
}

type layerRun struct {
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// Serve starts every layer and blocks until ctx is cancelled or a layer
// exits by itself. It then stops the layers top-down, each one
// finishing before the next is told to stop. The result is ctx's error, or
// the error of the layer that exited.
func (t *Tree) Serve(ctx context.Context) error {
	var runs [numLayers]*layerRun
	exited := make(chan Layer, numLayers)

	for l := LayerData; l < numLayers; l++ {
		// Layer contexts do not inherit ctx's cancellation; stopping is
		// sequenced below.
		layerCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		run := &layerRun{cancel: cancel, done: make(chan struct{})}
		runs[l] = run
		go func() {
			run.err = t.layers[l].Serve(layerCtx)
			close(run.done)
			exited <- l
		}()
	}

	var result error
	select {
	case <-ctx.Done():
		result = ctx.Err()
	case l := <-exited:
		<-runs[l].done
		result = layerExitError(l, runs[l].err)
	}

	for l := numLayers - 1; l >= LayerData; l-- {
		runs[l].cancel()
		<-runs[l].done
		t.recordStopped(l)
	}
	return result
}

// ServeBackground runs Serve in a goroutine. The channel receives its
// result.
func (t *Tree) ServeBackground(ctx context.Context) <-chan error {
	errCh := make(chan error, 1)
	go func() { errCh <- t.Serve(ctx) }()
	return errCh
}

func (t *Tree) recordStopped(l Layer) {
	report, err := t.layers[l].UnstoppedServiceReport()
	t.mu.Lock()
	defer t.mu.Unlock()
	if err == nil {
		t.unstopped = append(t.unstopped, report...)
	}
}

// Unstopped lists the services that outlived ShutdownTimeout during the
// last Serve. It is empty until Serve has returned.
func (t *Tree) Unstopped() []suture.UnstoppedService {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]suture.UnstoppedService(nil), t.unstopped...)
}

func layerExitError(l Layer, err error) error {
	if err == nil {
		return fmt.Errorf("%s exited", l)
	}
	if errors.Is(err, suture.ErrTerminateSupervisorTree) {
		return fmt.Errorf("%s requested shutdown: %w", l, err)
	}
	return fmt.Errorf("%s exited: %w", l, err)
}
