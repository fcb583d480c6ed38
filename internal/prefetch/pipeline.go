// Cinifob - Movie Discovery and Watch Tracking
// Copyright 2026 hishamktd
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hishamktd/cinifob

package prefetch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/hishamktd/cinifob/internal/models"
)

// PipelineConfig configures the in-process prefetch queue.
type PipelineConfig struct {
	// Buffer is the per-subscriber channel buffer of the GoChannel.
	Buffer int64

	// JobTimeout bounds how long one job may spend warming caches.
	JobTimeout time.Duration

	// LowPriorityPerSecond throttles the low lane so background batches
	// leave TMDb quota for hover prefetches. Zero disables throttling.
	LowPriorityPerSecond int64

	// CloseTimeout is how long shutdown waits for in-flight jobs.
	CloseTimeout time.Duration
}

// DefaultPipelineConfig returns production defaults.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		Buffer:       256,
		JobTimeout:   30 * time.Second,
		CloseTimeout: 10 * time.Second,
	}
}

// Pipeline owns the GoChannel pub/sub that carries prefetch jobs and runs
// one watermill handler per priority lane, so high-priority hover jobs
// never queue behind low-priority batches.
//
// Pipeline implements suture.Service. Each Serve call builds a fresh
// router over the same pub/sub, so the service can be restarted.
type Pipeline struct {
	cfg     PipelineConfig
	pubSub  *gochannel.GoChannel
	handler *Handler
	logger  watermill.LoggerAdapter

	readyOnce sync.Once
	ready     chan struct{}
}

// NewPipeline wires handler behind a new GoChannel.
func NewPipeline(cfg PipelineConfig, handler *Handler, logger watermill.LoggerAdapter) *Pipeline {
	if logger == nil {
		logger = watermill.NopLogger{}
	}
	if cfg.CloseTimeout <= 0 {
		cfg.CloseTimeout = 10 * time.Second
	}
	return &Pipeline{
		cfg:     cfg,
		pubSub:  gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: cfg.Buffer}, logger),
		handler: handler,
		logger:  logger,
		ready:   make(chan struct{}),
	}
}

// Publisher returns the publisher a Dispatcher should use.
func (p *Pipeline) Publisher() message.Publisher {
	return p.pubSub
}

// Ready is closed once the first router is consuming.
func (p *Pipeline) Ready() <-chan struct{} {
	return p.ready
}

// Serve runs the router until ctx is cancelled.
func (p *Pipeline) Serve(ctx context.Context) error {
	router, err := p.newRouter()
	if err != nil {
		return err
	}

	go func() {
		select {
		case <-router.Running():
			p.readyOnce.Do(func() { close(p.ready) })
		case <-ctx.Done():
		}
	}()

	if err := router.Run(ctx); err != nil {
		return fmt.Errorf("prefetch router: %w", err)
	}
	return ctx.Err()
}

// Close shuts the pub/sub down. Call it after the supervisor has stopped.
func (p *Pipeline) Close() error {
	return p.pubSub.Close()
}

func (p *Pipeline) String() string {
	return "prefetch-pipeline"
}

func (p *Pipeline) newRouter() (*message.Router, error) {
	router, err := message.NewRouter(message.RouterConfig{CloseTimeout: p.cfg.CloseTimeout}, p.logger)
	if err != nil {
		return nil, fmt.Errorf("create prefetch router: %w", err)
	}

	router.AddMiddleware(middleware.Recoverer)
	if p.cfg.JobTimeout > 0 {
		router.AddMiddleware(middleware.Timeout(p.cfg.JobTimeout))
	}

	for _, priority := range []models.Priority{models.PriorityHigh, models.PriorityNormal, models.PriorityLow} {
		h := router.AddConsumerHandler(
			"prefetch-"+priority.String(),
			TopicFor(priority),
			p.pubSub,
			p.handler.Handle,
		)
		if priority == models.PriorityLow && p.cfg.LowPriorityPerSecond > 0 {
			h.AddMiddleware(middleware.NewThrottle(p.cfg.LowPriorityPerSecond, time.Second).Middleware)
		}
	}
	return router, nil
}
