// Cinifob - Movie Discovery and Watch Tracking
// Copyright 2026 hishamktd
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hishamktd/cinifob

package services

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/hishamktd/cinifob/internal/logging"
)

// DefaultShutdownTimeout bounds how long in-flight API requests may run
// after shutdown starts.
const DefaultShutdownTimeout = 10 * time.Second

// HTTPServer is the part of *http.Server the service drives.
type HTTPServer interface {
	Serve(l net.Listener) error
	Shutdown(ctx context.Context) error
}

// PendingPrefetches drops debounced prefetch requests that have not fired
// yet. *prefetch.Registry implements it.
type PendingPrefetches interface {
	CancelAll() int
}

// HTTPServiceConfig configures an HTTPService.
type HTTPServiceConfig struct {
	// Addr is the TCP address to bind, e.g. ":8080" or "127.0.0.1:0".
	Addr string

	// ShutdownTimeout defaults to DefaultShutdownTimeout.
	ShutdownTimeout time.Duration

	// Prefetch, when set, has its pending requests dropped once the server
	// stops taking requests, so no debounce timer publishes into the
	// pipeline while the messaging layer shuts down.
	Prefetch PendingPrefetches
}

// HTTPService serves the API under the api-layer supervisor. It binds its
// own listener on every start, so a port conflict surfaces as a Serve error
// and the supervisor retries with backoff.
type HTTPService struct {
	server HTTPServer
	cfg    HTTPServiceConfig
	addr   atomic.Value // string
}

// NewHTTPService wraps server.
//
//	tree.Add(supervisor.LayerAPI, services.NewHTTPService(server, services.HTTPServiceConfig{
//	    Addr:     server.Addr,
//	    Prefetch: registry,
//	}))
func NewHTTPService(server HTTPServer, cfg HTTPServiceConfig) *HTTPService {
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = DefaultShutdownTimeout
	}
	s := &HTTPService{server: server, cfg: cfg}
	s.addr.Store("")
	return s
}

// Addr returns the bound address, or "" while the service is not listening.
func (s *HTTPService) Addr() string {
	return s.addr.Load().(string)
}

// Serve listens, serves until ctx is cancelled and then shuts down in two
// steps: in-flight requests get ShutdownTimeout to finish, then pending
// prefetches are dropped.
func (s *HTTPService) Serve(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.cfg.Addr, err)
	}
	s.addr.Store(ln.Addr().String())
	defer s.addr.Store("")
	logging.Info().Str("addr", ln.Addr().String()).Msg("HTTP server listening")

	serveErr := make(chan error, 1)
	go func() { serveErr <- s.server.Serve(ln) }()

	select {
	case err := <-serveErr:
		s.drainPrefetch()
		if errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server closed outside the supervisor: %w", err)
		}
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.ShutdownTimeout)
	defer cancel()

	logging.Info().Dur("timeout", s.cfg.ShutdownTimeout).Msg("Shutting down HTTP server")
	shutdownErr := s.server.Shutdown(shutdownCtx)
	<-serveErr
	s.drainPrefetch()

	if shutdownErr != nil {
		return fmt.Errorf("http server shutdown failed: %w", shutdownErr)
	}
	return ctx.Err()
}

func (s *HTTPService) drainPrefetch() {
	if s.cfg.Prefetch == nil {
		return
	}
	if n := s.cfg.Prefetch.CancelAll(); n > 0 {
		logging.Info().Int("dropped", n).Msg("Dropped pending prefetch requests")
	}
}

func (s *HTTPService) String() string {
	return "http-server"
}
