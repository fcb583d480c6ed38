// Cinifob - Movie Discovery and Watch Tracking
// Copyright 2026 hishamktd
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hishamktd/cinifob

/*
Package sync keeps the local movie catalog in step with TMDb.

The Manager periodically pulls the genre list and the first pages of popular
movies, upserting them into the database in batches. The same operations
can be triggered on demand (admin endpoints) through SyncGenres and
SyncPopular.

Lifecycle:
  - NewManager(): wire the database, TMDb client and SyncConfig
  - Start(): optional startup sync plus the periodic loop
  - Stop(): cancel the loop and wait for an in-flight run to finish
  - Serve(): Start and Stop as a suture service in the messaging layer

Thread Safety:
  - runMu: at most one sync runs at a time; a second caller gets ErrSyncInProgress
  - mu: protects lifecycle state, lastSync and callbacks
*/
package sync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hishamktd/cinifob/internal/config"
	"github.com/hishamktd/cinifob/internal/logging"
	"github.com/hishamktd/cinifob/internal/models"
	"github.com/hishamktd/cinifob/internal/tmdb"
)

// ErrSyncInProgress is returned when a sync is requested while another runs.
var ErrSyncInProgress = errors.New("sync already in progress")

const (
	DefaultInterval  = 6 * time.Hour
	DefaultPages     = 5
	DefaultBatchSize = 100
)

// Store is the subset of the database the sync writes to.
type Store interface {
	UpsertGenres(ctx context.Context, genres []models.Genre) (int, error)
	UpsertMovies(ctx context.Context, movies []models.Movie) (int, error)
}

// Result describes one completed sync run.
type Result struct {
	Kind     string        // "genres" or "movies"
	Items    int           // rows written
	Duration time.Duration // wall time of the run
}

// Manager orchestrates metadata synchronization from TMDb to the database.
type Manager struct {
	db     Store
	client tmdb.Client
	cfg    config.SyncConfig

	runMu sync.Mutex

	mu        sync.RWMutex
	running   bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	lastSync  time.Time
	callbacks []func(Result)
}

// NewManager creates a sync manager. Zero values in cfg select defaults.
func NewManager(db Store, client tmdb.Client, cfg config.SyncConfig) *Manager {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Pages <= 0 {
		cfg.Pages = DefaultPages
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}

	logging.Info().
		Bool("enabled", cfg.Enabled).
		Bool("on_startup", cfg.OnStartup).
		Dur("interval", cfg.Interval).
		Int("pages", cfg.Pages).
		Int("batch_size", cfg.BatchSize).
		Msg("Sync manager config loaded")

	return &Manager{db: db, client: client, cfg: cfg}
}

// OnSyncCompleted registers a callback invoked after every successful run.
// Callbacks run on the syncing goroutine and must not block.
func (m *Manager) OnSyncCompleted(fn func(Result)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callbacks = append(m.callbacks, fn)
}

// Start begins the periodic sync. It returns immediately; a startup sync,
// when configured, runs in the background.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return fmt.Errorf("sync manager is already running")
	}
	if !m.cfg.Enabled {
		logging.Info().Msg("Periodic TMDb sync disabled")
		m.running = true
		m.cancel = func() {}
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.running = true
	m.cancel = cancel

	m.wg.Add(1)
	go m.syncLoop(runCtx)

	logging.Info().Dur("interval", m.cfg.Interval).Msg("Sync manager started")
	return nil
}

// Stop cancels the loop and waits for any in-flight run to return.
func (m *Manager) Stop() error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return fmt.Errorf("sync manager is not running")
	}
	m.running = false
	cancel := m.cancel
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
	logging.Info().Msg("Sync manager stopped")
	return nil
}

// Serve runs the manager under a supervisor. It starts the loop, blocks
// until ctx is cancelled and then stops, waiting for a run in progress. A
// restarted Serve starts a fresh loop.
func (m *Manager) Serve(ctx context.Context) error {
	if err := m.Start(ctx); err != nil {
		return fmt.Errorf("sync manager start failed: %w", err)
	}
	<-ctx.Done()
	if err := m.Stop(); err != nil {
		return fmt.Errorf("sync manager stop failed: %w", err)
	}
	return ctx.Err()
}

func (m *Manager) String() string {
	return "sync-manager"
}

// LastSyncTime returns the completion time of the last successful run.
func (m *Manager) LastSyncTime() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastSync
}

func (m *Manager) syncLoop(ctx context.Context) {
	defer m.wg.Done()

	if m.cfg.OnStartup {
		m.runScheduled(ctx)
	}

	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.runScheduled(ctx)
		}
	}
}

func (m *Manager) runScheduled(ctx context.Context) {
	if err := m.SyncAll(ctx); err != nil {
		if errors.Is(err, ErrSyncInProgress) {
			logging.Debug().Msg("Skipping scheduled sync, another sync is running")
			return
		}
		if ctx.Err() != nil {
			return
		}
		logging.Error().Err(err).Msg("Scheduled sync failed")
	}
}

func (m *Manager) complete(res Result) {
	m.mu.Lock()
	m.lastSync = time.Now()
	callbacks := make([]func(Result), len(m.callbacks))
	copy(callbacks, m.callbacks)
	m.mu.Unlock()

	for _, fn := range callbacks {
		fn(res)
	}
}
