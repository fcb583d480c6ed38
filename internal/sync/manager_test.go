// Cinifob - Movie Discovery and Watch Tracking
// Copyright 2026 hishamktd
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hishamktd/cinifob

package sync

import (
	"context"
	"errors"
	stdsync "sync"
	"testing"
	"time"

	"github.com/hishamktd/cinifob/internal/config"
	"github.com/hishamktd/cinifob/internal/models"
	"github.com/hishamktd/cinifob/internal/tmdb"
)

type fakeStore struct {
	mu       stdsync.Mutex
	genres   []models.Genre
	batches  [][]models.Movie
	movieErr error
}

func (f *fakeStore) UpsertGenres(_ context.Context, genres []models.Genre) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.genres = append(f.genres, genres...)
	return len(genres), nil
}

func (f *fakeStore) UpsertMovies(_ context.Context, movies []models.Movie) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.movieErr != nil {
		return 0, f.movieErr
	}
	batch := make([]models.Movie, len(movies))
	copy(batch, movies)
	f.batches = append(f.batches, batch)
	return len(movies), nil
}

func (f *fakeStore) movieIDs() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []int
	for _, b := range f.batches {
		for _, m := range b {
			ids = append(ids, m.ID)
		}
	}
	return ids
}

// fakeTMDb serves popular pages of perPage movies with sequential ids.
type fakeTMDb struct {
	perPage    int
	totalPages int
	failPage   int
	entered    chan struct{}
	gate       chan struct{}

	mu    stdsync.Mutex
	pages []int
}

func (f *fakeTMDb) Ping(context.Context) error { return nil }

func (f *fakeTMDb) Genres(ctx context.Context) ([]models.Genre, error) {
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return []models.Genre{{ID: 28, Name: "Action"}, {ID: 18, Name: "Drama"}}, nil
}

func (f *fakeTMDb) Popular(_ context.Context, page int) (*tmdb.Page, error) {
	f.mu.Lock()
	f.pages = append(f.pages, page)
	f.mu.Unlock()

	if page == f.failPage {
		return nil, tmdb.ErrRateLimited
	}
	res := &tmdb.Page{Page: page, TotalPages: f.totalPages}
	for i := 0; i < f.perPage; i++ {
		res.Results = append(res.Results, models.Movie{ID: (page-1)*f.perPage + i + 1, Title: "m"})
	}
	return res, nil
}

func (f *fakeTMDb) Discover(ctx context.Context, p tmdb.DiscoverParams) (*tmdb.Page, error) {
	return f.Popular(ctx, p.Page)
}

func (f *fakeTMDb) Search(ctx context.Context, _ string, page int) (*tmdb.Page, error) {
	return f.Popular(ctx, page)
}

func (f *fakeTMDb) Movie(context.Context, int) (*models.MovieDetail, error) {
	return nil, tmdb.ErrNotFound
}

func TestNewManagerDefaults(t *testing.T) {
	t.Parallel()
	m := NewManager(&fakeStore{}, &fakeTMDb{}, config.SyncConfig{})
	if m.cfg.Interval != DefaultInterval || m.cfg.Pages != DefaultPages || m.cfg.BatchSize != DefaultBatchSize {
		t.Errorf("defaults = %+v", m.cfg)
	}
}

func TestSyncGenres(t *testing.T) {
	t.Parallel()
	store := &fakeStore{}
	m := NewManager(store, &fakeTMDb{}, config.SyncConfig{})

	var results []Result
	m.OnSyncCompleted(func(r Result) { results = append(results, r) })

	n, err := m.SyncGenres(context.Background())
	if err != nil {
		t.Fatalf("SyncGenres: %v", err)
	}
	if n != 2 || len(store.genres) != 2 {
		t.Errorf("SyncGenres wrote %d, store has %d", n, len(store.genres))
	}
	if len(results) != 1 || results[0].Kind != "genres" || results[0].Items != 2 {
		t.Errorf("callbacks = %+v", results)
	}
	if m.LastSyncTime().IsZero() {
		t.Error("LastSyncTime not set")
	}
}

func TestSyncPopularBatches(t *testing.T) {
	t.Parallel()
	store := &fakeStore{}
	client := &fakeTMDb{perPage: 4, totalPages: 10}
	m := NewManager(store, client, config.SyncConfig{BatchSize: 6})

	n, err := m.SyncPopular(context.Background(), 3)
	if err != nil {
		t.Fatalf("SyncPopular: %v", err)
	}
	if n != 12 {
		t.Errorf("SyncPopular wrote %d, want 12", n)
	}
	for i, b := range store.batches {
		if len(b) > 6 {
			t.Errorf("batch %d has %d movies, want at most 6", i, len(b))
		}
	}
	if got := store.movieIDs(); len(got) != 12 || got[0] != 1 || got[11] != 12 {
		t.Errorf("movie ids = %v", got)
	}
}

func TestSyncPopularStopsAtLastPage(t *testing.T) {
	t.Parallel()
	client := &fakeTMDb{perPage: 2, totalPages: 2}
	m := NewManager(&fakeStore{}, client, config.SyncConfig{})

	n, err := m.SyncPopular(context.Background(), 5)
	if err != nil {
		t.Fatalf("SyncPopular: %v", err)
	}
	if n != 4 || len(client.pages) != 2 {
		t.Errorf("wrote %d from pages %v", n, client.pages)
	}
}

func TestSyncPopularKeepsPagesBeforeFailure(t *testing.T) {
	t.Parallel()
	store := &fakeStore{}
	client := &fakeTMDb{perPage: 3, failPage: 2}
	m := NewManager(store, client, config.SyncConfig{})

	called := false
	m.OnSyncCompleted(func(Result) { called = true })

	n, err := m.SyncPopular(context.Background(), 3)
	if !errors.Is(err, tmdb.ErrRateLimited) {
		t.Fatalf("SyncPopular err = %v, want ErrRateLimited", err)
	}
	if n != 3 || len(store.movieIDs()) != 3 {
		t.Errorf("wrote %d, want first page kept", n)
	}
	if called {
		t.Error("completion callback fired for a failed run")
	}
}

func TestSyncPopularStoreError(t *testing.T) {
	t.Parallel()
	boom := errors.New("disk full")
	m := NewManager(&fakeStore{movieErr: boom}, &fakeTMDb{perPage: 2}, config.SyncConfig{})

	if _, err := m.SyncPopular(context.Background(), 1); !errors.Is(err, boom) {
		t.Errorf("err = %v, want %v", err, boom)
	}
}

func TestSyncInProgress(t *testing.T) {
	t.Parallel()
	client := &fakeTMDb{entered: make(chan struct{}, 1), gate: make(chan struct{})}
	m := NewManager(&fakeStore{}, client, config.SyncConfig{Pages: 1})

	done := make(chan error, 1)
	go func() {
		_, err := m.SyncGenres(context.Background())
		done <- err
	}()
	<-client.entered

	if _, err := m.SyncPopular(context.Background(), 1); !errors.Is(err, ErrSyncInProgress) {
		t.Errorf("SyncPopular err = %v, want ErrSyncInProgress", err)
	}
	if err := m.SyncAll(context.Background()); !errors.Is(err, ErrSyncInProgress) {
		t.Errorf("SyncAll err = %v, want ErrSyncInProgress", err)
	}
	if _, err := m.ImportGenres(context.Background(), nil); !errors.Is(err, ErrSyncInProgress) {
		t.Errorf("ImportGenres err = %v, want ErrSyncInProgress", err)
	}

	close(client.gate)
	if err := <-done; err != nil {
		t.Fatalf("SyncGenres: %v", err)
	}
	if _, err := m.SyncPopular(context.Background(), 1); err != nil {
		t.Errorf("SyncPopular after release: %v", err)
	}
}

func TestImportMovies(t *testing.T) {
	t.Parallel()
	store := &fakeStore{}
	m := NewManager(store, &fakeTMDb{}, config.SyncConfig{BatchSize: 2})

	var got Result
	m.OnSyncCompleted(func(r Result) { got = r })

	movies := []models.Movie{{ID: 1}, {ID: 2}, {ID: 3}, {ID: 4}, {ID: 5}}
	n, err := m.ImportMovies(context.Background(), movies)
	if err != nil {
		t.Fatalf("ImportMovies: %v", err)
	}
	if n != 5 || len(store.batches) != 3 {
		t.Errorf("ImportMovies wrote %d in %d batches", n, len(store.batches))
	}
	if got.Kind != "movies" || got.Items != 5 {
		t.Errorf("callback result = %+v", got)
	}
}

func TestStartStop(t *testing.T) {
	t.Parallel()
	store := &fakeStore{}
	m := NewManager(store, &fakeTMDb{perPage: 2, totalPages: 1}, config.SyncConfig{
		Enabled:   true,
		OnStartup: true,
		Interval:  time.Hour,
		Pages:     1,
	})

	synced := make(chan Result, 4)
	m.OnSyncCompleted(func(r Result) { synced <- r })

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := m.Start(context.Background()); err == nil {
		t.Error("second Start succeeded")
	}

	kinds := map[string]bool{}
	for len(kinds) < 2 {
		select {
		case r := <-synced:
			kinds[r.Kind] = true
		case <-time.After(5 * time.Second):
			t.Fatalf("startup sync incomplete: %v", kinds)
		}
	}

	if err := m.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := m.Stop(); err == nil {
		t.Error("second Stop succeeded")
	}

	// The manager can be restarted, which is what the supervisor does.
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("restart: %v", err)
	}
	if err := m.Stop(); err != nil {
		t.Fatalf("Stop after restart: %v", err)
	}
}

func TestStartDisabled(t *testing.T) {
	t.Parallel()
	client := &fakeTMDb{perPage: 1}
	m := NewManager(&fakeStore{}, client, config.SyncConfig{Enabled: false, OnStartup: true})

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := m.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if len(client.pages) != 0 {
		t.Errorf("disabled manager fetched pages %v", client.pages)
	}
}

func TestServe(t *testing.T) {
	t.Parallel()
	store := &fakeStore{}
	m := NewManager(store, &fakeTMDb{perPage: 2, totalPages: 1}, config.SyncConfig{
		Enabled:   true,
		OnStartup: true,
		Interval:  time.Hour,
		Pages:     1,
	})
	if m.String() != "sync-manager" {
		t.Errorf("String() = %q", m.String())
	}

	synced := make(chan Result, 4)
	m.OnSyncCompleted(func(r Result) { synced <- r })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Serve(ctx) }()

	select {
	case <-synced:
	case <-time.After(5 * time.Second):
		t.Fatal("startup sync never completed")
	}

	// A second Serve while the first runs must fail rather than start a
	// competing loop.
	if err := m.Serve(context.Background()); err == nil {
		t.Error("concurrent Serve succeeded")
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Serve = %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}

	// Stopped by Serve, so a second Stop reports it is not running.
	if err := m.Stop(); err == nil {
		t.Error("Stop after Serve returned succeeded")
	}
}
