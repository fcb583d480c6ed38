// Cinifob - Movie Discovery and Watch Tracking
// Copyright 2026 hishamktd
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hishamktd/cinifob

// Package catalog resolves movie detail data through the cache tiers and,
// on a full miss, TMDb.
//
// Lookup order:
//
//	memory (cache.Cache) -> detail store (BadgerDB) -> database row -> TMDb
//
// A TMDb result is written back to every tier. Concurrent loads of the same
// movie share one upstream fetch.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/hishamktd/cinifob/internal/cache"
	"github.com/hishamktd/cinifob/internal/database"
	"github.com/hishamktd/cinifob/internal/logging"
	"github.com/hishamktd/cinifob/internal/metrics"
	"github.com/hishamktd/cinifob/internal/models"
	"github.com/hishamktd/cinifob/internal/tmdb"
)

// ErrNotFound is returned when neither the database nor TMDb know the movie.
var ErrNotFound = errors.New("movie not found")

// DefaultFetchTimeout bounds one shared upstream fetch.
const DefaultFetchTimeout = 15 * time.Second

// MovieStore is the slice of the database the loader needs.
type MovieStore interface {
	GetMovie(ctx context.Context, id int) (*models.MovieDetail, error)
	UpsertMovieDetail(ctx context.Context, detail *models.MovieDetail) error
}

// DetailStore is the persistent cache tier. *cache.DetailStore implements it.
type DetailStore interface {
	Get(ctx context.Context, id int) (*models.MovieDetail, error)
	Put(ctx context.Context, detail *models.MovieDetail) error
	Delete(ctx context.Context, id int) error
}

// Config wires a DetailLoader.
type Config struct {
	Memory *cache.Cache
	// Store may be nil to run without the persistent tier.
	Store    DetailStore
	Movies   MovieStore
	Upstream tmdb.Client

	// DetailTTL is how long a database row's detail fields stay fresh.
	DetailTTL time.Duration

	// FetchTimeout bounds a shared fetch. Defaults to DefaultFetchTimeout.
	FetchTimeout time.Duration
}

// DetailLoader implements the tiered read-through lookup. It satisfies
// prefetch.Warmer.
type DetailLoader struct {
	memory       *cache.Cache
	store        DetailStore
	movies       MovieStore
	upstream     tmdb.Client
	detailTTL    time.Duration
	fetchTimeout time.Duration
	now          func() time.Time

	group singleflight.Group
}

// NewDetailLoader creates a loader from cfg.
func NewDetailLoader(cfg Config) *DetailLoader {
	if cfg.DetailTTL <= 0 {
		cfg.DetailTTL = 24 * time.Hour
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = DefaultFetchTimeout
	}
	return &DetailLoader{
		memory:       cfg.Memory,
		store:        cfg.Store,
		movies:       cfg.Movies,
		upstream:     cfg.Upstream,
		detailTTL:    cfg.DetailTTL,
		fetchTimeout: cfg.FetchTimeout,
		now:          time.Now,
	}
}

// Load returns the detail record for id.
func (l *DetailLoader) Load(ctx context.Context, id int) (*models.MovieDetail, error) {
	if id <= 0 {
		return nil, fmt.Errorf("%w: invalid id %d", ErrNotFound, id)
	}
	if detail, ok := l.fromMemory(id); ok {
		return detail, nil
	}

	ch := l.group.DoChan(strconv.Itoa(id), func() (interface{}, error) {
		// Detached from the first caller so its cancellation does not fail
		// everyone else waiting on the same flight.
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.fetchTimeout)
		defer cancel()
		return l.resolve(fetchCtx, id)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return cloneDetail(res.Val.(*models.MovieDetail)), nil
	}
}

// Warm makes sure id is in the memory tier. It is a no-op on a memory hit.
func (l *DetailLoader) Warm(ctx context.Context, id int) error {
	_, err := l.Load(ctx, id)
	return err
}

// Invalidate drops id from the memory and persistent tiers.
func (l *DetailLoader) Invalidate(ctx context.Context, id int) error {
	l.memory.Delete(cache.MovieKey(id))
	if l.store == nil {
		return nil
	}
	if err := l.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("invalidate movie %d: %w", id, err)
	}
	return nil
}

func (l *DetailLoader) fromMemory(id int) (*models.MovieDetail, bool) {
	v, ok := l.memory.Get(cache.MovieKey(id))
	if !ok {
		return nil, false
	}
	detail, ok := v.(*models.MovieDetail)
	if !ok {
		return nil, false
	}
	return cloneDetail(detail), true
}

// cloneDetail copies d including its slices, so callers never share
// backing arrays with a cached record.
func cloneDetail(d *models.MovieDetail) *models.MovieDetail {
	cp := *d
	cp.GenreIDs = slices.Clone(d.GenreIDs)
	cp.Genres = slices.Clone(d.Genres)
	return &cp
}

// resolve walks the tiers below memory. It runs once per id per flight.
func (l *DetailLoader) resolve(ctx context.Context, id int) (*models.MovieDetail, error) {
	if l.store != nil {
		detail, err := l.store.Get(ctx, id)
		switch {
		case err == nil:
			l.memory.Set(cache.MovieKey(id), detail)
			return detail, nil
		case !errors.Is(err, cache.ErrMiss):
			logging.Warn().Err(err).Int("movie_id", id).Msg("Detail store read failed")
		}
	}

	row, err := l.movies.GetMovie(ctx, id)
	if err != nil && !errors.Is(err, database.ErrMovieNotFound) {
		logging.Warn().Err(err).Int("movie_id", id).Msg("Database read failed, falling back to TMDb")
		row = nil
	}
	if row != nil && l.fresh(row) {
		metrics.RecordCacheLookup("database", true)
		l.fill(ctx, row, false)
		return row, nil
	}
	metrics.RecordCacheLookup("database", false)

	detail, err := l.upstream.Movie(ctx, id)
	if err != nil {
		if errors.Is(err, tmdb.ErrNotFound) {
			return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
		}
		if row != nil && !row.DetailsFetchedAt.IsZero() {
			logging.Warn().Err(err).Int("movie_id", id).Msg("TMDb unavailable, serving stale detail")
			return row, nil
		}
		return nil, fmt.Errorf("fetch movie %d: %w", id, err)
	}

	l.fill(ctx, detail, true)
	return detail, nil
}

func (l *DetailLoader) fresh(row *models.MovieDetail) bool {
	return !row.DetailsFetchedAt.IsZero() && l.now().Sub(row.DetailsFetchedAt) < l.detailTTL
}

// fill writes detail to the tiers above its source. Write failures are
// logged; the caller already has the value.
func (l *DetailLoader) fill(ctx context.Context, detail *models.MovieDetail, persist bool) {
	if persist {
		if err := l.movies.UpsertMovieDetail(ctx, detail); err != nil {
			logging.Warn().Err(err).Int("movie_id", detail.ID).Msg("Failed to persist movie detail")
		}
	}
	if l.store != nil {
		if err := l.store.Put(ctx, detail); err != nil {
			logging.Warn().Err(err).Int("movie_id", detail.ID).Msg("Failed to write detail store")
		}
	}
	l.memory.Set(cache.MovieKey(detail.ID), detail)
}
