// Cinifob - Movie Discovery and Watch Tracking
// Copyright 2026 hishamktd
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hishamktd/cinifob

package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/hishamktd/cinifob/internal/logging"
	"github.com/hishamktd/cinifob/internal/metrics"
	"github.com/hishamktd/cinifob/internal/models"
)

// SyncAll syncs genres and then popular movies as a single run.
func (m *Manager) SyncAll(ctx context.Context) error {
	if !m.runMu.TryLock() {
		return ErrSyncInProgress
	}
	defer m.runMu.Unlock()

	if _, err := m.syncGenres(ctx); err != nil {
		return err
	}
	_, err := m.syncPopular(ctx, m.cfg.Pages)
	return err
}

// SyncGenres replaces the local genre list with TMDb's and returns the
// number of genres written.
func (m *Manager) SyncGenres(ctx context.Context) (int, error) {
	if !m.runMu.TryLock() {
		return 0, ErrSyncInProgress
	}
	defer m.runMu.Unlock()
	return m.syncGenres(ctx)
}

// SyncPopular upserts the first pages of TMDb's popular movies and returns
// the number of movies written. Non-positive pages uses the configured count.
func (m *Manager) SyncPopular(ctx context.Context, pages int) (int, error) {
	if !m.runMu.TryLock() {
		return 0, ErrSyncInProgress
	}
	defer m.runMu.Unlock()
	if pages <= 0 {
		pages = m.cfg.Pages
	}
	return m.syncPopular(ctx, pages)
}

// ImportGenres upserts a caller-supplied genre list.
func (m *Manager) ImportGenres(ctx context.Context, genres []models.Genre) (int, error) {
	if !m.runMu.TryLock() {
		return 0, ErrSyncInProgress
	}
	defer m.runMu.Unlock()

	start := time.Now()
	n, err := m.db.UpsertGenres(ctx, genres)
	metrics.RecordSync("genres", time.Since(start), n, err)
	if err != nil {
		return 0, fmt.Errorf("import genres: %w", err)
	}
	m.complete(Result{Kind: "genres", Items: n, Duration: time.Since(start)})
	return n, nil
}

// ImportMovies upserts a caller-supplied movie list in batches.
func (m *Manager) ImportMovies(ctx context.Context, movies []models.Movie) (int, error) {
	if !m.runMu.TryLock() {
		return 0, ErrSyncInProgress
	}
	defer m.runMu.Unlock()

	start := time.Now()
	n, err := m.writeBatches(ctx, movies)
	metrics.RecordSync("movies", time.Since(start), n, err)
	if err != nil {
		return n, fmt.Errorf("import movies: %w", err)
	}
	m.complete(Result{Kind: "movies", Items: n, Duration: time.Since(start)})
	return n, nil
}

func (m *Manager) syncGenres(ctx context.Context) (n int, err error) {
	start := time.Now()
	defer func() { metrics.RecordSync("genres", time.Since(start), n, err) }()

	genres, err := m.client.Genres(ctx)
	if err != nil {
		return 0, fmt.Errorf("fetch genres: %w", err)
	}
	n, err = m.db.UpsertGenres(ctx, genres)
	if err != nil {
		return 0, fmt.Errorf("store genres: %w", err)
	}

	logging.Info().Int("genres", n).Dur("duration", time.Since(start)).Msg("Genre sync completed")
	m.complete(Result{Kind: "genres", Items: n, Duration: time.Since(start)})
	return n, nil
}

// syncPopular fetches pages sequentially and flushes a batch whenever
// BatchSize movies have accumulated. Movies from pages fetched before a
// failure are still written.
func (m *Manager) syncPopular(ctx context.Context, pages int) (n int, err error) {
	start := time.Now()
	defer func() { metrics.RecordSync("movies", time.Since(start), n, err) }()

	var (
		pending []models.Movie
		seen    = make(map[int]struct{})
		fetchErr error
	)
	for page := 1; page <= pages; page++ {
		if ctx.Err() != nil {
			fetchErr = ctx.Err()
			break
		}
		res, err := m.client.Popular(ctx, page)
		if err != nil {
			fetchErr = fmt.Errorf("fetch popular page %d: %w", page, err)
			break
		}
		for _, movie := range res.Results {
			// Popularity shifts between page requests, so a movie can appear twice.
			if _, dup := seen[movie.ID]; dup {
				continue
			}
			seen[movie.ID] = struct{}{}
			pending = append(pending, movie)
		}
		if len(pending) >= m.cfg.BatchSize {
			written, err := m.writeBatches(ctx, pending)
			n += written
			if err != nil {
				return n, err
			}
			pending = pending[:0]
		}
		if res.TotalPages > 0 && page >= res.TotalPages {
			break
		}
	}

	written, werr := m.writeBatches(ctx, pending)
	n += written
	if werr != nil {
		return n, werr
	}
	if fetchErr != nil {
		return n, fetchErr
	}

	logging.Info().Int("movies", n).Int("pages", pages).Dur("duration", time.Since(start)).Msg("Popular movie sync completed")
	m.complete(Result{Kind: "movies", Items: n, Duration: time.Since(start)})
	return n, nil
}

func (m *Manager) writeBatches(ctx context.Context, movies []models.Movie) (int, error) {
	total := 0
	for start := 0; start < len(movies); start += m.cfg.BatchSize {
		end := min(start+m.cfg.BatchSize, len(movies))
		n, err := m.db.UpsertMovies(ctx, movies[start:end])
		total += n
		if err != nil {
			return total, fmt.Errorf("store movies %d-%d: %w", start, end, err)
		}
	}
	return total, nil
}
