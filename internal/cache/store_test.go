// Cinifob - Movie Discovery and Watch Tracking
// Copyright 2026 hishamktd
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hishamktd/cinifob

package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hishamktd/cinifob/internal/models"
)

func newTestStore(t *testing.T, ttl time.Duration) *DetailStore {
	t.Helper()
	s, err := OpenDetailStore(StoreConfig{InMemory: true, TTL: ttl})
	if err != nil {
		t.Fatalf("OpenDetailStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleDetail(id int) *models.MovieDetail {
	return &models.MovieDetail{
		Movie: models.Movie{
			ID:          id,
			Title:       "Fight Club",
			ReleaseDate: "1999-10-15",
			VoteAverage: 8.4,
			GenreIDs:    []int{18},
		},
		Runtime: 139,
		Tagline: "Mischief. Mayhem. Soap.",
		Status:  models.StatusReleased,
		Genres:  []models.Genre{{ID: 18, Name: "Drama"}},
	}
}

func TestDetailStorePutGet(t *testing.T) {
	t.Parallel()

	s := newTestStore(t, time.Hour)
	ctx := context.Background()

	if _, err := s.Get(ctx, 550); !errors.Is(err, ErrMiss) {
		t.Fatalf("Get on empty store = %v, want ErrMiss", err)
	}

	if err := s.Put(ctx, sampleDetail(550)); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := s.Get(ctx, 550)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Title != "Fight Club" || got.Runtime != 139 || len(got.Genres) != 1 {
		t.Errorf("unexpected detail %+v", got)
	}

	n, err := s.Len()
	if err != nil || n != 1 {
		t.Errorf("Len() = %d, %v; want 1", n, err)
	}
}

func TestDetailStoreDelete(t *testing.T) {
	t.Parallel()

	s := newTestStore(t, time.Hour)
	ctx := context.Background()

	if err := s.Put(ctx, sampleDetail(1)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := s.Delete(ctx, 1); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := s.Delete(ctx, 1); err != nil {
		t.Fatalf("second Delete: %v", err)
	}
	if _, err := s.Get(ctx, 1); !errors.Is(err, ErrMiss) {
		t.Errorf("Get after Delete = %v, want ErrMiss", err)
	}
}

func TestDetailStoreTTL(t *testing.T) {
	t.Parallel()

	// Badger TTLs have one-second resolution.
	s := newTestStore(t, time.Second)
	ctx := context.Background()

	if err := s.Put(ctx, sampleDetail(2)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	time.Sleep(2100 * time.Millisecond)

	if _, err := s.Get(ctx, 2); !errors.Is(err, ErrMiss) {
		t.Errorf("Get after TTL = %v, want ErrMiss", err)
	}
}

func TestDetailStoreRejectsInvalid(t *testing.T) {
	t.Parallel()

	s := newTestStore(t, time.Hour)
	ctx := context.Background()

	if err := s.Put(ctx, nil); err == nil {
		t.Error("Put(nil) should fail")
	}
	if err := s.Put(ctx, &models.MovieDetail{}); err == nil {
		t.Error("Put with zero id should fail")
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := s.Get(cancelled, 1); !errors.Is(err, context.Canceled) {
		t.Errorf("Get with cancelled ctx = %v", err)
	}
}

func TestDetailStoreOnDisk(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	ctx := context.Background()

	s, err := OpenDetailStore(StoreConfig{Path: dir, TTL: time.Hour})
	if err != nil {
		t.Fatalf("OpenDetailStore: %v", err)
	}
	if err := s.Put(ctx, sampleDetail(3)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := s.RunGC(); err != nil {
		t.Errorf("RunGC: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := OpenDetailStore(StoreConfig{Path: dir, TTL: time.Hour})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	if _, err := reopened.Get(ctx, 3); err != nil {
		t.Errorf("detail did not survive reopen: %v", err)
	}
}

func TestOpenDetailStoreRequiresPath(t *testing.T) {
	t.Parallel()

	if _, err := OpenDetailStore(StoreConfig{}); err == nil {
		t.Error("expected error without path")
	}
}
