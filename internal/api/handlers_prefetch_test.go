// Cinifob - Movie Discovery and Watch Tracking
// Copyright 2026 hishamktd
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hishamktd/cinifob

package api

import (
	"net/http"
	"testing"

	"github.com/hishamktd/cinifob/internal/config"
	"github.com/hishamktd/cinifob/internal/models"
	"github.com/hishamktd/cinifob/internal/prefetch"
)

func TestPrefetchDebounce(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, nil)
	token, _ := s.userToken("viewer", models.RoleUser)

	rec, env := s.do(http.MethodPost, "/api/v1/prefetch", map[string]any{"movie_id": 1, "priority": "high"}, token)
	expectStatus(t, rec, http.StatusAccepted)
	var accepted prefetchAccepted
	decodeData(t, env, &accepted)
	if accepted.MovieID != 1 || accepted.Priority != models.PriorityHigh || accepted.DelayMS != prefetch.DefaultDelay.Milliseconds() {
		t.Errorf("accepted = %+v", accepted)
	}

	// A second request inside the delay replaces the first.
	rec, env = s.do(http.MethodPost, "/api/v1/prefetch", map[string]any{"movie_id": 2}, token)
	expectStatus(t, rec, http.StatusAccepted)
	decodeData(t, env, &accepted)
	if accepted.Priority != models.PriorityNormal {
		t.Errorf("default priority = %q, want normal", accepted.Priority)
	}

	if singles, _ := s.worker.snapshot(); len(singles) != 0 {
		t.Fatalf("dispatched before delay: %v", singles)
	}
	s.clock.Advance(prefetch.DefaultDelay)
	singles, _ := s.worker.snapshot()
	if !sameInts(singles, []int{2}) {
		t.Errorf("dispatched = %v, want [2]", singles)
	}
}

func TestPrefetchCancel(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, nil)
	token, _ := s.userToken("viewer", models.RoleUser)

	s.do(http.MethodPost, "/api/v1/prefetch", map[string]any{"movie_id": 7}, token)
	rec, _ := s.do(http.MethodDelete, "/api/v1/prefetch", nil, token)
	expectStatus(t, rec, http.StatusOK)

	s.clock.Advance(prefetch.DefaultDelay * 2)
	if singles, _ := s.worker.snapshot(); len(singles) != 0 {
		t.Errorf("cancelled prefetch dispatched: %v", singles)
	}

	// Cancelling with nothing pending is fine.
	rec, _ = s.do(http.MethodDelete, "/api/v1/prefetch", nil, token)
	expectStatus(t, rec, http.StatusOK)
}

func TestPrefetchIsPerUser(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, nil)
	alice, _ := s.userToken("alice", models.RoleUser)
	bob, _ := s.userToken("bob", models.RoleUser)

	s.do(http.MethodPost, "/api/v1/prefetch", map[string]any{"movie_id": 1}, alice)
	s.do(http.MethodPost, "/api/v1/prefetch", map[string]any{"movie_id": 2}, bob)
	s.clock.Advance(prefetch.DefaultDelay)

	singles, _ := s.worker.snapshot()
	if len(singles) != 2 {
		t.Errorf("dispatched = %v, want one per user", singles)
	}
}

func TestPrefetchBatch(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, nil)
	token, _ := s.userToken("viewer", models.RoleUser)

	rec, env := s.do(http.MethodPost, "/api/v1/prefetch/batch", map[string]any{"movie_ids": []int{1, 2, 3}, "immediate": true}, token)
	expectStatus(t, rec, http.StatusAccepted)
	var accepted batchAccepted
	decodeData(t, env, &accepted)
	if accepted.Count != 3 || !accepted.Immediate {
		t.Errorf("accepted = %+v", accepted)
	}
	_, batches := s.worker.snapshot()
	if len(batches) != 1 || !sameInts(batches[0], []int{1, 2, 3}) {
		t.Fatalf("immediate batches = %v", batches)
	}

	s.do(http.MethodPost, "/api/v1/prefetch/batch", map[string]any{"movie_ids": []int{4, 5}}, token)
	if _, batches = s.worker.snapshot(); len(batches) != 1 {
		t.Fatalf("deferred batch dispatched early: %v", batches)
	}
	s.clock.Advance(prefetch.DefaultDelay)
	if _, batches = s.worker.snapshot(); len(batches) != 2 || !sameInts(batches[1], []int{4, 5}) {
		t.Errorf("batches after delay = %v", batches)
	}
}

func TestPrefetchValidation(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, nil)
	token, _ := s.userToken("viewer", models.RoleUser)

	tooMany := make([]int, s.handler.config.Prefetch.MaxBatchSize+1)
	for i := range tooMany {
		tooMany[i] = i + 1
	}

	tests := []struct {
		name string
		path string
		body any
	}{
		{"missing movie id", "/api/v1/prefetch", map[string]any{"priority": "low"}},
		{"zero movie id", "/api/v1/prefetch", map[string]any{"movie_id": 0}},
		{"unknown priority", "/api/v1/prefetch", map[string]any{"movie_id": 1, "priority": "urgent"}},
		{"empty batch", "/api/v1/prefetch/batch", map[string]any{"movie_ids": []int{}}},
		{"oversized batch", "/api/v1/prefetch/batch", map[string]any{"movie_ids": tooMany}},
		{"non-positive id in batch", "/api/v1/prefetch/batch", map[string]any{"movie_ids": []int{1, -1}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, env := s.do(http.MethodPost, tt.path, tt.body, token)
			expectStatus(t, rec, http.StatusBadRequest)
			expectErrorCode(t, env, ErrCodeValidation)
		})
	}

	singles, batches := s.worker.snapshot()
	if len(singles) != 0 || len(batches) != 0 {
		t.Errorf("rejected requests reached the worker: %v %v", singles, batches)
	}
}

func TestPrefetchConfiguredBatchLimit(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, func(cfg *config.Config) { cfg.Prefetch.MaxBatchSize = 2 })
	token, _ := s.userToken("viewer", models.RoleUser)

	rec, env := s.do(http.MethodPost, "/api/v1/prefetch/batch", map[string]any{"movie_ids": []int{1, 2, 3}}, token)
	expectStatus(t, rec, http.StatusBadRequest)
	expectErrorCode(t, env, ErrCodeValidation)
}

func TestPrefetchBatchAboveHundred(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, func(cfg *config.Config) { cfg.Prefetch.MaxBatchSize = 150 })
	token, _ := s.userToken("viewer", models.RoleUser)

	ids := make([]int, 120)
	for i := range ids {
		ids[i] = i + 1
	}
	rec, env := s.do(http.MethodPost, "/api/v1/prefetch/batch", map[string]any{"movie_ids": ids, "immediate": true}, token)
	expectStatus(t, rec, http.StatusAccepted)
	var accepted batchAccepted
	decodeData(t, env, &accepted)
	if accepted.Count != 120 {
		t.Errorf("accepted count = %d, want 120", accepted.Count)
	}
	if _, batches := s.worker.snapshot(); len(batches) != 1 || len(batches[0]) != 120 {
		t.Errorf("dispatched batches = %d", len(batches))
	}
}
