// Cinifob - Movie Discovery and Watch Tracking
// Copyright 2026 hishamktd
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hishamktd/cinifob

package api

import (
	"fmt"
	"net/http"

	"github.com/hishamktd/cinifob/internal/models"
)

type prefetchAccepted struct {
	MovieID  int             `json:"movie_id"`
	Priority models.Priority `json:"priority"`
	DelayMS  int64           `json:"delay_ms"`
}

type batchAccepted struct {
	Count     int  `json:"count"`
	Immediate bool `json:"immediate"`
}

// Prefetch schedules a debounced prefetch of one movie for the caller,
// replacing the caller's pending request.
//
// POST /api/v1/prefetch {movie_id, priority}
func (h *Handler) Prefetch(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	claims, ok := h.claims(rw, r)
	if !ok {
		return
	}
	var req prefetchRequest
	if !bindJSON(rw, w, r, &req) {
		return
	}

	priority := models.ParsePriority(req.Priority)
	c := h.registry.For(claims.UserID())
	c.RequestSinglePrefetch(req.MovieID, priority)
	rw.Accepted(prefetchAccepted{MovieID: req.MovieID, Priority: priority, DelayMS: c.Delay().Milliseconds()})
}

// CancelPrefetch drops the caller's pending prefetch, if any.
//
// DELETE /api/v1/prefetch
func (h *Handler) CancelPrefetch(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	claims, ok := h.claims(rw, r)
	if !ok {
		return
	}
	h.registry.Cancel(claims.UserID())
	rw.Success(map[string]bool{"cancelled": true})
}

// PrefetchBatch prefetches up to prefetch.max_batch_size movies at batch
// priority, either now or after the debounce delay.
//
// POST /api/v1/prefetch/batch {movie_ids, immediate}
func (h *Handler) PrefetchBatch(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	claims, ok := h.claims(rw, r)
	if !ok {
		return
	}
	var req prefetchBatchRequest
	if !bindJSON(rw, w, r, &req) {
		return
	}
	if limit := h.config.Prefetch.MaxBatchSize; limit > 0 && len(req.MovieIDs) > limit {
		rw.ErrorWithDetails(http.StatusBadRequest, ErrCodeValidation,
			fmt.Sprintf("movie_ids must be at most %d items", limit),
			map[string]any{"field": "movie_ids", "tag": "max"})
		return
	}

	h.registry.For(claims.UserID()).RequestBatchPrefetch(req.MovieIDs, req.Immediate)
	rw.Accepted(batchAccepted{Count: len(req.MovieIDs), Immediate: req.Immediate})
}
