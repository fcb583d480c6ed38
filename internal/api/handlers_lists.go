// Cinifob - Movie Discovery and Watch Tracking
// Copyright 2026 hishamktd
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hishamktd/cinifob

package api

import (
	"context"
	"net/http"

	"github.com/hishamktd/cinifob/internal/logging"
	"github.com/hishamktd/cinifob/internal/models"
)

// ratingResponse pairs the caller's rating with the updated summary.
type ratingResponse struct {
	Rating  *models.Rating       `json:"rating"`
	Summary models.RatingSummary `json:"summary"`
}

// Watchlist lists the caller's watchlist, most recently added first.
//
// GET /api/v1/watchlist
func (h *Handler) Watchlist(w http.ResponseWriter, r *http.Request) {
	h.listEntries(w, r, models.ListWatchlist)
}

// Watched lists the caller's watched movies, most recent first.
//
// GET /api/v1/watched
func (h *Handler) Watched(w http.ResponseWriter, r *http.Request) {
	h.listEntries(w, r, models.ListWatched)
}

// AddToWatchlist is idempotent.
//
// PUT /api/v1/watchlist/{id}
func (h *Handler) AddToWatchlist(w http.ResponseWriter, r *http.Request) {
	h.changeList(w, r, true, func(ctx context.Context, userID string, id int) error {
		return h.db.AddToWatchlist(ctx, userID, id)
	})
}

// RemoveFromWatchlist returns 404 when the movie is not on the list.
//
// DELETE /api/v1/watchlist/{id}
func (h *Handler) RemoveFromWatchlist(w http.ResponseWriter, r *http.Request) {
	h.changeList(w, r, false, func(ctx context.Context, userID string, id int) error {
		return h.db.RemoveFromWatchlist(ctx, userID, id)
	})
}

// MarkWatched also takes the movie off the watchlist.
//
// PUT /api/v1/watched/{id}
func (h *Handler) MarkWatched(w http.ResponseWriter, r *http.Request) {
	h.changeList(w, r, true, func(ctx context.Context, userID string, id int) error {
		return h.db.MarkWatched(ctx, userID, id)
	})
}

// UnmarkWatched returns 404 when the movie is not marked watched.
//
// DELETE /api/v1/watched/{id}
func (h *Handler) UnmarkWatched(w http.ResponseWriter, r *http.Request) {
	h.changeList(w, r, false, func(ctx context.Context, userID string, id int) error {
		return h.db.UnmarkWatched(ctx, userID, id)
	})
}

func (h *Handler) listEntries(w http.ResponseWriter, r *http.Request, kind models.ListKind) {
	rw := NewResponseWriter(w, r)
	claims, ok := h.claims(rw, r)
	if !ok {
		return
	}

	var (
		entries []models.ListEntry
		err     error
	)
	if kind == models.ListWatchlist {
		entries, err = h.db.ListWatchlist(r.Context(), claims.UserID())
	} else {
		entries, err = h.db.ListWatched(r.Context(), claims.UserID())
	}
	if err != nil {
		respondServiceError(rw, err)
		return
	}
	if entries == nil {
		entries = []models.ListEntry{}
	}
	rw.SuccessWithPagination(entries, newPagination(len(entries), len(entries), len(entries), 0), false)
}

// changeList applies change and responds with the caller's new state for
// the movie. Additions load unknown movies from TMDb first.
func (h *Handler) changeList(w http.ResponseWriter, r *http.Request, add bool, change func(context.Context, string, int) error) {
	rw := NewResponseWriter(w, r)
	claims, ok := h.claims(rw, r)
	if !ok {
		return
	}
	id, ok := pathID(rw, r, "id")
	if !ok {
		return
	}

	ctx := r.Context()
	apply := func() error { return change(ctx, claims.UserID(), id) }
	var err error
	if add {
		err = h.withMovie(ctx, id, apply)
	} else {
		err = apply()
	}
	if err != nil {
		respondServiceError(rw, err)
		return
	}

	state, err := h.db.GetUserMovieState(ctx, claims.UserID(), id)
	if err != nil {
		respondServiceError(rw, err)
		return
	}
	logging.Ctx(ctx).Debug().Int("movie_id", id).Bool("in_watchlist", state.InWatchlist).Bool("watched", state.Watched).Msg("List updated")
	rw.Success(state)
}

// SetRating rates a movie 1..10 as the caller, replacing any earlier score.
//
// PUT /api/v1/movies/{id}/rating {score}
func (h *Handler) SetRating(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	claims, ok := h.claims(rw, r)
	if !ok {
		return
	}
	id, ok := pathID(rw, r, "id")
	if !ok {
		return
	}
	var req ratingRequest
	if !bindJSON(rw, w, r, &req) {
		return
	}

	var rating *models.Rating
	err := h.withMovie(r.Context(), id, func() error {
		var err error
		rating, err = h.db.SetRating(r.Context(), claims.UserID(), id, req.Score)
		return err
	})
	if err != nil {
		respondServiceError(rw, err)
		return
	}

	summary, err := h.db.MovieRatingSummary(r.Context(), id)
	if err != nil {
		respondServiceError(rw, err)
		return
	}
	rw.Success(ratingResponse{Rating: rating, Summary: summary})
}

// DeleteRating removes the caller's rating and returns the new summary.
//
// DELETE /api/v1/movies/{id}/rating
func (h *Handler) DeleteRating(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	claims, ok := h.claims(rw, r)
	if !ok {
		return
	}
	id, ok := pathID(rw, r, "id")
	if !ok {
		return
	}

	if err := h.db.DeleteRating(r.Context(), claims.UserID(), id); err != nil {
		respondServiceError(rw, err)
		return
	}
	summary, err := h.db.MovieRatingSummary(r.Context(), id)
	if err != nil {
		respondServiceError(rw, err)
		return
	}
	rw.Success(summary)
}
