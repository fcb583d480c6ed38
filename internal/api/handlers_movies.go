// Cinifob - Movie Discovery and Watch Tracking
// Copyright 2026 hishamktd
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hishamktd/cinifob

package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hishamktd/cinifob/internal/cache"
	"github.com/hishamktd/cinifob/internal/database"
	"github.com/hishamktd/cinifob/internal/logging"
	"github.com/hishamktd/cinifob/internal/models"
)

// maxQueryLength bounds the free-text movie search.
const maxQueryLength = 200

// moviePage is what the listing cache stores.
type moviePage struct {
	Movies []models.Movie
	Total  int
}

// movieDetailResponse is a movie detail plus its community rating and the
// caller's own state.
type movieDetailResponse struct {
	*models.MovieDetail
	Rating    models.RatingSummary  `json:"rating"`
	UserState models.UserMovieState `json:"user_state"`
}

// Genres lists all known genres.
//
// GET /api/v1/genres
func (h *Handler) Genres(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	genres, err := h.db.ListGenres(r.Context())
	if err != nil {
		respondServiceError(rw, err)
		return
	}
	rw.Success(genres)
}

// Movies lists movies with optional genre, search and sort. Pages are
// cached briefly and the cache is cleared after every sync.
//
// GET /api/v1/movies?genre=&q=&sort=&limit=&offset=
func (h *Handler) Movies(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	filter, ok := h.movieFilter(rw, r)
	if !ok {
		return
	}

	key := cache.GenerateKey("movies", filter)
	if v, hit := h.listCache.Get(key); hit {
		if page, ok := v.(moviePage); ok {
			rw.SuccessWithPagination(page.Movies, newPagination(page.Total, len(page.Movies), filter.Limit, filter.Offset), true)
			return
		}
	}

	movies, err := h.db.ListMovies(r.Context(), filter)
	if err != nil {
		respondServiceError(rw, err)
		return
	}
	total, err := h.db.CountMovies(r.Context(), filter)
	if err != nil {
		respondServiceError(rw, err)
		return
	}
	if movies == nil {
		movies = []models.Movie{}
	}

	h.listCache.Set(key, moviePage{Movies: movies, Total: total})
	rw.SuccessWithPagination(movies, newPagination(total, len(movies), filter.Limit, filter.Offset), false)
}

func (h *Handler) movieFilter(rw *ResponseWriter, r *http.Request) (models.MovieFilter, bool) {
	q := r.URL.Query()
	var filter models.MovieFilter

	genre, ok := intQuery(rw, r, "genre", 0)
	if !ok {
		return filter, false
	}
	limit, ok := intQuery(rw, r, "limit", 0)
	if !ok {
		return filter, false
	}
	offset, ok := intQuery(rw, r, "offset", 0)
	if !ok {
		return filter, false
	}

	sort := models.SortPopularity
	if raw := q.Get("sort"); raw != "" {
		sort = models.MovieSort(strings.ToLower(raw))
		if !sort.Valid() {
			rw.ErrorWithDetails(http.StatusBadRequest, ErrCodeValidation,
				"sort must be one of: popularity, release_date, vote_average, title",
				map[string]any{"field": "sort", "value": raw})
			return filter, false
		}
	}

	query := strings.TrimSpace(q.Get("q"))
	if len(query) > maxQueryLength {
		rw.ErrorWithDetails(http.StatusBadRequest, ErrCodeValidation, "q must be at most 200 characters",
			map[string]any{"field": "q"})
		return filter, false
	}

	def, maxLimit := h.pageLimits()
	if limit == 0 {
		limit = def
	}
	limit = min(limit, maxLimit)

	filter = models.MovieFilter{GenreID: genre, Query: query, Sort: sort, Limit: limit, Offset: offset}
	return filter, true
}

// Movie returns one movie's full detail, loaded through the cache tiers.
//
// GET /api/v1/movies/{id}
func (h *Handler) Movie(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	claims, ok := h.claims(rw, r)
	if !ok {
		return
	}
	id, ok := pathID(rw, r, "id")
	if !ok {
		return
	}

	detail, err := h.loader.Load(r.Context(), id)
	if err != nil {
		respondServiceError(rw, err)
		return
	}

	resp := movieDetailResponse{MovieDetail: detail}
	if resp.Rating, err = h.db.MovieRatingSummary(r.Context(), id); err != nil {
		logging.Ctx(r.Context()).Warn().Err(err).Int("movie_id", id).Msg("Rating summary unavailable")
		resp.Rating = models.RatingSummary{MovieID: id}
	}
	if resp.UserState, err = h.db.GetUserMovieState(r.Context(), claims.UserID(), id); err != nil {
		logging.Ctx(r.Context()).Warn().Err(err).Int("movie_id", id).Msg("User movie state unavailable")
	}
	rw.Success(resp)
}

// Comments lists comments on a movie, newest first.
//
// GET /api/v1/movies/{id}/comments?limit=&offset=
func (h *Handler) Comments(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	id, ok := pathID(rw, r, "id")
	if !ok {
		return
	}
	limit, ok := intQuery(rw, r, "limit", 0)
	if !ok {
		return
	}
	offset, ok := intQuery(rw, r, "offset", 0)
	if !ok {
		return
	}
	def, maxLimit := h.pageLimits()
	if limit == 0 {
		limit = def
	}
	limit = min(limit, maxLimit)

	comments, total, err := h.db.ListComments(r.Context(), id, limit, offset)
	if err != nil {
		respondServiceError(rw, err)
		return
	}
	rw.SuccessWithPagination(comments, newPagination(total, len(comments), limit, offset), false)
}

// AddComment posts a comment on a movie as the caller.
//
// POST /api/v1/movies/{id}/comments {body}
func (h *Handler) AddComment(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	claims, ok := h.claims(rw, r)
	if !ok {
		return
	}
	id, ok := pathID(rw, r, "id")
	if !ok {
		return
	}
	var req commentRequest
	if !bindJSON(rw, w, r, &req) {
		return
	}

	var comment *models.Comment
	err := h.withMovie(r.Context(), id, func() error {
		var err error
		comment, err = h.db.AddComment(r.Context(), claims.UserID(), id, req.Body)
		return err
	})
	if err != nil {
		respondServiceError(rw, err)
		return
	}
	rw.Created(comment)
}

// DeleteComment deletes one of the caller's comments.
//
// DELETE /api/v1/comments/{commentID}
func (h *Handler) DeleteComment(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	claims, ok := h.claims(rw, r)
	if !ok {
		return
	}
	commentID := chi.URLParam(r, "commentID")
	if err := h.db.DeleteComment(r.Context(), commentID, claims.UserID()); err != nil {
		respondServiceError(rw, err)
		return
	}
	rw.Success(map[string]string{"deleted": commentID})
}

// withMovie runs write, and when it fails because the movie is not in the
// database yet, loads the movie through the detail loader, stores it and
// runs write once more.
func (h *Handler) withMovie(ctx context.Context, id int, write func() error) error {
	err := write()
	if !errors.Is(err, database.ErrMovieNotFound) || h.loader == nil {
		return err
	}
	detail, err := h.loader.Load(ctx, id)
	if err != nil {
		return err
	}
	if err := h.db.UpsertMovieDetail(ctx, detail); err != nil {
		return err
	}
	return write()
}
