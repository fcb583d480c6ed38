// Cinifob - Movie Discovery and Watch Tracking
// Copyright 2026 hishamktd
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hishamktd/cinifob

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/hishamktd/cinifob/internal/logging"
)

// maxSyncPages bounds ?pages= on a popular-movie sync.
const maxSyncPages = 50

type syncResponse struct {
	Kind       string `json:"kind"`
	Source     string `json:"source"`
	Items      int    `json:"items"`
	DurationMS int64  `json:"duration_ms"`
}

// SyncGenres upserts a posted genre list, or syncs genres from TMDb when
// the body is empty.
//
// POST /api/v1/sync/genres [{genres}]
func (h *Handler) SyncGenres(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	start := time.Now()

	var req genreImportRequest
	err := decodeJSON(w, r, &req)
	switch {
	case errors.Is(err, errEmptyBody):
		n, syncErr := h.sync.SyncGenres(r.Context())
		h.syncDone(rw, r, "genres", "tmdb", n, start, syncErr)
	case err != nil:
		rw.BadRequest("Invalid request body: " + err.Error())
	default:
		if !validateRequest(rw, &req) {
			return
		}
		n, importErr := h.sync.ImportGenres(r.Context(), req.Genres)
		h.syncDone(rw, r, "genres", "import", n, start, importErr)
	}
}

// SyncMovies upserts a posted movie list, or syncs ?pages= pages of
// popular movies from TMDb when the body is empty.
//
// POST /api/v1/sync/movies[?pages=] [{movies}]
func (h *Handler) SyncMovies(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	start := time.Now()

	pages, ok := intQuery(rw, r, "pages", 0)
	if !ok {
		return
	}
	if pages > maxSyncPages {
		rw.ErrorWithDetails(http.StatusBadRequest, ErrCodeValidation, "pages must be at most 50",
			map[string]any{"field": "pages"})
		return
	}

	var req movieImportRequest
	err := decodeJSON(w, r, &req)
	switch {
	case errors.Is(err, errEmptyBody):
		n, syncErr := h.sync.SyncPopular(r.Context(), pages)
		h.syncDone(rw, r, "movies", "tmdb", n, start, syncErr)
	case err != nil:
		rw.BadRequest("Invalid request body: " + err.Error())
	default:
		if !validateRequest(rw, &req) {
			return
		}
		n, importErr := h.sync.ImportMovies(r.Context(), req.Movies)
		h.syncDone(rw, r, "movies", "import", n, start, importErr)
	}
}

func (h *Handler) syncDone(rw *ResponseWriter, r *http.Request, kind, source string, n int, start time.Time, err error) {
	if err != nil {
		respondServiceError(rw, err)
		return
	}
	logging.Ctx(r.Context()).Info().Str("kind", kind).Str("source", source).Int("items", n).Msg("Manual sync completed")
	rw.Success(syncResponse{Kind: kind, Source: source, Items: n, DurationMS: time.Since(start).Milliseconds()})
}
