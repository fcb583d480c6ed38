// Cinifob - Movie Discovery and Watch Tracking
// Copyright 2026 hishamktd
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hishamktd/cinifob

package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/hishamktd/cinifob/internal/models"
	"github.com/hishamktd/cinifob/internal/validation"
)

// maxBodyBytes caps request bodies. Sync imports are the largest.
const maxBodyBytes = 4 << 20

type credentialsRequest struct {
	Username string `json:"username" validate:"required,min=3,max=32,username"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

type ratingRequest struct {
	Score int `json:"score" validate:"min=1,max=10"`
}

type commentRequest struct {
	Body string `json:"body" validate:"notblank,max=2000"`
}

type prefetchRequest struct {
	MovieID  int    `json:"movie_id" validate:"required,gt=0"`
	Priority string `json:"priority" validate:"priority"`
}

// The upper bound on MovieIDs is prefetch.max_batch_size, checked by the
// handler.
type prefetchBatchRequest struct {
	MovieIDs  []int `json:"movie_ids" validate:"required,min=1,dive,gt=0"`
	Immediate bool  `json:"immediate"`
}

type genreImportRequest struct {
	Genres []models.Genre `json:"genres" validate:"required,min=1,max=1000,dive"`
}

type movieImportRequest struct {
	Movies []models.Movie `json:"movies" validate:"required,min=1,max=5000,dive"`
}

type authResponse struct {
	Token     string       `json:"token"`
	ExpiresIn int64        `json:"expires_in"`
	User      *models.User `json:"user"`
}

var errEmptyBody = errors.New("request body is empty")

// decodeJSON decodes the body into dst, rejecting unknown fields and
// trailing data. An empty body yields errEmptyBody.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errEmptyBody
		}
		return err
	}
	if dec.More() {
		return errors.New("request body must contain a single JSON value")
	}
	return nil
}

// bindJSON decodes and validates a body, writing the 400 on failure.
func bindJSON(rw *ResponseWriter, w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := decodeJSON(w, r, dst); err != nil {
		rw.BadRequest("Invalid request body: " + err.Error())
		return false
	}
	return validateRequest(rw, dst)
}

// validateRequest writes a VALIDATION_ERROR response when v fails its tags.
func validateRequest(rw *ResponseWriter, v any) bool {
	verr := validation.ValidateStruct(v)
	if verr == nil {
		return true
	}
	apiErr := verr.ToAPIError()
	rw.ErrorWithDetails(http.StatusBadRequest, apiErr.Code, apiErr.Message, apiErr.Details)
	return false
}

// pathID parses a positive integer URL parameter.
func pathID(rw *ResponseWriter, r *http.Request, name string) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, name))
	if err != nil || id <= 0 {
		rw.ErrorWithDetails(http.StatusBadRequest, ErrCodeValidation, name+" must be a positive integer",
			map[string]any{"field": name})
		return 0, false
	}
	return id, true
}

// intQuery parses an optional integer query parameter.
func intQuery(rw *ResponseWriter, r *http.Request, name string, def int) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		rw.ErrorWithDetails(http.StatusBadRequest, ErrCodeValidation, name+" must be a non-negative integer",
			map[string]any{"field": name, "value": raw})
		return 0, false
	}
	return n, true
}
