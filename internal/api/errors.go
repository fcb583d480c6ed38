// Cinifob - Movie Discovery and Watch Tracking
// Copyright 2026 hishamktd
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hishamktd/cinifob

package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/sony/gobreaker/v2"

	"github.com/hishamktd/cinifob/internal/catalog"
	"github.com/hishamktd/cinifob/internal/database"
	syncpkg "github.com/hishamktd/cinifob/internal/sync"
	"github.com/hishamktd/cinifob/internal/tmdb"
	"github.com/hishamktd/cinifob/internal/validation"
)

// Error codes used in APIError.Code.
const (
	ErrCodeBadRequest         = "BAD_REQUEST"
	ErrCodeValidation         = validation.CodeValidationError
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeForbidden          = "FORBIDDEN"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeConflict           = "CONFLICT"
	ErrCodeTooManyRequests    = "TOO_MANY_REQUESTS"
	ErrCodeServiceUnavailable = "SERVICE_UNAVAILABLE"
	ErrCodeInternalError      = "INTERNAL_ERROR"
)

// errorMapping maps a sentinel to its HTTP status and code.
type errorMapping struct {
	target error
	status int
	code   string
}

var errorMappings = []errorMapping{
	{database.ErrMovieNotFound, http.StatusNotFound, ErrCodeNotFound},
	{catalog.ErrNotFound, http.StatusNotFound, ErrCodeNotFound},
	{database.ErrUserNotFound, http.StatusNotFound, ErrCodeNotFound},
	{database.ErrNotInList, http.StatusNotFound, ErrCodeNotFound},
	{database.ErrRatingNotFound, http.StatusNotFound, ErrCodeNotFound},
	{database.ErrCommentNotFound, http.StatusNotFound, ErrCodeNotFound},
	{database.ErrUsernameTaken, http.StatusConflict, ErrCodeConflict},
	{database.ErrInvalidScore, http.StatusBadRequest, ErrCodeValidation},
	{syncpkg.ErrSyncInProgress, http.StatusConflict, ErrCodeConflict},
	{gobreaker.ErrOpenState, http.StatusServiceUnavailable, ErrCodeServiceUnavailable},
	{gobreaker.ErrTooManyRequests, http.StatusServiceUnavailable, ErrCodeServiceUnavailable},
	{tmdb.ErrRateLimited, http.StatusServiceUnavailable, ErrCodeServiceUnavailable},
	{context.DeadlineExceeded, http.StatusServiceUnavailable, ErrCodeServiceUnavailable},
}

// classifyError returns the status and code for err. Unknown errors are 500.
func classifyError(err error) (int, string) {
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			return m.status, m.code
		}
	}
	return http.StatusInternalServerError, ErrCodeInternalError
}

// respondServiceError writes the envelope for an error returned by a
// database, catalog or sync call. 5xx details stay in the log.
func respondServiceError(rw *ResponseWriter, err error) {
	status, code := classifyError(err)
	switch {
	case status == http.StatusInternalServerError:
		rw.InternalError(err)
	case status == http.StatusServiceUnavailable:
		rw.Error(status, code, "Movie data is temporarily unavailable, try again later")
	default:
		rw.Error(status, code, publicMessage(err))
	}
}

// publicMessage strips wrapping context down to the sentinel text.
func publicMessage(err error) string {
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			return m.target.Error()
		}
	}
	return err.Error()
}
