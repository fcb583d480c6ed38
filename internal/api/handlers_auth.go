// Cinifob - Movie Discovery and Watch Tracking
// Copyright 2026 hishamktd
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hishamktd/cinifob

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/hishamktd/cinifob/internal/auth"
	"github.com/hishamktd/cinifob/internal/database"
	"github.com/hishamktd/cinifob/internal/logging"
	"github.com/hishamktd/cinifob/internal/models"
)

// bcryptMaxBytes is the longest password bcrypt accepts.
const bcryptMaxBytes = 72

// Register creates a user account and signs it in.
//
// POST /api/v1/auth/register {username, password}
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	var req credentialsRequest
	if !bindJSON(rw, w, r, &req) || !checkPasswordBytes(rw, req.Password) {
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		rw.InternalError(err)
		return
	}
	user, err := h.db.CreateUser(r.Context(), req.Username, hash, models.RoleUser)
	if err != nil {
		respondServiceError(rw, err)
		return
	}

	logging.Ctx(r.Context()).Info().Str("user_id", user.ID).Str("username", user.Username).Msg("User registered")
	h.issueToken(rw, w, user, http.StatusCreated)
}

// Login exchanges credentials for a token.
//
// POST /api/v1/auth/login {username, password}
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	var req credentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		rw.BadRequest("Invalid request body: " + err.Error())
		return
	}
	if req.Username == "" || req.Password == "" {
		rw.ErrorWithDetails(http.StatusBadRequest, ErrCodeValidation, "username and password are required", nil)
		return
	}

	user, err := h.db.GetUserByUsername(r.Context(), req.Username)
	switch {
	case errors.Is(err, database.ErrUserNotFound):
		_ = auth.CheckPassword("", req.Password)
		rw.Unauthorized(auth.ErrInvalidCredentials.Error())
		return
	case err != nil:
		rw.InternalError(err)
		return
	}

	if err := auth.CheckPassword(user.PasswordHash, req.Password); err != nil {
		logging.Ctx(r.Context()).Info().Str("username", user.Username).Msg("Failed login attempt")
		rw.Unauthorized(auth.ErrInvalidCredentials.Error())
		return
	}

	h.issueToken(rw, w, user, http.StatusOK)
}

// Logout clears the token cookie. Bearer tokens stay valid until they expire.
//
// POST /api/v1/auth/logout
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, h.tokenCookie("", -1))
	NewResponseWriter(w, r).Success(map[string]bool{"logged_out": true})
}

func (h *Handler) issueToken(rw *ResponseWriter, w http.ResponseWriter, user *models.User, status int) {
	token, err := h.jwt.GenerateToken(user.ID, user.Username, user.Role.String())
	if err != nil {
		rw.InternalError(err)
		return
	}
	timeout := h.jwt.Timeout()
	http.SetCookie(w, h.tokenCookie(token, int(timeout/time.Second)))

	body := authResponse{Token: token, ExpiresIn: int64(timeout / time.Second), User: user}
	if status == http.StatusCreated {
		rw.Created(body)
		return
	}
	rw.Success(body)
}

func (h *Handler) tokenCookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     auth.TokenCookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.config.Security.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
}

func checkPasswordBytes(rw *ResponseWriter, password string) bool {
	if len(password) <= bcryptMaxBytes {
		return true
	}
	rw.ErrorWithDetails(http.StatusBadRequest, ErrCodeValidation, "password must be at most 72 bytes",
		map[string]any{"field": "password", "tag": "max"})
	return false
}
