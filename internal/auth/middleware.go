// Cinifob - Movie Discovery and Watch Tracking
// Copyright 2026 hishamktd
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hishamktd/cinifob

package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/hishamktd/cinifob/internal/config"
	"github.com/hishamktd/cinifob/internal/logging"
)

type contextKey string

// ClaimsContextKey holds the *Claims of an authenticated request.
const ClaimsContextKey contextKey = "claims"

// TokenCookieName is the HttpOnly cookie carrying the session token.
const TokenCookieName = "token"

var (
	ErrMissingToken = errors.New("missing token")
	ErrBadHeader    = errors.New("invalid authorization header")
	ErrInvalidToken = errors.New("invalid token")
)

// UnauthorizedFunc writes the response for a rejected request.
type UnauthorizedFunc func(w http.ResponseWriter, r *http.Request, err error)

// Middleware authenticates requests by bearer token or token cookie.
type Middleware struct {
	jwtManager   *JWTManager
	authMode     string
	guest        *Claims
	unauthorized UnauthorizedFunc
}

// NewMiddleware creates the authentication middleware. In AuthModeNone every
// request runs with guest claims. onUnauthorized may be nil, in which case a
// plain 401 is written.
func NewMiddleware(jwtManager *JWTManager, authMode string, guest *Claims, onUnauthorized UnauthorizedFunc) *Middleware {
	if onUnauthorized == nil {
		onUnauthorized = func(w http.ResponseWriter, _ *http.Request, err error) {
			http.Error(w, "Unauthorized: "+err.Error(), http.StatusUnauthorized)
		}
	}
	return &Middleware{
		jwtManager:   jwtManager,
		authMode:     authMode,
		guest:        guest,
		unauthorized: onUnauthorized,
	}
}

// Authenticate rejects requests without valid credentials and stores the
// claims in the request context.
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.authMode == config.AuthModeNone && m.guest != nil {
			ctx := WithClaims(r.Context(), m.guest)
			next.ServeHTTP(w, r.WithContext(logging.ContextWithUserID(ctx, m.guest.UserID())))
			return
		}

		token, err := extractToken(r)
		if err != nil {
			m.unauthorized(w, r, err)
			return
		}

		claims, err := m.jwtManager.ValidateToken(token)
		if err != nil {
			logging.Ctx(r.Context()).Debug().Err(err).Msg("Token validation failed")
			m.unauthorized(w, r, ErrInvalidToken)
			return
		}

		ctx := WithClaims(r.Context(), claims)
		ctx = logging.ContextWithUserID(ctx, claims.UserID())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// extractToken prefers the Authorization header over the cookie.
func extractToken(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		cookie, err := r.Cookie(TokenCookieName)
		if err != nil || cookie.Value == "" {
			return "", ErrMissingToken
		}
		return cookie.Value, nil
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", ErrBadHeader
	}
	return strings.TrimSpace(parts[1]), nil
}

// WithClaims returns ctx carrying claims.
func WithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, ClaimsContextKey, claims)
}

// ClaimsFromContext returns the request's claims, if any.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(ClaimsContextKey).(*Claims)
	return claims, ok && claims != nil
}

// GuestClaims are used for every request when authentication is disabled.
func GuestClaims(userID, username string) *Claims {
	c := &Claims{Username: username, Role: "admin"}
	c.Subject = userID
	return c
}
