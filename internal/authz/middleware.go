// Cinifob - Movie Discovery and Watch Tracking
// Copyright 2026 hishamktd
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hishamktd/cinifob

package authz

import (
	"errors"
	"net/http"

	"github.com/hishamktd/cinifob/internal/auth"
	"github.com/hishamktd/cinifob/internal/logging"
)

var (
	// ErrNoClaims means the request reached authorization unauthenticated.
	ErrNoClaims = errors.New("no authentication context")
	// ErrForbidden means the caller's role lacks the permission.
	ErrForbidden = errors.New("insufficient permissions")
)

// DeniedFunc writes the response for a denied request. err is ErrNoClaims,
// ErrForbidden or an enforcement failure.
type DeniedFunc func(w http.ResponseWriter, r *http.Request, err error)

// Middleware provides authorization middleware using Casbin.
type Middleware struct {
	enforcer *Enforcer
	denied   DeniedFunc
}

// NewMiddleware creates the authorization middleware. A nil denied writes
// plain-text 403/500 responses.
func NewMiddleware(enforcer *Enforcer, denied DeniedFunc) *Middleware {
	if denied == nil {
		denied = func(w http.ResponseWriter, _ *http.Request, err error) {
			if errors.Is(err, ErrForbidden) || errors.Is(err, ErrNoClaims) {
				http.Error(w, "Forbidden: "+err.Error(), http.StatusForbidden)
				return
			}
			http.Error(w, "Internal server error", http.StatusInternalServerError)
		}
	}
	return &Middleware{enforcer: enforcer, denied: denied}
}

// Authorize returns middleware allowing the request only when the caller's
// role may perform action on object.
func (m *Middleware) Authorize(object, action string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := auth.ClaimsFromContext(r.Context())
			if !ok {
				m.denied(w, r, ErrNoClaims)
				return
			}

			allowed, err := m.enforcer.Enforce(claims.Role, object, action)
			if err != nil {
				logging.Ctx(r.Context()).Error().Err(err).Msg("Authorization error")
				m.denied(w, r, err)
				return
			}
			if !allowed {
				logging.Ctx(r.Context()).Debug().Str("role", claims.Role).Str("object", object).Str("action", action).Msg("Access denied")
				m.denied(w, r, ErrForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
