// Cinifob - Movie Discovery and Watch Tracking
// Copyright 2026 hishamktd
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hishamktd/cinifob

package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hishamktd/cinifob/internal/auth"
	"github.com/hishamktd/cinifob/internal/authz"
	"github.com/hishamktd/cinifob/internal/middleware"
)

// Authorization objects of the casbin policy.
const (
	objCatalog  = "catalog"
	objLists    = "lists"
	objRatings  = "ratings"
	objComments = "comments"
	objPrefetch = "prefetch"
	objSync     = "sync"
)

// Router wires handlers to routes.
type Router struct {
	handler       *Handler
	chiMiddleware *ChiMiddleware
	authn         *auth.Middleware
	authz         *authz.Middleware
}

// NewRouter creates a router. Build authn with WriteUnauthorized and authz
// with WriteDenied so failures use the API envelope.
func NewRouter(handler *Handler, chiMW *ChiMiddleware, authn *auth.Middleware, authzMW *authz.Middleware) *Router {
	if chiMW == nil {
		chiMW = NewChiMiddleware(nil)
	}
	return &Router{handler: handler, chiMiddleware: chiMW, authn: authn, authz: authzMW}
}

// SetupChi builds the HTTP handler.
func (router *Router) SetupChi() http.Handler {
	h := router.handler
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.AccessLog)
	r.Use(chimiddleware.Recoverer)
	r.Use(router.chiMiddleware.CORS())
	r.Use(middleware.PrometheusMetrics)
	r.Use(chimiddleware.Compress(5, "application/json"))

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		NewResponseWriter(w, req).NotFound("route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		NewResponseWriter(w, req).Error(http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1/health", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimitCustom(RateLimitHealth))
		r.Use(APISecurityHeaders())
		r.Get("/", h.Health)
		r.Get("/live", h.HealthLive)
		r.Get("/ready", h.HealthReady)
	})

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.Use(APISecurityHeaders())
		r.With(router.chiMiddleware.RateLimitCustom(RateLimitAuth)).Post("/register", h.Register)
		r.With(router.chiMiddleware.RateLimitCustom(RateLimitLogin)).Post("/login", h.Login)
		r.Post("/logout", h.Logout)
	})

	r.Group(func(r chi.Router) {
		r.Use(APISecurityHeaders())
		r.Use(router.authn.Authenticate)

		r.Group(func(r chi.Router) {
			r.Use(router.chiMiddleware.RateLimitCustom(RateLimitPrefetch))
			r.Use(router.authz.Authorize(objPrefetch, authz.ActionWrite))
			r.Post("/api/v1/prefetch", h.Prefetch)
			r.Delete("/api/v1/prefetch", h.CancelPrefetch)
			r.Post("/api/v1/prefetch/batch", h.PrefetchBatch)
		})

		r.Group(func(r chi.Router) {
			r.Use(router.chiMiddleware.RateLimit())

			read := router.authz.Authorize(objCatalog, authz.ActionRead)
			r.With(read).Get("/api/v1/genres", h.Genres)
			r.With(read).Get("/api/v1/movies", h.Movies)
			r.With(read).Get("/api/v1/movies/{id}", h.Movie)

			listsRead := router.authz.Authorize(objLists, authz.ActionRead)
			listsWrite := router.authz.Authorize(objLists, authz.ActionWrite)
			r.With(listsRead).Get("/api/v1/watchlist", h.Watchlist)
			r.With(listsWrite).Put("/api/v1/watchlist/{id}", h.AddToWatchlist)
			r.With(listsWrite).Delete("/api/v1/watchlist/{id}", h.RemoveFromWatchlist)
			r.With(listsRead).Get("/api/v1/watched", h.Watched)
			r.With(listsWrite).Put("/api/v1/watched/{id}", h.MarkWatched)
			r.With(listsWrite).Delete("/api/v1/watched/{id}", h.UnmarkWatched)

			ratings := router.authz.Authorize(objRatings, authz.ActionWrite)
			r.With(ratings).Put("/api/v1/movies/{id}/rating", h.SetRating)
			r.With(ratings).Delete("/api/v1/movies/{id}/rating", h.DeleteRating)

			commentsRead := router.authz.Authorize(objComments, authz.ActionRead)
			commentsWrite := router.authz.Authorize(objComments, authz.ActionWrite)
			r.With(commentsRead).Get("/api/v1/movies/{id}/comments", h.Comments)
			r.With(commentsWrite).Post("/api/v1/movies/{id}/comments", h.AddComment)
			r.With(commentsWrite).Delete("/api/v1/comments/{commentID}", h.DeleteComment)
		})

		r.Group(func(r chi.Router) {
			r.Use(router.chiMiddleware.RateLimitCustom(RateLimitSync))
			r.Use(router.authz.Authorize(objSync, authz.ActionWrite))
			r.Post("/api/v1/sync/genres", h.SyncGenres)
			r.Post("/api/v1/sync/movies", h.SyncMovies)
		})
	})

	return r
}

// WriteUnauthorized is the auth.UnauthorizedFunc of the API.
func WriteUnauthorized(w http.ResponseWriter, r *http.Request, err error) {
	NewResponseWriter(w, r).Unauthorized("Authentication required: " + err.Error())
}

// WriteDenied is the authz.DeniedFunc of the API.
func WriteDenied(w http.ResponseWriter, r *http.Request, err error) {
	rw := NewResponseWriter(w, r)
	if errors.Is(err, authz.ErrForbidden) || errors.Is(err, authz.ErrNoClaims) {
		rw.Forbidden("Insufficient permissions")
		return
	}
	rw.InternalError(err)
}
