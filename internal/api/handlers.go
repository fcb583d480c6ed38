// Cinifob - Movie Discovery and Watch Tracking
// Copyright 2026 hishamktd
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hishamktd/cinifob

package api

import (
	"net/http"
	"time"

	"github.com/hishamktd/cinifob/internal/auth"
	"github.com/hishamktd/cinifob/internal/cache"
	"github.com/hishamktd/cinifob/internal/catalog"
	"github.com/hishamktd/cinifob/internal/config"
	"github.com/hishamktd/cinifob/internal/database"
	"github.com/hishamktd/cinifob/internal/logging"
	"github.com/hishamktd/cinifob/internal/prefetch"
	syncpkg "github.com/hishamktd/cinifob/internal/sync"
)

// DefaultListCacheTTL applies when the cache config leaves ListTTL unset.
const DefaultListCacheTTL = 30 * time.Second

// BreakerState reports the TMDb circuit breaker state for health checks.
// *tmdb.CircuitBreakerClient implements it.
type BreakerState interface {
	State() string
}

// Dependencies are the collaborators a Handler serves from.
type Dependencies struct {
	DB       *database.DB
	Loader   *catalog.DetailLoader
	Prefetch *prefetch.Registry
	Sync     *syncpkg.Manager
	JWT      *auth.JWTManager
	// Breaker is optional.
	Breaker BreakerState
	Config  *config.Config
}

// Handler holds the dependencies of every API endpoint.
//
// Handler methods are split across files:
//   - handlers_auth.go: Register, Login, Logout
//   - handlers_movies.go: Genres, Movies, Movie, Comments
//   - handlers_lists.go: watchlist, watched and rating endpoints
//   - handlers_prefetch.go: Prefetch, CancelPrefetch, PrefetchBatch
//   - handlers_sync.go: SyncGenres, SyncMovies
//   - handlers_health.go: Health, HealthLive, HealthReady
type Handler struct {
	db        *database.DB
	loader    *catalog.DetailLoader
	registry  *prefetch.Registry
	sync      *syncpkg.Manager
	jwt       *auth.JWTManager
	breaker   BreakerState
	config    *config.Config
	listCache *cache.Cache
	startTime time.Time
}

// NewHandler creates the API handler. Call Close to stop its list cache.
func NewHandler(deps Dependencies) *Handler {
	cfg := deps.Config
	if cfg == nil {
		cfg = &config.Config{}
	}
	ttl := cfg.Cache.ListTTL
	if ttl <= 0 {
		ttl = DefaultListCacheTTL
	}
	return &Handler{
		db:        deps.DB,
		loader:    deps.Loader,
		registry:  deps.Prefetch,
		sync:      deps.Sync,
		jwt:       deps.JWT,
		breaker:   deps.Breaker,
		config:    cfg,
		listCache: cache.NewWithCleanup("movie_lists", ttl, ttl),
		startTime: time.Now(),
	}
}

// ClearCache drops every cached movie listing.
func (h *Handler) ClearCache() {
	h.listCache.Clear()
}

// OnSyncCompleted clears the listing cache after a sync wrote new rows.
// Register it with Manager.OnSyncCompleted.
func (h *Handler) OnSyncCompleted(res syncpkg.Result) {
	h.ClearCache()
	logging.Debug().Str("kind", res.Kind).Int("items", res.Items).Msg("Movie list cache cleared after sync")
}

// Close releases the handler's background resources.
func (h *Handler) Close() {
	h.listCache.Close()
}

// claims returns the caller's claims. Routes behind Authenticate always
// have them; a missing value writes 401.
func (h *Handler) claims(rw *ResponseWriter, r *http.Request) (*auth.Claims, bool) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok || claims.UserID() == "" {
		rw.Unauthorized("Authentication required")
		return nil, false
	}
	return claims, true
}

func (h *Handler) pageLimits() (def, maxLimit int) {
	def, maxLimit = h.config.API.DefaultPageSize, h.config.API.MaxPageSize
	if maxLimit <= 0 {
		maxLimit = database.MaxListLimit
	}
	if def <= 0 || def > maxLimit {
		def = min(database.DefaultListLimit, maxLimit)
	}
	return def, maxLimit
}
