// Cinifob - Movie Discovery and Watch Tracking
// Copyright 2026 hishamktd
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hishamktd/cinifob

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hishamktd/cinifob/internal/api"
	"github.com/hishamktd/cinifob/internal/auth"
	"github.com/hishamktd/cinifob/internal/authz"
	"github.com/hishamktd/cinifob/internal/cache"
	"github.com/hishamktd/cinifob/internal/catalog"
	"github.com/hishamktd/cinifob/internal/config"
	"github.com/hishamktd/cinifob/internal/database"
	"github.com/hishamktd/cinifob/internal/logging"
	"github.com/hishamktd/cinifob/internal/models"
	"github.com/hishamktd/cinifob/internal/prefetch"
	"github.com/hishamktd/cinifob/internal/supervisor"
	"github.com/hishamktd/cinifob/internal/supervisor/services"
	"github.com/hishamktd/cinifob/internal/sync"
	"github.com/hishamktd/cinifob/internal/tmdb"
)

//nolint:gocyclo // sequential wiring
func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
	})
	logging.Info().
		Str("db_path", cfg.Database.Path).
		Str("auth_mode", cfg.Security.AuthMode).
		Str("environment", cfg.Server.Environment).
		Msg("Starting Cinifob")

	db, err := database.New(&cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing database")
		}
	}()

	memory := cache.New("movie_details", cfg.Cache.MemoryTTL)
	defer memory.Close()

	detailStore, err := cache.OpenDetailStore(cache.StoreConfig{
		Path:     cfg.Cache.StorePath,
		InMemory: cfg.Cache.InMemory,
		TTL:      cfg.Cache.DetailTTL,
	})
	if err != nil {
		logging.Fatal().Err(err).Str("path", cfg.Cache.StorePath).Msg("Failed to open detail store")
	}
	defer func() {
		if err := detailStore.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing detail store")
		}
	}()

	tmdbClient := tmdb.NewCircuitBreakerClient(tmdb.NewHTTPClient(&cfg.TMDb))
	pingCtx, pingCancel := context.WithTimeout(context.Background(), cfg.TMDb.Timeout)
	if err := tmdbClient.Ping(pingCtx); err != nil {
		logging.Warn().Err(err).Msg("TMDb not reachable at startup (will retry on demand)")
	} else {
		logging.Info().Msg("Connected to TMDb")
	}
	pingCancel()

	loader := catalog.NewDetailLoader(catalog.Config{
		Memory:       memory,
		Store:        detailStore,
		Movies:       db,
		Upstream:     tmdbClient,
		DetailTTL:    cfg.Cache.DetailTTL,
		FetchTimeout: cfg.TMDb.Timeout,
	})

	pipelineCfg := prefetch.DefaultPipelineConfig()
	if cfg.Prefetch.QueueBuffer > 0 {
		pipelineCfg.Buffer = cfg.Prefetch.QueueBuffer
	}
	if cfg.Prefetch.JobTimeout > 0 {
		pipelineCfg.JobTimeout = cfg.Prefetch.JobTimeout
	}
	pipelineCfg.LowPriorityPerSecond = cfg.Prefetch.ThrottlePerSecond
	pipeline := prefetch.NewPipeline(pipelineCfg, prefetch.NewHandler(loader), logging.NewWatermillLogger())
	defer func() {
		if err := pipeline.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing prefetch pipeline")
		}
	}()

	registry := prefetch.NewRegistry(prefetch.NewDispatcher(pipeline.Publisher()), prefetch.Options{
		Delay:         cfg.Prefetch.Delay,
		BatchPriority: models.ParsePriority(cfg.Prefetch.BatchPriority),
	})

	syncManager := sync.NewManager(db, tmdbClient, cfg.Sync)

	jwtManager, guest, err := setupAuth(db, cfg)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize authentication")
	}

	enforcer, err := authz.NewEnforcer(authz.EnforcerConfig{
		PolicyPath:     cfg.Security.CasbinPolicyPath,
		ReloadInterval: time.Minute,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize authorization")
	}
	defer enforcer.Close()

	handler := api.NewHandler(api.Dependencies{
		DB:       db,
		Loader:   loader,
		Prefetch: registry,
		Sync:     syncManager,
		JWT:      jwtManager,
		Breaker:  tmdbClient,
		Config:   cfg,
	})
	defer handler.Close()
	syncManager.OnSyncCompleted(handler.OnSyncCompleted)

	if cfg.Security.RateLimitDisabled {
		logging.Warn().Msg("Rate limiting is DISABLED (DISABLE_RATE_LIMIT=true)")
	}
	wildcardCORS := len(cfg.Security.CORSOrigins) == 1 && cfg.Security.CORSOrigins[0] == "*"
	if wildcardCORS && cfg.Security.AuthMode == config.AuthModeJWT {
		logging.Warn().Msg("CORS_ORIGINS=* with authentication enabled; set explicit origins in production")
	}

	router := api.NewRouter(handler,
		api.NewChiMiddleware(&api.ChiMiddlewareConfig{
			CORSAllowedOrigins:   cfg.Security.CORSOrigins,
			CORSAllowCredentials: !wildcardCORS,
			CORSMaxAge:           300,
			RateLimitRequests:    cfg.Security.RateLimitReqs,
			RateLimitWindow:      cfg.Security.RateLimitWindow,
			RateLimitDisabled:    cfg.Security.RateLimitDisabled,
		}),
		auth.NewMiddleware(jwtManager, cfg.Security.AuthMode, guest, api.WriteUnauthorized),
		authz.NewMiddleware(enforcer, api.WriteDenied),
	)

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router.SetupChi(),
		ReadTimeout:       cfg.Server.Timeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.Server.Timeout,
		IdleTimeout:       60 * time.Second,
	}

	watchLogLevel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())

	idle := cfg.Prefetch.IdleTimeout
	tree.Add(supervisor.LayerData, detailStore)
	tree.Add(supervisor.LayerData, services.NewCheckpointService(db, services.DefaultCheckpointInterval))
	tree.Add(supervisor.LayerData, prefetch.NewSweeper(registry, idle/2, idle))

	tree.Add(supervisor.LayerMessaging, pipeline)
	tree.Add(supervisor.LayerMessaging, syncManager)

	tree.Add(supervisor.LayerAPI, services.NewHTTPService(server, services.HTTPServiceConfig{
		Addr:     server.Addr,
		Prefetch: registry,
	}))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	errCh := tree.ServeBackground(ctx)
	if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Msg("Supervisor tree error")
	}

	for _, svc := range tree.Unstopped() {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}

	logging.Info().Msg("Cinifob stopped")
}

// setupAuth returns the JWT manager and, in none mode, the guest claims
// every request runs as. In jwt mode the admin account from configuration
// is created if it does not exist yet.
func setupAuth(db *database.DB, cfg *config.Config) (*auth.JWTManager, *auth.Claims, error) {
	ctx := context.Background()

	if cfg.Security.AuthMode == config.AuthModeNone {
		logging.Warn().Msg("Authentication is DISABLED (AUTH_MODE=none); every request acts as an admin guest")
		guest, err := ensureUser(ctx, db, "guest", "", models.RoleAdmin)
		if err != nil {
			return nil, nil, fmt.Errorf("guest user: %w", err)
		}
		return nil, auth.GuestClaims(guest.ID, guest.Username), nil
	}

	jwtManager, err := auth.NewJWTManager(&cfg.Security)
	if err != nil {
		return nil, nil, err
	}
	if cfg.Security.AdminUsername != "" && cfg.Security.AdminPassword != "" {
		if _, err := ensureUser(ctx, db, cfg.Security.AdminUsername, cfg.Security.AdminPassword, models.RoleAdmin); err != nil {
			return nil, nil, fmt.Errorf("admin user: %w", err)
		}
	}
	logging.Info().Dur("session_timeout", jwtManager.Timeout()).Msg("JWT authentication enabled")
	return jwtManager, nil, nil
}

// ensureUser returns the named user, creating it when missing. An empty
// password stores a hash no password matches.
func ensureUser(ctx context.Context, db *database.DB, username, password string, role models.Role) (*models.User, error) {
	user, err := db.GetUserByUsername(ctx, username)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, database.ErrUserNotFound) {
		return nil, err
	}

	hash := "!"
	if password != "" {
		if hash, err = auth.HashPassword(password); err != nil {
			return nil, err
		}
	}
	user, err = db.CreateUser(ctx, username, hash, role)
	if errors.Is(err, database.ErrUsernameTaken) {
		return db.GetUserByUsername(ctx, username)
	}
	if err != nil {
		return nil, err
	}
	logging.Info().Str("username", user.Username).Str("role", user.Role.String()).Msg("Created user")
	return user, nil
}

// watchLogLevel applies log level changes from the config file, if one
// is in use.
func watchLogLevel() {
	path := config.FindConfigFile()
	if path == "" {
		return
	}
	err := config.WatchConfigFile(path, func() {
		cfg, err := config.Load()
		if err != nil {
			logging.Warn().Err(err).Str("path", path).Msg("Ignoring invalid config change")
			return
		}
		logging.SetLevelString(cfg.Logging.Level)
		logging.Info().Str("level", cfg.Logging.Level).Msg("Log level reloaded")
	})
	if err != nil {
		logging.Warn().Err(err).Str("path", path).Msg("Config file watch unavailable")
	}
}
