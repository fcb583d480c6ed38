// Cinifob - Movie Discovery and Watch Tracking
// Copyright 2026 hishamktd
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hishamktd/cinifob

package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/hishamktd/cinifob/internal/models"
)

const (
	minPrefetchDelay = 10 * time.Millisecond
	maxPrefetchDelay = 10 * time.Second
	minJWTSecretLen  = 32
)

// Validate checks that required configuration is present and valid.
func (c *Config) Validate() error {
	if err := c.validateTMDb(); err != nil {
		return err
	}
	if err := c.validatePrefetch(); err != nil {
		return err
	}
	if err := c.validateCache(); err != nil {
		return err
	}
	if err := c.validateSync(); err != nil {
		return err
	}
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateAPI(); err != nil {
		return err
	}
	if err := c.validateSecurity(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateTMDb() error {
	if c.TMDb.APIKey == "" && c.TMDb.ReadToken == "" {
		return fmt.Errorf("TMDB_API_KEY or TMDB_READ_TOKEN is required")
	}
	if err := validateHTTPURL(c.TMDb.BaseURL, "TMDB_BASE_URL"); err != nil {
		return err
	}
	if err := validateHTTPURL(c.TMDb.ImageBaseURL, "TMDB_IMAGE_BASE_URL"); err != nil {
		return err
	}
	if c.TMDb.Timeout <= 0 {
		return fmt.Errorf("TMDB_TIMEOUT must be positive")
	}
	if c.TMDb.RequestsPerSecond <= 0 {
		return fmt.Errorf("TMDB_REQUESTS_PER_SECOND must be positive")
	}
	if c.TMDb.MaxRetries < 0 || c.TMDb.MaxRetries > 10 {
		return fmt.Errorf("TMDB_MAX_RETRIES must be between 0 and 10")
	}
	return nil
}

func (c *Config) validatePrefetch() error {
	if c.Prefetch.Delay < minPrefetchDelay || c.Prefetch.Delay > maxPrefetchDelay {
		return fmt.Errorf("PREFETCH_DELAY must be between %v and %v, got %v",
			minPrefetchDelay, maxPrefetchDelay, c.Prefetch.Delay)
	}
	if !models.Priority(strings.ToLower(c.Prefetch.BatchPriority)).Valid() {
		return fmt.Errorf("PREFETCH_BATCH_PRIORITY must be low, normal or high, got %q", c.Prefetch.BatchPriority)
	}
	if c.Prefetch.MaxBatchSize < 1 || c.Prefetch.MaxBatchSize > 1000 {
		return fmt.Errorf("PREFETCH_MAX_BATCH_SIZE must be between 1 and 1000")
	}
	if c.Prefetch.IdleTimeout < time.Minute {
		return fmt.Errorf("PREFETCH_IDLE_TIMEOUT must be at least 1m")
	}
	if c.Prefetch.QueueBuffer < 0 {
		return fmt.Errorf("PREFETCH_QUEUE_BUFFER must not be negative")
	}
	return nil
}

func (c *Config) validateCache() error {
	if c.Cache.MemoryTTL <= 0 || c.Cache.DetailTTL <= 0 || c.Cache.ListTTL <= 0 {
		return fmt.Errorf("cache TTLs must be positive")
	}
	if !c.Cache.InMemory && c.Cache.StorePath == "" {
		return fmt.Errorf("DETAIL_STORE_PATH is required unless DETAIL_STORE_IN_MEMORY=true")
	}
	return nil
}

func (c *Config) validateSync() error {
	if !c.Sync.Enabled {
		return nil
	}
	if c.Sync.Interval < time.Minute {
		return fmt.Errorf("SYNC_INTERVAL must be at least 1m")
	}
	if c.Sync.Pages < 1 || c.Sync.Pages > 500 {
		return fmt.Errorf("SYNC_PAGES must be between 1 and 500")
	}
	if c.Sync.BatchSize < 1 {
		return fmt.Errorf("SYNC_BATCH_SIZE must be positive")
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535")
	}
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be positive")
	}
	return nil
}

func (c *Config) validateAPI() error {
	if c.API.DefaultPageSize < 1 || c.API.DefaultPageSize > c.API.MaxPageSize {
		return fmt.Errorf("API_DEFAULT_PAGE_SIZE must be between 1 and API_MAX_PAGE_SIZE")
	}
	return nil
}

func (c *Config) validateSecurity() error {
	switch c.Security.AuthMode {
	case AuthModeNone:
		if c.IsProduction() {
			return fmt.Errorf("AUTH_MODE=none is not allowed when ENVIRONMENT=production")
		}
		return nil
	case AuthModeJWT:
	default:
		return fmt.Errorf("AUTH_MODE must be jwt or none, got %q", c.Security.AuthMode)
	}

	if len(c.Security.JWTSecret) < minJWTSecretLen {
		return fmt.Errorf("JWT_SECRET must be at least %d characters", minJWTSecretLen)
	}
	if c.Security.SessionTimeout < time.Minute {
		return fmt.Errorf("SESSION_TIMEOUT must be at least 1m")
	}
	if (c.Security.AdminUsername == "") != (c.Security.AdminPassword == "") {
		return fmt.Errorf("ADMIN_USERNAME and ADMIN_PASSWORD must be set together")
	}
	if c.Security.AdminPassword != "" && len(c.Security.AdminPassword) < 8 {
		return fmt.Errorf("ADMIN_PASSWORD must be at least 8 characters")
	}
	if !c.Security.RateLimitDisabled && (c.Security.RateLimitReqs < 1 || c.Security.RateLimitWindow <= 0) {
		return fmt.Errorf("RATE_LIMIT_REQUESTS and RATE_LIMIT_WINDOW must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(c.Logging.Level) {
	case "trace", "debug", "info", "warn", "warning", "error", "fatal", "disabled":
	default:
		return fmt.Errorf("LOG_LEVEL %q is not recognised", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
		return nil
	default:
		return fmt.Errorf("LOG_FORMAT must be json or console, got %q", c.Logging.Format)
	}
}
