// Cinifob - Movie Discovery and Watch Tracking
// Copyright 2026 hishamktd
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hishamktd/cinifob

// Package config loads Cinifob configuration from defaults, an optional
// YAML file and environment variables (in that order of precedence).
package config

import "time"

// Config holds all application configuration.
type Config struct {
	TMDb     TMDbConfig     `koanf:"tmdb"`
	Prefetch PrefetchConfig `koanf:"prefetch"`
	Cache    CacheConfig    `koanf:"cache"`
	Database DatabaseConfig `koanf:"database"`
	Sync     SyncConfig     `koanf:"sync"`
	Server   ServerConfig   `koanf:"server"`
	API      APIConfig      `koanf:"api"`
	Security SecurityConfig `koanf:"security"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// TMDbConfig configures the upstream movie database.
// Either APIKey (v3) or ReadToken (v4 bearer) must be set.
type TMDbConfig struct {
	APIKey            string        `koanf:"api_key"`
	ReadToken         string        `koanf:"read_token"`
	BaseURL           string        `koanf:"base_url"`
	ImageBaseURL      string        `koanf:"image_base_url"`
	Language          string        `koanf:"language"`
	Region            string        `koanf:"region"`
	Timeout           time.Duration `koanf:"timeout"`
	RequestsPerSecond float64       `koanf:"requests_per_second"`
	MaxRetries        int           `koanf:"max_retries"`
	RetryBaseDelay    time.Duration `koanf:"retry_base_delay"`
}

// PrefetchConfig tunes the hover prefetch coordinator and its worker.
type PrefetchConfig struct {
	Delay             time.Duration `koanf:"delay"`
	BatchPriority     string        `koanf:"batch_priority"`
	MaxBatchSize      int           `koanf:"max_batch_size"`
	IdleTimeout       time.Duration `koanf:"idle_timeout"`
	QueueBuffer       int64         `koanf:"queue_buffer"`
	ThrottlePerSecond int64         `koanf:"throttle_per_second"`
	JobTimeout        time.Duration `koanf:"job_timeout"`
}

// CacheConfig configures the movie detail cache tiers.
type CacheConfig struct {
	MemoryTTL time.Duration `koanf:"memory_ttl"`
	DetailTTL time.Duration `koanf:"detail_ttl"`
	ListTTL   time.Duration `koanf:"list_ttl"`
	StorePath string        `koanf:"store_path"`
	// InMemory runs the detail store without touching disk.
	InMemory bool `koanf:"in_memory"`
}

// DatabaseConfig holds DuckDB settings.
type DatabaseConfig struct {
	Path        string `koanf:"path"`
	MaxMemory   string `koanf:"max_memory"`
	Threads     int    `koanf:"threads"`
	SkipIndexes bool   `koanf:"skip_indexes"`
}

// SyncConfig controls the periodic TMDb metadata sync.
type SyncConfig struct {
	Enabled   bool          `koanf:"enabled"`
	OnStartup bool          `koanf:"on_startup"`
	Interval  time.Duration `koanf:"interval"`
	Pages     int           `koanf:"pages"`
	BatchSize int           `koanf:"batch_size"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port        int           `koanf:"port"`
	Host        string        `koanf:"host"`
	Timeout     time.Duration `koanf:"timeout"`
	Environment string        `koanf:"environment"`
}

// APIConfig holds pagination limits.
type APIConfig struct {
	DefaultPageSize int `koanf:"default_page_size"`
	MaxPageSize     int `koanf:"max_page_size"`
}

// SecurityConfig holds authentication, authorization and rate limiting settings.
type SecurityConfig struct {
	AuthMode          string        `koanf:"auth_mode"`
	JWTSecret         string        `koanf:"jwt_secret"`
	SessionTimeout    time.Duration `koanf:"session_timeout"`
	AdminUsername     string        `koanf:"admin_username"`
	AdminPassword     string        `koanf:"admin_password"`
	RateLimitReqs     int           `koanf:"rate_limit_requests"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
	CORSOrigins       []string      `koanf:"cors_origins"`
	CookieSecure      bool          `koanf:"cookie_secure"`
	// CasbinPolicyPath overrides the embedded authorization policy.
	CasbinPolicyPath string `koanf:"casbin_policy_path"`
}

// LoggingConfig mirrors logging.Config.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// AuthModeNone disables authentication; every request runs as a built-in guest.
const AuthModeNone = "none"

// AuthModeJWT requires a bearer token or token cookie.
const AuthModeJWT = "jwt"

// IsProduction reports whether the server runs with production checks.
func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}
