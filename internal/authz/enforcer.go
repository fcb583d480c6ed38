// Cinifob - Movie Discovery and Watch Tracking
// Copyright 2026 hishamktd
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hishamktd/cinifob

// Package authz provides role-based authorization using Casbin. Roles come
// from the caller's token claims; objects name API areas (catalog, lists,
// ratings, comments, prefetch, sync).
package authz

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	fileadapter "github.com/casbin/casbin/v2/persist/file-adapter"
	stringadapter "github.com/casbin/casbin/v2/persist/string-adapter"

	"github.com/hishamktd/cinifob/internal/logging"
)

//go:embed model.conf
var embeddedModel string

//go:embed policy.csv
var embeddedPolicy string

// Actions used by the policy.
const (
	ActionRead  = "read"
	ActionWrite = "write"
)

// EnforcerConfig holds configuration for the Casbin enforcer.
type EnforcerConfig struct {
	// PolicyPath is a policy CSV on disk. If empty, the embedded policy is used.
	PolicyPath string

	// ReloadInterval reloads PolicyPath periodically when positive.
	ReloadInterval time.Duration

	// CacheTTL is how long decisions are cached. Defaults to 5 minutes.
	CacheTTL time.Duration
}

// Enforcer wraps the Casbin enforcer.
type Enforcer struct {
	config   EnforcerConfig
	enforcer *casbin.SyncedCachedEnforcer
}

// NewEnforcer creates an authorization enforcer from the embedded model.
func NewEnforcer(cfg EnforcerConfig) (*Enforcer, error) {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}

	m, err := model.NewModelFromString(embeddedModel)
	if err != nil {
		return nil, fmt.Errorf("failed to load casbin model: %w", err)
	}

	var enforcer *casbin.SyncedCachedEnforcer
	if cfg.PolicyPath != "" {
		if _, statErr := os.Stat(cfg.PolicyPath); statErr != nil {
			return nil, fmt.Errorf("casbin policy %s: %w", cfg.PolicyPath, statErr)
		}
		enforcer, err = casbin.NewSyncedCachedEnforcer(m, fileadapter.NewAdapter(cfg.PolicyPath))
	} else {
		enforcer, err = casbin.NewSyncedCachedEnforcer(m, stringadapter.NewAdapter(embeddedPolicy))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create casbin enforcer: %w", err)
	}
	enforcer.SetExpireTime(cfg.CacheTTL)

	if cfg.PolicyPath != "" && cfg.ReloadInterval > 0 {
		enforcer.StartAutoLoadPolicy(cfg.ReloadInterval)
	}

	logging.Debug().Str("policy", policySource(cfg)).Msg("Authorization enforcer ready")
	return &Enforcer{config: cfg, enforcer: enforcer}, nil
}

func policySource(cfg EnforcerConfig) string {
	if cfg.PolicyPath != "" {
		return cfg.PolicyPath
	}
	return "embedded"
}

// Enforce checks if role can perform action on object.
func (e *Enforcer) Enforce(role, object, action string) (bool, error) {
	allowed, err := e.enforcer.Enforce(role, object, action)
	if err != nil {
		return false, fmt.Errorf("enforcement failed: %w", err)
	}
	return allowed, nil
}

// LoadPolicy reloads the policy and clears cached decisions.
func (e *Enforcer) LoadPolicy() error {
	if err := e.enforcer.LoadPolicy(); err != nil {
		return fmt.Errorf("failed to reload policy: %w", err)
	}
	return nil
}

// Close stops automatic policy reloading.
func (e *Enforcer) Close() {
	e.enforcer.StopAutoLoadPolicy()
}
