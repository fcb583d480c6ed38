// Cinifob - Movie Discovery and Watch Tracking
// Copyright 2026 hishamktd
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hishamktd/cinifob

package api

import (
	"net/http"
	"time"
)

// HealthStatus is the body of GET /api/v1/health.
type HealthStatus struct {
	Status               string     `json:"status"`
	DatabaseConnected    bool       `json:"database_connected"`
	SchemaVersion        int        `json:"schema_version,omitempty"`
	TMDbCircuit          string     `json:"tmdb_circuit,omitempty"`
	LastSyncTime         *time.Time `json:"last_sync_time,omitempty"`
	PrefetchCoordinators int        `json:"prefetch_coordinators"`
	UptimeSeconds        float64    `json:"uptime_seconds"`
}

// Health reports database connectivity, the TMDb circuit state and sync
// progress. It returns 200 even when degraded; use HealthReady for probes.
//
// GET /api/v1/health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	ctx := r.Context()

	status := HealthStatus{Status: "healthy", UptimeSeconds: time.Since(h.startTime).Seconds()}

	status.DatabaseConnected = h.db != nil && h.db.Ping(ctx) == nil
	if status.DatabaseConnected {
		if v, err := h.db.SchemaVersion(ctx); err == nil {
			status.SchemaVersion = v
		}
	} else {
		status.Status = "degraded"
	}

	if h.breaker != nil {
		status.TMDbCircuit = h.breaker.State()
		if status.TMDbCircuit == "open" {
			status.Status = "degraded"
		}
	}
	if h.sync != nil {
		if last := h.sync.LastSyncTime(); !last.IsZero() {
			status.LastSyncTime = &last
		}
	}
	if h.registry != nil {
		status.PrefetchCoordinators = h.registry.Len()
	}

	rw.Success(status)
}

// HealthLive always succeeds while the process serves HTTP.
//
// GET /api/v1/health/live
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).Success(map[string]string{"status": "alive"})
}

// HealthReady fails with 503 until the database answers.
//
// GET /api/v1/health/ready
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	if h.db == nil || h.db.Ping(r.Context()) != nil {
		rw.Error(http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "database unavailable")
		return
	}
	rw.Success(map[string]string{"status": "ready"})
}
