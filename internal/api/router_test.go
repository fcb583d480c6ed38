// Cinifob - Movie Discovery and Watch Tracking
// Copyright 2026 hishamktd
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hishamktd/cinifob

package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hishamktd/cinifob/internal/config"
	"github.com/hishamktd/cinifob/internal/middleware"
	"github.com/hishamktd/cinifob/internal/models"
)

func TestHealthEndpoints(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, nil)

	rec, env := s.do(http.MethodGet, "/api/v1/health", nil, "")
	expectStatus(t, rec, http.StatusOK)
	var health HealthStatus
	decodeData(t, env, &health)
	if health.Status != "healthy" || !health.DatabaseConnected || health.SchemaVersion == 0 {
		t.Errorf("health = %+v", health)
	}

	for _, path := range []string{"/api/v1/health/live", "/api/v1/health/ready"} {
		rec, _ := s.do(http.MethodGet, path, nil, "")
		expectStatus(t, rec, http.StatusOK)
	}
}

func TestHealthReportsCoordinators(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, nil)
	token, _ := s.userToken("viewer", models.RoleUser)

	s.do(http.MethodPost, "/api/v1/prefetch", map[string]any{"movie_id": 1}, token)

	_, env := s.do(http.MethodGet, "/api/v1/health", nil, "")
	var health HealthStatus
	decodeData(t, env, &health)
	if health.PrefetchCoordinators != 1 {
		t.Errorf("prefetch_coordinators = %d, want 1", health.PrefetchCoordinators)
	}
}

func TestAuthenticationRequired(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, nil)

	tests := []struct {
		name  string
		token string
	}{
		{"no token", ""},
		{"garbage token", "not-a-jwt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, env := s.do(http.MethodGet, "/api/v1/movies", nil, tt.token)
			expectStatus(t, rec, http.StatusUnauthorized)
			expectErrorCode(t, env, ErrCodeUnauthorized)
		})
	}
}

func TestAuthModeNone(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, func(cfg *config.Config) { cfg.Security.AuthMode = config.AuthModeNone })
	s.seed()

	rec, _ := s.do(http.MethodGet, "/api/v1/movies", nil, "")
	expectStatus(t, rec, http.StatusOK)

	rec, _ = s.do(http.MethodPut, "/api/v1/watchlist/1", nil, "")
	expectStatus(t, rec, http.StatusOK)

	s.tmdb.genres = []models.Genre{{ID: 28, Name: "Action"}}
	rec, _ = s.do(http.MethodPost, "/api/v1/sync/genres", nil, "")
	expectStatus(t, rec, http.StatusOK)
}

func TestNotFoundAndMethodNotAllowed(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, nil)

	rec, env := s.do(http.MethodGet, "/api/v1/nope", nil, "")
	expectStatus(t, rec, http.StatusNotFound)
	expectErrorCode(t, env, ErrCodeNotFound)

	rec, env = s.do(http.MethodPatch, "/api/v1/auth/login", nil, "")
	expectStatus(t, rec, http.StatusMethodNotAllowed)
	if env.Success || env.Error == nil {
		t.Error("405 without an error envelope")
	}
}

func TestRequestIDPropagation(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health/live", nil)
	req.Header.Set(middleware.RequestIDHeader, "trace-abc-123")
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)

	if got := rec.Header().Get(middleware.RequestIDHeader); got != "trace-abc-123" {
		t.Errorf("echoed request id = %q", got)
	}
	if !strings.Contains(rec.Body.String(), `"request_id":"trace-abc-123"`) {
		t.Errorf("body lacks request id: %s", rec.Body.String())
	}

	rec2, env := s.do(http.MethodGet, "/api/v1/health/live", nil, "")
	if id := rec2.Header().Get(middleware.RequestIDHeader); id == "" || env.Metadata.RequestID != id {
		t.Errorf("generated request id header %q, metadata %q", id, env.Metadata.RequestID)
	}
}

func TestSecurityHeadersAndMetrics(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, nil)

	rec, _ := s.do(http.MethodGet, "/api/v1/health/live", nil, "")
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Errorf("missing nosniff header: %v", rec.Header())
	}

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	metricsRec := httptest.NewRecorder()
	s.mux.ServeHTTP(metricsRec, req)
	expectStatus(t, metricsRec, http.StatusOK)
	if !strings.Contains(metricsRec.Body.String(), "cinifob_api_requests_total") {
		t.Error("metrics output lacks cinifob_api_requests_total")
	}
}
