// Cinifob - Movie Discovery and Watch Tracking
// Copyright 2026 hishamktd
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hishamktd/cinifob

package api

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/hishamktd/cinifob/internal/auth"
	"github.com/hishamktd/cinifob/internal/authz"
	"github.com/hishamktd/cinifob/internal/cache"
	"github.com/hishamktd/cinifob/internal/catalog"
	"github.com/hishamktd/cinifob/internal/config"
	"github.com/hishamktd/cinifob/internal/database"
	"github.com/hishamktd/cinifob/internal/models"
	"github.com/hishamktd/cinifob/internal/prefetch"
	syncpkg "github.com/hishamktd/cinifob/internal/sync"
	"github.com/hishamktd/cinifob/internal/tmdb"
)

const testSecret = "test-secret-that-is-at-least-32-characters-long"

// testDBSemaphore limits concurrent DuckDB instances in tests.
var testDBSemaphore = make(chan struct{}, 2)

// fakeTMDb serves a fixed catalog.
type fakeTMDb struct {
	mu      sync.Mutex
	details map[int]*models.MovieDetail
	genres  []models.Genre
	popular []models.Movie
	calls   atomic.Int32
}

func newFakeTMDb() *fakeTMDb {
	return &fakeTMDb{details: make(map[int]*models.MovieDetail)}
}

func (f *fakeTMDb) Ping(context.Context) error { return nil }

func (f *fakeTMDb) Genres(context.Context) ([]models.Genre, error) {
	return f.genres, nil
}

func (f *fakeTMDb) Popular(_ context.Context, page int) (*tmdb.Page, error) {
	if page > 1 {
		return &tmdb.Page{Page: page, TotalPages: 1}, nil
	}
	return &tmdb.Page{Page: 1, TotalPages: 1, TotalResults: len(f.popular), Results: f.popular}, nil
}

func (f *fakeTMDb) Discover(context.Context, tmdb.DiscoverParams) (*tmdb.Page, error) {
	return &tmdb.Page{}, nil
}

func (f *fakeTMDb) Search(context.Context, string, int) (*tmdb.Page, error) {
	return &tmdb.Page{}, nil
}

func (f *fakeTMDb) Movie(_ context.Context, id int) (*models.MovieDetail, error) {
	f.calls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.details[id]
	if !ok {
		return nil, tmdb.ErrNotFound
	}
	cp := *d
	cp.DetailsFetchedAt = time.Now()
	return &cp, nil
}

func (f *fakeTMDb) addDetail(d models.MovieDetail) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.details[d.ID] = &d
}

// recordingWorker records prefetch dispatches.
type recordingWorker struct {
	mu      sync.Mutex
	singles []int
	batches [][]int
}

func (w *recordingWorker) Prefetch(id int, _ models.Priority) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.singles = append(w.singles, id)
}

func (w *recordingWorker) PrefetchBatch(ids []int, _ models.Priority) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.batches = append(w.batches, ids)
}

func (w *recordingWorker) snapshot() ([]int, [][]int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]int(nil), w.singles...), append([][]int(nil), w.batches...)
}

type testServer struct {
	t       *testing.T
	db      *database.DB
	tmdb    *fakeTMDb
	worker  *recordingWorker
	clock   *prefetch.ManualClock
	handler *Handler
	jwt     *auth.JWTManager
	mux     http.Handler
}

// envelope is APIResponse with Data left raw for per-test decoding.
type envelope struct {
	Success  bool            `json:"success"`
	Data     json.RawMessage `json:"data"`
	Error    *APIError       `json:"error"`
	Metadata Metadata        `json:"metadata"`
}

func newTestServer(t *testing.T, mutate func(*config.Config)) *testServer {
	t.Helper()

	testDBSemaphore <- struct{}{}
	t.Cleanup(func() { <-testDBSemaphore })

	cfg := &config.Config{
		Security: config.SecurityConfig{
			AuthMode:          config.AuthModeJWT,
			JWTSecret:         testSecret,
			SessionTimeout:    time.Hour,
			RateLimitDisabled: true,
		},
		Prefetch: config.PrefetchConfig{MaxBatchSize: 100},
		Cache:    config.CacheConfig{ListTTL: time.Minute},
	}
	if mutate != nil {
		mutate(cfg)
	}

	db, err := database.New(&config.DatabaseConfig{Path: ":memory:", MaxMemory: "256MB", Threads: 1, SkipIndexes: true})
	if err != nil {
		t.Fatalf("database.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	memory := cache.New("api_test", time.Minute)
	t.Cleanup(memory.Close)

	upstream := newFakeTMDb()
	loader := catalog.NewDetailLoader(catalog.Config{
		Memory:    memory,
		Movies:    db,
		Upstream:  upstream,
		DetailTTL: time.Hour,
	})

	worker := &recordingWorker{}
	clock := prefetch.NewManualClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	registry := prefetch.NewRegistry(worker, prefetch.Options{Clock: clock})

	manager := syncpkg.NewManager(db, upstream, config.SyncConfig{BatchSize: 10})

	jwtManager, err := auth.NewJWTManager(&cfg.Security)
	if err != nil {
		t.Fatalf("NewJWTManager: %v", err)
	}
	enforcer, err := authz.NewEnforcer(authz.EnforcerConfig{})
	if err != nil {
		t.Fatalf("NewEnforcer: %v", err)
	}
	t.Cleanup(enforcer.Close)

	var guest *auth.Claims
	if cfg.Security.AuthMode == config.AuthModeNone {
		user, err := db.CreateUser(context.Background(), "guest", "!", models.RoleAdmin)
		if err != nil {
			t.Fatalf("CreateUser(guest): %v", err)
		}
		guest = auth.GuestClaims(user.ID, user.Username)
	}

	handler := NewHandler(Dependencies{
		DB:       db,
		Loader:   loader,
		Prefetch: registry,
		Sync:     manager,
		JWT:      jwtManager,
		Config:   cfg,
	})
	t.Cleanup(handler.Close)
	manager.OnSyncCompleted(handler.OnSyncCompleted)

	router := NewRouter(handler,
		NewChiMiddleware(&ChiMiddlewareConfig{RateLimitDisabled: cfg.Security.RateLimitDisabled}),
		auth.NewMiddleware(jwtManager, cfg.Security.AuthMode, guest, WriteUnauthorized),
		authz.NewMiddleware(enforcer, WriteDenied),
	)

	return &testServer{
		t:       t,
		db:      db,
		tmdb:    upstream,
		worker:  worker,
		clock:   clock,
		handler: handler,
		jwt:     jwtManager,
		mux:     router.SetupChi(),
	}
}

// userToken creates a user directly in the database and returns a token.
func (s *testServer) userToken(username string, role models.Role) (string, *models.User) {
	s.t.Helper()
	user, err := s.db.CreateUser(context.Background(), username, "unused-hash", role)
	if err != nil {
		s.t.Fatalf("CreateUser(%s): %v", username, err)
	}
	token, err := s.jwt.GenerateToken(user.ID, user.Username, user.Role.String())
	if err != nil {
		s.t.Fatalf("GenerateToken: %v", err)
	}
	return token, user
}

// seed loads genres 28 Action and 18 Drama and three movies.
func (s *testServer) seed() {
	s.t.Helper()
	ctx := context.Background()
	if _, err := s.db.UpsertGenres(ctx, []models.Genre{{ID: 28, Name: "Action"}, {ID: 18, Name: "Drama"}}); err != nil {
		s.t.Fatalf("UpsertGenres: %v", err)
	}
	movies := []models.Movie{
		{ID: 1, Title: "Heat", ReleaseDate: "1995-12-15", Popularity: 50, VoteAverage: 8.3, VoteCount: 9000, GenreIDs: []int{28, 18}},
		{ID: 2, Title: "Drive", ReleaseDate: "2011-09-16", Popularity: 80, VoteAverage: 7.6, VoteCount: 12000, GenreIDs: []int{28}},
		{ID: 3, Title: "Moonlight", ReleaseDate: "2016-10-21", Popularity: 30, VoteAverage: 7.4, VoteCount: 7000, GenreIDs: []int{18}},
	}
	if _, err := s.db.UpsertMovies(ctx, movies); err != nil {
		s.t.Fatalf("UpsertMovies: %v", err)
	}
}

// do sends a request. body may be nil, a string or a value to encode.
func (s *testServer) do(method, path string, body any, token string) (*httptest.ResponseRecorder, envelope) {
	s.t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		data, err := json.Marshal(b)
		if err != nil {
			s.t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 && rec.Header().Get("Content-Type") == "application/json; charset=utf-8" {
		if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
			s.t.Fatalf("%s %s: decode envelope: %v\n%s", method, path, err, rec.Body.String())
		}
	}
	return rec, env
}

// decodeData unmarshals env.Data into dst.
func decodeData(t *testing.T, env envelope, dst any) {
	t.Helper()
	if err := json.Unmarshal(env.Data, dst); err != nil {
		t.Fatalf("decode data: %v\n%s", err, env.Data)
	}
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("status = %d, want %d\n%s", rec.Code, want, rec.Body.String())
	}
}

func expectErrorCode(t *testing.T, env envelope, want string) {
	t.Helper()
	if env.Success || env.Error == nil {
		t.Fatalf("expected error envelope with %s, got success=%v", want, env.Success)
	}
	if env.Error.Code != want {
		t.Errorf("error code = %q, want %q (%s)", env.Error.Code, want, env.Error.Message)
	}
}
