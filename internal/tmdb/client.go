// Cinifob - Movie Discovery and Watch Tracking
// Copyright 2026 hishamktd
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hishamktd/cinifob

/*
Package tmdb is the HTTP client for The Movie Database (TMDb) v3 API.

Client Features:
  - v4 read token (Authorization: Bearer) or v3 api_key authentication
  - Token-bucket rate limiting of outbound requests
  - Automatic HTTP 429 handling with exponential backoff and Retry-After
  - Image path expansion to absolute URLs
  - Circuit breaker wrapper (CircuitBreakerClient)
*/
package tmdb

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/hishamktd/cinifob/internal/config"
	"github.com/hishamktd/cinifob/internal/logging"
	"github.com/hishamktd/cinifob/internal/metrics"
	"github.com/hishamktd/cinifob/internal/models"
)

// DefaultBaseURL is the TMDb v3 API root.
const DefaultBaseURL = "https://api.themoviedb.org/3"

// maxErrorBodySize limits how much of an error response body is kept.
const maxErrorBodySize = 64 * 1024

var (
	// ErrNotFound is returned for HTTP 404.
	ErrNotFound = errors.New("tmdb: not found")

	// ErrUnauthorized is returned for HTTP 401 (bad or missing credentials).
	ErrUnauthorized = errors.New("tmdb: unauthorized")

	// ErrRateLimited is returned when retries for HTTP 429 are exhausted.
	ErrRateLimited = errors.New("tmdb: rate limit exceeded")
)

// StatusError reports a non-2xx response that has no dedicated sentinel.
type StatusError struct {
	Endpoint   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("tmdb %s failed with status %d: %s", e.Endpoint, e.StatusCode, e.Body)
}

// readBodyForError reads at most maxErrorBodySize bytes of r.
func readBodyForError(r io.Reader) []byte {
	body, err := io.ReadAll(io.LimitReader(r, maxErrorBodySize))
	if err != nil {
		return []byte("(failed to read response body)")
	}
	if len(body) == maxErrorBodySize {
		return append(body, []byte("\n... (truncated)")...)
	}
	return body
}

// Client is the set of TMDb operations Cinifob uses. Implemented by
// HTTPClient and CircuitBreakerClient.
type Client interface {
	Ping(ctx context.Context) error
	Genres(ctx context.Context) ([]models.Genre, error)
	Popular(ctx context.Context, page int) (*Page, error)
	Discover(ctx context.Context, params DiscoverParams) (*Page, error)
	Search(ctx context.Context, query string, page int) (*Page, error)
	Movie(ctx context.Context, id int) (*models.MovieDetail, error)
}

// Page is one page of a TMDb movie listing.
type Page struct {
	Page         int            `json:"page"`
	Results      []models.Movie `json:"results"`
	TotalPages   int            `json:"total_pages"`
	TotalResults int            `json:"total_results"`
}

// DiscoverParams filters GET /discover/movie. Zero values are omitted.
type DiscoverParams struct {
	GenreID int
	Year    int
	SortBy  string // e.g. popularity.desc, vote_average.desc
	Page    int
}

func (p DiscoverParams) values() url.Values {
	v := url.Values{}
	if p.GenreID > 0 {
		v.Set("with_genres", strconv.Itoa(p.GenreID))
	}
	if p.Year > 0 {
		v.Set("primary_release_year", strconv.Itoa(p.Year))
	}
	if p.SortBy != "" {
		v.Set("sort_by", p.SortBy)
	}
	v.Set("page", strconv.Itoa(normalizePage(p.Page)))
	return v
}

// HTTPClient talks to the TMDb REST API.
//
//	client := tmdb.NewHTTPClient(&cfg.TMDb)
//	detail, err := client.Movie(ctx, 550)
type HTTPClient struct {
	baseURL        string
	imageBaseURL   string
	apiKey         string
	readToken      string
	language       string
	region         string
	client         *http.Client
	limiter        *rate.Limiter
	maxRetries     int
	retryBaseDelay time.Duration
	now            func() time.Time
}

var _ Client = (*HTTPClient)(nil)

// NewHTTPClient creates a client from cfg. Zero values fall back to
// defaults: 10s timeout, 40 req/s, 5 retries, 1s base delay.
func NewHTTPClient(cfg *config.TMDbConfig) *HTTPClient {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 40
	}
	maxRetries := cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	retryBaseDelay := cfg.RetryBaseDelay
	if retryBaseDelay <= 0 {
		retryBaseDelay = time.Second
	}

	return &HTTPClient{
		baseURL:        baseURL,
		imageBaseURL:   strings.TrimRight(cfg.ImageBaseURL, "/"),
		apiKey:         cfg.APIKey,
		readToken:      cfg.ReadToken,
		language:       cfg.Language,
		region:         cfg.Region,
		client:         &http.Client{Timeout: timeout},
		limiter:        rate.NewLimiter(rate.Limit(rps), int(rps)+1),
		maxRetries:     maxRetries,
		retryBaseDelay: retryBaseDelay,
		now:            time.Now,
	}
}

// doRequestWithRateLimit waits for the limiter, sends the request and
// retries HTTP 429 with exponential backoff (base, 2x, 4x, ...). A numeric
// Retry-After header overrides the computed delay.
func (c *HTTPClient) doRequestWithRateLimit(ctx context.Context, reqURL string) (*http.Response, error) {
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		if c.readToken != "" {
			req.Header.Set("Authorization", "Bearer "+c.readToken)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("HTTP request failed: %w", err)
		}

		if resp.StatusCode != http.StatusTooManyRequests {
			return resp, nil
		}

		_ = resp.Body.Close()

		if attempt == c.maxRetries {
			break
		}

		delay := c.retryBaseDelay * time.Duration(1<<uint(attempt))
		if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" {
			if seconds, err := strconv.Atoi(retryAfter); err == nil && seconds >= 0 {
				delay = time.Duration(seconds) * time.Second
			}
		}

		metrics.TMDbRetries.Inc()
		logging.Debug().Int("attempt", attempt+1).Dur("delay", delay).Msg("TMDb rate limited, backing off")

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		}
	}

	return nil, fmt.Errorf("%w after %d retries (HTTP 429)", ErrRateLimited, c.maxRetries)
}

func (c *HTTPClient) buildURL(path string, params url.Values) string {
	if params == nil {
		params = url.Values{}
	}
	if c.readToken == "" && c.apiKey != "" {
		params.Set("api_key", c.apiKey)
	}
	if c.language != "" && params.Get("language") == "" {
		params.Set("language", c.language)
	}
	if encoded := params.Encode(); encoded != "" {
		return c.baseURL + path + "?" + encoded
	}
	return c.baseURL + path
}

// get performs GET path and decodes the body into result. endpoint is the
// metrics label and must not contain ids.
func (c *HTTPClient) get(ctx context.Context, endpoint, path string, params url.Values, result interface{}) error {
	start := time.Now()
	status := "error"
	defer func() {
		metrics.RecordTMDbRequest(endpoint, status, time.Since(start))
	}()

	resp, err := c.doRequestWithRateLimit(ctx, c.buildURL(path, params))
	if err != nil {
		if errors.Is(err, ErrRateLimited) {
			status = "429"
		}
		return fmt.Errorf("tmdb %s: %w", endpoint, err)
	}
	defer resp.Body.Close()
	status = strconv.Itoa(resp.StatusCode)

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("tmdb %s: %w", endpoint, ErrNotFound)
	case resp.StatusCode == http.StatusUnauthorized:
		return fmt.Errorf("tmdb %s: %w", endpoint, ErrUnauthorized)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return &StatusError{Endpoint: endpoint, StatusCode: resp.StatusCode, Body: string(readBodyForError(resp.Body))}
	}

	if result == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode tmdb %s response: %w", endpoint, err)
	}
	return nil
}

// Ping verifies credentials and connectivity via GET /configuration.
func (c *HTTPClient) Ping(ctx context.Context) error {
	return c.get(ctx, "configuration", "/configuration", nil, nil)
}

// Genres returns the movie genre list.
func (c *HTTPClient) Genres(ctx context.Context) ([]models.Genre, error) {
	var resp struct {
		Genres []models.Genre `json:"genres"`
	}
	if err := c.get(ctx, "genre_list", "/genre/movie/list", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Genres, nil
}

// Popular returns one page of currently popular movies.
func (c *HTTPClient) Popular(ctx context.Context, page int) (*Page, error) {
	params := url.Values{}
	params.Set("page", strconv.Itoa(normalizePage(page)))
	if c.region != "" {
		params.Set("region", c.region)
	}
	return c.listing(ctx, "popular", "/movie/popular", params)
}

// Discover returns one page of movies matching params.
func (c *HTTPClient) Discover(ctx context.Context, params DiscoverParams) (*Page, error) {
	return c.listing(ctx, "discover", "/discover/movie", params.values())
}

// Search returns one page of movies whose title matches query.
func (c *HTTPClient) Search(ctx context.Context, query string, page int) (*Page, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return &Page{Page: 1}, nil
	}
	params := url.Values{}
	params.Set("query", query)
	params.Set("page", strconv.Itoa(normalizePage(page)))
	return c.listing(ctx, "search", "/search/movie", params)
}

// Movie returns the full detail record of one movie.
func (c *HTTPClient) Movie(ctx context.Context, id int) (*models.MovieDetail, error) {
	if id <= 0 {
		return nil, fmt.Errorf("tmdb movie: %w", ErrNotFound)
	}
	var detail models.MovieDetail
	if err := c.get(ctx, "movie", "/movie/"+strconv.Itoa(id), nil, &detail); err != nil {
		return nil, err
	}

	detail.GenreIDs = detail.GenreIDs[:0]
	for _, g := range detail.Genres {
		detail.GenreIDs = append(detail.GenreIDs, g.ID)
	}
	c.expandImages(&detail.Movie)
	detail.DetailsFetchedAt = c.now().UTC()
	return &detail, nil
}

func (c *HTTPClient) listing(ctx context.Context, endpoint, path string, params url.Values) (*Page, error) {
	var page Page
	if err := c.get(ctx, endpoint, path, params, &page); err != nil {
		return nil, err
	}
	for i := range page.Results {
		c.expandImages(&page.Results[i])
	}
	return &page, nil
}

// expandImages turns TMDb's relative image paths into absolute URLs.
func (c *HTTPClient) expandImages(m *models.Movie) {
	m.PosterPath = c.ImageURL(m.PosterPath)
	m.BackdropPath = c.ImageURL(m.BackdropPath)
}

// ImageURL expands a TMDb image path. Empty paths and paths that are
// already absolute are returned unchanged.
func (c *HTTPClient) ImageURL(path string) string {
	if path == "" || c.imageBaseURL == "" || strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.imageBaseURL + path
}

// normalizePage clamps page to TMDb's accepted range 1..500.
func normalizePage(page int) int {
	switch {
	case page < 1:
		return 1
	case page > 500:
		return 500
	default:
		return page
	}
}
