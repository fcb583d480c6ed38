// Cinifob - Movie Discovery and Watch Tracking
// Copyright 2026 hishamktd
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hishamktd/cinifob

// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Database
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cinifob_db_query_duration_seconds",
			Help:    "Duration of DuckDB queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "table"},
	)

	DBQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cinifob_db_query_errors_total",
			Help: "Total number of DuckDB query errors",
		},
		[]string{"operation", "table"},
	)

	// API
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cinifob_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "route", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cinifob_api_request_duration_seconds",
			Help:    "API request latency in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method", "route"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cinifob_api_active_requests",
			Help: "Number of API requests currently being served",
		},
	)

	// TMDb
	TMDbRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cinifob_tmdb_requests_total",
			Help: "Total number of TMDb HTTP requests",
		},
		[]string{"endpoint", "status"},
	)

	TMDbRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cinifob_tmdb_request_duration_seconds",
			Help:    "TMDb request latency in seconds, retries included",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	TMDbRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cinifob_tmdb_rate_limit_retries_total",
			Help: "Total number of retries after HTTP 429 from TMDb",
		},
	)

	// Circuit breaker
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cinifob_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cinifob_circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // success, failure, rejected
	)

	CircuitBreakerConsecutiveFailures = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cinifob_circuit_breaker_consecutive_failures",
			Help: "Current number of consecutive failures",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cinifob_circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// Caches
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cinifob_cache_hits_total",
			Help: "Cache hits by tier",
		},
		[]string{"tier"}, // memory, store, database, list
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cinifob_cache_misses_total",
			Help: "Cache misses by tier",
		},
		[]string{"tier"},
	)

	CacheSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cinifob_cache_entries",
			Help: "Number of entries held by an in-memory cache",
		},
		[]string{"cache"},
	)

	// Prefetch
	PrefetchRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cinifob_prefetch_requests_total",
			Help: "Prefetch requests received by coordinators",
		},
		[]string{"kind"}, // single, batch, batch_immediate
	)

	PrefetchReplaced = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cinifob_prefetch_replaced_total",
			Help: "Pending prefetches replaced by a newer request before firing",
		},
	)

	PrefetchCancelled = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cinifob_prefetch_cancelled_total",
			Help: "Pending prefetches cancelled before firing",
		},
	)

	PrefetchDispatched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cinifob_prefetch_dispatched_total",
			Help: "Prefetches handed to the worker",
		},
		[]string{"kind"}, // single, batch
	)

	PrefetchJobs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cinifob_prefetch_jobs_total",
			Help: "Prefetch jobs processed by the worker",
		},
		[]string{"result"}, // ok, partial, failed, invalid, publish_error
	)

	PrefetchCoordinators = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cinifob_prefetch_coordinators",
			Help: "Live per-user prefetch coordinators",
		},
	)

	// Sync
	SyncDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cinifob_sync_duration_seconds",
			Help:    "Duration of TMDb metadata syncs",
			Buckets: []float64{.1, .5, 1, 5, 10, 30, 60, 120, 300},
		},
		[]string{"kind"}, // genres, movies
	)

	SyncItems = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cinifob_sync_items_total",
			Help: "Items upserted by metadata syncs",
		},
		[]string{"kind"},
	)

	SyncErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cinifob_sync_errors_total",
			Help: "Failed metadata syncs",
		},
		[]string{"kind"},
	)

	SyncLastSuccess = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cinifob_sync_last_success_timestamp_seconds",
			Help: "Unix time of the last successful sync",
		},
		[]string{"kind"},
	)
)

// RecordDBQuery records a database query metric.
func RecordDBQuery(operation, table string, duration time.Duration, err error) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
	if err != nil {
		DBQueryErrors.WithLabelValues(operation, table).Inc()
	}
}

// RecordAPIRequest records an API request metric.
func RecordAPIRequest(method, route, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, route, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// TrackActiveRequest tracks active API requests.
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordTMDbRequest records one logical TMDb call.
func RecordTMDbRequest(endpoint, status string, duration time.Duration) {
	TMDbRequests.WithLabelValues(endpoint, status).Inc()
	TMDbRequestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// RecordCacheLookup records a hit or miss on a cache tier.
func RecordCacheLookup(tier string, hit bool) {
	if hit {
		CacheHits.WithLabelValues(tier).Inc()
		return
	}
	CacheMisses.WithLabelValues(tier).Inc()
}

// RecordSync records a sync run of kind (genres or movies).
func RecordSync(kind string, duration time.Duration, items int, err error) {
	SyncDuration.WithLabelValues(kind).Observe(duration.Seconds())
	if err != nil {
		SyncErrors.WithLabelValues(kind).Inc()
		return
	}
	SyncItems.WithLabelValues(kind).Add(float64(items))
	SyncLastSuccess.WithLabelValues(kind).Set(float64(time.Now().Unix()))
}
