// Cinifob - Movie Discovery and Watch Tracking
// Copyright 2026 hishamktd
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hishamktd/cinifob

/*
Package main is the entry point for the Cinifob server.

Cinifob serves a movie catalog synced from TMDb, per-user watchlists,
watched lists, ratings and comments, and a hover prefetch endpoint that
warms movie detail caches shortly before the user opens a movie.

# Application Architecture

All long-running components run under one suture v4 supervisor per layer:

	data-layer
	├── detail store value-log GC (BadgerDB)
	├── DuckDB checkpoints
	└── prefetch coordinator sweeper
	messaging-layer
	├── prefetch pipeline (watermill GoChannel, one lane per priority)
	└── sync manager (periodic TMDb sync)
	api-layer
	└── HTTP server (chi router)

On shutdown the layers stop one at a time, api first and data last.

Initialization order:

 1. Configuration: koanf v2 (defaults, config.yaml, environment)
 2. Logging: zerolog, JSON or console
 3. Database: DuckDB with versioned migrations
 4. Caches: in-memory detail cache and the BadgerDB detail store
 5. TMDb client behind a gobreaker circuit breaker
 6. Detail loader, prefetch pipeline, dispatcher and coordinator registry
 7. Sync manager
 8. Authentication (JWT or none) and Casbin authorization
 9. HTTP router and server
 10. Supervisor tree

# Configuration

Priority: environment variables > config file > defaults.

	# TMDb (one of the two is required)
	TMDB_API_KEY=<v3 key>
	TMDB_READ_TOKEN=<v4 read access token>

	# Server
	HTTP_PORT=8080
	LOG_LEVEL=info               # trace, debug, info, warn, error
	LOG_FORMAT=json              # json or console

	# Authentication
	AUTH_MODE=jwt                # jwt or none
	JWT_SECRET=<32+ chars>
	ADMIN_USERNAME=admin         # created on first start
	ADMIN_PASSWORD=<8+ chars>

	# Prefetch
	PREFETCH_DELAY=300ms
	PREFETCH_MAX_BATCH_SIZE=100
	PREFETCH_THROTTLE_PER_SECOND=0

	# Storage
	DUCKDB_PATH=/data/cinifob.duckdb
	DETAIL_STORE_PATH=/data/detail-cache

CONFIG_PATH points at a YAML file. When a config file is in use, changes
to its log level are applied without a restart.

# Signal Handling

SIGINT and SIGTERM cancel the root context. The HTTP server drains for up
to 10 seconds and then drops debounced prefetches that have not fired, the
prefetch pipeline finishes in-flight jobs, the sync
manager waits for a running sync, and the database is checkpointed and
closed.
*/
package main
