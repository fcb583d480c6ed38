// Cinifob - Movie Discovery and Watch Tracking
// Copyright 2026 hishamktd
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hishamktd/cinifob

/*
Package api serves the Cinifob HTTP API on a chi router.

Every response body uses one envelope:

	{
	  "success": true,
	  "data": {...},
	  "metadata": {"timestamp": "...", "query_time_ms": 3, "pagination": {...}}
	}

and failures replace data with error{code, message, details}. Handlers are
split by area:

  - handlers_auth.go: register, login and logout
  - handlers_movies.go: genres, movie listings, detail and comments
  - handlers_lists.go: watchlist, watched list and ratings
  - handlers_prefetch.go: hover prefetch requests
  - handlers_sync.go: admin catalog imports and TMDb syncs
  - handlers_health.go: health probe
*/
package api
