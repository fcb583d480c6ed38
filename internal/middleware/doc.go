// Cinifob - Movie Discovery and Watch Tracking
// Copyright 2026 hishamktd
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hishamktd/cinifob

/*
Package middleware provides the chi-compatible HTTP middleware shared by every
API route: request IDs, access logging and Prometheus instrumentation.

The router installs them outermost first:

	r.Use(middleware.RequestID)
	r.Use(middleware.AccessLog)
	r.Use(middleware.PrometheusMetrics)

RequestID must run before AccessLog so log lines carry the request and
correlation IDs. PrometheusMetrics labels requests by chi route pattern
(for example /api/v1/movies/{id}) rather than the raw path, so movie IDs
never become label values.
*/
package middleware
