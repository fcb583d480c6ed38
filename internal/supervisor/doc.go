// Cinifob - Movie Discovery and Watch Tracking
// Copyright 2026 hishamktd
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hishamktd/cinifob

/*
Package supervisor runs the long-lived services of the server under suture
v4 supervisors, one per layer:

	LayerData ("data-layer")
	├── DetailStore value-log GC ("detail-store-gc")
	├── CheckpointService ("duckdb-checkpoint")
	└── prefetch Sweeper ("prefetch-sweeper")
	LayerMessaging ("messaging-layer")
	├── prefetch Pipeline ("prefetch-pipeline")
	└── sync Manager ("sync-manager")
	LayerAPI ("api-layer")
	└── HTTPService ("http-server")

A failing service is restarted by its own layer. Restart policy follows
suture's defaults: five failures, decaying over 30 seconds, put a layer
into a 15 second backoff.

Shutdown is sequential and top-down. The API layer stops first, so no new
prefetch requests arrive while the messaging layer drains the pipeline.
Storage maintenance stops last. Each layer waits up to ShutdownTimeout for
its services; those that do not return are listed by Unstopped.

Supervisor events are logged through sutureslog, which writes to the
zerolog-backed slog handler from internal/logging.

Usage:

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	tree.Add(supervisor.LayerData, detailStore)
	tree.Add(supervisor.LayerMessaging, pipeline)
	tree.Add(supervisor.LayerAPI, services.NewHTTPService(srv, services.HTTPServiceConfig{Addr: srv.Addr}))
	err := tree.Serve(ctx)
*/
package supervisor
