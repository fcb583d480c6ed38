// Cinifob - Movie Discovery and Watch Tracking
// Copyright 2026 hishamktd
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hishamktd/cinifob

/*
Package services adapts server components to suture.Service.

Components that already expose Serve(ctx) error, such as the prefetch
pipeline, the prefetch sweeper, the sync manager and the detail store, are
added to the tree directly. This package covers the rest:

  - HTTPService binds the API listener, shuts the server down within a
    bound and then drops pending debounced prefetches.
  - CheckpointService checkpoints DuckDB on an interval so the WAL file
    stays small between restarts.

Every wrapper implements fmt.Stringer so supervisor events name the
service.
*/
package services
