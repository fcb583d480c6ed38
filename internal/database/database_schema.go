// Cinifob - Movie Discovery and Watch Tracking
// Copyright 2026 hishamktd
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hishamktd/cinifob

package database

import (
	"context"
	"fmt"
	"time"
)

// schemaContext returns a context with timeout for schema operations
func schemaContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 60*time.Second)
}

// createIndexes creates the secondary indexes unless cfg.SkipIndexes is set
// (tests skip them for faster setup).
func (db *DB) createIndexes() error {
	if db.cfg != nil && db.cfg.SkipIndexes {
		return nil
	}

	ctx, cancel := schemaContext()
	defer cancel()

	for _, query := range db.getIndexQueries() {
		if _, err := db.conn.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to execute index query: %s: %w", query, err)
		}
	}
	return nil
}

// getIndexQueries returns index creation SQL statements. Only columns that
// are never updated in place are indexed; DuckDB rewrites updated indexed
// rows as delete+insert, which conflicts inside upsert transactions.
func (db *DB) getIndexQueries() []string {
	return []string{
		`CREATE INDEX IF NOT EXISTS idx_movie_genres_genre ON movie_genres(genre_id);`,
		`CREATE INDEX IF NOT EXISTS idx_watchlist_user ON watchlist(user_id);`,
		`CREATE INDEX IF NOT EXISTS idx_watched_user ON watched(user_id);`,
		`CREATE INDEX IF NOT EXISTS idx_ratings_movie ON ratings(movie_id);`,
		`CREATE INDEX IF NOT EXISTS idx_comments_movie ON comments(movie_id);`,
		`CREATE INDEX IF NOT EXISTS idx_comments_user ON comments(user_id);`,
	}
}
