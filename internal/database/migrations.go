// Cinifob - Movie Discovery and Watch Tracking
// Copyright 2026 hishamktd
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hishamktd/cinifob

package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hishamktd/cinifob/internal/logging"
)

// Migration represents a versioned database migration.
type Migration struct {
	Version     int       // Unique version number (monotonically increasing)
	Name        string    // Human-readable migration name
	Description string    // Description of what this migration does
	SQL         []string  // Statements executed in order
	AppliedAt   time.Time // When the migration was applied (populated on query)
}

// schemaMigrationsTable creates the migration tracking table
const schemaMigrationsTable = `
CREATE TABLE IF NOT EXISTS schema_migrations (
	version INTEGER PRIMARY KEY,
	name TEXT NOT NULL,
	description TEXT,
	applied_at TIMESTAMP NOT NULL
);
`

// getMigrations returns all versioned migrations in order.
//
// Migrations are append-only: never modify or remove one that has shipped.
func (db *DB) getMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Name:        "catalog",
			Description: "TMDb metadata cache: genres, movies and their genre links",
			SQL: []string{
				`CREATE TABLE IF NOT EXISTS genres (
					id INTEGER PRIMARY KEY,
					name TEXT NOT NULL,
					updated_at TIMESTAMP NOT NULL
				);`,
				`CREATE TABLE IF NOT EXISTS movies (
					id INTEGER PRIMARY KEY,
					title TEXT NOT NULL,
					original_title TEXT,
					overview TEXT,
					release_date DATE,
					poster_path TEXT,
					backdrop_path TEXT,
					popularity DOUBLE NOT NULL DEFAULT 0,
					vote_average DOUBLE NOT NULL DEFAULT 0,
					vote_count INTEGER NOT NULL DEFAULT 0,
					runtime INTEGER,
					tagline TEXT,
					status TEXT,
					original_language TEXT,
					adult BOOLEAN NOT NULL DEFAULT false,
					details_fetched_at TIMESTAMP,
					updated_at TIMESTAMP NOT NULL
				);`,
				`CREATE TABLE IF NOT EXISTS movie_genres (
					movie_id INTEGER NOT NULL,
					genre_id INTEGER NOT NULL,
					PRIMARY KEY (movie_id, genre_id)
				);`,
			},
		},
		{
			Version:     2,
			Name:        "users_and_lists",
			Description: "Local accounts, watchlist and watched list",
			SQL: []string{
				`CREATE TABLE IF NOT EXISTS users (
					id VARCHAR PRIMARY KEY,
					username VARCHAR NOT NULL UNIQUE,
					password_hash VARCHAR NOT NULL,
					role VARCHAR NOT NULL DEFAULT 'user',
					created_at TIMESTAMP NOT NULL
				);`,
				`CREATE TABLE IF NOT EXISTS watchlist (
					user_id VARCHAR NOT NULL,
					movie_id INTEGER NOT NULL,
					added_at TIMESTAMP NOT NULL,
					PRIMARY KEY (user_id, movie_id)
				);`,
				`CREATE TABLE IF NOT EXISTS watched (
					user_id VARCHAR NOT NULL,
					movie_id INTEGER NOT NULL,
					watched_at TIMESTAMP NOT NULL,
					PRIMARY KEY (user_id, movie_id)
				);`,
			},
		},
		{
			Version:     3,
			Name:        "ratings_and_comments",
			Description: "Per-user movie ratings and comments",
			SQL: []string{
				`CREATE TABLE IF NOT EXISTS ratings (
					user_id VARCHAR NOT NULL,
					movie_id INTEGER NOT NULL,
					score INTEGER NOT NULL CHECK (score BETWEEN 1 AND 10),
					updated_at TIMESTAMP NOT NULL,
					PRIMARY KEY (user_id, movie_id)
				);`,
				`CREATE TABLE IF NOT EXISTS comments (
					id VARCHAR PRIMARY KEY,
					user_id VARCHAR NOT NULL,
					movie_id INTEGER NOT NULL,
					body TEXT NOT NULL,
					created_at TIMESTAMP NOT NULL
				);`,
			},
		},
	}
}

func (db *DB) createMigrationsTable(ctx context.Context) error {
	_, err := db.conn.ExecContext(ctx, schemaMigrationsTable)
	return err
}

// getAppliedMigrations returns a map of version -> Migration for all applied migrations
func (db *DB) getAppliedMigrations(ctx context.Context) (map[int]Migration, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT version, name, description, applied_at FROM schema_migrations ORDER BY version`)
	if err != nil {
		return nil, fmt.Errorf("failed to query applied migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[int]Migration)
	for rows.Next() {
		var m Migration
		if err := rows.Scan(&m.Version, &m.Name, &m.Description, &m.AppliedAt); err != nil {
			return nil, fmt.Errorf("failed to scan migration row: %w", err)
		}
		applied[m.Version] = m
	}
	return applied, rows.Err()
}

// runVersionedMigrations applies every migration not yet recorded in
// schema_migrations, each in its own transaction.
func (db *DB) runVersionedMigrations() error {
	ctx, cancel := schemaContext()
	defer cancel()

	if err := db.createMigrationsTable(ctx); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	applied, err := db.getAppliedMigrations(ctx)
	if err != nil {
		return fmt.Errorf("failed to get applied migrations: %w", err)
	}

	newMigrations := 0
	for _, m := range db.getMigrations() {
		if _, exists := applied[m.Version]; exists {
			continue
		}

		m := m
		err := db.withTx(ctx, func(tx *sql.Tx) error {
			for _, stmt := range m.SQL {
				if _, err := tx.ExecContext(ctx, stmt); err != nil {
					return fmt.Errorf("failed to execute migration v%d (%s): %w", m.Version, m.Name, err)
				}
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO schema_migrations (version, name, description, applied_at) VALUES (?, ?, ?, ?)`,
				m.Version, m.Name, m.Description, db.now()); err != nil {
				return fmt.Errorf("failed to record migration v%d: %w", m.Version, err)
			}
			return nil
		})
		if err != nil {
			return err
		}
		newMigrations++
	}

	if newMigrations > 0 {
		logging.Info().Int("applied", newMigrations).Msg("Applied database migrations")
	}
	return nil
}

// SchemaVersion returns the highest applied migration version
func (db *DB) SchemaVersion(ctx context.Context) (int, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var version int
	err := db.conn.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("failed to get schema version: %w", err)
	}
	return version, nil
}

// MigrationHistory returns all applied migrations in order
func (db *DB) MigrationHistory(ctx context.Context) ([]Migration, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx,
		`SELECT version, name, description, applied_at FROM schema_migrations ORDER BY version`)
	if err != nil {
		return nil, fmt.Errorf("failed to query migration history: %w", err)
	}
	defer rows.Close()

	var history []Migration
	for rows.Next() {
		var m Migration
		if err := rows.Scan(&m.Version, &m.Name, &m.Description, &m.AppliedAt); err != nil {
			return nil, fmt.Errorf("failed to scan migration: %w", err)
		}
		history = append(history, m)
	}
	return history, rows.Err()
}
