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

	"github.com/hishamktd/cinifob/internal/models"
)

// UpsertGenres inserts or renames genres and returns how many were written.
func (db *DB) UpsertGenres(ctx context.Context, genres []models.Genre) (n int, err error) {
	if len(genres) == 0 {
		return 0, nil
	}
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()
	defer db.observe("upsert", "genres", time.Now(), &err)

	now := db.now()
	err = db.withTx(ctx, func(tx *sql.Tx) error {
		var txErr error
		n, txErr = upsertGenresTx(ctx, tx, genres, now)
		return txErr
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

// ListGenres returns all genres ordered by name.
func (db *DB) ListGenres(ctx context.Context) (genres []models.Genre, err error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()
	defer db.observe("select", "genres", time.Now(), &err)

	rows, err := db.conn.QueryContext(ctx, `SELECT id, name FROM genres ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query genres: %w", err)
	}
	defer closeWithLog(rows, "genre rows")

	genres = make([]models.Genre, 0)
	for rows.Next() {
		var g models.Genre
		if err := rows.Scan(&g.ID, &g.Name); err != nil {
			return nil, fmt.Errorf("failed to scan genre: %w", err)
		}
		genres = append(genres, g)
	}
	return genres, rows.Err()
}

// upsertGenresTx writes genres inside an existing transaction. Entries
// without an id or name are skipped.
func upsertGenresTx(ctx context.Context, tx *sql.Tx, genres []models.Genre, now time.Time) (int, error) {
	n := 0
	for _, g := range genres {
		if g.ID <= 0 || g.Name == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO genres (id, name, updated_at) VALUES (?, ?, ?)
			ON CONFLICT (id) DO UPDATE SET name = excluded.name, updated_at = excluded.updated_at`,
			g.ID, g.Name, now); err != nil {
			return n, fmt.Errorf("failed to upsert genre %d: %w", g.ID, err)
		}
		n++
	}
	return n, nil
}
