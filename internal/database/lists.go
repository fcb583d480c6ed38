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

// AddToWatchlist adds movieID to the user's watchlist. Adding a movie that
// is already listed keeps the original added_at.
func (db *DB) AddToWatchlist(ctx context.Context, userID string, movieID int) (err error) {
	return db.addToList(ctx, models.ListWatchlist, userID, movieID, nil)
}

// RemoveFromWatchlist returns ErrNotInList when the movie is not listed.
func (db *DB) RemoveFromWatchlist(ctx context.Context, userID string, movieID int) error {
	return db.removeFromList(ctx, models.ListWatchlist, userID, movieID)
}

// ListWatchlist returns the user's watchlist, most recently added first.
func (db *DB) ListWatchlist(ctx context.Context, userID string) ([]models.ListEntry, error) {
	return db.listEntries(ctx, models.ListWatchlist, userID)
}

// MarkWatched records movieID as watched and removes it from the watchlist
// in the same transaction.
func (db *DB) MarkWatched(ctx context.Context, userID string, movieID int) error {
	return db.addToList(ctx, models.ListWatched, userID, movieID, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM watchlist WHERE user_id = ? AND movie_id = ?`, userID, movieID); err != nil {
			return fmt.Errorf("failed to drop watched movie from watchlist: %w", err)
		}
		return nil
	})
}

// UnmarkWatched returns ErrNotInList when the movie was not marked watched.
func (db *DB) UnmarkWatched(ctx context.Context, userID string, movieID int) error {
	return db.removeFromList(ctx, models.ListWatched, userID, movieID)
}

// ListWatched returns the user's watched movies, most recent first.
func (db *DB) ListWatched(ctx context.Context, userID string) ([]models.ListEntry, error) {
	return db.listEntries(ctx, models.ListWatched, userID)
}

// GetUserMovieState reports the user's relationship with one movie.
func (db *DB) GetUserMovieState(ctx context.Context, userID string, movieID int) (state models.UserMovieState, err error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()
	defer db.observe("select", "user_state", time.Now(), &err)

	err = db.conn.QueryRowContext(ctx, `
		SELECT
			EXISTS (SELECT 1 FROM watchlist WHERE user_id = ? AND movie_id = ?),
			EXISTS (SELECT 1 FROM watched WHERE user_id = ? AND movie_id = ?),
			COALESCE((SELECT score FROM ratings WHERE user_id = ? AND movie_id = ?), 0)`,
		userID, movieID, userID, movieID, userID, movieID).
		Scan(&state.InWatchlist, &state.Watched, &state.Rating)
	if err != nil {
		return models.UserMovieState{}, fmt.Errorf("failed to get user movie state: %w", err)
	}
	return state, nil
}

// listTable maps a list kind to its table and timestamp column.
func listTable(kind models.ListKind) (table, tsColumn string) {
	if kind == models.ListWatched {
		return "watched", "watched_at"
	}
	return "watchlist", "added_at"
}

func (db *DB) addToList(ctx context.Context, kind models.ListKind, userID string, movieID int,
	extra func(context.Context, *sql.Tx) error) (err error) {
	table, ts := listTable(kind)
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()
	defer db.observe("insert", table, time.Now(), &err)

	return db.withTx(ctx, func(tx *sql.Tx) error {
		if err := db.movieExists(ctx, tx, movieID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO `+table+` (user_id, movie_id, `+ts+`) VALUES (?, ?, ?) ON CONFLICT DO NOTHING`,
			userID, movieID, db.now()); err != nil {
			return fmt.Errorf("failed to add movie %d to %s: %w", movieID, table, err)
		}
		if extra != nil {
			return extra(ctx, tx)
		}
		return nil
	})
}

func (db *DB) removeFromList(ctx context.Context, kind models.ListKind, userID string, movieID int) (err error) {
	table, _ := listTable(kind)
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()
	defer db.observe("delete", table, time.Now(), &err)

	res, err := db.conn.ExecContext(ctx, `DELETE FROM `+table+` WHERE user_id = ? AND movie_id = ?`, userID, movieID)
	if err != nil {
		return fmt.Errorf("failed to remove movie %d from %s: %w", movieID, table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotInList
	}
	return nil
}

func (db *DB) listEntries(ctx context.Context, kind models.ListKind, userID string) (entries []models.ListEntry, err error) {
	table, ts := listTable(kind)
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()
	defer db.observe("select", table, time.Now(), &err)

	rows, err := db.conn.QueryContext(ctx, `
		SELECT `+prefixed("m", movieListColumns)+`, l.`+ts+`
		FROM `+table+` l JOIN movies m ON m.id = l.movie_id
		WHERE l.user_id = ?
		ORDER BY l.`+ts+` DESC, m.id`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", table, err)
	}
	defer closeWithLog(rows, table+" rows")

	entries = make([]models.ListEntry, 0)
	for rows.Next() {
		var e models.ListEntry
		dest := append(listDest(&e.Movie), &e.AddedAt)
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan %s entry: %w", table, err)
		}
		if err := finishListScan(&e.Movie, dest); err != nil {
			return nil, err
		}
		e.AddedAt = e.AddedAt.UTC()
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	movies := make([]models.Movie, len(entries))
	for i := range entries {
		movies[i] = entries[i].Movie
	}
	if err := db.attachGenreIDs(ctx, movies); err != nil {
		return nil, err
	}
	for i := range entries {
		entries[i].Movie.GenreIDs = movies[i].GenreIDs
	}
	return entries, nil
}
