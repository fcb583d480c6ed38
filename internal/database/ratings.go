// Cinifob - Movie Discovery and Watch Tracking
// Copyright 2026 hishamktd
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hishamktd/cinifob

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hishamktd/cinifob/internal/models"
)

const (
	MinScore = 1
	MaxScore = 10
)

// SetRating creates or replaces the user's rating of movieID.
func (db *DB) SetRating(ctx context.Context, userID string, movieID, score int) (rating *models.Rating, err error) {
	if score < MinScore || score > MaxScore {
		return nil, ErrInvalidScore
	}
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()
	defer db.observe("upsert", "ratings", time.Now(), &err)

	r := &models.Rating{UserID: userID, MovieID: movieID, Score: score, UpdatedAt: db.now()}
	err = db.withTx(ctx, func(tx *sql.Tx) error {
		if err := db.movieExists(ctx, tx, movieID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO ratings (user_id, movie_id, score, updated_at) VALUES (?, ?, ?, ?)
			ON CONFLICT (user_id, movie_id) DO UPDATE SET score = excluded.score, updated_at = excluded.updated_at`,
			r.UserID, r.MovieID, r.Score, r.UpdatedAt); err != nil {
			return fmt.Errorf("failed to set rating: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

// DeleteRating returns ErrRatingNotFound when the user has not rated movieID.
func (db *DB) DeleteRating(ctx context.Context, userID string, movieID int) (err error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()
	defer db.observe("delete", "ratings", time.Now(), &err)

	res, err := db.conn.ExecContext(ctx, `DELETE FROM ratings WHERE user_id = ? AND movie_id = ?`, userID, movieID)
	if err != nil {
		return fmt.Errorf("failed to delete rating: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrRatingNotFound
	}
	return nil
}

// GetRating returns ErrRatingNotFound when the user has not rated movieID.
func (db *DB) GetRating(ctx context.Context, userID string, movieID int) (rating *models.Rating, err error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()
	defer db.observe("select", "ratings", time.Now(), &err)

	r := models.Rating{UserID: userID, MovieID: movieID}
	err = db.conn.QueryRowContext(ctx,
		`SELECT score, updated_at FROM ratings WHERE user_id = ? AND movie_id = ?`, userID, movieID).
		Scan(&r.Score, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRatingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get rating: %w", err)
	}
	r.UpdatedAt = r.UpdatedAt.UTC()
	return &r, nil
}

// MovieRatingSummary returns the average score and number of ratings.
// A movie nobody rated has a zero summary.
func (db *DB) MovieRatingSummary(ctx context.Context, movieID int) (summary models.RatingSummary, err error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()
	defer db.observe("select", "ratings", time.Now(), &err)

	summary.MovieID = movieID
	var avg sql.NullFloat64
	err = db.conn.QueryRowContext(ctx,
		`SELECT AVG(score), COUNT(*) FROM ratings WHERE movie_id = ?`, movieID).
		Scan(&avg, &summary.Count)
	if err != nil {
		return models.RatingSummary{MovieID: movieID}, fmt.Errorf("failed to summarize ratings: %w", err)
	}
	summary.Average = avg.Float64
	return summary, nil
}
