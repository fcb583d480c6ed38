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
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hishamktd/cinifob/internal/models"
)

// AddComment stores a comment by userID on movieID.
func (db *DB) AddComment(ctx context.Context, userID string, movieID int, body string) (comment *models.Comment, err error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, fmt.Errorf("comment body is required")
	}
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()
	defer db.observe("insert", "comments", time.Now(), &err)

	c := &models.Comment{
		ID:        uuid.NewString(),
		UserID:    userID,
		MovieID:   movieID,
		Body:      body,
		CreatedAt: db.now(),
	}
	err = db.withTx(ctx, func(tx *sql.Tx) error {
		if err := db.movieExists(ctx, tx, movieID); err != nil {
			return err
		}
		if err := tx.QueryRowContext(ctx, `SELECT username FROM users WHERE id = ?`, userID).Scan(&c.Username); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrUserNotFound
			}
			return fmt.Errorf("failed to look up comment author: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO comments (id, user_id, movie_id, body, created_at) VALUES (?, ?, ?, ?, ?)`,
			c.ID, c.UserID, c.MovieID, c.Body, c.CreatedAt); err != nil {
			return fmt.Errorf("failed to add comment: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// ListComments returns comments on movieID, newest first, and the total count.
func (db *DB) ListComments(ctx context.Context, movieID, limit, offset int) (comments []models.Comment, total int, err error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()
	defer db.observe("select", "comments", time.Now(), &err)

	limit, offset = clampPage(limit, offset)

	if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM comments WHERE movie_id = ?`, movieID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count comments: %w", err)
	}

	rows, err := db.conn.QueryContext(ctx, `
		SELECT c.id, c.user_id, COALESCE(u.username, ''), c.movie_id, c.body, c.created_at
		FROM comments c LEFT JOIN users u ON u.id = c.user_id
		WHERE c.movie_id = ?
		ORDER BY c.created_at DESC, c.id
		LIMIT ? OFFSET ?`, movieID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list comments: %w", err)
	}
	defer closeWithLog(rows, "comment rows")

	comments = make([]models.Comment, 0)
	for rows.Next() {
		var c models.Comment
		if err := rows.Scan(&c.ID, &c.UserID, &c.Username, &c.MovieID, &c.Body, &c.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("failed to scan comment: %w", err)
		}
		c.CreatedAt = c.CreatedAt.UTC()
		comments = append(comments, c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return comments, total, nil
}

// DeleteComment deletes comment id if userID wrote it. Any other case,
// including a missing comment, returns ErrCommentNotFound.
func (db *DB) DeleteComment(ctx context.Context, id, userID string) (err error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()
	defer db.observe("delete", "comments", time.Now(), &err)

	res, err := db.conn.ExecContext(ctx, `DELETE FROM comments WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete comment: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return ErrCommentNotFound
	}
	return nil
}
