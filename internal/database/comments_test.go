// Cinifob - Movie Discovery and Watch Tracking
// Copyright 2026 hishamktd
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hishamktd/cinifob

package database

import (
	"context"
	"errors"
	"testing"
)

func TestComments(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)
	catalogFixture(t, db)
	steppingClock(db)
	ctx := context.Background()
	alice := createTestUser(t, db, "alice")
	bob := createTestUser(t, db, "bob")

	first, err := db.AddComment(ctx, alice.ID, 1, "  Best heist movie.  ")
	if err != nil {
		t.Fatalf("AddComment: %v", err)
	}
	if first.Body != "Best heist movie." || first.Username != "alice" || first.ID == "" {
		t.Errorf("AddComment = %+v", first)
	}
	second, err := db.AddComment(ctx, bob.ID, 1, "The diner scene!")
	if err != nil {
		t.Fatalf("AddComment bob: %v", err)
	}

	if _, err := db.AddComment(ctx, alice.ID, 1, "   "); err == nil {
		t.Error("blank comment accepted")
	}
	if _, err := db.AddComment(ctx, alice.ID, 999, "hi"); !errors.Is(err, ErrMovieNotFound) {
		t.Errorf("comment on missing movie err = %v", err)
	}
	if _, err := db.AddComment(ctx, "ghost", 1, "hi"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("comment by missing user err = %v", err)
	}

	comments, total, err := db.ListComments(ctx, 1, 10, 0)
	if err != nil {
		t.Fatalf("ListComments: %v", err)
	}
	if total != 2 || len(comments) != 2 {
		t.Fatalf("ListComments = %d comments, total %d", len(comments), total)
	}
	if comments[0].ID != second.ID || comments[0].Username != "bob" {
		t.Errorf("newest comment = %+v, want bob's", comments[0])
	}

	page, total, err := db.ListComments(ctx, 1, 1, 1)
	if err != nil || total != 2 || len(page) != 1 || page[0].ID != first.ID {
		t.Errorf("second page = %+v, total %d, %v", page, total, err)
	}

	if err := db.DeleteComment(ctx, first.ID, bob.ID); !errors.Is(err, ErrCommentNotFound) {
		t.Errorf("delete by non-author err = %v, want ErrCommentNotFound", err)
	}
	if err := db.DeleteComment(ctx, first.ID, alice.ID); err != nil {
		t.Fatalf("DeleteComment: %v", err)
	}
	if err := db.DeleteComment(ctx, first.ID, alice.ID); !errors.Is(err, ErrCommentNotFound) {
		t.Errorf("second delete err = %v", err)
	}
}
