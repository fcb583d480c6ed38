// Cinifob - Movie Discovery and Watch Tracking
// Copyright 2026 hishamktd
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hishamktd/cinifob

package models

import "time"

// User is a local account.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

// ListEntry is one movie on a user's watchlist or watched list.
type ListEntry struct {
	Movie   Movie     `json:"movie"`
	AddedAt time.Time `json:"added_at"`
}

// Rating is a user's 1..10 score for a movie.
type Rating struct {
	UserID    string    `json:"user_id"`
	MovieID   int       `json:"movie_id"`
	Score     int       `json:"score"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Comment is free text a user left on a movie.
type Comment struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	MovieID   int       `json:"movie_id"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// UserMovieState is the caller's relationship to a movie, embedded in detail responses.
type UserMovieState struct {
	InWatchlist bool `json:"in_watchlist"`
	Watched     bool `json:"watched"`
	Rating      int  `json:"rating,omitempty"`
}
