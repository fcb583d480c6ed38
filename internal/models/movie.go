// Cinifob - Movie Discovery and Watch Tracking
// Copyright 2026 hishamktd
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hishamktd/cinifob

package models

import "time"

// Genre is a TMDb movie genre.
type Genre struct {
	ID   int    `json:"id" validate:"required,min=1"`
	Name string `json:"name" validate:"required,max=100"`
}

// Movie is the list-level view of a movie, as returned by TMDb listings
// and stored in the movies table.
type Movie struct {
	ID               int     `json:"id" validate:"required,min=1"`
	Title            string  `json:"title" validate:"required,max=500"`
	OriginalTitle    string  `json:"original_title,omitempty" validate:"max=500"`
	Overview         string  `json:"overview,omitempty"`
	ReleaseDate      string  `json:"release_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	PosterPath       string  `json:"poster_path,omitempty"`
	BackdropPath     string  `json:"backdrop_path,omitempty"`
	Popularity       float64 `json:"popularity" validate:"min=0"`
	VoteAverage      float64 `json:"vote_average" validate:"min=0,max=10"`
	VoteCount        int     `json:"vote_count" validate:"min=0"`
	OriginalLanguage string  `json:"original_language,omitempty" validate:"max=10"`
	Adult            bool    `json:"adult"`
	GenreIDs         []int   `json:"genre_ids,omitempty"`
}

// MovieDetail is the full record behind GET /movie/{id}.
type MovieDetail struct {
	Movie
	Runtime          int         `json:"runtime,omitempty"`
	Tagline          string      `json:"tagline,omitempty"`
	Status           MovieStatus `json:"status,omitempty"`
	Genres           []Genre     `json:"genres,omitempty"`
	DetailsFetchedAt time.Time   `json:"details_fetched_at"`
}

// MovieFilter narrows ListMovies.
type MovieFilter struct {
	GenreID int
	Query   string
	Sort    MovieSort
	Limit   int
	Offset  int
}

// RatingSummary aggregates user ratings for one movie.
type RatingSummary struct {
	MovieID int     `json:"movie_id"`
	Average float64 `json:"average"`
	Count   int     `json:"count"`
}
