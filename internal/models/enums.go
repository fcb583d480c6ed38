// Cinifob - Movie Discovery and Watch Tracking
// Copyright 2026 hishamktd
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hishamktd/cinifob

package models

import "strings"

// Priority orders prefetch work. Higher priorities are processed first
// inside one prefetch job.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
)

// ParsePriority maps unknown or empty input to PriorityNormal.
func ParsePriority(s string) Priority {
	p := Priority(strings.ToLower(strings.TrimSpace(s)))
	if p.Valid() {
		return p
	}
	return PriorityNormal
}

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh:
		return true
	}
	return false
}

func (p Priority) String() string { return string(p) }

// Rank returns a sortable weight, higher is more urgent.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 2
	case PriorityNormal:
		return 1
	default:
		return 0
	}
}

// Role is a user's authorization role. Names match the casbin policy.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// ParseRole returns false for anything other than user or admin.
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	return r, r.Valid()
}

func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

func (r Role) String() string { return string(r) }

// MovieSort selects the ORDER BY of movie listings.
type MovieSort string

const (
	SortPopularity  MovieSort = "popularity"
	SortReleaseDate MovieSort = "release_date"
	SortVoteAverage MovieSort = "vote_average"
	SortTitle       MovieSort = "title"
)

// ParseMovieSort falls back to SortPopularity.
func ParseMovieSort(s string) MovieSort {
	ms := MovieSort(strings.ToLower(strings.TrimSpace(s)))
	if ms.Valid() {
		return ms
	}
	return SortPopularity
}

func (s MovieSort) Valid() bool {
	switch s {
	case SortPopularity, SortReleaseDate, SortVoteAverage, SortTitle:
		return true
	}
	return false
}

func (s MovieSort) String() string { return string(s) }

// ListKind names a per-user movie list.
type ListKind string

const (
	ListWatchlist ListKind = "watchlist"
	ListWatched   ListKind = "watched"
)

func ParseListKind(s string) (ListKind, bool) {
	k := ListKind(strings.ToLower(strings.TrimSpace(s)))
	return k, k.Valid()
}

func (k ListKind) Valid() bool {
	return k == ListWatchlist || k == ListWatched
}

func (k ListKind) String() string { return string(k) }

// MovieStatus is the TMDb release status of a movie.
type MovieStatus string

const (
	StatusRumored        MovieStatus = "Rumored"
	StatusPlanned        MovieStatus = "Planned"
	StatusInProduction   MovieStatus = "In Production"
	StatusPostProduction MovieStatus = "Post Production"
	StatusReleased       MovieStatus = "Released"
	StatusCanceled       MovieStatus = "Canceled"
)

var movieStatuses = []MovieStatus{
	StatusRumored, StatusPlanned, StatusInProduction,
	StatusPostProduction, StatusReleased, StatusCanceled,
}

// ParseMovieStatus matches case-insensitively and returns "" for unknown values.
func ParseMovieStatus(s string) MovieStatus {
	for _, st := range movieStatuses {
		if strings.EqualFold(string(st), strings.TrimSpace(s)) {
			return st
		}
	}
	return ""
}

func (s MovieStatus) Valid() bool {
	return ParseMovieStatus(string(s)) == s && s != ""
}

func (s MovieStatus) String() string { return string(s) }
