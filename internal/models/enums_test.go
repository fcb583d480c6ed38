// Cinifob - Movie Discovery and Watch Tracking
// Copyright 2026 hishamktd
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hishamktd/cinifob

package models

import "testing"

func TestParsePriority(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want Priority
	}{
		{"low", PriorityLow},
		{"HIGH", PriorityHigh},
		{" normal ", PriorityNormal},
		{"", PriorityNormal},
		{"urgent", PriorityNormal},
	}
	for _, tt := range tests {
		if got := ParsePriority(tt.in); got != tt.want {
			t.Errorf("ParsePriority(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestPriorityRank(t *testing.T) {
	t.Parallel()

	if !(PriorityHigh.Rank() > PriorityNormal.Rank() && PriorityNormal.Rank() > PriorityLow.Rank()) {
		t.Errorf("unexpected rank order: high=%d normal=%d low=%d",
			PriorityHigh.Rank(), PriorityNormal.Rank(), PriorityLow.Rank())
	}
}

func TestParseRole(t *testing.T) {
	t.Parallel()

	if r, ok := ParseRole("Admin"); !ok || r != RoleAdmin {
		t.Errorf("ParseRole(Admin) = %q, %v", r, ok)
	}
	if _, ok := ParseRole("viewer"); ok {
		t.Error("viewer should not be a valid role")
	}
}

func TestParseMovieSort(t *testing.T) {
	t.Parallel()

	tests := map[string]MovieSort{
		"release_date": SortReleaseDate,
		"TITLE":        SortTitle,
		"vote_average": SortVoteAverage,
		"":             SortPopularity,
		"random":       SortPopularity,
	}
	for in, want := range tests {
		if got := ParseMovieSort(in); got != want {
			t.Errorf("ParseMovieSort(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParseListKind(t *testing.T) {
	t.Parallel()

	if k, ok := ParseListKind("watched"); !ok || k != ListWatched {
		t.Errorf("ParseListKind(watched) = %q, %v", k, ok)
	}
	if _, ok := ParseListKind("favorites"); ok {
		t.Error("favorites should not be a valid list")
	}
}

func TestParseMovieStatus(t *testing.T) {
	t.Parallel()

	if got := ParseMovieStatus("post production"); got != StatusPostProduction {
		t.Errorf("got %q, want %q", got, StatusPostProduction)
	}
	if got := ParseMovieStatus("Delayed"); got != "" {
		t.Errorf("expected empty status, got %q", got)
	}
	if !StatusReleased.Valid() {
		t.Error("Released should be valid")
	}
	if MovieStatus("released").Valid() {
		t.Error("status must match canonical casing to be valid")
	}
}
