// Cinifob - Movie Discovery and Watch Tracking
// Copyright 2026 hishamktd
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hishamktd/cinifob

// Package models holds the data types shared by the database, the TMDb
// client, the caches and the API: movies and genres, users and their
// lists, ratings and comments, and the small string enums (priority, role,
// sort order, list kind, release status) with their parsers.
//
// JSON tags define the API wire format. validate tags are applied by
// internal/validation when movies and genres arrive through the sync
// import endpoints.
package models
