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

	"github.com/hishamktd/cinifob/internal/models"
)

const (
	// DefaultListLimit is used when a MovieFilter has no limit.
	DefaultListLimit = 20
	// MaxListLimit caps MovieFilter.Limit.
	MaxListLimit = 100

	dateLayout = "2006-01-02"
)

const movieListColumns = `id, title, original_title, overview, release_date, poster_path,
	backdrop_path, popularity, vote_average, vote_count, original_language, adult`

const movieDetailColumns = movieListColumns + `, runtime, tagline, status, details_fetched_at`

// UpsertMovies writes list-level movie data in one transaction. Detail
// columns of existing rows are preserved. Genre links are replaced for
// every movie whose GenreIDs is non-nil.
func (db *DB) UpsertMovies(ctx context.Context, movies []models.Movie) (n int, err error) {
	if len(movies) == 0 {
		return 0, nil
	}
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()
	defer db.observe("upsert", "movies", time.Now(), &err)

	now := db.now()
	err = db.withTx(ctx, func(tx *sql.Tx) error {
		for i := range movies {
			m := &movies[i]
			if m.ID <= 0 {
				continue
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO movies (`+movieListColumns+`, updated_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
				ON CONFLICT (id) DO UPDATE SET
					title = excluded.title,
					original_title = excluded.original_title,
					overview = excluded.overview,
					release_date = excluded.release_date,
					poster_path = excluded.poster_path,
					backdrop_path = excluded.backdrop_path,
					popularity = excluded.popularity,
					vote_average = excluded.vote_average,
					vote_count = excluded.vote_count,
					original_language = excluded.original_language,
					adult = excluded.adult,
					updated_at = excluded.updated_at`,
				listArgs(m, now)...); err != nil {
				return fmt.Errorf("failed to upsert movie %d: %w", m.ID, err)
			}
			if m.GenreIDs != nil {
				if err := replaceGenreLinks(ctx, tx, m.ID, m.GenreIDs); err != nil {
					return err
				}
			}
			n++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

// UpsertMovieDetail writes the full movie row, its genres and genre links,
// and stamps details_fetched_at.
func (db *DB) UpsertMovieDetail(ctx context.Context, d *models.MovieDetail) (err error) {
	if d == nil || d.ID <= 0 {
		return fmt.Errorf("invalid movie detail")
	}
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()
	defer db.observe("upsert", "movies", time.Now(), &err)

	now := db.now()
	fetchedAt := d.DetailsFetchedAt
	if fetchedAt.IsZero() {
		fetchedAt = now
	}

	return db.withTx(ctx, func(tx *sql.Tx) error {
		args := listArgs(&d.Movie, now)
		args = append(args[:len(args)-1], nullInt(d.Runtime), nullString(d.Tagline), nullString(string(d.Status)), fetchedAt.UTC(), now)
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO movies (`+movieDetailColumns+`, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (id) DO UPDATE SET
				title = excluded.title,
				original_title = excluded.original_title,
				overview = excluded.overview,
				release_date = excluded.release_date,
				poster_path = excluded.poster_path,
				backdrop_path = excluded.backdrop_path,
				popularity = excluded.popularity,
				vote_average = excluded.vote_average,
				vote_count = excluded.vote_count,
				original_language = excluded.original_language,
				adult = excluded.adult,
				runtime = excluded.runtime,
				tagline = excluded.tagline,
				status = excluded.status,
				details_fetched_at = excluded.details_fetched_at,
				updated_at = excluded.updated_at`,
			args...); err != nil {
			return fmt.Errorf("failed to upsert movie detail %d: %w", d.ID, err)
		}

		if _, err := upsertGenresTx(ctx, tx, d.Genres, now); err != nil {
			return err
		}
		ids := d.GenreIDs
		if len(d.Genres) > 0 {
			ids = make([]int, 0, len(d.Genres))
			for _, g := range d.Genres {
				ids = append(ids, g.ID)
			}
		}
		if ids != nil {
			return replaceGenreLinks(ctx, tx, d.ID, ids)
		}
		return nil
	})
}

// GetMovie returns the stored row for id with its genres. Rows written only
// from listings have a zero DetailsFetchedAt.
func (db *DB) GetMovie(ctx context.Context, id int) (detail *models.MovieDetail, err error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()
	defer db.observe("select", "movies", time.Now(), &err)

	row := db.conn.QueryRowContext(ctx, `SELECT `+movieDetailColumns+` FROM movies WHERE id = ?`, id)

	var (
		d         models.MovieDetail
		runtime   sql.NullInt64
		tagline   sql.NullString
		status    sql.NullString
		fetchedAt sql.NullTime
	)
	dest := append(listDest(&d.Movie), &runtime, &tagline, &status, &fetchedAt)
	if err := row.Scan(dest...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMovieNotFound
		}
		return nil, fmt.Errorf("failed to get movie %d: %w", id, err)
	}
	if err := finishListScan(&d.Movie, dest); err != nil {
		return nil, err
	}
	d.Runtime = int(runtime.Int64)
	d.Tagline = tagline.String
	d.Status = models.MovieStatus(status.String)
	if fetchedAt.Valid {
		d.DetailsFetchedAt = fetchedAt.Time.UTC()
	}

	rows, err := db.conn.QueryContext(ctx, `
		SELECT g.id, g.name
		FROM movie_genres mg JOIN genres g ON g.id = mg.genre_id
		WHERE mg.movie_id = ?
		ORDER BY g.name, g.id`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query movie genres: %w", err)
	}
	defer closeWithLog(rows, "movie genre rows")
	for rows.Next() {
		var g models.Genre
		if err := rows.Scan(&g.ID, &g.Name); err != nil {
			return nil, fmt.Errorf("failed to scan movie genre: %w", err)
		}
		d.Genres = append(d.Genres, g)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	genreIDs, err := db.genreIDsFor(ctx, []int{id})
	if err != nil {
		return nil, err
	}
	d.GenreIDs = genreIDs[id]
	return &d, nil
}

// ListMovies returns one page of movies matching filter.
func (db *DB) ListMovies(ctx context.Context, filter models.MovieFilter) (movies []models.Movie, err error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()
	defer db.observe("select", "movies", time.Now(), &err)

	where, args := movieWhere(filter)
	limit, offset := clampPage(filter.Limit, filter.Offset)

	query := `SELECT ` + movieListColumns + ` FROM movies` + where +
		` ORDER BY ` + movieOrderBy(filter.Sort) + ` LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list movies: %w", err)
	}
	movies, err = scanMovieRows(rows)
	if err != nil {
		return nil, err
	}
	if err := db.attachGenreIDs(ctx, movies); err != nil {
		return nil, err
	}
	return movies, nil
}

// CountMovies returns the number of movies matching filter, ignoring its
// limit and offset.
func (db *DB) CountMovies(ctx context.Context, filter models.MovieFilter) (total int, err error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()
	defer db.observe("count", "movies", time.Now(), &err)

	where, args := movieWhere(filter)
	if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM movies`+where, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to count movies: %w", err)
	}
	return total, nil
}

func (db *DB) movieExists(ctx context.Context, q querier, id int) error {
	var one int
	err := q.QueryRowContext(ctx, `SELECT 1 FROM movies WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrMovieNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to check movie %d: %w", id, err)
	}
	return nil
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// replaceGenreLinks makes the movie's links equal to ids. Links that
// survive are left in place: deleting and re-inserting the same key inside
// one transaction trips DuckDB's constraint checking.
func replaceGenreLinks(ctx context.Context, tx *sql.Tx, movieID int, ids []int) error {
	ids = uniqueInts(ids)
	if len(ids) == 0 {
		if _, err := tx.ExecContext(ctx, `DELETE FROM movie_genres WHERE movie_id = ?`, movieID); err != nil {
			return fmt.Errorf("failed to clear genre links for movie %d: %w", movieID, err)
		}
		return nil
	}

	args := make([]any, 0, len(ids)+1)
	args = append(args, movieID)
	for _, id := range ids {
		args = append(args, id)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM movie_genres WHERE movie_id = ? AND genre_id NOT IN (`+placeholders(len(ids))+`)`,
		args...); err != nil {
		return fmt.Errorf("failed to prune genre links for movie %d: %w", movieID, err)
	}
	for _, id := range ids {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO movie_genres (movie_id, genre_id) VALUES (?, ?) ON CONFLICT DO NOTHING`,
			movieID, id); err != nil {
			return fmt.Errorf("failed to link genre %d to movie %d: %w", id, movieID, err)
		}
	}
	return nil
}

func (db *DB) genreIDsFor(ctx context.Context, movieIDs []int) (map[int][]int, error) {
	out := make(map[int][]int, len(movieIDs))
	if len(movieIDs) == 0 {
		return out, nil
	}
	args := make([]any, len(movieIDs))
	for i, id := range movieIDs {
		args[i] = id
	}
	rows, err := db.conn.QueryContext(ctx,
		`SELECT movie_id, genre_id FROM movie_genres WHERE movie_id IN (`+placeholders(len(movieIDs))+`) ORDER BY movie_id, genre_id`,
		args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query genre links: %w", err)
	}
	defer closeWithLog(rows, "genre link rows")
	for rows.Next() {
		var movieID, genreID int
		if err := rows.Scan(&movieID, &genreID); err != nil {
			return nil, fmt.Errorf("failed to scan genre link: %w", err)
		}
		out[movieID] = append(out[movieID], genreID)
	}
	return out, rows.Err()
}

func (db *DB) attachGenreIDs(ctx context.Context, movies []models.Movie) error {
	ids := make([]int, len(movies))
	for i := range movies {
		ids[i] = movies[i].ID
	}
	links, err := db.genreIDsFor(ctx, ids)
	if err != nil {
		return err
	}
	for i := range movies {
		movies[i].GenreIDs = links[movies[i].ID]
	}
	return nil
}

func movieWhere(filter models.MovieFilter) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	if filter.GenreID > 0 {
		clauses = append(clauses, `id IN (SELECT movie_id FROM movie_genres WHERE genre_id = ?)`)
		args = append(args, filter.GenreID)
	}
	if q := strings.TrimSpace(filter.Query); q != "" {
		pattern := "%" + escapeLike(q) + "%"
		clauses = append(clauses, `(title ILIKE ? ESCAPE '\' OR original_title ILIKE ? ESCAPE '\')`)
		args = append(args, pattern, pattern)
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// movieOrderBy always ends with id so pagination is stable.
func movieOrderBy(sort models.MovieSort) string {
	switch sort {
	case models.SortReleaseDate:
		return "release_date DESC NULLS LAST, id"
	case models.SortVoteAverage:
		return "vote_average DESC, vote_count DESC, id"
	case models.SortTitle:
		return "title COLLATE NOCASE, id"
	default:
		return "popularity DESC, id"
	}
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// prefixed qualifies every column in a comma-separated list with alias.
func prefixed(alias, columns string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = alias + "." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?, ", n-1) + "?"
}

func uniqueInts(ids []int) []int {
	seen := make(map[int]struct{}, len(ids))
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		if id <= 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// listArgs returns the movieListColumns values for m followed by updated_at.
func listArgs(m *models.Movie, now time.Time) []any {
	return []any{
		m.ID, m.Title, nullString(m.OriginalTitle), nullString(m.Overview), releaseDate(m.ReleaseDate),
		nullString(m.PosterPath), nullString(m.BackdropPath), m.Popularity, m.VoteAverage, m.VoteCount,
		nullString(m.OriginalLanguage), m.Adult, now,
	}
}

// listDest returns scan targets for movieListColumns. Call finishListScan
// after scanning to copy nullable values into m.
func listDest(m *models.Movie) []any {
	return []any{
		&m.ID, &m.Title, new(sql.NullString), new(sql.NullString), new(sql.NullTime),
		new(sql.NullString), new(sql.NullString), &m.Popularity, &m.VoteAverage, &m.VoteCount,
		new(sql.NullString), &m.Adult,
	}
}

func finishListScan(m *models.Movie, dest []any) error {
	if len(dest) < 12 {
		return fmt.Errorf("short movie scan")
	}
	m.OriginalTitle = dest[2].(*sql.NullString).String
	m.Overview = dest[3].(*sql.NullString).String
	if rd := dest[4].(*sql.NullTime); rd.Valid {
		m.ReleaseDate = rd.Time.Format(dateLayout)
	}
	m.PosterPath = dest[5].(*sql.NullString).String
	m.BackdropPath = dest[6].(*sql.NullString).String
	m.OriginalLanguage = dest[10].(*sql.NullString).String
	return nil
}

func scanMovieRows(rows *sql.Rows) ([]models.Movie, error) {
	defer closeWithLog(rows, "movie rows")

	movies := make([]models.Movie, 0)
	for rows.Next() {
		var m models.Movie
		dest := listDest(&m)
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan movie: %w", err)
		}
		if err := finishListScan(&m, dest); err != nil {
			return nil, err
		}
		movies = append(movies, m)
	}
	return movies, rows.Err()
}

// releaseDate parses TMDb's YYYY-MM-DD; empty or malformed dates are NULL.
func releaseDate(s string) any {
	if s == "" {
		return nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return nil
	}
	return t
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullInt(n int) any {
	if n == 0 {
		return nil
	}
	return n
}
