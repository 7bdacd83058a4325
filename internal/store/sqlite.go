package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"kinorium-scraper/internal/types"
	_ "modernc.org/sqlite"
)

// fixed width so that text order is time order
const timeLayout = "2006-01-02T15:04:05.000000000Z"

var _ types.ResultStore = (*SQLiteStore)(nil)

// SQLiteStore persists scrape results in a single SQLite table
type SQLiteStore struct {
	conn *sql.DB
	now  func() time.Time
}

// NewSQLiteStore opens the database at path and initializes the schema
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// SQLite allows one writer; saves arrive from many goroutines
	conn.SetMaxOpenConns(1)

	s := &SQLiteStore{conn: conn, now: time.Now}
	if err := s.initSchema(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return s, nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.conn.Close()
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS scraping_results (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT NOT NULL,
		url TEXT NOT NULL,
		year INTEGER,
		rating REAL,
		genres TEXT NOT NULL DEFAULT '[]',
		director TEXT,
		actors TEXT NOT NULL DEFAULT '[]',
		country TEXT NOT NULL DEFAULT '[]',
		duration TEXT,
		description TEXT,
		poster_url TEXT,
		genre TEXT,
		scraped_at TEXT NOT NULL,
		scraping_method TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_scraping_results_scraped_at ON scraping_results(scraped_at);
	CREATE INDEX IF NOT EXISTS idx_scraping_results_title ON scraping_results(title);
	CREATE INDEX IF NOT EXISTS idx_scraping_results_genre ON scraping_results(genre);
	`

	_, err := s.conn.Exec(schema)
	return err
}

const insertQuery = `
	INSERT INTO scraping_results
		(title, url, year, rating, genres, director, actors, country, duration, description, poster_url, genre, scraped_at, scraping_method)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// Save stores a film record and returns it with its id and timestamp
func (s *SQLiteStore) Save(ctx context.Context, record types.FilmDetail, method types.ScrapingMethod) (*types.PersistedResult, error) {
	result := &types.PersistedResult{
		FilmDetail:     record,
		ScrapedAt:      s.now().UTC(),
		ScrapingMethod: method,
	}
	id, err := s.insert(ctx, s.conn, result)
	if err != nil {
		return nil, err
	}
	result.ID = id
	return result, nil
}

// SaveListing stores every film of a genre listing in one transaction
func (s *SQLiteStore) SaveListing(ctx context.Context, genre string, films []types.FilmSummary, method types.ScrapingMethod) error {
	if len(films) == 0 {
		return nil
	}
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	scrapedAt := s.now().UTC()
	for _, film := range films {
		result := &types.PersistedResult{
			FilmDetail:     types.FilmDetail{Title: film.Title, URL: film.URL},
			Genre:          genre,
			ScrapedAt:      scrapedAt,
			ScrapingMethod: method,
		}
		if _, err := s.insert(ctx, tx, result); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit listing: %w", err)
	}
	return nil
}

func (s *SQLiteStore) insert(ctx context.Context, db execer, r *types.PersistedResult) (int64, error) {
	genres, err := marshalList(r.Genres)
	if err != nil {
		return 0, fmt.Errorf("marshal genres: %w", err)
	}
	actors, err := marshalList(r.Actors)
	if err != nil {
		return 0, fmt.Errorf("marshal actors: %w", err)
	}
	country, err := marshalList(r.Country)
	if err != nil {
		return 0, fmt.Errorf("marshal country: %w", err)
	}

	res, err := db.ExecContext(ctx, insertQuery,
		r.Title,
		r.URL,
		r.Year,
		r.Rating,
		genres,
		r.Director,
		actors,
		country,
		r.Duration,
		r.Description,
		r.PosterURL,
		nullString(r.Genre),
		r.ScrapedAt.Format(timeLayout),
		string(r.ScrapingMethod),
	)
	if err != nil {
		return 0, fmt.Errorf("insert result: %w", err)
	}
	return res.LastInsertId()
}

const selectColumns = `
	SELECT id, title, url, year, rating, genres, director, actors, country, duration, description, poster_url, genre, scraped_at, scraping_method
	FROM scraping_results`

// List returns results newest first
func (s *SQLiteStore) List(ctx context.Context, skip, limit int) ([]types.PersistedResult, error) {
	query := selectColumns + ` ORDER BY scraped_at DESC, id DESC LIMIT ? OFFSET ?`
	return s.query(ctx, query, limit, skip)
}

// FindByTitle pages through results whose title contains title, newest first
func (s *SQLiteStore) FindByTitle(ctx context.Context, title string, skip, limit int) ([]types.PersistedResult, error) {
	query := selectColumns + ` WHERE title LIKE ? ESCAPE '\' ORDER BY scraped_at DESC, id DESC LIMIT ? OFFSET ?`
	return s.query(ctx, query, "%"+escapeLike(title)+"%", limit, skip)
}

// FindByGenre pages through results saved from the listing of genre
func (s *SQLiteStore) FindByGenre(ctx context.Context, genre string, skip, limit int) ([]types.PersistedResult, error) {
	query := selectColumns + ` WHERE genre = ? ORDER BY scraped_at DESC, id DESC LIMIT ? OFFSET ?`
	return s.query(ctx, query, genre, limit, skip)
}

// Count returns the number of stored results
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM scraping_results`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count results: %w", err)
	}
	return n, nil
}

func (s *SQLiteStore) query(ctx context.Context, query string, args ...interface{}) ([]types.PersistedResult, error) {
	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query results: %w", err)
	}
	defer rows.Close()

	results := []types.PersistedResult{}
	for rows.Next() {
		r, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

func scanResult(rows *sql.Rows) (types.PersistedResult, error) {
	var (
		r                                   types.PersistedResult
		year                                sql.NullInt64
		rating                              sql.NullFloat64
		director, duration, description     sql.NullString
		posterURL, genre                    sql.NullString
		genresJSON, actorsJSON, countryJSON string
		scrapedAt, method                   string
	)
	err := rows.Scan(&r.ID, &r.Title, &r.URL, &year, &rating, &genresJSON, &director, &actorsJSON,
		&countryJSON, &duration, &description, &posterURL, &genre, &scrapedAt, &method)
	if err != nil {
		return r, fmt.Errorf("scan result: %w", err)
	}

	if year.Valid {
		y := int(year.Int64)
		r.Year = &y
	}
	if rating.Valid {
		v := rating.Float64
		r.Rating = &v
	}
	r.Director = stringPtr(director)
	r.Duration = stringPtr(duration)
	r.Description = stringPtr(description)
	r.PosterURL = stringPtr(posterURL)
	r.Genre = genre.String
	r.ScrapingMethod = types.ScrapingMethod(method)

	if r.Genres, err = unmarshalList(genresJSON); err != nil {
		return r, fmt.Errorf("unmarshal genres: %w", err)
	}
	if r.Actors, err = unmarshalList(actorsJSON); err != nil {
		return r, fmt.Errorf("unmarshal actors: %w", err)
	}
	if r.Country, err = unmarshalList(countryJSON); err != nil {
		return r, fmt.Errorf("unmarshal country: %w", err)
	}
	if r.ScrapedAt, err = time.Parse(timeLayout, scrapedAt); err != nil {
		return r, fmt.Errorf("parse scraped_at: %w", err)
	}
	return r, nil
}

func marshalList(values []string) (string, error) {
	if values == nil {
		values = []string{}
	}
	data, err := json.Marshal(values)
	return string(data), err
}

func unmarshalList(data string) ([]string, error) {
	values := []string{}
	if data == "" {
		return values, nil
	}
	if err := json.Unmarshal([]byte(data), &values); err != nil {
		return nil, err
	}
	return values, nil
}

func stringPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
