// Package store persists dashboard state in a SQLite database.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver" // SQLite driver for database/sql
	_ "github.com/ncruces/go-sqlite3/embed"  // Embed SQLite for cross-platform compatibility
)

// ErrInvalidFlakeURL is returned for empty or whitespace-containing URLs.
var ErrInvalidFlakeURL = errors.New("store: invalid flake url")

const schema = `
CREATE TABLE IF NOT EXISTS flake (
	url TEXT NOT NULL PRIMARY KEY,
	metadata JSON,
	last_accessed TIMESTAMP NOT NULL,
	last_fetched TIMESTAMP
);`

// timeFormat is fixed width so that text order in SQLite is time order.
// RFC3339Nano trims trailing zeros and would sort "05Z" after "05.1Z".
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeFormat)
}

// Flake is a flake URL the user has looked at.
type Flake struct {
	URL          string     `json:"url"`
	LastAccessed time.Time  `json:"last_accessed"`
	LastFetched  *time.Time `json:"last_fetched,omitempty"`
}

// Store is the application database.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (creating if needed) the database at path.
func Open(ctx context.Context, path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("store: create directory: %w", err)
	}

	db, err := sql.Open("sqlite3", "file:"+path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	// SQLite serialises writers anyway; one connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: connect %s: %w", path, err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: init schema: %w", err)
	}

	return &Store{db: db, now: time.Now}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// ValidateFlakeURL performs the cheap syntactic checks done before storing.
func ValidateFlakeURL(url string) error {
	if strings.TrimSpace(url) == "" || strings.ContainsAny(url, " \t\r\n") {
		return fmt.Errorf("%w: %q", ErrInvalidFlakeURL, url)
	}
	return nil
}

// RegisterFlake records url, or refreshes its access time if already known.
func (s *Store) RegisterFlake(ctx context.Context, url string) error {
	if err := ValidateFlakeURL(url); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO flake (url, last_accessed) VALUES (?, ?)
		 ON CONFLICT(url) DO UPDATE SET last_accessed = excluded.last_accessed`,
		url, formatTime(s.now()))
	if err != nil {
		return fmt.Errorf("store: register flake %s: %w", url, err)
	}
	return nil
}

// MarkFetched records that url's metadata was fetched.
func (s *Store) MarkFetched(ctx context.Context, url string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE flake SET last_fetched = ? WHERE url = ?`,
		formatTime(s.now()), url)
	if err != nil {
		return fmt.Errorf("store: mark fetched %s: %w", url, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: mark fetched %s: %w", url, err)
	}
	if n == 0 {
		return fmt.Errorf("store: mark fetched: unknown flake %s", url)
	}
	return nil
}

// RecentFlakes returns up to limit flakes, most recently accessed first.
func (s *Store) RecentFlakes(ctx context.Context, limit int) ([]Flake, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT url, last_accessed, last_fetched FROM flake
		 ORDER BY last_accessed DESC, url ASC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("store: list flakes: %w", err)
	}
	defer rows.Close()

	var out []Flake
	for rows.Next() {
		var (
			f        Flake
			accessed string
			fetched  sql.NullString
		)
		if err := rows.Scan(&f.URL, &accessed, &fetched); err != nil {
			return nil, fmt.Errorf("store: scan flake: %w", err)
		}
		if f.LastAccessed, err = time.Parse(timeFormat, accessed); err != nil {
			return nil, fmt.Errorf("store: parse last_accessed: %w", err)
		}
		if fetched.Valid {
			t, err := time.Parse(timeFormat, fetched.String)
			if err != nil {
				return nil, fmt.Errorf("store: parse last_fetched: %w", err)
			}
			f.LastFetched = &t
		}
		out = append(out, f)
	}
	return out, rows.Err()
}
