// Package store persists pipeline output: one tabular SQLite file per
// calendar day, a daily stats record, and retention of old period files.
package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/elonfeng/newspulse/pkg/source"
)

const (
	periodFilePrefix = "news_"
	periodFileExt    = ".db"
)

// Row is one appended record in a period file.
type Row struct {
	ID        int64     `db:"id"`
	Tag       string    `db:"tag"`
	URL       string    `db:"url"`
	Title     string    `db:"title"`
	Summary   string    `db:"summary"`
	Score     int       `db:"score"`
	Type      string    `db:"type"`
	CreatedAt time.Time `db:"created_at"`
}

// Store manages day-keyed period files under a data directory.
type Store struct {
	dir string
	now func() time.Time
}

// New creates a store rooted at dir. The directory is created lazily on
// first append.
func New(dir string) *Store {
	return &Store{dir: dir, now: time.Now}
}

// Dir returns the data directory.
func (s *Store) Dir() string { return s.dir }

// PathFor returns the deterministic period-file path for a calendar day.
func (s *Store) PathFor(day time.Time) string {
	name := periodFilePrefix + day.Format("2006-01-02") + periodFileExt
	return filepath.Join(s.dir, name)
}

// ExistingURLs returns the set of URLs already recorded in the period
// file at path. A missing or unreadable file is an empty set, never an
// error: dedup degrades to "everything is new".
func (s *Store) ExistingURLs(ctx context.Context, path string) map[string]bool {
	urls := make(map[string]bool)

	if _, err := os.Stat(path); err != nil {
		return urls
	}

	db, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return urls
	}
	defer db.Close()

	var list []string
	if err := db.SelectContext(ctx, &list, "SELECT url FROM news"); err != nil {
		return urls
	}
	for _, u := range list {
		if u != "" {
			urls[u] = true
		}
	}
	return urls
}

// Append inserts one row per item into the period file at path, creating
// the parent directory and schema as needed. Rows carry the append
// timestamp, not the publish time. A failure here means data loss and is
// fatal to the run.
func (s *Store) Append(ctx context.Context, path string, items []source.Item) error {
	if len(items) == 0 {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	db, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return fmt.Errorf("open period file %s: %w", path, err)
	}
	defer db.Close()

	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema %s: %w", path, err)
	}

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append %s: %w", path, err)
	}
	defer tx.Rollback()

	now := s.now().UTC()
	for i := range items {
		item := &items[i]
		tag, typ := "", ""
		if item.Tag != nil {
			tag = item.Tag.Name
			typ = string(item.Tag.Type)
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO news (tag, url, title, summary, score, type, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, tag, item.URL, item.Title, item.Summary, item.Importance, typ, now)
		if err != nil {
			return fmt.Errorf("append row %s: %w", item.URL, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit append %s: %w", path, err)
	}
	return nil
}

// Rows reads back every row in a period file in insertion order.
func (s *Store) Rows(ctx context.Context, path string) ([]Row, error) {
	db, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open period file %s: %w", path, err)
	}
	defer db.Close()

	var rows []Row
	if err := db.SelectContext(ctx, &rows, "SELECT * FROM news ORDER BY id"); err != nil {
		return nil, fmt.Errorf("read rows %s: %w", path, err)
	}
	return rows, nil
}
