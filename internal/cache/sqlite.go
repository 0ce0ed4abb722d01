package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/stupside/reel/internal/app"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS content_cache (
	content_id    TEXT PRIMARY KEY,
	video_src     TEXT NOT NULL,
	cookie_header TEXT NOT NULL,
	updated_at    INTEGER NOT NULL
)`

// SQLite persists entries across restarts in a single table.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens (creating if needed) the database at cfg.Path.
func NewSQLite(ctx context.Context, cfg app.SQLiteConfig) (*SQLite, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("sqlite cache: path is required")
	}

	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database %s: %w", cfg.Path, err)
	}
	// modernc's driver serialises writers; one connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	for _, stmt := range []string{"PRAGMA journal_mode=WAL", sqliteSchema} {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("initialising sqlite cache: %w", err)
		}
	}

	return &SQLite{db: db}, nil
}

func (s *SQLite) Get(ctx context.Context, contentID string) (Entry, bool, error) {
	e := Entry{ContentID: contentID}
	err := s.db.QueryRowContext(ctx,
		`SELECT video_src, cookie_header FROM content_cache WHERE content_id = ?`, contentID,
	).Scan(&e.VideoSrc, &e.CookieHeader)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("sqlite get %s: %w", contentID, err)
	}
	return e, true, nil
}

func (s *SQLite) Put(ctx context.Context, contentID string, e Entry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO content_cache (content_id, video_src, cookie_header, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(content_id) DO UPDATE SET
			video_src = excluded.video_src,
			cookie_header = excluded.cookie_header,
			updated_at = excluded.updated_at`,
		contentID, e.VideoSrc, e.CookieHeader, time.Now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("sqlite put %s: %w", contentID, err)
	}
	return nil
}

func (s *SQLite) Close() error { return s.db.Close() }
