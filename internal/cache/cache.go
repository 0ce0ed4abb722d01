// Package cache remembers, per content id, the video source and session
// cookies discovered by a previous render so repeat requests skip the browser.
//
// Entries are never invalidated: a content id keeps its source and cookies
// until the store forgets it, even if upstream cookies expire.
package cache

import (
	"context"
	"fmt"

	"github.com/stupside/reel/internal/app"
)

// Entry is what a render discovered for one content id.
type Entry struct {
	ContentID    string `json:"content_id"`
	VideoSrc     string `json:"video_src"`
	CookieHeader string `json:"cookie_header"`
}

// Store maps content ids to entries. Put overwrites: the last write wins.
// Implementations are safe for concurrent use.
type Store interface {
	Get(ctx context.Context, contentID string) (Entry, bool, error)
	Put(ctx context.Context, contentID string, e Entry) error
	Close() error
}

// Open creates the configured store.
func Open(ctx context.Context, cfg app.CacheConfig) (Store, error) {
	switch cfg.Backend {
	case app.CacheMemory:
		return NewMemory(cfg.Capacity), nil
	case app.CacheRedis:
		return NewRedis(ctx, cfg.Redis)
	case app.CacheSQLite:
		return NewSQLite(ctx, cfg.SQLite)
	default:
		return nil, fmt.Errorf("unknown cache backend: %q", cfg.Backend)
	}
}
