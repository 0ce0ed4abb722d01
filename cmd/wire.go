package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/stupside/reel/internal/app"
	"github.com/stupside/reel/internal/browser"
	"github.com/stupside/reel/internal/cache"
	"github.com/stupside/reel/internal/capture"
	"github.com/stupside/reel/internal/content"
	"github.com/stupside/reel/internal/locate"
	"github.com/stupside/reel/internal/pipeline"
)

// newPipeline builds the extraction pipeline from cfg. The returned close
// function releases the cache store.
func newPipeline(ctx context.Context, cfg *app.Config) (*pipeline.Pipeline, func(), error) {
	opener, err := browser.New(cfg.Browser)
	if err != nil {
		return nil, nil, err
	}

	mapper, err := content.NewMapper(cfg.Content)
	if err != nil {
		return nil, nil, err
	}

	store, err := cache.Open(ctx, cfg.Cache)
	if err != nil {
		return nil, nil, fmt.Errorf("opening %s cache: %w", cfg.Cache.Backend, err)
	}
	if cfg.Cache.Backend == app.CacheMemory && cfg.Cache.Capacity == 0 {
		slog.WarnContext(ctx, "content cache is unbounded; set cache.capacity to enable eviction")
	}

	p := pipeline.New(
		opener,
		locate.New(cfg.Locator),
		capture.New(cfg.Screenshot.Dir),
		store,
		mapper,
		pipeline.Options{
			MaxSessions:        cfg.Browser.MaxSessions,
			ScreenshotRequired: cfg.Screenshot.Required,
		},
	)

	closeStore := func() {
		if err := store.Close(); err != nil {
			slog.WarnContext(ctx, "closing cache", "error", err)
		}
	}
	return p, closeStore, nil
}
