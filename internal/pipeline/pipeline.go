// Package pipeline renders a page, locates its video source, screenshots it
// and records what it found in the content cache.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"

	"github.com/stupside/reel/internal/browser"
	"github.com/stupside/reel/internal/cache"
	"github.com/stupside/reel/internal/capture"
	"github.com/stupside/reel/internal/content"
	"github.com/stupside/reel/internal/locate"
)

// ErrNoSource is returned by Resolve when rendering found no video source.
var ErrNoSource = errors.New("video source not found")

// Result is everything a single render produced.
type Result struct {
	URL       string
	ContentID string
	Media     locate.Reference
	// Screenshot is nil when capture failed; ScreenshotErr says why.
	Screenshot    *capture.Artifact
	ScreenshotErr error
	HTML          string
	CookieHeader  string
}

// Options tunes the pipeline.
type Options struct {
	MaxSessions        int64
	ScreenshotRequired bool
}

// Pipeline runs render-and-extract requests.
type Pipeline struct {
	opener   browser.Opener
	locator  *locate.Locator
	capturer *capture.Capturer
	store    cache.Store
	mapper   *content.Mapper
	sessions *semaphore.Weighted
	flight   singleflight.Group
	opts     Options
}

// New creates a Pipeline.
func New(opener browser.Opener, locator *locate.Locator, capturer *capture.Capturer, store cache.Store, mapper *content.Mapper, opts Options) *Pipeline {
	return &Pipeline{
		opener:   opener,
		locator:  locator,
		capturer: capturer,
		store:    store,
		mapper:   mapper,
		sessions: semaphore.NewWeighted(max(opts.MaxSessions, 1)),
		opts:     opts,
	}
}

// Mapper returns the content id mapper.
func (p *Pipeline) Mapper() *content.Mapper { return p.mapper }

// open admits a new render session. The returned release closes the session
// and frees its slot; it is safe to call more than once and closes only once.
func (p *Pipeline) open(ctx context.Context, targetURL string) (browser.Session, func(), error) {
	if err := p.sessions.Acquire(ctx, 1); err != nil {
		return nil, nil, fmt.Errorf("waiting for a browser slot: %w", err)
	}

	s, err := p.opener.Open(ctx, targetURL)
	if err != nil {
		p.sessions.Release(1)
		return nil, nil, err
	}

	release := sync.OnceFunc(func() {
		if err := s.Close(); err != nil {
			slog.WarnContext(ctx, "closing browser session", "url", targetURL, "error", err)
		}
		p.sessions.Release(1)
	})
	return s, release, nil
}

// Run renders targetURL and returns the discovered video source, screenshot
// and rendered HTML. A missing video is not an error. When a source is found
// and the URL carries a content id, the cache entry is written (last write wins).
func (p *Pipeline) Run(ctx context.Context, targetURL string) (*Result, error) {
	slog.InfoContext(ctx, "fetching URL", "url", targetURL)

	s, release, err := p.open(ctx, targetURL)
	if err != nil {
		return nil, err
	}
	defer release()

	res := &Result{URL: targetURL}
	res.ContentID, _ = p.mapper.ID(targetURL)

	res.Media = p.locator.Live(ctx, s)

	p.locator.Settle(ctx)

	if a, err := p.capturer.Capture(ctx, s); err != nil {
		if p.opts.ScreenshotRequired {
			return nil, fmt.Errorf("taking screenshot: %w", err)
		}
		slog.WarnContext(ctx, "screenshot could not be generated", "url", targetURL, "error", err)
		res.ScreenshotErr = err
	} else {
		res.Screenshot = &a
	}

	if res.HTML, err = s.HTML(ctx); err != nil {
		return nil, fmt.Errorf("reading rendered page: %w", err)
	}

	if !res.Media.Found() {
		slog.InfoContext(ctx, "attempting static parse fallback")
		res.Media = locate.Static(res.HTML, s.URL())
	}

	res.CookieHeader = p.cookieHeader(ctx, s)

	release()

	if res.Media.Found() && res.ContentID != "" {
		p.remember(ctx, res.ContentID, res.Media.Src, res.CookieHeader)
	}

	slog.InfoContext(ctx, "extraction finished",
		"url", targetURL,
		"content_id", res.ContentID,
		"video_found", res.Media.Found(),
		"origin", res.Media.Origin.String(),
		"screenshot", res.Screenshot != nil,
	)
	return res, nil
}

// Resolve returns the cached entry for contentID, rendering its page once on
// a miss. Concurrent misses for the same id share one render.
func (p *Pipeline) Resolve(ctx context.Context, contentID string) (cache.Entry, error) {
	if e, ok, err := p.store.Get(ctx, contentID); err != nil {
		slog.WarnContext(ctx, "cache lookup failed, rendering", "content_id", contentID, "error", err)
	} else if ok {
		slog.DebugContext(ctx, "cache hit", "content_id", contentID)
		return e, nil
	}

	ch := p.flight.DoChan(contentID, func() (any, error) {
		// The shared render must not die with whichever caller started it.
		return p.populate(context.WithoutCancel(ctx), contentID)
	})

	select {
	case r := <-ch:
		if r.Err != nil {
			return cache.Entry{}, r.Err
		}
		return r.Val.(cache.Entry), nil
	case <-ctx.Done():
		return cache.Entry{}, ctx.Err()
	}
}

// populate renders the page for contentID and stores what it finds.
func (p *Pipeline) populate(ctx context.Context, contentID string) (cache.Entry, error) {
	if e, ok, err := p.store.Get(ctx, contentID); err == nil && ok {
		return e, nil
	}

	targetURL := p.mapper.URL(contentID)
	slog.InfoContext(ctx, "cache miss, rendering", "content_id", contentID, "url", targetURL)

	s, release, err := p.open(ctx, targetURL)
	if err != nil {
		return cache.Entry{}, err
	}
	defer release()

	ref, err := p.locator.Locate(ctx, s)
	if err != nil {
		return cache.Entry{}, err
	}
	if !ref.Found() {
		return cache.Entry{}, fmt.Errorf("%w for content %s", ErrNoSource, contentID)
	}

	cookieHeader := p.cookieHeader(ctx, s)
	release()

	return p.remember(ctx, contentID, ref.Src, cookieHeader), nil
}

// remember writes a cache entry; store failures are logged only.
func (p *Pipeline) remember(ctx context.Context, contentID, src, cookieHeader string) cache.Entry {
	e := cache.Entry{ContentID: contentID, VideoSrc: src, CookieHeader: cookieHeader}
	if err := p.store.Put(ctx, contentID, e); err != nil {
		slog.WarnContext(ctx, "caching video source failed", "content_id", contentID, "error", err)
	} else {
		slog.DebugContext(ctx, "cached video source", "content_id", contentID, "src", src)
	}
	return e
}

func (p *Pipeline) cookieHeader(ctx context.Context, s browser.Session) string {
	cookies, err := s.Cookies(ctx)
	if err != nil {
		slog.WarnContext(ctx, "reading session cookies failed", "error", err)
		return ""
	}
	return browser.CookieHeader(cookies)
}
