// Package locate finds the source URL of a video element on a rendered page.
package locate

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/stupside/reel/internal/app"
	"github.com/stupside/reel/internal/browser"
)

const (
	// SourceSelector matches a <source> child carrying a src.
	SourceSelector = "video source[src]"
	// VideoSelector matches a <video> carrying its own src.
	VideoSelector = "video[src]"
	// MediaSelector matches either form.
	MediaSelector = SourceSelector + ", " + VideoSelector
)

// Origin records which path produced a Reference.
type Origin int

const (
	OriginNone Origin = iota
	OriginDOM
	OriginStatic
)

func (o Origin) String() string {
	switch o {
	case OriginDOM:
		return "dom"
	case OriginStatic:
		return "static"
	default:
		return "none"
	}
}

// Reference is the outcome of a lookup. Src is empty when nothing was found.
type Reference struct {
	Src    string
	Origin Origin
}

// Found reports whether a source was discovered.
func (r Reference) Found() bool { return r.Src != "" }

// Locator looks for video sources with bounded waits.
type Locator struct {
	selectorTimeout  time.Duration
	attributeTimeout time.Duration
	settleDelay      time.Duration
}

// New creates a Locator from its configuration.
func New(cfg app.LocatorConfig) *Locator {
	return &Locator{
		selectorTimeout:  cfg.SelectorTimeout,
		attributeTimeout: cfg.AttributeTimeout,
		settleDelay:      cfg.SettleDelay,
	}
}

// Locate runs the live lookup and falls back to parsing the rendered HTML.
// Missing elements or attributes never produce an error; only a failure to
// read the page HTML for the fallback does.
func (l *Locator) Locate(ctx context.Context, s browser.Session) (Reference, error) {
	if ref := l.Live(ctx, s); ref.Found() {
		return ref, nil
	}

	html, err := s.HTML(ctx)
	if err != nil {
		return Reference{}, fmt.Errorf("reading rendered HTML: %w", err)
	}
	return Static(html, s.URL()), nil
}

// Live waits for a video element on the live page, gives its src a bounded
// chance to appear, then reads it.
func (l *Locator) Live(ctx context.Context, s browser.Session) Reference {
	if err := s.WaitSelector(ctx, MediaSelector, l.selectorTimeout); err != nil {
		slog.InfoContext(ctx, "video element not found on live page", "url", s.URL(), "error", err)
		return Reference{}
	}

	slog.DebugContext(ctx, "video element selector found", "url", s.URL())

	if !l.awaitAttribute(ctx, s) {
		slog.DebugContext(ctx, "src attribute did not appear before timeout", "timeout", l.attributeTimeout)
	}

	src, ok, err := s.Attribute(ctx, MediaSelector, "src")
	if err != nil {
		slog.WarnContext(ctx, "reading video src failed", "error", err)
		return Reference{}
	}
	if !ok {
		slog.InfoContext(ctx, "video source not found on live page, falling back to static parse")
		return Reference{}
	}

	src = absolute(s.URL(), src)
	slog.InfoContext(ctx, "found video source on live page", "src", src)
	return Reference{Src: src, Origin: OriginDOM}
}

// awaitAttribute races the page's src mutation against the attribute timeout.
// The first signal wins; when both are ready the timeout is reported so the
// caller always makes progress.
func (l *Locator) awaitAttribute(ctx context.Context, s browser.Session) bool {
	waitCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	appeared := make(chan bool, 1)
	go func() {
		ok, err := s.WaitAttribute(waitCtx, MediaSelector, "src")
		if err != nil {
			slog.DebugContext(ctx, "attribute wait ended", "error", err)
		}
		appeared <- ok && err == nil
	}()

	timer := time.NewTimer(l.attributeTimeout)
	defer timer.Stop()

	select {
	case <-timer.C:
		return false
	case <-ctx.Done():
		return false
	case ok := <-appeared:
		select {
		case <-timer.C:
			return false
		default:
			return ok
		}
	}
}

// Settle waits the configured extra settle time. It is best effort: it only
// gives late scripts more time and never guarantees a complete page.
func (l *Locator) Settle(ctx context.Context) {
	if l.settleDelay <= 0 {
		return
	}

	slog.DebugContext(ctx, "waiting for page to settle", "delay", l.settleDelay)

	timer := time.NewTimer(l.settleDelay)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

// Static queries serialized HTML with a non-executing parser: the first
// <source src> inside a video, else the first <video src>. Relative sources
// are resolved against pageURL.
func Static(html, pageURL string) Reference {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		slog.Debug("static parse failed", "error", err)
		return Reference{}
	}

	for _, sel := range []string{SourceSelector, VideoSelector} {
		if src, ok := doc.Find(sel).First().Attr("src"); ok && strings.TrimSpace(src) != "" {
			src = absolute(pageURL, strings.TrimSpace(src))
			slog.Debug("found video source via static parse", "selector", sel, "src", src)
			return Reference{Src: src, Origin: OriginStatic}
		}
	}

	slog.Debug("video source not found via static parse")
	return Reference{}
}

// absolute resolves src against base, returning src unchanged when either
// does not parse.
func absolute(base, src string) string {
	b, err := url.Parse(base)
	if err != nil {
		return src
	}
	u, err := b.Parse(src)
	if err != nil {
		return src
	}
	return u.String()
}
