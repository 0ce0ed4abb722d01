package browser

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"sync/atomic"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/stupside/reel/internal/app"
)

// maxStaticBody caps how much of a page the static engine reads.
const maxStaticBody = 10 << 20

// Static fetches raw HTML without executing scripts. Sessions cannot take
// screenshots and the document never changes after it was fetched.
type Static struct {
	timeout time.Duration
	delay   time.Duration
	client  func() (*http.Client, error)
}

// NewStatic creates a Static opener.
func NewStatic(cfg app.BrowserConfig) *Static {
	return &Static{
		timeout: cfg.NavigationTimeout,
		delay:   cfg.StaticDelay,
		client: func() (*http.Client, error) {
			jar, err := cookiejar.New(nil)
			if err != nil {
				return nil, err
			}
			return &http.Client{Timeout: cfg.NavigationTimeout, Jar: jar}, nil
		},
	}
}

type staticSession struct {
	url     string
	html    string
	doc     *goquery.Document
	cookies []Cookie
	closed  atomic.Bool
}

var _ Session = (*staticSession)(nil)

// Open waits the configured delay, then fetches targetURL once.
func (s *Static) Open(ctx context.Context, targetURL string) (Session, error) {
	if s.delay > 0 {
		timer := time.NewTimer(s.delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("%w: %s: %w", ErrNavigation, targetURL, ctx.Err())
		}
	}

	client, err := s.client()
	if err != nil {
		return nil, fmt.Errorf("creating http client: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrNavigation, targetURL, err)
	}
	req.Header.Set("User-Agent", newProfile().UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrNavigation, targetURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: %s: HTTP %d", ErrNavigation, targetURL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxStaticBody))
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %w", ErrNavigation, targetURL, err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", targetURL, err)
	}

	var cookies []Cookie
	for _, c := range client.Jar.Cookies(resp.Request.URL) {
		cookies = append(cookies, Cookie{Name: c.Name, Value: c.Value})
	}

	slog.DebugContext(ctx, "static page fetched", "url", targetURL, "bytes", len(body), "cookies", len(cookies))

	return &staticSession{
		url:     targetURL,
		html:    string(body),
		doc:     doc,
		cookies: cookies,
	}, nil
}

func (s *staticSession) URL() string { return s.url }

func (s *staticSession) WaitSelector(_ context.Context, selector string, timeout time.Duration) error {
	if s.closed.Load() {
		return ErrClosed
	}
	if s.doc.Find(selector).Length() == 0 {
		return fmt.Errorf("%w: %q after %s", ErrSelectorTimeout, selector, timeout)
	}
	return nil
}

func (s *staticSession) Attribute(_ context.Context, selector, name string) (string, bool, error) {
	if s.closed.Load() {
		return "", false, ErrClosed
	}
	v, _ := s.doc.Find(selector).First().Attr(name)
	return v, v != "", nil
}

// WaitAttribute never blocks: a static document cannot mutate.
func (s *staticSession) WaitAttribute(ctx context.Context, selector, name string) (bool, error) {
	_, ok, err := s.Attribute(ctx, selector, name)
	return ok, err
}

func (s *staticSession) HTML(context.Context) (string, error) {
	if s.closed.Load() {
		return "", ErrClosed
	}
	return s.html, nil
}

func (s *staticSession) Screenshot(context.Context) ([]byte, error) {
	return nil, fmt.Errorf("screenshot: %w", ErrUnsupported)
}

func (s *staticSession) Cookies(context.Context) ([]Cookie, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	return s.cookies, nil
}

func (s *staticSession) Close() error {
	s.closed.Store(true)
	return nil
}
