package browser

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/browser"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"

	"github.com/stupside/reel/internal/app"
)

//go:embed js/attribute_read.js
var attributeReadJS string

//go:embed js/attribute_wait.js
var attributeWaitJS string

// Chrome opens sessions backed by a fresh headless Chrome process each.
type Chrome struct {
	cfg app.BrowserConfig
}

// NewChrome creates a Chrome opener.
func NewChrome(cfg app.BrowserConfig) *Chrome {
	return &Chrome{cfg: cfg}
}

// chromeSession owns the chromedp lifecycle for a single page.
type chromeSession struct {
	url         string
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
	snapshotDir string
	closeOnce   sync.Once
}

var _ Session = (*chromeSession)(nil)

// Open launches Chrome, applies the stealth profile and navigates to targetURL.
// The browser is torn down before returning on any navigation failure.
func (c *Chrome) Open(ctx context.Context, targetURL string) (Session, error) {
	p := newProfile()
	slog.DebugContext(ctx, "browser profile generated",
		"ua", p.UserAgent,
		"platform", p.Platform,
		"timezone", p.TimezoneID,
		"screen", fmt.Sprintf("%dx%d", p.ScreenWidth, p.ScreenHeight),
	)

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, allocatorOpts(c.cfg, p)...)

	taskCtx, taskCancel := chromedp.NewContext(allocCtx)

	// Navigate with a timer instead of a child context: canceling a child of
	// the chromedp task context on the first Run tears the target down.
	navDone := make(chan error, 1)
	go func() {
		navDone <- chromedp.Run(taskCtx,
			runtime.Enable(),
			network.Enable(),
			browser.SetDownloadBehavior(browser.SetDownloadBehaviorBehaviorDeny),
			injectCDPStealth(p),
			chromedp.Navigate(targetURL),
		)
	}()

	var err error
	select {
	case err = <-navDone:
	case <-time.After(c.cfg.NavigationTimeout):
		err = fmt.Errorf("timed out after %s", c.cfg.NavigationTimeout)
	}

	if err != nil {
		taskCancel()
		allocCancel()
		return nil, fmt.Errorf("%w: %s: %w", ErrNavigation, targetURL, err)
	}

	s := &chromeSession{
		url:         targetURL,
		ctx:         taskCtx,
		cancel:      taskCancel,
		allocCancel: allocCancel,
		snapshotDir: snapshotDir(targetURL),
	}
	snapshot(taskCtx, s.snapshotDir, "after_nav")

	slog.DebugContext(ctx, "browser navigated", "url", targetURL)
	return s, nil
}

func (s *chromeSession) URL() string { return s.url }

// scope derives a context from the chromedp task context that is also
// canceled when ctx is done.
func (s *chromeSession) scope(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc, error) {
	if err := s.ctx.Err(); err != nil {
		return nil, nil, ErrClosed
	}

	var (
		runCtx context.Context
		cancel context.CancelFunc
	)
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(s.ctx, timeout)
	} else {
		runCtx, cancel = context.WithCancel(s.ctx)
	}

	stop := context.AfterFunc(ctx, cancel)
	return runCtx, func() {
		stop()
		cancel()
	}, nil
}

func (s *chromeSession) WaitSelector(ctx context.Context, selector string, timeout time.Duration) error {
	runCtx, cancel, err := s.scope(ctx, timeout)
	if err != nil {
		return err
	}
	defer cancel()

	if err := chromedp.Run(runCtx, chromedp.WaitReady(selector, chromedp.ByQuery)); err != nil {
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w: %q after %s", ErrSelectorTimeout, selector, timeout)
		}
		return fmt.Errorf("waiting for %q: %w", selector, err)
	}

	snapshot(s.ctx, s.snapshotDir, "selector_ready")
	return nil
}

type attributeResult struct {
	Found bool   `json:"found"`
	Value string `json:"value"`
}

func (s *chromeSession) Attribute(ctx context.Context, selector, name string) (string, bool, error) {
	runCtx, cancel, err := s.scope(ctx, 0)
	if err != nil {
		return "", false, err
	}
	defer cancel()

	js, err := buildAttributeJS(attributeReadJS, selector, name)
	if err != nil {
		return "", false, err
	}

	var res attributeResult
	if err := chromedp.Run(runCtx, chromedp.Evaluate(js, &res)); err != nil {
		return "", false, fmt.Errorf("reading %s of %q: %w", name, selector, err)
	}
	return res.Value, res.Found, nil
}

func (s *chromeSession) WaitAttribute(ctx context.Context, selector, name string) (bool, error) {
	runCtx, cancel, err := s.scope(ctx, 0)
	if err != nil {
		return false, err
	}
	defer cancel()

	js, err := buildAttributeJS(attributeWaitJS, selector, name)
	if err != nil {
		return false, err
	}

	var present bool
	err = chromedp.Run(runCtx, chromedp.Evaluate(js, &present, func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
		return p.WithAwaitPromise(true)
	}))
	if err != nil {
		return false, fmt.Errorf("observing %s of %q: %w", name, selector, err)
	}
	return present, nil
}

func (s *chromeSession) HTML(ctx context.Context) (string, error) {
	runCtx, cancel, err := s.scope(ctx, 0)
	if err != nil {
		return "", err
	}
	defer cancel()

	var html string
	if err := chromedp.Run(runCtx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("reading page HTML: %w", err)
	}
	return html, nil
}

func (s *chromeSession) Screenshot(ctx context.Context) ([]byte, error) {
	runCtx, cancel, err := s.scope(ctx, 0)
	if err != nil {
		return nil, err
	}
	defer cancel()

	// Quality 100 makes chromedp emit PNG instead of JPEG.
	var buf []byte
	if err := chromedp.Run(runCtx, chromedp.FullScreenshot(&buf, 100)); err != nil {
		return nil, fmt.Errorf("capturing screenshot: %w", err)
	}
	return buf, nil
}

func (s *chromeSession) Cookies(ctx context.Context) ([]Cookie, error) {
	runCtx, cancel, err := s.scope(ctx, 0)
	if err != nil {
		return nil, err
	}
	defer cancel()

	var raw []*network.Cookie
	err = chromedp.Run(runCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		raw, err = network.GetCookies().Do(ctx)
		return err
	}))
	if err != nil {
		return nil, fmt.Errorf("reading cookies: %w", err)
	}

	cookies := make([]Cookie, 0, len(raw))
	for _, c := range raw {
		cookies = append(cookies, Cookie{Name: c.Name, Value: c.Value})
	}
	return cookies, nil
}

// Close tears down the page and the browser process.
func (s *chromeSession) Close() error {
	s.closeOnce.Do(func() {
		s.cancel()
		s.allocCancel()
		slog.Debug("browser closed", "url", s.url)
	})
	return nil
}

// buildAttributeJS fills the selector and attribute placeholders with JSON
// string literals.
func buildAttributeJS(tmpl, selector, name string) (string, error) {
	sel, err := json.Marshal(selector)
	if err != nil {
		return "", fmt.Errorf("encoding selector: %w", err)
	}
	attr, err := json.Marshal(name)
	if err != nil {
		return "", fmt.Errorf("encoding attribute: %w", err)
	}
	r := strings.NewReplacer("__SELECTOR__", string(sel), "__ATTRIBUTE__", string(attr))
	return r.Replace(tmpl), nil
}
