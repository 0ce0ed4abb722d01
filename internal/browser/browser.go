// Package browser opens render sessions against target pages. A session owns
// one page for the duration of a single extraction and must be closed on every
// exit path.
package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/stupside/reel/internal/app"
)

var (
	// ErrNavigation wraps failures to reach or load the target page.
	ErrNavigation = errors.New("navigation failed")
	// ErrSelectorTimeout is returned when a selector does not match within its bound.
	ErrSelectorTimeout = errors.New("selector not found within timeout")
	// ErrUnsupported is returned by engines that cannot perform an operation.
	ErrUnsupported = errors.New("operation not supported by engine")
	// ErrClosed is returned when a session is used after Close.
	ErrClosed = errors.New("session closed")
)

// Cookie is a name/value pair held by the rendered page.
type Cookie struct {
	Name  string
	Value string
}

// Session is a live rendered page.
type Session interface {
	// URL returns the URL the session navigated to.
	URL() string
	// WaitSelector blocks until selector matches or timeout elapses.
	WaitSelector(ctx context.Context, selector string, timeout time.Duration) error
	// Attribute reads an attribute of the first element matching selector.
	// ok is false when the element or the attribute is missing or empty.
	Attribute(ctx context.Context, selector, name string) (value string, ok bool, err error)
	// WaitAttribute blocks until the first element matching selector carries a
	// non-empty attribute, or ctx is done. It returns false without waiting when
	// no element matches. Engines whose documents cannot change report the
	// current state without waiting.
	WaitAttribute(ctx context.Context, selector, name string) (bool, error)
	// HTML returns the serialized document.
	HTML(ctx context.Context) (string, error)
	// Screenshot captures the full page as PNG.
	Screenshot(ctx context.Context) ([]byte, error)
	// Cookies returns the cookies visible to the page, in browser order.
	Cookies(ctx context.Context) ([]Cookie, error)
	// Close releases the page. It is safe to call more than once.
	Close() error
}

// Opener creates sessions.
type Opener interface {
	Open(ctx context.Context, targetURL string) (Session, error)
}

// New returns the Opener for the configured engine.
func New(cfg app.BrowserConfig) (Opener, error) {
	switch cfg.Engine {
	case app.EngineChrome:
		return NewChrome(cfg), nil
	case app.EngineStatic:
		return NewStatic(cfg), nil
	default:
		return nil, fmt.Errorf("unknown browser engine: %q", cfg.Engine)
	}
}

// CookieHeader serializes cookies as a Cookie request header value.
func CookieHeader(cookies []Cookie) string {
	parts := make([]string, 0, len(cookies))
	for _, c := range cookies {
		parts = append(parts, c.Name+"="+c.Value)
	}
	return strings.Join(parts, "; ")
}
