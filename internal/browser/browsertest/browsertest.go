// Package browsertest provides in-memory render sessions for tests.
package browsertest

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/stupside/reel/internal/browser"
)

// Session is a scripted browser.Session.
type Session struct {
	PageURL string
	Page    string
	// LiveSrc is what the live DOM reports for the media src; empty means missing.
	LiveSrc string
	// HasElement controls whether the media selector matches on the live page.
	HasElement bool
	// AttributeAfter delays the src mutation signal; negative never signals.
	AttributeAfter time.Duration
	PNG            []byte
	ScreenshotErr  error
	CookieList     []browser.Cookie

	closes atomic.Int32
}

var _ browser.Session = (*Session)(nil)

func (s *Session) URL() string { return s.PageURL }

func (s *Session) WaitSelector(_ context.Context, selector string, timeout time.Duration) error {
	if s.closed() {
		return browser.ErrClosed
	}
	if !s.HasElement {
		return fmt.Errorf("%w: %q after %s", browser.ErrSelectorTimeout, selector, timeout)
	}
	return nil
}

func (s *Session) Attribute(context.Context, string, string) (string, bool, error) {
	if s.closed() {
		return "", false, browser.ErrClosed
	}
	if !s.HasElement {
		return "", false, nil
	}
	return s.LiveSrc, s.LiveSrc != "", nil
}

func (s *Session) WaitAttribute(ctx context.Context, _, _ string) (bool, error) {
	if !s.HasElement {
		return false, nil
	}
	if s.AttributeAfter < 0 {
		<-ctx.Done()
		return false, ctx.Err()
	}
	timer := time.NewTimer(s.AttributeAfter)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

func (s *Session) HTML(context.Context) (string, error) {
	if s.closed() {
		return "", browser.ErrClosed
	}
	return s.Page, nil
}

func (s *Session) Screenshot(context.Context) ([]byte, error) {
	if s.ScreenshotErr != nil {
		return nil, s.ScreenshotErr
	}
	if s.PNG == nil {
		return []byte("\x89PNG\r\n\x1a\n"), nil
	}
	return s.PNG, nil
}

func (s *Session) Cookies(context.Context) ([]browser.Cookie, error) {
	return s.CookieList, nil
}

func (s *Session) Close() error {
	s.closes.Add(1)
	return nil
}

// Closes reports how many times Close was called.
func (s *Session) Closes() int { return int(s.closes.Load()) }

func (s *Session) closed() bool { return s.closes.Load() > 0 }

// Opener hands out sessions built by New and counts every Open call.
type Opener struct {
	New func(targetURL string) *Session
	Err error

	opens    atomic.Int32
	mu       sync.Mutex
	sessions []*Session
}

var _ browser.Opener = (*Opener)(nil)

func (o *Opener) Open(_ context.Context, targetURL string) (browser.Session, error) {
	o.opens.Add(1)
	if o.Err != nil {
		return nil, o.Err
	}
	s := o.New(targetURL)
	if s.PageURL == "" {
		s.PageURL = targetURL
	}
	o.mu.Lock()
	o.sessions = append(o.sessions, s)
	o.mu.Unlock()
	return s, nil
}

// Opens reports how many sessions were requested.
func (o *Opener) Opens() int { return int(o.opens.Load()) }

// Sessions returns the sessions handed out so far.
func (o *Opener) Sessions() []*Session {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]*Session(nil), o.sessions...)
}

// VideoPage returns a session whose page embeds src in a <source> element.
func VideoPage(src string) func(string) *Session {
	return func(string) *Session {
		return &Session{
			Page:       `<html><head><title>video</title></head><body><video><source src="` + src + `"></video></body></html>`,
			LiveSrc:    src,
			HasElement: true,
		}
	}
}
