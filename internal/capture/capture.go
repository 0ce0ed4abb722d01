// Package capture writes full-page screenshots of render sessions to disk.
package capture

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/stupside/reel/internal/browser"
)

// maxNameAttempts bounds how many timestamps are tried when names collide.
const maxNameAttempts = 1000

// Artifact is a screenshot written to disk.
type Artifact struct {
	Name string // file name, relative to the output directory
	Path string // full path on disk
	Size int
}

// Capturer writes screenshots named screenshot_<unixMillis>.png.
type Capturer struct {
	dir string
	now func() time.Time
}

// New creates a Capturer writing into dir.
func New(dir string) *Capturer {
	return &Capturer{dir: dir, now: time.Now}
}

// Dir returns the output directory.
func (c *Capturer) Dir() string { return c.dir }

// Capture takes a full-page screenshot of s and writes it under the output
// directory, creating the directory if needed.
func (c *Capturer) Capture(ctx context.Context, s browser.Session) (Artifact, error) {
	buf, err := s.Screenshot(ctx)
	if err != nil {
		return Artifact{}, err
	}

	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return Artifact{}, fmt.Errorf("creating screenshot dir %s: %w", c.dir, err)
	}

	f, name, err := c.create()
	if err != nil {
		return Artifact{}, err
	}

	path := f.Name()
	if _, err := f.Write(buf); err != nil {
		f.Close()
		os.Remove(path)
		return Artifact{}, fmt.Errorf("writing screenshot %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return Artifact{}, fmt.Errorf("closing screenshot %s: %w", path, err)
	}

	slog.InfoContext(ctx, "screenshot saved", "path", path, "bytes", len(buf))
	return Artifact{Name: name, Path: path, Size: len(buf)}, nil
}

// create exclusively opens the first free timestamped name, starting at now
// and moving forward one millisecond per collision.
func (c *Capturer) create() (*os.File, string, error) {
	ts := c.now().UnixMilli()
	for range maxNameAttempts {
		name := fmt.Sprintf("screenshot_%d.png", ts)
		f, err := os.OpenFile(filepath.Join(c.dir, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			return f, name, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return nil, "", fmt.Errorf("creating screenshot file: %w", err)
		}
		ts++
	}
	return nil, "", fmt.Errorf("no free screenshot name after %d attempts", maxNameAttempts)
}
