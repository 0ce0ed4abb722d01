// Package relay streams a located video from its upstream origin to an HTTP
// client, replaying the cookies captured while rendering the page.
package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/smallnest/ringbuffer"

	"github.com/stupside/reel/internal/app"
	"github.com/stupside/reel/internal/cache"
	"github.com/stupside/reel/internal/media"
)

const (
	minBufferSize = 4 << 10
	chunkSize     = 32 << 10
)

// forwardedHeaders are copied verbatim from the upstream response when present.
var forwardedHeaders = []string{"Content-Type", "Accept-Ranges", "Content-Length", "Content-Range"}

// UpstreamError reports a non-success response from the video origin.
type UpstreamError struct {
	StatusCode int
	Status     string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream responded %s", e.Status)
}

// Resolver maps a content id to its video source and cookies.
type Resolver interface {
	Resolve(ctx context.Context, contentID string) (cache.Entry, error)
}

// Relay opens upstream video streams.
type Relay struct {
	resolver   Resolver
	client     *http.Client
	bufferSize int
}

// New creates a Relay. A zero timeout leaves upstream transfers unbounded.
func New(resolver Resolver, cfg app.RelayConfig) *Relay {
	return &Relay{
		resolver:   resolver,
		client:     &http.Client{Timeout: cfg.Timeout},
		bufferSize: max(cfg.BufferSize, minBufferSize),
	}
}

// Stream is an open upstream response ready to be relayed.
type Stream struct {
	StatusCode int
	Header     http.Header
	Body       io.ReadCloser

	bufferSize int
}

// Open resolves contentID and issues the upstream request, forwarding
// rangeHeader unchanged when it is not empty. Non-2xx responses fail with
// *UpstreamError. The caller owns the returned stream and must close its Body.
func (r *Relay) Open(ctx context.Context, contentID, rangeHeader string) (*Stream, error) {
	entry, err := r.resolver.Resolve(ctx, contentID)
	if err != nil {
		return nil, fmt.Errorf("resolving content %s: %w", contentID, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, entry.VideoSrc, nil)
	if err != nil {
		return nil, fmt.Errorf("building upstream request: %w", err)
	}
	if entry.CookieHeader != "" {
		req.Header.Set("Cookie", entry.CookieHeader)
	}
	if rangeHeader != "" {
		req.Header.Set("Range", rangeHeader)
	}

	slog.DebugContext(ctx, "requesting upstream video", "content_id", contentID, "src", entry.VideoSrc, "range", rangeHeader)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching upstream video: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, chunkSize))
		resp.Body.Close()
		return nil, &UpstreamError{StatusCode: resp.StatusCode, Status: resp.Status}
	}

	if ct := resp.Header.Get("Content-Type"); media.DetectFromMIME(ct) == "" {
		slog.WarnContext(ctx, "upstream content type is not a known video type", "content_id", contentID, "content_type", ct)
	}

	header := make(http.Header, len(forwardedHeaders))
	for _, k := range forwardedHeaders {
		if v := resp.Header.Get(k); v != "" {
			header.Set(k, v)
		}
	}

	return &Stream{
		StatusCode: resp.StatusCode,
		Header:     header,
		Body:       resp.Body,
		bufferSize: r.bufferSize,
	}, nil
}

// WriteTo sends the status, forwarded headers and body to w and closes the
// body. The upstream is read through a bounded blocking buffer so a slow client
// applies backpressure instead of the body being held in memory.
func (s *Stream) WriteTo(ctx context.Context, w http.ResponseWriter) (int64, error) {
	defer s.Body.Close()

	for k, v := range s.Header {
		w.Header()[k] = v
	}
	w.WriteHeader(s.StatusCode)

	flusher, _ := w.(http.Flusher)
	if flusher != nil {
		flusher.Flush()
	}

	rb := ringbuffer.New(max(s.bufferSize, minBufferSize)).SetBlocking(true).WithCancel(ctx)

	go func() {
		if _, err := io.Copy(rb, s.Body); err != nil {
			rb.CloseWithError(err)
			return
		}
		rb.CloseWriter()
	}()

	buf := make([]byte, chunkSize)
	var written int64
	for {
		n, err := rb.Read(buf)
		if n > 0 {
			if _, we := w.Write(buf[:n]); we != nil {
				rb.CloseWithError(we)
				return written, fmt.Errorf("writing to client: %w", we)
			}
			written += int64(n)
			if flusher != nil {
				flusher.Flush()
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return written, nil
			}
			return written, fmt.Errorf("reading upstream: %w", err)
		}
	}
}

// Serve relays contentID to w. Errors returned before anything was written
// leave w untouched so the caller can still report them.
func (r *Relay) Serve(w http.ResponseWriter, req *http.Request, contentID string) error {
	ctx := req.Context()

	stream, err := r.Open(ctx, contentID, req.Header.Get("Range"))
	if err != nil {
		return err
	}

	n, err := stream.WriteTo(ctx, w)
	if err != nil {
		// Headers are already on the wire; only the log can carry this.
		slog.WarnContext(ctx, "relay interrupted", "content_id", contentID, "bytes", n, "error", err)
		return nil
	}

	slog.DebugContext(ctx, "relay finished", "content_id", contentID, "status", stream.StatusCode, "bytes", n)
	return nil
}
