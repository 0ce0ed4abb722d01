package relay

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"

	"github.com/stupside/reel/internal/app"
	"github.com/stupside/reel/internal/cache"
)

type fakeResolver struct {
	entries map[string]cache.Entry
	err     error
	calls   atomic.Int32
}

func (f *fakeResolver) Resolve(_ context.Context, id string) (cache.Entry, error) {
	f.calls.Add(1)
	if f.err != nil {
		return cache.Entry{}, f.err
	}
	e, ok := f.entries[id]
	if !ok {
		return cache.Entry{}, errors.New("unknown content")
	}
	return e, nil
}

func newRelay(resolver Resolver) *Relay {
	return New(resolver, app.RelayConfig{BufferSize: 4096})
}

func TestServeForwardsRangeAndStatus(t *testing.T) {
	body := bytes.Repeat([]byte("0123456789"), 100)

	var gotRange, gotCookie string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotRange = r.Header.Get("Range")
		gotCookie = r.Header.Get("Cookie")
		w.Header().Set("Content-Type", "video/webm")
		w.Header().Set("Accept-Ranges", "bytes")
		w.Header().Set("Content-Range", "bytes 0-99/1000")
		w.Header().Set("Content-Length", "100")
		w.Header().Set("X-Internal", "secret")
		w.WriteHeader(http.StatusPartialContent)
		w.Write(body[:100])
	}))
	defer upstream.Close()

	resolver := &fakeResolver{entries: map[string]cache.Entry{
		"abc123": {ContentID: "abc123", VideoSrc: upstream.URL + "/video.webm", CookieHeader: "accountToken=tok; lang=en"},
	}}

	req := httptest.NewRequest(http.MethodGet, "/video/abc123", nil)
	req.Header.Set("Range", "bytes=0-99")
	rec := httptest.NewRecorder()

	if err := newRelay(resolver).Serve(rec, req, "abc123"); err != nil {
		t.Fatalf("Serve: %v", err)
	}

	if gotRange != "bytes=0-99" {
		t.Errorf("upstream Range = %q", gotRange)
	}
	if gotCookie != "accountToken=tok; lang=en" {
		t.Errorf("upstream Cookie = %q", gotCookie)
	}
	if rec.Code != http.StatusPartialContent {
		t.Errorf("status = %d, want 206", rec.Code)
	}

	for k, want := range map[string]string{
		"Content-Type":   "video/webm",
		"Accept-Ranges":  "bytes",
		"Content-Range":  "bytes 0-99/1000",
		"Content-Length": "100",
		"X-Internal":     "",
	} {
		if got := rec.Header().Get(k); got != want {
			t.Errorf("header %s = %q, want %q", k, got, want)
		}
	}
	if !bytes.Equal(rec.Body.Bytes(), body[:100]) {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestServeWithoutRange(t *testing.T) {
	var sawRange bool
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, sawRange = r.Header["Range"]
		w.Write([]byte("video"))
	}))
	defer upstream.Close()

	resolver := &fakeResolver{entries: map[string]cache.Entry{"x": {VideoSrc: upstream.URL}}}
	rec := httptest.NewRecorder()

	if err := newRelay(resolver).Serve(rec, httptest.NewRequest(http.MethodGet, "/video/x", nil), "x"); err != nil {
		t.Fatalf("Serve: %v", err)
	}
	if sawRange {
		t.Error("Range must not be invented")
	}
	if rec.Code != http.StatusOK || rec.Body.String() != "video" {
		t.Errorf("got %d %q", rec.Code, rec.Body.String())
	}
}

func TestServeStreamsLargeBody(t *testing.T) {
	body := bytes.Repeat([]byte{0xAB, 0xCD, 0xEF}, 200_000)
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", strconv.Itoa(len(body)))
		w.Write(body)
	}))
	defer upstream.Close()

	resolver := &fakeResolver{entries: map[string]cache.Entry{"big": {VideoSrc: upstream.URL}}}
	rec := httptest.NewRecorder()

	if err := newRelay(resolver).Serve(rec, httptest.NewRequest(http.MethodGet, "/video/big", nil), "big"); err != nil {
		t.Fatalf("Serve: %v", err)
	}
	if !bytes.Equal(rec.Body.Bytes(), body) {
		t.Errorf("relayed %d bytes, want %d", rec.Body.Len(), len(body))
	}
}

func TestOpenUpstreamError(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusForbidden)
	}))
	defer upstream.Close()

	resolver := &fakeResolver{entries: map[string]cache.Entry{"abc": {VideoSrc: upstream.URL}}}

	_, err := newRelay(resolver).Open(context.Background(), "abc", "")

	var upErr *UpstreamError
	if !errors.As(err, &upErr) {
		t.Fatalf("error = %v, want *UpstreamError", err)
	}
	if upErr.StatusCode != http.StatusForbidden || upErr.Status != "403 Forbidden" {
		t.Errorf("UpstreamError = %+v", upErr)
	}
}

func TestServeResolveErrorWritesNothing(t *testing.T) {
	resolveErr := errors.New("no source")
	rec := httptest.NewRecorder()

	err := newRelay(&fakeResolver{err: resolveErr}).Serve(rec, httptest.NewRequest(http.MethodGet, "/video/a", nil), "a")
	if !errors.Is(err, resolveErr) {
		t.Fatalf("error = %v, want %v", err, resolveErr)
	}
	if rec.Body.Len() != 0 || len(rec.Header()) != 0 {
		t.Error("nothing should be written on resolve failure")
	}
}
