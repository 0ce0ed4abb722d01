package report

import (
	"strings"
	"testing"

	"github.com/stupside/reel/internal/locate"
)

func TestRenderInjectsAfterHead(t *testing.T) {
	r := New("/public/", true)

	out, err := r.Render(Input{
		OriginalURL:    "https://gofile.io/d/abc123",
		ContentID:      "abc123",
		Media:          locate.Reference{Src: "https://cdn.example/video.webm", Origin: locate.OriginDOM},
		ScreenshotName: "screenshot_1700000000000.png",
		PageHTML:       "<html><HEAD><title>t</title></HEAD><body>page</body></html>",
	})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}

	if !strings.HasPrefix(out, "<html><HEAD><title>t</title></HEAD>\n<div") {
		t.Errorf("results not injected after head:\n%s", out)
	}
	for _, want := range []string{
		`href="https://gofile.io/d/abc123"`,
		`<source src="/video/abc123" type="video/webm">`,
		"https://cdn.example/video.webm",
		`<img src="/public/screenshot_1700000000000.png"`,
		`<a href="/">Try another URL</a>`,
		"<body>page</body>",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q", want)
		}
	}
}

func TestRenderDirectLink(t *testing.T) {
	tests := []struct {
		name       string
		proxy      bool
		contentID  string
		wantSource string
	}{
		{"proxy disabled", false, "abc123", `<source src="https://cdn.example/v.mp4" type="video/mp4">`},
		{"no content id", true, "", `<source src="https://cdn.example/v.mp4" type="video/mp4">`},
		{"proxied", true, "abc123", `<source src="/video/abc123" type="video/mp4">`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := New("/public/", tt.proxy).Render(Input{
				OriginalURL: "https://example.com/page",
				ContentID:   tt.contentID,
				Media:       locate.Reference{Src: "https://cdn.example/v.mp4", Origin: locate.OriginStatic},
			})
			if err != nil {
				t.Fatalf("Render: %v", err)
			}
			if !strings.Contains(out, tt.wantSource) {
				t.Errorf("output missing %q:\n%s", tt.wantSource, out)
			}
		})
	}
}

func TestRenderNotFound(t *testing.T) {
	out, err := New("/public/", true).Render(Input{
		OriginalURL: "https://gofile.io/d/abc123",
		ContentID:   "abc123",
	})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}

	if !strings.Contains(out, "Video Not Found") {
		t.Error("missing not-found section")
	}
	if strings.Contains(out, "<video") || strings.Contains(out, "/video/abc123") {
		t.Error("no player or proxy link without a source")
	}
	if !strings.Contains(out, "Screenshot could not be generated.") {
		t.Error("missing screenshot note")
	}
	if !strings.HasPrefix(out, "<!DOCTYPE html>") {
		t.Error("standalone report expected without page HTML")
	}
}

func TestRenderUnknownTypeOmitsAttribute(t *testing.T) {
	out, err := New("/public/", false).Render(Input{
		OriginalURL: "https://example.com/page",
		Media:       locate.Reference{Src: "https://cdn.example/stream?id=7", Origin: locate.OriginDOM},
	})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.Contains(out, `<source src="https://cdn.example/stream?id=7">`) {
		t.Errorf("unexpected source element:\n%s", out)
	}
}

func TestRenderEscapes(t *testing.T) {
	out, err := New("/public/", false).Render(Input{
		OriginalURL: `https://example.com/?q="><script>alert(1)</script>`,
		Media:       locate.Reference{Src: "javascript:alert(1)", Origin: locate.OriginStatic},
	})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if strings.Contains(out, "<script>alert(1)</script>") {
		t.Error("original URL not escaped")
	}
	if strings.Contains(out, `href="javascript:`) {
		t.Error("unsafe video URL not filtered")
	}
}

func TestInject(t *testing.T) {
	tests := []struct {
		page string
		want string
	}{
		{"<html><head></head><body></body></html>", "<html><head></head>X<body></body></html>"},
		{"<html><head></Head ><body>", "X<html><head></Head ><body>"},
		{"<p>no head</p>", "X<p>no head</p>"},
		{"", "X"},
		{"</head></head>", "</head>X</head>"},
	}

	for _, tt := range tests {
		if got := Inject(tt.page, "X"); got != tt.want {
			t.Errorf("Inject(%q) = %q, want %q", tt.page, got, tt.want)
		}
	}
}

func TestIndex(t *testing.T) {
	out, err := Index()
	if err != nil {
		t.Fatalf("Index: %v", err)
	}
	for _, want := range []string{`action="/fetch"`, `name="gofileUrl"`, `method="POST"`} {
		if !strings.Contains(out, want) {
			t.Errorf("index missing %q", want)
		}
	}
}
