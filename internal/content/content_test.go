package content

import (
	"testing"

	"github.com/stupside/reel/internal/app"
)

func gofileMapper(t *testing.T) *Mapper {
	t.Helper()
	m, err := NewMapper(app.ContentConfig{
		IDPattern:   `/d/([A-Za-z0-9]+)`,
		URLTemplate: "https://gofile.io/d/{contentID}",
	})
	if err != nil {
		t.Fatalf("NewMapper: %v", err)
	}
	return m
}

func TestMapperID(t *testing.T) {
	m := gofileMapper(t)

	tests := []struct {
		input string
		want  string
		ok    bool
	}{
		{"https://gofile.io/d/abc123", "abc123", true},
		{"https://gofile.io/d/abc123?x=1", "abc123", true},
		{"https://gofile.io/d/", "", false},
		{"https://example.com/watch", "", false},
	}
	for _, tt := range tests {
		got, ok := m.ID(tt.input)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ID(%q) = %q, %v; want %q, %v", tt.input, got, ok, tt.want, tt.ok)
		}
	}
}

func TestMapperWholeMatch(t *testing.T) {
	m, err := NewMapper(app.ContentConfig{IDPattern: `[0-9]{4,}`, URLTemplate: "https://x/{contentID}"})
	if err != nil {
		t.Fatalf("NewMapper: %v", err)
	}
	if got, ok := m.ID("https://x/v/123456"); !ok || got != "123456" {
		t.Errorf("ID = %q, %v", got, ok)
	}
}

func TestMapperURL(t *testing.T) {
	m := gofileMapper(t)

	if got := m.URL("abc123"); got != "https://gofile.io/d/abc123" {
		t.Errorf("URL = %q", got)
	}
	if got := m.URL("a/b"); got != "https://gofile.io/d/a%2Fb" {
		t.Errorf("URL escapes = %q", got)
	}
}

func TestNewMapperErrors(t *testing.T) {
	if _, err := NewMapper(app.ContentConfig{IDPattern: "(", URLTemplate: "{contentID}"}); err == nil {
		t.Error("expected error for invalid pattern")
	}
	if _, err := NewMapper(app.ContentConfig{IDPattern: "x", URLTemplate: "https://x/"}); err == nil {
		t.Error("expected error for template without placeholder")
	}
}
