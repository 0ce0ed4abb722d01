// Package content maps page URLs to content ids and back.
package content

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/stupside/reel/internal/app"
)

const placeholder = "{contentID}"

// Mapper extracts content ids with a fixed pattern and rebuilds page URLs
// from a template.
type Mapper struct {
	pattern  *regexp.Regexp
	template string
}

// NewMapper compiles the id pattern. The first capture group is the id; a
// pattern without groups uses the whole match.
func NewMapper(cfg app.ContentConfig) (*Mapper, error) {
	re, err := regexp.Compile(cfg.IDPattern)
	if err != nil {
		return nil, fmt.Errorf("content id pattern %q: %w", cfg.IDPattern, err)
	}
	if !strings.Contains(cfg.URLTemplate, placeholder) {
		return nil, fmt.Errorf("content url template %q lacks %s", cfg.URLTemplate, placeholder)
	}
	return &Mapper{pattern: re, template: cfg.URLTemplate}, nil
}

// ID extracts the content id from rawURL.
func (m *Mapper) ID(rawURL string) (string, bool) {
	match := m.pattern.FindStringSubmatch(rawURL)
	switch {
	case match == nil:
		return "", false
	case len(match) > 1:
		return match[1], match[1] != ""
	default:
		return match[0], true
	}
}

// URL builds the page URL for a content id.
func (m *Mapper) URL(contentID string) string {
	return strings.ReplaceAll(m.template, placeholder, url.PathEscape(contentID))
}
