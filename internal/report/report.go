// Package report renders the HTML pages returned to users: the URL entry form
// and the extraction results, either injected into the rendered page or as a
// document of their own.
package report

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/url"
	"strings"

	"github.com/stupside/reel/internal/locate"
	"github.com/stupside/reel/internal/media"
)

//go:embed templates/*.html
var templateFS embed.FS

var (
	indexTmpl      = template.Must(template.ParseFS(templateFS, "templates/index.html"))
	resultsTmpl    = template.Must(template.ParseFS(templateFS, "templates/results.html"))
	standaloneTmpl = template.Must(template.ParseFS(templateFS, "templates/results.html", "templates/standalone.html"))
)

const headClose = "</head>"

// Input is everything a results page shows.
type Input struct {
	OriginalURL string
	ContentID   string
	Media       locate.Reference
	// ScreenshotName is the artifact file name; empty when capture failed.
	ScreenshotName string
	// PageHTML is the rendered page. When empty a standalone document is produced.
	PageHTML string
}

// Renderer composes result pages.
type Renderer struct {
	publicPrefix string
	proxyLinks   bool
}

// New creates a Renderer. Screenshots are linked under publicPrefix; with
// proxyLinks, found videos that carry a content id link to /video/<id>.
func New(publicPrefix string, proxyLinks bool) *Renderer {
	return &Renderer{publicPrefix: publicPrefix, proxyLinks: proxyLinks}
}

type view struct {
	OriginalURL    string
	VideoSrc       string
	VideoLink      string
	VideoType      string
	ScreenshotPath string
}

// VideoLink returns the link shown for a found video, or "" when none was found.
func (r *Renderer) VideoLink(contentID string, ref locate.Reference) string {
	if !ref.Found() {
		return ""
	}
	if r.proxyLinks && contentID != "" {
		return "/video/" + url.PathEscape(contentID)
	}
	return ref.Src
}

// Render returns the results page for in.
func (r *Renderer) Render(in Input) (string, error) {
	v := view{
		OriginalURL: in.OriginalURL,
		VideoSrc:    in.Media.Src,
		VideoLink:   r.VideoLink(in.ContentID, in.Media),
		VideoType:   media.DetectFromExtension(in.Media.Src),
	}
	if in.ScreenshotName != "" {
		v.ScreenshotPath = r.publicPrefix + url.PathEscape(in.ScreenshotName)
	}

	if in.PageHTML == "" {
		var buf bytes.Buffer
		if err := standaloneTmpl.ExecuteTemplate(&buf, "standalone.html", v); err != nil {
			return "", fmt.Errorf("rendering standalone report: %w", err)
		}
		return buf.String(), nil
	}

	var buf bytes.Buffer
	if err := resultsTmpl.ExecuteTemplate(&buf, "results", v); err != nil {
		return "", fmt.Errorf("rendering results: %w", err)
	}
	return Inject(in.PageHTML, buf.String()), nil
}

// Inject inserts fragment right after the first closing head tag, matched
// case-insensitively, or prepends it when the page has none.
func Inject(page, fragment string) string {
	i := indexFold(page, headClose)
	if i < 0 {
		return fragment + page
	}
	at := i + len(headClose)
	var b strings.Builder
	b.Grow(len(page) + len(fragment))
	b.WriteString(page[:at])
	b.WriteString(fragment)
	b.WriteString(page[at:])
	return b.String()
}

// indexFold is strings.Index with case folding; the offset indexes into s.
func indexFold(s, substr string) int {
	for i := 0; i+len(substr) <= len(s); i++ {
		if strings.EqualFold(s[i:i+len(substr)], substr) {
			return i
		}
	}
	return -1
}

// Index returns the URL entry form.
func Index() (string, error) {
	var buf bytes.Buffer
	if err := indexTmpl.Execute(&buf, nil); err != nil {
		return "", fmt.Errorf("rendering index: %w", err)
	}
	return buf.String(), nil
}
