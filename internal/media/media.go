// Package media classifies video sources by container type.
package media

import (
	"net/url"
	"path"
	"strings"
)

const (
	MP4  = "video/mp4"
	MKV  = "video/x-matroska"
	WebM = "video/webm"
	OGG  = "video/ogg"
	MOV  = "video/quicktime"
	HLS  = "application/x-mpegURL"
)

var extensionMap = map[string]string{
	".mp4":  MP4,
	".m4v":  MP4,
	".mkv":  MKV,
	".webm": WebM,
	".ogv":  OGG,
	".mov":  MOV,
	".m3u8": HLS,
}

var mimeContentTypes = map[string]string{
	"video/mp4":                     MP4,
	"video/webm":                    WebM,
	"video/ogg":                     OGG,
	"video/quicktime":               MOV,
	"video/x-matroska":              MKV,
	"audio/mpegurl":                 HLS,
	"audio/x-mpegurl":               HLS,
	"application/x-mpegurl":         HLS,
	"application/vnd.apple.mpegurl": HLS,
}

// DetectFromExtension returns a content type based on the source URL's file
// extension, or empty string if unrecognized.
func DetectFromExtension(src string) string {
	u, err := url.Parse(src)
	if err != nil {
		return ""
	}
	return extensionMap[strings.ToLower(path.Ext(u.Path))]
}

// DetectFromMIME returns the canonical content type for a MIME value such as
// a Content-Type header, or empty string if it is not a known video type.
func DetectFromMIME(mime string) string {
	mime, _, _ = strings.Cut(mime, ";")
	return mimeContentTypes[strings.ToLower(strings.TrimSpace(mime))]
}
