package media

import "testing"

func TestDetectFromExtension(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{"https://cdn.example/video.webm", WebM},
		{"https://cdn.example/a/b/clip.MP4?token=x", MP4},
		{"https://cdn.example/live/index.m3u8", HLS},
		{"/relative/movie.mkv", MKV},
		{"https://cdn.example/download?id=1", ""},
		{"https://cdn.example/file.txt", ""},
		{"::bad", ""},
	}

	for _, tt := range tests {
		if got := DetectFromExtension(tt.src); got != tt.want {
			t.Errorf("DetectFromExtension(%q) = %q, want %q", tt.src, got, tt.want)
		}
	}
}

func TestDetectFromMIME(t *testing.T) {
	tests := []struct {
		mime string
		want string
	}{
		{"video/mp4", MP4},
		{"Video/WebM; codecs=vp9", WebM},
		{"application/vnd.apple.mpegurl", HLS},
		{"application/octet-stream", ""},
		{"", ""},
	}

	for _, tt := range tests {
		if got := DetectFromMIME(tt.mime); got != tt.want {
			t.Errorf("DetectFromMIME(%q) = %q, want %q", tt.mime, got, tt.want)
		}
	}
}
