package storage

import (
	"testing"
)

func TestURLForKeyRoundTrip(t *testing.T) {
	s := &S3Store{bucket: "media", cdnDomain: "cdn.example.com"}

	url := s.URLForKey("vod/job-1/segment000.ts")
	if url != "https://cdn.example.com/vod/job-1/segment000.ts" {
		t.Errorf("URLForKey() = %q", url)
	}

	key, err := s.keyFromURL(url)
	if err != nil {
		t.Fatalf("keyFromURL() error = %v", err)
	}
	if key != "vod/job-1/segment000.ts" {
		t.Errorf("keyFromURL() = %q, want vod/job-1/segment000.ts", key)
	}
}

func TestKeyFromURLRejectsForeignDomain(t *testing.T) {
	s := &S3Store{cdnDomain: "cdn.example.com"}

	if _, err := s.keyFromURL("https://other.example.com/vod/x.ts"); err == nil {
		t.Error("keyFromURL() expected error for foreign domain")
	}
	if _, err := s.keyFromURL("https://cdn.example.com/"); err == nil {
		t.Error("keyFromURL() expected error for empty key")
	}
}

func TestContentTypeFor(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"playlist.m3u8", "application/vnd.apple.mpegurl"},
		{"segment000.ts", "video/MP2T"},
		{"thumb.jpg", "image/jpeg"},
		{"thumb.jpeg", "image/jpeg"},
		{"thumb.png", "image/png"},
		{"raw.mp4", "application/octet-stream"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := ContentTypeFor(tt.path); got != tt.want {
				t.Errorf("ContentTypeFor(%s) = %s, want %s", tt.path, got, tt.want)
			}
		})
	}
}
