package segmenter

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/streamvault/ingest/pkg/models"
)

func testSegmenter(segmentSeconds int) *Segmenter {
	return New(&Config{
		SegmentSeconds: segmentSeconds,
		Timeout:        time.Minute,
		Logger:         slog.Default(),
	})
}

func writeSegmentFixture(t *testing.T, dir string, count int, manifestEntries []string) {
	t.Helper()

	for i := 0; i < count; i++ {
		name := fmt.Sprintf("segment%03d.ts", i)
		if err := os.WriteFile(filepath.Join(dir, name), []byte("ts"), 0644); err != nil {
			t.Fatalf("write segment fixture: %v", err)
		}
	}

	var builder strings.Builder
	builder.WriteString("#EXTM3U\n#EXT-X-VERSION:3\n#EXT-X-TARGETDURATION:10\n#EXT-X-PLAYLIST-TYPE:VOD\n")
	for _, entry := range manifestEntries {
		builder.WriteString("#EXTINF:10.000000,\n")
		builder.WriteString(entry)
		builder.WriteString("\n")
	}
	builder.WriteString("#EXT-X-ENDLIST\n")

	if err := os.WriteFile(filepath.Join(dir, ManifestName), []byte(builder.String()), 0644); err != nil {
		t.Fatalf("write manifest fixture: %v", err)
	}
}

func manifestEntries(count int) []string {
	entries := make([]string, count)
	for i := range entries {
		entries[i] = fmt.Sprintf("segment%03d.ts", i)
	}
	return entries
}

func TestBuildArgs(t *testing.T) {
	s := testSegmenter(10)
	args := s.buildArgs("/tmp/in.mp4", "/tmp/work")

	joined := strings.Join(args, " ")
	for _, want := range []string{
		"-c:v libx264",
		"-c:a aac",
		"-start_number 0",
		"-hls_time 10",
		"-hls_list_size 0",
		"-hls_playlist_type vod",
		"-f hls",
		filepath.Join("/tmp/work", "segment%03d.ts"),
		filepath.Join("/tmp/work", ManifestName),
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("buildArgs() missing %q in %q", want, joined)
		}
	}

	if args[len(args)-1] != filepath.Join("/tmp/work", ManifestName) {
		t.Errorf("manifest path must be the final argument, got %q", args[len(args)-1])
	}
}

func TestBuildArgsSegmentDuration(t *testing.T) {
	s := testSegmenter(6)
	joined := strings.Join(s.buildArgs("in.mp4", "work"), " ")
	if !strings.Contains(joined, "-hls_time 6") {
		t.Errorf("buildArgs() should honor configured segment duration, got %q", joined)
	}
}

func TestCollect(t *testing.T) {
	dir := t.TempDir()
	writeSegmentFixture(t, dir, 4, manifestEntries(4))

	set, err := testSegmenter(10).collect(dir)
	if err != nil {
		t.Fatalf("collect() error = %v", err)
	}

	if len(set.SegmentPaths) != 4 {
		t.Errorf("SegmentPaths len = %d, want 4", len(set.SegmentPaths))
	}
	if set.SegmentSeconds != 10 {
		t.Errorf("SegmentSeconds = %d, want 10", set.SegmentSeconds)
	}
	for i, path := range set.SegmentPaths {
		want := fmt.Sprintf("segment%03d.ts", i)
		if filepath.Base(path) != want {
			t.Errorf("SegmentPaths[%d] = %s, want %s", i, filepath.Base(path), want)
		}
	}
}

func TestCollectNoSegments(t *testing.T) {
	dir := t.TempDir()

	_, err := testSegmenter(10).collect(dir)
	if !errors.Is(err, models.ErrNoSegmentsWritten) {
		t.Errorf("collect() error = %v, want ErrNoSegmentsWritten", err)
	}
}

func TestCollectManifestCountMismatch(t *testing.T) {
	dir := t.TempDir()
	// Manifest claims 4 segments, only 2 files present.
	writeSegmentFixture(t, dir, 2, manifestEntries(4))

	_, err := testSegmenter(10).collect(dir)
	if !errors.Is(err, models.ErrManifestMismatch) {
		t.Errorf("collect() error = %v, want ErrManifestMismatch", err)
	}
}

func TestCollectSegmentGap(t *testing.T) {
	dir := t.TempDir()
	writeSegmentFixture(t, dir, 0, []string{"segment000.ts", "segment002.ts"})
	for _, name := range []string{"segment000.ts", "segment002.ts"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("ts"), 0644); err != nil {
			t.Fatalf("write segment fixture: %v", err)
		}
	}

	_, err := testSegmenter(10).collect(dir)
	if !errors.Is(err, models.ErrManifestMismatch) {
		t.Errorf("collect() error = %v, want ErrManifestMismatch", err)
	}
}

func TestParseManifest(t *testing.T) {
	dir := t.TempDir()
	writeSegmentFixture(t, dir, 3, manifestEntries(3))

	entries, err := ParseManifest(filepath.Join(dir, ManifestName))
	if err != nil {
		t.Fatalf("ParseManifest() error = %v", err)
	}

	if len(entries) != 3 {
		t.Fatalf("ParseManifest() len = %d, want 3", len(entries))
	}
	if entries[0] != "segment000.ts" || entries[2] != "segment002.ts" {
		t.Errorf("ParseManifest() = %v, want ordered segment entries", entries)
	}
}

func TestRewriteManifest(t *testing.T) {
	dir := t.TempDir()
	writeSegmentFixture(t, dir, 2, manifestEntries(2))

	urls := []string{
		"https://cdn.test/vod/job-1/segment000.ts",
		"https://cdn.test/vod/job-1/segment001.ts",
	}

	src := filepath.Join(dir, ManifestName)
	dst := filepath.Join(dir, "playlist_final.m3u8")
	if err := RewriteManifest(src, dst, urls); err != nil {
		t.Fatalf("RewriteManifest() error = %v", err)
	}

	content, err := os.ReadFile(dst)
	if err != nil {
		t.Fatalf("read rewritten manifest: %v", err)
	}

	got := string(content)
	for _, url := range urls {
		if !strings.Contains(got, url) {
			t.Errorf("rewritten manifest missing %q", url)
		}
	}
	if strings.Contains(got, "\nsegment000.ts") {
		t.Error("rewritten manifest still references local filenames")
	}
	for _, tag := range []string{"#EXTM3U", "#EXT-X-PLAYLIST-TYPE:VOD", "#EXT-X-ENDLIST", "#EXTINF:10.000000,"} {
		if !strings.Contains(got, tag) {
			t.Errorf("rewritten manifest lost tag %q", tag)
		}
	}

	rewritten, err := ParseManifest(dst)
	if err != nil {
		t.Fatalf("ParseManifest(rewritten) error = %v", err)
	}
	if len(rewritten) != 2 || rewritten[0] != urls[0] || rewritten[1] != urls[1] {
		t.Errorf("ParseManifest(rewritten) = %v, want %v", rewritten, urls)
	}
}

func TestRewriteManifestURLCountMismatch(t *testing.T) {
	dir := t.TempDir()
	writeSegmentFixture(t, dir, 3, manifestEntries(3))

	src := filepath.Join(dir, ManifestName)
	err := RewriteManifest(src, filepath.Join(dir, "out.m3u8"), []string{"https://cdn.test/only-one.ts"})
	if !errors.Is(err, models.ErrManifestMismatch) {
		t.Errorf("RewriteManifest() error = %v, want ErrManifestMismatch", err)
	}
}

func TestSegmentIndex(t *testing.T) {
	tests := []struct {
		name    string
		want    int
		wantErr bool
	}{
		{"segment000.ts", 0, false},
		{"segment042.ts", 42, false},
		{"segment1000.ts", 1000, false},
		{"clip.ts", 0, true},
		{"segment.ts", 0, true},
		{"segmentXYZ.ts", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := segmentIndex(tt.name)
			if tt.wantErr {
				if err == nil {
					t.Errorf("segmentIndex(%s) expected error", tt.name)
				}
				return
			}
			if err != nil {
				t.Fatalf("segmentIndex(%s) error = %v", tt.name, err)
			}
			if got != tt.want {
				t.Errorf("segmentIndex(%s) = %d, want %d", tt.name, got, tt.want)
			}
		})
	}
}
