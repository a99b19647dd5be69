package segmenter

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/streamvault/ingest/pkg/models"
)

// ParseManifest returns the segment URIs listed in the playlist, in playback
// order. Tag and blank lines are skipped.
func ParseManifest(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}

	var entries []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		entries = append(entries, line)
	}
	return entries, nil
}

// RewriteManifest copies the playlist at srcPath to dstPath with each
// segment URI replaced, in order, by the corresponding entry of urls. Tag
// lines pass through untouched so playlist semantics (VOD type, target
// duration, per-segment EXTINF) survive the rewrite.
func RewriteManifest(srcPath, dstPath string, urls []string) error {
	data, err := os.ReadFile(srcPath)
	if err != nil {
		return fmt.Errorf("reading manifest: %w", err)
	}

	var builder strings.Builder
	next := 0
	for _, line := range strings.Split(string(data), "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			builder.WriteString(line)
			builder.WriteString("\n")
			continue
		}
		if next >= len(urls) {
			return fmt.Errorf("%w: manifest lists more segments than uploaded URLs", models.ErrManifestMismatch)
		}
		builder.WriteString(urls[next])
		builder.WriteString("\n")
		next++
	}

	if next != len(urls) {
		return fmt.Errorf("%w: manifest lists %d segments, have %d URLs", models.ErrManifestMismatch, next, len(urls))
	}

	return os.WriteFile(dstPath, []byte(builder.String()), 0644)
}

// verifySegmentSet checks the manifest entries against the segment files on
// disk: equal counts, and zero-based contiguous numbering on both sides.
func verifySegmentSet(entries, segmentPaths []string) error {
	if len(entries) != len(segmentPaths) {
		return fmt.Errorf("%w: manifest lists %d segments, found %d files",
			models.ErrManifestMismatch, len(entries), len(segmentPaths))
	}

	for i, path := range segmentPaths {
		idx, err := segmentIndex(filepath.Base(path))
		if err != nil {
			return fmt.Errorf("%w: %v", models.ErrManifestMismatch, err)
		}
		if idx != i {
			return fmt.Errorf("%w: gap in segment numbering at index %d (found %s)",
				models.ErrManifestMismatch, i, filepath.Base(path))
		}
		if entryIdx, err := segmentIndex(filepath.Base(entries[i])); err != nil || entryIdx != i {
			return fmt.Errorf("%w: manifest entry %d references %q",
				models.ErrManifestMismatch, i, entries[i])
		}
	}

	return nil
}

// segmentIndex extracts the numeric index from a segmentNNN.ts filename.
func segmentIndex(name string) (int, error) {
	trimmed := strings.TrimSuffix(strings.TrimPrefix(name, "segment"), ".ts")
	if trimmed == name || trimmed == "" {
		return 0, fmt.Errorf("unexpected segment filename %q", name)
	}
	idx, err := strconv.Atoi(trimmed)
	if err != nil {
		return 0, fmt.Errorf("unexpected segment filename %q", name)
	}
	return idx, nil
}
