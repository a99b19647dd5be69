package segmenter

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/streamvault/ingest/internal/metrics"
	"github.com/streamvault/ingest/pkg/models"
)

const (
	// ManifestName is the VOD playlist file written into the work directory.
	ManifestName = "playlist.m3u8"

	segmentPattern = "segment%03d.ts"
	segmentGlob    = "segment*.ts"
)

var tracer = otel.Tracer("ingest-segmenter")

// Config holds configuration for the ffmpeg segmenter.
type Config struct {
	FFmpegBin      string
	SegmentSeconds int
	Timeout        time.Duration
	Logger         *slog.Logger
}

// Segmenter re-encodes a raw video into fixed-duration HLS segments plus a
// closed VOD playlist.
type Segmenter struct {
	config *Config
}

// New creates a Segmenter with the given configuration.
func New(config *Config) *Segmenter {
	if config.FFmpegBin == "" {
		config.FFmpegBin = "ffmpeg"
	}
	return &Segmenter{config: config}
}

// Segment runs the transcode subprocess and returns the produced segment
// set. The subprocess is bounded by the configured timeout and cannot
// outlive this call. Partial output in workDir is left for the coordinator's
// scoped cleanup; nothing is deleted here.
func (s *Segmenter) Segment(ctx context.Context, sourcePath, workDir string) (*models.SegmentSet, error) {
	ctx, span := tracer.Start(ctx, "segment-hls")
	defer span.End()

	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	if err := s.runFFmpeg(ctx, sourcePath, workDir); err != nil {
		return nil, err
	}

	set, err := s.collect(workDir)
	if err != nil {
		return nil, err
	}

	metrics.StageDuration.WithLabelValues("segment").Observe(time.Since(start).Seconds())
	metrics.SegmentsProduced.Add(float64(len(set.SegmentPaths)))
	span.SetAttributes(attribute.Int("hls.segment_count", len(set.SegmentPaths)))

	return set, nil
}

// buildArgs constructs the ffmpeg argument list for a single-tier HLS VOD
// rendition.
func (s *Segmenter) buildArgs(sourcePath, workDir string) []string {
	return []string{
		"-i", sourcePath,
		"-c:v", "libx264",
		"-c:a", "aac",
		"-start_number", "0",
		"-hls_time", fmt.Sprintf("%d", s.config.SegmentSeconds),
		"-hls_list_size", "0",
		"-hls_segment_filename", filepath.Join(workDir, segmentPattern),
		"-hls_playlist_type", "vod",
		"-f", "hls",
		filepath.Join(workDir, ManifestName),
	}
}

func (s *Segmenter) runFFmpeg(ctx context.Context, sourcePath, workDir string) error {
	ctx, span := tracer.Start(ctx, "ffmpeg-execute")
	defer span.End()

	cmd := exec.CommandContext(ctx, s.config.FFmpegBin, s.buildArgs(sourcePath, workDir)...)

	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("failed to get stderr pipe: %w", err)
	}

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to get stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("%w: %v", models.ErrTranscodeFailed, err)
	}

	var wg sync.WaitGroup
	wg.Add(2)

	// Monitor stderr for progress and errors
	go func() {
		defer wg.Done()
		s.monitorOutput(ctx, stderrPipe)
	}()

	// Drain stdout
	go func() {
		defer wg.Done()
		_, _ = io.Copy(io.Discard, stdoutPipe)
	}()

	cmdErr := cmd.Wait()
	wg.Wait()

	if cmdErr != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w after %s", models.ErrTranscodeTimeout, s.config.Timeout)
		}
		return fmt.Errorf("%w: %v", models.ErrTranscodeFailed, cmdErr)
	}

	return nil
}

// collect globs the produced segments, orders them by index, and checks them
// against the manifest: equal counts and contiguous zero-based numbering.
func (s *Segmenter) collect(workDir string) (*models.SegmentSet, error) {
	manifestPath := filepath.Join(workDir, ManifestName)

	segments, err := filepath.Glob(filepath.Join(workDir, segmentGlob))
	if err != nil {
		return nil, fmt.Errorf("locating segments: %w", err)
	}
	// Numeric order, not lexicographic: segment1000.ts follows segment999.ts.
	sort.Slice(segments, func(i, j int) bool {
		a, errA := segmentIndex(filepath.Base(segments[i]))
		b, errB := segmentIndex(filepath.Base(segments[j]))
		if errA != nil || errB != nil {
			return segments[i] < segments[j]
		}
		return a < b
	})

	if len(segments) == 0 {
		return nil, models.ErrNoSegmentsWritten
	}

	entries, err := ParseManifest(manifestPath)
	if err != nil {
		return nil, err
	}

	if err := verifySegmentSet(entries, segments); err != nil {
		return nil, err
	}

	return &models.SegmentSet{
		ManifestPath:   manifestPath,
		SegmentPaths:   segments,
		SegmentSeconds: s.config.SegmentSeconds,
	}, nil
}

// monitorOutput reads and logs ffmpeg output.
func (s *Segmenter) monitorOutput(ctx context.Context, r io.Reader) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return
		default:
			line := scanner.Text()
			if strings.Contains(line, "frame=") || strings.Contains(line, "time=") {
				s.config.Logger.Debug("FFmpeg progress", "output", line)
			} else if strings.Contains(line, "error") || strings.Contains(line, "Error") {
				s.config.Logger.Warn("FFmpeg warning", "output", line)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		s.config.Logger.Warn("FFmpeg output scanner error", "error", err)
	}
}
