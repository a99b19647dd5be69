package probe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/streamvault/ingest/pkg/models"
)

var tracer = otel.Tracer("ingest-probe")

// Prober extracts container metadata from a raw media file via ffprobe.
type Prober struct {
	FFprobeBin string
	Timeout    time.Duration
	Logger     *slog.Logger
}

// New creates a Prober with the given probe timeout.
func New(timeout time.Duration, logger *slog.Logger) *Prober {
	return &Prober{
		FFprobeBin: "ffprobe",
		Timeout:    timeout,
		Logger:     logger,
	}
}

// Probe reads duration, stream count and container format from sourcePath.
// The subprocess is bounded by the configured timeout; a timed-out or
// crashed probe never leaves the process running.
func (p *Prober) Probe(ctx context.Context, sourcePath string) (models.MediaMetadata, error) {
	ctx, span := tracer.Start(ctx, "probe-media")
	defer span.End()

	if _, err := os.Stat(sourcePath); err != nil {
		return models.MediaMetadata{}, fmt.Errorf("source file unreadable: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, p.FFprobeBin,
		"-v", "error",
		"-show_entries", "format=duration,nb_streams,format_name",
		"-of", "default=noprint_wrappers=1",
		sourcePath,
	)

	output, err := cmd.Output()
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return models.MediaMetadata{}, fmt.Errorf("%w after %s", models.ErrProbeTimeout, p.Timeout)
		}
		return models.MediaMetadata{}, fmt.Errorf("ffprobe: %w", err)
	}

	meta, err := parseFormat(output)
	if err != nil {
		return models.MediaMetadata{}, err
	}

	span.SetAttributes(
		attribute.Float64("media.duration_seconds", meta.DurationSeconds),
		attribute.Int("media.stream_count", meta.StreamCount),
		attribute.String("media.format", meta.FormatName),
	)
	p.Logger.Debug("Probed media",
		"path", sourcePath,
		"durationSeconds", meta.DurationSeconds,
		"streams", meta.StreamCount,
	)

	return meta, nil
}

// parseFormat decodes ffprobe's key=value output into MediaMetadata.
func parseFormat(output []byte) (models.MediaMetadata, error) {
	var meta models.MediaMetadata
	sawStreams := false

	for _, line := range strings.Split(string(output), "\n") {
		key, value, ok := strings.Cut(strings.TrimSpace(line), "=")
		if !ok {
			continue
		}
		switch key {
		case "duration":
			d, err := strconv.ParseFloat(value, 64)
			if err != nil {
				return models.MediaMetadata{}, fmt.Errorf("parse duration %q: %w", value, err)
			}
			if d < 0 {
				return models.MediaMetadata{}, fmt.Errorf("negative duration %f", d)
			}
			meta.DurationSeconds = d
		case "nb_streams":
			n, err := strconv.Atoi(value)
			if err != nil {
				return models.MediaMetadata{}, fmt.Errorf("parse nb_streams %q: %w", value, err)
			}
			meta.StreamCount = n
			sawStreams = true
		case "format_name":
			meta.FormatName = value
		}
	}

	if !sawStreams || meta.StreamCount == 0 {
		return models.MediaMetadata{}, models.ErrNoStreams
	}

	return meta, nil
}
