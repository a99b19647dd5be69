package worker

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.opentelemetry.io/otel/attribute"

	"github.com/streamvault/ingest/internal/metrics"
	"github.com/streamvault/ingest/pkg/models"
)

// Stager downloads raw objects from the upload bucket into local staging
// files. Staged files are owned by the ingest job afterwards and removed by
// its cleanup.
type Stager struct {
	s3Client  *s3.Client
	rawBucket string
	root      string
	log       *slog.Logger
}

// NewStager creates a Stager writing under root.
func NewStager(s3Client *s3.Client, rawBucket, root string, log *slog.Logger) *Stager {
	return &Stager{
		s3Client:  s3Client,
		rawBucket: rawBucket,
		root:      root,
		log:       log,
	}
}

// Stage downloads the message's video and thumbnail objects and returns an
// ingest request pointing at the local copies. On any failure the partial
// files are removed before returning.
func (s *Stager) Stage(ctx context.Context, msg *models.IngestMessage) (models.IngestRequest, error) {
	ctx, span := tracer.Start(ctx, "stage-raw-objects")
	defer span.End()

	if err := os.MkdirAll(s.root, 0755); err != nil {
		return models.IngestRequest{}, fmt.Errorf("%w: %v", models.ErrStagingFailed, err)
	}

	sourcePath, sourceBytes, err := s.fetch(ctx, msg.VideoKey, "raw-*")
	if err != nil {
		return models.IngestRequest{}, fmt.Errorf("%w: video %s: %v", models.ErrStagingFailed, msg.VideoKey, err)
	}

	thumbPath, _, err := s.fetch(ctx, msg.ThumbnailKey, "thumb-*")
	if err != nil {
		os.Remove(sourcePath)
		return models.IngestRequest{}, fmt.Errorf("%w: thumbnail %s: %v", models.ErrStagingFailed, msg.ThumbnailKey, err)
	}

	metrics.StagingBytes.Observe(float64(sourceBytes))
	span.SetAttributes(attribute.Int64("staging.source_bytes", sourceBytes))
	s.log.InfoContext(ctx, "Staged raw objects",
		"requestId", msg.RequestID,
		"sourceBytes", sourceBytes,
	)

	return models.IngestRequest{
		SourcePath:    sourcePath,
		ThumbnailPath: thumbPath,
		Title:         msg.Title,
		Description:   msg.Description,
		OwnerID:       msg.OwnerID,
	}, nil
}

// fetch downloads one object to a fresh temp file, preserving the key's
// extension for the transcoder.
func (s *Stager) fetch(ctx context.Context, key, pattern string) (string, int64, error) {
	tmpFile, err := os.CreateTemp(s.root, pattern+filepath.Ext(key))
	if err != nil {
		return "", 0, fmt.Errorf("failed to create staging file: %w", err)
	}
	tmpPath := tmpFile.Name()

	result, err := s.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.rawBucket),
		Key:    aws.String(key),
	})
	if err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return "", 0, fmt.Errorf("failed to get object: %w", err)
	}
	defer result.Body.Close()

	written, err := io.Copy(tmpFile, result.Body)
	if err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return "", 0, fmt.Errorf("failed to write staging file: %w", err)
	}

	if err := tmpFile.Close(); err != nil {
		os.Remove(tmpPath)
		return "", 0, fmt.Errorf("failed to close staging file: %w", err)
	}

	return tmpPath, written, nil
}
