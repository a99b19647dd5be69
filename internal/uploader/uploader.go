package uploader

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/streamvault/ingest/internal/metrics"
	"github.com/streamvault/ingest/internal/segmenter"
	"github.com/streamvault/ingest/internal/storage"
	"github.com/streamvault/ingest/pkg/models"
)

var tracer = otel.Tracer("ingest-uploader")

// Uploader pushes a job's segment set to durable storage with bounded
// parallelism. The pool is per job, so one job's failure cleanup never
// stalls another's transfers.
type Uploader struct {
	store       storage.ObjectStore
	concurrency int
	log         *slog.Logger
}

// New creates an Uploader with the given per-job concurrency cap.
func New(store storage.ObjectStore, concurrency int, log *slog.Logger) *Uploader {
	return &Uploader{
		store:       store,
		concurrency: concurrency,
		log:         log,
	}
}

// UploadAll uploads every segment and then the manifest, rewritten to
// reference the final segment URLs. All-or-nothing: the first failure
// cancels in-flight siblings, already-uploaded artifacts are best-effort
// deleted, and the call fails as a whole. Segments may complete in any
// order; SegmentURLs preserves index order regardless.
func (u *Uploader) UploadAll(ctx context.Context, jobID string, set *models.SegmentSet) (*models.UploadResult, error) {
	ctx, span := tracer.Start(ctx, "upload-artifacts")
	defer span.End()
	span.SetAttributes(
		attribute.String("job.id", jobID),
		attribute.Int("hls.segment_count", len(set.SegmentPaths)),
	)

	uploadCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	sem := make(chan struct{}, u.concurrency)
	var wg sync.WaitGroup
	var firstErr atomic.Pointer[error]

	segmentURLs := make([]string, len(set.SegmentPaths))
	var mu sync.Mutex
	var uploaded []string

	fail := func(err error) {
		if firstErr.CompareAndSwap(nil, &err) {
			cancel() // abandon in-flight siblings promptly
		}
	}

	for i, path := range set.SegmentPaths {
		select {
		case sem <- struct{}{}:
		case <-uploadCtx.Done():
			fail(fmt.Errorf("%w: %v", models.ErrUploadAborted, uploadCtx.Err()))
		}
		if firstErr.Load() != nil {
			break
		}

		wg.Add(1)
		go func(idx int, segmentPath string) {
			defer wg.Done()
			defer func() { <-sem }()

			if firstErr.Load() != nil {
				return
			}

			key := fmt.Sprintf("vod/%s/%s", jobID, filepath.Base(segmentPath))
			url, err := u.store.Put(uploadCtx, key, segmentPath, storage.ContentTypeFor(segmentPath))
			if err != nil {
				fail(fmt.Errorf("segment %d: %w", idx, err))
				return
			}

			segmentURLs[idx] = url
			mu.Lock()
			uploaded = append(uploaded, url)
			mu.Unlock()

			metrics.ArtifactsUploaded.Inc()
			u.log.Debug("Uploaded segment", "jobId", jobID, "key", key)
		}(i, path)
	}

	wg.Wait()

	if errPtr := firstErr.Load(); errPtr != nil {
		u.compensate(ctx, jobID, uploaded)
		return nil, *errPtr
	}

	// Segments are durable; publish the manifest last so a readable
	// playlist never references missing media.
	manifestURL, err := u.uploadManifest(uploadCtx, jobID, set, segmentURLs)
	if err != nil {
		u.compensate(ctx, jobID, uploaded)
		return nil, err
	}

	metrics.ArtifactsUploaded.Inc()
	u.log.Info("Artifact upload complete",
		"jobId", jobID,
		"segments", len(segmentURLs),
		"manifestURL", manifestURL,
	)

	return &models.UploadResult{
		ManifestURL: manifestURL,
		SegmentURLs: segmentURLs,
	}, nil
}

// uploadManifest rewrites the local playlist to reference the final segment
// URLs and uploads the result.
func (u *Uploader) uploadManifest(ctx context.Context, jobID string, set *models.SegmentSet, segmentURLs []string) (string, error) {
	rewritten := set.ManifestPath + ".final"
	if err := segmenter.RewriteManifest(set.ManifestPath, rewritten, segmentURLs); err != nil {
		return "", err
	}

	key := fmt.Sprintf("vod/%s/%s", jobID, segmenter.ManifestName)
	url, err := u.store.Put(ctx, key, rewritten, storage.ContentTypeFor(key))
	if err != nil {
		return "", fmt.Errorf("manifest: %w", err)
	}
	return url, nil
}

// compensate best-effort deletes every artifact already uploaded for the
// job. Delete failures are logged and swallowed: the upload error, not the
// rollback, is what the caller needs to see.
func (u *Uploader) compensate(ctx context.Context, jobID string, urls []string) {
	ctx = context.WithoutCancel(ctx)
	for _, url := range urls {
		metrics.CompensatingDeletes.Inc()
		if err := u.store.Delete(ctx, url); err != nil {
			u.log.Warn("Compensating delete failed", "jobId", jobID, "url", url, "error", err)
		}
	}
}
