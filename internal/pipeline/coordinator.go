package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/streamvault/ingest/internal/assembler"
	"github.com/streamvault/ingest/internal/logger"
	"github.com/streamvault/ingest/internal/metrics"
	"github.com/streamvault/ingest/internal/storage"
	"github.com/streamvault/ingest/pkg/models"
)

var tracer = otel.Tracer("ingest-pipeline")

// Prober extracts container metadata from a staged media file.
type Prober interface {
	Probe(ctx context.Context, sourcePath string) (models.MediaMetadata, error)
}

// Segmenter produces an HLS segment set from a staged media file.
type Segmenter interface {
	Segment(ctx context.Context, sourcePath, workDir string) (*models.SegmentSet, error)
}

// ArtifactUploader pushes a segment set to durable storage atomically.
type ArtifactUploader interface {
	UploadAll(ctx context.Context, jobID string, set *models.SegmentSet) (*models.UploadResult, error)
}

// Config holds coordinator tunables.
type Config struct {
	WorkRoot     string
	VariantLabel string
}

// Coordinator owns the ingest state machine. It sequences probe, segment,
// upload, assemble and commit, guarantees scoped cleanup of local staging
// on every exit path, and re-surfaces stage errors unchanged apart from
// their kind tag. It never retries a stage: partial artifacts from a dead
// subprocess cannot be safely resumed, so retries mean a fresh job.
type Coordinator struct {
	prober    Prober
	segmenter Segmenter
	uploader  ArtifactUploader
	store     storage.ObjectStore
	sink      storage.AssetSink
	cfg       Config
	log       *slog.Logger
}

// New creates a Coordinator.
func New(prober Prober, segmenter Segmenter, uploader ArtifactUploader, store storage.ObjectStore, sink storage.AssetSink, cfg Config, log *slog.Logger) *Coordinator {
	if cfg.VariantLabel == "" {
		cfg.VariantLabel = "360p"
	}
	return &Coordinator{
		prober:    prober,
		segmenter: segmenter,
		uploader:  uploader,
		store:     store,
		sink:      sink,
		cfg:       cfg,
		log:       log,
	}
}

// Run executes one ingest job to a terminal state and returns the committed
// asset or a kind-tagged error.
func (c *Coordinator) Run(ctx context.Context, req models.IngestRequest) (*models.VideoAsset, error) {
	ctx, span := tracer.Start(ctx, "ingest-job")
	defer span.End()

	// Validation precedes resource acquisition: a rejected request has no
	// local state to clean up beyond what the caller staged.
	if err := c.validate(req); err != nil {
		return nil, models.WrapKind(models.KindValidation, err)
	}

	job, err := newJob(uuid.NewString(), req, c.cfg.WorkRoot, c.log)
	if err != nil {
		return nil, models.WrapKind(models.KindUnknown, err)
	}
	span.SetAttributes(attribute.String("job.id", job.ID))

	metrics.ActiveJobs.Inc()
	defer metrics.ActiveJobs.Dec()
	start := time.Now()

	// Scoped release: workDir and staged inputs go away on success, any
	// typed failure, or a panic.
	defer job.Cleanup(ctx)

	asset, err := c.run(ctx, job)
	if err != nil {
		job.fail()
		metrics.RecordFailure(string(models.KindOf(err)))
		logger.Error(ctx, c.log, "Ingest job failed",
			"jobId", job.ID,
			"state", string(job.State()),
			"kind", string(models.KindOf(err)),
			"error", err,
		)
		return nil, err
	}

	metrics.RecordSuccess()
	metrics.JobDuration.Observe(time.Since(start).Seconds())
	logger.Info(ctx, c.log, "Ingest job committed",
		"jobId", job.ID,
		"assetId", asset.AssetID,
		"durationSeconds", time.Since(start).Seconds(),
		"manifestURL", asset.ManifestURL,
	)

	return asset, nil
}

// run drives the job through its forward transitions. Every returned error
// is already kind-tagged; the caller owns the Failed transition and cleanup.
func (c *Coordinator) run(ctx context.Context, job *IngestJob) (*models.VideoAsset, error) {
	req := job.Request

	// Received -> Probed
	probeStart := time.Now()
	meta, err := c.prober.Probe(ctx, req.SourcePath)
	if err != nil {
		return nil, models.WrapKind(models.KindProbe, err)
	}
	metrics.StageDuration.WithLabelValues("probe").Observe(time.Since(probeStart).Seconds())
	job.advance(models.StateProbed)

	// A source with no playable time cannot be segmented; refuse before
	// the subprocess starts.
	if meta.DurationSeconds <= 0 {
		return nil, models.WrapKind(models.KindSegment, models.ErrEmptyMedia)
	}

	// Probed -> Segmented
	set, err := c.segmenter.Segment(ctx, req.SourcePath, job.WorkDir)
	if err != nil {
		return nil, models.WrapKind(models.KindSegment, err)
	}
	job.advance(models.StateSegmented)

	// Segmented -> Uploaded
	uploadStart := time.Now()
	thumbKey := fmt.Sprintf("thumbs/%s/%s", job.ID, filepath.Base(req.ThumbnailPath))
	thumbURL, err := c.store.Put(ctx, thumbKey, req.ThumbnailPath, storage.ContentTypeFor(req.ThumbnailPath))
	if err != nil {
		return nil, models.WrapKind(models.KindUpload, err)
	}

	result, err := c.uploader.UploadAll(ctx, job.ID, set)
	if err != nil {
		// The uploader compensated its own artifacts; the thumbnail is
		// ours to roll back.
		if delErr := c.store.Delete(context.WithoutCancel(ctx), thumbURL); delErr != nil {
			logger.Warn(ctx, c.log, "Thumbnail rollback failed", "jobId", job.ID, "url", thumbURL, "error", delErr)
		}
		return nil, models.WrapKind(models.KindUpload, err)
	}
	metrics.StageDuration.WithLabelValues("upload").Observe(time.Since(uploadStart).Seconds())
	job.advance(models.StateUploaded)

	// Uploaded -> Assembled
	asset, err := assembler.Assemble(assembler.AssembleInput{
		Title:        req.Title,
		Description:  req.Description,
		OwnerID:      req.OwnerID,
		Metadata:     meta,
		ThumbnailURL: thumbURL,
		Variants: []models.QualityVariant{
			{Resolution: c.cfg.VariantLabel, ManifestURL: result.ManifestURL},
		},
		SegmentCount: len(result.SegmentURLs),
	})
	if err != nil {
		return nil, models.WrapKind(models.KindUnknown, err)
	}
	job.advance(models.StateAssembled)

	// Assembled -> Committed. A rejected commit leaves durable artifacts
	// orphaned in the store; accepted risk, surfaced as KindPersistence.
	commitStart := time.Now()
	assetID, err := c.sink.Commit(ctx, asset)
	if err != nil {
		return nil, models.WrapKind(models.KindPersistence, err)
	}
	metrics.StageDuration.WithLabelValues("commit").Observe(time.Since(commitStart).Seconds())
	asset.AssetID = assetID
	job.advance(models.StateCommitted)

	return asset, nil
}

func (c *Coordinator) validate(req models.IngestRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}
	if _, err := os.Stat(req.SourcePath); err != nil {
		return fmt.Errorf("%w: %v", models.ErrMissingSource, err)
	}
	if _, err := os.Stat(req.ThumbnailPath); err != nil {
		return fmt.Errorf("%w: %v", models.ErrMissingThumbnail, err)
	}
	return nil
}
