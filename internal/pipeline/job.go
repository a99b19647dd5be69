package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/streamvault/ingest/internal/logger"
	"github.com/streamvault/ingest/pkg/models"
)

// IngestJob tracks one upload through the pipeline. The job exclusively
// owns its staged input files and work directory; it lives only for the
// duration of the run and is discarded once terminal.
type IngestJob struct {
	ID      string
	Request models.IngestRequest
	WorkDir string

	state models.JobState
	log   *slog.Logger
}

// newJob acquires the job's scoped resources: a work directory exclusive to
// this job under workRoot. Callers must arrange Cleanup on every exit path.
func newJob(id string, req models.IngestRequest, workRoot string, log *slog.Logger) (*IngestJob, error) {
	if err := os.MkdirAll(workRoot, 0755); err != nil {
		return nil, fmt.Errorf("failed to create work root: %w", err)
	}

	workDir, err := os.MkdirTemp(workRoot, fmt.Sprintf("ingest-%s-", id))
	if err != nil {
		return nil, fmt.Errorf("failed to create work directory: %w", err)
	}

	return &IngestJob{
		ID:      id,
		Request: req,
		WorkDir: workDir,
		state:   models.StateReceived,
		log:     log,
	}, nil
}

// State returns the job's current lifecycle state.
func (j *IngestJob) State() models.JobState {
	return j.state
}

// advance moves the job forward one state. Illegal transitions indicate a
// coordinator bug; they are logged and refused rather than corrupting the
// monotonic state history.
func (j *IngestJob) advance(next models.JobState) {
	if !j.state.CanTransitionTo(next) {
		j.log.Error("Illegal state transition refused",
			"jobId", j.ID,
			"from", string(j.state),
			"to", string(next),
		)
		return
	}
	j.state = next
}

// fail moves the job to the terminal Failed state.
func (j *IngestJob) fail() {
	j.advance(models.StateFailed)
}

// Cleanup releases the job's local resources: the work directory and the
// staged source and thumbnail files. It runs unconditionally at terminal
// states, tolerates partial failure (log and continue), and is safe to call
// more than once.
func (j *IngestJob) Cleanup(ctx context.Context) {
	if err := os.RemoveAll(j.WorkDir); err != nil {
		logger.Warn(ctx, j.log, "Failed to remove work directory", "jobId", j.ID, "path", j.WorkDir, "error", err)
	}
	for _, path := range []string{j.Request.SourcePath, j.Request.ThumbnailPath} {
		if path == "" {
			continue
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			logger.Warn(ctx, j.log, "Failed to remove staged file", "jobId", j.ID, "path", path, "error", err)
		}
	}
}
