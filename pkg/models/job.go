package models

// JobState represents the lifecycle position of an ingest job.
type JobState string

const (
	StateReceived  JobState = "received"
	StateProbed    JobState = "probed"
	StateSegmented JobState = "segmented"
	StateUploaded  JobState = "uploaded"
	StateAssembled JobState = "assembled"
	StateCommitted JobState = "committed"
	StateFailed    JobState = "failed"
)

// stateRank orders the forward path; Failed is reachable from anywhere.
var stateRank = map[JobState]int{
	StateReceived:  0,
	StateProbed:    1,
	StateSegmented: 2,
	StateUploaded:  3,
	StateAssembled: 4,
	StateCommitted: 5,
}

// IsValid returns true if the state is a known JobState.
func (s JobState) IsValid() bool {
	if s == StateFailed {
		return true
	}
	_, ok := stateRank[s]
	return ok
}

// Terminal returns true for states the job can never leave.
func (s JobState) Terminal() bool {
	return s == StateCommitted || s == StateFailed
}

// CanTransitionTo reports whether moving from s to next is a legal step.
// Forward moves advance exactly one state; Failed is reachable from any
// non-terminal state. There are no backward transitions.
func (s JobState) CanTransitionTo(next JobState) bool {
	if s.Terminal() {
		return false
	}
	if next == StateFailed {
		return true
	}
	from, ok := stateRank[s]
	if !ok {
		return false
	}
	to, ok := stateRank[next]
	if !ok {
		return false
	}
	return to == from+1
}

// IngestRequest is the caller-supplied input for one pipeline run. Both
// paths must point at already-staged local files owned by the job.
type IngestRequest struct {
	SourcePath    string `json:"sourcePath"`
	ThumbnailPath string `json:"thumbnailPath"`
	Title         string `json:"title"`
	Description   string `json:"description"`
	OwnerID       string `json:"ownerId"`
}

// Validate checks the request fields the pipeline cannot proceed without.
func (r *IngestRequest) Validate() error {
	if r.Title == "" {
		return ErrMissingTitle
	}
	if r.OwnerID == "" {
		return ErrMissingOwner
	}
	if r.SourcePath == "" {
		return ErrMissingSource
	}
	if r.ThumbnailPath == "" {
		return ErrMissingThumbnail
	}
	return nil
}

// MediaMetadata holds container-level facts extracted by the prober.
// Immutable once produced.
type MediaMetadata struct {
	DurationSeconds float64
	FormatName      string
	StreamCount     int
}

// SegmentSet is the ordered output of one segmentation run: contiguous
// zero-indexed segment files plus the manifest referencing them in order.
type SegmentSet struct {
	ManifestPath   string
	SegmentPaths   []string
	SegmentSeconds int
}

// UploadResult carries the durable URLs produced by the artifact uploader.
// SegmentURLs preserves segment index order regardless of upload order.
type UploadResult struct {
	ManifestURL string
	SegmentURLs []string
}
