package models

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a pipeline failure so the transport layer can choose
// a response class without inspecting error strings.
type ErrorKind string

const (
	KindValidation  ErrorKind = "validation"
	KindProbe       ErrorKind = "probe"
	KindSegment     ErrorKind = "segment"
	KindUpload      ErrorKind = "upload"
	KindPersistence ErrorKind = "persistence"
	KindUnknown     ErrorKind = "unknown"
)

// Sentinel errors for pipeline operations.
var (
	// Validation errors
	ErrMissingTitle     = errors.New("title is required")
	ErrMissingOwner     = errors.New("ownerId is required")
	ErrMissingSource    = errors.New("source file is required")
	ErrMissingThumbnail = errors.New("thumbnail file is required")

	// Probe errors
	ErrNoStreams    = errors.New("media has no streams")
	ErrProbeTimeout = errors.New("probe timed out")

	// Segmenter errors
	ErrEmptyMedia        = errors.New("media has zero duration")
	ErrTranscodeFailed   = errors.New("transcode process failed")
	ErrTranscodeTimeout  = errors.New("transcode timed out")
	ErrManifestMismatch  = errors.New("manifest does not match produced segments")
	ErrNoSegmentsWritten = errors.New("no segments produced")

	// Upload errors
	ErrUploadAborted = errors.New("upload fan-out aborted")

	// Ingress errors
	ErrMessageParse  = errors.New("failed to parse ingest message")
	ErrStagingFailed = errors.New("failed to stage raw objects")

	// Persistence errors
	ErrAssetExists  = errors.New("asset already committed")
	ErrCommitFailed = errors.New("persistence sink rejected asset")

	// Assembler contract violations
	ErrNoVariants     = errors.New("at least one quality variant is required")
	ErrDuplicateLabel = errors.New("duplicate quality variant resolution label")
)

// PipelineError attaches an ErrorKind to a stage failure. The underlying
// cause is preserved for errors.Is / errors.As.
type PipelineError struct {
	Kind ErrorKind
	Err  error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

// WrapKind tags err with kind. A nil err returns nil; an err already tagged
// keeps its original kind so the coordinator re-surfaces stage errors
// unchanged.
func WrapKind(kind ErrorKind, err error) error {
	if err == nil {
		return nil
	}
	var pe *PipelineError
	if errors.As(err, &pe) {
		return err
	}
	return &PipelineError{Kind: kind, Err: err}
}

// KindOf extracts the kind from err, or KindUnknown when untagged.
func KindOf(err error) ErrorKind {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindUnknown
}
