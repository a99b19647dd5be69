package models

import (
	"errors"
	"fmt"
	"testing"
)

func TestJobStateTransitions(t *testing.T) {
	tests := []struct {
		from JobState
		to   JobState
		want bool
	}{
		{StateReceived, StateProbed, true},
		{StateProbed, StateSegmented, true},
		{StateSegmented, StateUploaded, true},
		{StateUploaded, StateAssembled, true},
		{StateAssembled, StateCommitted, true},
		{StateReceived, StateFailed, true},
		{StateUploaded, StateFailed, true},
		{StateReceived, StateSegmented, false}, // skipping a stage
		{StateProbed, StateReceived, false},    // backward
		{StateCommitted, StateFailed, false},   // terminal
		{StateFailed, StateProbed, false},      // terminal
		{StateFailed, StateFailed, false},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s->%s", tt.from, tt.to), func(t *testing.T) {
			if got := tt.from.CanTransitionTo(tt.to); got != tt.want {
				t.Errorf("CanTransitionTo(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestJobStateTerminal(t *testing.T) {
	for _, s := range []JobState{StateReceived, StateProbed, StateSegmented, StateUploaded, StateAssembled} {
		if s.Terminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
	for _, s := range []JobState{StateCommitted, StateFailed} {
		if !s.Terminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
}

func TestIngestRequestValidate(t *testing.T) {
	valid := IngestRequest{
		SourcePath:    "/tmp/in.mp4",
		ThumbnailPath: "/tmp/thumb.jpg",
		Title:         "clip",
		OwnerID:       "user-1",
	}

	if err := valid.Validate(); err != nil {
		t.Errorf("Validate() unexpected error = %v", err)
	}

	tests := []struct {
		name    string
		mutate  func(r *IngestRequest)
		wantErr error
	}{
		{"missing title", func(r *IngestRequest) { r.Title = "" }, ErrMissingTitle},
		{"missing owner", func(r *IngestRequest) { r.OwnerID = "" }, ErrMissingOwner},
		{"missing source", func(r *IngestRequest) { r.SourcePath = "" }, ErrMissingSource},
		{"missing thumbnail", func(r *IngestRequest) { r.ThumbnailPath = "" }, ErrMissingThumbnail},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := valid
			tt.mutate(&r)
			if err := r.Validate(); !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestWrapKind(t *testing.T) {
	base := errors.New("boom")

	err := WrapKind(KindSegment, base)
	if KindOf(err) != KindSegment {
		t.Errorf("KindOf() = %s, want %s", KindOf(err), KindSegment)
	}
	if !errors.Is(err, base) {
		t.Error("wrapped error should match the cause with errors.Is")
	}

	// Re-wrapping must not change the original kind.
	rewrapped := WrapKind(KindPersistence, err)
	if KindOf(rewrapped) != KindSegment {
		t.Errorf("KindOf(rewrapped) = %s, want %s", KindOf(rewrapped), KindSegment)
	}

	if WrapKind(KindProbe, nil) != nil {
		t.Error("WrapKind(nil) should be nil")
	}

	if KindOf(base) != KindUnknown {
		t.Errorf("KindOf(untagged) = %s, want %s", KindOf(base), KindUnknown)
	}
}
