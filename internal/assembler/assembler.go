package assembler

import (
	"fmt"
	"time"

	"github.com/streamvault/ingest/pkg/models"
)

// AssembleInput gathers the prior stages' outputs. All fields are required
// except Description.
type AssembleInput struct {
	Title        string
	Description  string
	OwnerID      string
	Metadata     models.MediaMetadata
	ThumbnailURL string
	Variants     []models.QualityVariant
	SegmentCount int
}

// Assemble builds the video asset record for the persistence sink. Pure
// data transformation: it fails only on contract violations, never on
// external conditions, since those were handled upstream.
func Assemble(in AssembleInput) (*models.VideoAsset, error) {
	if in.Title == "" {
		return nil, models.ErrMissingTitle
	}
	if in.OwnerID == "" {
		return nil, models.ErrMissingOwner
	}
	if in.ThumbnailURL == "" {
		return nil, fmt.Errorf("thumbnail URL is required")
	}
	if in.Metadata.DurationSeconds < 0 {
		return nil, fmt.Errorf("negative duration %f", in.Metadata.DurationSeconds)
	}
	if len(in.Variants) == 0 {
		return nil, models.ErrNoVariants
	}

	seen := make(map[string]struct{}, len(in.Variants))
	for _, v := range in.Variants {
		if v.Resolution == "" || v.ManifestURL == "" {
			return nil, fmt.Errorf("variant %+v is incomplete", v)
		}
		if _, dup := seen[v.Resolution]; dup {
			return nil, fmt.Errorf("%w: %s", models.ErrDuplicateLabel, v.Resolution)
		}
		seen[v.Resolution] = struct{}{}
	}

	return &models.VideoAsset{
		Title:           in.Title,
		Description:     in.Description,
		OwnerID:         in.OwnerID,
		ThumbnailURL:    in.ThumbnailURL,
		ManifestURL:     in.Variants[0].ManifestURL,
		DurationSeconds: in.Metadata.DurationSeconds,
		Duration:        FormatDuration(in.Metadata.DurationSeconds),
		QualityVariants: in.Variants,
		SegmentCount:    in.SegmentCount,
		CreatedAt:       time.Now().UTC().Format(time.RFC3339),
	}, nil
}

// FormatDuration renders a duration in seconds as HH:MM:SS, flooring
// fractional seconds.
func FormatDuration(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	total := int(seconds)
	hours := total / 3600
	minutes := (total % 3600) / 60
	secs := total % 60
	return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, secs)
}
