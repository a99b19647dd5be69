package models

// QualityVariant is one encoded rendition of the source video. Variants are
// kept as an ordered set with unique resolution labels so a multi-bitrate
// ladder fits the same record.
type QualityVariant struct {
	Resolution  string `dynamodbav:"resolution" json:"resolution"`
	ManifestURL string `dynamodbav:"manifest_url" json:"manifestUrl"`
}

// VideoAsset is the persisted result of a successful ingest job. It is
// written exactly once, only after every artifact is durably stored.
type VideoAsset struct {
	// Keys
	PK     string `dynamodbav:"pk" json:"-"`
	SK     string `dynamodbav:"sk" json:"-"`
	GSI1PK string `dynamodbav:"gsi1pk,omitempty" json:"-"`
	GSI1SK string `dynamodbav:"gsi1sk,omitempty" json:"-"`

	AssetID         string           `dynamodbav:"asset_id" json:"assetId"`
	Title           string           `dynamodbav:"title" json:"title"`
	Description     string           `dynamodbav:"description,omitempty" json:"description,omitempty"`
	OwnerID         string           `dynamodbav:"owner_id" json:"ownerId"`
	ThumbnailURL    string           `dynamodbav:"thumbnail_url" json:"thumbnailUrl"`
	ManifestURL     string           `dynamodbav:"manifest_url" json:"manifestUrl"`
	DurationSeconds float64          `dynamodbav:"duration_seconds" json:"durationSeconds"`
	Duration        string           `dynamodbav:"duration" json:"duration"`
	QualityVariants []QualityVariant `dynamodbav:"quality_variants" json:"qualityVariants"`
	SegmentCount    int              `dynamodbav:"segment_count" json:"segmentCount"`
	CreatedAt       string           `dynamodbav:"created_at" json:"createdAt"`
}
