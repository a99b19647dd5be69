package models

import "fmt"

// IngestMessage is the queue payload announcing a new upload. VideoKey and
// ThumbnailKey name objects in the raw bucket.
type IngestMessage struct {
	RequestID    string `json:"requestId"`
	VideoKey     string `json:"videoKey"`
	ThumbnailKey string `json:"thumbnailKey"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	OwnerID      string `json:"ownerId"`
}

// Validate checks that the message carries every field the pipeline needs.
func (m *IngestMessage) Validate() error {
	if m.RequestID == "" {
		return fmt.Errorf("%w: requestId is required", ErrMessageParse)
	}
	if m.VideoKey == "" {
		return fmt.Errorf("%w: videoKey is required", ErrMessageParse)
	}
	if m.ThumbnailKey == "" {
		return fmt.Errorf("%w: thumbnailKey is required", ErrMessageParse)
	}
	if m.Title == "" {
		return fmt.Errorf("%w: %v", ErrMessageParse, ErrMissingTitle)
	}
	if m.OwnerID == "" {
		return fmt.Errorf("%w: %v", ErrMessageParse, ErrMissingOwner)
	}
	return nil
}
