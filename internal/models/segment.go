package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// SegmentRecord tracks one segment of a run. Records expire with the TTL index
// on ExpiresAt; segments never outlive their run's diagnostics window.
type SegmentRecord struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	RunID        string             `bson:"run_id" json:"run_id"`
	SegmentIndex int                `bson:"segment_index" json:"segment_index"`

	StartOffsetSeconds float64 `bson:"start_offset_seconds" json:"start_offset_seconds"`
	SizeBytes          int64   `bson:"size_bytes" json:"size_bytes"`
	RemoteURL          string  `bson:"remote_url,omitempty" json:"remote_url,omitempty"`

	UploadStatus string `bson:"upload_status" json:"upload_status"` // pending|done|failed
	STTStatus    string `bson:"stt_status" json:"stt_status"`       // pending|done|failed
	TextLength   int    `bson:"text_length,omitempty" json:"text_length,omitempty"`
	Error        string `bson:"error,omitempty" json:"error,omitempty"`

	Timestamp time.Time `bson:"timestamp" json:"timestamp"`
	ExpiresAt time.Time `bson:"expires_at" json:"expires_at"` // for TTL index
}
