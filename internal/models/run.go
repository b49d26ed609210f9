package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// PipelineRun is the Mongo document tracking one ingestion attempt.
type PipelineRun struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"-"`
	RunID     string             `bson:"run_id" json:"run_id"`       // uuid v4
	SourceID  string             `bson:"source_id" json:"source_id"` // one active run per source
	ProjectID string             `bson:"project_id" json:"project_id"`
	Stage     string             `bson:"stage" json:"stage"` // first_call|first_meeting
	UserID    string             `bson:"user_id" json:"user_id"`

	ProjectType string `bson:"project_type,omitempty" json:"project_type,omitempty"` // selects the checklist template

	Title    string `bson:"title" json:"title"`
	Language string `bson:"language" json:"language"`

	Source        RunSource   `bson:"source" json:"source"`
	PipelineStage string      `bson:"pipeline_stage" json:"pipeline_stage"` // idle|splitting|...|done|error|cancelled
	Progress      RunProgress `bson:"progress" json:"progress"`
	Message       string      `bson:"message,omitempty" json:"message,omitempty"`
	ErrorCode     string      `bson:"error_code,omitempty" json:"error_code,omitempty"`
	Events        []RunEvent  `bson:"events,omitempty" json:"events,omitempty"`

	RecordingID string `bson:"recording_id,omitempty" json:"recording_id,omitempty"`

	CreatedAt  time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt  time.Time  `bson:"updated_at" json:"updated_at"`
	FinishedAt *time.Time `bson:"finished_at,omitempty" json:"finished_at,omitempty"`
}

// RunSource describes the audio the run ingests.
type RunSource struct {
	LocalPath    string   `bson:"local_path,omitempty" json:"-"`
	FileName     string   `bson:"file_name,omitempty" json:"file_name,omitempty"`
	MimeType     string   `bson:"mime_type,omitempty" json:"mime_type,omitempty"`
	SizeBytes    int64    `bson:"size_bytes" json:"size_bytes"`
	Live         bool     `bson:"live" json:"live"`
	SegmentPaths []string `bson:"segment_paths,omitempty" json:"-"` // live capture output
	RemoteURL    string   `bson:"remote_url,omitempty" json:"remote_url,omitempty"`
	SegmentURLs  []string `bson:"segment_urls,omitempty" json:"segment_urls,omitempty"` // re-analysis input
	Reanalyze    bool     `bson:"reanalyze" json:"reanalyze"`
}

type RunProgress struct {
	Current int     `bson:"current" json:"current"`
	Total   int     `bson:"total" json:"total"`
	Percent float64 `bson:"percent" json:"percent"`
}

type RunEvent struct {
	At      time.Time `bson:"at" json:"at"`
	Stage   string    `bson:"stage" json:"stage"`
	Level   string    `bson:"level" json:"level"` // info|error
	Message string    `bson:"message" json:"message"`
}
