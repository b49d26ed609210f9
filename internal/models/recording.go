package models

import (
	"time"

	"github.com/lib/pq"
	"gorm.io/datatypes"
)

type RecordingStatus string

const (
	RecordingIdle      RecordingStatus = "idle"
	RecordingAnalyzed  RecordingStatus = "analyzed"
	RecordingNoResults RecordingStatus = "transcribed" // transcript kept, analysis unparseable
)

// Recording is the durable result of a successful pipeline run.
type Recording struct {
	ID        string `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	ProjectID string `gorm:"column:project_id;type:text;index" json:"project_id"`
	Stage     string `gorm:"column:stage;type:text;index" json:"stage"` // first_call|first_meeting
	RunID     string `gorm:"column:run_id;type:text" json:"run_id"`
	Title     string `gorm:"column:title;type:text" json:"title"`

	AudioURL    string         `gorm:"column:audio_url;type:text" json:"audio_url"`
	SegmentURLs pq.StringArray `gorm:"column:segment_urls;type:text[]" json:"segment_urls"`

	Transcription string          `gorm:"column:transcription;type:text" json:"transcription"`
	Analysis      datatypes.JSON  `gorm:"column:analysis;type:jsonb" json:"analysis"`
	Status        RecordingStatus `gorm:"column:status;type:text" json:"status"`

	CreatedAt time.Time `gorm:"column:created_at;type:timestamptz" json:"created_at"`
}

func (Recording) TableName() string { return "recordings" }

// Document links a recording to the project's document library.
type Document struct {
	ID          string         `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	ProjectID   string         `gorm:"column:project_id;type:text;index" json:"project_id"`
	Title       string         `gorm:"column:title;type:text" json:"title"`
	FileURL     string         `gorm:"column:file_url;type:text" json:"file_url"`
	RecordingID string         `gorm:"column:recording_id;type:uuid;index" json:"recording_id"`
	Tags        pq.StringArray `gorm:"column:tags;type:text[]" json:"tags"`
	CreatedAt   time.Time      `gorm:"column:created_at;type:timestamptz" json:"created_at"`
}

func (Document) TableName() string { return "documents" }
