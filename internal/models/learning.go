package models

import "time"

// Learning is a past correction of the model's output, fed back into later
// prompts as a calibration example.
type Learning struct {
	ID          string    `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Stage       string    `gorm:"column:stage;type:text;index" json:"stage"`
	Field       string    `gorm:"column:field;type:text" json:"field"`
	Original    string    `gorm:"column:original;type:text" json:"original"`
	Corrected   string    `gorm:"column:corrected;type:text" json:"corrected"`
	Explanation string    `gorm:"column:explanation;type:text" json:"explanation"`
	CreatedBy   string    `gorm:"column:created_by;type:text" json:"created_by"`
	CreatedAt   time.Time `gorm:"column:created_at;type:timestamptz;index" json:"created_at"`
}

func (Learning) TableName() string { return "learnings" }
