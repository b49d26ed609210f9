package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// ChecklistItem is one question of a project stage checklist. Items are keyed by
// ID, never by position.
type ChecklistItem struct {
	ID       string `json:"id" yaml:"id"`
	Question string `json:"question" yaml:"question"`
	Checked  bool   `json:"checked" yaml:"checked"`
	Notes    string `json:"notes" yaml:"notes"`
}

// ChecklistAnalysisEntry is the model's answer for one checklist item.
type ChecklistAnalysisEntry struct {
	ID            string `json:"id"`
	Answered      *bool  `json:"answered,omitempty"`
	AnswerSummary string `json:"answer_summary"`
	Confidence    int    `json:"confidence"`
	SourceQuote   string `json:"source_quote,omitempty"`
}

// IsAnswered treats a missing flag as answered; only an explicit false rejects.
func (e ChecklistAnalysisEntry) IsAnswered() bool {
	return e.Answered == nil || *e.Answered
}

// ProjectChecklist stores the checklist of one project stage.
type ProjectChecklist struct {
	OwnerID     string         `gorm:"column:owner_id;type:text;primaryKey" json:"owner_id"` // <project_id>:<stage>
	ProjectType string         `gorm:"column:project_type;type:text" json:"project_type"`
	Items       datatypes.JSON `gorm:"column:items;type:jsonb" json:"items"`
	UpdatedAt   time.Time      `gorm:"column:updated_at;type:timestamptz" json:"updated_at"`
}

func (ProjectChecklist) TableName() string { return "project_checklists" }

func (p *ProjectChecklist) DecodeItems() ([]ChecklistItem, error) {
	if len(p.Items) == 0 {
		return []ChecklistItem{}, nil
	}
	var items []ChecklistItem
	if err := json.Unmarshal(p.Items, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (p *ProjectChecklist) EncodeItems(items []ChecklistItem) error {
	if items == nil {
		items = []ChecklistItem{}
	}
	b, err := json.Marshal(items)
	if err != nil {
		return err
	}
	p.Items = datatypes.JSON(b)
	return nil
}

// ChecklistOwnerID builds the owner key used by ProjectChecklist.
func ChecklistOwnerID(projectID, stage string) string {
	return projectID + ":" + stage
}

// ChecklistQuestion is the part of an item the model sees.
type ChecklistQuestion struct {
	ID       string `json:"id"`
	Question string `json:"question"`
}
