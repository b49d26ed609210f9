package checklist

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/archstudio/intake/internal/models"
)

// Template is the question set of one project type.
type Template struct {
	ProjectType string `yaml:"project_type"`
	Stage       string `yaml:"stage"`
	Questions   []struct {
		ID       string `yaml:"id"`
		Question string `yaml:"question"`
	} `yaml:"questions"`
}

// Templates indexes templates by project type and stage.
type Templates map[string]Template

func templateKey(projectType, stage string) string { return projectType + "/" + stage }

// Lookup returns the template of projectType for stage, falling back to the
// "default" project type.
func (t Templates) Lookup(projectType, stage string) (Template, bool) {
	if tpl, ok := t[templateKey(projectType, stage)]; ok {
		return tpl, true
	}
	tpl, ok := t[templateKey("default", stage)]
	return tpl, ok
}

type templateFile struct {
	Templates []Template `yaml:"templates"`
}

// ParseTemplates decodes a YAML template document and validates ids.
func ParseTemplates(data []byte) (Templates, error) {
	var file templateFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse checklist templates: %w", err)
	}
	out := make(Templates, len(file.Templates))
	for _, tpl := range file.Templates {
		if tpl.ProjectType == "" || tpl.Stage == "" {
			return nil, fmt.Errorf("checklist template missing project_type or stage")
		}
		seen := map[string]bool{}
		for _, q := range tpl.Questions {
			if q.ID == "" {
				return nil, fmt.Errorf("checklist template %s/%s: question without id", tpl.ProjectType, tpl.Stage)
			}
			if seen[q.ID] {
				return nil, fmt.Errorf("checklist template %s/%s: duplicate id %q", tpl.ProjectType, tpl.Stage, q.ID)
			}
			seen[q.ID] = true
		}
		out[templateKey(tpl.ProjectType, tpl.Stage)] = tpl
	}
	return out, nil
}

// LoadTemplates reads a YAML template file. An empty path yields the built-in set.
func LoadTemplates(path string) (Templates, error) {
	if path == "" {
		return ParseTemplates([]byte(defaultTemplates))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read checklist templates: %w", err)
	}
	return ParseTemplates(data)
}

// FromTemplate builds an empty checklist for tpl.
func FromTemplate(tpl Template) []models.ChecklistItem {
	out := make([]models.ChecklistItem, 0, len(tpl.Questions))
	for _, q := range tpl.Questions {
		out = append(out, models.ChecklistItem{ID: q.ID, Question: q.Question})
	}
	return out
}

const defaultTemplates = `
templates:
  - project_type: default
    stage: first_call
    questions:
      - id: project_type
        question: "מה סוג הפרויקט?"
      - id: location
        question: "היכן נמצא הנכס?"
      - id: area
        question: "מה שטח הנכס?"
      - id: budget
        question: "מה התקציב המשוער?"
      - id: timeline
        question: "מתי מתוכננת תחילת העבודה?"
      - id: decision_makers
        question: "מי מקבלי ההחלטות?"
      - id: referral
        question: "איך הגיעו אלינו?"
  - project_type: default
    stage: first_meeting
    questions:
      - id: rooms
        question: "אילו חללים נכללים בפרויקט?"
      - id: style
        question: "מה הסגנון המועדף?"
      - id: constraints
        question: "האם יש אילוצים קונסטרוקטיביים או רישוי?"
      - id: budget_confirmed
        question: "האם התקציב אושר?"
      - id: next_meeting
        question: "מתי הפגישה הבאה?"
`
