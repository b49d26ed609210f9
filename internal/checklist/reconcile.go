// Package checklist merges model answers and manual edits into project stage
// checklists without overwriting information a person already entered.
package checklist

import (
	"strings"

	"github.com/archstudio/intake/internal/models"
	"github.com/archstudio/intake/internal/utils"
)

// ConfidenceThreshold is the minimum confidence for an automated answer to
// fill an item.
const ConfidenceThreshold = 60

// Filled reports whether a person (or an earlier run) already supplied data.
func Filled(item models.ChecklistItem) bool {
	return item.Checked || item.Notes != ""
}

// Accepts reports whether an analysis entry may fill an empty item. A checked
// item always carries notes, so an entry without an answer never qualifies.
func Accepts(e models.ChecklistAnalysisEntry) bool {
	return e.IsAnswered() && e.Confidence >= ConfidenceThreshold && strings.TrimSpace(e.AnswerSummary) != ""
}

// Reconcile returns a new checklist where every empty item with an accepted
// matching entry is checked and annotated. Filled items are copied unchanged
// and order is preserved. Running it twice with the same analysis is a no-op.
func Reconcile(current []models.ChecklistItem, analysis []models.ChecklistAnalysisEntry) []models.ChecklistItem {
	byID := make(map[string]models.ChecklistAnalysisEntry, len(analysis))
	for _, e := range analysis {
		if _, dup := byID[e.ID]; !dup {
			byID[e.ID] = e
		}
	}

	out := make([]models.ChecklistItem, len(current))
	for i, item := range current {
		out[i] = item
		if Filled(item) {
			continue
		}
		e, ok := byID[item.ID]
		if !ok || !Accepts(e) {
			continue
		}
		out[i].Checked = true
		out[i].Notes = e.AnswerSummary
	}
	return out
}

// Changed lists the ids whose value differs between before and after.
func Changed(before, after []models.ChecklistItem) []string {
	prev := make(map[string]models.ChecklistItem, len(before))
	for _, item := range before {
		prev[item.ID] = item
	}
	var ids []string
	for _, item := range after {
		if p, ok := prev[item.ID]; !ok || p != item {
			ids = append(ids, item.ID)
		}
	}
	return ids
}

// Questions extracts what the model needs to see, in checklist order.
func Questions(items []models.ChecklistItem) []models.ChecklistQuestion {
	out := make([]models.ChecklistQuestion, 0, len(items))
	for _, item := range items {
		out = append(out, models.ChecklistQuestion{ID: item.ID, Question: item.Question})
	}
	return out
}

// Edit is a manual change to one item. Nil fields are left as they are.
type Edit struct {
	ID      string
	Checked *bool
	Notes   *string
}

// ApplyManual applies a user edit. Manual edits always win over stored values.
func ApplyManual(items []models.ChecklistItem, edit Edit) ([]models.ChecklistItem, error) {
	const op = "checklist.ApplyManual"

	out := make([]models.ChecklistItem, len(items))
	copy(out, items)
	for i := range out {
		if out[i].ID != edit.ID {
			continue
		}
		if edit.Checked != nil {
			out[i].Checked = *edit.Checked
		}
		if edit.Notes != nil {
			out[i].Notes = strings.TrimSpace(*edit.Notes)
		}
		return out, nil
	}
	return nil, utils.E(utils.CodeNotFound, op, "unknown checklist item "+edit.ID, utils.ErrNotFound)
}
