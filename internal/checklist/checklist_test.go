package checklist

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/archstudio/intake/internal/models"
	"github.com/archstudio/intake/internal/utils"
)

func answered(v bool) *bool { return &v }

func sampleChecklist() []models.ChecklistItem {
	return []models.ChecklistItem{
		{ID: "project_type", Question: "type?"},
		{ID: "budget", Question: "budget?", Checked: true},
		{ID: "area", Question: "area?", Notes: "about 100 sqm"},
		{ID: "timeline", Question: "when?"},
		{ID: "style", Question: "style?"},
		{ID: "referral", Question: "referral?"},
	}
}

func sampleAnalysis() []models.ChecklistAnalysisEntry {
	return []models.ChecklistAnalysisEntry{
		{ID: "referral", AnswerSummary: "friend", Confidence: 60},
		{ID: "project_type", Answered: answered(true), AnswerSummary: "שיפוץ דירה", Confidence: 90},
		{ID: "budget", Answered: answered(true), AnswerSummary: "500k", Confidence: 99},
		{ID: "area", Answered: answered(true), AnswerSummary: "80 sqm", Confidence: 99},
		{ID: "timeline", Answered: answered(true), AnswerSummary: "next year", Confidence: 59},
		{ID: "style", Answered: answered(false), AnswerSummary: "modern", Confidence: 95},
		{ID: "unknown", Answered: answered(true), AnswerSummary: "x", Confidence: 100},
	}
}

func TestReconcileFillsOnlyEmptyItemsAboveThreshold(t *testing.T) {
	current := sampleChecklist()
	before := sampleChecklist()

	got := Reconcile(current, sampleAnalysis())

	want := []models.ChecklistItem{
		{ID: "project_type", Question: "type?", Checked: true, Notes: "שיפוץ דירה"},
		{ID: "budget", Question: "budget?", Checked: true},
		{ID: "area", Question: "area?", Notes: "about 100 sqm"},
		{ID: "timeline", Question: "when?"},
		{ID: "style", Question: "style?"},
		{ID: "referral", Question: "referral?", Checked: true, Notes: "friend"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Reconcile mismatch\n got: %+v\nwant: %+v", got, want)
	}
	if !reflect.DeepEqual(current, before) {
		t.Fatal("Reconcile must not mutate its input")
	}
}

func TestReconcileNonDestructive(t *testing.T) {
	current := sampleChecklist()
	got := Reconcile(current, sampleAnalysis())
	for i, item := range current {
		if Filled(item) && got[i] != item {
			t.Fatalf("filled item %s changed: %+v -> %+v", item.ID, item, got[i])
		}
	}
}

func TestReconcileThresholdNeverChecksLowConfidence(t *testing.T) {
	items := []models.ChecklistItem{{ID: "a"}, {ID: "b"}}
	for conf := 0; conf < ConfidenceThreshold; conf++ {
		got := Reconcile(items, []models.ChecklistAnalysisEntry{
			{ID: "a", Answered: answered(true), AnswerSummary: "x", Confidence: conf},
			{ID: "b", AnswerSummary: "y", Confidence: conf},
		})
		if got[0].Checked || got[1].Checked {
			t.Fatalf("confidence %d checked an item", conf)
		}
	}
}

func TestReconcileSkipsEntriesWithoutAnswer(t *testing.T) {
	current := []models.ChecklistItem{{ID: "budget", Question: "budget?"}, {ID: "area", Question: "area?"}}
	analysis := []models.ChecklistAnalysisEntry{
		{ID: "budget", Answered: answered(true), AnswerSummary: "", Confidence: 90},
		{ID: "area", Answered: answered(true), AnswerSummary: "   ", Confidence: 95},
	}

	got := Reconcile(current, analysis)
	if !reflect.DeepEqual(got, current) {
		t.Fatalf("entries without an answer must not fill items: %+v", got)
	}
	for _, item := range got {
		if item.Checked && item.Notes == "" {
			t.Fatalf("item %s checked without notes", item.ID)
		}
	}
}

func TestReconcileIdempotent(t *testing.T) {
	once := Reconcile(sampleChecklist(), sampleAnalysis())
	twice := Reconcile(once, sampleAnalysis())
	if !reflect.DeepEqual(once, twice) {
		t.Fatalf("second pass changed the checklist\n once: %+v\ntwice: %+v", once, twice)
	}
	if ids := Changed(once, twice); len(ids) != 0 {
		t.Fatalf("expected no changes, got %v", ids)
	}
}

func TestReconcileMatchesByIDUnderReordering(t *testing.T) {
	items := sampleChecklist()
	reversed := make([]models.ChecklistItem, len(items))
	for i := range items {
		reversed[len(items)-1-i] = items[i]
	}
	got := Reconcile(reversed, sampleAnalysis())
	if got[len(got)-1].ID != "project_type" || got[len(got)-1].Notes != "שיפוץ דירה" {
		t.Fatalf("expected id based match after reordering, got %+v", got)
	}
	if ids := Changed(reversed, got); !reflect.DeepEqual(ids, []string{"referral", "project_type"}) {
		t.Fatalf("unexpected changed ids %v", ids)
	}
}

func TestApplyManual(t *testing.T) {
	items := Reconcile(sampleChecklist(), sampleAnalysis())
	notes := "  actually a new build  "
	got, err := ApplyManual(items, Edit{ID: "project_type", Notes: &notes, Checked: answered(false)})
	if err != nil {
		t.Fatalf("ApplyManual: %v", err)
	}
	if got[0].Checked || got[0].Notes != "actually a new build" {
		t.Fatalf("manual edit not applied: %+v", got[0])
	}
	if items[0].Notes != "שיפוץ דירה" {
		t.Fatal("ApplyManual must not mutate its input")
	}
	// The note now blocks any automated refill.
	again := Reconcile(got, sampleAnalysis())
	if again[0] != got[0] {
		t.Fatalf("reconcile overwrote a manual note: %+v", again[0])
	}

	_, err = ApplyManual(items, Edit{ID: "missing"})
	if !errors.Is(err, utils.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestQuestions(t *testing.T) {
	qs := Questions(sampleChecklist())
	if len(qs) != 6 || qs[1] != (models.ChecklistQuestion{ID: "budget", Question: "budget?"}) {
		t.Fatalf("unexpected questions %+v", qs)
	}
}

func TestTemplates(t *testing.T) {
	builtin, err := LoadTemplates("")
	if err != nil {
		t.Fatalf("LoadTemplates builtin: %v", err)
	}
	tpl, ok := builtin.Lookup("apartment", "first_call")
	if !ok || tpl.ProjectType != "default" {
		t.Fatalf("expected default fallback, got %+v %v", tpl, ok)
	}
	items := FromTemplate(tpl)
	if len(items) == 0 || items[0].ID != "project_type" || items[0].Checked || items[0].Notes != "" {
		t.Fatalf("unexpected template items %+v", items)
	}

	path := filepath.Join(t.TempDir(), "templates.yaml")
	doc := `templates:
  - project_type: villa
    stage: first_call
    questions:
      - id: plot
        question: "Plot size?"
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	custom, err := LoadTemplates(path)
	if err != nil {
		t.Fatalf("LoadTemplates file: %v", err)
	}
	if tpl, ok := custom.Lookup("villa", "first_call"); !ok || len(tpl.Questions) != 1 {
		t.Fatalf("unexpected villa template %+v", tpl)
	}
	if _, ok := custom.Lookup("villa", "first_meeting"); ok {
		t.Fatal("unexpected template for missing stage")
	}

	dup := `templates:
  - project_type: x
    stage: y
    questions:
      - {id: a, question: one}
      - {id: a, question: two}
`
	if _, err := ParseTemplates([]byte(dup)); err == nil {
		t.Fatal("expected duplicate id error")
	}
}
