package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/archstudio/intake/internal/media"
	"github.com/archstudio/intake/internal/models"
	"github.com/archstudio/intake/internal/pipeline"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, name string, size int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, bytes.Repeat([]byte{0x1}, size), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestPlanLargeFileJSON(t *testing.T) {
	t.Setenv("LARGE_FILE_THRESHOLD_MB", "1")
	path := writeFile(t, "call.m4a", 2*media.MiB)

	out, err := runCLI(t, "--json", "plan", path, "--duration", "2000")
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	var report planReport
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if report.Strategy != media.StrategyTranscode || !report.Transcode {
		t.Fatalf("expected transcode plan, got %+v", report)
	}
	if len(report.Segments) != 3 {
		t.Fatalf("expected 3 segments, got %d", len(report.Segments))
	}
	if last := report.Segments[2]; last.StartSeconds != 1800 || last.Seconds != 200 {
		t.Fatalf("unexpected last segment %+v", last)
	}
}

func TestPlanSmallFileTable(t *testing.T) {
	t.Setenv("LARGE_FILE_THRESHOLD_MB", "")
	path := writeFile(t, "note.mp3", 4096)

	out, err := runCLI(t, "plan", path)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if !strings.Contains(out, "strategy: passthrough") {
		t.Fatalf("expected passthrough in output:\n%s", out)
	}
	if !strings.Contains(out, "audio/mpeg") {
		t.Fatalf("expected guessed mime type in output:\n%s", out)
	}
}

func TestPlanLiveCountsChunks(t *testing.T) {
	t.Setenv("LIVE_CHUNK_CAP_MB", "1")
	path := writeFile(t, "capture.webm", 2*media.MiB+10)

	out, err := runCLI(t, "--json", "plan", path, "--live")
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	var report planReport
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatal(err)
	}
	if report.Strategy != media.StrategyLive || len(report.Segments) != 3 {
		t.Fatalf("unexpected live plan %+v", report)
	}
}

func TestPlanMissingFile(t *testing.T) {
	if _, err := runCLI(t, "plan", filepath.Join(t.TempDir(), "nope.wav")); err == nil {
		t.Fatal("expected an error for a missing file")
	}
}

func TestReconcileKeepsFilledItems(t *testing.T) {
	dir := t.TempDir()
	current := []models.ChecklistItem{
		{ID: "budget", Question: "budget?", Notes: "entered by hand"},
		{ID: "location", Question: "where?"},
		{ID: "area", Question: "how big?"},
	}
	b, _ := json.Marshal(current)
	checklistPath := filepath.Join(dir, "checklist.json")
	if err := os.WriteFile(checklistPath, b, 0o644); err != nil {
		t.Fatal(err)
	}
	answer := "```json\n" + `{
  "summary": "first call",
  "checklist_analysis": [
    {"id": "budget", "answer_summary": "about 300k", "confidence": 95},
    {"id": "location", "answer_summary": "Haifa", "confidence": 80},
    {"id": "area", "answer_summary": "maybe 90m", "confidence": 40}
  ]
}` + "\n```"
	analysisPath := filepath.Join(dir, "answer.txt")
	if err := os.WriteFile(analysisPath, []byte(answer), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := runCLI(t, "--json", "reconcile", "--checklist", checklistPath, "--analysis", analysisPath)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	var report reconcileReport
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if len(report.Changed) != 1 || report.Changed[0] != "location" {
		t.Fatalf("expected only location to change, got %v", report.Changed)
	}
	if report.Items[0].Notes != "entered by hand" {
		t.Fatalf("filled item overwritten: %+v", report.Items[0])
	}
	if !report.Items[1].Checked || report.Items[1].Notes != "Haifa" {
		t.Fatalf("location not filled: %+v", report.Items[1])
	}
	if report.Items[2].Checked {
		t.Fatalf("low confidence answer applied: %+v", report.Items[2])
	}
}

func TestReconcileFromTemplate(t *testing.T) {
	t.Setenv("CHECKLIST_TEMPLATES", "")
	analysisPath := filepath.Join(t.TempDir(), "answer.json")
	answer := `{"summary": "s", "checklist_analysis": [{"id": "referral", "answer_summary": "friend", "confidence": 70}]}`
	if err := os.WriteFile(analysisPath, []byte(answer), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := runCLI(t, "reconcile", "--template", "default/first_call", "--analysis", analysisPath)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if !strings.Contains(out, "1 of 7 items changed") {
		t.Fatalf("unexpected output:\n%s", out)
	}
}

func TestReconcileRequiresInputs(t *testing.T) {
	if _, err := runCLI(t, "reconcile", "--analysis", "x"); err == nil {
		t.Fatal("expected an error without a checklist source")
	}
	if _, err := runCLI(t, "reconcile", "--template", "default"); err == nil {
		t.Fatal("expected an error without --analysis")
	}
}

func TestChunkFileSplitsAtCap(t *testing.T) {
	path := writeFile(t, "capture.webm", 100*1024+5)
	segs, err := chunkFile(path, filepath.Join(t.TempDir(), "live"), "audio/webm", 64*1024)
	if err != nil {
		t.Fatalf("chunkFile: %v", err)
	}
	if len(segs) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(segs))
	}
	var total int64
	for i, seg := range segs {
		if seg.Index != i || seg.MimeType != "audio/webm" {
			t.Fatalf("unexpected segment %+v", seg)
		}
		total += seg.SizeBytes
	}
	if total != 100*1024+5 {
		t.Fatalf("bytes lost: %d", total)
	}
}

func TestFormatSeconds(t *testing.T) {
	if got := formatSeconds(3725.4); got != "1:02:05" {
		t.Fatalf("unexpected %q", got)
	}
}

func TestWriteResultsSkipsMissingParts(t *testing.T) {
	dir := t.TempDir()
	if err := writeResults(dir, &pipeline.Outcome{}); err != nil {
		t.Fatalf("writeResults: %v", err)
	}
	if entries, _ := os.ReadDir(dir); len(entries) != 0 {
		t.Fatalf("expected no files for an empty outcome, got %d", len(entries))
	}

	out := &pipeline.Outcome{
		Transcript: "hello there",
		Analysis:   &models.AnalysisResult{Summary: "short call"},
		Checklist:  []models.ChecklistItem{{ID: "budget", Checked: true, Notes: "300k"}},
	}
	if err := writeResults(dir, out); err != nil {
		t.Fatalf("writeResults: %v", err)
	}
	for _, name := range []string{"transcript.txt", "analysis.json", "checklist.json"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Fatalf("expected %s: %v", name, err)
		}
	}
}
