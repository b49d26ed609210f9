package workers

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/archstudio/intake/internal/checklist"
	"github.com/archstudio/intake/internal/media"
	"github.com/archstudio/intake/internal/models"
	"github.com/archstudio/intake/internal/pipeline"
	"github.com/archstudio/intake/internal/services"
	"github.com/archstudio/intake/internal/utils"
)

type fakeRuns struct {
	mu       sync.Mutex
	run      *models.PipelineRun
	cancel   bool
	polls    int
	progress []pipeline.Progress
	finished *pipeline.Outcome
}

func (f *fakeRuns) Start(context.Context, services.StartRunRequest) (*models.PipelineRun, error) {
	return nil, errors.New("not used")
}

func (f *fakeRuns) Get(_ context.Context, runID string) (*models.PipelineRun, error) {
	if f.run == nil || f.run.RunID != runID {
		return nil, utils.E(utils.CodeNotFound, "fakeRuns.Get", "run not found", utils.ErrNotFound)
	}
	return f.run, nil
}

func (f *fakeRuns) Cancel(context.Context, string) error { return nil }

func (f *fakeRuns) CancelRequested(context.Context, string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.polls++
	return f.cancel
}

func (f *fakeRuns) Progress(_ context.Context, p pipeline.Progress) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.progress = append(f.progress, p)
	return nil
}

func (f *fakeRuns) Finish(_ context.Context, _ *models.PipelineRun, out *pipeline.Outcome) error {
	f.finished = out
	return nil
}

type fakeChecklists struct {
	items []models.ChecklistItem
	err   error
}

func (f *fakeChecklists) Ensure(context.Context, string, string, string) ([]models.ChecklistItem, error) {
	return f.items, f.err
}

func (f *fakeChecklists) Get(context.Context, string, string) ([]models.ChecklistItem, error) {
	return f.items, f.err
}

func (f *fakeChecklists) MergeAnalysis(context.Context, string, []models.ChecklistAnalysisEntry) ([]models.ChecklistItem, error) {
	return f.items, nil
}

func (f *fakeChecklists) EditItem(context.Context, string, string, checklist.Edit) ([]models.ChecklistItem, error) {
	return f.items, nil
}

type fakeLearnings struct {
	rows []models.Learning
	err  error
}

func (f *fakeLearnings) Create(_ context.Context, l models.Learning) (*models.Learning, error) {
	return &l, nil
}

func (f *fakeLearnings) Recent(context.Context, string, int) ([]models.Learning, error) {
	return f.rows, f.err
}

type fakeSegments struct {
	records []models.SegmentRecord
}

func (f *fakeSegments) Upsert(_ context.Context, rec *models.SegmentRecord) error {
	f.records = append(f.records, *rec)
	return nil
}

func (f *fakeSegments) ListByRun(context.Context, string) ([]models.SegmentRecord, error) {
	return f.records, nil
}

// fakeRunner records its input and returns a fixed outcome.
type fakeRunner struct {
	in  pipeline.Input
	out *pipeline.Outcome
	err error
	hit func(token *pipeline.CancellationToken, reporter pipeline.Reporter)
}

func (f *fakeRunner) Run(_ context.Context, in pipeline.Input, token *pipeline.CancellationToken, reporter pipeline.Reporter) (*pipeline.Outcome, error) {
	f.in = in
	if f.hit != nil {
		f.hit(token, reporter)
	}
	return f.out, f.err
}

func newPool(runs *fakeRuns, runner *fakeRunner) (*PipelineWorkerPool, *fakeSegments) {
	log, _ := test.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)
	segs := &fakeSegments{}
	return &PipelineWorkerPool{
		Runs:        runs,
		Checklists:  &fakeChecklists{items: []models.ChecklistItem{{ID: "budget", Question: "Budget?"}}},
		Learnings:   &fakeLearnings{rows: []models.Learning{{Field: "budget", Corrected: "2M"}}},
		Segments:    segs,
		Pipeline:    runner,
		Language:    "he-IL",
		Locale:      "he",
		CancelCheck: time.Hour,
		Logger:      log,
	}, segs
}

func TestProcessUploadRun(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "call.mp3")
	if err := os.WriteFile(src, []byte("audio"), 0o644); err != nil {
		t.Fatal(err)
	}
	runs := &fakeRuns{run: &models.PipelineRun{
		RunID: "run-1", SourceID: "s1", ProjectID: "p1", Stage: "first_call",
		Source: models.RunSource{LocalPath: src, MimeType: "audio/mpeg", SizeBytes: 5},
	}}
	runner := &fakeRunner{
		out: &pipeline.Outcome{
			RunID:      "run-1",
			Stage:      pipeline.StageDone,
			Transcript: "hello",
			Segments: []media.Segment{
				{Index: 0, SizeBytes: 3, RemoteURL: "u0"},
				{Index: 1, SizeBytes: 2, RemoteURL: "u1"},
			},
			FailedSegments: []int{1},
		},
		hit: func(_ *pipeline.CancellationToken, reporter pipeline.Reporter) {
			reporter.Report(pipeline.Progress{RunID: "run-1", Stage: pipeline.StageSplitting})
		},
	}
	pool, segs := newPool(runs, runner)

	if err := pool.Process(context.Background(), "run-1"); err != nil {
		t.Fatalf("process: %v", err)
	}

	if runner.in.Source.Path != src || runner.in.Language != "he-IL" || runner.in.Locale != "he" {
		t.Fatalf("unexpected input %+v", runner.in)
	}
	if len(runner.in.Checklist) != 1 || len(runner.in.Learnings) != 1 {
		t.Fatalf("expected checklist and learnings on the input: %+v", runner.in)
	}
	if runs.finished == nil || runs.finished.Stage != pipeline.StageDone {
		t.Fatalf("run not finished: %+v", runs.finished)
	}
	if len(runs.progress) != 1 {
		t.Fatalf("expected progress to be forwarded, got %d", len(runs.progress))
	}
	if len(segs.records) != 2 || segs.records[0].STTStatus != "done" || segs.records[1].STTStatus != "failed" {
		t.Fatalf("unexpected segment records %+v", segs.records)
	}
	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Fatal("expected staging file to be removed")
	}
}

func TestProcessLiveRunStatsCaptureSegments(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "live-1")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	var paths []string
	for i, size := range []int{10, 20} {
		p := filepath.Join(dir, "live-00"+string(rune('0'+i))+".webm")
		if err := os.WriteFile(p, make([]byte, size), 0o644); err != nil {
			t.Fatal(err)
		}
		paths = append(paths, p)
	}
	runs := &fakeRuns{run: &models.PipelineRun{
		RunID: "run-2", SourceID: "live:1", ProjectID: "p1", Stage: "first_meeting", Language: "en-US",
		Source: models.RunSource{Live: true, MimeType: "audio/webm;codecs=opus", SegmentPaths: paths},
	}}
	runner := &fakeRunner{out: &pipeline.Outcome{RunID: "run-2", Stage: pipeline.StageDone}}
	pool, _ := newPool(runs, runner)

	if err := pool.Process(context.Background(), "run-2"); err != nil {
		t.Fatal(err)
	}
	if !runner.in.Source.Live || len(runner.in.LiveSegments) != 2 {
		t.Fatalf("unexpected live input %+v", runner.in)
	}
	if runner.in.LiveSegments[1].SizeBytes != 20 || runner.in.LiveSegments[1].MimeType != "audio/webm" {
		t.Fatalf("unexpected live segment %+v", runner.in.LiveSegments[1])
	}
	if runner.in.Language != "en-US" {
		t.Fatalf("run language should win, got %q", runner.in.Language)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Fatalf("expected capture dir removed, stat err=%v", err)
	}
}

func TestProcessReanalysis(t *testing.T) {
	runs := &fakeRuns{run: &models.PipelineRun{
		RunID: "run-3", SourceID: "rec:1", ProjectID: "p1", Stage: "first_call",
		Source: models.RunSource{
			Reanalyze:   true,
			RemoteURL:   "https://storage.googleapis.com/b/recordings/r/source/call.mp3",
			SegmentURLs: []string{"https://storage.googleapis.com/b/recordings/r/000-ab.ogg?x=1"},
		},
	}}
	runner := &fakeRunner{out: &pipeline.Outcome{RunID: "run-3", Stage: pipeline.StageDone}}
	pool, _ := newPool(runs, runner)

	if err := pool.Process(context.Background(), "run-3"); err != nil {
		t.Fatal(err)
	}
	if len(runner.in.StoredSegments) != 1 || runner.in.StoredSegments[0].MimeType != "audio/ogg" {
		t.Fatalf("unexpected stored segments %+v", runner.in.StoredSegments)
	}
	if runner.in.AudioURL == "" || runner.in.Source.Path != "" {
		t.Fatalf("unexpected reanalysis input %+v", runner.in)
	}
}

func TestProcessClosesRunWhenInputFails(t *testing.T) {
	runs := &fakeRuns{run: &models.PipelineRun{
		RunID: "run-4", SourceID: "s", ProjectID: "p1", Stage: "first_call",
		Source: models.RunSource{Live: true, SegmentPaths: []string{"/does/not/exist.webm"}},
	}}
	runner := &fakeRunner{}
	pool, _ := newPool(runs, runner)

	if err := pool.Process(context.Background(), "run-4"); err == nil {
		t.Fatal("expected an error")
	}
	if runs.finished == nil || runs.finished.Stage != pipeline.StageError || runs.finished.Message == "" {
		t.Fatalf("expected run to be closed with an error: %+v", runs.finished)
	}
	if len(runs.progress) != 1 {
		t.Fatalf("expected one terminal progress report, got %d", len(runs.progress))
	}
	last := runs.progress[0]
	if last.RunID != "run-4" || !last.Stage.Terminal() || last.Level != "error" || last.Message != runs.finished.Message {
		t.Fatalf("unexpected terminal progress %+v", last)
	}
}

func TestProcessUsesPerRunWorkDir(t *testing.T) {
	base := t.TempDir()
	var workDirs []string
	for _, id := range []string{"run-a", "run-b"} {
		src := filepath.Join(t.TempDir(), "call.mp3")
		if err := os.WriteFile(src, []byte("audio"), 0o644); err != nil {
			t.Fatal(err)
		}
		runs := &fakeRuns{run: &models.PipelineRun{
			RunID: id, SourceID: "s-" + id, ProjectID: "p1", Stage: "first_call",
			Source: models.RunSource{LocalPath: src, MimeType: "audio/mpeg", SizeBytes: 5},
		}}
		runner := &fakeRunner{out: &pipeline.Outcome{RunID: id, Stage: pipeline.StageDone}}
		runner.hit = func(*pipeline.CancellationToken, pipeline.Reporter) {
			// what a transcoding split leaves behind
			if err := os.MkdirAll(filepath.Join(runner.in.WorkDir, "split-1"), 0o755); err != nil {
				t.Fatal(err)
			}
		}
		pool, _ := newPool(runs, runner)
		pool.WorkDir = base

		if err := pool.Process(context.Background(), id); err != nil {
			t.Fatal(err)
		}
		if filepath.Dir(runner.in.WorkDir) != base {
			t.Fatalf("work dir %q should live under %q", runner.in.WorkDir, base)
		}
		if _, err := os.Stat(runner.in.WorkDir); !os.IsNotExist(err) {
			t.Fatalf("expected work dir removed, stat err=%v", err)
		}
		workDirs = append(workDirs, runner.in.WorkDir)
	}
	if workDirs[0] == workDirs[1] {
		t.Fatalf("runs share work dir %s", workDirs[0])
	}
}

func TestProcessUnknownRun(t *testing.T) {
	pool, _ := newPool(&fakeRuns{}, &fakeRunner{})
	if err := pool.Process(context.Background(), "nope"); !utils.IsCode(err, utils.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestThrottledPoll(t *testing.T) {
	calls := 0
	poll := throttledPoll(time.Hour, func() bool { calls++; return false })
	for i := 0; i < 5; i++ {
		poll()
	}
	if calls != 1 {
		t.Fatalf("expected one call inside the interval, got %d", calls)
	}

	calls = 0
	poll = throttledPoll(0, func() bool { calls++; return true })
	if !poll() || !poll() || calls != 2 {
		t.Fatalf("expected every call to reach the poll, got %d", calls)
	}
}
