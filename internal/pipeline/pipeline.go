// Package pipeline drives one recording through split, upload, transcription,
// analysis and checklist reconciliation, reporting progress at every step.
package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/archstudio/intake/internal/analysis"
	"github.com/archstudio/intake/internal/i18n"
	"github.com/archstudio/intake/internal/logger"
	"github.com/archstudio/intake/internal/media"
	"github.com/archstudio/intake/internal/models"
	"github.com/archstudio/intake/internal/providers/stt"
	"github.com/archstudio/intake/internal/storage"
	"github.com/archstudio/intake/internal/utils"
)

type Splitter interface {
	Split(ctx context.Context, src media.AudioSource, opts media.SplitOptions) ([]media.Segment, error)
}

type Analyzer interface {
	Analyze(ctx context.Context, in analysis.Input) (*models.AnalysisResult, error)
}

type RecordingInput struct {
	RunID         string
	ProjectID     string
	ProjectStage  string
	Title         string
	AudioURL      string
	SegmentURLs   []string
	Transcription string
	Analysis      *models.AnalysisResult
	Status        models.RecordingStatus
}

type DocumentInput struct {
	ProjectID   string
	Title       string
	FileURL     string
	RecordingID string
	Tags        []string
}

// Persistence stores the results of a finished run. UpdateChecklist merges the
// entries into the stored checklist and returns the result.
type Persistence interface {
	CreateRecording(ctx context.Context, in RecordingInput) (*models.Recording, error)
	CreateDocument(ctx context.Context, in DocumentInput) (*models.Document, error)
	UpdateChecklist(ctx context.Context, ownerID string, entries []models.ChecklistAnalysisEntry) ([]models.ChecklistItem, error)
}

type Deps struct {
	Splitter    Splitter
	Uploader    storage.Uploader
	Transcriber stt.Provider
	Analyzer    Analyzer
	// Persistence may be nil (dry runs).
	Persistence Persistence
	Log         logrus.FieldLogger
	EventLimit  int
}

type Pipeline struct {
	splitter    Splitter
	uploader    storage.Uploader
	transcriber stt.Provider
	analyzer    Analyzer
	persistence Persistence
	log         logrus.FieldLogger
	eventLimit  int
}

func New(d Deps) *Pipeline {
	log := d.Log
	if log == nil {
		log = logger.Discard()
	}
	return &Pipeline{
		splitter:    d.Splitter,
		uploader:    d.Uploader,
		transcriber: d.Transcriber,
		analyzer:    d.Analyzer,
		persistence: d.Persistence,
		log:         log,
		eventLimit:  d.EventLimit,
	}
}

// Input describes one run.
type Input struct {
	RunID        string
	SourceID     string
	ProjectID    string
	ProjectStage string
	ProjectType  string
	Title        string
	Tags         []string
	Language     string // speech language, e.g. he-IL
	Locale       string // message locale

	Source       media.AudioSource
	LiveSegments []media.Segment
	// StoredSegments re-analyzes a recording from already uploaded segments,
	// skipping split and upload.
	StoredSegments []media.Segment
	// AudioURL of the stored original, when one exists.
	AudioURL string
	// WorkDir receives transcoded segments; empty uses the splitter default.
	WorkDir string

	Checklist []models.ChecklistItem
	Learnings []models.Learning
}

func (in Input) reanalysis() bool {
	return len(in.StoredSegments) > 0 && in.Source.Path == "" && len(in.LiveSegments) == 0
}

// Outcome is what a run produced, including partial results of failed runs.
type Outcome struct {
	RunID          string
	Stage          Stage
	Segments       []media.Segment
	FailedSegments []int
	Transcript     string
	AudioURL       string
	Analysis       *models.AnalysisResult
	Checklist      []models.ChecklistItem
	ChangedItems   []string
	Recording      *models.Recording
	Document       *models.Document
	PersistErrors  []string
	Message        string
	Events         []Progress
	Err            error
}

// run carries the state of one Run call.
type run struct {
	in       Input
	machine  *Machine
	token    *CancellationToken
	reporter Reporter
	events   *EventLog
	log      *logrus.Entry
	out      *Outcome
}

// Run executes the pipeline. The returned outcome is never nil; err is set
// when the run ends in error or cancelled.
func (p *Pipeline) Run(ctx context.Context, in Input, token *CancellationToken, reporter Reporter) (*Outcome, error) {
	if reporter == nil {
		reporter = nopReporter{}
	}
	events := NewEventLog(p.eventLimit)
	r := &run{
		in:       in,
		machine:  NewMachine(),
		token:    token,
		reporter: Reporters{events, reporter},
		events:   events,
		log:      logger.ForRun(p.log, in.RunID, in.SourceID),
		out:      &Outcome{RunID: in.RunID, Stage: StageIdle},
	}
	defer func() { r.out.Events = events.Events() }()

	start := time.Now()
	err := p.drive(ctx, r)
	r.out.Stage = r.machine.Stage()
	if err != nil {
		r.out.Err = err
		r.out.Message = i18n.UserMessage(in.Locale, err)
		return r.out, err
	}
	r.out.Message = i18n.T(in.Locale, i18n.KeyStageDone)
	r.log.WithFields(logrus.Fields{
		"duration_ms":     time.Since(start).Milliseconds(),
		"segments":        len(r.out.Segments),
		"failed_segments": len(r.out.FailedSegments),
		"changed_items":   len(r.out.ChangedItems),
	}).Info("pipeline run finished")
	return r.out, nil
}

func (p *Pipeline) drive(ctx context.Context, r *run) error {
	var segments []media.Segment
	defer func() { cleanupSegments(r, segments) }()

	if r.in.reanalysis() {
		if err := r.enter(StageTranscribing, i18n.T(r.in.Locale, i18n.KeyStageReanalyze)); err != nil {
			return err
		}
		segments = append(segments, r.in.StoredSegments...)
		r.out.AudioURL = r.in.AudioURL
	} else {
		if err := r.enter(StageSplitting, ""); err != nil {
			return err
		}
		var err error
		segments, err = p.split(ctx, r)
		if err != nil {
			return r.fail(err)
		}

		if err := r.enter(StageUploading, ""); err != nil {
			return err
		}
		if err := p.upload(ctx, r, segments); err != nil {
			return r.fail(err)
		}
		r.out.AudioURL = p.audioURL(ctx, r, segments)

		if err := r.enter(StageTranscribing, ""); err != nil {
			return err
		}
	}
	r.out.Segments = segments

	transcript, err := p.transcribe(ctx, r, segments)
	if err != nil {
		return r.fail(err)
	}
	r.out.Transcript = transcript

	if err := r.enter(StageAnalyzing, i18n.T(r.in.Locale, i18n.KeyStageAnalyzing)); err != nil {
		return err
	}
	result, err := p.analyze(ctx, r)
	if err != nil {
		// The transcript is kept even when the analysis is unusable.
		p.persistRecording(ctx, r, segments, nil)
		return r.fail(err)
	}
	r.out.Analysis = result

	p.persist(ctx, r, segments)

	return r.enter(StageDone, i18n.T(r.in.Locale, i18n.KeyStageDone))
}

// enter checks for cancellation, then moves the machine to stage and reports it.
func (r *run) enter(stage Stage, message string) error {
	if r.token.Cancelled() {
		return r.cancel()
	}
	if err := r.machine.Transition(stage); err != nil {
		return err
	}
	r.report(Progress{Stage: stage, Message: message, Level: "info"})
	return nil
}

func (r *run) report(p Progress) {
	p.RunID = r.in.RunID
	if p.Stage == "" {
		p.Stage = r.machine.Stage()
	}
	if p.Level == "" {
		p.Level = "info"
	}
	if p.At.IsZero() {
		p.At = time.Now().UTC()
	}
	r.reporter.Report(p)
}

func (r *run) cancel() error {
	err := utils.E(utils.CodeCancelled, "Pipeline.Run", "cancelled in "+string(r.machine.Stage()), utils.ErrCancelled)
	if terr := r.machine.Transition(StageCancelled); terr != nil {
		return terr
	}
	r.log.Info("pipeline run cancelled")
	r.report(Progress{Stage: StageCancelled, Message: i18n.UserMessage(r.in.Locale, err), Level: "warn"})
	return err
}

// fail moves the run to error, or to cancelled when err is a cancellation.
func (r *run) fail(err error) error {
	if errors.Is(err, utils.ErrCancelled) {
		return r.cancel()
	}
	stage := r.machine.Stage()
	if terr := r.machine.Transition(StageError); terr != nil {
		return errors.Join(err, terr)
	}
	r.log.WithError(err).WithField("stage", stage).Error("pipeline run failed")
	r.report(Progress{Stage: StageError, Message: i18n.UserMessage(r.in.Locale, err), Level: "error"})
	return err
}

// cleanupSegments removes local segment files the pipeline produced. The
// original source file belongs to the caller.
func cleanupSegments(r *run, segments []media.Segment) {
	dirs := make(map[string]bool)
	for _, seg := range segments {
		if seg.LocalPath == "" || seg.LocalPath == r.in.Source.Path {
			continue
		}
		if err := os.Remove(seg.LocalPath); err != nil && !os.IsNotExist(err) {
			r.log.WithError(err).WithField("segment_index", seg.Index).Debug("failed to remove segment file")
		}
		dirs[filepath.Dir(seg.LocalPath)] = true
	}
	// Split directories are per run; drop them once empty.
	for dir := range dirs {
		_ = os.Remove(dir)
	}
}
