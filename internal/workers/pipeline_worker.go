package workers

import (
	"context"
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/archstudio/intake/internal/analysis"
	"github.com/archstudio/intake/internal/i18n"
	"github.com/archstudio/intake/internal/media"
	"github.com/archstudio/intake/internal/models"
	"github.com/archstudio/intake/internal/pipeline"
	mongorepo "github.com/archstudio/intake/internal/repositories/mongo"
	"github.com/archstudio/intake/internal/services"
)

// Runner executes one pipeline run.
type Runner interface {
	Run(ctx context.Context, in pipeline.Input, token *pipeline.CancellationToken, reporter pipeline.Reporter) (*pipeline.Outcome, error)
}

type PipelineWorkerPool struct {
	Redis      *redis.Client
	NumWorkers int

	Runs       services.RunService
	Checklists services.ChecklistService
	Learnings  services.LearningService
	Segments   mongorepo.SegmentRepository
	Pipeline   Runner

	Language string
	Locale   string
	WorkDir  string
	// CancelCheck throttles the Redis cancel poll.
	CancelCheck time.Duration

	Logger *logrus.Logger

	Stream         string
	Group          string
	ConsumerPrefix string
}

func (p *PipelineWorkerPool) Start(ctx context.Context) error {
	if p.Redis == nil || p.Runs == nil || p.Pipeline == nil {
		return errors.New("PipelineWorkerPool missing dependency: Redis/Runs/Pipeline must be set")
	}
	p.defaults()

	_ = p.Redis.XGroupCreateMkStream(ctx, p.Stream, p.Group, "0").Err() // ignore BUSYGROUP

	for i := 0; i < p.NumWorkers; i++ {
		consumer := p.ConsumerPrefix + "-" + strconv.Itoa(i+1)
		go p.runConsumer(ctx, consumer)
	}
	p.Logger.WithFields(logrus.Fields{"stream": p.Stream, "workers": p.NumWorkers}).Info("pipeline workers started")
	return nil
}

func (p *PipelineWorkerPool) defaults() {
	if p.Stream == "" {
		p.Stream = services.JobStream
	}
	if p.Group == "" {
		p.Group = "pipeline-workers"
	}
	if p.ConsumerPrefix == "" {
		p.ConsumerPrefix = "w"
	}
	if p.NumWorkers <= 0 {
		p.NumWorkers = 2
	}
	if p.CancelCheck <= 0 {
		p.CancelCheck = 2 * time.Second
	}
	if p.Logger == nil {
		p.Logger = logrus.New()
	}
}

func (p *PipelineWorkerPool) runConsumer(ctx context.Context, consumer string) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		// One job at a time per consumer; runs are long.
		res, err := p.Redis.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    p.Group,
			Consumer: consumer,
			Streams:  []string{p.Stream, ">"},
			Count:    1,
			Block:    5 * time.Second,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if ctx.Err() != nil {
				return
			}
			p.Logger.WithError(err).Warn("xreadgroup failed")
			time.Sleep(500 * time.Millisecond)
			continue
		}

		for _, stream := range res {
			for _, msg := range stream.Messages {
				runID, _ := msg.Values["run_id"].(string)
				if runID != "" {
					if err := p.Process(ctx, runID); err != nil {
						p.Logger.WithError(err).WithFields(logrus.Fields{"redis_id": msg.ID, "run_id": runID}).Warn("pipeline job failed")
					}
				}
				_ = p.Redis.XAck(ctx, p.Stream, p.Group, msg.ID).Err()
			}
		}
	}
}

// Process runs the pipeline for a queued run and records its result. The
// returned error covers bookkeeping failures only; the run's own outcome is
// stored on the run document.
func (p *PipelineWorkerPool) Process(ctx context.Context, runID string) error {
	p.defaults()

	run, err := p.Runs.Get(ctx, runID)
	if err != nil {
		return err
	}
	log := p.Logger.WithFields(logrus.Fields{"run_id": run.RunID, "source_id": run.SourceID, "project_id": run.ProjectID})
	defer p.removeStaging(log, run)

	in, err := p.buildInput(ctx, run)
	if err != nil {
		// Nothing ran; close the run so the source lock is released.
		out := &pipeline.Outcome{RunID: run.RunID, Stage: pipeline.StageError, Err: err, Message: i18n.UserMessage(p.Locale, err)}
		// Progress watchers only stop on a terminal stage.
		terminal := pipeline.Progress{RunID: run.RunID, Stage: out.Stage, Message: out.Message, Level: "error", At: time.Now().UTC()}
		if perr := p.Runs.Progress(ctx, terminal); perr != nil {
			log.WithError(perr).Warn("progress update failed")
		}
		if ferr := p.Runs.Finish(ctx, run, out); ferr != nil {
			return errors.Join(err, ferr)
		}
		return err
	}

	token := pipeline.NewCancellationToken(throttledPoll(p.CancelCheck, func() bool {
		return p.Runs.CancelRequested(ctx, run.RunID)
	}))
	reporter := pipeline.ReporterFunc(func(pr pipeline.Progress) {
		if err := p.Runs.Progress(ctx, pr); err != nil {
			log.WithError(err).Warn("progress update failed")
		}
	})

	out, runErr := p.Pipeline.Run(ctx, in, token, reporter)
	if runErr != nil {
		log.WithError(runErr).WithField("stage", out.Stage).Info("run ended without a recording")
	}

	p.writeSegments(ctx, log, out)
	if err := p.Runs.Finish(ctx, run, out); err != nil {
		return err
	}
	return nil
}

func (p *PipelineWorkerPool) buildInput(ctx context.Context, run *models.PipelineRun) (pipeline.Input, error) {
	language := run.Language
	if language == "" {
		language = p.Language
	}
	in := pipeline.Input{
		RunID:        run.RunID,
		SourceID:     run.SourceID,
		ProjectID:    run.ProjectID,
		ProjectStage: run.Stage,
		ProjectType:  run.ProjectType,
		Title:        run.Title,
		Language:     language,
		Locale:       p.Locale,
		WorkDir:      p.runWorkDir(run.RunID),
	}

	src := run.Source
	switch {
	case src.Reanalyze:
		in.AudioURL = src.RemoteURL
		for i, raw := range src.SegmentURLs {
			in.StoredSegments = append(in.StoredSegments, media.Segment{
				Index:     i,
				RemoteURL: raw,
				MimeType:  media.NormalizeMimeType("", urlPath(raw)),
			})
		}
	case src.Live:
		in.Source = media.AudioSource{Live: true, MimeType: src.MimeType, SizeBytes: src.SizeBytes}
		for i, path := range src.SegmentPaths {
			info, err := os.Stat(path)
			if err != nil {
				return in, err
			}
			in.LiveSegments = append(in.LiveSegments, media.Segment{
				Index:     i,
				SizeBytes: info.Size(),
				LocalPath: path,
				MimeType:  media.NormalizeMimeType(src.MimeType, path),
			})
		}
	default:
		in.Source = media.AudioSource{Path: src.LocalPath, SizeBytes: src.SizeBytes, MimeType: src.MimeType}
	}

	if p.Checklists != nil {
		items, err := p.Checklists.Ensure(ctx, run.ProjectID, run.Stage, run.ProjectType)
		if err != nil {
			return in, err
		}
		in.Checklist = items
	}
	if p.Learnings != nil {
		learnings, err := p.Learnings.Recent(ctx, run.Stage, analysis.MaxLearnings)
		if err != nil {
			// Calibration examples are optional.
			p.Logger.WithError(err).WithField("run_id", run.RunID).Warn("failed to load learnings")
		}
		in.Learnings = learnings
	}
	return in, nil
}

func (p *PipelineWorkerPool) writeSegments(ctx context.Context, log *logrus.Entry, out *pipeline.Outcome) {
	if p.Segments == nil || out == nil {
		return
	}
	failed := make(map[int]bool, len(out.FailedSegments))
	for _, idx := range out.FailedSegments {
		failed[idx] = true
	}
	for _, seg := range out.Segments {
		rec := &models.SegmentRecord{
			RunID:              out.RunID,
			SegmentIndex:       seg.Index,
			StartOffsetSeconds: seg.StartOffsetSeconds,
			SizeBytes:          seg.SizeBytes,
			RemoteURL:          seg.RemoteURL,
			UploadStatus:       "done",
			STTStatus:          "done",
		}
		if !seg.Uploaded() {
			rec.UploadStatus = "failed"
		}
		switch {
		case failed[seg.Index]:
			rec.STTStatus = "failed"
		case out.Transcript == "":
			rec.STTStatus = "pending"
		}
		if err := p.Segments.Upsert(ctx, rec); err != nil {
			log.WithError(err).WithField("segment_index", seg.Index).Warn("failed to store segment record")
		}
	}
}

// removeStaging deletes the uploaded or captured files once the run is over.
func (p *PipelineWorkerPool) removeStaging(log *logrus.Entry, run *models.PipelineRun) {
	paths := append([]string{run.Source.LocalPath}, run.Source.SegmentPaths...)
	for _, path := range paths {
		if path == "" {
			continue
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			log.WithError(err).Debug("failed to remove staging file")
		}
	}
	if dir := p.runWorkDir(run.RunID); dir != "" {
		if err := os.RemoveAll(dir); err != nil {
			log.WithError(err).Debug("failed to remove run work dir")
		}
	}
	// Live captures stage into their own directory.
	if run.Source.Live && len(run.Source.SegmentPaths) > 0 {
		_ = os.Remove(filepath.Dir(run.Source.SegmentPaths[0]))
	}
}

// runWorkDir is where a run's transcoded segments go.
func (p *PipelineWorkerPool) runWorkDir(runID string) string {
	if p.WorkDir == "" {
		return ""
	}
	return filepath.Join(p.WorkDir, "run-"+runID)
}

// throttledPoll calls fn at most once per interval and reports false in
// between.
func throttledPoll(interval time.Duration, fn func() bool) pipeline.CancelPoll {
	var (
		mu   sync.Mutex
		last time.Time
	)
	return func() bool {
		mu.Lock()
		defer mu.Unlock()
		if !last.IsZero() && time.Since(last) < interval {
			return false
		}
		last = time.Now()
		return fn()
	}
}

func urlPath(raw string) string {
	if u, err := url.Parse(raw); err == nil {
		return u.Path
	}
	return raw
}
