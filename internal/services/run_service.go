package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/archstudio/intake/internal/models"
	"github.com/archstudio/intake/internal/pipeline"
	mongorepo "github.com/archstudio/intake/internal/repositories/mongo"
	"github.com/archstudio/intake/internal/utils"
)

// StartRunRequest describes the audio to ingest for one project stage.
type StartRunRequest struct {
	ProjectID string
	Stage     string
	UserID    string
	Title     string
	Language  string

	// ProjectType selects the checklist template; empty uses the default.
	ProjectType string

	// SourceID identifies the audio; at most one run per source is active.
	SourceID string
	Source   models.RunSource
}

type RunService interface {
	Start(ctx context.Context, req StartRunRequest) (*models.PipelineRun, error)
	Get(ctx context.Context, runID string) (*models.PipelineRun, error)
	Cancel(ctx context.Context, runID string) error
	CancelRequested(ctx context.Context, runID string) bool
	Progress(ctx context.Context, p pipeline.Progress) error
	Finish(ctx context.Context, run *models.PipelineRun, out *pipeline.Outcome) error
}

type runService struct {
	runs    mongorepo.RunRepository
	queue   RunQueue
	lockTTL time.Duration
}

func NewRunService(runs mongorepo.RunRepository, queue RunQueue, lockTTL time.Duration) RunService {
	if lockTTL <= 0 {
		lockTTL = 2 * time.Hour
	}
	return &runService{runs: runs, queue: queue, lockTTL: lockTTL}
}

var validStages = map[string]bool{"first_call": true, "first_meeting": true}

func ValidProjectStage(stage string) bool { return validStages[stage] }

func (s *runService) Start(ctx context.Context, req StartRunRequest) (*models.PipelineRun, error) {
	const op = "RunService.Start"

	if req.ProjectID == "" || req.SourceID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "project_id and source are required", nil)
	}
	if !ValidProjectStage(req.Stage) {
		return nil, utils.E(utils.CodeInvalidArgument, op, "stage must be first_call or first_meeting", nil)
	}
	if req.Source.LocalPath == "" && len(req.Source.SegmentPaths) == 0 && len(req.Source.SegmentURLs) == 0 {
		return nil, utils.E(utils.CodeInvalidArgument, op, "no audio to process", nil)
	}

	runID := uuid.NewString()
	ok, err := s.queue.Lock(ctx, req.SourceID, runID, s.lockTTL)
	if err != nil {
		return nil, utils.E(utils.CodeUnavailable, op, "failed to lock source", err)
	}
	if !ok {
		return nil, utils.E(utils.CodeConflict, op, "source already processing", utils.ErrRunActive)
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = req.Source.FileName
	}
	run := &models.PipelineRun{
		RunID:         runID,
		SourceID:      req.SourceID,
		ProjectID:     req.ProjectID,
		Stage:         req.Stage,
		UserID:        req.UserID,
		ProjectType:   req.ProjectType,
		Title:         title,
		Language:      req.Language,
		Source:        req.Source,
		PipelineStage: string(pipeline.StageIdle),
	}
	if err := s.runs.Create(ctx, run); err != nil {
		_ = s.queue.Unlock(ctx, req.SourceID, runID)
		return nil, utils.E(utils.CodeInternal, op, "failed to create run", err)
	}
	if err := s.queue.Enqueue(ctx, runID); err != nil {
		_ = s.queue.Unlock(ctx, req.SourceID, runID)
		_ = s.runs.Finish(ctx, runID, string(pipeline.StageError), "failed to enqueue", string(utils.CodeUnavailable), "")
		return nil, utils.E(utils.CodeUnavailable, op, "failed to enqueue run", err)
	}
	return run, nil
}

func (s *runService) Get(ctx context.Context, runID string) (*models.PipelineRun, error) {
	const op = "RunService.Get"

	if runID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "run_id is required", nil)
	}
	run, err := s.runs.GetByRunID(ctx, runID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeNotFound, op, "run not found", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to get run", err)
	}
	return run, nil
}

func (s *runService) Cancel(ctx context.Context, runID string) error {
	const op = "RunService.Cancel"

	run, err := s.Get(ctx, runID)
	if err != nil {
		return err
	}
	if pipeline.Stage(run.PipelineStage).Terminal() {
		return utils.E(utils.CodeFailedPrecondition, op, "run already finished", nil)
	}
	if err := s.queue.RequestCancel(ctx, runID, s.lockTTL); err != nil {
		return utils.E(utils.CodeUnavailable, op, "failed to request cancellation", err)
	}
	return nil
}

// CancelRequested treats a failing poll as "not cancelled".
func (s *runService) CancelRequested(ctx context.Context, runID string) bool {
	ok, err := s.queue.CancelRequested(ctx, runID)
	return err == nil && ok
}

func (s *runService) Progress(ctx context.Context, p pipeline.Progress) error {
	const op = "RunService.Progress"

	payload, err := json.Marshal(p)
	if err != nil {
		return utils.E(utils.CodeInternal, op, "failed to encode progress", err)
	}
	pubErr := s.queue.Publish(ctx, p.RunID, payload)

	event := models.RunEvent{At: p.At, Stage: string(p.Stage), Level: p.Level, Message: p.Message}
	progress := models.RunProgress{Current: p.Current, Total: p.Total, Percent: p.Percent}
	if err := s.runs.SetProgress(ctx, p.RunID, string(p.Stage), progress, event); err != nil {
		return utils.E(utils.CodeInternal, op, "failed to store progress", err)
	}
	if pubErr != nil {
		return utils.E(utils.CodeUnavailable, op, "failed to publish progress", pubErr)
	}
	return nil
}

func (s *runService) Finish(ctx context.Context, run *models.PipelineRun, out *pipeline.Outcome) error {
	const op = "RunService.Finish"

	defer func() { _ = s.queue.Unlock(ctx, run.SourceID, run.RunID) }()

	var code, recordingID string
	if out.Err != nil {
		code = string(utils.CodeOf(out.Err))
	}
	if out.Recording != nil {
		recordingID = out.Recording.ID
	}
	if err := s.runs.Finish(ctx, run.RunID, string(out.Stage), out.Message, code, recordingID); err != nil {
		return utils.E(utils.CodeInternal, op, "failed to finish run", err)
	}
	return nil
}
