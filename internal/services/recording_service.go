package services

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/datatypes"

	"github.com/archstudio/intake/internal/models"
	"github.com/archstudio/intake/internal/pipeline"
	pgrepo "github.com/archstudio/intake/internal/repositories/postgres"
	"github.com/archstudio/intake/internal/utils"
)

// RecordingService persists pipeline results and serves stored recordings.
type RecordingService interface {
	pipeline.Persistence
	Get(ctx context.Context, id string) (*models.Recording, error)
	ListByProject(ctx context.Context, projectID, stage string) ([]models.Recording, error)
}

type recordingService struct {
	recordings pgrepo.RecordingRepo
	documents  pgrepo.DocumentRepo
	checklists ChecklistService
}

func NewRecordingService(recordings pgrepo.RecordingRepo, documents pgrepo.DocumentRepo, checklists ChecklistService) RecordingService {
	return &recordingService{recordings: recordings, documents: documents, checklists: checklists}
}

func (s *recordingService) CreateRecording(ctx context.Context, in pipeline.RecordingInput) (*models.Recording, error) {
	const op = "RecordingService.CreateRecording"

	if in.ProjectID == "" || in.AudioURL == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "project_id and audio_url are required", nil)
	}

	rec := &models.Recording{
		ID:            uuid.NewString(),
		ProjectID:     in.ProjectID,
		Stage:         in.ProjectStage,
		RunID:         in.RunID,
		Title:         in.Title,
		AudioURL:      in.AudioURL,
		SegmentURLs:   pq.StringArray(in.SegmentURLs),
		Transcription: in.Transcription,
		Status:        in.Status,
		CreatedAt:     time.Now().UTC(),
	}
	if in.Analysis != nil {
		b, err := json.Marshal(in.Analysis)
		if err != nil {
			return nil, utils.E(utils.CodeInternal, op, "failed to encode analysis", err)
		}
		rec.Analysis = datatypes.JSON(b)
	}
	if err := s.recordings.Insert(ctx, rec); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to create recording", err)
	}
	return rec, nil
}

func (s *recordingService) CreateDocument(ctx context.Context, in pipeline.DocumentInput) (*models.Document, error) {
	const op = "RecordingService.CreateDocument"

	if in.RecordingID == "" || in.FileURL == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "recording_id and file_url are required", nil)
	}
	doc := &models.Document{
		ID:          uuid.NewString(),
		ProjectID:   in.ProjectID,
		Title:       in.Title,
		FileURL:     in.FileURL,
		RecordingID: in.RecordingID,
		Tags:        pq.StringArray(in.Tags),
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.documents.Insert(ctx, doc); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to create document", err)
	}
	return doc, nil
}

func (s *recordingService) UpdateChecklist(ctx context.Context, ownerID string, entries []models.ChecklistAnalysisEntry) ([]models.ChecklistItem, error) {
	return s.checklists.MergeAnalysis(ctx, ownerID, entries)
}

func (s *recordingService) Get(ctx context.Context, id string) (*models.Recording, error) {
	const op = "RecordingService.Get"

	if id == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "recording_id is required", nil)
	}
	rec, err := s.recordings.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeNotFound, op, "recording not found", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to get recording", err)
	}
	return rec, nil
}

func (s *recordingService) ListByProject(ctx context.Context, projectID, stage string) ([]models.Recording, error) {
	const op = "RecordingService.ListByProject"

	rows, err := s.recordings.ListByProject(ctx, projectID, stage, 50)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to list recordings", err)
	}
	return rows, nil
}
