package postgres

import (
	"context"
	"errors"

	"github.com/archstudio/intake/internal/models"
	"github.com/archstudio/intake/internal/utils"
	"gorm.io/gorm"
)

type RecordingRepo interface {
	Insert(ctx context.Context, rec *models.Recording) error
	GetByID(ctx context.Context, id string) (*models.Recording, error)
	ListByProject(ctx context.Context, projectID, stage string, limit int) ([]models.Recording, error)
}

type recordingRepo struct {
	db *gorm.DB
}

func NewRecordingRepo(db *gorm.DB) RecordingRepo {
	return &recordingRepo{db: db}
}

func (r *recordingRepo) Insert(ctx context.Context, rec *models.Recording) error {
	return r.db.WithContext(ctx).Create(rec).Error
}

func (r *recordingRepo) GetByID(ctx context.Context, id string) (*models.Recording, error) {
	var row models.Recording
	err := r.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrNotFound
	}
	return &row, err
}

func (r *recordingRepo) ListByProject(ctx context.Context, projectID, stage string, limit int) ([]models.Recording, error) {
	if limit <= 0 {
		limit = 50
	}
	q := r.db.WithContext(ctx).Where("project_id = ?", projectID)
	if stage != "" {
		q = q.Where("stage = ?", stage)
	}
	var rows []models.Recording
	err := q.Order("created_at DESC").Limit(limit).Find(&rows).Error
	return rows, err
}
