package postgres

import (
	"context"

	"github.com/archstudio/intake/internal/models"
	"gorm.io/gorm"
)

type DocumentRepo interface {
	Insert(ctx context.Context, doc *models.Document) error
	ListByRecording(ctx context.Context, recordingID string) ([]models.Document, error)
}

type documentRepo struct {
	db *gorm.DB
}

func NewDocumentRepo(db *gorm.DB) DocumentRepo {
	return &documentRepo{db: db}
}

func (r *documentRepo) Insert(ctx context.Context, doc *models.Document) error {
	return r.db.WithContext(ctx).Create(doc).Error
}

func (r *documentRepo) ListByRecording(ctx context.Context, recordingID string) ([]models.Document, error) {
	var rows []models.Document
	err := r.db.WithContext(ctx).
		Where("recording_id = ?", recordingID).
		Order("created_at ASC").
		Find(&rows).Error
	return rows, err
}
