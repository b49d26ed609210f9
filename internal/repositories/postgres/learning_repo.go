package postgres

import (
	"context"

	"github.com/archstudio/intake/internal/models"
	"gorm.io/gorm"
)

type LearningRepo interface {
	Insert(ctx context.Context, l *models.Learning) error
	// Recent returns the newest n learnings of a stage, oldest first.
	Recent(ctx context.Context, stage string, n int) ([]models.Learning, error)
}

type learningRepo struct {
	db *gorm.DB
}

func NewLearningRepo(db *gorm.DB) LearningRepo {
	return &learningRepo{db: db}
}

func (r *learningRepo) Insert(ctx context.Context, l *models.Learning) error {
	return r.db.WithContext(ctx).Create(l).Error
}

func (r *learningRepo) Recent(ctx context.Context, stage string, n int) ([]models.Learning, error) {
	if n <= 0 {
		n = 20
	}
	q := r.db.WithContext(ctx)
	if stage != "" {
		q = q.Where("stage = ?", stage)
	}
	var rows []models.Learning
	if err := q.Order("created_at DESC").Limit(n).Find(&rows).Error; err != nil {
		return nil, err
	}
	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}
	return rows, nil
}
