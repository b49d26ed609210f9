package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/archstudio/intake/internal/models"
	pgrepo "github.com/archstudio/intake/internal/repositories/postgres"
	"github.com/archstudio/intake/internal/utils"
)

type LearningService interface {
	Create(ctx context.Context, l models.Learning) (*models.Learning, error)
	Recent(ctx context.Context, stage string, n int) ([]models.Learning, error)
}

type learningService struct {
	repo pgrepo.LearningRepo
}

func NewLearningService(repo pgrepo.LearningRepo) LearningService {
	return &learningService{repo: repo}
}

func (s *learningService) Create(ctx context.Context, l models.Learning) (*models.Learning, error) {
	const op = "LearningService.Create"

	l.Field = strings.TrimSpace(l.Field)
	l.Corrected = strings.TrimSpace(l.Corrected)
	if l.Field == "" || l.Corrected == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "field and corrected are required", nil)
	}
	if l.Stage != "" && !ValidProjectStage(l.Stage) {
		return nil, utils.E(utils.CodeInvalidArgument, op, "unknown stage", nil)
	}
	l.ID = uuid.NewString()
	l.CreatedAt = time.Now().UTC()
	if err := s.repo.Insert(ctx, &l); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to store learning", err)
	}
	return &l, nil
}

func (s *learningService) Recent(ctx context.Context, stage string, n int) ([]models.Learning, error) {
	const op = "LearningService.Recent"

	rows, err := s.repo.Recent(ctx, stage, n)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to list learnings", err)
	}
	return rows, nil
}
