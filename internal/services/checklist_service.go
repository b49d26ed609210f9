package services

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/archstudio/intake/internal/cache"
	"github.com/archstudio/intake/internal/checklist"
	"github.com/archstudio/intake/internal/models"
	pgrepo "github.com/archstudio/intake/internal/repositories/postgres"
	"github.com/archstudio/intake/internal/utils"
)

const checklistCacheTTL = 10 * time.Minute

func checklistCacheKey(ownerID string) string { return cache.Key("checklist", ownerID) }

type ChecklistService interface {
	// Ensure returns the stored checklist, seeding it from the template of
	// projectType when the stage has none yet.
	Ensure(ctx context.Context, projectID, stage, projectType string) ([]models.ChecklistItem, error)
	Get(ctx context.Context, projectID, stage string) ([]models.ChecklistItem, error)
	// MergeAnalysis reconciles entries against the freshest stored checklist.
	MergeAnalysis(ctx context.Context, ownerID string, entries []models.ChecklistAnalysisEntry) ([]models.ChecklistItem, error)
	EditItem(ctx context.Context, projectID, stage string, edit checklist.Edit) ([]models.ChecklistItem, error)
}

type checklistService struct {
	repo      pgrepo.ChecklistRepo
	templates checklist.Templates
	cache     cache.Cache
	log       logrus.FieldLogger
}

func NewChecklistService(repo pgrepo.ChecklistRepo, templates checklist.Templates, c cache.Cache, log logrus.FieldLogger) ChecklistService {
	if log == nil {
		log = logrus.New()
	}
	if c == nil {
		c = cache.Noop{}
	}
	return &checklistService{repo: repo, templates: templates, cache: c, log: log}
}

func (s *checklistService) Ensure(ctx context.Context, projectID, stage, projectType string) ([]models.ChecklistItem, error) {
	const op = "ChecklistService.Ensure"

	items, err := s.Get(ctx, projectID, stage)
	if err == nil {
		return items, nil
	}
	if !utils.IsCode(err, utils.CodeNotFound) {
		return nil, err
	}

	tpl, ok := s.templates.Lookup(projectType, stage)
	if !ok {
		return nil, utils.E(utils.CodeNotFound, op, "no checklist template for stage", utils.ErrNotFound)
	}
	row := &models.ProjectChecklist{OwnerID: models.ChecklistOwnerID(projectID, stage), ProjectType: tpl.ProjectType}
	if err := row.EncodeItems(checklist.FromTemplate(tpl)); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to encode checklist", err)
	}
	if err := s.repo.Create(ctx, row); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to create checklist", err)
	}
	// Another request may have created it first; read back the stored row.
	return s.Get(ctx, projectID, stage)
}

func (s *checklistService) Get(ctx context.Context, projectID, stage string) ([]models.ChecklistItem, error) {
	const op = "ChecklistService.Get"

	if projectID == "" || stage == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "project_id and stage are required", nil)
	}
	owner := models.ChecklistOwnerID(projectID, stage)

	var cached []models.ChecklistItem
	if s.cache != nil {
		if hit, err := s.cache.GetJSON(ctx, checklistCacheKey(owner), &cached); err == nil && hit {
			return cached, nil
		}
	}

	row, err := s.repo.Get(ctx, owner)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeNotFound, op, "checklist not found", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to get checklist", err)
	}
	items, err := row.DecodeItems()
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to decode checklist", err)
	}
	s.store(ctx, owner, items)
	return items, nil
}

func (s *checklistService) MergeAnalysis(ctx context.Context, ownerID string, entries []models.ChecklistAnalysisEntry) ([]models.ChecklistItem, error) {
	const op = "ChecklistService.MergeAnalysis"

	var changed []string
	row, err := s.repo.Update(ctx, ownerID, func(items []models.ChecklistItem) ([]models.ChecklistItem, error) {
		next := checklist.Reconcile(items, entries)
		changed = checklist.Changed(items, next)
		return next, nil
	})
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeNotFound, op, "checklist not found", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to update checklist", err)
	}
	items, err := row.DecodeItems()
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to decode checklist", err)
	}
	s.invalidate(ctx, ownerID)
	s.log.WithFields(logrus.Fields{"owner_id": ownerID, "changed": changed}).Info("checklist reconciled")
	return items, nil
}

func (s *checklistService) EditItem(ctx context.Context, projectID, stage string, edit checklist.Edit) ([]models.ChecklistItem, error) {
	const op = "ChecklistService.EditItem"

	if edit.ID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "item id is required", nil)
	}
	if edit.Checked == nil && edit.Notes == nil {
		return nil, utils.E(utils.CodeInvalidArgument, op, "nothing to change", nil)
	}
	owner := models.ChecklistOwnerID(projectID, stage)
	row, err := s.repo.Update(ctx, owner, func(items []models.ChecklistItem) ([]models.ChecklistItem, error) {
		return checklist.ApplyManual(items, edit)
	})
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeNotFound, op, "checklist or item not found", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to edit checklist", err)
	}
	items, err := row.DecodeItems()
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to decode checklist", err)
	}
	s.invalidate(ctx, owner)
	return items, nil
}

func (s *checklistService) store(ctx context.Context, owner string, items []models.ChecklistItem) {
	if s.cache == nil {
		return
	}
	if err := s.cache.SetJSON(ctx, checklistCacheKey(owner), items, checklistCacheTTL); err != nil {
		s.log.WithError(err).Debug("checklist cache set failed")
	}
}

func (s *checklistService) invalidate(ctx context.Context, owner string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, checklistCacheKey(owner)); err != nil {
		s.log.WithError(err).Warn("checklist cache invalidation failed")
	}
}
