package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/archstudio/intake/internal/models"
	"github.com/archstudio/intake/internal/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ChecklistMutator computes the new items from the stored ones.
type ChecklistMutator func(items []models.ChecklistItem) ([]models.ChecklistItem, error)

type ChecklistRepo interface {
	Get(ctx context.Context, ownerID string) (*models.ProjectChecklist, error)
	// Create stores c unless a checklist already exists for the owner.
	Create(ctx context.Context, c *models.ProjectChecklist) error
	// Update applies fn to the stored items while holding the row lock.
	Update(ctx context.Context, ownerID string, fn ChecklistMutator) (*models.ProjectChecklist, error)
}

type checklistRepo struct {
	db *gorm.DB
}

func NewChecklistRepo(db *gorm.DB) ChecklistRepo {
	return &checklistRepo{db: db}
}

func (r *checklistRepo) Get(ctx context.Context, ownerID string) (*models.ProjectChecklist, error) {
	var row models.ProjectChecklist
	err := r.db.WithContext(ctx).Where("owner_id = ?", ownerID).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrNotFound
	}
	return &row, err
}

func (r *checklistRepo) Create(ctx context.Context, c *models.ProjectChecklist) error {
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = time.Now().UTC()
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "owner_id"}}, DoNothing: true}).
		Create(c).Error
}

func (r *checklistRepo) Update(ctx context.Context, ownerID string, fn ChecklistMutator) (*models.ProjectChecklist, error) {
	var out models.ProjectChecklist
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("owner_id = ?", ownerID).
			Take(&out).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.ErrNotFound
		}
		if err != nil {
			return err
		}

		items, err := out.DecodeItems()
		if err != nil {
			return err
		}
		next, err := fn(items)
		if err != nil {
			return err
		}
		if err := out.EncodeItems(next); err != nil {
			return err
		}
		out.UpdatedAt = time.Now().UTC()
		return tx.Model(&models.ProjectChecklist{}).
			Where("owner_id = ?", ownerID).
			Updates(map[string]any{"items": out.Items, "updated_at": out.UpdatedAt}).Error
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}
