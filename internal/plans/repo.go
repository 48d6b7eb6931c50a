package plans

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sipwell/storefront-backend/pkg/db/models"
)

// Repository encapsulates subscription plan reference data.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a plan repository bound to the provided gorm DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// FindByID loads a plan with its requirements, active or not.
func (r *Repository) FindByID(ctx context.Context, planID uuid.UUID) (*models.SubscriptionPlan, error) {
	var plan models.SubscriptionPlan
	if err := r.db.WithContext(ctx).
		Preload("Requirements").
		First(&plan, "id = ?", planID).
		Error; err != nil {
		return nil, err
	}
	return &plan, nil
}

// FindActiveByID loads an active plan with its requirements. Inactive plans
// surface as gorm.ErrRecordNotFound so callers treat them as nonexistent.
func (r *Repository) FindActiveByID(ctx context.Context, planID uuid.UUID) (*models.SubscriptionPlan, error) {
	var plan models.SubscriptionPlan
	if err := r.db.WithContext(ctx).
		Preload("Requirements").
		Where("is_active = ?", true).
		First(&plan, "id = ?", planID).
		Error; err != nil {
		return nil, err
	}
	return &plan, nil
}

// ListActive returns every selectable plan ordered by name.
func (r *Repository) ListActive(ctx context.Context) ([]models.SubscriptionPlan, error) {
	var plans []models.SubscriptionPlan
	if err := r.db.WithContext(ctx).
		Preload("Requirements").
		Where("is_active = ?", true).
		Order("name ASC").
		Find(&plans).
		Error; err != nil {
		return nil, err
	}
	return plans, nil
}
