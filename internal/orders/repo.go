package orders

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sipwell/storefront-backend/pkg/db/models"
)

// Repository encapsulates order persistence. Orders are written once, inside
// the finalization transaction, and never updated by this subsystem apart
// from fulfilment status changes that live elsewhere.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs an order repository bound to the provided gorm DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// CreateTx inserts the order and its line items inside the caller's
// transaction.
func (r *Repository) CreateTx(tx *gorm.DB, order *models.Order) error {
	return tx.Create(order).Error
}

// FindByID loads an order with its line items.
func (r *Repository) FindByID(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).
		Preload("LineItems").
		First(&order, "id = ?", orderID).
		Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// ListForOwner returns an identity's orders newest first.
func (r *Repository) ListForOwner(ctx context.Context, ownerKey string, limit int) ([]models.Order, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var out []models.Order
	if err := r.db.WithContext(ctx).
		Preload("LineItems").
		Where("owner_key = ?", ownerKey).
		Order("created_at DESC").
		Limit(limit).
		Find(&out).
		Error; err != nil {
		return nil, err
	}
	return out, nil
}

// DB exposes the underlying handle for transaction composition.
func (r *Repository) DB() *gorm.DB {
	return r.db
}
