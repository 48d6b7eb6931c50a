package cart

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sipwell/storefront-backend/pkg/db/models"
	"github.com/sipwell/storefront-backend/pkg/enums"
	"github.com/sipwell/storefront-backend/pkg/types"
)

// Repository encapsulates cart persistence. All reads return the cart with
// its lines preloaded; the priced snapshot columns are written only through
// SaveBreakdown so totals always come from the engine.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a cart repository bound to the provided gorm DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// FindActiveByOwner loads the single active cart for an identity.
func (r *Repository) FindActiveByOwner(ctx context.Context, ownerKey string) (*models.CartRecord, error) {
	var record models.CartRecord
	if err := r.db.WithContext(ctx).
		Preload("Lines", func(q *gorm.DB) *gorm.DB { return q.Order("created_at ASC, id ASC") }).
		Where("owner_key = ? AND status = ?", ownerKey, enums.CartStatusActive).
		First(&record).
		Error; err != nil {
		return nil, err
	}
	return &record, nil
}

// FindOrCreateActive returns the active cart, creating an empty one when the
// identity has none yet.
func (r *Repository) FindOrCreateActive(ctx context.Context, ownerKey string) (*models.CartRecord, error) {
	record, err := r.FindActiveByOwner(ctx, ownerKey)
	if err == nil {
		return record, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	fresh := &models.CartRecord{
		ID:       uuid.New(),
		OwnerKey: ownerKey,
		Status:   enums.CartStatusActive,
		Currency: enums.CurrencyINR,
	}
	if err := r.db.WithContext(ctx).Create(fresh).Error; err != nil {
		return nil, err
	}
	return fresh, nil
}

// FindByID loads a cart by primary key with lines.
func (r *Repository) FindByID(ctx context.Context, cartID uuid.UUID) (*models.CartRecord, error) {
	var record models.CartRecord
	if err := r.db.WithContext(ctx).
		Preload("Lines", func(q *gorm.DB) *gorm.DB { return q.Order("created_at ASC, id ASC") }).
		First(&record, "id = ?", cartID).
		Error; err != nil {
		return nil, err
	}
	return &record, nil
}

// UpsertLine inserts a line or, when the product already sits in the cart,
// adds the quantity onto the existing line.
func (r *Repository) UpsertLine(ctx context.Context, cartID uuid.UUID, line models.CartLine) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.CartLine
		err := tx.Where("cart_id = ? AND product_id = ?", cartID, line.ProductID).
			First(&existing).Error
		if err == nil {
			return tx.Model(&existing).
				Update("quantity", existing.Quantity+line.Quantity).
				Error
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		line.ID = uuid.New()
		line.CartID = cartID
		return tx.Create(&line).Error
	})
}

// SetLineQuantity overwrites the quantity on an existing line. A missing
// line surfaces as gorm.ErrRecordNotFound.
func (r *Repository) SetLineQuantity(ctx context.Context, cartID, productID uuid.UUID, quantity int) error {
	result := r.db.WithContext(ctx).
		Model(&models.CartLine{}).
		Where("cart_id = ? AND product_id = ?", cartID, productID).
		Update("quantity", quantity)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// DeleteLine removes one product's line from the cart.
func (r *Repository) DeleteLine(ctx context.Context, cartID, productID uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Where("cart_id = ? AND product_id = ?", cartID, productID).
		Delete(&models.CartLine{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// UpdateSelections writes the plan, coin-usage, and coupon fields. Nil-able
// columns are written explicitly so clearing a selection persists.
func (r *Repository) UpdateSelections(ctx context.Context, cartID uuid.UUID, planID *uuid.UUID, useCoins bool, couponCode *string) error {
	return r.db.WithContext(ctx).
		Model(&models.CartRecord{}).
		Where("id = ?", cartID).
		Updates(map[string]interface{}{
			"plan_id":     planID,
			"use_coins":   useCoins,
			"coupon_code": couponCode,
		}).
		Error
}

// SaveBreakdown persists the freshly computed snapshot columns.
func (r *Repository) SaveBreakdown(ctx context.Context, cartID uuid.UUID, breakdown types.PriceBreakdown) error {
	return r.db.WithContext(ctx).
		Model(&models.CartRecord{}).
		Where("id = ?", cartID).
		Updates(map[string]interface{}{
			"subtotal":          breakdown.Subtotal,
			"eligible_subtotal": breakdown.EligibleSubtotal,
			"plan_discount":     breakdown.PlanDiscount,
			"coin_discount":     breakdown.CoinDiscount,
			"coupon_discount":   breakdown.CouponDiscount,
			"total":             breakdown.Total,
			"item_count":        breakdown.ItemCount,
		}).
		Error
}

// ClearLinesTx deletes every line and resets the cart's selections and
// snapshot inside the caller's transaction.
func (r *Repository) ClearLinesTx(tx *gorm.DB, cartID uuid.UUID) error {
	if err := tx.Where("cart_id = ?", cartID).Delete(&models.CartLine{}).Error; err != nil {
		return err
	}
	return tx.Model(&models.CartRecord{}).
		Where("id = ?", cartID).
		Updates(map[string]interface{}{
			"plan_id":           nil,
			"use_coins":         false,
			"coupon_code":       nil,
			"subtotal":          0,
			"eligible_subtotal": 0,
			"plan_discount":     0,
			"coin_discount":     0,
			"coupon_discount":   0,
			"total":             0,
			"item_count":        0,
		}).
		Error
}

// MarkConvertedTx flips the cart to converted inside the caller's
// transaction. The unique active-cart-per-owner rule means the next read
// creates a fresh empty cart.
func (r *Repository) MarkConvertedTx(tx *gorm.DB, cartID uuid.UUID, at time.Time) error {
	return tx.Model(&models.CartRecord{}).
		Where("id = ? AND status = ?", cartID, enums.CartStatusActive).
		Updates(map[string]interface{}{
			"status":       enums.CartStatusConverted,
			"converted_at": at,
		}).
		Error
}

// DeleteCart removes a cart row and, via cascade, its lines. Used only for
// guest cart discard after merge.
func (r *Repository) DeleteCart(ctx context.Context, cartID uuid.UUID) error {
	if err := r.db.WithContext(ctx).
		Where("cart_id = ?", cartID).
		Delete(&models.CartLine{}).Error; err != nil {
		return err
	}
	return r.db.WithContext(ctx).
		Delete(&models.CartRecord{}, "id = ?", cartID).
		Error
}

// DB exposes the underlying handle for transaction composition.
func (r *Repository) DB() *gorm.DB {
	return r.db
}
