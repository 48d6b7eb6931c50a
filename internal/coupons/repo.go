package coupons

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/sipwell/storefront-backend/pkg/db/models"
)

// Repository encapsulates coupon persistence.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a coupon repository bound to the provided gorm DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// FindByCode looks up a coupon by its canonical (upper-cased, trimmed) code.
func (r *Repository) FindByCode(ctx context.Context, code string) (*models.Coupon, error) {
	var coupon models.Coupon
	if err := r.db.WithContext(ctx).
		First(&coupon, "code = ?", CanonicalCode(code)).
		Error; err != nil {
		return nil, err
	}
	return &coupon, nil
}

// CanonicalCode normalizes user-supplied coupon codes before lookup.
func CanonicalCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
