package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sipwell/storefront-backend/pkg/enums"
)

// Coupon is a redeemable discount code. At most one coupon is applied to a
// cart at a time.
type Coupon struct {
	ID            uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	Code          string             `gorm:"column:code;type:text;not null;uniqueIndex"`
	DiscountKind  enums.DiscountKind `gorm:"column:discount_kind;type:text;not null"`
	DiscountValue decimal.Decimal    `gorm:"column:discount_value;type:numeric(12,2);not null"`
	MinSubtotal   decimal.Decimal    `gorm:"column:min_subtotal;type:numeric(12,2);not null;default:0"`
	// No gorm default tag: a default would make Create drop a false value
	// and the database would resurrect the coupon as active.
	IsActive bool `gorm:"column:is_active;not null"`
	ExpiresAt     *time.Time         `gorm:"column:expires_at"`
	CreatedAt     time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}
