package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sipwell/storefront-backend/pkg/enums"
)

// SubscriptionPlan is immutable reference data; carts store only the plan id.
type SubscriptionPlan struct {
	ID            uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	Name          string             `gorm:"column:name;type:text;not null"`
	DiscountKind  enums.DiscountKind `gorm:"column:discount_kind;type:text;not null"`
	DiscountValue decimal.Decimal    `gorm:"column:discount_value;type:numeric(12,2);not null"`
	IsActive      bool               `gorm:"column:is_active;not null"`
	Requirements  []PlanRequirement  `gorm:"foreignKey:PlanID;constraint:OnDelete:CASCADE"`
	CreatedAt     time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

// PlanRequirement is one clause of a plan's eligibility predicate: the cart
// must hold at least MinQty units of ProductID for the line to count.
type PlanRequirement struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	PlanID    uuid.UUID `gorm:"column:plan_id;type:uuid;not null;index"`
	ProductID uuid.UUID `gorm:"column:product_id;type:uuid;not null"`
	MinQty    int       `gorm:"column:min_qty;not null;default:1"`
}
