package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sipwell/storefront-backend/pkg/enums"
)

// CartRecord is the authoritative mutable cart for one identity. The priced
// snapshot columns are server-computed on every mutation; clients never write
// totals. Exactly one active cart exists per owner key at a time.
type CartRecord struct {
	ID       uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	OwnerKey string           `gorm:"column:owner_key;type:text;not null;index"`
	Status   enums.CartStatus `gorm:"column:status;type:text;not null;default:'active'"`

	PlanID     *uuid.UUID     `gorm:"column:plan_id;type:uuid"`
	UseCoins   bool           `gorm:"column:use_coins;not null;default:false"`
	CouponCode *string        `gorm:"column:coupon_code;type:text"`
	Currency   enums.Currency `gorm:"column:currency;type:text;not null;default:'INR'"`

	Subtotal         decimal.Decimal `gorm:"column:subtotal;type:numeric(12,2);not null;default:0"`
	EligibleSubtotal decimal.Decimal `gorm:"column:eligible_subtotal;type:numeric(12,2);not null;default:0"`
	PlanDiscount     decimal.Decimal `gorm:"column:plan_discount;type:numeric(12,2);not null;default:0"`
	CoinDiscount     decimal.Decimal `gorm:"column:coin_discount;type:numeric(12,2);not null;default:0"`
	CouponDiscount   decimal.Decimal `gorm:"column:coupon_discount;type:numeric(12,2);not null;default:0"`
	Total            decimal.Decimal `gorm:"column:total;type:numeric(12,2);not null;default:0"`
	ItemCount        int             `gorm:"column:item_count;not null;default:0"`

	ConvertedAt *time.Time `gorm:"column:converted_at"`
	Lines       []CartLine `gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE"`
	CreatedAt   time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

// CartLine is one product entry within a cart. Unit prices are snapshots of
// the catalog price at add time; product-level discounts are already baked
// into the final price.
type CartLine struct {
	ID                 uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	CartID             uuid.UUID       `gorm:"column:cart_id;type:uuid;not null;uniqueIndex:idx_cart_lines_cart_product"`
	ProductID          uuid.UUID       `gorm:"column:product_id;type:uuid;not null;uniqueIndex:idx_cart_lines_cart_product"`
	Name               string          `gorm:"column:name;type:text;not null"`
	UnitBasePrice      decimal.Decimal `gorm:"column:unit_base_price;type:numeric(12,2);not null"`
	UnitFinalPrice     decimal.Decimal `gorm:"column:unit_final_price;type:numeric(12,2);not null"`
	Quantity           int             `gorm:"column:quantity;not null"`
	SubscriptionMonths int             `gorm:"column:subscription_months;not null;default:1"`
	CreatedAt          time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
