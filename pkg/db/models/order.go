package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sipwell/storefront-backend/pkg/enums"
	"github.com/sipwell/storefront-backend/pkg/types"
)

// Order is the immutable record of a placed order. Totals and the address are
// snapshots taken at placement; later cart or address-book changes never
// touch them.
type Order struct {
	ID               uuid.UUID             `gorm:"column:id;type:uuid;primaryKey"`
	OrderNumber      string                `gorm:"column:order_number;type:text;not null;uniqueIndex"`
	OwnerKey         string                `gorm:"column:owner_key;type:text;not null;index"`
	Status           enums.OrderStatus     `gorm:"column:status;type:text;not null;default:'placed'"`
	PaymentMethod    enums.PaymentMethod   `gorm:"column:payment_method;type:text;not null"`
	GatewayOrderID   *string               `gorm:"column:gateway_order_id;type:text"`
	GatewayPaymentID *string               `gorm:"column:gateway_payment_id;type:text"`
	Address          types.AddressSnapshot `gorm:"column:address;type:jsonb;serializer:json"`
	Currency         enums.Currency        `gorm:"column:currency;type:text;not null;default:'INR'"`

	PlanID           *uuid.UUID      `gorm:"column:plan_id;type:uuid"`
	CouponCode       *string         `gorm:"column:coupon_code;type:text"`
	Subtotal         decimal.Decimal `gorm:"column:subtotal;type:numeric(12,2);not null"`
	EligibleSubtotal decimal.Decimal `gorm:"column:eligible_subtotal;type:numeric(12,2);not null;default:0"`
	PlanDiscount     decimal.Decimal `gorm:"column:plan_discount;type:numeric(12,2);not null;default:0"`
	CoinDiscount     decimal.Decimal `gorm:"column:coin_discount;type:numeric(12,2);not null;default:0"`
	CouponDiscount   decimal.Decimal `gorm:"column:coupon_discount;type:numeric(12,2);not null;default:0"`
	Total            decimal.Decimal `gorm:"column:total;type:numeric(12,2);not null"`
	ItemCount        int             `gorm:"column:item_count;not null"`

	LineItems []OrderLineItem `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

// OrderLineItem carries the price-at-purchase for one product on an order.
type OrderLineItem struct {
	ID                 uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	OrderID            uuid.UUID       `gorm:"column:order_id;type:uuid;not null;index"`
	ProductID          uuid.UUID       `gorm:"column:product_id;type:uuid;not null"`
	Name               string          `gorm:"column:name;type:text;not null"`
	UnitPrice          decimal.Decimal `gorm:"column:unit_price;type:numeric(12,2);not null"`
	Quantity           int             `gorm:"column:quantity;not null"`
	SubscriptionMonths int             `gorm:"column:subscription_months;not null;default:1"`
	LineTotal          decimal.Decimal `gorm:"column:line_total;type:numeric(12,2);not null"`
	CreatedAt          time.Time       `gorm:"column:created_at;autoCreateTime"`
}
