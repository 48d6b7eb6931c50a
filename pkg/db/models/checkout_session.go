package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/sipwell/storefront-backend/pkg/enums"
	"github.com/sipwell/storefront-backend/pkg/types"
)

// CheckoutSession is one checkout attempt. Persisting it is what makes
// duplicate gateway callbacks idempotent across processes: a verify hitting a
// completed session returns the recorded order id instead of creating a new
// order. The breakdown is frozen at intent-creation time; finalization uses
// it verbatim even if the cart changed meanwhile.
type CheckoutSession struct {
	ID               uuid.UUID             `gorm:"column:id;type:uuid;primaryKey"`
	OwnerKey         string                `gorm:"column:owner_key;type:text;not null;index"`
	CartID           uuid.UUID             `gorm:"column:cart_id;type:uuid;not null"`
	State            enums.CheckoutState   `gorm:"column:state;type:text;not null"`
	AddressID        *uuid.UUID            `gorm:"column:address_id;type:uuid"`
	PaymentMethod    *enums.PaymentMethod  `gorm:"column:payment_method;type:text"`
	GatewayOrderID   *string               `gorm:"column:gateway_order_id;type:text;index"`
	FrozenBreakdown  *types.PriceBreakdown `gorm:"column:frozen_breakdown;type:jsonb;serializer:json"`
	OrderID          *uuid.UUID            `gorm:"column:order_id;type:uuid"`
	FailureCode      *string               `gorm:"column:failure_code;type:text"`
	CreatedAt        time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}
