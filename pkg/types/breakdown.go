package types

import (
	"github.com/shopspring/decimal"
	"github.com/sipwell/storefront-backend/pkg/enums"
)

// PriceBreakdown is the itemized result of pricing a cart. It is derived
// data: recomputed from the cart and reference data on every read, never
// the source of truth. A copy is frozen onto a checkout session at intent
// creation time and onto the order at finalization.
//
// All amounts are rounded to 2 decimal places at the point each discount
// is subtracted, so repeated pricings of the same cart state are
// byte-identical.
type PriceBreakdown struct {
	Subtotal         decimal.Decimal `json:"subtotal"`
	PlanID           *string         `json:"plan_id,omitempty"`
	EligibleSubtotal decimal.Decimal `json:"eligible_subtotal"`
	PlanDiscount     decimal.Decimal `json:"plan_discount"`
	CoinDiscount     decimal.Decimal `json:"coin_discount"`
	CouponCode       *string         `json:"coupon_code,omitempty"`
	CouponDiscount   decimal.Decimal `json:"coupon_discount"`
	Shipping         decimal.Decimal `json:"shipping"`
	Total            decimal.Decimal `json:"total"`
	ItemCount        int             `json:"item_count"`
	Currency         enums.Currency  `json:"currency"`
}

// ZeroBreakdown returns an empty-cart breakdown with all amounts at zero.
func ZeroBreakdown() PriceBreakdown {
	zero := decimal.Zero.Round(2)
	return PriceBreakdown{
		Subtotal:         zero,
		EligibleSubtotal: zero,
		PlanDiscount:     zero,
		CoinDiscount:     zero,
		CouponDiscount:   zero,
		Shipping:         zero,
		Total:            zero,
		Currency:         enums.CurrencyINR,
	}
}

// TotalMinorUnits converts the total into the currency's minor units
// (paise), the denomination payment gateways bill in.
func (b PriceBreakdown) TotalMinorUnits() int64 {
	return b.Total.Mul(decimal.NewFromInt(100)).IntPart()
}

// Equal compares two breakdowns field by field on numeric value.
func (b PriceBreakdown) Equal(other PriceBreakdown) bool {
	if !b.Subtotal.Equal(other.Subtotal) ||
		!b.EligibleSubtotal.Equal(other.EligibleSubtotal) ||
		!b.PlanDiscount.Equal(other.PlanDiscount) ||
		!b.CoinDiscount.Equal(other.CoinDiscount) ||
		!b.CouponDiscount.Equal(other.CouponDiscount) ||
		!b.Shipping.Equal(other.Shipping) ||
		!b.Total.Equal(other.Total) {
		return false
	}
	if b.ItemCount != other.ItemCount || b.Currency != other.Currency {
		return false
	}
	if (b.PlanID == nil) != (other.PlanID == nil) {
		return false
	}
	if b.PlanID != nil && *b.PlanID != *other.PlanID {
		return false
	}
	if (b.CouponCode == nil) != (other.CouponCode == nil) {
		return false
	}
	if b.CouponCode != nil && *b.CouponCode != *other.CouponCode {
		return false
	}
	return true
}
