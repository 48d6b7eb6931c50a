package pricing

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sipwell/storefront-backend/pkg/enums"
	"github.com/sipwell/storefront-backend/pkg/types"
)

// Line is one cart line as the engine sees it. Unit price is the final
// per-unit price; product-level discounts are already baked in upstream.
type Line struct {
	ProductID uuid.UUID
	UnitPrice decimal.Decimal
	Quantity  int
}

// Requirement is one clause of a plan's eligibility predicate.
type Requirement struct {
	ProductID uuid.UUID
	MinQty    int
}

// PlanInput is the selected plan's discount terms plus its predicate.
type PlanInput struct {
	ID            uuid.UUID
	DiscountKind  enums.DiscountKind
	DiscountValue decimal.Decimal
	Requirements  []Requirement
}

// CoinInput carries the coin-usage flag and the identity's balance.
type CoinInput struct {
	Enabled        bool
	Balance        decimal.Decimal
	ConversionRate decimal.Decimal
}

// CouponInput is an already-validated coupon. Validation happens before the
// engine runs; the engine only computes the amount.
type CouponInput struct {
	Code          string
	DiscountKind  enums.DiscountKind
	DiscountValue decimal.Decimal
}

// Input is the full snapshot a price computation depends on.
type Input struct {
	Lines    []Line
	Plan     *PlanInput
	Coins    CoinInput
	Coupon   *CouponInput
	Currency enums.Currency
}

// Price computes the itemized breakdown for a cart snapshot. It is a pure
// function: identical inputs yield an identical breakdown.
//
// The discount order is fixed and load-bearing. Plan discount applies to the
// eligible subtotal only, coins to what remains after the plan, and the
// coupon to what remains after both. Each amount is rounded to two decimals
// at the point it is subtracted. The total never drops below zero and
// shipping is always zero.
func Price(in Input) types.PriceBreakdown {
	breakdown := types.ZeroBreakdown()
	if in.Currency != "" {
		breakdown.Currency = in.Currency
	}

	subtotal := decimal.Zero
	itemCount := 0
	for _, line := range in.Lines {
		subtotal = subtotal.Add(line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity))))
		itemCount += line.Quantity
	}
	subtotal = subtotal.Round(2)
	breakdown.Subtotal = subtotal
	breakdown.ItemCount = itemCount

	remaining := subtotal

	if in.Plan != nil {
		planID := in.Plan.ID.String()
		breakdown.PlanID = &planID

		eligible := eligibleSubtotal(in.Lines, in.Plan.Requirements)
		if satisfiesPlan(in.Lines, in.Plan.Requirements) && eligible.GreaterThan(decimal.Zero) {
			breakdown.EligibleSubtotal = eligible

			var discount decimal.Decimal
			switch in.Plan.DiscountKind {
			case enums.DiscountKindPercentage:
				discount = eligible.Mul(in.Plan.DiscountValue).Div(decimal.NewFromInt(100))
			default:
				discount = decimal.Min(in.Plan.DiscountValue, eligible)
			}
			discount = decimal.Min(discount.Round(2), remaining)
			breakdown.PlanDiscount = discount
			remaining = remaining.Sub(discount)
		}
	}

	if in.Coins.Enabled && in.Coins.Balance.GreaterThan(decimal.Zero) {
		available := in.Coins.Balance.Mul(in.Coins.ConversionRate).Round(2)
		discount := decimal.Min(available, remaining)
		breakdown.CoinDiscount = discount
		remaining = remaining.Sub(discount)
	}

	if in.Coupon != nil {
		code := in.Coupon.Code
		breakdown.CouponCode = &code

		var discount decimal.Decimal
		switch in.Coupon.DiscountKind {
		case enums.DiscountKindPercentage:
			discount = remaining.Mul(in.Coupon.DiscountValue).Div(decimal.NewFromInt(100))
		default:
			discount = in.Coupon.DiscountValue
		}
		discount = decimal.Min(discount.Round(2), remaining)
		breakdown.CouponDiscount = discount
		remaining = remaining.Sub(discount)
	}

	breakdown.Total = decimal.Max(remaining, decimal.Zero).Round(2)
	return breakdown
}

// satisfiesPlan reports whether every requirement has a matching line at or
// above its minimum quantity. A plan with no requirements matches any
// non-empty cart.
func satisfiesPlan(lines []Line, requirements []Requirement) bool {
	if len(lines) == 0 {
		return false
	}
	quantities := make(map[uuid.UUID]int, len(lines))
	for _, line := range lines {
		quantities[line.ProductID] += line.Quantity
	}
	for _, req := range requirements {
		if quantities[req.ProductID] < req.MinQty {
			return false
		}
	}
	return true
}

// eligibleSubtotal sums the lines the plan's predicate covers. A plan with
// no requirements covers every line.
func eligibleSubtotal(lines []Line, requirements []Requirement) decimal.Decimal {
	if len(requirements) == 0 {
		total := decimal.Zero
		for _, line := range lines {
			total = total.Add(line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity))))
		}
		return total.Round(2)
	}

	covered := make(map[uuid.UUID]struct{}, len(requirements))
	for _, req := range requirements {
		covered[req.ProductID] = struct{}{}
	}
	total := decimal.Zero
	for _, line := range lines {
		if _, ok := covered[line.ProductID]; ok {
			total = total.Add(line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity))))
		}
	}
	return total.Round(2)
}
