package cart

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/sipwell/storefront-backend/internal/coins"
	"github.com/sipwell/storefront-backend/internal/coupons"
	"github.com/sipwell/storefront-backend/internal/plans"
	"github.com/sipwell/storefront-backend/internal/pricing"
	"github.com/sipwell/storefront-backend/pkg/db/models"
	pkgerrors "github.com/sipwell/storefront-backend/pkg/errors"
	"github.com/sipwell/storefront-backend/pkg/metrics"
	"github.com/sipwell/storefront-backend/pkg/types"
)

// AddLineInput carries the fields accepted when adding a product to a cart.
type AddLineInput struct {
	ProductID          uuid.UUID       `json:"productId" validate:"required"`
	Name               string          `json:"name" validate:"required"`
	UnitBasePrice      decimal.Decimal `json:"unitBasePrice"`
	UnitFinalPrice     decimal.Decimal `json:"unitFinalPrice"`
	Quantity           int             `json:"quantity" validate:"required,min=1"`
	SubscriptionMonths int             `json:"subscriptionMonths"`
}

// View pairs the persisted cart with its freshly computed breakdown. The
// breakdown is recomputed on every call; the snapshot columns on the record
// are what the last mutation persisted.
type View struct {
	Cart      *models.CartRecord   `json:"cart"`
	Breakdown types.PriceBreakdown `json:"breakdown"`
}

// ServiceParams groups dependencies for the cart service.
type ServiceParams struct {
	CartRepo        *Repository
	PlanRepo        *plans.Repository
	CoinRepo        *coins.Repository
	CouponValidator *coupons.Validator
	Metrics         *metrics.CheckoutMetrics
}

// Service is the authoritative cart API. Every mutation persists first and
// only then returns the fresh breakdown; there is no optimistic total.
type Service interface {
	Get(ctx context.Context, identity types.Identity) (View, error)
	AddLine(ctx context.Context, identity types.Identity, input AddLineInput) (View, error)
	SetLineQuantity(ctx context.Context, identity types.Identity, productID uuid.UUID, quantity int) (View, error)
	RemoveLine(ctx context.Context, identity types.Identity, productID uuid.UUID) (View, error)
	SelectPlan(ctx context.Context, identity types.Identity, planID *uuid.UUID) (View, error)
	ToggleCoinUsage(ctx context.Context, identity types.Identity, enabled bool) (View, error)
	ApplyCoupon(ctx context.Context, identity types.Identity, code string) (View, error)
	RemoveCoupon(ctx context.Context, identity types.Identity) (View, error)
	Clear(ctx context.Context, identity types.Identity) (View, error)
}

type service struct {
	cartRepo        *Repository
	planRepo        *plans.Repository
	coinRepo        *coins.Repository
	couponValidator *coupons.Validator
	metrics         *metrics.CheckoutMetrics
}

// NewService builds a cart service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.CartRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart repo is required")
	}
	if params.PlanRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "plan repo is required")
	}
	if params.CoinRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "coin repo is required")
	}
	if params.CouponValidator == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "coupon validator is required")
	}
	return &service{
		cartRepo:        params.CartRepo,
		planRepo:        params.PlanRepo,
		coinRepo:        params.CoinRepo,
		couponValidator: params.CouponValidator,
		metrics:         params.Metrics,
	}, nil
}

func (s *service) Get(ctx context.Context, identity types.Identity) (View, error) {
	record, err := s.loadCart(ctx, identity)
	if err != nil {
		return View{}, err
	}
	return s.repriceAndPersist(ctx, identity, record)
}

func (s *service) AddLine(ctx context.Context, identity types.Identity, input AddLineInput) (View, error) {
	if input.ProductID == uuid.Nil {
		return View{}, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	if input.Quantity < 1 {
		return View{}, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}
	if input.UnitFinalPrice.IsNegative() || input.UnitBasePrice.IsNegative() {
		return View{}, pkgerrors.New(pkgerrors.CodeValidation, "unit price must not be negative")
	}

	record, err := s.loadCart(ctx, identity)
	if err != nil {
		return View{}, err
	}

	months := input.SubscriptionMonths
	if months < 1 {
		months = 1
	}
	line := models.CartLine{
		ProductID:          input.ProductID,
		Name:               input.Name,
		UnitBasePrice:      input.UnitBasePrice.Round(2),
		UnitFinalPrice:     input.UnitFinalPrice.Round(2),
		Quantity:           input.Quantity,
		SubscriptionMonths: months,
	}
	if err := s.cartRepo.UpsertLine(ctx, record.ID, line); err != nil {
		return View{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save cart line")
	}
	return s.reload(ctx, identity, record.ID)
}

// SetLineQuantity overwrites a line's quantity. A value below 1 is a
// validation error, never an implicit removal.
func (s *service) SetLineQuantity(ctx context.Context, identity types.Identity, productID uuid.UUID, quantity int) (View, error) {
	if quantity < 1 {
		return View{}, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1; use remove to drop the line")
	}

	record, err := s.loadCart(ctx, identity)
	if err != nil {
		return View{}, err
	}
	if err := s.cartRepo.SetLineQuantity(ctx, record.ID, productID, quantity); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return View{}, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "line not found")
		}
		return View{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update cart line")
	}
	return s.reload(ctx, identity, record.ID)
}

// RemoveLine drops a product from the cart. Removing the last line clears
// the selected plan; removing a line that merely breaks plan eligibility
// leaves the plan set and its discount drops to zero on the next pricing.
func (s *service) RemoveLine(ctx context.Context, identity types.Identity, productID uuid.UUID) (View, error) {
	record, err := s.loadCart(ctx, identity)
	if err != nil {
		return View{}, err
	}
	if err := s.cartRepo.DeleteLine(ctx, record.ID, productID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return View{}, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "line not found")
		}
		return View{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "remove cart line")
	}

	record, err = s.cartRepo.FindByID(ctx, record.ID)
	if err != nil {
		return View{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload cart")
	}
	if len(record.Lines) == 0 && record.PlanID != nil {
		if err := s.cartRepo.UpdateSelections(ctx, record.ID, nil, record.UseCoins, record.CouponCode); err != nil {
			return View{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear plan selection")
		}
		record.PlanID = nil
	}
	return s.repriceAndPersist(ctx, identity, record)
}

// SelectPlan sets or, with a nil id, clears the subscription plan. Selection
// requires the cart to satisfy the plan's requirements right now; eligibility
// lost later only zeroes the discount.
func (s *service) SelectPlan(ctx context.Context, identity types.Identity, planID *uuid.UUID) (View, error) {
	record, err := s.loadCart(ctx, identity)
	if err != nil {
		return View{}, err
	}

	if planID == nil {
		if err := s.cartRepo.UpdateSelections(ctx, record.ID, nil, record.UseCoins, record.CouponCode); err != nil {
			return View{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear plan selection")
		}
		return s.reload(ctx, identity, record.ID)
	}

	plan, err := s.planRepo.FindActiveByID(ctx, *planID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return View{}, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "plan not found")
		}
		return View{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load plan")
	}
	if !cartSatisfiesPlan(record.Lines, plan.Requirements) {
		return View{}, pkgerrors.New(pkgerrors.CodeValidation, "cart does not meet the plan requirements")
	}
	if err := s.cartRepo.UpdateSelections(ctx, record.ID, planID, record.UseCoins, record.CouponCode); err != nil {
		return View{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save plan selection")
	}
	return s.reload(ctx, identity, record.ID)
}

// ToggleCoinUsage flips whether the identity's coin balance offsets the
// total. Guests carry no balance, so enabling is user-only.
func (s *service) ToggleCoinUsage(ctx context.Context, identity types.Identity, enabled bool) (View, error) {
	if enabled && !identity.IsUser() {
		return View{}, pkgerrors.New(pkgerrors.CodeValidation, "coin usage requires a signed-in account")
	}

	record, err := s.loadCart(ctx, identity)
	if err != nil {
		return View{}, err
	}
	if err := s.cartRepo.UpdateSelections(ctx, record.ID, record.PlanID, enabled, record.CouponCode); err != nil {
		return View{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save coin usage")
	}
	return s.reload(ctx, identity, record.ID)
}

// ApplyCoupon validates the code against the current subtotal and replaces
// any previously applied coupon. A rejected code leaves the cart untouched.
func (s *service) ApplyCoupon(ctx context.Context, identity types.Identity, code string) (View, error) {
	record, err := s.loadCart(ctx, identity)
	if err != nil {
		return View{}, err
	}

	subtotal := linesSubtotal(record.Lines)
	coupon, err := s.couponValidator.Validate(ctx, code, subtotal)
	if err != nil {
		return View{}, err
	}
	if err := s.cartRepo.UpdateSelections(ctx, record.ID, record.PlanID, record.UseCoins, &coupon.Code); err != nil {
		return View{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save coupon")
	}
	return s.reload(ctx, identity, record.ID)
}

func (s *service) RemoveCoupon(ctx context.Context, identity types.Identity) (View, error) {
	record, err := s.loadCart(ctx, identity)
	if err != nil {
		return View{}, err
	}
	if err := s.cartRepo.UpdateSelections(ctx, record.ID, record.PlanID, record.UseCoins, nil); err != nil {
		return View{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "remove coupon")
	}
	return s.reload(ctx, identity, record.ID)
}

// Clear empties the cart and resets every selection.
func (s *service) Clear(ctx context.Context, identity types.Identity) (View, error) {
	record, err := s.loadCart(ctx, identity)
	if err != nil {
		return View{}, err
	}
	err = s.cartRepo.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.cartRepo.ClearLinesTx(tx, record.ID)
	})
	if err != nil {
		return View{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
	}
	return s.reload(ctx, identity, record.ID)
}

func (s *service) loadCart(ctx context.Context, identity types.Identity) (*models.CartRecord, error) {
	if identity.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "identity is required")
	}
	record, err := s.cartRepo.FindOrCreateActive(ctx, identity.Key())
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	return record, nil
}

func (s *service) reload(ctx context.Context, identity types.Identity, cartID uuid.UUID) (View, error) {
	record, err := s.cartRepo.FindByID(ctx, cartID)
	if err != nil {
		return View{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload cart")
	}
	return s.repriceAndPersist(ctx, identity, record)
}

// repriceAndPersist runs the engine over the current state, persists the
// snapshot columns, and returns the view.
func (s *service) repriceAndPersist(ctx context.Context, identity types.Identity, record *models.CartRecord) (View, error) {
	breakdown, err := s.priceCart(ctx, identity, record)
	if err != nil {
		return View{}, err
	}
	if err := s.cartRepo.SaveBreakdown(ctx, record.ID, breakdown); err != nil {
		return View{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist breakdown")
	}
	record.Subtotal = breakdown.Subtotal
	record.EligibleSubtotal = breakdown.EligibleSubtotal
	record.PlanDiscount = breakdown.PlanDiscount
	record.CoinDiscount = breakdown.CoinDiscount
	record.CouponDiscount = breakdown.CouponDiscount
	record.Total = breakdown.Total
	record.ItemCount = breakdown.ItemCount
	return View{Cart: record, Breakdown: breakdown}, nil
}

// priceCart assembles the engine input from the cart and reference data.
func (s *service) priceCart(ctx context.Context, identity types.Identity, record *models.CartRecord) (types.PriceBreakdown, error) {
	input := pricing.Input{
		Lines:    pricingLines(record.Lines),
		Currency: record.Currency,
	}

	if record.PlanID != nil {
		plan, err := s.planRepo.FindByID(ctx, *record.PlanID)
		if err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return types.PriceBreakdown{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load plan")
			}
		} else {
			input.Plan = planInput(plan)
		}
	}

	if record.UseCoins && identity.IsUser() {
		userID, err := identity.UserID()
		if err != nil {
			return types.PriceBreakdown{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "parse identity")
		}
		balance, err := s.coinRepo.BalanceForUser(ctx, userID)
		if err != nil {
			return types.PriceBreakdown{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load coin balance")
		}
		input.Coins = pricing.CoinInput{
			Enabled:        true,
			Balance:        balance.Balance,
			ConversionRate: balance.ConversionRate,
		}
	}

	if record.CouponCode != nil {
		coupon, err := s.couponValidator.Resolve(ctx, *record.CouponCode, linesSubtotal(record.Lines))
		if err != nil {
			return types.PriceBreakdown{}, err
		}
		if coupon != nil {
			input.Coupon = &pricing.CouponInput{
				Code:          coupon.Code,
				DiscountKind:  coupon.DiscountKind,
				DiscountValue: coupon.DiscountValue,
			}
		}
	}

	breakdown := pricing.Price(input)
	s.metrics.IncRecomputation()
	return breakdown, nil
}

func pricingLines(lines []models.CartLine) []pricing.Line {
	out := make([]pricing.Line, 0, len(lines))
	for _, line := range lines {
		out = append(out, pricing.Line{
			ProductID: line.ProductID,
			UnitPrice: line.UnitFinalPrice,
			Quantity:  line.Quantity,
		})
	}
	return out
}

func planInput(plan *models.SubscriptionPlan) *pricing.PlanInput {
	requirements := make([]pricing.Requirement, 0, len(plan.Requirements))
	for _, req := range plan.Requirements {
		requirements = append(requirements, pricing.Requirement{
			ProductID: req.ProductID,
			MinQty:    req.MinQty,
		})
	}
	return &pricing.PlanInput{
		ID:            plan.ID,
		DiscountKind:  plan.DiscountKind,
		DiscountValue: plan.DiscountValue,
		Requirements:  requirements,
	}
}

func cartSatisfiesPlan(lines []models.CartLine, requirements []models.PlanRequirement) bool {
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

func linesSubtotal(lines []models.CartLine) decimal.Decimal {
	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(line.UnitFinalPrice.Mul(decimal.NewFromInt(int64(line.Quantity))))
	}
	return total.Round(2)
}
