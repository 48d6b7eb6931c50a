package coupons

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/sipwell/storefront-backend/pkg/db/models"
	pkgerrors "github.com/sipwell/storefront-backend/pkg/errors"
)

// Validator decides whether a coupon may be applied to a cart. Validation
// runs at apply time and again on every reprice; a coupon that expires while
// sitting on a cart contributes zero discount rather than blocking the cart.
type Validator struct {
	repo *Repository
	now  func() time.Time
}

// NewValidator builds a coupon validator over the given repository.
func NewValidator(repo *Repository) (*Validator, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "coupon repo is required")
	}
	return &Validator{repo: repo, now: time.Now}, nil
}

// Validate resolves the code and checks it against the cart subtotal.
// Unknown or inactive codes fail as invalid, past expiry as expired, and a
// subtotal below the coupon floor as not applicable.
func (v *Validator) Validate(ctx context.Context, code string, subtotal decimal.Decimal) (*models.Coupon, error) {
	if CanonicalCode(code) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeCouponInvalid, "coupon code is required")
	}

	coupon, err := v.repo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeCouponInvalid, "coupon code not recognized")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load coupon")
	}
	if !coupon.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeCouponInvalid, "coupon is no longer active")
	}
	if coupon.ExpiresAt != nil && coupon.ExpiresAt.Before(v.now()) {
		return nil, pkgerrors.New(pkgerrors.CodeCouponExpired, "coupon has expired")
	}
	if subtotal.LessThan(coupon.MinSubtotal) {
		return nil, pkgerrors.New(pkgerrors.CodeCouponNotApplicable, "cart subtotal is below the coupon minimum")
	}
	return coupon, nil
}

// Resolve is the reprice-time variant: it returns the coupon when it is
// still redeemable and nil otherwise, never an application error.
func (v *Validator) Resolve(ctx context.Context, code string, subtotal decimal.Decimal) (*models.Coupon, error) {
	coupon, err := v.Validate(ctx, code, subtotal)
	if err != nil {
		if pkgerrors.HasCode(err, pkgerrors.CodeDependency) {
			return nil, err
		}
		return nil, nil
	}
	return coupon, nil
}
