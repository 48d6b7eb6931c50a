package controllers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sipwell/storefront-backend/api/middleware"
	"github.com/sipwell/storefront-backend/api/responses"
	"github.com/sipwell/storefront-backend/api/validators"
	"github.com/sipwell/storefront-backend/internal/cart"
	"github.com/sipwell/storefront-backend/pkg/enums"
	pkgerrors "github.com/sipwell/storefront-backend/pkg/errors"
	"github.com/sipwell/storefront-backend/pkg/logger"
	"github.com/sipwell/storefront-backend/pkg/types"
)

// planStasher records a guest's plan choice for replay at merge time. Plans
// belong to accounts, so a guest cart never carries one directly.
type planStasher interface {
	StashPendingPlan(ctx context.Context, token, planID string) error
}

type cartLinePayload struct {
	ProductID          uuid.UUID       `json:"productId"`
	Name               string          `json:"name"`
	UnitBasePrice      decimal.Decimal `json:"unitBasePrice"`
	UnitFinalPrice     decimal.Decimal `json:"unitFinalPrice"`
	Quantity           int             `json:"quantity"`
	SubscriptionMonths int             `json:"subscriptionMonths"`
}

type cartPayload struct {
	ID         uuid.UUID            `json:"id"`
	Currency   enums.Currency       `json:"currency"`
	PlanID     *uuid.UUID           `json:"planId,omitempty"`
	UseCoins   bool                 `json:"useCoins"`
	CouponCode *string              `json:"couponCode,omitempty"`
	Lines      []cartLinePayload    `json:"lines"`
	Breakdown  types.PriceBreakdown `json:"breakdown"`
}

func renderCart(view cart.View) cartPayload {
	payload := cartPayload{
		ID:         view.Cart.ID,
		Currency:   view.Cart.Currency,
		PlanID:     view.Cart.PlanID,
		UseCoins:   view.Cart.UseCoins,
		CouponCode: view.Cart.CouponCode,
		Lines:      make([]cartLinePayload, 0, len(view.Cart.Lines)),
		Breakdown:  view.Breakdown,
	}
	for _, line := range view.Cart.Lines {
		payload.Lines = append(payload.Lines, cartLinePayload{
			ProductID:          line.ProductID,
			Name:               line.Name,
			UnitBasePrice:      line.UnitBasePrice,
			UnitFinalPrice:     line.UnitFinalPrice,
			Quantity:           line.Quantity,
			SubscriptionMonths: line.SubscriptionMonths,
		})
	}
	return payload
}

func writeCart(w http.ResponseWriter, view cart.View) {
	responses.WriteSuccess(w, renderCart(view))
}

func CartGet(svc cart.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view, err := svc.Get(r.Context(), middleware.IdentityFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeCart(w, view)
	}
}

func CartAddLine(svc cart.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input cart.AddLineInput
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view, err := svc.AddLine(r.Context(), middleware.IdentityFromContext(r.Context()), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeCart(w, view)
	}
}

func CartSetLineQuantity(svc cart.Service, logg *logger.Logger) http.HandlerFunc {
	type body struct {
		Quantity int `json:"quantity" validate:"required"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := pathUUID(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var input body
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view, err := svc.SetLineQuantity(r.Context(), middleware.IdentityFromContext(r.Context()), productID, input.Quantity)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeCart(w, view)
	}
}

func CartRemoveLine(svc cart.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := pathUUID(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view, err := svc.RemoveLine(r.Context(), middleware.IdentityFromContext(r.Context()), productID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeCart(w, view)
	}
}

// CartSelectPlan applies a plan to a user cart. For guests the choice is
// stashed against the session token and replayed when the cart merges into
// an account.
func CartSelectPlan(svc cart.Service, stash planStasher, logg *logger.Logger) http.HandlerFunc {
	type body struct {
		PlanID uuid.UUID `json:"planId" validate:"required"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var input body
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		identity := middleware.IdentityFromContext(r.Context())
		if !identity.IsUser() {
			if stash == nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "plan selection requires an account"))
				return
			}
			if err := stash.StashPendingPlan(r.Context(), identity.ID, input.PlanID.String()); err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "stash pending plan"))
				return
			}
			view, err := svc.Get(r.Context(), identity)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			writeCart(w, view)
			return
		}

		planID := input.PlanID
		view, err := svc.SelectPlan(r.Context(), identity, &planID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeCart(w, view)
	}
}

func CartClearPlan(svc cart.Service, stash planStasher, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := middleware.IdentityFromContext(r.Context())
		if !identity.IsUser() {
			if stash != nil {
				if err := stash.StashPendingPlan(r.Context(), identity.ID, ""); err != nil {
					responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear pending plan"))
					return
				}
			}
			view, err := svc.Get(r.Context(), identity)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			writeCart(w, view)
			return
		}

		view, err := svc.SelectPlan(r.Context(), identity, nil)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeCart(w, view)
	}
}

func CartToggleCoins(svc cart.Service, logg *logger.Logger) http.HandlerFunc {
	type body struct {
		Enabled *bool `json:"enabled" validate:"required"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var input body
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view, err := svc.ToggleCoinUsage(r.Context(), middleware.IdentityFromContext(r.Context()), *input.Enabled)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeCart(w, view)
	}
}

func CartApplyCoupon(svc cart.Service, logg *logger.Logger) http.HandlerFunc {
	type body struct {
		Code string `json:"code" validate:"required"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var input body
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view, err := svc.ApplyCoupon(r.Context(), middleware.IdentityFromContext(r.Context()), input.Code)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeCart(w, view)
	}
}

func CartRemoveCoupon(svc cart.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view, err := svc.RemoveCoupon(r.Context(), middleware.IdentityFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeCart(w, view)
	}
}

func CartClear(svc cart.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view, err := svc.Clear(r.Context(), middleware.IdentityFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeCart(w, view)
	}
}

func pathUUID(r *http.Request, name string) (uuid.UUID, error) {
	value, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "path parameter must be a uuid").
			WithDetails(map[string]any{"field": name})
	}
	return value, nil
}
