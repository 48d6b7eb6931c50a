package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/sipwell/storefront-backend/api/middleware"
	"github.com/sipwell/storefront-backend/api/responses"
	"github.com/sipwell/storefront-backend/api/validators"
	"github.com/sipwell/storefront-backend/internal/checkout"
	"github.com/sipwell/storefront-backend/pkg/enums"
	pkgerrors "github.com/sipwell/storefront-backend/pkg/errors"
	"github.com/sipwell/storefront-backend/pkg/logger"
	"github.com/sipwell/storefront-backend/pkg/types"
)

type checkoutPayload struct {
	SessionID     uuid.UUID                     `json:"sessionId"`
	State         enums.CheckoutState           `json:"state"`
	CartID        uuid.UUID                     `json:"cartId"`
	AddressID     *uuid.UUID                    `json:"addressId,omitempty"`
	PaymentMethod *enums.PaymentMethod          `json:"paymentMethod,omitempty"`
	Breakdown     *types.PriceBreakdown         `json:"breakdown,omitempty"`
	FailureCode   *string                       `json:"failureCode,omitempty"`
	Order         *orderPayload                 `json:"order,omitempty"`
	Payment       *checkout.PaymentInstructions `json:"payment,omitempty"`
}

func renderCheckout(result checkout.Result) checkoutPayload {
	payload := checkoutPayload{
		SessionID:     result.Session.ID,
		State:         result.Session.State,
		CartID:        result.Session.CartID,
		AddressID:     result.Session.AddressID,
		PaymentMethod: result.Session.PaymentMethod,
		Breakdown:     result.Session.FrozenBreakdown,
		FailureCode:   result.Session.FailureCode,
		Payment:       result.Instructions,
	}
	if result.Order != nil {
		order := renderOrder(*result.Order)
		payload.Order = &order
	}
	return payload
}

func writeCheckout(w http.ResponseWriter, status int, result checkout.Result) {
	responses.WriteSuccessStatus(w, status, renderCheckout(result))
}

func CheckoutStart(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result, err := svc.Start(r.Context(), middleware.IdentityFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeCheckout(w, http.StatusCreated, result)
	}
}

func CheckoutGet(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID, err := pathUUID(r, "sessionId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Get(r.Context(), middleware.IdentityFromContext(r.Context()), sessionID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeCheckout(w, http.StatusOK, result)
	}
}

func CheckoutSubmitAddress(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	type body struct {
		AddressID uuid.UUID `json:"addressId" validate:"required"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID, err := pathUUID(r, "sessionId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var input body
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.SubmitAddress(r.Context(), middleware.IdentityFromContext(r.Context()), sessionID, input.AddressID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeCheckout(w, http.StatusOK, result)
	}
}

func CheckoutChoosePaymentMethod(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	type body struct {
		Method string `json:"method" validate:"required"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID, err := pathUUID(r, "sessionId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var input body
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		method, err := enums.ParsePaymentMethod(input.Method)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "payment method must be online or cod"))
			return
		}

		result, err := svc.ChoosePaymentMethod(r.Context(), middleware.IdentityFromContext(r.Context()), sessionID, method)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeCheckout(w, http.StatusOK, result)
	}
}

// CheckoutConfirm receives the gateway callback triple after the shopper
// finishes the payment widget. The session is resolved by gateway order id;
// the path id only shapes the route.
func CheckoutConfirm(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	type body struct {
		GatewayOrderID string `json:"gatewayOrderId" validate:"required"`
		PaymentID      string `json:"paymentId" validate:"required"`
		Signature      string `json:"signature" validate:"required"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if _, err := pathUUID(r, "sessionId"); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var input body
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.ConfirmPayment(r.Context(), input.GatewayOrderID, input.PaymentID, input.Signature)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeCheckout(w, http.StatusOK, result)
	}
}
