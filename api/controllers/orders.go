package controllers

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/sipwell/storefront-backend/api/middleware"
	"github.com/sipwell/storefront-backend/api/responses"
	"github.com/sipwell/storefront-backend/api/validators"
	"github.com/sipwell/storefront-backend/internal/orders"
	"github.com/sipwell/storefront-backend/pkg/db/models"
	"github.com/sipwell/storefront-backend/pkg/enums"
	pkgerrors "github.com/sipwell/storefront-backend/pkg/errors"
	"github.com/sipwell/storefront-backend/pkg/logger"
	"github.com/sipwell/storefront-backend/pkg/types"
)

type orderLinePayload struct {
	ProductID          uuid.UUID       `json:"productId"`
	Name               string          `json:"name"`
	UnitPrice          decimal.Decimal `json:"unitPrice"`
	Quantity           int             `json:"quantity"`
	SubscriptionMonths int             `json:"subscriptionMonths"`
	LineTotal          decimal.Decimal `json:"lineTotal"`
}

type orderPayload struct {
	ID             uuid.UUID             `json:"id"`
	OrderNumber    string                `json:"orderNumber"`
	Status         enums.OrderStatus     `json:"status"`
	PaymentMethod  enums.PaymentMethod   `json:"paymentMethod"`
	Currency       enums.Currency        `json:"currency"`
	Address        types.AddressSnapshot `json:"address"`
	Subtotal       decimal.Decimal       `json:"subtotal"`
	PlanDiscount   decimal.Decimal       `json:"planDiscount"`
	CoinDiscount   decimal.Decimal       `json:"coinDiscount"`
	CouponDiscount decimal.Decimal       `json:"couponDiscount"`
	Total          decimal.Decimal       `json:"total"`
	ItemCount      int                   `json:"itemCount"`
	LineItems      []orderLinePayload    `json:"lineItems,omitempty"`
	PlacedAt       time.Time             `json:"placedAt"`
}

func renderOrder(order models.Order) orderPayload {
	payload := orderPayload{
		ID:             order.ID,
		OrderNumber:    order.OrderNumber,
		Status:         order.Status,
		PaymentMethod:  order.PaymentMethod,
		Currency:       order.Currency,
		Address:        order.Address,
		Subtotal:       order.Subtotal,
		PlanDiscount:   order.PlanDiscount,
		CoinDiscount:   order.CoinDiscount,
		CouponDiscount: order.CouponDiscount,
		Total:          order.Total,
		ItemCount:      order.ItemCount,
		PlacedAt:       order.CreatedAt,
	}
	for _, item := range order.LineItems {
		payload.LineItems = append(payload.LineItems, orderLinePayload{
			ProductID:          item.ProductID,
			Name:               item.Name,
			UnitPrice:          item.UnitPrice,
			Quantity:           item.Quantity,
			SubscriptionMonths: item.SubscriptionMonths,
			LineTotal:          item.LineTotal,
		})
	}
	return payload
}

func OrdersList(repo *orders.Repository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := validators.ParseQueryInt(r, "limit", 20, 1, 100)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		identity := middleware.IdentityFromContext(r.Context())
		records, err := repo.ListForOwner(r.Context(), identity.Key(), limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders"))
			return
		}

		payload := make([]orderPayload, 0, len(records))
		for _, record := range records {
			payload = append(payload, renderOrder(record))
		}
		responses.WriteSuccess(w, payload)
	}
}

func OrderGet(repo *orders.Repository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := pathUUID(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		record, err := repo.FindByID(r.Context(), orderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "order not found"))
				return
			}
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order"))
			return
		}

		identity := middleware.IdentityFromContext(r.Context())
		if record.OwnerKey != identity.Key() {
			// Hide other shoppers' orders rather than acknowledging them.
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "order not found"))
			return
		}

		responses.WriteSuccess(w, renderOrder(*record))
	}
}
