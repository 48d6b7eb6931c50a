package controllers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sipwell/storefront-backend/api/responses"
	"github.com/sipwell/storefront-backend/internal/plans"
	"github.com/sipwell/storefront-backend/pkg/enums"
	pkgerrors "github.com/sipwell/storefront-backend/pkg/errors"
	"github.com/sipwell/storefront-backend/pkg/logger"
)

type planRequirementPayload struct {
	ProductID uuid.UUID `json:"productId"`
	MinQty    int       `json:"minQty"`
}

type planPayload struct {
	ID            uuid.UUID                `json:"id"`
	Name          string                   `json:"name"`
	DiscountKind  enums.DiscountKind       `json:"discountKind"`
	DiscountValue decimal.Decimal          `json:"discountValue"`
	Requirements  []planRequirementPayload `json:"requirements"`
}

// PlansList exposes the active subscription plans a cart can select from.
func PlansList(repo *plans.Repository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		records, err := repo.ListActive(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list plans"))
			return
		}

		payload := make([]planPayload, 0, len(records))
		for _, record := range records {
			plan := planPayload{
				ID:            record.ID,
				Name:          record.Name,
				DiscountKind:  record.DiscountKind,
				DiscountValue: record.DiscountValue,
				Requirements:  make([]planRequirementPayload, 0, len(record.Requirements)),
			}
			for _, req := range record.Requirements {
				plan.Requirements = append(plan.Requirements, planRequirementPayload{
					ProductID: req.ProductID,
					MinQty:    req.MinQty,
				})
			}
			payload = append(payload, plan)
		}
		responses.WriteSuccess(w, payload)
	}
}
