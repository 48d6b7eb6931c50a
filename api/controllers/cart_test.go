package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sipwell/storefront-backend/api/middleware"
	"github.com/sipwell/storefront-backend/internal/cart"
	"github.com/sipwell/storefront-backend/pkg/db/models"
	"github.com/sipwell/storefront-backend/pkg/enums"
	pkgerrors "github.com/sipwell/storefront-backend/pkg/errors"
	"github.com/sipwell/storefront-backend/pkg/types"
)

type stubCartService struct {
	view    cart.View
	err     error
	addedQt int
}

func newStubCartService() *stubCartService {
	cartID := uuid.New()
	return &stubCartService{
		view: cart.View{
			Cart: &models.CartRecord{
				ID:       cartID,
				OwnerKey: "user:test",
				Currency: enums.CurrencyINR,
				Lines: []models.CartLine{{
					ID:             uuid.New(),
					CartID:         cartID,
					ProductID:      uuid.New(),
					Name:           "Monthly Water Pack",
					UnitBasePrice:  decimal.NewFromInt(500),
					UnitFinalPrice: decimal.NewFromInt(450),
					Quantity:       2,
				}},
			},
			Breakdown: types.PriceBreakdown{
				Subtotal: decimal.NewFromInt(900),
				Total:    decimal.NewFromInt(900),
			},
		},
	}
}

func (s *stubCartService) Get(context.Context, types.Identity) (cart.View, error) {
	return s.view, s.err
}

func (s *stubCartService) AddLine(_ context.Context, _ types.Identity, input cart.AddLineInput) (cart.View, error) {
	s.addedQt = input.Quantity
	return s.view, s.err
}

func (s *stubCartService) SetLineQuantity(_ context.Context, _ types.Identity, _ uuid.UUID, quantity int) (cart.View, error) {
	if quantity < 1 {
		return cart.View{}, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1; use remove to drop the line")
	}
	return s.view, s.err
}

func (s *stubCartService) RemoveLine(context.Context, types.Identity, uuid.UUID) (cart.View, error) {
	return s.view, s.err
}

func (s *stubCartService) SelectPlan(context.Context, types.Identity, *uuid.UUID) (cart.View, error) {
	return s.view, s.err
}

func (s *stubCartService) ToggleCoinUsage(context.Context, types.Identity, bool) (cart.View, error) {
	return s.view, s.err
}

func (s *stubCartService) ApplyCoupon(context.Context, types.Identity, string) (cart.View, error) {
	return s.view, s.err
}

func (s *stubCartService) RemoveCoupon(context.Context, types.Identity) (cart.View, error) {
	return s.view, s.err
}

func (s *stubCartService) Clear(context.Context, types.Identity) (cart.View, error) {
	return s.view, s.err
}

func userRequest(method, target string, body string) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	return req.WithContext(middleware.WithIdentity(req.Context(), types.UserIdentity(uuid.New())))
}

func TestCartGetRendersView(t *testing.T) {
	svc := newStubCartService()
	rec := httptest.NewRecorder()

	CartGet(svc, nil)(rec, userRequest(http.MethodGet, "/api/v1/cart", ""))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var envelope struct {
		Data cartPayload `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(envelope.Data.Lines) != 1 {
		t.Fatalf("expected one line, got %d", len(envelope.Data.Lines))
	}
	if envelope.Data.Lines[0].Name != "Monthly Water Pack" {
		t.Fatalf("unexpected line name %q", envelope.Data.Lines[0].Name)
	}
	if !envelope.Data.Breakdown.Total.Equal(decimal.NewFromInt(900)) {
		t.Fatalf("unexpected total %s", envelope.Data.Breakdown.Total)
	}
}

func TestCartAddLineValidatesBody(t *testing.T) {
	svc := newStubCartService()
	rec := httptest.NewRecorder()

	CartAddLine(svc, nil)(rec, userRequest(http.MethodPost, "/api/v1/cart/lines", `{"quantity":2}`))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing fields, got %d", rec.Code)
	}
	if svc.addedQt != 0 {
		t.Fatalf("service should not be called on invalid body")
	}
}

func TestCartSetLineQuantityRejectsBadPathParam(t *testing.T) {
	svc := newStubCartService()
	rec := httptest.NewRecorder()

	req := userRequest(http.MethodPatch, "/api/v1/cart/lines/not-a-uuid", `{"quantity":3}`)
	rc := chi.NewRouteContext()
	rc.URLParams.Add("productId", "not-a-uuid")
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))

	CartSetLineQuantity(svc, nil)(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad uuid, got %d", rec.Code)
	}
}

func TestCartSelectPlanStashesForGuests(t *testing.T) {
	svc := newStubCartService()
	stash := &stubPlanStash{}
	rec := httptest.NewRecorder()

	planID := uuid.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/cart/plan", strings.NewReader(`{"planId":"`+planID.String()+`"}`))
	req = req.WithContext(middleware.WithIdentity(req.Context(), types.GuestIdentity("guest-token-9")))

	CartSelectPlan(svc, stash, nil)(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if stash.token != "guest-token-9" || stash.planID != planID.String() {
		t.Fatalf("plan not stashed: %+v", stash)
	}
}

type stubPlanStash struct {
	token  string
	planID string
}

func (s *stubPlanStash) StashPendingPlan(_ context.Context, token, planID string) error {
	s.token = token
	s.planID = planID
	return nil
}
