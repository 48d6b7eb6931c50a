package orders

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/sipwell/storefront-backend/internal/cart"
	"github.com/sipwell/storefront-backend/internal/coins"
	"github.com/sipwell/storefront-backend/pkg/db/models"
	"github.com/sipwell/storefront-backend/pkg/enums"
	pkgerrors "github.com/sipwell/storefront-backend/pkg/errors"
	"github.com/sipwell/storefront-backend/pkg/logger"
	"github.com/sipwell/storefront-backend/pkg/outbox"
	"github.com/sipwell/storefront-backend/pkg/types"
)

// FinalizeInput carries everything finalization needs. The breakdown is the
// one frozen at intent-creation time, not a fresh pricing of the cart.
type FinalizeInput struct {
	Identity         types.Identity
	Cart             *models.CartRecord
	Breakdown        types.PriceBreakdown
	PaymentMethod    enums.PaymentMethod
	Address          types.AddressSnapshot
	GatewayOrderID   *string
	GatewayPaymentID *string
}

// FinalizerParams groups dependencies for the order finalizer.
type FinalizerParams struct {
	OrderRepo *Repository
	CartRepo  *cart.Repository
	CoinRepo  *coins.Repository
	Outbox    *outbox.Service
	Logger    *logger.Logger
}

// Finalizer persists a priced cart as an immutable order. Order creation,
// cart conversion, coin debit, and the outbox emit happen in one database
// transaction: an order never exists without its cart cleared, and vice
// versa.
type Finalizer struct {
	orderRepo *Repository
	cartRepo  *cart.Repository
	coinRepo  *coins.Repository
	outbox    *outbox.Service
	logger    *logger.Logger
}

// NewFinalizer builds an order finalizer with the required dependencies.
func NewFinalizer(params FinalizerParams) (*Finalizer, error) {
	if params.OrderRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order repo is required")
	}
	if params.CartRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart repo is required")
	}
	if params.CoinRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "coin repo is required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "logger is required")
	}
	return &Finalizer{
		orderRepo: params.OrderRepo,
		cartRepo:  params.CartRepo,
		coinRepo:  params.CoinRepo,
		outbox:    params.Outbox,
		logger:    params.Logger,
	}, nil
}

// Finalize turns the frozen breakdown into an order record and clears the
// cart, atomically.
func (f *Finalizer) Finalize(ctx context.Context, input FinalizeInput) (*models.Order, error) {
	if input.Cart == nil || len(input.Cart.Lines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart has no lines to finalize")
	}
	if !input.PaymentMethod.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment method is required")
	}

	order := f.buildOrder(input)

	err := f.orderRepo.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := f.orderRepo.CreateTx(tx, order); err != nil {
			return err
		}
		if err := f.cartRepo.MarkConvertedTx(tx, input.Cart.ID, time.Now().UTC()); err != nil {
			return err
		}
		if err := f.debitCoins(tx, input, order); err != nil {
			return err
		}
		return f.emitCreated(ctx, tx, input.Identity, order)
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "finalize order")
	}

	logCtx := f.logger.WithFields(ctx, map[string]any{
		"order_id":       order.ID.String(),
		"order_number":   order.OrderNumber,
		"payment_method": order.PaymentMethod.String(),
		"total":          order.Total.String(),
	})
	f.logger.Info(logCtx, "order finalized")

	return order, nil
}

func (f *Finalizer) buildOrder(input FinalizeInput) *models.Order {
	orderID := uuid.New()
	breakdown := input.Breakdown

	var planID *uuid.UUID
	if breakdown.PlanID != nil {
		if parsed, err := uuid.Parse(*breakdown.PlanID); err == nil {
			planID = &parsed
		}
	}

	lineItems := make([]models.OrderLineItem, 0, len(input.Cart.Lines))
	for _, line := range input.Cart.Lines {
		lineItems = append(lineItems, models.OrderLineItem{
			ID:                 uuid.New(),
			OrderID:            orderID,
			ProductID:          line.ProductID,
			Name:               line.Name,
			UnitPrice:          line.UnitFinalPrice,
			Quantity:           line.Quantity,
			SubscriptionMonths: line.SubscriptionMonths,
			LineTotal:          line.UnitFinalPrice.Mul(decimal.NewFromInt(int64(line.Quantity))).Round(2),
		})
	}

	return &models.Order{
		ID:               orderID,
		OrderNumber:      newOrderNumber(),
		OwnerKey:         input.Identity.Key(),
		Status:           enums.OrderStatusPlaced,
		PaymentMethod:    input.PaymentMethod,
		GatewayOrderID:   input.GatewayOrderID,
		GatewayPaymentID: input.GatewayPaymentID,
		Address:          input.Address,
		Currency:         breakdown.Currency,
		PlanID:           planID,
		CouponCode:       breakdown.CouponCode,
		Subtotal:         breakdown.Subtotal,
		EligibleSubtotal: breakdown.EligibleSubtotal,
		PlanDiscount:     breakdown.PlanDiscount,
		CoinDiscount:     breakdown.CoinDiscount,
		CouponDiscount:   breakdown.CouponDiscount,
		Total:            breakdown.Total,
		ItemCount:        breakdown.ItemCount,
		LineItems:        lineItems,
	}
}

// debitCoins converts the currency discount back into coin units at the
// balance's rate and appends the ledger event.
func (f *Finalizer) debitCoins(tx *gorm.DB, input FinalizeInput, order *models.Order) error {
	if input.Breakdown.CoinDiscount.LessThanOrEqual(decimal.Zero) {
		return nil
	}
	if !input.Identity.IsUser() {
		return pkgerrors.New(pkgerrors.CodeValidation, "coin discount on a guest order")
	}
	userID, err := input.Identity.UserID()
	if err != nil {
		return err
	}

	var balance models.CoinBalance
	if err := tx.First(&balance, "user_id = ?", userID).Error; err != nil {
		return err
	}
	coinsSpent := input.Breakdown.CoinDiscount.Div(balance.ConversionRate).Round(2)
	return f.coinRepo.DebitTx(tx, userID, coinsSpent, order.ID, coins.DebitReasonOrder)
}

func (f *Finalizer) emitCreated(ctx context.Context, tx *gorm.DB, identity types.Identity, order *models.Order) error {
	if f.outbox == nil {
		return nil
	}
	return f.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		IdentityKey:   identity.Key(),
		OccurredAt:    time.Now().UTC(),
		Data: outbox.OrderCreatedPayload{
			OrderID:       order.ID,
			OrderNumber:   order.OrderNumber,
			Total:         order.Total,
			Currency:      string(order.Currency),
			PaymentMethod: string(order.PaymentMethod),
			ItemCount:     order.ItemCount,
		},
	})
}

// newOrderNumber mints a human-readable unique order reference.
func newOrderNumber() string {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		// Fall back on a uuid fragment; uniqueness is still enforced by the
		// database constraint.
		return fmt.Sprintf("SW-%s-%s", time.Now().UTC().Format("20060102"), strings.ToUpper(uuid.NewString()[:8]))
	}
	return fmt.Sprintf("SW-%s-%s", time.Now().UTC().Format("20060102"), strings.ToUpper(hex.EncodeToString(buf)))
}
