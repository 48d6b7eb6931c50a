package checkout

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sipwell/storefront-backend/internal/addresses"
	"github.com/sipwell/storefront-backend/internal/cart"
	"github.com/sipwell/storefront-backend/internal/orders"
	"github.com/sipwell/storefront-backend/pkg/db/models"
	"github.com/sipwell/storefront-backend/pkg/enums"
	pkgerrors "github.com/sipwell/storefront-backend/pkg/errors"
	"github.com/sipwell/storefront-backend/pkg/logger"
	"github.com/sipwell/storefront-backend/pkg/metrics"
	"github.com/sipwell/storefront-backend/pkg/razorpay"
	"github.com/sipwell/storefront-backend/pkg/types"
)

// paymentGateway is the slice of the gateway client the orchestrator needs.
type paymentGateway interface {
	CreateIntent(ctx context.Context, params razorpay.IntentCreateParams) (*razorpay.PaymentIntent, error)
	VerifyPaymentSignature(gatewayOrderID, paymentID, signature string) bool
}

// PaymentInstructions is what the client needs to open the gateway widget.
type PaymentInstructions struct {
	GatewayOrderID   string `json:"gatewayOrderId"`
	AmountMinorUnits int64  `json:"amountMinorUnits"`
	Currency         string `json:"currency"`
	KeyID            string `json:"keyId"`
}

// Result is the orchestrator's answer to a transition: the session after the
// move, plus the order once one exists and payment instructions while an
// online payment is pending.
type Result struct {
	Session      *models.CheckoutSession `json:"session"`
	Order        *models.Order           `json:"order,omitempty"`
	Instructions *PaymentInstructions    `json:"payment,omitempty"`
}

// ServiceParams groups dependencies for the checkout orchestrator.
type ServiceParams struct {
	SessionRepo *Repository
	CartRepo    *cart.Repository
	CartService cart.Service
	Addresses   addresses.Service
	Finalizer   *orders.Finalizer
	OrderRepo   *orders.Repository
	Gateway     paymentGateway
	Metrics     *metrics.CheckoutMetrics
	Logger      *logger.Logger
}

// Service drives one checkout attempt from AwaitingAddress to a terminal
// Completed or Failed. Transitions are guarded by the persisted state, so a
// duplicate gateway callback or a stale client cannot move a session twice.
type Service interface {
	Start(ctx context.Context, identity types.Identity) (Result, error)
	Get(ctx context.Context, identity types.Identity, sessionID uuid.UUID) (Result, error)
	SubmitAddress(ctx context.Context, identity types.Identity, sessionID, addressID uuid.UUID) (Result, error)
	ChoosePaymentMethod(ctx context.Context, identity types.Identity, sessionID uuid.UUID, method enums.PaymentMethod) (Result, error)
	ConfirmPayment(ctx context.Context, gatewayOrderID, paymentID, signature string) (Result, error)
}

type service struct {
	sessionRepo *Repository
	cartRepo    *cart.Repository
	cartService cart.Service
	addresses   addresses.Service
	finalizer   *orders.Finalizer
	orderRepo   *orders.Repository
	gateway     paymentGateway
	metrics     *metrics.CheckoutMetrics
	logger      *logger.Logger
}

// NewService builds the checkout orchestrator with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.SessionRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session repo is required")
	}
	if params.CartRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart repo is required")
	}
	if params.CartService == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart service is required")
	}
	if params.Addresses == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "address service is required")
	}
	if params.Finalizer == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order finalizer is required")
	}
	if params.OrderRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order repo is required")
	}
	if params.Gateway == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment gateway is required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "logger is required")
	}
	return &service{
		sessionRepo: params.SessionRepo,
		cartRepo:    params.CartRepo,
		cartService: params.CartService,
		addresses:   params.Addresses,
		finalizer:   params.Finalizer,
		orderRepo:   params.OrderRepo,
		gateway:     params.Gateway,
		metrics:     params.Metrics,
		logger:      params.Logger,
	}, nil
}

// Start opens a checkout attempt for the identity's current cart. Checkout
// requires a signed-in account: addresses and coin debits are user-scoped.
func (s *service) Start(ctx context.Context, identity types.Identity) (Result, error) {
	if !identity.IsUser() {
		return Result{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "checkout requires a signed-in account")
	}

	view, err := s.cartService.Get(ctx, identity)
	if err != nil {
		return Result{}, err
	}
	if len(view.Cart.Lines) == 0 {
		return Result{}, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}

	session := &models.CheckoutSession{
		ID:       uuid.New(),
		OwnerKey: identity.Key(),
		CartID:   view.Cart.ID,
		State:    enums.CheckoutStateAwaitingAddress,
	}
	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return Result{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create checkout session")
	}
	return Result{Session: session}, nil
}

func (s *service) Get(ctx context.Context, identity types.Identity, sessionID uuid.UUID) (Result, error) {
	session, err := s.loadSession(ctx, identity, sessionID)
	if err != nil {
		return Result{}, err
	}
	result := Result{Session: session}
	if session.OrderID != nil {
		order, err := s.orderRepo.FindByID(ctx, *session.OrderID)
		if err == nil {
			result.Order = order
		}
	}
	return result, nil
}

// SubmitAddress moves AwaitingAddress to AwaitingPaymentMethod. A missing or
// foreign address refuses the transition and the session stays put.
func (s *service) SubmitAddress(ctx context.Context, identity types.Identity, sessionID, addressID uuid.UUID) (Result, error) {
	session, err := s.loadSession(ctx, identity, sessionID)
	if err != nil {
		return Result{}, err
	}
	if session.State != enums.CheckoutStateAwaitingAddress {
		return Result{}, stateConflict(session.State)
	}
	if addressID == uuid.Nil {
		return Result{}, pkgerrors.New(pkgerrors.CodeAddressRequired, "delivery address is required")
	}

	userID, err := identity.UserID()
	if err != nil {
		return Result{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "parse identity")
	}
	if _, err := s.addresses.Get(ctx, addressID, userID); err != nil {
		if pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
			return Result{}, pkgerrors.New(pkgerrors.CodeAddressRequired, "delivery address not found")
		}
		return Result{}, err
	}

	session.AddressID = &addressID
	session.State = enums.CheckoutStateAwaitingPaymentMethod
	if err := s.sessionRepo.Save(ctx, session); err != nil {
		return Result{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save checkout session")
	}
	return Result{Session: session}, nil
}

// ChoosePaymentMethod branches the machine. Cash-on-delivery finalizes
// immediately; online re-reads the amount from the pricing engine, freezes
// the breakdown, and creates the gateway intent.
func (s *service) ChoosePaymentMethod(ctx context.Context, identity types.Identity, sessionID uuid.UUID, method enums.PaymentMethod) (Result, error) {
	session, err := s.loadSession(ctx, identity, sessionID)
	if err != nil {
		return Result{}, err
	}
	if session.State != enums.CheckoutStateAwaitingPaymentMethod {
		return Result{}, stateConflict(session.State)
	}
	if !method.IsValid() {
		return Result{}, pkgerrors.New(pkgerrors.CodeValidation, "unknown payment method")
	}

	// The amount is re-read immediately before any money-adjacent step; the
	// cart may have changed since the session was opened.
	view, err := s.cartService.Get(ctx, identity)
	if err != nil {
		return Result{}, err
	}
	if view.Cart.ID != session.CartID || len(view.Cart.Lines) == 0 {
		return Result{}, pkgerrors.New(pkgerrors.CodeStateConflict, "cart changed since checkout started")
	}

	breakdown := view.Breakdown
	session.PaymentMethod = &method
	session.FrozenBreakdown = &breakdown

	switch method {
	case enums.PaymentMethodCOD:
		session.State = enums.CheckoutStateCashConfirmed
		if err := s.sessionRepo.Save(ctx, session); err != nil {
			return Result{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save checkout session")
		}
		return s.complete(ctx, identity, session, nil)

	default:
		if breakdown.TotalMinorUnits() <= 0 {
			return Result{}, pkgerrors.New(pkgerrors.CodeValidation, "zero-amount orders must use cash on delivery")
		}
		intent, err := s.gateway.CreateIntent(ctx, razorpay.IntentCreateParams{
			AmountMinorUnits: breakdown.TotalMinorUnits(),
			Currency:         breakdown.Currency,
			Receipt:          session.ID.String(),
			Notes: map[string]string{
				"checkout_session_id": session.ID.String(),
				"cart_id":             session.CartID.String(),
			},
		})
		if err != nil {
			// Anything blocking money movement halts the attempt; the
			// shopper starts a fresh session once the gateway is back.
			return Result{}, s.fail(ctx, session, pkgerrors.CodeGatewayUnavailable, "payment gateway unavailable")
		}

		session.GatewayOrderID = &intent.GatewayOrderID
		session.State = enums.CheckoutStateOnlinePaymentPending
		if err := s.sessionRepo.Save(ctx, session); err != nil {
			return Result{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save checkout session")
		}
		return Result{
			Session: session,
			Instructions: &PaymentInstructions{
				GatewayOrderID:   intent.GatewayOrderID,
				AmountMinorUnits: intent.AmountMinorUnits,
				Currency:         intent.Currency,
				KeyID:            intent.KeyID,
			},
		}, nil
	}
}

// ConfirmPayment handles the gateway callback. The guarded transition into
// Verifying makes duplicate deliveries idempotent: the second caller finds
// the session Completed and gets the recorded order back.
func (s *service) ConfirmPayment(ctx context.Context, gatewayOrderID, paymentID, signature string) (Result, error) {
	if gatewayOrderID == "" || paymentID == "" || signature == "" {
		return Result{}, pkgerrors.New(pkgerrors.CodeValidation, "payment confirmation fields are required")
	}

	session, err := s.sessionRepo.FindByGatewayOrderID(ctx, gatewayOrderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Result{}, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "checkout session not found")
		}
		return Result{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load checkout session")
	}

	switch session.State {
	case enums.CheckoutStateCompleted:
		return s.existingOrder(ctx, session)
	case enums.CheckoutStateFailed:
		return Result{}, pkgerrors.New(pkgerrors.CodePaymentVerificationFailed, "checkout already failed")
	case enums.CheckoutStateOnlinePaymentPending:
	default:
		return Result{}, stateConflict(session.State)
	}

	moved, err := s.sessionRepo.TransitionState(ctx, session.ID,
		enums.CheckoutStateOnlinePaymentPending, enums.CheckoutStateVerifying)
	if err != nil {
		return Result{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "transition checkout session")
	}
	if !moved {
		// Lost the race; re-read and report whatever the winner produced.
		fresh, err := s.sessionRepo.FindByGatewayOrderID(ctx, gatewayOrderID)
		if err != nil {
			return Result{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload checkout session")
		}
		if fresh.State == enums.CheckoutStateCompleted {
			return s.existingOrder(ctx, fresh)
		}
		return Result{}, stateConflict(fresh.State)
	}
	session.State = enums.CheckoutStateVerifying

	// Signature verification is a local HMAC for this gateway; there is no
	// network round-trip to time out.
	started := time.Now()
	verified := s.gateway.VerifyPaymentSignature(gatewayOrderID, paymentID, signature)
	elapsed := time.Since(started)

	if !verified {
		s.metrics.ObserveVerifyDuration("rejected", elapsed)
		return Result{}, s.fail(ctx, session, pkgerrors.CodePaymentVerificationFailed, "payment signature mismatch")
	}
	s.metrics.ObserveVerifyDuration("verified", elapsed)

	identity, err := types.ParseIdentityKey(session.OwnerKey)
	if err != nil {
		return Result{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "parse session owner")
	}
	return s.complete(ctx, identity, session, &paymentID)
}

// complete finalizes the order from the frozen breakdown and marks the
// session Completed. A finalization failure fails the session; the cart
// stays intact either way until the transaction commits.
func (s *service) complete(ctx context.Context, identity types.Identity, session *models.CheckoutSession, gatewayPaymentID *string) (Result, error) {
	if session.FrozenBreakdown == nil {
		return Result{}, pkgerrors.New(pkgerrors.CodeInternal, "session has no frozen breakdown")
	}
	if session.AddressID == nil {
		return Result{}, pkgerrors.New(pkgerrors.CodeAddressRequired, "session has no delivery address")
	}

	userID, err := identity.UserID()
	if err != nil {
		return Result{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "parse identity")
	}
	address, err := s.addresses.Get(ctx, *session.AddressID, userID)
	if err != nil {
		return Result{}, err
	}
	cartRecord, err := s.cartRepo.FindByID(ctx, session.CartID)
	if err != nil {
		return Result{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}

	method := enums.PaymentMethodCOD
	if session.PaymentMethod != nil {
		method = *session.PaymentMethod
	}

	order, err := s.finalizer.Finalize(ctx, orders.FinalizeInput{
		Identity:         identity,
		Cart:             cartRecord,
		Breakdown:        *session.FrozenBreakdown,
		PaymentMethod:    method,
		Address:          addresses.Snapshot(address),
		GatewayOrderID:   session.GatewayOrderID,
		GatewayPaymentID: gatewayPaymentID,
	})
	if err != nil {
		// Both branches halt here; CashConfirmed has no other exit, so a
		// stranded session would be unrecoverable.
		return Result{}, s.fail(ctx, session, pkgerrors.CodeInternal, "order finalization failed")
	}

	session.OrderID = &order.ID
	session.State = enums.CheckoutStateCompleted
	session.FailureCode = nil
	if err := s.sessionRepo.Save(ctx, session); err != nil {
		return Result{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save checkout session")
	}

	s.metrics.IncOutcome("completed", method.String())
	logCtx := s.logger.WithFields(ctx, map[string]any{
		"checkout_session_id": session.ID.String(),
		"order_id":            order.ID.String(),
	})
	s.logger.Info(logCtx, "checkout completed")

	return Result{Session: session, Order: order}, nil
}

// fail parks the session in Failed with a failure code. The cart is never
// touched on this path.
func (s *service) fail(ctx context.Context, session *models.CheckoutSession, code pkgerrors.Code, message string) error {
	failureCode := string(code)
	session.FailureCode = &failureCode
	session.State = enums.CheckoutStateFailed
	if err := s.sessionRepo.Save(ctx, session); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save checkout session")
	}

	method := ""
	if session.PaymentMethod != nil {
		method = session.PaymentMethod.String()
	}
	s.metrics.IncOutcome("failed", method)
	s.logger.Warn(ctx, "checkout failed: "+message)

	return pkgerrors.New(code, message)
}

func (s *service) existingOrder(ctx context.Context, session *models.CheckoutSession) (Result, error) {
	result := Result{Session: session}
	if session.OrderID != nil {
		order, err := s.orderRepo.FindByID(ctx, *session.OrderID)
		if err != nil {
			return Result{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		result.Order = order
	}
	return result, nil
}

func (s *service) loadSession(ctx context.Context, identity types.Identity, sessionID uuid.UUID) (*models.CheckoutSession, error) {
	if !identity.IsUser() {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "checkout requires a signed-in account")
	}
	session, err := s.sessionRepo.FindForOwner(ctx, sessionID, identity.Key())
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "checkout session not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load checkout session")
	}
	return session, nil
}

func stateConflict(state enums.CheckoutState) error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, "operation not allowed in state "+state.String())
}
