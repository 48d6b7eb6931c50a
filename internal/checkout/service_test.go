package checkout

import (
	"context"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/sipwell/storefront-backend/internal/addresses"
	"github.com/sipwell/storefront-backend/internal/cart"
	"github.com/sipwell/storefront-backend/internal/coins"
	"github.com/sipwell/storefront-backend/internal/coupons"
	"github.com/sipwell/storefront-backend/internal/orders"
	"github.com/sipwell/storefront-backend/internal/plans"
	"github.com/sipwell/storefront-backend/pkg/db/models"
	"github.com/sipwell/storefront-backend/pkg/enums"
	pkgerrors "github.com/sipwell/storefront-backend/pkg/errors"
	"github.com/sipwell/storefront-backend/pkg/logger"
	"github.com/sipwell/storefront-backend/pkg/razorpay"
	"github.com/sipwell/storefront-backend/pkg/types"
)

type stubGateway struct {
	intents       int
	intentErr     error
	verifyOK      bool
	lastAmount    int64
	lastReceipt   string
	verifyCalls   int
	gatewayOrders []string
}

func (g *stubGateway) CreateIntent(_ context.Context, params razorpay.IntentCreateParams) (*razorpay.PaymentIntent, error) {
	if g.intentErr != nil {
		return nil, g.intentErr
	}
	g.intents++
	g.lastAmount = params.AmountMinorUnits
	g.lastReceipt = params.Receipt
	orderID := "order_stub_" + uuid.NewString()[:8]
	g.gatewayOrders = append(g.gatewayOrders, orderID)
	return &razorpay.PaymentIntent{
		GatewayOrderID:   orderID,
		AmountMinorUnits: params.AmountMinorUnits,
		Currency:         string(params.Currency),
		KeyID:            "rzp_test_stub",
	}, nil
}

func (g *stubGateway) VerifyPaymentSignature(_, _, _ string) bool {
	g.verifyCalls++
	return g.verifyOK
}

type checkoutEnv struct {
	conn    *gorm.DB
	svc     Service
	cartSvc cart.Service
	gateway *stubGateway
	user    types.Identity
	address models.Address
}

func newCheckoutEnv(t *testing.T) *checkoutEnv {
	t.Helper()
	dsn := "file:checkout_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(
		&models.User{},
		&models.Address{},
		&models.SubscriptionPlan{},
		&models.PlanRequirement{},
		&models.Coupon{},
		&models.CoinBalance{},
		&models.CoinLedgerEvent{},
		&models.CartRecord{},
		&models.CartLine{},
		&models.CheckoutSession{},
		&models.Order{},
		&models.OrderLineItem{},
		&models.OutboxEvent{},
	))

	logg := logger.New(logger.Options{
		ServiceName: "checkout-test",
		Level:       logger.ParseLevel("error"),
		Output:      io.Discard,
	})

	couponValidator, err := coupons.NewValidator(coupons.NewRepository(conn))
	require.NoError(t, err)
	cartSvc, err := cart.NewService(cart.ServiceParams{
		CartRepo:        cart.NewRepository(conn),
		PlanRepo:        plans.NewRepository(conn),
		CoinRepo:        coins.NewRepository(conn),
		CouponValidator: couponValidator,
	})
	require.NoError(t, err)

	addressSvc, err := addresses.NewService(addresses.NewRepository(conn))
	require.NoError(t, err)

	finalizer, err := orders.NewFinalizer(orders.FinalizerParams{
		OrderRepo: orders.NewRepository(conn),
		CartRepo:  cart.NewRepository(conn),
		CoinRepo:  coins.NewRepository(conn),
		Logger:    logg,
	})
	require.NoError(t, err)

	gateway := &stubGateway{verifyOK: true}
	svc, err := NewService(ServiceParams{
		SessionRepo: NewRepository(conn),
		CartRepo:    cart.NewRepository(conn),
		CartService: cartSvc,
		Addresses:   addressSvc,
		Finalizer:   finalizer,
		OrderRepo:   orders.NewRepository(conn),
		Gateway:     gateway,
		Logger:      logg,
	})
	require.NoError(t, err)

	userID := uuid.New()
	user := types.UserIdentity(userID)
	address, err := addressSvc.Create(context.Background(), userID, addresses.CreateAddressInput{
		Name:       "A Shopper",
		Line1:      "12 Lake View Road",
		City:       "Pune",
		State:      "MH",
		PostalCode: "411001",
		Phone:      "9999999999",
	})
	require.NoError(t, err)

	return &checkoutEnv{
		conn:    conn,
		svc:     svc,
		cartSvc: cartSvc,
		gateway: gateway,
		user:    user,
		address: *address,
	}
}

func (e *checkoutEnv) fillCart(t *testing.T, unitPrice int64, quantity int) {
	t.Helper()
	_, err := e.cartSvc.AddLine(context.Background(), e.user, cart.AddLineInput{
		ProductID:      uuid.New(),
		Name:           "Copper Bottle 1L",
		UnitBasePrice:  decimal.NewFromInt(unitPrice),
		UnitFinalPrice: decimal.NewFromInt(unitPrice),
		Quantity:       quantity,
	})
	require.NoError(t, err)
}

func (e *checkoutEnv) startAndAddress(t *testing.T) *models.CheckoutSession {
	t.Helper()
	result, err := e.svc.Start(context.Background(), e.user)
	require.NoError(t, err)
	result, err = e.svc.SubmitAddress(context.Background(), e.user, result.Session.ID, e.address.ID)
	require.NoError(t, err)
	require.Equal(t, enums.CheckoutStateAwaitingPaymentMethod, result.Session.State)
	return result.Session
}

func TestStartRequiresNonEmptyCart(t *testing.T) {
	env := newCheckoutEnv(t)

	_, err := env.svc.Start(context.Background(), env.user)
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
}

func TestStartRequiresUserIdentity(t *testing.T) {
	env := newCheckoutEnv(t)

	_, err := env.svc.Start(context.Background(), types.GuestIdentity("guest-1"))
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeUnauthorized))
}

func TestSubmitAddressRefusesMissingAddress(t *testing.T) {
	env := newCheckoutEnv(t)
	env.fillCart(t, 400, 2)

	result, err := env.svc.Start(context.Background(), env.user)
	require.NoError(t, err)

	_, err = env.svc.SubmitAddress(context.Background(), env.user, result.Session.ID, uuid.New())
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeAddressRequired))

	fresh, err := env.svc.Get(context.Background(), env.user, result.Session.ID)
	require.NoError(t, err)
	require.Equal(t, enums.CheckoutStateAwaitingAddress, fresh.Session.State)
}

func TestCODHappyPath(t *testing.T) {
	env := newCheckoutEnv(t)
	env.fillCart(t, 400, 2)
	session := env.startAndAddress(t)

	result, err := env.svc.ChoosePaymentMethod(context.Background(), env.user, session.ID, enums.PaymentMethodCOD)
	require.NoError(t, err)
	require.Equal(t, enums.CheckoutStateCompleted, result.Session.State)
	require.NotNil(t, result.Order)
	require.True(t, result.Order.Total.Equal(decimal.NewFromInt(800)))
	require.Equal(t, enums.PaymentMethodCOD, result.Order.PaymentMethod)

	// Cart cleared exactly once, atomically with order creation.
	view, err := env.cartSvc.Get(context.Background(), env.user)
	require.NoError(t, err)
	require.Empty(t, view.Cart.Lines)
}

func TestOnlinePaymentFlow(t *testing.T) {
	env := newCheckoutEnv(t)
	env.fillCart(t, 400, 2)
	session := env.startAndAddress(t)

	result, err := env.svc.ChoosePaymentMethod(context.Background(), env.user, session.ID, enums.PaymentMethodOnline)
	require.NoError(t, err)
	require.Equal(t, enums.CheckoutStateOnlinePaymentPending, result.Session.State)
	require.NotNil(t, result.Instructions)
	require.Equal(t, int64(80000), result.Instructions.AmountMinorUnits)
	require.Equal(t, int64(80000), env.gateway.lastAmount)

	confirm, err := env.svc.ConfirmPayment(context.Background(),
		result.Instructions.GatewayOrderID, "pay_123", "sig_ok")
	require.NoError(t, err)
	require.Equal(t, enums.CheckoutStateCompleted, confirm.Session.State)
	require.NotNil(t, confirm.Order)
	require.Equal(t, "pay_123", *confirm.Order.GatewayPaymentID)
}

func TestDuplicateConfirmReturnsSameOrder(t *testing.T) {
	env := newCheckoutEnv(t)
	env.fillCart(t, 400, 2)
	session := env.startAndAddress(t)

	result, err := env.svc.ChoosePaymentMethod(context.Background(), env.user, session.ID, enums.PaymentMethodOnline)
	require.NoError(t, err)

	first, err := env.svc.ConfirmPayment(context.Background(),
		result.Instructions.GatewayOrderID, "pay_123", "sig_ok")
	require.NoError(t, err)

	second, err := env.svc.ConfirmPayment(context.Background(),
		result.Instructions.GatewayOrderID, "pay_123", "sig_ok")
	require.NoError(t, err)
	require.Equal(t, first.Order.ID, second.Order.ID)

	var orderCount int64
	require.NoError(t, env.conn.Model(&models.Order{}).Count(&orderCount).Error)
	require.Equal(t, int64(1), orderCount)
}

func TestFailedVerificationLeavesCartIntact(t *testing.T) {
	env := newCheckoutEnv(t)
	env.fillCart(t, 400, 2)
	session := env.startAndAddress(t)

	env.gateway.verifyOK = false
	result, err := env.svc.ChoosePaymentMethod(context.Background(), env.user, session.ID, enums.PaymentMethodOnline)
	require.NoError(t, err)

	_, err = env.svc.ConfirmPayment(context.Background(),
		result.Instructions.GatewayOrderID, "pay_123", "sig_bad")
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodePaymentVerificationFailed))

	fresh, err := env.svc.Get(context.Background(), env.user, session.ID)
	require.NoError(t, err)
	require.Equal(t, enums.CheckoutStateFailed, fresh.Session.State)
	require.Nil(t, fresh.Order)

	view, err := env.cartSvc.Get(context.Background(), env.user)
	require.NoError(t, err)
	require.Len(t, view.Cart.Lines, 1)
}

func TestGatewayUnavailableFailsSession(t *testing.T) {
	env := newCheckoutEnv(t)
	env.fillCart(t, 400, 2)
	session := env.startAndAddress(t)

	env.gateway.intentErr = pkgerrors.New(pkgerrors.CodeGatewayUnavailable, "gateway down")
	_, err := env.svc.ChoosePaymentMethod(context.Background(), env.user, session.ID, enums.PaymentMethodOnline)
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeGatewayUnavailable))

	fresh, err := env.svc.Get(context.Background(), env.user, session.ID)
	require.NoError(t, err)
	require.Equal(t, enums.CheckoutStateFailed, fresh.Session.State)
	require.NotNil(t, fresh.Session.FailureCode)
	require.Equal(t, string(pkgerrors.CodeGatewayUnavailable), *fresh.Session.FailureCode)

	// The failed session is terminal; the cart survives for a fresh attempt.
	env.gateway.intentErr = nil
	_, err = env.svc.ChoosePaymentMethod(context.Background(), env.user, session.ID, enums.PaymentMethodOnline)
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeStateConflict))

	view, err := env.cartSvc.Get(context.Background(), env.user)
	require.NoError(t, err)
	require.Len(t, view.Cart.Lines, 1)

	retry, err := env.svc.Start(context.Background(), env.user)
	require.NoError(t, err)
	require.Equal(t, enums.CheckoutStateAwaitingAddress, retry.Session.State)
}

func TestCODFinalizationFailureFailsSession(t *testing.T) {
	env := newCheckoutEnv(t)
	env.fillCart(t, 400, 2)
	session := env.startAndAddress(t)

	// Order insert cannot succeed without the table; finalization must fail.
	require.NoError(t, env.conn.Migrator().DropTable(&models.Order{}))

	_, err := env.svc.ChoosePaymentMethod(context.Background(), env.user, session.ID, enums.PaymentMethodCOD)
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeInternal))

	fresh, err := env.svc.Get(context.Background(), env.user, session.ID)
	require.NoError(t, err)
	require.Equal(t, enums.CheckoutStateFailed, fresh.Session.State)

	// The transaction rolled back; nothing was taken from the cart.
	view, err := env.cartSvc.Get(context.Background(), env.user)
	require.NoError(t, err)
	require.Len(t, view.Cart.Lines, 1)
}

func TestAmountReReadBeforeIntent(t *testing.T) {
	env := newCheckoutEnv(t)
	env.fillCart(t, 400, 2)
	session := env.startAndAddress(t)

	// Cart changes after the session opened; the intent must bill the
	// current amount, not the one from session start.
	env.fillCart(t, 100, 1)

	result, err := env.svc.ChoosePaymentMethod(context.Background(), env.user, session.ID, enums.PaymentMethodOnline)
	require.NoError(t, err)
	require.Equal(t, int64(90000), env.gateway.lastAmount)
	require.True(t, result.Session.FrozenBreakdown.Total.Equal(decimal.NewFromInt(900)))
}

func TestChoosePaymentMethodGuardedByState(t *testing.T) {
	env := newCheckoutEnv(t)
	env.fillCart(t, 400, 2)

	result, err := env.svc.Start(context.Background(), env.user)
	require.NoError(t, err)

	_, err = env.svc.ChoosePaymentMethod(context.Background(), env.user, result.Session.ID, enums.PaymentMethodCOD)
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeStateConflict))
}

func TestFrozenBreakdownUsedAtFinalization(t *testing.T) {
	env := newCheckoutEnv(t)
	env.fillCart(t, 400, 2)
	session := env.startAndAddress(t)

	result, err := env.svc.ChoosePaymentMethod(context.Background(), env.user, session.ID, enums.PaymentMethodOnline)
	require.NoError(t, err)

	confirm, err := env.svc.ConfirmPayment(context.Background(),
		result.Instructions.GatewayOrderID, "pay_123", "sig_ok")
	require.NoError(t, err)
	require.True(t, confirm.Order.Total.Equal(result.Session.FrozenBreakdown.Total))
}
