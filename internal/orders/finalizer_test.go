package orders

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

	"github.com/sipwell/storefront-backend/internal/cart"
	"github.com/sipwell/storefront-backend/internal/coins"
	"github.com/sipwell/storefront-backend/pkg/db/models"
	"github.com/sipwell/storefront-backend/pkg/enums"
	pkgerrors "github.com/sipwell/storefront-backend/pkg/errors"
	"github.com/sipwell/storefront-backend/pkg/logger"
	"github.com/sipwell/storefront-backend/pkg/outbox"
	"github.com/sipwell/storefront-backend/pkg/types"
)

func newOrderTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:orders_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(
		&models.CartRecord{},
		&models.CartLine{},
		&models.CoinBalance{},
		&models.CoinLedgerEvent{},
		&models.Order{},
		&models.OrderLineItem{},
		&models.OutboxEvent{},
	))
	return conn
}

func newFinalizer(t *testing.T, conn *gorm.DB) *Finalizer {
	t.Helper()
	logg := logger.New(logger.Options{
		ServiceName: "orders-test",
		Level:       logger.ParseLevel("error"),
		Output:      io.Discard,
	})
	finalizer, err := NewFinalizer(FinalizerParams{
		OrderRepo: NewRepository(conn),
		CartRepo:  cart.NewRepository(conn),
		CoinRepo:  coins.NewRepository(conn),
		Outbox:    outbox.NewService(outbox.NewRepository(conn, 0), logg),
		Logger:    logg,
	})
	require.NoError(t, err)
	return finalizer
}

func seedPricedCart(t *testing.T, conn *gorm.DB, identity types.Identity) *models.CartRecord {
	t.Helper()
	record := models.CartRecord{
		ID:       uuid.New(),
		OwnerKey: identity.Key(),
		Status:   enums.CartStatusActive,
		Currency: enums.CurrencyINR,
		Lines: []models.CartLine{
			{
				ID:                 uuid.New(),
				ProductID:          uuid.New(),
				Name:               "Copper Bottle 1L",
				UnitBasePrice:      decimal.NewFromInt(500),
				UnitFinalPrice:     decimal.NewFromInt(400),
				Quantity:           2,
				SubscriptionMonths: 1,
			},
		},
	}
	require.NoError(t, conn.Create(&record).Error)
	return &record
}

func testBreakdown(total int64, itemCount int) types.PriceBreakdown {
	breakdown := types.ZeroBreakdown()
	breakdown.Subtotal = decimal.NewFromInt(total)
	breakdown.Total = decimal.NewFromInt(total)
	breakdown.ItemCount = itemCount
	return breakdown
}

func testAddress() types.AddressSnapshot {
	return types.AddressSnapshot{
		Name:       "A Shopper",
		Line1:      "12 Lake View Road",
		City:       "Pune",
		State:      "MH",
		PostalCode: "411001",
		Country:    "IN",
		Phone:      "9999999999",
	}
}

func TestFinalizeCreatesOrderAndConvertsCart(t *testing.T) {
	conn := newOrderTestDB(t)
	finalizer := newFinalizer(t, conn)
	identity := types.UserIdentity(uuid.New())
	record := seedPricedCart(t, conn, identity)

	order, err := finalizer.Finalize(context.Background(), FinalizeInput{
		Identity:      identity,
		Cart:          record,
		Breakdown:     testBreakdown(800, 2),
		PaymentMethod: enums.PaymentMethodCOD,
		Address:       testAddress(),
	})
	require.NoError(t, err)
	require.NotEmpty(t, order.OrderNumber)
	require.True(t, order.Total.Equal(decimal.NewFromInt(800)))
	require.Len(t, order.LineItems, 1)
	require.True(t, order.LineItems[0].LineTotal.Equal(decimal.NewFromInt(800)))

	var cartRow models.CartRecord
	require.NoError(t, conn.First(&cartRow, "id = ?", record.ID).Error)
	require.Equal(t, enums.CartStatusConverted, cartRow.Status)
	require.NotNil(t, cartRow.ConvertedAt)

	var outboxRows []models.OutboxEvent
	require.NoError(t, conn.Find(&outboxRows).Error)
	require.Len(t, outboxRows, 1)
	require.Equal(t, enums.EventOrderCreated, outboxRows[0].EventType)
	require.Equal(t, order.ID, outboxRows[0].AggregateID)
}

func TestFinalizeDebitsCoins(t *testing.T) {
	conn := newOrderTestDB(t)
	finalizer := newFinalizer(t, conn)
	userID := uuid.New()
	identity := types.UserIdentity(userID)
	record := seedPricedCart(t, conn, identity)

	require.NoError(t, conn.Create(&models.CoinBalance{
		UserID:         userID,
		Balance:        decimal.NewFromInt(200),
		ConversionRate: decimal.NewFromInt(1),
	}).Error)

	breakdown := testBreakdown(800, 2)
	breakdown.CoinDiscount = decimal.NewFromInt(150)
	breakdown.Total = decimal.NewFromInt(650)

	order, err := finalizer.Finalize(context.Background(), FinalizeInput{
		Identity:      identity,
		Cart:          record,
		Breakdown:     breakdown,
		PaymentMethod: enums.PaymentMethodCOD,
		Address:       testAddress(),
	})
	require.NoError(t, err)

	var balance models.CoinBalance
	require.NoError(t, conn.First(&balance, "user_id = ?", userID).Error)
	require.True(t, balance.Balance.Equal(decimal.NewFromInt(50)))

	var events []models.CoinLedgerEvent
	require.NoError(t, conn.Find(&events, "user_id = ?", userID).Error)
	require.Len(t, events, 1)
	require.True(t, events[0].Delta.Equal(decimal.NewFromInt(-150)))
	require.Equal(t, order.ID, *events[0].OrderID)
}

func TestFinalizeRollsBackWhenCoinDebitFails(t *testing.T) {
	conn := newOrderTestDB(t)
	finalizer := newFinalizer(t, conn)
	userID := uuid.New()
	identity := types.UserIdentity(userID)
	record := seedPricedCart(t, conn, identity)

	// Balance too small for the discount: the whole transaction must abort.
	require.NoError(t, conn.Create(&models.CoinBalance{
		UserID:         userID,
		Balance:        decimal.NewFromInt(10),
		ConversionRate: decimal.NewFromInt(1),
	}).Error)

	breakdown := testBreakdown(800, 2)
	breakdown.CoinDiscount = decimal.NewFromInt(150)
	breakdown.Total = decimal.NewFromInt(650)

	_, err := finalizer.Finalize(context.Background(), FinalizeInput{
		Identity:      identity,
		Cart:          record,
		Breakdown:     breakdown,
		PaymentMethod: enums.PaymentMethodCOD,
		Address:       testAddress(),
	})
	require.Error(t, err)

	var orderCount int64
	require.NoError(t, conn.Model(&models.Order{}).Count(&orderCount).Error)
	require.Zero(t, orderCount)

	var cartRow models.CartRecord
	require.NoError(t, conn.First(&cartRow, "id = ?", record.ID).Error)
	require.Equal(t, enums.CartStatusActive, cartRow.Status)

	var outboxCount int64
	require.NoError(t, conn.Model(&models.OutboxEvent{}).Count(&outboxCount).Error)
	require.Zero(t, outboxCount)
}

func TestFinalizeRejectsEmptyCart(t *testing.T) {
	conn := newOrderTestDB(t)
	finalizer := newFinalizer(t, conn)
	identity := types.UserIdentity(uuid.New())

	_, err := finalizer.Finalize(context.Background(), FinalizeInput{
		Identity:      identity,
		Cart:          &models.CartRecord{ID: uuid.New()},
		Breakdown:     testBreakdown(0, 0),
		PaymentMethod: enums.PaymentMethodCOD,
		Address:       testAddress(),
	})
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
}

func TestListForOwnerReturnsNewestFirst(t *testing.T) {
	conn := newOrderTestDB(t)
	finalizer := newFinalizer(t, conn)
	identity := types.UserIdentity(uuid.New())

	for i := 0; i < 2; i++ {
		record := seedPricedCart(t, conn, identity)
		_, err := finalizer.Finalize(context.Background(), FinalizeInput{
			Identity:      identity,
			Cart:          record,
			Breakdown:     testBreakdown(800, 2),
			PaymentMethod: enums.PaymentMethodCOD,
			Address:       testAddress(),
		})
		require.NoError(t, err)
	}

	repo := NewRepository(conn)
	list, err := repo.ListForOwner(context.Background(), identity.Key(), 10)
	require.NoError(t, err)
	require.Len(t, list, 2)
}
