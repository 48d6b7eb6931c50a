package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/sipwell/storefront-backend/api/routes"
	"github.com/sipwell/storefront-backend/internal/addresses"
	"github.com/sipwell/storefront-backend/internal/auth"
	"github.com/sipwell/storefront-backend/internal/cart"
	checkoutsvc "github.com/sipwell/storefront-backend/internal/checkout"
	"github.com/sipwell/storefront-backend/internal/coins"
	"github.com/sipwell/storefront-backend/internal/coupons"
	"github.com/sipwell/storefront-backend/internal/orders"
	"github.com/sipwell/storefront-backend/internal/plans"
	"github.com/sipwell/storefront-backend/internal/users"
	"github.com/sipwell/storefront-backend/pkg/auth/session"
	"github.com/sipwell/storefront-backend/pkg/config"
	"github.com/sipwell/storefront-backend/pkg/db"
	"github.com/sipwell/storefront-backend/pkg/logger"
	"github.com/sipwell/storefront-backend/pkg/metrics"
	"github.com/sipwell/storefront-backend/pkg/migrate"
	"github.com/sipwell/storefront-backend/pkg/outbox"
	"github.com/sipwell/storefront-backend/pkg/razorpay"
	"github.com/sipwell/storefront-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		logg.Error(context.Background(), "failed to create session manager", err)
		os.Exit(1)
	}
	guestManager, err := session.NewGuestManager(redisClient, cfg.Checkout)
	if err != nil {
		logg.Error(context.Background(), "failed to create guest session manager", err)
		os.Exit(1)
	}

	gateway, err := razorpay.NewClient(context.Background(), cfg.Razorpay, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create payment gateway client", err)
		os.Exit(1)
	}

	promRegistry := prometheus.NewRegistry()
	checkoutMetrics := metrics.NewCheckoutMetrics(promRegistry)

	conn := dbClient.DB()
	outboxService := outbox.NewService(outbox.NewRepository(conn, cfg.Outbox.MaxAttempts), logg)

	couponValidator, err := coupons.NewValidator(coupons.NewRepository(conn))
	if err != nil {
		logg.Error(context.Background(), "failed to create coupon validator", err)
		os.Exit(1)
	}

	cartRepo := cart.NewRepository(conn)
	cartService, err := cart.NewService(cart.ServiceParams{
		CartRepo:        cartRepo,
		PlanRepo:        plans.NewRepository(conn),
		CoinRepo:        coins.NewRepository(conn),
		CouponValidator: couponValidator,
		Metrics:         checkoutMetrics,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cart service", err)
		os.Exit(1)
	}

	mergeService, err := cart.NewMergeService(cart.MergeServiceParams{
		CartRepo:    cartRepo,
		CartService: cartService,
		PendingPlan: guestManager,
		Outbox:      outboxService,
		Logger:      logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cart merge service", err)
		os.Exit(1)
	}

	addressesService, err := addresses.NewService(addresses.NewRepository(conn))
	if err != nil {
		logg.Error(context.Background(), "failed to create addresses service", err)
		os.Exit(1)
	}

	ordersRepo := orders.NewRepository(conn)
	finalizer, err := orders.NewFinalizer(orders.FinalizerParams{
		OrderRepo: ordersRepo,
		CartRepo:  cartRepo,
		CoinRepo:  coins.NewRepository(conn),
		Outbox:    outboxService,
		Logger:    logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create order finalizer", err)
		os.Exit(1)
	}

	checkoutService, err := checkoutsvc.NewService(checkoutsvc.ServiceParams{
		SessionRepo: checkoutsvc.NewRepository(conn),
		CartRepo:    cartRepo,
		CartService: cartService,
		Addresses:   addressesService,
		Finalizer:   finalizer,
		OrderRepo:   ordersRepo,
		Gateway:     gateway,
		Metrics:     checkoutMetrics,
		Logger:      logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create checkout service", err)
		os.Exit(1)
	}

	authService, err := auth.NewService(auth.ServiceParams{
		UserRepo: users.NewRepository(conn),
		Sessions: sessionManager,
		Guests:   guestManager,
		Merger:   mergeService,
		Logger:   logg,
		JWT:      cfg.JWT,
		Password: cfg.Password,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create auth service", err)
		os.Exit(1)
	}

	handler := routes.NewRouter(
		cfg,
		logg,
		dbClient,
		redisClient,
		sessionManager,
		guestManager,
		authService,
		cartService,
		checkoutService,
		addressesService,
		ordersRepo,
		plans.NewRepository(conn),
		promRegistry,
	)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	shutdownCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-shutdownCtx.Done()
		drainCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(drainCtx); err != nil {
			logg.Error(ctx, "server shutdown", err)
		}
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "api server stopped")
}
