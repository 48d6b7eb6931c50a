package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sipwell/storefront-backend/api/controllers"
	"github.com/sipwell/storefront-backend/api/middleware"
	"github.com/sipwell/storefront-backend/internal/addresses"
	"github.com/sipwell/storefront-backend/internal/auth"
	"github.com/sipwell/storefront-backend/internal/cart"
	checkoutsvc "github.com/sipwell/storefront-backend/internal/checkout"
	"github.com/sipwell/storefront-backend/internal/orders"
	"github.com/sipwell/storefront-backend/internal/plans"
	"github.com/sipwell/storefront-backend/pkg/auth/session"
	"github.com/sipwell/storefront-backend/pkg/config"
	"github.com/sipwell/storefront-backend/pkg/db"
	"github.com/sipwell/storefront-backend/pkg/logger"
	"github.com/sipwell/storefront-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	sessionManager session.AccessSessionChecker,
	guestManager *session.GuestManager,
	authService auth.Service,
	cartService cart.Service,
	checkoutService checkoutsvc.Service,
	addressesService addresses.Service,
	ordersRepo *orders.Repository,
	plansRepo *plans.Repository,
	promRegistry *prometheus.Registry,
) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginEmailLimit,
	)
	registerPolicy := middleware.NewAuthRateLimitPolicy(
		"register",
		cfg.AuthRateLimit.RegisterWindow,
		cfg.AuthRateLimit.RegisterIPLimit,
		cfg.AuthRateLimit.RegisterEmailLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, map[string]controllers.Pinger{
			"database": dbP,
			"redis":    redisClient,
		}))
	})

	if promRegistry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.With(middleware.AuthRateLimit(loginPolicy, redisClient, logg)).Post("/login", controllers.AuthLogin(authService, logg))
		r.With(middleware.AuthRateLimit(registerPolicy, redisClient, logg)).Post("/register", controllers.AuthRegister(authService, logg))
		r.Post("/refresh", controllers.AuthRefresh(authService, logg))
		r.Post("/guest", controllers.AuthGuest(authService, logg))
	})

	r.Get("/api/v1/plans", controllers.PlansList(plansRepo, logg))

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Identity(cfg.JWT, sessionManager, guestManager, logg))
		r.Use(middleware.Idempotency(redisClient, logg))

		r.Post("/auth/logout", controllers.AuthLogout(authService, logg))

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", controllers.CartGet(cartService, logg))
			r.Delete("/", controllers.CartClear(cartService, logg))
			r.Post("/lines", controllers.CartAddLine(cartService, logg))
			r.Patch("/lines/{productId}", controllers.CartSetLineQuantity(cartService, logg))
			r.Delete("/lines/{productId}", controllers.CartRemoveLine(cartService, logg))
			r.Post("/plan", controllers.CartSelectPlan(cartService, guestManager, logg))
			r.Delete("/plan", controllers.CartClearPlan(cartService, guestManager, logg))
			r.Post("/coins", controllers.CartToggleCoins(cartService, logg))
			r.Post("/coupon", controllers.CartApplyCoupon(cartService, logg))
			r.Delete("/coupon", controllers.CartRemoveCoupon(cartService, logg))
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireUser(logg))

			r.Route("/checkout", func(r chi.Router) {
				r.Post("/", controllers.CheckoutStart(checkoutService, logg))
				r.Get("/{sessionId}", controllers.CheckoutGet(checkoutService, logg))
				r.Post("/{sessionId}/address", controllers.CheckoutSubmitAddress(checkoutService, logg))
				r.Post("/{sessionId}/payment-method", controllers.CheckoutChoosePaymentMethod(checkoutService, logg))
				r.Post("/{sessionId}/confirm", controllers.CheckoutConfirm(checkoutService, logg))
			})

			r.Route("/addresses", func(r chi.Router) {
				r.Get("/", controllers.AddressesList(addressesService, logg))
				r.Post("/", controllers.AddressesCreate(addressesService, logg))
				r.Delete("/{addressId}", controllers.AddressesDelete(addressesService, logg))
			})

			r.Route("/orders", func(r chi.Router) {
				r.Get("/", controllers.OrdersList(ordersRepo, logg))
				r.Get("/{orderId}", controllers.OrderGet(ordersRepo, logg))
			})
		})
	})

	return r
}
