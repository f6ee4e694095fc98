package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stripe/stripe-go/v84"

	"github.com/angelmondragon/premiumvideo-backend/api/controllers"
	ordercontrollers "github.com/angelmondragon/premiumvideo-backend/api/controllers/orders"
	webhookcontrollers "github.com/angelmondragon/premiumvideo-backend/api/controllers/webhooks"
	"github.com/angelmondragon/premiumvideo-backend/api/middleware"
	"github.com/angelmondragon/premiumvideo-backend/internal/cart"
	checkoutsvc "github.com/angelmondragon/premiumvideo-backend/internal/checkout"
	"github.com/angelmondragon/premiumvideo-backend/internal/orders"
	"github.com/angelmondragon/premiumvideo-backend/pkg/config"
	"github.com/angelmondragon/premiumvideo-backend/pkg/db"
	"github.com/angelmondragon/premiumvideo-backend/pkg/logger"
	"github.com/angelmondragon/premiumvideo-backend/pkg/redis"
)

// RedisStore is the Redis surface the HTTP layer needs.
type RedisStore interface {
	middleware.IdempotencyStore
	redis.Pinger
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// StripeVerifier checks webhook signatures.
type StripeVerifier interface {
	ConstructEvent(payload []byte, signature string) (stripe.Event, error)
}

// WebhookGuard dedupes provider event deliveries.
type WebhookGuard interface {
	Claim(ctx context.Context, eventID string) (bool, error)
	Release(ctx context.Context, eventID string) error
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisStore RedisStore,
	gatherer prometheus.Gatherer,
	cartService cart.Service,
	checkoutService checkoutsvc.Service,
	confirmer controllers.CheckoutConfirmer,
	ordersSvc orders.Service,
	stripeVerifier StripeVerifier,
	stripeWebhookService webhookcontrollers.StripeWebhookService,
	stripeWebhookGuard WebhookGuard,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.Stripe.FrontendURL),
	)

	checks := []controllers.ReadinessCheck{{Name: "postgres", Pinger: dbP}}
	if redisStore != nil {
		checks = append(checks, controllers.ReadinessCheck{Name: "redis", Pinger: redisStore})
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, checks...))
	})

	if gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/stripe", webhookcontrollers.StripeWebhook(stripeWebhookService, stripeVerifier, stripeWebhookGuard, logg))
	})

	// Idempotency is attached per route so it sees the full route pattern.
	var idempotent func(http.Handler) http.Handler = passthrough
	var checkoutLimit func(http.Handler) http.Handler = passthrough
	if redisStore != nil {
		idempotent = middleware.Idempotency(redisStore, logg)
		checkoutLimit = middleware.RateLimit(middleware.RateLimitPolicy{
			Name:   "checkout",
			Window: cfg.Checkout.RateLimitWindow,
			Limit:  cfg.Checkout.RateLimit,
		}, redisStore, logg)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", controllers.CartGet(cartService, logg))
			r.With(idempotent).Post("/add", controllers.CartAddItem(cartService, logg))
			r.With(idempotent).Delete("/remove/{itemId}", controllers.CartRemoveItem(cartService, logg))
		})

		r.Route("/checkout", func(r chi.Router) {
			r.Use(checkoutLimit)
			r.With(idempotent).Post("/create-session", controllers.CheckoutCreateSession(checkoutService, logg))
			r.Post("/confirm", controllers.CheckoutConfirm(confirmer, logg))
		})

		r.Get("/orders", ordercontrollers.List(ordersSvc, logg))
	})

	return r
}

func passthrough(next http.Handler) http.Handler {
	return next
}
