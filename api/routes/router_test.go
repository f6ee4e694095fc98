package routes

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stripe/stripe-go/v84"

	"github.com/angelmondragon/premiumvideo-backend/internal/cart"
	"github.com/angelmondragon/premiumvideo-backend/internal/checkout"
	"github.com/angelmondragon/premiumvideo-backend/internal/orders"
	pkgAuth "github.com/angelmondragon/premiumvideo-backend/pkg/auth"
	"github.com/angelmondragon/premiumvideo-backend/pkg/config"
	"github.com/angelmondragon/premiumvideo-backend/pkg/metrics"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error {
	return nil
}

type stubCartService struct {
	calls int
}

func (s *stubCartService) GetOrCreateCart(_ context.Context, ownerID uuid.UUID) (*cart.CartView, error) {
	s.calls++
	return &cart.CartView{OwnerID: ownerID, Items: []cart.CartItemView{}}, nil
}

func (s *stubCartService) AddItem(_ context.Context, ownerID uuid.UUID, _ cart.AddItemInput) (*cart.CartView, error) {
	s.calls++
	return &cart.CartView{OwnerID: ownerID}, nil
}

func (s *stubCartService) RemoveItem(_ context.Context, ownerID, _ uuid.UUID) (*cart.CartView, error) {
	return &cart.CartView{OwnerID: ownerID}, nil
}

type stubCheckoutService struct{}

func (stubCheckoutService) CreateSession(context.Context, uuid.UUID) (*checkout.SessionResult, error) {
	return &checkout.SessionResult{SessionID: "cs_1", RedirectURL: "https://pay.example"}, nil
}

type stubConfirmer struct{}

func (stubConfirmer) Confirm(context.Context, string) (*checkout.ConfirmResult, error) {
	return nil, checkout.ErrPaymentNotCompleted
}

type stubOrdersService struct{}

func (stubOrdersService) HasCompletedOrder(context.Context, uuid.UUID, uuid.UUID) (bool, error) {
	return false, nil
}

func (stubOrdersService) ListOrders(context.Context, uuid.UUID) ([]orders.OrderView, error) {
	return nil, nil
}

type stubWebhookService struct{}

func (stubWebhookService) HandleEvent(context.Context, *stripe.Event) error {
	return nil
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "dev"},
		JWT: config.JWTConfig{Secret: "secret", Issuer: "premiumvideo", ExpirationMinutes: 30},
		Checkout: config.CheckoutConfig{
			RateLimitWindow: time.Minute,
			RateLimit:       5,
		},
	}
}

func newTestRouter(t *testing.T, cartSvc cart.Service) (http.Handler, *config.Config) {
	t.Helper()
	cfg := testConfig()
	reg := prometheus.NewRegistry()
	metrics.NewCheckoutMetrics(reg).IncSession(metrics.ResultCreated)
	return NewRouter(
		cfg,
		nil,
		stubPinger{},
		nil,
		reg,
		cartSvc,
		stubCheckoutService{},
		stubConfirmer{},
		stubOrdersService{},
		nil,
		stubWebhookService{},
		nil,
	), cfg
}

func bearer(t *testing.T, cfg *config.Config) string {
	t.Helper()
	token, err := pkgAuth.MintAccessToken(cfg.JWT, time.Now(), pkgAuth.AccessTokenPayload{UserID: uuid.New()})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return "Bearer " + token
}

func TestHealthRoutes(t *testing.T) {
	router, _ := newTestRouter(t, &stubCartService{})

	for _, path := range []string{"/health/live", "/health/ready"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: expected 200 got %d", path, rec.Code)
		}
		if rec.Header().Get("X-Request-Id") == "" {
			t.Fatalf("%s: expected request id header", path)
		}
	}
}

func TestMetricsRoute(t *testing.T) {
	router, _ := newTestRouter(t, &stubCartService{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if !bytes.Contains(rec.Body.Bytes(), []byte("checkout_sessions_total")) {
		t.Fatalf("expected checkout metrics in output")
	}
}

func TestAPIRequiresAuth(t *testing.T) {
	svc := &stubCartService{}
	router, _ := newTestRouter(t, svc)

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/api/v1/cart"},
		{http.MethodPost, "/api/v1/cart/add"},
		{http.MethodPost, "/api/v1/checkout/create-session"},
		{http.MethodPost, "/api/v1/checkout/confirm"},
		{http.MethodGet, "/api/v1/orders"},
	} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(tc.method, tc.path, nil))
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("%s %s: expected 401 got %d", tc.method, tc.path, rec.Code)
		}
	}
	if svc.calls != 0 {
		t.Fatalf("cart service reached without auth")
	}
}

func TestCartRouteWithToken(t *testing.T) {
	svc := &stubCartService{}
	router, cfg := newTestRouter(t, svc)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	req.Header.Set("Authorization", bearer(t, cfg))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d (%s)", rec.Code, rec.Body.String())
	}
	if svc.calls != 1 {
		t.Fatalf("expected cart service call")
	}
}

func TestConfirmRouteMapsUnpaid(t *testing.T) {
	router, cfg := newTestRouter(t, &stubCartService{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout/confirm", bytes.NewBufferString(`{"sessionId":"cs_1"}`))
	req.Header.Set("Authorization", bearer(t, cfg))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
}

func TestStripeWebhookRouteIsPublic(t *testing.T) {
	router, _ := newTestRouter(t, &stubCartService{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/stripe", bytes.NewBufferString(`{}`)))
	if rec.Code == http.StatusUnauthorized {
		t.Fatalf("webhook route must not require bearer auth")
	}
}
