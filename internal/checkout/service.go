package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/premiumvideo-backend/internal/cart"
	"github.com/angelmondragon/premiumvideo-backend/internal/catalog"
	pkgerrors "github.com/angelmondragon/premiumvideo-backend/pkg/errors"
	"github.com/angelmondragon/premiumvideo-backend/pkg/logger"
	"github.com/angelmondragon/premiumvideo-backend/pkg/metrics"
)

const defaultCurrency = "inr"

// SessionResult is returned to the buyer to redirect to the hosted payment page.
type SessionResult struct {
	SessionID   string `json:"sessionId"`
	RedirectURL string `json:"url"`
}

// Service opens hosted checkout sessions for a buyer's cart.
type Service interface {
	CreateSession(ctx context.Context, ownerID uuid.UUID) (*SessionResult, error)
}

type ServiceParams struct {
	Carts       cart.CartRepository
	Catalog     catalog.Lookup
	Provider    PaymentProvider
	Currency    string
	FrontendURL string
	Metrics     *metrics.CheckoutMetrics
	Logger      *logger.Logger
}

type service struct {
	carts       cart.CartRepository
	catalog     catalog.Lookup
	provider    PaymentProvider
	currency    string
	scale       int32
	frontendURL string
	metrics     *metrics.CheckoutMetrics
	logg        *logger.Logger
}

func NewService(params ServiceParams) (Service, error) {
	if params.Carts == nil {
		return nil, errors.New("cart repository required")
	}
	if params.Catalog == nil {
		return nil, errors.New("catalog lookup required")
	}
	if params.Provider == nil {
		return nil, errors.New("payment provider required")
	}
	currency := strings.ToLower(strings.TrimSpace(params.Currency))
	if currency == "" {
		currency = defaultCurrency
	}
	scale, err := minorUnitScale(currency)
	if err != nil {
		return nil, err
	}
	return &service{
		carts:       params.Carts,
		catalog:     params.Catalog,
		provider:    params.Provider,
		currency:    currency,
		scale:       scale,
		frontendURL: strings.TrimRight(strings.TrimSpace(params.FrontendURL), "/"),
		metrics:     params.Metrics,
		logg:        params.Logger,
	}, nil
}

// CreateSession builds line items from the cart's snapshot prices and opens a
// provider session. Nothing is written locally.
func (s *service) CreateSession(ctx context.Context, ownerID uuid.UUID) (*SessionResult, error) {
	if ownerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}

	record, err := s.carts.FindByOwner(ctx, ownerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart")
	}
	if record == nil || len(record.Items) == 0 {
		s.metrics.IncSession(metrics.ResultEmpty)
		return nil, ErrEmptyCart
	}

	ids := make([]uuid.UUID, 0, len(record.Items))
	for _, item := range record.Items {
		ids = append(ids, item.VideoID)
	}
	videos, err := s.catalog.LookupMany(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "resolve cart videos")
	}

	lineItems := make([]LineItem, 0, len(record.Items))
	for _, item := range record.Items {
		video, ok := videos[item.VideoID]
		if !ok {
			continue
		}
		lineItems = append(lineItems, LineItem{
			Name:       fmt.Sprintf("%s (%s)", video.Title, item.PurchaseKind),
			UnitAmount: toMinorUnits(item.Price, s.scale),
			Quantity:   1,
		})
	}
	if len(lineItems) == 0 {
		s.metrics.IncSession(metrics.ResultEmpty)
		return nil, ErrNoValidItems
	}

	sess, err := s.provider.OpenSession(ctx, OpenSessionParams{
		LineItems:  lineItems,
		Currency:   s.currency,
		SuccessURL: s.frontendURL + "/payment/success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:  s.frontendURL + "/cart",
		Metadata: map[string]string{
			MetadataCartID: record.ID.String(),
			MetadataUserID: ownerID.String(),
		},
	})
	if err != nil {
		s.metrics.IncSession(metrics.ResultFailed)
		if s.logg != nil {
			s.logg.Error(s.logg.WithField(ctx, "cart_id", record.ID.String()), "checkout.session.provider_failed", err)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "payment provider unavailable")
	}

	s.metrics.IncSession(metrics.ResultCreated)
	if s.logg != nil {
		logCtx := s.logg.WithCheckoutSession(s.logg.WithField(ctx, "cart_id", record.ID.String()), sess.ID)
		s.logg.Info(logCtx, "checkout.session.created")
	}

	return &SessionResult{SessionID: sess.ID, RedirectURL: sess.URL}, nil
}
