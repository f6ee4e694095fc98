package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/premiumvideo-backend/internal/cart"
	"github.com/angelmondragon/premiumvideo-backend/internal/orders"
	"github.com/angelmondragon/premiumvideo-backend/pkg/db/models"
	"github.com/angelmondragon/premiumvideo-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/premiumvideo-backend/pkg/errors"
	"github.com/angelmondragon/premiumvideo-backend/pkg/logger"
	"github.com/angelmondragon/premiumvideo-backend/pkg/metrics"
	"github.com/angelmondragon/premiumvideo-backend/pkg/outbox"
	"github.com/angelmondragon/premiumvideo-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// ConfirmResult carries the order for a paid session. AlreadySettled is true
// when the order existed before this call.
type ConfirmResult struct {
	Order          *models.Order
	AlreadySettled bool
}

type ReconcilerParams struct {
	TxRunner txRunner
	Carts    cart.CartRepository
	Orders   orders.OrderRepository
	Provider PaymentProvider
	Outbox   outboxEmitter
	Currency string
	Metrics  *metrics.CheckoutMetrics
	Logger   *logger.Logger
}

// Reconciler turns a paid provider session into exactly one order. The unique
// payment reference on orders is what makes repeated or concurrent calls converge.
type Reconciler struct {
	tx       txRunner
	carts    cart.CartRepository
	orders   orders.OrderRepository
	provider PaymentProvider
	outbox   outboxEmitter
	currency string
	metrics  *metrics.CheckoutMetrics
	logg     *logger.Logger
}

func NewReconciler(params ReconcilerParams) (*Reconciler, error) {
	if params.TxRunner == nil {
		return nil, errors.New("transaction runner required")
	}
	if params.Carts == nil {
		return nil, errors.New("cart repository required")
	}
	if params.Orders == nil {
		return nil, errors.New("orders repository required")
	}
	if params.Provider == nil {
		return nil, errors.New("payment provider required")
	}
	if params.Outbox == nil {
		return nil, errors.New("outbox emitter required")
	}
	currency := strings.ToLower(strings.TrimSpace(params.Currency))
	if currency == "" {
		currency = defaultCurrency
	}
	if _, err := minorUnitScale(currency); err != nil {
		return nil, err
	}
	return &Reconciler{
		tx:       params.TxRunner,
		carts:    params.Carts,
		orders:   params.Orders,
		provider: params.Provider,
		outbox:   params.Outbox,
		currency: currency,
		metrics:  params.Metrics,
		logg:     params.Logger,
	}, nil
}

// Confirm settles the cart referenced by a paid session. The provider is only
// consulted before the transaction opens, so no row lock is held across it.
func (r *Reconciler) Confirm(ctx context.Context, sessionID string) (*ConfirmResult, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "sessionId is required")
	}
	if r.logg != nil {
		ctx = r.logg.WithCheckoutSession(ctx, sessionID)
	}

	sess, err := r.provider.GetSession(ctx, sessionID)
	if err != nil {
		r.metrics.IncConfirmation(metrics.ResultFailed)
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "payment provider unavailable")
	}
	if sess == nil || !sess.Paid {
		r.metrics.IncConfirmation(metrics.ResultUnpaid)
		r.info(ctx, "checkout.confirm.unpaid")
		return nil, ErrPaymentNotCompleted
	}

	cartRef, ownerID, err := sessionRefs(sess.Metadata)
	if err != nil {
		return nil, r.fail(ctx, err)
	}
	paymentRef := strings.TrimSpace(sess.PaymentRef)
	if paymentRef == "" {
		paymentRef = sess.ID
	}
	if r.logg != nil {
		ctx = r.logg.WithFields(ctx, map[string]any{
			"cart_id":     cartRef.String(),
			"payment_ref": paymentRef,
		})
	}

	existing, err := r.orders.FindByPaymentRef(ctx, paymentRef)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup order by payment reference")
	}
	if existing != nil {
		r.retireCart(ctx, cartRef)
		return r.settled(ctx, existing), nil
	}

	var (
		created  *models.Order
		previous *models.Order
	)
	err = r.tx.WithTx(ctx, func(tx *gorm.DB) error {
		carts := r.carts.WithTx(tx)
		ledger := r.orders.WithTx(tx)

		record, err := carts.LockByID(ctx, cartRef)
		if err != nil {
			return err
		}
		if record == nil {
			// Another confirm may have settled the cart after the fast path.
			found, err := ledger.FindByPaymentRef(ctx, paymentRef)
			if err != nil {
				return err
			}
			if found == nil {
				return fmt.Errorf("cart %s not found and no order for payment: %w", cartRef, ErrReconciliationFailed)
			}
			previous = found
			return nil
		}
		if record.OwnerID != ownerID {
			return fmt.Errorf("cart %s owner does not match session user: %w", cartRef, ErrReconciliationFailed)
		}

		order, err := newOrder(record, sess, paymentRef, r.currency)
		if err != nil {
			return fmt.Errorf("%v: %w", err, ErrReconciliationFailed)
		}
		if err := ledger.Create(ctx, order); err != nil {
			return err
		}
		if err := r.outbox.Emit(ctx, tx, orderCreatedEvent(order)); err != nil {
			return err
		}
		if _, err := carts.Delete(ctx, record.ID); err != nil {
			return err
		}
		created = order
		return nil
	})

	switch {
	case err == nil:
	case errors.Is(err, orders.ErrDuplicatePaymentRef):
		// Lost the insert race; the winner's order is the answer.
		found, lookupErr := r.orders.FindByPaymentRef(ctx, paymentRef)
		if lookupErr != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, lookupErr, "read back order")
		}
		if found == nil {
			return nil, r.fail(ctx, err)
		}
		return r.settled(ctx, found), nil
	case errors.Is(err, ErrReconciliationFailed):
		return nil, r.fail(ctx, err)
	default:
		r.metrics.IncConfirmation(metrics.ResultFailed)
		if r.logg != nil {
			r.logg.Error(ctx, "checkout.confirm.tx_failed", err)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "settle order")
	}

	if previous != nil {
		return r.settled(ctx, previous), nil
	}

	r.metrics.IncConfirmation(metrics.ResultCreated)
	if r.logg != nil {
		r.logg.Info(r.logg.WithField(ctx, "order_id", created.ID.String()), "checkout.confirm.order_created")
	}
	return &ConfirmResult{Order: created}, nil
}

func (r *Reconciler) settled(ctx context.Context, order *models.Order) *ConfirmResult {
	r.metrics.IncConfirmation(metrics.ResultAlreadySettled)
	if r.logg != nil {
		r.logg.Info(r.logg.WithField(ctx, "order_id", order.ID.String()), "checkout.confirm.already_settled")
	}
	return &ConfirmResult{Order: order, AlreadySettled: true}
}

// retireCart removes a cart left behind by an earlier settlement. Failures are
// left to the stray-cart sweep.
func (r *Reconciler) retireCart(ctx context.Context, cartRef uuid.UUID) {
	if _, err := r.carts.Delete(ctx, cartRef); err != nil && r.logg != nil {
		r.logg.Warn(r.logg.WithField(ctx, "error", err.Error()), "checkout.confirm.stray_cart_delete_failed")
	}
}

// fail logs the underlying cause loudly and surfaces the non-retryable sentinel.
func (r *Reconciler) fail(ctx context.Context, err error) error {
	r.metrics.IncConfirmation(metrics.ResultFailed)
	if r.logg != nil {
		r.logg.Error(ctx, "checkout.confirm.reconciliation_failed", err)
	}
	return ErrReconciliationFailed
}

func (r *Reconciler) info(ctx context.Context, msg string) {
	if r.logg != nil {
		r.logg.Info(ctx, msg)
	}
}

func sessionRefs(metadata map[string]string) (uuid.UUID, uuid.UUID, error) {
	cartRef, err := uuid.Parse(strings.TrimSpace(metadata[MetadataCartID]))
	if err != nil {
		return uuid.Nil, uuid.Nil, fmt.Errorf("session metadata cartId: %w", err)
	}
	ownerID, err := uuid.Parse(strings.TrimSpace(metadata[MetadataUserID]))
	if err != nil {
		return uuid.Nil, uuid.Nil, fmt.Errorf("session metadata userId: %w", err)
	}
	return cartRef, ownerID, nil
}

// newOrder copies the cart items by value. The charged amount, not the cart
// sum, is the order total, scaled by the session currency's minor units.
func newOrder(record *models.Cart, sess *ProviderSession, paymentRef, fallbackCurrency string) (*models.Order, error) {
	currency := strings.ToLower(strings.TrimSpace(sess.Currency))
	if currency == "" {
		currency = fallbackCurrency
	}
	scale, err := minorUnitScale(currency)
	if err != nil {
		return nil, err
	}
	order := &models.Order{
		OwnerID:            record.OwnerID,
		CartRef:            record.ID,
		TotalAmount:        fromMinorUnits(sess.AmountTotal, scale),
		Currency:           currency,
		Status:             enums.OrderStatusCompleted,
		ExternalPaymentRef: paymentRef,
		CheckoutSessionID:  sess.ID,
		Items:              make([]models.OrderItem, 0, len(record.Items)),
	}
	for _, item := range record.Items {
		order.Items = append(order.Items, models.OrderItem{
			VideoID:      item.VideoID,
			PurchaseKind: item.PurchaseKind,
			Price:        item.Price,
		})
	}
	return order, nil
}

func orderCreatedEvent(order *models.Order) outbox.DomainEvent {
	items := make([]payloads.OrderCreatedItem, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, payloads.OrderCreatedItem{
			VideoID:      item.VideoID,
			PurchaseKind: item.PurchaseKind,
			Price:        item.Price,
		})
	}
	return outbox.DomainEvent{
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         &outbox.ActorRef{UserID: order.OwnerID, Source: "checkout"},
		Data: payloads.OrderCreatedEvent{
			OrderID:            order.ID,
			OwnerID:            order.OwnerID,
			CartRef:            order.CartRef,
			TotalAmount:        order.TotalAmount,
			Currency:           order.Currency,
			ExternalPaymentRef: order.ExternalPaymentRef,
			Items:              items,
		},
		OccurredAt: time.Now().UTC(),
	}
}
