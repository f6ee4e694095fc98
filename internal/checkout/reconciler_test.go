package checkout

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/premiumvideo-backend/internal/cart"
	"github.com/angelmondragon/premiumvideo-backend/internal/orders"
	dbpkg "github.com/angelmondragon/premiumvideo-backend/pkg/db"
	"github.com/angelmondragon/premiumvideo-backend/pkg/db/models"
	"github.com/angelmondragon/premiumvideo-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/premiumvideo-backend/pkg/errors"
	"github.com/angelmondragon/premiumvideo-backend/pkg/outbox"
)

func TestConfirmCreatesOrderFromChargedAmount(t *testing.T) {
	h := newHarness(t, "confirm_creates_order")
	ctx := context.Background()
	owner := uuid.New()
	sessionID := h.paidSession(t, owner, "pi_round_trip")

	result, err := h.reconciler.Confirm(ctx, sessionID)
	require.NoError(t, err)
	require.NotNil(t, result.Order)
	assert.False(t, result.AlreadySettled)

	order := result.Order
	assert.Equal(t, owner, order.OwnerID)
	assert.Equal(t, enums.OrderStatusCompleted, order.Status)
	assert.Equal(t, "pi_round_trip", order.ExternalPaymentRef)
	assert.Equal(t, sessionID, order.CheckoutSessionID)
	assert.True(t, order.TotalAmount.Equal(decimal.RequireFromString("500")), "total %s", order.TotalAmount)
	require.Len(t, order.Items, 1)
	assert.Equal(t, h.video.ID, order.Items[0].VideoID)
	assert.Equal(t, enums.PurchaseKindBuy, order.Items[0].PurchaseKind)

	assert.Zero(t, h.count(t, &models.Cart{}))
	assert.Zero(t, h.count(t, &models.CartItem{}))

	var events []models.OutboxEvent
	require.NoError(t, h.db.Find(&events).Error)
	require.Len(t, events, 1)
	assert.Equal(t, enums.EventOrderCreated, events[0].EventType)
	assert.Equal(t, order.ID, events[0].AggregateID)

	owned, err := h.ledger.HasCompletedOrder(ctx, owner, h.video.ID)
	require.NoError(t, err)
	assert.True(t, owned)
}

func TestConfirmIsIdempotent(t *testing.T) {
	h := newHarness(t, "confirm_idempotent")
	ctx := context.Background()
	sessionID := h.paidSession(t, uuid.New(), "pi_repeat")

	first, err := h.reconciler.Confirm(ctx, sessionID)
	require.NoError(t, err)
	second, err := h.reconciler.Confirm(ctx, sessionID)
	require.NoError(t, err)

	assert.True(t, second.AlreadySettled)
	assert.Equal(t, first.Order.ID, second.Order.ID)
	assert.Equal(t, int64(1), h.count(t, &models.Order{}))
	assert.Equal(t, int64(1), h.count(t, &models.OutboxEvent{}))
}

func TestConcurrentConfirmsProduceOneOrder(t *testing.T) {
	h := newHarness(t, "confirm_concurrent")
	ctx := context.Background()
	sessionID := h.paidSession(t, uuid.New(), "pi_race")

	const workers = 8
	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		ids = map[uuid.UUID]int{}
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := h.reconciler.Confirm(ctx, sessionID)
			if err != nil {
				t.Errorf("confirm: %v", err)
				return
			}
			mu.Lock()
			ids[result.Order.ID]++
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, ids, 1)
	assert.Equal(t, int64(1), h.count(t, &models.Order{}))
	assert.Equal(t, int64(1), h.count(t, &models.OutboxEvent{}))
}

func TestConfirmUnpaidSessionHasNoEffect(t *testing.T) {
	h := newHarness(t, "confirm_unpaid")
	ctx := context.Background()
	owner := uuid.New()
	sessionID := h.paidSession(t, owner, "pi_unused")
	h.provider.sessions[sessionID].Paid = false

	_, err := h.reconciler.Confirm(ctx, sessionID)
	assert.True(t, errors.Is(err, ErrPaymentNotCompleted), "got %v", err)
	assert.Equal(t, pkgerrors.CodePaymentNotCompleted, pkgerrors.As(err).Code())
	assert.Zero(t, h.count(t, &models.Order{}))
	assert.Equal(t, int64(1), h.count(t, &models.CartItem{}))
}

func TestConfirmRejectsBlankSession(t *testing.T) {
	h := newHarness(t, "confirm_blank")
	_, err := h.reconciler.Confirm(context.Background(), "  ")
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
}

func TestConfirmProviderFailureIsDependencyError(t *testing.T) {
	h := newHarness(t, "confirm_provider_down")
	h.provider.getErr = errors.New("stripe request timed out")

	_, err := h.reconciler.Confirm(context.Background(), "cs_any")
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeDependency, pkgerrors.As(err).Code())
}

func TestConfirmFailsWithoutUsableMetadata(t *testing.T) {
	h := newHarness(t, "confirm_bad_metadata")
	h.provider.put(&ProviderSession{ID: "cs_bad", Paid: true, AmountTotal: 100, PaymentRef: "pi_bad", Metadata: map[string]string{MetadataCartID: "not-a-uuid"}})

	_, err := h.reconciler.Confirm(context.Background(), "cs_bad")
	assert.True(t, errors.Is(err, ErrReconciliationFailed), "got %v", err)
	assert.False(t, pkgerrors.MetadataFor(pkgerrors.As(err).Code()).Retryable)
}

func TestConfirmFailsWhenCartAndOrderAreMissing(t *testing.T) {
	h := newHarness(t, "confirm_missing_cart")
	h.provider.put(&ProviderSession{
		ID:          "cs_orphan",
		Paid:        true,
		AmountTotal: 50000,
		PaymentRef:  "pi_orphan",
		Metadata: map[string]string{
			MetadataCartID: uuid.NewString(),
			MetadataUserID: uuid.NewString(),
		},
	})

	_, err := h.reconciler.Confirm(context.Background(), "cs_orphan")
	assert.True(t, errors.Is(err, ErrReconciliationFailed), "got %v", err)
	assert.Zero(t, h.count(t, &models.Order{}))
}

func TestConfirmRejectsCartOwnedBySomeoneElse(t *testing.T) {
	h := newHarness(t, "confirm_owner_mismatch")
	sessionID := h.paidSession(t, uuid.New(), "pi_mismatch")
	h.provider.sessions[sessionID].Metadata[MetadataUserID] = uuid.NewString()

	_, err := h.reconciler.Confirm(context.Background(), sessionID)
	assert.True(t, errors.Is(err, ErrReconciliationFailed), "got %v", err)
	assert.Zero(t, h.count(t, &models.Order{}))
	assert.Equal(t, int64(1), h.count(t, &models.CartItem{}))
}

func TestConfirmRetiresStrayCartOnFastPath(t *testing.T) {
	h := newHarness(t, "confirm_stray_cart")
	ctx := context.Background()
	owner := uuid.New()
	sessionID := h.paidSession(t, owner, "pi_stray")

	cartRecord, err := h.carts.FindByOwner(ctx, owner)
	require.NoError(t, err)
	require.NoError(t, h.ledger.Create(ctx, &models.Order{
		OwnerID:            owner,
		CartRef:            cartRecord.ID,
		TotalAmount:        decimal.RequireFromString("500"),
		Currency:           "inr",
		Status:             enums.OrderStatusCompleted,
		ExternalPaymentRef: "pi_stray",
	}))

	result, err := h.reconciler.Confirm(ctx, sessionID)
	require.NoError(t, err)
	assert.True(t, result.AlreadySettled)
	assert.Zero(t, h.count(t, &models.Cart{}))
}

// blindLedger hides the first payment-ref lookup so the reconciler reaches the
// insert while another order already holds the reference.
type blindLedger struct {
	orders.OrderRepository
	lookups *int32
}

func (b blindLedger) WithTx(tx *gorm.DB) orders.OrderRepository {
	return blindLedger{OrderRepository: b.OrderRepository.WithTx(tx), lookups: b.lookups}
}

func (b blindLedger) FindByPaymentRef(ctx context.Context, ref string) (*models.Order, error) {
	if atomic.AddInt32(b.lookups, 1) == 1 {
		return nil, nil
	}
	return b.OrderRepository.FindByPaymentRef(ctx, ref)
}

func TestConfirmReadsBackOnUniqueViolation(t *testing.T) {
	h := newHarness(t, "confirm_unique_readback")
	ctx := context.Background()
	owner := uuid.New()
	sessionID := h.paidSession(t, owner, "pi_winner")

	cartRecord, err := h.carts.FindByOwner(ctx, owner)
	require.NoError(t, err)
	winner := &models.Order{
		OwnerID:            owner,
		CartRef:            cartRecord.ID,
		TotalAmount:        decimal.RequireFromString("500"),
		Currency:           "inr",
		Status:             enums.OrderStatusCompleted,
		ExternalPaymentRef: "pi_winner",
	}
	require.NoError(t, h.ledger.Create(ctx, winner))

	var lookups int32
	reconciler, err := NewReconciler(ReconcilerParams{
		TxRunner: dbpkg.NewFromConn(h.db),
		Carts:    h.carts,
		Orders:   blindLedger{OrderRepository: h.ledger, lookups: &lookups},
		Provider: h.provider,
		Outbox:   outbox.NewService(outbox.NewRepository(h.db), nil),
	})
	require.NoError(t, err)

	result, err := reconciler.Confirm(ctx, sessionID)
	require.NoError(t, err)
	assert.True(t, result.AlreadySettled)
	assert.Equal(t, winner.ID, result.Order.ID)
	assert.Equal(t, int64(1), h.count(t, &models.Order{}))
	// The losing transaction rolled back, so no event was queued for it.
	assert.Zero(t, h.count(t, &models.OutboxEvent{}))
}

func TestNewReconcilerValidatesDependencies(t *testing.T) {
	if _, err := NewReconciler(ReconcilerParams{}); err == nil {
		t.Fatal("expected error for missing dependencies")
	}
}

// cartSession puts a paid session pointing at the owner's freshly filled cart.
func (h *harness) cartSession(t *testing.T, owner uuid.UUID, sess ProviderSession) {
	t.Helper()
	ctx := context.Background()
	_, err := h.cartSvc.AddItem(ctx, owner, cart.AddItemInput{VideoID: h.video.ID, PurchaseKind: "buy"})
	require.NoError(t, err)
	cartRecord, err := h.carts.FindByOwner(ctx, owner)
	require.NoError(t, err)
	sess.Paid = true
	sess.Metadata = map[string]string{
		MetadataCartID: cartRecord.ID.String(),
		MetadataUserID: owner.String(),
	}
	h.provider.put(&sess)
}

func TestConfirmScalesTotalByZeroDecimalCurrency(t *testing.T) {
	h := newHarness(t, "confirm_zero_decimal_currency")
	owner := uuid.New()
	h.cartSession(t, owner, ProviderSession{ID: "cs_jpy", AmountTotal: 500, Currency: "JPY", PaymentRef: "pi_jpy"})

	result, err := h.reconciler.Confirm(context.Background(), "cs_jpy")
	require.NoError(t, err)
	assert.Equal(t, "jpy", result.Order.Currency)
	assert.True(t, result.Order.TotalAmount.Equal(decimal.RequireFromString("500")), "total %s", result.Order.TotalAmount)
}

func TestConfirmRejectsUnknownSessionCurrency(t *testing.T) {
	h := newHarness(t, "confirm_unknown_currency")
	owner := uuid.New()
	h.cartSession(t, owner, ProviderSession{ID: "cs_xqq", AmountTotal: 500, Currency: "xqq", PaymentRef: "pi_xqq"})

	_, err := h.reconciler.Confirm(context.Background(), "cs_xqq")
	assert.True(t, errors.Is(err, ErrReconciliationFailed), "got %v", err)
	assert.Zero(t, h.count(t, &models.Order{}))
	assert.Equal(t, int64(1), h.count(t, &models.CartItem{}))
}

func TestConfirmZeroAmountSessionFallsBackToSessionID(t *testing.T) {
	h := newHarness(t, "confirm_zero_amount")
	ctx := context.Background()
	owner := uuid.New()
	// Fully discounted sessions have no payment intent.
	h.cartSession(t, owner, ProviderSession{ID: "cs_free", AmountTotal: 0, Currency: "inr"})

	first, err := h.reconciler.Confirm(ctx, "cs_free")
	require.NoError(t, err)
	assert.False(t, first.AlreadySettled)
	assert.Equal(t, "cs_free", first.Order.ExternalPaymentRef)
	assert.True(t, first.Order.TotalAmount.IsZero(), "total %s", first.Order.TotalAmount)
	assert.Zero(t, h.count(t, &models.Cart{}))

	second, err := h.reconciler.Confirm(ctx, "cs_free")
	require.NoError(t, err)
	assert.True(t, second.AlreadySettled)
	assert.Equal(t, first.Order.ID, second.Order.ID)
	assert.Equal(t, int64(1), h.count(t, &models.Order{}))
}

func TestNewReconcilerRejectsUnknownCurrency(t *testing.T) {
	h := newHarness(t, "reconciler_unknown_currency")
	_, err := NewReconciler(ReconcilerParams{
		TxRunner: dbpkg.NewFromConn(h.db),
		Carts:    h.carts,
		Orders:   h.ledger,
		Provider: h.provider,
		Outbox:   outbox.NewService(outbox.NewRepository(h.db), nil),
		Currency: "rupees",
	})
	require.Error(t, err)
}
