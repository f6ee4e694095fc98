package checkout

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/premiumvideo-backend/internal/cart"
	"github.com/angelmondragon/premiumvideo-backend/internal/catalog"
	"github.com/angelmondragon/premiumvideo-backend/internal/orders"
	dbpkg "github.com/angelmondragon/premiumvideo-backend/pkg/db"
	"github.com/angelmondragon/premiumvideo-backend/pkg/db/dbtest"
	"github.com/angelmondragon/premiumvideo-backend/pkg/db/models"
	"github.com/angelmondragon/premiumvideo-backend/pkg/enums"
	"github.com/angelmondragon/premiumvideo-backend/pkg/outbox"
)

// fakeProvider keeps opened sessions in memory; tests flip them to paid.
type fakeProvider struct {
	mu       sync.Mutex
	seq      int
	sessions map[string]*ProviderSession
	opened   []OpenSessionParams
	openErr  error
	getErr   error
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{sessions: map[string]*ProviderSession{}}
}

func (p *fakeProvider) OpenSession(_ context.Context, params OpenSessionParams) (*ProviderSession, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.openErr != nil {
		return nil, p.openErr
	}
	p.seq++
	id := fmt.Sprintf("cs_test_%d", p.seq)
	var total int64
	for _, item := range params.LineItems {
		total += item.UnitAmount * item.Quantity
	}
	metadata := make(map[string]string, len(params.Metadata))
	for k, v := range params.Metadata {
		metadata[k] = v
	}
	sess := &ProviderSession{
		ID:          id,
		URL:         "https://checkout.stripe.test/" + id,
		AmountTotal: total,
		Currency:    params.Currency,
		PaymentRef:  id,
		Metadata:    metadata,
	}
	p.sessions[id] = sess
	p.opened = append(p.opened, params)
	copied := *sess
	return &copied, nil
}

func (p *fakeProvider) GetSession(_ context.Context, sessionID string) (*ProviderSession, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.getErr != nil {
		return nil, p.getErr
	}
	sess, ok := p.sessions[sessionID]
	if !ok {
		return nil, errors.New("no such checkout session")
	}
	copied := *sess
	return &copied, nil
}

func (p *fakeProvider) markPaid(sessionID, paymentRef string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	sess := p.sessions[sessionID]
	sess.Paid = true
	sess.PaymentRef = paymentRef
}

func (p *fakeProvider) put(sess *ProviderSession) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sessions[sess.ID] = sess
}

type harness struct {
	db         *gorm.DB
	provider   *fakeProvider
	carts      *cart.Repository
	cartSvc    cart.Service
	ledger     *orders.Repository
	sessions   Service
	reconciler *Reconciler
	video      models.Video
}

func newHarness(t *testing.T, name string) *harness {
	t.Helper()
	db := dbtest.Open(t, name)

	video := models.Video{
		Title:            "Deep Dive",
		MonetizationType: enums.MonetizationPremium,
		RentPrice:        decimal.NewNullDecimal(decimal.RequireFromString("99.50")),
		BuyPrice:         decimal.NewNullDecimal(decimal.RequireFromString("500")),
	}
	require.NoError(t, db.Create(&video).Error)

	h := &harness{
		db:       db,
		provider: newFakeProvider(),
		carts:    cart.NewRepository(db),
		ledger:   orders.NewRepository(db),
		video:    video,
	}
	catalogRepo := catalog.NewRepository(db)
	txRunner := dbpkg.NewFromConn(db)

	var err error
	h.cartSvc, err = cart.NewService(cart.ServiceParams{
		Repository: h.carts,
		Catalog:    catalogRepo,
		Ownership:  h.ledger,
		TxRunner:   txRunner,
	})
	require.NoError(t, err)

	h.sessions, err = NewService(ServiceParams{
		Carts:       h.carts,
		Catalog:     catalogRepo,
		Provider:    h.provider,
		FrontendURL: "https://videos.test/",
	})
	require.NoError(t, err)

	h.reconciler, err = NewReconciler(ReconcilerParams{
		TxRunner: txRunner,
		Carts:    h.carts,
		Orders:   h.ledger,
		Provider: h.provider,
		Outbox:   outbox.NewService(outbox.NewRepository(db), nil),
	})
	require.NoError(t, err)
	return h
}

// paidSession fills the owner's cart with the video and returns a paid session id.
func (h *harness) paidSession(t *testing.T, ownerID uuid.UUID, paymentRef string) string {
	t.Helper()
	ctx := context.Background()
	_, err := h.cartSvc.AddItem(ctx, ownerID, cart.AddItemInput{VideoID: h.video.ID, PurchaseKind: "buy"})
	require.NoError(t, err)
	res, err := h.sessions.CreateSession(ctx, ownerID)
	require.NoError(t, err)
	h.provider.markPaid(res.SessionID, paymentRef)
	return res.SessionID
}

func (h *harness) count(t *testing.T, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, h.db.Model(model).Count(&n).Error)
	return n
}
