package orders

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/premiumvideo-backend/pkg/db/dbtest"
	"github.com/angelmondragon/premiumvideo-backend/pkg/db/models"
	"github.com/angelmondragon/premiumvideo-backend/pkg/enums"
)

func newCompletedOrder(ownerID uuid.UUID, paymentRef string, videoIDs ...uuid.UUID) *models.Order {
	order := &models.Order{
		OwnerID:            ownerID,
		CartRef:            uuid.New(),
		TotalAmount:        decimal.RequireFromString("500"),
		Currency:           "inr",
		Status:             enums.OrderStatusCompleted,
		ExternalPaymentRef: paymentRef,
		CheckoutSessionID:  "cs_" + paymentRef,
	}
	for _, id := range videoIDs {
		order.Items = append(order.Items, models.OrderItem{
			VideoID:      id,
			PurchaseKind: enums.PurchaseKindBuy,
			Price:        decimal.RequireFromString("500"),
		})
	}
	return order
}

func TestRepositoryCreateAndFindByPaymentRef(t *testing.T) {
	db := dbtest.Open(t, "orders_create_find")
	repo := NewRepository(db)
	ctx := context.Background()

	first, second := uuid.New(), uuid.New()
	order := newCompletedOrder(uuid.New(), "pi_1", first, second)
	require.NoError(t, repo.Create(ctx, order))
	require.NotEqual(t, uuid.Nil, order.ID)

	found, err := repo.FindByPaymentRef(ctx, "pi_1")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, order.ID, found.ID)
	require.Len(t, found.Items, 2)
	assert.Equal(t, first, found.Items[0].VideoID)
	assert.Equal(t, second, found.Items[1].VideoID)
	assert.True(t, found.TotalAmount.Equal(decimal.RequireFromString("500")))

	missing, err := repo.FindByPaymentRef(ctx, "pi_missing")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestRepositoryCreateRejectsDuplicatePaymentRef(t *testing.T) {
	db := dbtest.Open(t, "orders_duplicate_ref")
	repo := NewRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newCompletedOrder(uuid.New(), "pi_dup", uuid.New())))
	err := repo.Create(ctx, newCompletedOrder(uuid.New(), "pi_dup", uuid.New()))
	require.ErrorIs(t, err, ErrDuplicatePaymentRef)

	var count int64
	require.NoError(t, db.Model(&models.Order{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestRepositoryHasCompletedOrder(t *testing.T) {
	db := dbtest.Open(t, "orders_has_completed")
	repo := NewRepository(db)
	ctx := context.Background()

	owner, video := uuid.New(), uuid.New()
	require.NoError(t, repo.Create(ctx, newCompletedOrder(owner, "pi_owned", video)))

	pending := newCompletedOrder(owner, "pi_pending", uuid.New())
	pending.Status = enums.OrderStatusPending
	require.NoError(t, repo.Create(ctx, pending))

	owned, err := repo.HasCompletedOrder(ctx, owner, video)
	require.NoError(t, err)
	assert.True(t, owned)

	owned, err = repo.HasCompletedOrder(ctx, owner, pending.Items[0].VideoID)
	require.NoError(t, err)
	assert.False(t, owned, "pending orders do not confer ownership")

	owned, err = repo.HasCompletedOrder(ctx, uuid.New(), video)
	require.NoError(t, err)
	assert.False(t, owned, "ownership is per buyer")
}

func TestRepositoryListByOwnerNewestFirst(t *testing.T) {
	db := dbtest.Open(t, "orders_list_owner")
	repo := NewRepository(db)
	ctx := context.Background()

	owner := uuid.New()
	older := newCompletedOrder(owner, "pi_old", uuid.New())
	older.CreatedAt = time.Now().UTC().Add(-time.Hour)
	newer := newCompletedOrder(owner, "pi_new", uuid.New())
	newer.CreatedAt = time.Now().UTC()
	require.NoError(t, repo.Create(ctx, older))
	require.NoError(t, repo.Create(ctx, newer))
	require.NoError(t, repo.Create(ctx, newCompletedOrder(uuid.New(), "pi_other", uuid.New())))

	rows, err := repo.ListByOwner(ctx, owner)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "pi_new", rows[0].ExternalPaymentRef)
	assert.Equal(t, "pi_old", rows[1].ExternalPaymentRef)
	require.Len(t, rows[0].Items, 1)
}

func TestRepositoryHasCompletedOrderTxSeesUncommittedOrder(t *testing.T) {
	db := dbtest.Open(t, "orders_has_completed_tx")
	repo := NewRepository(db)
	ctx := context.Background()
	owner, video := uuid.New(), uuid.New()

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := repo.WithTx(tx).Create(ctx, newCompletedOrder(owner, "pi_in_tx", video)); err != nil {
			return err
		}
		owned, err := repo.HasCompletedOrderTx(ctx, tx, owner, video)
		require.NoError(t, err)
		assert.True(t, owned)
		return errors.New("rollback")
	})
	require.Error(t, err)

	owned, err := repo.HasCompletedOrderTx(ctx, nil, owner, video)
	require.NoError(t, err)
	assert.False(t, owned, "rolled back order confers nothing")
}
