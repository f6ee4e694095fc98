package cart

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/premiumvideo-backend/pkg/db/dbtest"
	"github.com/angelmondragon/premiumvideo-backend/pkg/db/models"
	"github.com/angelmondragon/premiumvideo-backend/pkg/enums"
)

func TestRepositoryEnsureForOwnerIsIdempotent(t *testing.T) {
	db := dbtest.Open(t, "cart_repo_ensure")
	repo := NewRepository(db)
	ctx := context.Background()
	owner := uuid.New()

	require.NoError(t, repo.EnsureForOwner(ctx, owner))
	require.NoError(t, repo.EnsureForOwner(ctx, owner))

	cart, err := repo.FindByOwner(ctx, owner)
	require.NoError(t, err)
	require.NotNil(t, cart)
	assert.Equal(t, owner, cart.OwnerID)

	missing, err := repo.FindByOwner(ctx, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestRepositoryItemsOrderedByPosition(t *testing.T) {
	db := dbtest.Open(t, "cart_repo_items")
	repo := NewRepository(db)
	ctx := context.Background()
	owner := uuid.New()

	require.NoError(t, repo.EnsureForOwner(ctx, owner))
	cart, err := repo.LockByOwner(ctx, owner)
	require.NoError(t, err)

	second := &models.CartItem{CartID: cart.ID, VideoID: uuid.New(), PurchaseKind: enums.PurchaseKindBuy, Price: decimal.NewFromInt(20), Position: 1}
	first := &models.CartItem{CartID: cart.ID, VideoID: uuid.New(), PurchaseKind: enums.PurchaseKindRent, Price: decimal.NewFromInt(10), Position: 0}
	require.NoError(t, repo.AddItem(ctx, second))
	require.NoError(t, repo.AddItem(ctx, first))

	dup := &models.CartItem{CartID: cart.ID, VideoID: first.VideoID, PurchaseKind: enums.PurchaseKindBuy, Price: decimal.NewFromInt(10), Position: 2}
	assert.ErrorIs(t, repo.AddItem(ctx, dup), ErrAlreadyInCart)

	loaded, err := repo.FindByID(ctx, cart.ID)
	require.NoError(t, err)
	require.Len(t, loaded.Items, 2)
	assert.Equal(t, first.ID, loaded.Items[0].ID)
	assert.Equal(t, second.ID, loaded.Items[1].ID)

	removed, err := repo.RemoveItem(ctx, cart.ID, first.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)
	removed, err = repo.RemoveItem(ctx, cart.ID, first.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), removed)
}

func TestRepositoryDeleteRemovesItems(t *testing.T) {
	db := dbtest.Open(t, "cart_repo_delete")
	repo := NewRepository(db)
	ctx := context.Background()
	owner := uuid.New()

	require.NoError(t, repo.EnsureForOwner(ctx, owner))
	cart, err := repo.FindByOwner(ctx, owner)
	require.NoError(t, err)
	require.NoError(t, repo.AddItem(ctx, &models.CartItem{CartID: cart.ID, VideoID: uuid.New(), PurchaseKind: enums.PurchaseKindBuy, Price: decimal.NewFromInt(5)}))

	deleted, err := repo.Delete(ctx, cart.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	var items int64
	require.NoError(t, db.Model(&models.CartItem{}).Where("cart_id = ?", cart.ID).Count(&items).Error)
	assert.Zero(t, items)

	deleted, err = repo.Delete(ctx, cart.ID)
	require.NoError(t, err)
	assert.Zero(t, deleted)
}

func TestRepositoryListSettled(t *testing.T) {
	db := dbtest.Open(t, "cart_repo_settled")
	repo := NewRepository(db)
	ctx := context.Background()

	settledOwner, activeOwner := uuid.New(), uuid.New()
	require.NoError(t, repo.EnsureForOwner(ctx, settledOwner))
	require.NoError(t, repo.EnsureForOwner(ctx, activeOwner))
	settled, err := repo.FindByOwner(ctx, settledOwner)
	require.NoError(t, err)

	old := time.Now().UTC().Add(-2 * time.Hour)
	require.NoError(t, db.Model(&models.Cart{}).Where("id IS NOT NULL").Update("updated_at", old).Error)

	order := &models.Order{
		OwnerID:            settledOwner,
		CartRef:            settled.ID,
		TotalAmount:        decimal.NewFromInt(5),
		Currency:           "inr",
		Status:             enums.OrderStatusCompleted,
		ExternalPaymentRef: "pi_settled",
	}
	require.NoError(t, db.Create(order).Error)

	rows, err := repo.ListSettled(ctx, time.Now().UTC().Add(-time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, settled.ID, rows[0].CartID)
	assert.Equal(t, settledOwner, rows[0].OwnerID)
	assert.Equal(t, order.ID, rows[0].OrderID)

	rows, err = repo.ListSettled(ctx, time.Now().UTC().Add(-3*time.Hour), 10)
	require.NoError(t, err)
	assert.Empty(t, rows)
}
