package cart

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/premiumvideo-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/premiumvideo-backend/pkg/errors"
)

var (
	ErrNotPurchasable = pkgerrors.New(pkgerrors.CodeNotFound, "Premium video not found.")
	ErrAlreadyOwned   = pkgerrors.New(pkgerrors.CodeConflict, "You already own this video.")
	ErrAlreadyInCart  = pkgerrors.New(pkgerrors.CodeConflict, "This item is already in your cart.")
	ErrInvalidPrice   = pkgerrors.New(pkgerrors.CodeValidation, "Invalid price for this purchase type.")
	ErrCartNotFound   = pkgerrors.New(pkgerrors.CodeNotFound, "Cart not found.")
)

// CartRepository defines the persistence surface required by the cart service
// and the checkout reconciler.
type CartRepository interface {
	WithTx(tx *gorm.DB) CartRepository
	EnsureForOwner(ctx context.Context, ownerID uuid.UUID) error
	FindByOwner(ctx context.Context, ownerID uuid.UUID) (*models.Cart, error)
	LockByOwner(ctx context.Context, ownerID uuid.UUID) (*models.Cart, error)
	FindByID(ctx context.Context, cartID uuid.UUID) (*models.Cart, error)
	LockByID(ctx context.Context, cartID uuid.UUID) (*models.Cart, error)
	AddItem(ctx context.Context, item *models.CartItem) error
	RemoveItem(ctx context.Context, cartID, itemID uuid.UUID) (int64, error)
	Touch(ctx context.Context, cartID uuid.UUID) error
	Delete(ctx context.Context, cartID uuid.UUID) (int64, error)
	ListSettled(ctx context.Context, olderThan time.Time, limit int) ([]SettledCart, error)
}

// OwnershipChecker answers whether a buyer already holds a video.
// HasCompletedOrderTx runs the same check on the caller's transaction.
type OwnershipChecker interface {
	HasCompletedOrder(ctx context.Context, ownerID, videoID uuid.UUID) (bool, error)
	HasCompletedOrderTx(ctx context.Context, tx *gorm.DB, ownerID, videoID uuid.UUID) (bool, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// SettledCart is a cart whose contents were already converted into an order.
type SettledCart struct {
	CartID  uuid.UUID
	OwnerID uuid.UUID
	OrderID uuid.UUID
}
