package orders

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/premiumvideo-backend/internal/repo"
	dbpkg "github.com/angelmondragon/premiumvideo-backend/pkg/db"
	"github.com/angelmondragon/premiumvideo-backend/pkg/db/models"
	"github.com/angelmondragon/premiumvideo-backend/pkg/enums"
)

// Repository is the order ledger. Orders are only ever inserted.
type Repository struct {
	repo.Base
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

// WithTx binds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) OrderRepository {
	if tx == nil {
		return r
	}
	return NewRepository(tx)
}

// Create inserts the order and its items. A second order for the same
// external payment reference fails with ErrDuplicatePaymentRef.
func (r *Repository) Create(ctx context.Context, order *models.Order) error {
	if order == nil {
		return errors.New("order is required")
	}
	for i := range order.Items {
		order.Items[i].Position = i
	}
	if err := r.DB(ctx).Create(order).Error; err != nil {
		if dbpkg.IsUniqueViolation(err, "") {
			return ErrDuplicatePaymentRef
		}
		return err
	}
	return nil
}

// FindByPaymentRef returns nil, nil when no order carries the reference.
func (r *Repository) FindByPaymentRef(ctx context.Context, paymentRef string) (*models.Order, error) {
	return repo.Optional[models.Order](r.DB(ctx).
		Preload("Items", itemsInPosition).
		Where("external_payment_ref = ?", paymentRef))
}

// HasCompletedOrder reports whether the owner holds a completed order with the video.
func (r *Repository) HasCompletedOrder(ctx context.Context, ownerID, videoID uuid.UUID) (bool, error) {
	var count int64
	err := r.DB(ctx).
		Model(&models.OrderItem{}).
		Joins("JOIN orders ON orders.id = order_items.order_id").
		Where("orders.owner_id = ? AND orders.status = ? AND order_items.video_id = ?", ownerID, enums.OrderStatusCompleted, videoID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// HasCompletedOrderTx is HasCompletedOrder bound to tx when tx is set.
func (r *Repository) HasCompletedOrderTx(ctx context.Context, tx *gorm.DB, ownerID, videoID uuid.UUID) (bool, error) {
	if tx == nil {
		return r.HasCompletedOrder(ctx, ownerID, videoID)
	}
	return NewRepository(tx).HasCompletedOrder(ctx, ownerID, videoID)
}

// ListByOwner returns the owner's orders, newest first.
func (r *Repository) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Order, error) {
	var rows []models.Order
	err := r.DB(ctx).
		Preload("Items", itemsInPosition).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC").
		Order("id DESC").
		Find(&rows).Error
	return rows, err
}

func itemsInPosition(db *gorm.DB) *gorm.DB {
	return db.Order("position ASC")
}
