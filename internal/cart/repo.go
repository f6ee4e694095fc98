package cart

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/premiumvideo-backend/internal/repo"
	dbpkg "github.com/angelmondragon/premiumvideo-backend/pkg/db"
	"github.com/angelmondragon/premiumvideo-backend/pkg/db/models"
)

// Repository exposes persistence operations for carts and their items.
type Repository struct {
	repo.Base
}

// NewRepository constructs a cart repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

// WithTx binds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) CartRepository {
	if tx == nil {
		return r
	}
	return NewRepository(tx)
}

// EnsureForOwner inserts an empty cart unless the owner already has one.
// ON CONFLICT keeps the surrounding transaction usable when two requests race.
func (r *Repository) EnsureForOwner(ctx context.Context, ownerID uuid.UUID) error {
	cart := models.Cart{OwnerID: ownerID}
	return r.DB(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "owner_id"}}, DoNothing: true}).
		Create(&cart).Error
}

// FindByOwner returns nil, nil when the owner has no cart.
func (r *Repository) FindByOwner(ctx context.Context, ownerID uuid.UUID) (*models.Cart, error) {
	return r.first(ctx, false, "owner_id = ?", ownerID)
}

// LockByOwner loads the owner's cart holding a row lock until the transaction ends.
func (r *Repository) LockByOwner(ctx context.Context, ownerID uuid.UUID) (*models.Cart, error) {
	return r.first(ctx, true, "owner_id = ?", ownerID)
}

// FindByID returns nil, nil when the cart no longer exists.
func (r *Repository) FindByID(ctx context.Context, cartID uuid.UUID) (*models.Cart, error) {
	return r.first(ctx, false, "id = ?", cartID)
}

// LockByID loads a cart by id holding a row lock until the transaction ends.
func (r *Repository) LockByID(ctx context.Context, cartID uuid.UUID) (*models.Cart, error) {
	return r.first(ctx, true, "id = ?", cartID)
}

func (r *Repository) first(ctx context.Context, lock bool, query string, arg any) (*models.Cart, error) {
	q := r.DB(ctx)
	if lock {
		q = r.ForUpdate(ctx)
	}
	cart, err := repo.Optional[models.Cart](q.Where(query, arg))
	if err != nil || cart == nil {
		return nil, err
	}
	// Items are read separately so the lock only covers the cart row.
	if err := r.DB(ctx).
		Where("cart_id = ?", cart.ID).
		Order("position ASC").
		Order("created_at ASC").
		Find(&cart.Items).Error; err != nil {
		return nil, err
	}
	return cart, nil
}

// AddItem inserts the item. The caller sets Position while holding the cart lock.
func (r *Repository) AddItem(ctx context.Context, item *models.CartItem) error {
	if item == nil {
		return errors.New("cart item is required")
	}
	if err := r.DB(ctx).Create(item).Error; err != nil {
		if dbpkg.IsUniqueViolation(err, "") {
			return ErrAlreadyInCart
		}
		return err
	}
	return nil
}

// RemoveItem deletes the item from the cart; zero rows affected is not an error.
func (r *Repository) RemoveItem(ctx context.Context, cartID, itemID uuid.UUID) (int64, error) {
	res := r.DB(ctx).
		Where("id = ? AND cart_id = ?", itemID, cartID).
		Delete(&models.CartItem{})
	return res.RowsAffected, res.Error
}

func (r *Repository) Touch(ctx context.Context, cartID uuid.UUID) error {
	return r.DB(ctx).
		Model(&models.Cart{}).
		Where("id = ?", cartID).
		Update("updated_at", time.Now().UTC()).Error
}

// Delete removes the cart and its items. Deleting a missing cart affects zero rows.
func (r *Repository) Delete(ctx context.Context, cartID uuid.UUID) (int64, error) {
	db := r.DB(ctx)
	if err := db.Where("cart_id = ?", cartID).Delete(&models.CartItem{}).Error; err != nil {
		return 0, err
	}
	res := db.Where("id = ?", cartID).Delete(&models.Cart{})
	return res.RowsAffected, res.Error
}

// ListSettled finds carts already referenced by an order's cart_ref that were
// last touched before olderThan.
func (r *Repository) ListSettled(ctx context.Context, olderThan time.Time, limit int) ([]SettledCart, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []SettledCart
	err := r.DB(ctx).
		Table("carts").
		Select("carts.id AS cart_id, carts.owner_id AS owner_id, orders.id AS order_id").
		Joins("JOIN orders ON orders.cart_ref = carts.id").
		Where("carts.updated_at < ?", olderThan).
		Order("carts.updated_at ASC").
		Limit(limit).
		Scan(&rows).Error
	return rows, err
}
