package orders

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/premiumvideo-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/premiumvideo-backend/pkg/errors"
)

// ErrDuplicatePaymentRef is returned when an order already exists for the payment reference.
var ErrDuplicatePaymentRef = pkgerrors.New(pkgerrors.CodeConflict, "order already exists for payment reference")

// OrderRepository defines the order ledger persistence surface.
type OrderRepository interface {
	WithTx(tx *gorm.DB) OrderRepository
	Create(ctx context.Context, order *models.Order) error
	FindByPaymentRef(ctx context.Context, paymentRef string) (*models.Order, error)
	HasCompletedOrder(ctx context.Context, ownerID, videoID uuid.UUID) (bool, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Order, error)
}
