package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/premiumvideo-backend/pkg/enums"
)

// OrderCreatedItem mirrors one settled order item.
type OrderCreatedItem struct {
	VideoID      uuid.UUID          `json:"video_id"`
	PurchaseKind enums.PurchaseKind `json:"purchase_kind"`
	Price        decimal.Decimal    `json:"price"`
}

// OrderCreatedEvent is emitted in the same transaction that settles a cart.
type OrderCreatedEvent struct {
	OrderID            uuid.UUID          `json:"order_id"`
	OwnerID            uuid.UUID          `json:"owner_id"`
	CartRef            uuid.UUID          `json:"cart_ref"`
	TotalAmount        decimal.Decimal    `json:"total_amount"`
	Currency           string             `json:"currency"`
	ExternalPaymentRef string             `json:"external_payment_ref"`
	Items              []OrderCreatedItem `json:"items"`
}

// StrayCartRetiredEvent records a cart deleted by the sweep after its order had
// already been written.
type StrayCartRetiredEvent struct {
	CartID    uuid.UUID `json:"cart_id"`
	OwnerID   uuid.UUID `json:"owner_id"`
	OrderID   uuid.UUID `json:"order_id"`
	RetiredAt time.Time `json:"retired_at"`
}
