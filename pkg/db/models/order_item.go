package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/premiumvideo-backend/pkg/enums"
)

// OrderItem is a value copy of a cart item taken at settlement.
type OrderItem struct {
	ID           uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	OrderID      uuid.UUID          `gorm:"column:order_id;type:uuid;not null;index:idx_order_items_order_id"`
	VideoID      uuid.UUID          `gorm:"column:video_id;type:uuid;not null;index:idx_order_items_video_id"`
	PurchaseKind enums.PurchaseKind `gorm:"column:purchase_kind;type:purchase_kind;not null"`
	Price        decimal.Decimal    `gorm:"column:price;type:numeric(12,2);not null"`
	Position     int                `gorm:"column:position;not null;default:0"`
}

func (OrderItem) TableName() string { return "order_items" }

func (i *OrderItem) BeforeCreate(*gorm.DB) error {
	ensureID(&i.ID)
	return nil
}
