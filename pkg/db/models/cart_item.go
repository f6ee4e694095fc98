package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/premiumvideo-backend/pkg/enums"
)

// CartItem is a purchase intent; Price is captured when the item is added.
type CartItem struct {
	ID           uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	CartID       uuid.UUID          `gorm:"column:cart_id;type:uuid;not null;uniqueIndex:ux_cart_items_cart_video"`
	VideoID      uuid.UUID          `gorm:"column:video_id;type:uuid;not null;uniqueIndex:ux_cart_items_cart_video"`
	PurchaseKind enums.PurchaseKind `gorm:"column:purchase_kind;type:purchase_kind;not null"`
	Price        decimal.Decimal    `gorm:"column:price;type:numeric(12,2);not null"`
	Position     int                `gorm:"column:position;not null;default:0"`
	CreatedAt    time.Time          `gorm:"column:created_at;autoCreateTime"`
}

func (CartItem) TableName() string { return "cart_items" }

func (i *CartItem) BeforeCreate(*gorm.DB) error {
	ensureID(&i.ID)
	return nil
}
