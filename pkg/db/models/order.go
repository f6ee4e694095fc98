package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/premiumvideo-backend/pkg/enums"
)

// Order is the settled purchase record. ExternalPaymentRef is unique.
type Order struct {
	ID                 uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	OwnerID            uuid.UUID         `gorm:"column:owner_id;type:uuid;not null;index:idx_orders_owner_created,priority:1"`
	CartRef            uuid.UUID         `gorm:"column:cart_ref;type:uuid;not null;index:idx_orders_cart_ref"`
	TotalAmount        decimal.Decimal   `gorm:"column:total_amount;type:numeric(12,2);not null"`
	Currency           string            `gorm:"column:currency;not null"`
	Status             enums.OrderStatus `gorm:"column:status;type:order_status;not null;default:'pending'"`
	ExternalPaymentRef string            `gorm:"column:external_payment_ref;not null;uniqueIndex:ux_orders_external_payment_ref"`
	CheckoutSessionID  string            `gorm:"column:checkout_session_id;not null"`
	Items              []OrderItem       `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt          time.Time         `gorm:"column:created_at;autoCreateTime;index:idx_orders_owner_created,priority:2"`
	UpdatedAt          time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

func (Order) TableName() string { return "orders" }

func (o *Order) BeforeCreate(*gorm.DB) error {
	ensureID(&o.ID)
	return nil
}
