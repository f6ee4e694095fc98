package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/premiumvideo-backend/pkg/enums"
)

// Video is the catalog row for a piece of purchasable content.
type Video struct {
	ID               uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	Title            string                 `gorm:"column:title;not null"`
	Description      *string                `gorm:"column:description"`
	ThumbnailURL     *string                `gorm:"column:thumbnail_url"`
	DurationSeconds  int                    `gorm:"column:duration_seconds;not null;default:0"`
	Category         *string                `gorm:"column:category"`
	Visibility       string                 `gorm:"column:visibility;not null;default:'public'"`
	MonetizationType enums.MonetizationType `gorm:"column:monetization_type;type:monetization_type;not null;default:'free'"`
	RentPrice        decimal.NullDecimal    `gorm:"column:rent_price;type:numeric(12,2)"`
	BuyPrice         decimal.NullDecimal    `gorm:"column:buy_price;type:numeric(12,2)"`
	CreatedAt        time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}

func (Video) TableName() string { return "videos" }

func (v *Video) BeforeCreate(*gorm.DB) error {
	ensureID(&v.ID)
	return nil
}

// IsPremium reports whether the video can be sold.
func (v Video) IsPremium() bool {
	return v.MonetizationType == enums.MonetizationPremium
}

// PriceFor returns the configured price for the purchase kind and whether it is
// a positive amount.
func (v Video) PriceFor(kind enums.PurchaseKind) (decimal.Decimal, bool) {
	var price decimal.NullDecimal
	switch kind {
	case enums.PurchaseKindRent:
		price = v.RentPrice
	case enums.PurchaseKindBuy:
		price = v.BuyPrice
	default:
		return decimal.Zero, false
	}
	if !price.Valid || !price.Decimal.IsPositive() {
		return decimal.Zero, false
	}
	return price.Decimal, true
}
