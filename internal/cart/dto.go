package cart

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/premiumvideo-backend/pkg/db/models"
	"github.com/angelmondragon/premiumvideo-backend/pkg/enums"
)

// AddItemInput is the validated body of an add-to-cart request.
type AddItemInput struct {
	VideoID      uuid.UUID
	PurchaseKind string
}

// CartItemView is a cart item with the referenced video resolved for display.
type CartItemView struct {
	ID           uuid.UUID          `json:"id"`
	VideoID      uuid.UUID          `json:"videoId"`
	Title        string             `json:"title,omitempty"`
	ThumbnailURL *string            `json:"thumbnailUrl,omitempty"`
	PurchaseKind enums.PurchaseKind `json:"purchaseType"`
	Price        decimal.Decimal    `json:"price"`
}

// CartView is the buyer-facing projection of a cart.
type CartView struct {
	ID        uuid.UUID       `json:"id"`
	OwnerID   uuid.UUID       `json:"userId"`
	Items     []CartItemView  `json:"items"`
	Total     decimal.Decimal `json:"total"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// NewCartView projects the cart. Prices come from the cart items, never the catalog.
func NewCartView(cart models.Cart, videos map[uuid.UUID]models.Video) CartView {
	view := CartView{
		ID:        cart.ID,
		OwnerID:   cart.OwnerID,
		Items:     make([]CartItemView, 0, len(cart.Items)),
		Total:     decimal.Zero,
		CreatedAt: cart.CreatedAt,
		UpdatedAt: cart.UpdatedAt,
	}
	for _, item := range cart.Items {
		iv := CartItemView{
			ID:           item.ID,
			VideoID:      item.VideoID,
			PurchaseKind: item.PurchaseKind,
			Price:        item.Price,
		}
		if video, ok := videos[item.VideoID]; ok {
			iv.Title = video.Title
			iv.ThumbnailURL = video.ThumbnailURL
		}
		view.Total = view.Total.Add(item.Price)
		view.Items = append(view.Items, iv)
	}
	return view
}

func videoIDs(cart models.Cart) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(cart.Items))
	for _, item := range cart.Items {
		ids = append(ids, item.VideoID)
	}
	return ids
}
