package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/premiumvideo-backend/pkg/db/models"
	"github.com/angelmondragon/premiumvideo-backend/pkg/enums"
)

// OrderItemView is an order item with its video resolved for display.
type OrderItemView struct {
	ID           uuid.UUID          `json:"id"`
	VideoID      uuid.UUID          `json:"videoId"`
	Title        string             `json:"title,omitempty"`
	ThumbnailURL *string            `json:"thumbnailUrl,omitempty"`
	PurchaseKind enums.PurchaseKind `json:"purchaseType"`
	Price        decimal.Decimal    `json:"price"`
}

// OrderView is the buyer-facing projection of an order.
type OrderView struct {
	ID                 uuid.UUID         `json:"id"`
	OwnerID            uuid.UUID         `json:"userId"`
	TotalAmount        decimal.Decimal   `json:"totalAmount"`
	Currency           string            `json:"currency"`
	Status             enums.OrderStatus `json:"status"`
	ExternalPaymentRef string            `json:"paymentId"`
	Items              []OrderItemView   `json:"items"`
	CreatedAt          time.Time         `json:"createdAt"`
}

// NewOrderView projects an order, resolving titles from videos when present.
func NewOrderView(order models.Order, videos map[uuid.UUID]models.Video) OrderView {
	view := OrderView{
		ID:                 order.ID,
		OwnerID:            order.OwnerID,
		TotalAmount:        order.TotalAmount,
		Currency:           order.Currency,
		Status:             order.Status,
		ExternalPaymentRef: order.ExternalPaymentRef,
		Items:              make([]OrderItemView, 0, len(order.Items)),
		CreatedAt:          order.CreatedAt,
	}
	for _, item := range order.Items {
		iv := OrderItemView{
			ID:           item.ID,
			VideoID:      item.VideoID,
			PurchaseKind: item.PurchaseKind,
			Price:        item.Price,
		}
		if video, ok := videos[item.VideoID]; ok {
			iv.Title = video.Title
			iv.ThumbnailURL = video.ThumbnailURL
		}
		view.Items = append(view.Items, iv)
	}
	return view
}

// VideoIDs collects the distinct video ids referenced by the orders.
func VideoIDs(orders ...models.Order) []uuid.UUID {
	seen := map[uuid.UUID]struct{}{}
	ids := []uuid.UUID{}
	for _, order := range orders {
		for _, item := range order.Items {
			if _, ok := seen[item.VideoID]; ok {
				continue
			}
			seen[item.VideoID] = struct{}{}
			ids = append(ids, item.VideoID)
		}
	}
	return ids
}
