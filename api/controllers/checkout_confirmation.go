package controllers

import (
	"context"
	"net/http"

	"github.com/angelmondragon/premiumvideo-backend/api/responses"
	"github.com/angelmondragon/premiumvideo-backend/api/validators"
	"github.com/angelmondragon/premiumvideo-backend/internal/checkout"
	"github.com/angelmondragon/premiumvideo-backend/internal/orders"
	pkgerrors "github.com/angelmondragon/premiumvideo-backend/pkg/errors"
	"github.com/angelmondragon/premiumvideo-backend/pkg/logger"
)

const (
	paymentSuccessMessage = "Payment successful!"
	maxSessionIDLength    = 255
)

// CheckoutConfirmer settles a provider session into an order.
type CheckoutConfirmer interface {
	Confirm(ctx context.Context, sessionID string) (*checkout.ConfirmResult, error)
}

type confirmCheckoutRequest struct {
	SessionID string `json:"sessionId" validate:"required"`
}

type checkoutConfirmationResponse struct {
	Message        string           `json:"message"`
	AlreadySettled bool             `json:"alreadySettled"`
	Order          orders.OrderView `json:"order"`
}

// CheckoutConfirm is hit after the buyer returns from the hosted payment
// page. Repeated calls for the same session return the same order.
func CheckoutConfirm(confirmer CheckoutConfirmer, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if confirmer == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout reconciler unavailable"))
			return
		}

		ownerID, err := ownerFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body confirmCheckoutRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := confirmer.Confirm(r.Context(), validators.SanitizeString(body.SessionID, maxSessionIDLength))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if result == nil || result.Order == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "confirmation returned no order"))
			return
		}
		// Only the paying buyer may read the settled order.
		if result.Order.OwnerID != ownerID {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "order belongs to another user"))
			return
		}

		responses.WriteSuccess(w, checkoutConfirmationResponse{
			Message:        paymentSuccessMessage,
			AlreadySettled: result.AlreadySettled,
			Order:          orders.NewOrderView(*result.Order, nil),
		})
	}
}
