package controllers

import (
	"net/http"

	"github.com/angelmondragon/premiumvideo-backend/api/responses"
	"github.com/angelmondragon/premiumvideo-backend/internal/checkout"
	pkgerrors "github.com/angelmondragon/premiumvideo-backend/pkg/errors"
	"github.com/angelmondragon/premiumvideo-backend/pkg/logger"
)

// CheckoutCreateSession opens a hosted payment session for the caller's cart.
func CheckoutCreateSession(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		ownerID, err := ownerFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.CreateSession(r.Context(), ownerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
