package orders

import (
	"net/http"

	"github.com/angelmondragon/premiumvideo-backend/api/middleware"
	"github.com/angelmondragon/premiumvideo-backend/api/responses"
	internalorders "github.com/angelmondragon/premiumvideo-backend/internal/orders"
	pkgerrors "github.com/angelmondragon/premiumvideo-backend/pkg/errors"
	"github.com/angelmondragon/premiumvideo-backend/pkg/logger"
)

// List returns the caller's order history, newest first.
func List(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		ownerID, ok := middleware.OwnerIDFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing"))
			return
		}

		list, err := svc.ListOrders(r.Context(), ownerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if list == nil {
			list = []internalorders.OrderView{}
		}
		responses.WriteSuccess(w, list)
	}
}
