package checkout

import pkgerrors "github.com/angelmondragon/premiumvideo-backend/pkg/errors"

var (
	ErrEmptyCart            = pkgerrors.New(pkgerrors.CodeValidation, "Your cart is empty.")
	ErrNoValidItems         = pkgerrors.New(pkgerrors.CodeValidation, "No valid items in the cart.")
	ErrPaymentNotCompleted  = pkgerrors.New(pkgerrors.CodePaymentNotCompleted, "Payment not successful.")
	ErrReconciliationFailed = pkgerrors.New(pkgerrors.CodeReconciliationFailed, "Order could not be reconciled with the payment.")
)
