package stripewebhook

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/stripe/stripe-go/v84"

	"github.com/angelmondragon/premiumvideo-backend/internal/checkout"
	pkgerrors "github.com/angelmondragon/premiumvideo-backend/pkg/errors"
	"github.com/angelmondragon/premiumvideo-backend/pkg/logger"
)

type confirmer interface {
	Confirm(ctx context.Context, sessionID string) (*checkout.ConfirmResult, error)
}

type ServiceParams struct {
	Reconciler confirmer
	Logger     *logger.Logger
}

// Service routes verified Stripe events to the payment reconciler.
type Service struct {
	reconciler confirmer
	logg       *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Reconciler == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "reconciler required")
	}
	return &Service{reconciler: params.Reconciler, logg: params.Logger}, nil
}

// HandleEvent confirms the session named by checkout completion events. Other
// event types are acknowledged and ignored.
func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil || event.Data == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}

	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted,
		stripe.EventTypeCheckoutSessionAsyncPaymentSucceeded:
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode checkout session event")
		}
		sessionID := strings.TrimSpace(sess.ID)
		if sessionID == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, "checkout session id missing")
		}

		result, err := s.reconciler.Confirm(ctx, sessionID)
		if errors.Is(err, checkout.ErrPaymentNotCompleted) {
			// Delayed payment methods settle on a later async_payment_succeeded event.
			s.info(ctx, sessionID, "stripe.webhook.payment_pending")
			return nil
		}
		if err != nil {
			return err
		}
		if result != nil && !result.AlreadySettled {
			s.info(ctx, sessionID, "stripe.webhook.order_created")
		}
		return nil
	default:
		return nil
	}
}

func (s *Service) info(ctx context.Context, sessionID, msg string) {
	if s.logg == nil {
		return
	}
	s.logg.Info(s.logg.WithCheckoutSession(ctx, sessionID), msg)
}
