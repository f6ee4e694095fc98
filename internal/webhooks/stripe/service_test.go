package stripewebhook

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stripe/stripe-go/v84"

	"github.com/angelmondragon/premiumvideo-backend/internal/checkout"
	"github.com/angelmondragon/premiumvideo-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/premiumvideo-backend/pkg/errors"
)

type stubConfirmer struct {
	calls  []string
	err    error
	result *checkout.ConfirmResult
}

func (s *stubConfirmer) Confirm(_ context.Context, sessionID string) (*checkout.ConfirmResult, error) {
	s.calls = append(s.calls, sessionID)
	if s.err != nil {
		return nil, s.err
	}
	if s.result != nil {
		return s.result, nil
	}
	return &checkout.ConfirmResult{Order: &models.Order{}}, nil
}

func sessionEvent(t *testing.T, eventType stripe.EventType, sessionID string) *stripe.Event {
	t.Helper()
	raw, err := json.Marshal(map[string]any{"id": sessionID, "object": "checkout.session"})
	if err != nil {
		t.Fatalf("marshal session: %v", err)
	}
	return &stripe.Event{Type: eventType, Data: &stripe.EventData{Raw: raw}}
}

func TestService_ConfirmsCompletedSessions(t *testing.T) {
	for _, eventType := range []stripe.EventType{
		stripe.EventTypeCheckoutSessionCompleted,
		stripe.EventTypeCheckoutSessionAsyncPaymentSucceeded,
	} {
		confirmer := &stubConfirmer{}
		svc, err := NewService(ServiceParams{Reconciler: confirmer})
		if err != nil {
			t.Fatalf("setup service: %v", err)
		}
		if err := svc.HandleEvent(context.Background(), sessionEvent(t, eventType, "cs_123")); err != nil {
			t.Fatalf("%s: handle event: %v", eventType, err)
		}
		if len(confirmer.calls) != 1 || confirmer.calls[0] != "cs_123" {
			t.Fatalf("%s: expected confirm for cs_123, got %v", eventType, confirmer.calls)
		}
	}
}

func TestService_IgnoresUnrelatedEvents(t *testing.T) {
	confirmer := &stubConfirmer{}
	svc, err := NewService(ServiceParams{Reconciler: confirmer})
	if err != nil {
		t.Fatalf("setup service: %v", err)
	}
	if err := svc.HandleEvent(context.Background(), sessionEvent(t, stripe.EventTypeCheckoutSessionExpired, "cs_1")); err != nil {
		t.Fatalf("handle event: %v", err)
	}
	if len(confirmer.calls) != 0 {
		t.Fatalf("expected no confirmations, got %v", confirmer.calls)
	}
}

func TestService_PendingPaymentIsAcknowledged(t *testing.T) {
	confirmer := &stubConfirmer{err: checkout.ErrPaymentNotCompleted}
	svc, err := NewService(ServiceParams{Reconciler: confirmer})
	if err != nil {
		t.Fatalf("setup service: %v", err)
	}
	if err := svc.HandleEvent(context.Background(), sessionEvent(t, stripe.EventTypeCheckoutSessionCompleted, "cs_async")); err != nil {
		t.Fatalf("expected pending payment to be acknowledged, got %v", err)
	}
}

func TestService_PropagatesReconcilerFailures(t *testing.T) {
	confirmer := &stubConfirmer{err: checkout.ErrReconciliationFailed}
	svc, err := NewService(ServiceParams{Reconciler: confirmer})
	if err != nil {
		t.Fatalf("setup service: %v", err)
	}
	err = svc.HandleEvent(context.Background(), sessionEvent(t, stripe.EventTypeCheckoutSessionCompleted, "cs_bad"))
	if !errors.Is(err, checkout.ErrReconciliationFailed) {
		t.Fatalf("expected reconciliation failure, got %v", err)
	}
}

func TestService_RejectsMalformedEvents(t *testing.T) {
	svc, err := NewService(ServiceParams{Reconciler: &stubConfirmer{}})
	if err != nil {
		t.Fatalf("setup service: %v", err)
	}
	if err := svc.HandleEvent(context.Background(), nil); err == nil {
		t.Fatal("expected error for nil event")
	}
	err = svc.HandleEvent(context.Background(), sessionEvent(t, stripe.EventTypeCheckoutSessionCompleted, ""))
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestNewService_RequiresReconciler(t *testing.T) {
	if _, err := NewService(ServiceParams{}); err == nil {
		t.Fatal("expected error when reconciler missing")
	}
}
