package stripe

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stripe/stripe-go/v84"

	"github.com/angelmondragon/premiumvideo-backend/pkg/config"
)

type fakeSessions struct {
	newParams *stripe.CheckoutSessionParams
	getID     string
	getParams *stripe.CheckoutSessionParams
	block     bool
	err       error
}

func (f *fakeSessions) New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	f.newParams = params
	if f.block {
		<-params.Context.Done()
		return nil, params.Context.Err()
	}
	if f.err != nil {
		return nil, f.err
	}
	return &stripe.CheckoutSession{ID: "cs_test_1", URL: "https://checkout.stripe.test/cs_test_1"}, nil
}

func (f *fakeSessions) Get(id string, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	f.getID = id
	f.getParams = params
	if f.err != nil {
		return nil, f.err
	}
	return &stripe.CheckoutSession{ID: id, PaymentStatus: stripe.CheckoutSessionPaymentStatusPaid}, nil
}

func TestNewClientValidatesConfig(t *testing.T) {
	cases := []struct {
		name string
		cfg  config.StripeConfig
	}{
		{"missing key", config.StripeConfig{Secret: "whsec_1"}},
		{"missing secret", config.StripeConfig{APIKey: "sk_test_1"}},
		{"live key in test", config.StripeConfig{APIKey: "sk_live_1", Secret: "whsec_1"}},
		{"unknown env", config.StripeConfig{APIKey: "sk_test_1", Secret: "whsec_1", Env: "staging"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewClient(context.Background(), tc.cfg, nil); err == nil {
				t.Fatalf("expected error for %s", tc.name)
			}
		})
	}

	client, err := NewClient(context.Background(), config.StripeConfig{APIKey: "sk_test_1", Secret: "whsec_1", Env: "TEST"}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if client.Environment() != testEnv {
		t.Fatalf("expected test env, got %q", client.Environment())
	}
	if client.requestTimeout != defaultRequestTimeout {
		t.Fatalf("expected default timeout, got %v", client.requestTimeout)
	}
}

func TestCreateCheckoutSessionAttachesDeadline(t *testing.T) {
	backend := &fakeSessions{}
	client := newClient(testEnv, "whsec_1", time.Second, backend)

	sess, err := client.CreateCheckoutSession(context.Background(), &stripe.CheckoutSessionParams{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sess.ID != "cs_test_1" {
		t.Fatalf("unexpected session %q", sess.ID)
	}
	if backend.newParams.Context == nil {
		t.Fatal("expected params context to be set")
	}
	if _, ok := backend.newParams.Context.Deadline(); !ok {
		t.Fatal("expected params context to carry a deadline")
	}
}

func TestCreateCheckoutSessionTimesOut(t *testing.T) {
	backend := &fakeSessions{block: true}
	client := newClient(testEnv, "whsec_1", 20*time.Millisecond, backend)

	_, err := client.CreateCheckoutSession(context.Background(), &stripe.CheckoutSessionParams{})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestGetCheckoutSessionExpandsPaymentIntent(t *testing.T) {
	backend := &fakeSessions{}
	client := newClient(testEnv, "whsec_1", time.Second, backend)

	if _, err := client.GetCheckoutSession(context.Background(), " "); err == nil {
		t.Fatal("expected error for blank session id")
	}

	sess, err := client.GetCheckoutSession(context.Background(), "cs_test_2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if backend.getID != "cs_test_2" || sess.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
		t.Fatalf("unexpected lookup id=%q status=%q", backend.getID, sess.PaymentStatus)
	}
	if len(backend.getParams.Expand) != 1 || *backend.getParams.Expand[0] != "payment_intent" {
		t.Fatalf("expected payment_intent expansion, got %v", backend.getParams.Expand)
	}
}

func TestConstructEventVerifiesSignature(t *testing.T) {
	client := newClient(testEnv, "whsec_test", time.Second, &fakeSessions{})

	payload, err := json.Marshal(map[string]any{
		"id":          "evt_1",
		"object":      "event",
		"type":        "checkout.session.completed",
		"api_version": stripe.APIVersion,
		"data":        map[string]any{"object": map[string]any{"id": "cs_test_1", "object": "checkout.session"}},
	})
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}

	ts := time.Now().Unix()
	mac := hmac.New(sha256.New, []byte("whsec_test"))
	mac.Write([]byte(fmt.Sprintf("%d.%s", ts, payload)))
	header := fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))

	event, err := client.ConstructEvent(payload, header)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if event.ID != "evt_1" {
		t.Fatalf("unexpected event id %q", event.ID)
	}

	if _, err := client.ConstructEvent(payload, fmt.Sprintf("t=%d,v1=deadbeef", ts)); err == nil {
		t.Fatal("expected invalid signature error")
	}
}
