package checkout

import (
	"context"
	"errors"

	"github.com/stripe/stripe-go/v84"
)

type stripeSessions interface {
	CreateCheckoutSession(ctx context.Context, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	GetCheckoutSession(ctx context.Context, sessionID string) (*stripe.CheckoutSession, error)
}

// StripeProvider adapts Stripe Checkout Sessions to PaymentProvider.
type StripeProvider struct {
	client stripeSessions
}

func NewStripeProvider(client stripeSessions) (*StripeProvider, error) {
	if client == nil {
		return nil, errors.New("stripe client required")
	}
	return &StripeProvider{client: client}, nil
}

func (p *StripeProvider) OpenSession(ctx context.Context, params OpenSessionParams) (*ProviderSession, error) {
	req := &stripe.CheckoutSessionParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		SuccessURL:         stripe.String(params.SuccessURL),
		CancelURL:          stripe.String(params.CancelURL),
	}
	for _, item := range params.LineItems {
		quantity := item.Quantity
		if quantity <= 0 {
			quantity = 1
		}
		req.LineItems = append(req.LineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency: stripe.String(params.Currency),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(item.Name),
				},
				UnitAmount: stripe.Int64(item.UnitAmount),
			},
			Quantity: stripe.Int64(quantity),
		})
	}
	if len(params.Metadata) > 0 {
		req.Metadata = make(map[string]string, len(params.Metadata))
		for key, value := range params.Metadata {
			req.Metadata[key] = value
		}
	}

	sess, err := p.client.CreateCheckoutSession(ctx, req)
	if err != nil {
		return nil, err
	}
	return fromStripeSession(sess), nil
}

func (p *StripeProvider) GetSession(ctx context.Context, sessionID string) (*ProviderSession, error) {
	sess, err := p.client.GetCheckoutSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return fromStripeSession(sess), nil
}

func fromStripeSession(sess *stripe.CheckoutSession) *ProviderSession {
	if sess == nil {
		return nil
	}
	out := &ProviderSession{
		ID:          sess.ID,
		URL:         sess.URL,
		AmountTotal: sess.AmountTotal,
		Currency:    string(sess.Currency),
		Metadata:    sess.Metadata,
		PaymentRef:  sess.ID,
	}
	switch sess.PaymentStatus {
	case stripe.CheckoutSessionPaymentStatusPaid, stripe.CheckoutSessionPaymentStatusNoPaymentRequired:
		out.Paid = true
	}
	// Zero-amount sessions carry no payment intent; the session id stands in.
	if sess.PaymentIntent != nil && sess.PaymentIntent.ID != "" {
		out.PaymentRef = sess.PaymentIntent.ID
	}
	return out
}
