package checkout

import (
	"context"
)

const (
	MetadataCartID = "cartId"
	MetadataUserID = "userId"
)

// LineItem is one priced entry on the hosted payment page.
type LineItem struct {
	Name       string
	UnitAmount int64
	Quantity   int64
}

// OpenSessionParams describes a provider session to open.
type OpenSessionParams struct {
	LineItems  []LineItem
	Currency   string
	SuccessURL string
	CancelURL  string
	Metadata   map[string]string
}

// ProviderSession is the provider's view of a checkout session. AmountTotal is
// in minor currency units. PaymentRef identifies the captured payment.
type ProviderSession struct {
	ID          string
	URL         string
	Paid        bool
	AmountTotal int64
	Currency    string
	PaymentRef  string
	Metadata    map[string]string
}

// PaymentProvider is the hosted-checkout port. Implementations bound every call
// with their own timeout.
type PaymentProvider interface {
	OpenSession(ctx context.Context, params OpenSessionParams) (*ProviderSession, error)
	GetSession(ctx context.Context, sessionID string) (*ProviderSession, error)
}
