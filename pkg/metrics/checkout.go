package metrics

import "github.com/prometheus/client_golang/prometheus"

const (
	ResultCreated        = "created"
	ResultAlreadySettled = "already_settled"
	ResultEmpty          = "empty"
	ResultUnpaid         = "unpaid"
	ResultFailed         = "failed"
)

// CheckoutMetrics counts checkout session and confirmation outcomes.
type CheckoutMetrics struct {
	sessions      *prometheus.CounterVec
	confirmations *prometheus.CounterVec
}

// NewCheckoutMetrics registers the checkout counters on the provided registerer.
// A nil registerer yields a no-op recorder.
func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	if reg == nil {
		return &CheckoutMetrics{}
	}
	sessions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_sessions_total",
		Help: "Checkout session creation attempts by result.",
	}, []string{"result"})
	confirmations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_confirmations_total",
		Help: "Payment confirmations by result.",
	}, []string{"result"})
	reg.MustRegister(sessions, confirmations)
	return &CheckoutMetrics{sessions: sessions, confirmations: confirmations}
}

func (m *CheckoutMetrics) IncSession(result string) {
	if m == nil || m.sessions == nil {
		return
	}
	m.sessions.WithLabelValues(normalizeLabel(result)).Inc()
}

func (m *CheckoutMetrics) IncConfirmation(result string) {
	if m == nil || m.confirmations == nil {
		return
	}
	m.confirmations.WithLabelValues(normalizeLabel(result)).Inc()
}
