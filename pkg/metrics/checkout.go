package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CheckoutMetrics records pricing and checkout observations.
type CheckoutMetrics struct {
	outcomes       *prometheus.CounterVec
	verifyDuration *prometheus.HistogramVec
	recomputations prometheus.Counter
}

// NewCheckoutMetrics registers the checkout metrics on the provided registerer.
func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	if reg == nil {
		return &CheckoutMetrics{}
	}
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_outcomes_total",
		Help: "Terminal checkout outcomes by result.",
	}, []string{"outcome", "payment_method"})
	verifyDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gateway_verify_duration_seconds",
		Help:    "Duration of payment gateway verification calls.",
		Buckets: prometheus.DefBuckets,
	}, []string{"result"})
	recomputations := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pricing_recomputations_total",
		Help: "Cart price breakdown recomputations.",
	})
	reg.MustRegister(outcomes, verifyDuration, recomputations)
	return &CheckoutMetrics{
		outcomes:       outcomes,
		verifyDuration: verifyDuration,
		recomputations: recomputations,
	}
}

// IncOutcome increments the terminal-state counter.
func (c *CheckoutMetrics) IncOutcome(outcome, paymentMethod string) {
	if c == nil || c.outcomes == nil {
		return
	}
	c.outcomes.WithLabelValues(normalizeLabel(outcome), normalizeLabel(paymentMethod)).Inc()
}

// ObserveVerifyDuration records one gateway verification round trip.
func (c *CheckoutMetrics) ObserveVerifyDuration(result string, duration time.Duration) {
	if c == nil || c.verifyDuration == nil {
		return
	}
	c.verifyDuration.WithLabelValues(normalizeLabel(result)).Observe(duration.Seconds())
}

// IncRecomputation counts one pricing engine run.
func (c *CheckoutMetrics) IncRecomputation() {
	if c == nil || c.recomputations == nil {
		return
	}
	c.recomputations.Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
