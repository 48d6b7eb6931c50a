package metrics

import "github.com/prometheus/client_golang/prometheus"

// OutboxMetrics records publisher activity for the transactional outbox.
type OutboxMetrics struct {
	published prometheus.Counter
	failures  prometheus.Counter
	pending   prometheus.Gauge
}

// NewOutboxMetrics registers the outbox metrics on the provided registerer.
func NewOutboxMetrics(reg prometheus.Registerer) *OutboxMetrics {
	if reg == nil {
		return &OutboxMetrics{}
	}
	published := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "outbox_published_total",
		Help: "Outbox events published to the broker.",
	})
	failures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "outbox_publish_failures_total",
		Help: "Outbox publish attempts that failed.",
	})
	pending := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "outbox_pending",
		Help: "Outbox events awaiting publication in the last poll.",
	})
	reg.MustRegister(published, failures, pending)
	return &OutboxMetrics{published: published, failures: failures, pending: pending}
}

// IncPublished counts one successfully published event.
func (o *OutboxMetrics) IncPublished() {
	if o == nil || o.published == nil {
		return
	}
	o.published.Inc()
}

// IncFailure counts one failed publish attempt.
func (o *OutboxMetrics) IncFailure() {
	if o == nil || o.failures == nil {
		return
	}
	o.failures.Inc()
}

// SetPending records the pending backlog size observed by the poller.
func (o *OutboxMetrics) SetPending(n int) {
	if o == nil || o.pending == nil {
		return
	}
	o.pending.Set(float64(n))
}
