package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// OrderMetrics records checkout and lifecycle outcomes for the order engine.
type OrderMetrics struct {
	createDuration *prometheus.HistogramVec
	created        prometheus.Counter
	rejected       *prometheus.CounterVec
	transitions    *prometheus.CounterVec
	outboxLag      prometheus.Gauge
}

// NewOrderMetrics registers the order metrics on the provided registerer.
// A nil registerer yields a no-op instance, which keeps tests and tools
// that do not export metrics free of registration side effects.
func NewOrderMetrics(reg prometheus.Registerer) *OrderMetrics {
	if reg == nil {
		return &OrderMetrics{}
	}
	createDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "order_create_duration_seconds",
		Help:    "Duration of order creation transactions in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"outcome"})
	created := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "orders_created_total",
		Help: "Orders committed successfully.",
	})
	rejected := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_rejected_total",
		Help: "Order creation attempts rolled back, by reason.",
	}, []string{"reason"})
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "order_status_transitions_total",
		Help: "Admin status transitions applied, by target status.",
	}, []string{"status"})
	outboxLag := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "outbox_unpublished_events",
		Help: "Outbox rows awaiting publication.",
	})
	reg.MustRegister(createDuration, created, rejected, transitions, outboxLag)
	return &OrderMetrics{
		createDuration: createDuration,
		created:        created,
		rejected:       rejected,
		transitions:    transitions,
		outboxLag:      outboxLag,
	}
}

// ObserveCreateDuration records how long an order creation attempt took.
func (m *OrderMetrics) ObserveCreateDuration(outcome string, duration time.Duration) {
	if m == nil || m.createDuration == nil {
		return
	}
	m.createDuration.WithLabelValues(normalizeLabel(outcome)).Observe(duration.Seconds())
}

// IncCreated increments the committed-order counter.
func (m *OrderMetrics) IncCreated() {
	if m == nil || m.created == nil {
		return
	}
	m.created.Inc()
}

// IncRejected increments the rejection counter for the given reason.
func (m *OrderMetrics) IncRejected(reason string) {
	if m == nil || m.rejected == nil {
		return
	}
	m.rejected.WithLabelValues(normalizeLabel(reason)).Inc()
}

// IncTransition increments the transition counter for the target status.
func (m *OrderMetrics) IncTransition(status string) {
	if m == nil || m.transitions == nil {
		return
	}
	m.transitions.WithLabelValues(normalizeLabel(status)).Inc()
}

// SetOutboxLag reports how many outbox rows are still unpublished.
func (m *OrderMetrics) SetOutboxLag(pending int) {
	if m == nil || m.outboxLag == nil {
		return
	}
	m.outboxLag.Set(float64(pending))
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
