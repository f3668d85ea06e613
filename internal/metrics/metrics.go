package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "shopsphere"

// CartMetrics records cart operations, checkouts and background delivery.
// A nil *CartMetrics is valid and records nothing.
type CartMetrics struct {
	operations   *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	ordersPlaced prometheus.Counter
	outbox       *prometheus.CounterVec
	breaker      *prometheus.CounterVec
}

// NewCartMetrics registers the cart metrics on the provided registerer.
func NewCartMetrics(reg prometheus.Registerer) *CartMetrics {
	if reg == nil {
		return &CartMetrics{}
	}
	operations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cart_operations_total",
		Help:      "Cart operations by outcome.",
	}, []string{"operation", "outcome"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "cart_operation_duration_seconds",
		Help:      "Duration of cart operations in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation"})
	ordersPlaced := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "orders_placed_total",
		Help:      "Orders persisted by checkout.",
	})
	outbox := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "outbox_events_total",
		Help:      "Outbox events handled by the publisher.",
	}, []string{"outcome"})
	breaker := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "circuit_breaker_transitions_total",
		Help:      "Circuit breaker state transitions.",
	}, []string{"name", "to"})
	reg.MustRegister(operations, duration, ordersPlaced, outbox, breaker)
	return &CartMetrics{
		operations:   operations,
		duration:     duration,
		ordersPlaced: ordersPlaced,
		outbox:       outbox,
		breaker:      breaker,
	}
}

// ObserveOperation counts one cart operation and records how long it took.
func (m *CartMetrics) ObserveOperation(operation, outcome string, d time.Duration) {
	if m == nil || m.operations == nil {
		return
	}
	operation = normalizeLabel(operation)
	m.operations.WithLabelValues(operation, normalizeLabel(outcome)).Inc()
	m.duration.WithLabelValues(operation).Observe(d.Seconds())
}

func (m *CartMetrics) IncOrdersPlaced() {
	if m == nil || m.ordersPlaced == nil {
		return
	}
	m.ordersPlaced.Inc()
}

func (m *CartMetrics) IncOutbox(outcome string) {
	if m == nil || m.outbox == nil {
		return
	}
	m.outbox.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// BreakerTransition matches circuitbreaker.Settings.OnStateChange.
func (m *CartMetrics) BreakerTransition(name, _, to string) {
	if m == nil || m.breaker == nil {
		return
	}
	m.breaker.WithLabelValues(normalizeLabel(name), normalizeLabel(to)).Inc()
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
