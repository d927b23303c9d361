package metrics

import "github.com/prometheus/client_golang/prometheus"

// BookingMetrics exposes counters/histograms for the booking core.
type BookingMetrics struct {
	bookingsTotal    *prometheus.CounterVec
	transitionsTotal *prometheus.CounterVec
	quotesTotal      *prometheus.CounterVec
	opLatency        *prometheus.HistogramVec
}

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		bookingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "careconnect",
			Subsystem: "booking",
			Name:      "appointments_total",
			Help:      "Booking attempts by outcome",
		}, []string{"outcome"}),
		transitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "careconnect",
			Subsystem: "booking",
			Name:      "transitions_total",
			Help:      "Appointment status transitions by target and outcome",
		}, []string{"to", "outcome"}),
		quotesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "careconnect",
			Subsystem: "pricing",
			Name:      "quotes_total",
			Help:      "Price quotes by outcome",
		}, []string{"outcome"}),
		opLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "careconnect",
			Subsystem: "booking",
			Name:      "operation_latency_seconds",
			Help:      "Latency of booking core operations",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.bookingsTotal, m.transitionsTotal, m.quotesTotal, m.opLatency)
	return m
}

// ObserveBooking records a booking attempt; outcome is "ok" or an error kind.
func (m *BookingMetrics) ObserveBooking(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.bookingsTotal.WithLabelValues(outcome).Inc()
	m.opLatency.WithLabelValues("book").Observe(seconds)
}

func (m *BookingMetrics) ObserveTransition(to, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.transitionsTotal.WithLabelValues(to, outcome).Inc()
	m.opLatency.WithLabelValues("transition").Observe(seconds)
}

func (m *BookingMetrics) ObserveQuote(outcome string) {
	if m == nil {
		return
	}
	m.quotesTotal.WithLabelValues(outcome).Inc()
}

// OutboxMetrics counts worker deliveries.
type OutboxMetrics struct {
	delivered *prometheus.CounterVec
}

func NewOutboxMetrics(reg prometheus.Registerer) *OutboxMetrics {
	m := &OutboxMetrics{
		delivered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "careconnect",
			Subsystem: "outbox",
			Name:      "deliveries_total",
			Help:      "Outbox deliveries by event type and status",
		}, []string{"type", "status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.delivered)
	return m
}

func (m *OutboxMetrics) ObserveDelivery(eventType, status string) {
	if m == nil {
		return
	}
	m.delivered.WithLabelValues(eventType, status).Inc()
}
