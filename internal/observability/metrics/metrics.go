package metrics

import "github.com/prometheus/client_golang/prometheus"

// BookingMetrics exposes counters/histograms for the booking flows.
type BookingMetrics struct {
	bookingsTotal       *prometheus.CounterVec
	cancellationsTotal  *prometheus.CounterVec
	availabilityLatency *prometheus.HistogramVec
	whatsappInbound     *prometheus.CounterVec
}

// NewBookingMetrics registers the booking metric family. A nil registerer
// falls back to the default registry.
func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		bookingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agendafacil",
			Subsystem: "bookings",
			Name:      "created_total",
			Help:      "Booking attempts by origin and outcome",
		}, []string{"origin", "outcome"}),
		cancellationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agendafacil",
			Subsystem: "bookings",
			Name:      "cancellations_total",
			Help:      "Token cancellations by outcome",
		}, []string{"outcome"}),
		availabilityLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "agendafacil",
			Subsystem: "availability",
			Name:      "request_seconds",
			Help:      "Latency of availability listings",
			Buckets:   prometheus.DefBuckets,
		}, []string{"surface"}),
		whatsappInbound: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agendafacil",
			Subsystem: "whatsapp",
			Name:      "inbound_total",
			Help:      "Inbound WhatsApp messages by flow outcome",
		}, []string{"outcome"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.bookingsTotal, m.cancellationsTotal, m.availabilityLatency, m.whatsappInbound)
	return m
}

// ObserveBooking records one booking attempt.
func (m *BookingMetrics) ObserveBooking(origin, outcome string) {
	if m == nil {
		return
	}
	m.bookingsTotal.WithLabelValues(origin, outcome).Inc()
}

// ObserveCancellation records one token-cancellation attempt.
func (m *BookingMetrics) ObserveCancellation(outcome string) {
	if m == nil {
		return
	}
	m.cancellationsTotal.WithLabelValues(outcome).Inc()
}

// ObserveAvailabilityLatency records one availability listing.
func (m *BookingMetrics) ObserveAvailabilityLatency(surface string, seconds float64) {
	if m == nil {
		return
	}
	m.availabilityLatency.WithLabelValues(surface).Observe(seconds)
}

// ObserveWhatsAppInbound records one inbound message outcome.
func (m *BookingMetrics) ObserveWhatsAppInbound(outcome string) {
	if m == nil {
		return
	}
	m.whatsappInbound.WithLabelValues(outcome).Inc()
}
