package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestObserveBookingCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewBookingMetrics(reg)

	m.ObserveBooking("public", "created")
	m.ObserveBooking("public", "created")
	m.ObserveBooking("dashboard", "conflict")
	m.ObserveCancellation("cancelled")
	m.ObserveWhatsAppInbound("confirmed")
	m.ObserveAvailabilityLatency("public", 0.042)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}

	byName := map[string]*dto.MetricFamily{}
	for _, mf := range families {
		byName[mf.GetName()] = mf
	}

	bookings := byName["agendafacil_bookings_created_total"]
	if bookings == nil {
		t.Fatal("bookings counter not registered")
	}
	var publicCreated float64
	for _, metric := range bookings.GetMetric() {
		labels := map[string]string{}
		for _, lp := range metric.GetLabel() {
			labels[lp.GetName()] = lp.GetValue()
		}
		if labels["origin"] == "public" && labels["outcome"] == "created" {
			publicCreated = metric.GetCounter().GetValue()
		}
	}
	if publicCreated != 2 {
		t.Errorf("public/created = %v, want 2", publicCreated)
	}

	if byName["agendafacil_availability_request_seconds"] == nil {
		t.Error("availability histogram not registered")
	}
	if byName["agendafacil_whatsapp_inbound_total"] == nil {
		t.Error("whatsapp counter not registered")
	}
}

func TestNilReceiverIsSafe(t *testing.T) {
	var m *BookingMetrics
	m.ObserveBooking("public", "created")
	m.ObserveCancellation("not_found")
	m.ObserveAvailabilityLatency("admin", 1)
	m.ObserveWhatsAppInbound("ignored")
}
