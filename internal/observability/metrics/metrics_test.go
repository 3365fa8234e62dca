package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestBookingMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewBookingMetrics(reg)
	m.ObserveBookingCreated("created")
	m.ObserveBookingCreated("created")
	m.ObservePaymentConfirmed("completed")
	m.ObserveIntentCreated("created")
	m.ObserveRequest("/api/booking", "POST", 200, 0.02)

	if got := testutil.ToFloat64(m.bookingsCreated.WithLabelValues("created")); got != 2 {
		t.Fatalf("expected 2 bookings, got %v", got)
	}
	if got := testutil.ToFloat64(m.paymentsConfirmed.WithLabelValues("completed")); got != 1 {
		t.Fatalf("expected 1 confirmation, got %v", got)
	}
}

func TestNotificationStatusLabels(t *testing.T) {
	m := NewBookingMetrics(prometheus.NewRegistry())
	m.ObserveNotification("email", true, false)
	m.ObserveNotification("sms", false, false)
	m.ObserveNotification("medical_email", true, true)

	cases := map[[2]string]float64{
		{"email", "sent"}:           1,
		{"sms", "failed"}:           1,
		{"medical_email", "skipped"}: 1,
		{"email", "failed"}:         0,
	}
	for labels, want := range cases {
		if got := testutil.ToFloat64(m.notifications.WithLabelValues(labels[0], labels[1])); got != want {
			t.Fatalf("%v: expected %v, got %v", labels, want, got)
		}
	}
}

func TestBookingMetricsNilSafe(t *testing.T) {
	var m *BookingMetrics
	m.ObserveBookingCreated("created")
	m.ObservePaymentConfirmed("failed")
	m.ObserveIntentCreated("error")
	m.ObserveNotification("sms", false, false)
	m.ObserveRequest("/health", "GET", 200, 0.001)
}
