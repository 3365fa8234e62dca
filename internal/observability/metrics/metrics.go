package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// BookingMetrics exposes counters/histograms for the booking and payment flows.
type BookingMetrics struct {
	bookingsCreated   *prometheus.CounterVec
	paymentsConfirmed *prometheus.CounterVec
	intentsCreated    *prometheus.CounterVec
	notifications     *prometheus.CounterVec
	requestDuration   *prometheus.HistogramVec
}

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		bookingsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pilates",
			Name:      "bookings_created_total",
			Help:      "Booking submissions by outcome",
		}, []string{"status"}),
		paymentsConfirmed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pilates",
			Name:      "payments_confirmed_total",
			Help:      "Payment confirmations by outcome",
		}, []string{"outcome"}),
		intentsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pilates",
			Name:      "payment_intents_total",
			Help:      "Payment intent creation attempts by outcome",
		}, []string{"outcome"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pilates",
			Name:      "notifications_total",
			Help:      "Customer and admin notifications by channel",
		}, []string{"channel", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "pilates",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Latency of HTTP requests",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method", "status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.bookingsCreated, m.paymentsConfirmed, m.intentsCreated, m.notifications, m.requestDuration)
	return m
}

func (m *BookingMetrics) ObserveBookingCreated(status string) {
	if m == nil {
		return
	}
	m.bookingsCreated.WithLabelValues(status).Inc()
}

func (m *BookingMetrics) ObservePaymentConfirmed(outcome string) {
	if m == nil {
		return
	}
	m.paymentsConfirmed.WithLabelValues(outcome).Inc()
}

func (m *BookingMetrics) ObserveIntentCreated(outcome string) {
	if m == nil {
		return
	}
	m.intentsCreated.WithLabelValues(outcome).Inc()
}

func (m *BookingMetrics) ObserveNotification(channel string, ok, skipped bool) {
	if m == nil {
		return
	}
	status := "failed"
	switch {
	case skipped:
		status = "skipped"
	case ok:
		status = "sent"
	}
	m.notifications.WithLabelValues(channel, status).Inc()
}

func (m *BookingMetrics) ObserveRequest(route, method string, status int, seconds float64) {
	if m == nil {
		return
	}
	m.requestDuration.WithLabelValues(route, method, strconv.Itoa(status)).Observe(seconds)
}
