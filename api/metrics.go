package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus counters for booking and reporting.
type Metrics struct {
	registry        *prometheus.Registry
	pixelsBooked    prometheus.Counter
	regionsBooked   prometheus.Counter
	bookingFailures *prometheus.CounterVec
	reportsServed   prometheus.Counter
	poolsBooked     prometheus.Histogram
	ensembleMembers prometheus.Histogram
}

// NewMetrics creates and registers the API metrics on a private registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		pixelsBooked: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cbook_pixels_booked_total",
			Help: "Total number of pixels booked",
		}),
		regionsBooked: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cbook_regions_booked_total",
			Help: "Total number of regions booked from activity data",
		}),
		bookingFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cbook_booking_failures_total",
			Help: "Bookings rejected, by reason",
		}, []string{"reason"}),
		reportsServed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cbook_reports_served_total",
			Help: "Total number of reports computed",
		}),
		poolsBooked: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cbook_pools_per_run",
			Help:    "Number of pools in a booked collection",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		}),
		ensembleMembers: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cbook_ensemble_members",
			Help:    "Ensemble width of booked runs",
			Buckets: []float64{1, 10, 50, 100, 500, 1000},
		}),
	}

	registry.MustRegister(
		m.pixelsBooked,
		m.regionsBooked,
		m.bookingFailures,
		m.reportsServed,
		m.poolsBooked,
		m.ensembleMembers,
	)
	return m
}

// ObserveRun records a successful booking.
func (m *Metrics) ObserveRun(region bool, pools, width int) {
	if region {
		m.regionsBooked.Inc()
	} else {
		m.pixelsBooked.Inc()
	}
	m.poolsBooked.Observe(float64(pools))
	m.ensembleMembers.Observe(float64(width))
}

// IncFailures counts a rejected booking.
func (m *Metrics) IncFailures(reason string) {
	m.bookingFailures.WithLabelValues(reason).Inc()
}

// IncReports counts a computed report.
func (m *Metrics) IncReports() {
	m.reportsServed.Inc()
}

// Handler returns an http.Handler that serves Prometheus metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
