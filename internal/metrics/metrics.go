// Package metrics holds the Prometheus collectors of the pipeline service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BookingsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_bookings_total",
			Help: "Interview booking attempts by result",
		},
		[]string{"team", "result"},
	)

	RejectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_rejections_total",
			Help: "System rejections recorded, by team and whether the application became fully rejected",
		},
		[]string{"team", "fully_rejected"},
	)

	OffersExtended = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_offers_extended_total",
			Help: "Interview and trial offers extended",
		},
		[]string{"team", "kind"},
	)

	CalendarCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pipeline_calendar_call_duration_seconds",
			Help:    "Latency of external calendar calls",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op", "outcome"},
	)

	StaleClaimsReverted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pipeline_stale_claims_reverted_total",
			Help: "SCHEDULING claims reverted to PENDING by the janitor",
		},
	)
)

// Booking results.
const (
	ResultBooked    = "booked"
	ResultConflict  = "conflict"
	ResultMissing   = "config_missing"
	ResultCalendar  = "calendar_error"
	ResultError     = "error"
	ResultCancelled = "cancelled"
)
