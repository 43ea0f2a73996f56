package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce          sync.Once
	apiRequestsTotal      *prometheus.CounterVec
	apiLatencySeconds     *prometheus.HistogramVec
	apiErrorsTotal        *prometheus.CounterVec
	intakeDecisionsTotal  *prometheus.CounterVec
	markingStatusChanges  *prometheus.CounterVec
	gradesReleasedTotal   *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors used across the API.
func RegisterMetrics() {
	registerOnce.Do(func() {
		apiRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "marking_api_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		apiLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "marking_api_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		apiErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "marking_api_errors_total",
			Help: "Total number of error responses returned by the API.",
		}, []string{"method", "route", "status"})

		intakeDecisionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "marking_intake_decisions_total",
			Help: "Intake eligibility decisions grouped by outcome.",
		}, []string{"outcome"})

		markingStatusChanges = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "marking_status_changes_total",
			Help: "Marking assignment status transitions grouped by target status.",
		}, []string{"status"})

		gradesReleasedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "marking_grades_released_total",
			Help: "Grades released to learners grouped by pass outcome.",
		}, []string{"pass"})

		prometheus.MustRegister(
			apiRequestsTotal,
			apiLatencySeconds,
			apiErrorsTotal,
			intakeDecisionsTotal,
			markingStatusChanges,
			gradesReleasedTotal,
		)
	})
}

// APIRequests exposes the counter for API requests.
func APIRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return apiRequestsTotal
}

// APILatency exposes the latency histogram for API requests.
func APILatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return apiLatencySeconds
}

// APIErrors exposes the counter for API error responses.
func APIErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return apiErrorsTotal
}

// IntakeDecisions exposes the counter for intake eligibility outcomes. The
// outcome label is either "accepted" or the blocking reason type.
func IntakeDecisions() *prometheus.CounterVec {
	RegisterMetrics()
	return intakeDecisionsTotal
}

// MarkingStatusChanges exposes the counter for marking status transitions.
func MarkingStatusChanges() *prometheus.CounterVec {
	RegisterMetrics()
	return markingStatusChanges
}

// GradesReleased exposes the counter for released grades.
func GradesReleased() *prometheus.CounterVec {
	RegisterMetrics()
	return gradesReleasedTotal
}
