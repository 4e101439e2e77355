// Package metrics defines the prometheus collectors exposed on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Submission outcome labels.
const (
	OutcomeAccepted       = "accepted"
	OutcomeLocationFailed = "location_failed"
	OutcomeCaptureFailed  = "capture_failed"
	OutcomeUploadFailed   = "upload_failed"
	OutcomeBusy           = "busy"
)

// Set holds the agent's collectors.
type Set struct {
	SubmissionsTotal    *prometheus.CounterVec
	SubmissionDuration  prometheus.Histogram
	LocationFixDuration prometheus.Histogram
	HistoryRefreshes    *prometheus.CounterVec
	AdminQueriesTotal   prometheus.Counter
	AdminExportsTotal   prometheus.Counter
}

// New registers the collectors with reg.
func New(reg prometheus.Registerer) *Set {
	factory := promauto.With(reg)
	return &Set{
		SubmissionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "kiosk_submissions_total",
			Help: "Attendance submission attempts by outcome.",
		}, []string{"outcome"}),
		SubmissionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "kiosk_submission_duration_seconds",
			Help:    "Wall time of a whole submission attempt.",
			Buckets: prometheus.DefBuckets,
		}),
		LocationFixDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "kiosk_location_fix_duration_seconds",
			Help:    "Time waiting for a geolocation fix.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		HistoryRefreshes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "kiosk_history_refreshes_total",
			Help: "History refreshes by result.",
		}, []string{"result"}),
		AdminQueriesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "kiosk_admin_queries_total",
			Help: "Admin record queries issued.",
		}),
		AdminExportsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "kiosk_admin_exports_total",
			Help: "Admin spreadsheet exports downloaded.",
		}),
	}
}
