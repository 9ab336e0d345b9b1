// Package metrics holds the Prometheus collectors of the service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	FollowUpsDispatched = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "followup_dispatched_total",
			Help: "Follow-up templates handed to the messaging gateway, by outcome",
		},
		[]string{"outcome"},
	)

	WebhookMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "followup_webhook_messages_total",
			Help: "Inbound patient messages, by handling outcome",
		},
		[]string{"outcome"},
	)

	ResponsesAnalyzed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "followup_responses_analyzed_total",
			Help: "Questionnaire responses analyzed, by risk level and source",
		},
		[]string{"risk", "source"},
	)

	AIRequestDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "followup_ai_request_duration_seconds",
			Help:    "Duration of generative AI assessments in seconds",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30},
		},
	)

	RemindersSent = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "followup_patient_reminders_total",
			Help: "Reminder nudges sent to patients",
		},
	)

	DoctorAlerts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "followup_doctor_alerts_total",
			Help: "Notifications raised for doctors, by type",
		},
		[]string{"type"},
	)

	BackgroundTasks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "followup_background_tasks_total",
			Help: "Background task outcomes, queued and scheduled",
		},
		[]string{"task", "outcome"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "followup_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
)

func init() {
	prometheus.MustRegister(
		FollowUpsDispatched,
		WebhookMessages,
		ResponsesAnalyzed,
		AIRequestDuration,
		RemindersSent,
		DoctorAlerts,
		BackgroundTasks,
		HTTPRequestDuration,
	)
}

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
