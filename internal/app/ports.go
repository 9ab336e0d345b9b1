package app

import (
	"context"
	"time"

	"postop_followup/internal/domain/followup"
	"postop_followup/internal/domain/notification"
	"postop_followup/internal/domain/patient"
)

// TaskQueue runs work after the caller has returned. Enqueue never blocks;
// it reports false when the task was dropped.
type TaskQueue interface {
	Enqueue(name string, fn func(ctx context.Context) error) bool
}

// NotificationPublisher pushes stored notifications to live dashboards.
type NotificationPublisher interface {
	Publish(ctx context.Context, n *notification.Notification) error
}

// ObjectStore receives research exports.
type ObjectStore interface {
	Put(ctx context.Context, key, contentType string, body []byte) error
}

// AIRequest is everything the model sees about one response.
type AIRequest struct {
	SurgeryType   patient.SurgeryType
	DayNumber     int
	PatientAge    int // 0 when unknown
	Comorbidities []string
	Answers       followup.Answers
	RuleFlags     []string
	PainHistory   []followup.PainPoint
}

// AIAssessment is the structured model output.
type AIAssessment struct {
	RiskLevel       followup.RiskLevel
	RedFlags        []string
	Recommendations []string
	EmpathicReply   string
	Analysis        string
}

// AIAnalyzer produces a clinical assessment from a generative model.
type AIAnalyzer interface {
	Assess(ctx context.Context, req AIRequest) (*AIAssessment, error)
}

// Clock is swapped in tests.
type Clock func() time.Time
