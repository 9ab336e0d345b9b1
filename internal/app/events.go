package app

import (
	"context"
	"time"

	"github.com/google/uuid"

	"postop_followup/internal/domain/followup"
)

// Event types published on the follow-up stream.
const (
	EventFollowUpSent      = "followup.sent"
	EventFollowUpResponded = "followup.responded"
	EventFollowUpAnalyzed  = "followup.analyzed"
)

// Event is a follow-up lifecycle fact for downstream consumers (statistics, research).
type Event struct {
	Type       string             `json:"type"`
	FollowUpID uuid.UUID          `json:"followUpId"`
	PatientID  uuid.UUID          `json:"patientId"`
	DoctorID   uuid.UUID          `json:"doctorId"`
	DayNumber  int                `json:"dayNumber"`
	RiskLevel  followup.RiskLevel `json:"riskLevel,omitempty"`
	OccurredAt time.Time          `json:"occurredAt"`
}

// EventPublisher delivers events. Failures are logged by callers, never propagated.
type EventPublisher interface {
	Publish(ctx context.Context, ev Event) error
}

// NoopEventPublisher is used when no broker is configured.
type NoopEventPublisher struct{}

func (NoopEventPublisher) Publish(context.Context, Event) error { return nil }

func newEvent(typ string, f *followup.FollowUp, at time.Time) Event {
	return Event{
		Type:       typ,
		FollowUpID: f.ID,
		PatientID:  f.PatientID,
		DoctorID:   f.DoctorID,
		DayNumber:  f.DayNumber,
		OccurredAt: at,
	}
}
