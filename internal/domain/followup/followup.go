package followup

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// FollowUp is one scheduled questionnaire for a surgery, identified by its day offset.
type FollowUp struct {
	ID              uuid.UUID
	SurgeryID       uuid.UUID
	PatientID       uuid.UUID
	DoctorID        uuid.UUID
	DayNumber       int
	ScheduledDate   time.Time
	Status          Status
	SentAt          sql.NullTime
	RespondedAt     sql.NullTime
	SendAttempts    int
	DoctorAlertedAt sql.NullTime
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Advance moves the follow-up to the given status, stamping the matching timestamp.
// It returns ErrIllegalTransition (wrapped) and leaves f untouched when the move is not allowed.
func (f *FollowUp) Advance(to Status, at time.Time) error {
	next, err := Transition(f.Status, to)
	if err != nil {
		return err
	}
	f.Status = next
	switch next {
	case StatusSent:
		f.SentAt = sql.NullTime{Time: at, Valid: true}
	case StatusResponded:
		f.RespondedAt = sql.NullTime{Time: at, Valid: true}
	}
	f.UpdatedAt = at
	return nil
}
