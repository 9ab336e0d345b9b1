package conversation

import (
	"database/sql"
	"time"

	"github.com/google/uuid"

	"postop_followup/internal/domain/followup"
)

// State is the conversational cursor of a patient.
type State string

const (
	StateIdle                 State = "idle"
	StateAwaitingConfirmation State = "awaiting_confirmation"
	StateInQuestionnaire      State = "in_questionnaire"
	StateCompleted            State = "completed"
)

// Conversation tracks where a patient is in the WhatsApp exchange. Each patient has one.
type Conversation struct {
	ID         uuid.UUID
	PatientID  uuid.UUID
	Phone      string
	State      State
	Step       int // index of the current question while in_questionnaire
	FollowUpID uuid.NullUUID
	// Answers collected so far for FollowUpID.
	Answers        followup.Answers
	LastInboundAt  sql.NullTime
	LastOutboundAt sql.NullTime
	UpdatedAt      time.Time
}

// New returns an idle conversation for a patient.
func New(patientID uuid.UUID, phone string) *Conversation {
	return &Conversation{
		ID:        uuid.New(),
		PatientID: patientID,
		Phone:     phone,
		State:     StateIdle,
	}
}

// Bind resets the conversation onto a freshly dispatched follow-up.
func (c *Conversation) Bind(followUpID uuid.UUID, at time.Time) {
	c.State = StateAwaitingConfirmation
	c.Step = 0
	c.FollowUpID = uuid.NullUUID{UUID: followUpID, Valid: true}
	c.Answers = followup.Answers{}
	c.LastOutboundAt = sql.NullTime{Time: at, Valid: true}
}

// StartQuestionnaire places the cursor on the given question.
func (c *Conversation) StartQuestionnaire(step int) {
	c.State = StateInQuestionnaire
	c.Step = step
	c.Answers = followup.Answers{}
}

// Complete closes the questionnaire.
func (c *Conversation) Complete() {
	c.State = StateCompleted
	c.Step = 0
}

// BoundTo reports whether the conversation currently tracks the given follow-up.
func (c *Conversation) BoundTo(followUpID uuid.UUID) bool {
	return c.FollowUpID.Valid && c.FollowUpID.UUID == followUpID
}

// Inbound records a message from the patient.
func (c *Conversation) Inbound(at time.Time) {
	c.LastInboundAt = sql.NullTime{Time: at, Valid: true}
}

// Outbound records a message to the patient.
func (c *Conversation) Outbound(at time.Time) {
	c.LastOutboundAt = sql.NullTime{Time: at, Valid: true}
}
