package followup

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Response is the completed questionnaire of a follow-up. There is at most one per follow-up.
type Response struct {
	ID         uuid.UUID
	FollowUpID uuid.UUID
	Answers    Answers
	// PainLevel mirrors Answers.PainLevel for querying; it is only set by NewResponse.
	PainLevel sql.NullInt32

	RiskLevel       RiskLevel
	RedFlags        []string
	Recommendations []string
	AIAnalysis      string
	EmpathicReply   string
	AnalyzedAt      sql.NullTime
	CreatedAt       time.Time
}

// NewResponse builds a response with its denormalised fields derived from answers.
func NewResponse(followUpID uuid.UUID, answers Answers, at time.Time) *Response {
	r := &Response{
		ID:         uuid.New(),
		FollowUpID: followUpID,
		Answers:    answers,
		CreatedAt:  at,
	}
	if pain, ok := answers.Pain(); ok {
		r.PainLevel = sql.NullInt32{Int32: int32(pain), Valid: true}
	}
	return r
}

// Analyzed reports whether an analysis result has been stored.
func (r *Response) Analyzed() bool {
	return r.AnalyzedAt.Valid
}

// Analysis is the combined rule and AI assessment stored on a response.
type Analysis struct {
	RiskLevel       RiskLevel
	RedFlags        []string
	Recommendations []string
	AIAnalysis      string
	EmpathicReply   string
	AnalyzedAt      time.Time
}

// PainPoint is one (day, pain) observation of a surgery's history.
type PainPoint struct {
	Day  int
	Pain int
}

// ResearchRecord is a flattened response row for research export.
type ResearchRecord struct {
	PatientID   uuid.UUID
	SurgeryID   uuid.UUID
	SurgeryType string
	DayNumber   int
	PainLevel   sql.NullInt32
	RiskLevel   RiskLevel
	RedFlags    []string
	RespondedAt time.Time
}
