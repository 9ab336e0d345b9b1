package followup

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound          = errors.New("follow-up not found")
	ErrResponseNotFound  = errors.New("follow-up response not found")
	ErrDuplicateResponse = errors.New("follow-up already has a response")
	// ErrConflict means the row changed status since it was read.
	ErrConflict = errors.New("follow-up was modified concurrently")
)

// Repository persists follow-ups and their responses.
type Repository interface {
	// CreateMany inserts follow-ups, skipping (surgery, day) pairs that already exist.
	// It returns how many rows were inserted.
	CreateMany(ctx context.Context, fs []*FollowUp) (int, error)
	GetByID(ctx context.Context, id uuid.UUID) (*FollowUp, error)
	ListBySurgery(ctx context.Context, surgeryID uuid.UUID) ([]*FollowUp, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*FollowUp, error)
	// ListDue returns pending follow-ups of active patients scheduled at or before now.
	ListDue(ctx context.Context, now time.Time) ([]*FollowUp, error)
	// ListInFlightByPatient returns sent and in_progress follow-ups ordered by scheduled date.
	ListInFlightByPatient(ctx context.Context, patientID uuid.UUID) ([]*FollowUp, error)
	// ListIdle returns in-flight follow-ups not updated since before.
	ListIdle(ctx context.Context, before time.Time) ([]*FollowUp, error)
	// ListUnanswered returns in-flight follow-ups sent before the given time whose doctor was not yet alerted.
	ListUnanswered(ctx context.Context, sentBefore time.Time) ([]*FollowUp, error)

	// Update writes the mutable fields of f provided the stored status still equals prev.
	Update(ctx context.Context, f *FollowUp, prev Status) error
	// Touch bumps updated_at without changing anything else.
	Touch(ctx context.Context, id uuid.UUID, at time.Time) error

	// Complete stores r and moves f from in_progress to responded atomically.
	// It returns ErrDuplicateResponse when a response for f already exists.
	Complete(ctx context.Context, f *FollowUp, r *Response) error
	GetResponse(ctx context.Context, followUpID uuid.UUID) (*Response, error)
	SaveAnalysis(ctx context.Context, followUpID uuid.UUID, a Analysis) error
	// PainHistory returns the reported pain per day for a surgery, ordered by day.
	PainHistory(ctx context.Context, surgeryID uuid.UUID) ([]PainPoint, error)
	ListResearchRecords(ctx context.Context, doctorID uuid.UUID) ([]ResearchRecord, error)
}
