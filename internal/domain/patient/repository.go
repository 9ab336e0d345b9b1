package patient

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrNotFound        = errors.New("patient not found")
	ErrSurgeryNotFound = errors.New("surgery not found")
)

// Repository persists patients and their surgeries.
type Repository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	Update(ctx context.Context, p *Patient) error
	ListByDoctor(ctx context.Context, doctorID uuid.UUID, activeOnly bool) ([]*Patient, error)

	// ListActiveByPhone matches the canonical phone index exactly.
	ListActiveByPhone(ctx context.Context, normalized string) ([]*Patient, error)
	// ListActiveByPhoneSuffix matches canonical phones ending in suffix. Legacy lookups only.
	ListActiveByPhoneSuffix(ctx context.Context, suffix string) ([]*Patient, error)

	CreateSurgery(ctx context.Context, s *Surgery) error
	GetSurgeryByID(ctx context.Context, id uuid.UUID) (*Surgery, error)
	// GetActiveSurgery returns the most recent surgery by date.
	GetActiveSurgery(ctx context.Context, patientID uuid.UUID) (*Surgery, error)
	ListSurgeries(ctx context.Context, patientID uuid.UUID) ([]*Surgery, error)
}
