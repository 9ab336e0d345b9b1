package conversation

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("conversation not found")

// Repository persists conversations and the log of processed gateway messages.
type Repository interface {
	GetByPatient(ctx context.Context, patientID uuid.UUID) (*Conversation, error)
	// Save inserts or updates the conversation of c.PatientID.
	Save(ctx context.Context, c *Conversation) error
	// SaveProcessed saves c and records messageID atomically. An empty messageID only saves c.
	SaveProcessed(ctx context.Context, c *Conversation, messageID string) error
	IsProcessed(ctx context.Context, messageID string) (bool, error)
	// MarkProcessed records a gateway message id. first is false when the id was already recorded.
	MarkProcessed(ctx context.Context, messageID string) (first bool, err error)
}
