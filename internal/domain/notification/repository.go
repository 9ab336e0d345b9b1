// internal/domain/notification/repository.go
package notification

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("notification not found")

// Repository defines operations for doctor notifications.
type Repository interface {
	Create(ctx context.Context, n *Notification) error
	GetByID(ctx context.Context, id uuid.UUID) (*Notification, error)
	ListByDoctor(ctx context.Context, doctorID uuid.UUID, unreadOnly bool, limit int) ([]*Notification, error)
	// MarkRead flags a notification of the doctor as read. It is a no-op for already read ones.
	MarkRead(ctx context.Context, id, doctorID uuid.UUID) error
}
