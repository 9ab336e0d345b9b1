package doctor

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrNotFound       = errors.New("doctor not found")
	ErrDuplicateEmail = errors.New("doctor with this email already exists")
)

// Repository defines the operations for persisting and retrieving doctors.
type Repository interface {
	Create(ctx context.Context, d *Doctor) error
	GetByID(ctx context.Context, id uuid.UUID) (*Doctor, error)
	GetByTelegramChatID(ctx context.Context, chatID int64) (*Doctor, error)
	Update(ctx context.Context, d *Doctor) error // full_name, whatsapp, telegram_chat_id, is_active
	ListActive(ctx context.Context) ([]*Doctor, error)
}
