package doctor

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Doctor owns patients and receives notifications about them.
type Doctor struct {
	ID             uuid.UUID
	FullName       string
	Email          string
	WhatsApp       sql.NullString
	TelegramChatID sql.NullInt64 // set once the doctor links the alert bot
	IsActive       bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
