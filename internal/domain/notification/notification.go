// internal/domain/notification/notification.go
package notification

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Notification is a message for a doctor's dashboard.
// Corresponds to the 'notifications' table.
type Notification struct {
	ID         uuid.UUID
	DoctorID   uuid.UUID
	PatientID  uuid.NullUUID
	FollowUpID uuid.NullUUID
	Type       Type
	Priority   Priority
	Title      string
	Message    string
	Read       bool
	ReadAt     sql.NullTime
	CreatedAt  time.Time
}

// Payload is the wire form pushed to dashboards and returned by the API.
type Payload struct {
	ID         string     `json:"id"`
	DoctorID   string     `json:"doctorId"`
	PatientID  string     `json:"patientId,omitempty"`
	FollowUpID string     `json:"followUpId,omitempty"`
	Type       Type       `json:"type"`
	Priority   Priority   `json:"priority"`
	Title      string     `json:"title"`
	Message    string     `json:"message"`
	Read       bool       `json:"read"`
	ReadAt     *time.Time `json:"readAt,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
}

// ToPayload converts n for JSON transport.
func (n *Notification) ToPayload() Payload {
	p := Payload{
		ID:        n.ID.String(),
		DoctorID:  n.DoctorID.String(),
		Type:      n.Type,
		Priority:  n.Priority,
		Title:     n.Title,
		Message:   n.Message,
		Read:      n.Read,
		CreatedAt: n.CreatedAt,
	}
	if n.PatientID.Valid {
		p.PatientID = n.PatientID.UUID.String()
	}
	if n.FollowUpID.Valid {
		p.FollowUpID = n.FollowUpID.UUID.String()
	}
	if n.ReadAt.Valid {
		t := n.ReadAt.Time
		p.ReadAt = &t
	}
	return p
}
