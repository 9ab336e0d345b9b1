package patient

import (
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Patient is a person under postoperative follow-up, owned by one doctor.
type Patient struct {
	ID              uuid.UUID
	DoctorID        uuid.UUID
	Name            string
	Phone           string // as typed at registration
	PhoneNormalized string // canonical digits with country code, see NormalizePhone
	BirthDate       sql.NullTime
	Comorbidities   []string
	IsActive        bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// FirstName is used to personalise outbound messages.
func (p *Patient) FirstName() string {
	fields := strings.Fields(p.Name)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// Age returns the age in whole years at the given instant, or 0 when the birth date is unknown.
func (p *Patient) Age(at time.Time) int {
	if !p.BirthDate.Valid {
		return 0
	}
	b := p.BirthDate.Time
	years := at.Year() - b.Year()
	if at.YearDay() < b.YearDay() {
		years--
	}
	if years < 0 {
		return 0
	}
	return years
}
