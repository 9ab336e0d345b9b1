package patient

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SurgeryType enumerates the supported procedures.
type SurgeryType string

const (
	SurgeryHemorrhoidectomy SurgeryType = "hemorroidectomia"
	SurgeryFistula          SurgeryType = "fistula"
	SurgeryFissure          SurgeryType = "fissura"
	SurgeryPilonidal        SurgeryType = "pilonidal"
)

// SurgeryTypes lists every procedure the system knows how to follow up.
var SurgeryTypes = []SurgeryType{
	SurgeryHemorrhoidectomy,
	SurgeryFistula,
	SurgeryFissure,
	SurgeryPilonidal,
}

// Valid reports whether t is one of SurgeryTypes.
func (t SurgeryType) Valid() bool {
	for _, known := range SurgeryTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Label is the human readable procedure name used in messages and prompts.
func (t SurgeryType) Label() string {
	switch t {
	case SurgeryHemorrhoidectomy:
		return "hemorroidectomia"
	case SurgeryFistula:
		return "fistulotomia anal"
	case SurgeryFissure:
		return "tratamento de fissura anal"
	case SurgeryPilonidal:
		return "exérese de cisto pilonidal"
	default:
		return string(t)
	}
}

// ParseSurgeryType accepts the canonical value in any case with surrounding blanks.
func ParseSurgeryType(s string) (SurgeryType, error) {
	t := SurgeryType(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("unknown surgery type %q", s)
	}
	return t, nil
}

// Surgery anchors the follow-up schedule. The most recent surgery of a patient is the active one.
type Surgery struct {
	ID        uuid.UUID
	PatientID uuid.UUID
	DoctorID  uuid.UUID
	Type      SurgeryType
	Date      time.Time
	Notes     string
	CreatedAt time.Time
}
