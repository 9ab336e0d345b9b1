package followup

import (
	"time"

	"postop_followup/internal/domain/patient"
)

// DefaultDays are the postoperative days on which a questionnaire is sent.
var DefaultDays = []int{1, 2, 3, 5, 7, 10, 14}

var daysBySurgery = map[patient.SurgeryType][]int{
	patient.SurgeryHemorrhoidectomy: DefaultDays,
	patient.SurgeryFistula:          DefaultDays,
	patient.SurgeryFissure:          DefaultDays,
	patient.SurgeryPilonidal:        DefaultDays,
}

// DaysFor returns the day offsets for a surgery type. ok is false for unknown types.
func DaysFor(t patient.SurgeryType) (days []int, ok bool) {
	days, ok = daysBySurgery[t]
	if !ok {
		return nil, false
	}
	out := make([]int, len(days))
	copy(out, days)
	return out, true
}

// SendTime is a wall clock time of day in a given location.
type SendTime struct {
	Hour     int
	Minute   int
	Location *time.Location
}

// ScheduledDate is the calendar date of the surgery (in the send location) plus day
// days, at the configured send time.
func ScheduledDate(surgeryDate time.Time, day int, at SendTime) time.Time {
	loc := at.Location
	if loc == nil {
		loc = time.UTC
	}
	local := surgeryDate.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day()+day, at.Hour, at.Minute, 0, 0, loc)
}
