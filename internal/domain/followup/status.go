package followup

import (
	"errors"
	"fmt"
)

// Status is the lifecycle of a follow-up. It only moves forward:
//
//	pending -> sent -> in_progress -> responded
//	pending, sent, in_progress -> expired
//	pending -> skipped
//
// expired closes a follow-up superseded by a newer one of the same patient, whether it
// was never sent or never finished. skipped closes a follow-up the gateway kept refusing.
type Status string

const (
	StatusPending    Status = "pending"
	StatusSent       Status = "sent"
	StatusInProgress Status = "in_progress"
	StatusResponded  Status = "responded"
	StatusExpired    Status = "expired"
	StatusSkipped    Status = "skipped"
)

// ErrIllegalTransition is returned for any status change not listed in transitions.
var ErrIllegalTransition = errors.New("illegal follow-up status transition")

var transitions = map[Status][]Status{
	StatusPending:    {StatusSent, StatusExpired, StatusSkipped},
	StatusSent:       {StatusInProgress, StatusExpired},
	StatusInProgress: {StatusResponded, StatusExpired},
	StatusResponded:  nil,
	StatusExpired:    nil,
	StatusSkipped:    nil,
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// InFlight reports whether the patient is expected to be answering this follow-up.
func (s Status) InFlight() bool {
	return s == StatusSent || s == StatusInProgress
}

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s.Valid() && len(transitions[s]) == 0
}

// CanTransition reports whether from -> to is allowed.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition validates from -> to and returns the new status.
func Transition(from, to Status) (Status, error) {
	if !from.Valid() || !to.Valid() {
		return from, fmt.Errorf("%w: %q -> %q (unknown status)", ErrIllegalTransition, from, to)
	}
	if !CanTransition(from, to) {
		return from, fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, from, to)
	}
	return to, nil
}
