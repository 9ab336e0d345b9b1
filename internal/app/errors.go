package app

import (
	"errors"
	"fmt"
)

// Application-level errors. Repositories report not-found with their domain's ErrNotFound.
var (
	ErrValidation             = errors.New("validation failed")
	ErrPhoneAmbiguous         = errors.New("phone number matches more than one patient")
	ErrDoctorAlreadyExists    = errors.New("doctor with this email already exists")
	ErrDoctorAlreadyInactive  = errors.New("doctor is already inactive")
	ErrPatientAlreadyInactive = errors.New("patient is already inactive")
	ErrExportDisabled         = errors.New("research export is not configured")
)

func validationErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
