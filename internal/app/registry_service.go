package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"postop_followup/internal/domain/doctor"
	"postop_followup/internal/domain/followup"
	"postop_followup/internal/domain/patient"
)

const (
	minRegisteredDigits = 8
	maxRegisteredDigits = 15
)

// SurgeryInput describes a procedure to register.
type SurgeryInput struct {
	Type  string
	Date  time.Time
	Notes string
}

// PatientInput is the registration form of a new patient.
type PatientInput struct {
	Name          string
	Phone         string
	BirthDate     *time.Time
	Comorbidities []string
	Surgery       SurgeryInput
}

// Registration is what RegisterPatient and AddSurgery created.
type Registration struct {
	Patient            *patient.Patient
	Surgery            *patient.Surgery
	FollowUpsScheduled int
}

// FollowUpDetail is a follow-up with its response, if any.
type FollowUpDetail struct {
	FollowUp *followup.FollowUp
	Response *followup.Response
}

// RegistryService manages the patients of a doctor.
type RegistryService struct {
	doctorRepo  doctor.Repository
	patients    patient.Repository
	followUps   followup.Repository
	scheduler   *FollowUpScheduler
	countryCode string
	now         Clock
	logger      *logrus.Entry
}

func NewRegistryService(dr doctor.Repository, pr patient.Repository, fr followup.Repository, scheduler *FollowUpScheduler, countryCode string, now Clock, logger *logrus.Entry) *RegistryService {
	return &RegistryService{
		doctorRepo:  dr,
		patients:    pr,
		followUps:   fr,
		scheduler:   scheduler,
		countryCode: countryCode,
		now:         now,
		logger:      logger,
	}
}

// RegisterPatient stores a patient with its first surgery and schedules the follow-ups.
// A scheduling failure is logged and does not fail the registration.
func (s *RegistryService) RegisterPatient(ctx context.Context, doctorID uuid.UUID, in PatientInput) (*Registration, error) {
	name := strings.Join(strings.Fields(in.Name), " ")
	if name == "" {
		return nil, validationErrorf("patient name is required")
	}
	if n := len(patient.Digits(in.Phone)); n < minRegisteredDigits || n > maxRegisteredDigits {
		return nil, validationErrorf("phone must have between %d and %d digits", minRegisteredDigits, maxRegisteredDigits)
	}
	surgeryType, err := s.validateSurgery(in.Surgery)
	if err != nil {
		return nil, err
	}
	if _, err := activeDoctor(ctx, s.doctorRepo, doctorID); err != nil {
		return nil, err
	}

	p := &patient.Patient{
		DoctorID:        doctorID,
		Name:            name,
		Phone:           strings.TrimSpace(in.Phone),
		PhoneNormalized: patient.NormalizePhone(in.Phone, s.countryCode),
		Comorbidities: lo.Uniq(lo.FilterMap(in.Comorbidities, func(c string, _ int) (string, bool) {
			c = strings.TrimSpace(c)
			return c, c != ""
		})),
		IsActive: true,
	}
	if in.BirthDate != nil {
		if in.BirthDate.After(s.now()) {
			return nil, validationErrorf("birth date is in the future")
		}
		p.BirthDate.Time, p.BirthDate.Valid = *in.BirthDate, true
	}

	if existing, err := s.patients.ListActiveByPhone(ctx, p.PhoneNormalized); err != nil {
		return nil, fmt.Errorf("failed to check phone: %w", err)
	} else if len(existing) > 0 {
		s.logger.WithField("phone", patient.MaskPhone(p.PhoneNormalized)).
			Warn("Phone already belongs to another active patient, inbound messages will be ambiguous")
	}

	if err := s.patients.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to create patient: %w", err)
	}
	reg, err := s.addSurgery(ctx, p, surgeryType, in.Surgery)
	if err != nil {
		return nil, err
	}
	s.logger.WithFields(logrus.Fields{
		"patient_id": p.ID,
		"doctor_id":  doctorID,
		"followups":  reg.FollowUpsScheduled,
	}).Info("Patient registered")
	return reg, nil
}

// AddSurgery records a new procedure for an existing patient, which becomes the active one.
func (s *RegistryService) AddSurgery(ctx context.Context, doctorID, patientID uuid.UUID, in SurgeryInput) (*Registration, error) {
	surgeryType, err := s.validateSurgery(in)
	if err != nil {
		return nil, err
	}
	p, err := s.GetPatient(ctx, doctorID, patientID)
	if err != nil {
		return nil, err
	}
	if !p.IsActive {
		return nil, validationErrorf("patient is inactive")
	}
	return s.addSurgery(ctx, p, surgeryType, in)
}

func (s *RegistryService) validateSurgery(in SurgeryInput) (patient.SurgeryType, error) {
	t, err := patient.ParseSurgeryType(in.Type)
	if err != nil {
		return "", validationErrorf("%v", err)
	}
	if in.Date.IsZero() {
		return "", validationErrorf("surgery date is required")
	}
	return t, nil
}

func (s *RegistryService) addSurgery(ctx context.Context, p *patient.Patient, t patient.SurgeryType, in SurgeryInput) (*Registration, error) {
	surgery := &patient.Surgery{
		PatientID: p.ID,
		DoctorID:  p.DoctorID,
		Type:      t,
		Date:      in.Date,
		Notes:     strings.TrimSpace(in.Notes),
	}
	if err := s.patients.CreateSurgery(ctx, surgery); err != nil {
		return nil, fmt.Errorf("failed to create surgery: %w", err)
	}

	reg := &Registration{Patient: p, Surgery: surgery}
	created, err := s.scheduler.Schedule(ctx, surgery)
	if err != nil {
		s.logger.WithError(err).WithField("surgery_id", surgery.ID).Error("Failed to schedule follow-ups")
		return reg, nil
	}
	reg.FollowUpsScheduled = created
	return reg, nil
}

// GetPatient returns a patient of the doctor. Patients of other doctors are not found.
func (s *RegistryService) GetPatient(ctx context.Context, doctorID, id uuid.UUID) (*patient.Patient, error) {
	p, err := s.patients.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.DoctorID != doctorID {
		return nil, patient.ErrNotFound
	}
	return p, nil
}

func (s *RegistryService) ListPatients(ctx context.Context, doctorID uuid.UUID, activeOnly bool) ([]*patient.Patient, error) {
	return s.patients.ListByDoctor(ctx, doctorID, activeOnly)
}

func (s *RegistryService) ListSurgeries(ctx context.Context, doctorID, patientID uuid.UUID) ([]*patient.Surgery, error) {
	if _, err := s.GetPatient(ctx, doctorID, patientID); err != nil {
		return nil, err
	}
	return s.patients.ListSurgeries(ctx, patientID)
}

// DeactivatePatient stops all further follow-ups of the patient.
func (s *RegistryService) DeactivatePatient(ctx context.Context, doctorID, id uuid.UUID) (*patient.Patient, error) {
	p, err := s.GetPatient(ctx, doctorID, id)
	if err != nil {
		return nil, err
	}
	if !p.IsActive {
		return p, ErrPatientAlreadyInactive
	}
	p.IsActive = false
	if err := s.patients.Update(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to deactivate patient: %w", err)
	}
	s.logger.WithField("patient_id", p.ID).Info("Patient deactivated")
	return p, nil
}

func (s *RegistryService) ListFollowUps(ctx context.Context, doctorID, patientID uuid.UUID) ([]*followup.FollowUp, error) {
	if _, err := s.GetPatient(ctx, doctorID, patientID); err != nil {
		return nil, err
	}
	return s.followUps.ListByPatient(ctx, patientID)
}

// GetFollowUp returns the follow-up and, once answered, its response.
func (s *RegistryService) GetFollowUp(ctx context.Context, doctorID, id uuid.UUID) (*FollowUpDetail, error) {
	f, err := s.followUps.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if f.DoctorID != doctorID {
		return nil, followup.ErrNotFound
	}
	detail := &FollowUpDetail{FollowUp: f}
	r, err := s.followUps.GetResponse(ctx, id)
	switch {
	case err == nil:
		detail.Response = r
	case !errors.Is(err, followup.ErrResponseNotFound):
		return nil, err
	}
	return detail, nil
}
