package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"postop_followup/internal/domain/doctor"
	"postop_followup/internal/domain/patient"
)

type DoctorService struct {
	doctorRepo  doctor.Repository
	countryCode string
	logger      *logrus.Entry
}

func NewDoctorService(dr doctor.Repository, countryCode string, logger *logrus.Entry) *DoctorService {
	return &DoctorService{doctorRepo: dr, countryCode: countryCode, logger: logger}
}

// AddDoctor registers a new active doctor.
func (s *DoctorService) AddDoctor(ctx context.Context, fullName, email, whatsapp string) (*doctor.Doctor, error) {
	fullName = strings.TrimSpace(fullName)
	email = strings.ToLower(strings.TrimSpace(email))
	if fullName == "" {
		return nil, validationErrorf("full name is required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, validationErrorf("invalid email %q", email)
	}

	d := &doctor.Doctor{
		FullName: fullName,
		Email:    email,
		IsActive: true,
	}
	if whatsapp = strings.TrimSpace(whatsapp); whatsapp != "" {
		d.WhatsApp = sql.NullString{String: patient.NormalizePhone(whatsapp, s.countryCode), Valid: true}
	}

	if err := s.doctorRepo.Create(ctx, d); err != nil {
		if errors.Is(err, doctor.ErrDuplicateEmail) {
			return nil, ErrDoctorAlreadyExists
		}
		return nil, fmt.Errorf("failed to create doctor in repository: %w", err)
	}
	s.logger.WithField("doctor_id", d.ID).Info("Doctor registered")
	return d, nil
}

func (s *DoctorService) GetDoctor(ctx context.Context, id uuid.UUID) (*doctor.Doctor, error) {
	return s.doctorRepo.GetByID(ctx, id)
}

// LinkTelegram attaches the chat the alert bot reported to the doctor.
func (s *DoctorService) LinkTelegram(ctx context.Context, id uuid.UUID, chatID int64) (*doctor.Doctor, error) {
	if chatID == 0 {
		return nil, validationErrorf("telegram chat id is required")
	}
	d, err := s.doctorRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	d.TelegramChatID = sql.NullInt64{Int64: chatID, Valid: true}
	if err := s.doctorRepo.Update(ctx, d); err != nil {
		return nil, fmt.Errorf("failed to link telegram chat: %w", err)
	}
	return d, nil
}

// DeactivateDoctor soft-deletes the doctor. Existing data is kept.
func (s *DoctorService) DeactivateDoctor(ctx context.Context, id uuid.UUID) (*doctor.Doctor, error) {
	d, err := s.doctorRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !d.IsActive {
		return d, ErrDoctorAlreadyInactive
	}
	d.IsActive = false
	if err := s.doctorRepo.Update(ctx, d); err != nil {
		return nil, fmt.Errorf("failed to update doctor to inactive in repository: %w", err)
	}
	s.logger.WithField("doctor_id", d.ID).Info("Doctor deactivated")
	return d, nil
}

// activeDoctor is used by services acting on behalf of a doctor.
func activeDoctor(ctx context.Context, repo doctor.Repository, id uuid.UUID) (*doctor.Doctor, error) {
	d, err := repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !d.IsActive {
		return nil, doctor.ErrNotFound
	}
	return d, nil
}
