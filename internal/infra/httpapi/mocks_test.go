package httpapi

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"postop_followup/internal/app"
	"postop_followup/internal/domain/doctor"
	"postop_followup/internal/domain/followup"
	"postop_followup/internal/domain/messaging"
	"postop_followup/internal/domain/notification"
	"postop_followup/internal/domain/patient"
)

type mockDoctors struct{ mock.Mock }

func (m *mockDoctors) AddDoctor(ctx context.Context, fullName, email, whatsapp string) (*doctor.Doctor, error) {
	args := m.Called(ctx, fullName, email, whatsapp)
	d, _ := args.Get(0).(*doctor.Doctor)
	return d, args.Error(1)
}

func (m *mockDoctors) GetDoctor(ctx context.Context, id uuid.UUID) (*doctor.Doctor, error) {
	args := m.Called(ctx, id)
	d, _ := args.Get(0).(*doctor.Doctor)
	return d, args.Error(1)
}

func (m *mockDoctors) LinkTelegram(ctx context.Context, id uuid.UUID, chatID int64) (*doctor.Doctor, error) {
	args := m.Called(ctx, id, chatID)
	d, _ := args.Get(0).(*doctor.Doctor)
	return d, args.Error(1)
}

func (m *mockDoctors) DeactivateDoctor(ctx context.Context, id uuid.UUID) (*doctor.Doctor, error) {
	args := m.Called(ctx, id)
	d, _ := args.Get(0).(*doctor.Doctor)
	return d, args.Error(1)
}

type mockRegistry struct{ mock.Mock }

func (m *mockRegistry) RegisterPatient(ctx context.Context, doctorID uuid.UUID, in app.PatientInput) (*app.Registration, error) {
	args := m.Called(ctx, doctorID, in)
	r, _ := args.Get(0).(*app.Registration)
	return r, args.Error(1)
}

func (m *mockRegistry) AddSurgery(ctx context.Context, doctorID, patientID uuid.UUID, in app.SurgeryInput) (*app.Registration, error) {
	args := m.Called(ctx, doctorID, patientID, in)
	r, _ := args.Get(0).(*app.Registration)
	return r, args.Error(1)
}

func (m *mockRegistry) GetPatient(ctx context.Context, doctorID, id uuid.UUID) (*patient.Patient, error) {
	args := m.Called(ctx, doctorID, id)
	p, _ := args.Get(0).(*patient.Patient)
	return p, args.Error(1)
}

func (m *mockRegistry) ListPatients(ctx context.Context, doctorID uuid.UUID, activeOnly bool) ([]*patient.Patient, error) {
	args := m.Called(ctx, doctorID, activeOnly)
	l, _ := args.Get(0).([]*patient.Patient)
	return l, args.Error(1)
}

func (m *mockRegistry) ListSurgeries(ctx context.Context, doctorID, patientID uuid.UUID) ([]*patient.Surgery, error) {
	args := m.Called(ctx, doctorID, patientID)
	l, _ := args.Get(0).([]*patient.Surgery)
	return l, args.Error(1)
}

func (m *mockRegistry) DeactivatePatient(ctx context.Context, doctorID, id uuid.UUID) (*patient.Patient, error) {
	args := m.Called(ctx, doctorID, id)
	p, _ := args.Get(0).(*patient.Patient)
	return p, args.Error(1)
}

func (m *mockRegistry) ListFollowUps(ctx context.Context, doctorID, patientID uuid.UUID) ([]*followup.FollowUp, error) {
	args := m.Called(ctx, doctorID, patientID)
	l, _ := args.Get(0).([]*followup.FollowUp)
	return l, args.Error(1)
}

func (m *mockRegistry) GetFollowUp(ctx context.Context, doctorID, id uuid.UUID) (*app.FollowUpDetail, error) {
	args := m.Called(ctx, doctorID, id)
	d, _ := args.Get(0).(*app.FollowUpDetail)
	return d, args.Error(1)
}

type mockAnalyzer struct{ mock.Mock }

func (m *mockAnalyzer) Analyze(ctx context.Context, id uuid.UUID, force bool) (*followup.Analysis, error) {
	args := m.Called(ctx, id, force)
	a, _ := args.Get(0).(*followup.Analysis)
	return a, args.Error(1)
}

type mockNotifications struct{ mock.Mock }

func (m *mockNotifications) List(ctx context.Context, doctorID uuid.UUID, unreadOnly bool, limit int) ([]*notification.Notification, error) {
	args := m.Called(ctx, doctorID, unreadOnly, limit)
	l, _ := args.Get(0).([]*notification.Notification)
	return l, args.Error(1)
}

func (m *mockNotifications) MarkRead(ctx context.Context, id, doctorID uuid.UUID) (*notification.Notification, error) {
	args := m.Called(ctx, id, doctorID)
	n, _ := args.Get(0).(*notification.Notification)
	return n, args.Error(1)
}

type mockExport struct{ mock.Mock }

func (m *mockExport) ExportResearch(ctx context.Context, doctorID uuid.UUID) (*app.ExportResult, error) {
	args := m.Called(ctx, doctorID)
	r, _ := args.Get(0).(*app.ExportResult)
	return r, args.Error(1)
}

// recordingInbound records handled messages and fails on the message id failOn.
type recordingInbound struct {
	msgs   []messaging.InboundMessage
	failOn string
}

func (r *recordingInbound) HandleInbound(_ context.Context, msg messaging.InboundMessage) error {
	r.msgs = append(r.msgs, msg)
	if msg.ID == r.failOn {
		return errors.New("connection reset by peer")
	}
	return nil
}
