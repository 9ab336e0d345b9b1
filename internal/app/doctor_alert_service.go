package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"postop_followup/internal/domain/followup"
	"postop_followup/internal/domain/notification"
	"postop_followup/internal/domain/patient"
	"postop_followup/internal/infra/metrics"
)

var errPatientInactive = errors.New("patient is inactive")

// DoctorAlertService tells doctors about follow-ups that went unanswered.
type DoctorAlertService struct {
	followUps     followup.Repository
	patients      patient.Repository
	notifications *NotificationService
	alertAfter    time.Duration
	now           Clock
	logger        *logrus.Entry
}

func NewDoctorAlertService(followUps followup.Repository, patients patient.Repository, notifications *NotificationService, alertAfter time.Duration, now Clock, logger *logrus.Entry) *DoctorAlertService {
	return &DoctorAlertService{
		followUps:     followUps,
		patients:      patients,
		notifications: notifications,
		alertAfter:    alertAfter,
		now:           now,
		logger:        logger,
	}
}

// Run alerts once per follow-up sent more than the threshold ago and still unanswered.
func (s *DoctorAlertService) Run(ctx context.Context) (JobResult, error) {
	var res JobResult
	now := s.now()
	pending, err := s.followUps.ListUnanswered(ctx, now.Add(-s.alertAfter))
	if err != nil {
		return res, fmt.Errorf("failed to list unanswered follow-ups: %w", err)
	}
	res.Checked = len(pending)

	byDoctor := lo.GroupBy(pending, func(f *followup.FollowUp) uuid.UUID { return f.DoctorID })
	for doctorID, list := range byDoctor {
		log := s.logger.WithFields(logrus.Fields{"doctor_id": doctorID, "unanswered": len(list)})
		for _, f := range list {
			if err := ctx.Err(); err != nil {
				return res, err
			}
			err := s.alert(ctx, f, now)
			if errors.Is(err, errPatientInactive) {
				res.Skipped++
				continue
			}
			if err != nil {
				log.WithError(err).WithField("follow_up_id", f.ID).Warn("Failed to alert doctor")
				res.fail(f, err)
				continue
			}
			res.Sent++
		}
	}

	s.logger.WithFields(logrus.Fields{"checked": res.Checked, "alerted": res.Sent, "skipped": res.Skipped, "failed": res.Failed}).Info("Doctor alert run finished")
	return res, nil
}

func (s *DoctorAlertService) alert(ctx context.Context, f *followup.FollowUp, now time.Time) error {
	p, err := s.patients.GetByID(ctx, f.PatientID)
	if err != nil {
		return err
	}
	if !p.IsActive {
		return errPatientInactive
	}
	hours := hoursSince(f.SentAt.Time, now)
	n := &notification.Notification{
		DoctorID:   f.DoctorID,
		PatientID:  uuid.NullUUID{UUID: p.ID, Valid: true},
		FollowUpID: uuid.NullUUID{UUID: f.ID, Valid: true},
		Type:       notification.TypeFollowUpUnanswered,
		Priority:   notification.PriorityMedium,
		Title:      alertTitle(notification.TypeFollowUpUnanswered, p.Name, f.DayNumber),
		Message:    doctorUnansweredAlert(p.Name, f.DayNumber, hours),
	}

	// Stamped before notifying, so a failed notification is not retried.
	prev := f.Status
	f.DoctorAlertedAt = sql.NullTime{Time: now, Valid: true}
	if err := s.followUps.Update(ctx, f, prev); err != nil {
		return fmt.Errorf("failed to stamp follow-up: %w", err)
	}
	if err := s.notifications.Create(ctx, n); err != nil {
		return err
	}
	metrics.DoctorAlerts.WithLabelValues(string(notification.TypeFollowUpUnanswered)).Inc()
	return nil
}
