package app

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"postop_followup/internal/domain/followup"
	"postop_followup/internal/domain/messaging"
	"postop_followup/internal/domain/patient"
	"postop_followup/internal/infra/metrics"
)

// JobResult summarises a reminder or doctor alert run.
type JobResult struct {
	Checked int      `json:"checked"`
	Sent    int      `json:"sent"`
	Failed  int      `json:"failed"`
	Skipped int      `json:"skipped,omitempty"`
	Errors  []string `json:"errors,omitempty"`
}

func (r *JobResult) fail(f *followup.FollowUp, err error) {
	r.Failed++
	r.Errors = append(r.Errors, fmt.Sprintf("follow-up %s: %v", f.ID, err))
}

// ReminderService nudges patients who stopped answering an in-flight follow-up.
type ReminderService struct {
	followUps followup.Repository
	patients  patient.Repository
	gateway   messaging.Gateway
	idleAfter time.Duration
	now       Clock
	logger    *logrus.Entry
}

func NewReminderService(followUps followup.Repository, patients patient.Repository, gateway messaging.Gateway, idleAfter time.Duration, now Clock, logger *logrus.Entry) *ReminderService {
	return &ReminderService{
		followUps: followUps,
		patients:  patients,
		gateway:   gateway,
		idleAfter: idleAfter,
		now:       now,
		logger:    logger,
	}
}

// Run reminds every patient whose follow-up has been idle for longer than the threshold.
// A reminded follow-up is touched, so the next reminder waits another full period.
func (s *ReminderService) Run(ctx context.Context) (JobResult, error) {
	var res JobResult
	now := s.now()
	idle, err := s.followUps.ListIdle(ctx, now.Add(-s.idleAfter))
	if err != nil {
		return res, fmt.Errorf("failed to list idle follow-ups: %w", err)
	}
	res.Checked = len(idle)

	for _, f := range idle {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		log := s.logger.WithFields(logrus.Fields{"follow_up_id": f.ID, "patient_id": f.PatientID})

		p, err := s.patients.GetByID(ctx, f.PatientID)
		if err != nil {
			res.fail(f, err)
			continue
		}
		if !p.IsActive {
			res.Skipped++
			continue
		}
		if _, err := s.gateway.SendText(ctx, p.PhoneNormalized, msgReminder); err != nil {
			log.WithError(err).Warn("Failed to send reminder")
			res.fail(f, err)
			continue
		}
		if err := s.followUps.Touch(ctx, f.ID, now); err != nil {
			log.WithError(err).Error("Reminder sent but follow-up not touched")
		}
		res.Sent++
		metrics.RemindersSent.Inc()
		log.Info("Reminder sent")
	}

	s.logger.WithFields(logrus.Fields{"checked": res.Checked, "sent": res.Sent, "failed": res.Failed}).Info("Reminder run finished")
	return res, nil
}
