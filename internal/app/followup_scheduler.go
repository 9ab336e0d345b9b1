package app

import (
	"context"
	"fmt"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"postop_followup/internal/domain/followup"
	"postop_followup/internal/domain/patient"
)

// FollowUpScheduler materialises the follow-up checkpoints of a surgery.
type FollowUpScheduler struct {
	followUps followup.Repository
	sendTime  followup.SendTime
	logger    *logrus.Entry
}

func NewFollowUpScheduler(followUps followup.Repository, sendTime followup.SendTime, logger *logrus.Entry) *FollowUpScheduler {
	return &FollowUpScheduler{followUps: followUps, sendTime: sendTime, logger: logger}
}

// Schedule creates the missing follow-ups of s and returns how many were created.
// Running it again for the same surgery creates nothing. An unknown surgery type
// creates nothing and is not an error.
func (s *FollowUpScheduler) Schedule(ctx context.Context, surgery *patient.Surgery) (int, error) {
	log := s.logger.WithFields(logrus.Fields{
		"surgery_id":   surgery.ID,
		"patient_id":   surgery.PatientID,
		"surgery_type": surgery.Type,
	})

	days, ok := followup.DaysFor(surgery.Type)
	if !ok {
		log.Warn("Unknown surgery type, no follow-ups scheduled")
		return 0, nil
	}

	existing, err := s.followUps.ListBySurgery(ctx, surgery.ID)
	if err != nil {
		return 0, fmt.Errorf("failed to list existing follow-ups: %w", err)
	}
	have := lo.SliceToMap(existing, func(f *followup.FollowUp) (int, bool) { return f.DayNumber, true })

	missing := lo.FilterMap(days, func(day int, _ int) (*followup.FollowUp, bool) {
		if have[day] {
			return nil, false
		}
		return &followup.FollowUp{
			SurgeryID:     surgery.ID,
			PatientID:     surgery.PatientID,
			DoctorID:      surgery.DoctorID,
			DayNumber:     day,
			ScheduledDate: followup.ScheduledDate(surgery.Date, day, s.sendTime),
			Status:        followup.StatusPending,
		}, true
	})
	if len(missing) == 0 {
		log.Debug("All follow-ups already scheduled")
		return 0, nil
	}

	created, err := s.followUps.CreateMany(ctx, missing)
	if err != nil {
		return 0, fmt.Errorf("failed to create follow-ups: %w", err)
	}
	log.WithField("created", created).Info("Follow-ups scheduled")
	return created, nil
}
