package app

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"postop_followup/internal/domain/followup"
	"postop_followup/internal/domain/patient"
)

func TestScheduleIsIdempotentForEverySurgeryType(t *testing.T) {
	for _, st := range patient.SurgeryTypes {
		t.Run(string(st), func(t *testing.T) {
			store := newMemStore(time.Now)
			repo := &memFollowUps{memStore: store}
			s := NewFollowUpScheduler(repo, followup.SendTime{Hour: 9, Location: testZone}, testLogger())
			surgery := &patient.Surgery{ID: uuid.New(), PatientID: uuid.New(), DoctorID: uuid.New(), Type: st, Date: surgeryDay}

			created, err := s.Schedule(context.Background(), surgery)
			require.NoError(t, err)
			assert.Equal(t, len(followup.DefaultDays), created)

			created, err = s.Schedule(context.Background(), surgery)
			require.NoError(t, err)
			assert.Zero(t, created)

			got := store.followUpsOf(surgery.ID)
			require.Len(t, got, len(followup.DefaultDays))
			for i, f := range got {
				assert.Equal(t, followup.DefaultDays[i], f.DayNumber)
				assert.Equal(t, followup.StatusPending, f.Status)
				assert.Equal(t, surgery.DoctorID, f.DoctorID)
			}
		})
	}
}

func TestScheduleFillsOnlyMissingDays(t *testing.T) {
	store := newMemStore(time.Now)
	repo := &memFollowUps{memStore: store}
	s := NewFollowUpScheduler(repo, followup.SendTime{Hour: 9, Location: testZone}, testLogger())
	surgery := &patient.Surgery{ID: uuid.New(), Type: patient.SurgeryFissure, Date: surgeryDay}

	_, err := repo.CreateMany(context.Background(), []*followup.FollowUp{
		{SurgeryID: surgery.ID, DayNumber: 3, Status: followup.StatusResponded},
	})
	require.NoError(t, err)

	created, err := s.Schedule(context.Background(), surgery)
	require.NoError(t, err)
	assert.Equal(t, 6, created)
	assert.Equal(t, followup.StatusResponded, store.followUpsOf(surgery.ID)[2].Status)
}

func TestScheduleIgnoresUnknownSurgeryType(t *testing.T) {
	store := newMemStore(time.Now)
	s := NewFollowUpScheduler(&memFollowUps{memStore: store}, followup.SendTime{Hour: 9}, testLogger())

	created, err := s.Schedule(context.Background(), &patient.Surgery{ID: uuid.New(), Type: "apendicectomia", Date: surgeryDay})
	require.NoError(t, err)
	assert.Zero(t, created)
}

func TestScheduledDateUsesLocalCalendarDay(t *testing.T) {
	at := followup.SendTime{Hour: 9, Minute: 30, Location: testZone}
	// 01:00 UTC on the 11th is still the 10th in the send zone.
	surgery := time.Date(2026, time.March, 11, 1, 0, 0, 0, time.UTC)

	got := followup.ScheduledDate(surgery, 1, at)
	assert.Equal(t, time.Date(2026, time.March, 11, 9, 30, 0, 0, testZone), got)
}
