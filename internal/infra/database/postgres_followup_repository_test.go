package database

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"postop_followup/internal/domain/followup"
)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func TestCreateManySkipsExistingDays(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPostgresFollowUpRepository(db)

	surgeryID := uuid.New()
	fs := []*followup.FollowUp{
		{SurgeryID: surgeryID, DayNumber: 1, Status: followup.StatusPending, ScheduledDate: time.Now()},
		{SurgeryID: surgeryID, DayNumber: 2, Status: followup.StatusPending, ScheduledDate: time.Now()},
	}

	mock.ExpectBegin()
	prep := mock.ExpectPrepare(`INSERT INTO follow_ups .* ON CONFLICT \(surgery_id, day_number\) DO NOTHING`)
	prep.ExpectExec().WillReturnResult(sqlmock.NewResult(0, 1))
	prep.ExpectExec().WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	n, err := repo.CreateMany(context.Background(), fs)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.NotEqual(t, uuid.Nil, fs[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateReportsConflictWhenStatusMoved(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPostgresFollowUpRepository(db)

	f := &followup.FollowUp{ID: uuid.New(), Status: followup.StatusSent}
	mock.ExpectExec(`UPDATE follow_ups\s+SET status = \$1`).
		WithArgs(followup.StatusSent, sqlmock.AnyArg(), sqlmock.AnyArg(), 0, sqlmock.AnyArg(), f.ID, followup.StatusPending).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Update(context.Background(), f, followup.StatusPending)
	assert.ErrorIs(t, err, followup.ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCompleteRejectsSecondResponse(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPostgresFollowUpRepository(db)

	f := &followup.FollowUp{ID: uuid.New(), Status: followup.StatusResponded}
	pain := 4
	resp := followup.NewResponse(f.ID, followup.Answers{PainLevel: &pain}, time.Now())

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO follow_up_responses .* ON CONFLICT \(follow_up_id\) DO NOTHING`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.Complete(context.Background(), f, resp)
	assert.ErrorIs(t, err, followup.ErrDuplicateResponse)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCompleteStoresResponseAndStatusTogether(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPostgresFollowUpRepository(db)

	f := &followup.FollowUp{ID: uuid.New(), Status: followup.StatusResponded}
	pain := 7
	resp := followup.NewResponse(f.ID, followup.Answers{PainLevel: &pain}, time.Now())

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO follow_up_responses`).
		WithArgs(resp.ID, f.ID, sqlmock.AnyArg(), int64(7), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE follow_ups`).
		WithArgs(followup.StatusResponded, sqlmock.AnyArg(), sqlmock.AnyArg(), 0, sqlmock.AnyArg(), f.ID, followup.StatusInProgress).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Complete(context.Background(), f, resp))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetResponseDecodesAnswers(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPostgresFollowUpRepository(db)

	fuID := uuid.New()
	rows := sqlmock.NewRows([]string{"id", "follow_up_id", "answers", "pain_level", "risk_level", "red_flags",
		"recommendations", "ai_analysis", "empathic_reply", "analyzed_at", "created_at"}).
		AddRow(uuid.New().String(), fuID.String(), []byte(`{"pain_level":9,"bleeding":"light"}`), int64(9), "high",
			"{\"Dor intensa\"}", "{}", "", "", nil, time.Now())
	mock.ExpectQuery(`FROM follow_up_responses WHERE follow_up_id = \$1`).WithArgs(fuID).WillReturnRows(rows)

	resp, err := repo.GetResponse(context.Background(), fuID)
	require.NoError(t, err)
	pain, ok := resp.Answers.Pain()
	assert.True(t, ok)
	assert.Equal(t, 9, pain)
	assert.Equal(t, followup.BleedingLight, resp.Answers.Bleeding)
	assert.Equal(t, followup.RiskHigh, resp.RiskLevel)
	assert.Equal(t, []string{"Dor intensa"}, resp.RedFlags)
	assert.False(t, resp.Analyzed())
}

func TestGetByIDNotFound(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPostgresFollowUpRepository(db)

	id := uuid.New()
	mock.ExpectQuery(`FROM follow_ups WHERE id = \$1`).WithArgs(id).WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), id)
	assert.ErrorIs(t, err, followup.ErrNotFound)
}

func TestListDueOnlyPendingOfActivePatients(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPostgresFollowUpRepository(db)

	now := time.Now()
	id := uuid.New()
	rows := sqlmock.NewRows([]string{"id", "surgery_id", "patient_id", "doctor_id", "day_number", "scheduled_date",
		"status", "sent_at", "responded_at", "send_attempts", "doctor_alerted_at", "created_at", "updated_at"}).
		AddRow(id.String(), uuid.NewString(), uuid.NewString(), uuid.NewString(), 1, now.Add(-time.Hour),
			"pending", nil, nil, 0, nil, now, now)
	mock.ExpectQuery(`WHERE f.status = \$1 AND f.scheduled_date <= \$2 AND p.is_active = TRUE`).
		WithArgs(followup.StatusPending, now).
		WillReturnRows(rows)

	due, err := repo.ListDue(context.Background(), now)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, id, due[0].ID)
	assert.Equal(t, followup.StatusPending, due[0].Status)
	assert.False(t, due[0].SentAt.Valid)
}

func TestListResearchRecordsKeepsSurgeryOfEachRow(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPostgresFollowUpRepository(db)

	doctorID, patientID, surgeryID := uuid.New(), uuid.New(), uuid.New()
	at := time.Date(2026, 3, 11, 12, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"patient_id", "surgery_id", "type", "day_number", "pain_level", "risk_level", "red_flags", "responded_at"}).
		AddRow(patientID.String(), surgeryID.String(), "fistula", 1, 6, "medium", `{"Dor intensa (6/10)"}`, at).
		AddRow(patientID.String(), surgeryID.String(), "fistula", 2, nil, "", `{}`, at.Add(24*time.Hour))
	mock.ExpectQuery(`SELECT f.patient_id, f.surgery_id, s.type`).WithArgs(doctorID).WillReturnRows(rows)

	records, err := repo.ListResearchRecords(context.Background(), doctorID)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, surgeryID, records[0].SurgeryID)
	assert.Equal(t, int32(6), records[0].PainLevel.Int32)
	assert.Equal(t, []string{"Dor intensa (6/10)"}, records[0].RedFlags)
	assert.False(t, records[1].PainLevel.Valid)
	assert.NoError(t, mock.ExpectationsWereMet())
}
