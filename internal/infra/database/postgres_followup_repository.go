package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"postop_followup/internal/domain/followup"
)

const followUpColumns = `id, surgery_id, patient_id, doctor_id, day_number, scheduled_date, status,
       sent_at, responded_at, send_attempts, doctor_alerted_at, created_at, updated_at`

// activeFollowUpColumns is followUpColumns qualified for queries joining patients.
const activeFollowUpColumns = `f.id, f.surgery_id, f.patient_id, f.doctor_id, f.day_number, f.scheduled_date, f.status,
       f.sent_at, f.responded_at, f.send_attempts, f.doctor_alerted_at, f.created_at, f.updated_at`

type PostgresFollowUpRepository struct {
	db *sql.DB
}

func NewPostgresFollowUpRepository(db *sql.DB) *PostgresFollowUpRepository {
	return &PostgresFollowUpRepository{db: db}
}

func scanFollowUp(row interface{ Scan(...any) error }) (*followup.FollowUp, error) {
	f := &followup.FollowUp{}
	err := row.Scan(&f.ID, &f.SurgeryID, &f.PatientID, &f.DoctorID, &f.DayNumber, &f.ScheduledDate, &f.Status,
		&f.SentAt, &f.RespondedAt, &f.SendAttempts, &f.DoctorAlertedAt, &f.CreatedAt, &f.UpdatedAt)
	return f, err
}

func scanFollowUps(rows *sql.Rows) ([]*followup.FollowUp, error) {
	out := make([]*followup.FollowUp, 0)
	for rows.Next() {
		f, err := scanFollowUp(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning follow-up row: %w", err)
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating follow-up rows: %w", err)
	}
	return out, nil
}

func (r *PostgresFollowUpRepository) query(ctx context.Context, what, query string, args ...any) ([]*followup.FollowUp, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying %s: %w", what, err)
	}
	defer rows.Close()
	return scanFollowUps(rows)
}

func (r *PostgresFollowUpRepository) CreateMany(ctx context.Context, fs []*followup.FollowUp) (int, error) {
	if len(fs) == 0 {
		return 0, nil
	}

	txn, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction for follow-up creation: %w", err)
	}
	defer txn.Rollback()

	stmt, err := txn.PrepareContext(ctx, `INSERT INTO follow_ups (id, surgery_id, patient_id, doctor_id, day_number, scheduled_date, status)
                                         VALUES ($1, $2, $3, $4, $5, $6, $7)
                                         ON CONFLICT (surgery_id, day_number) DO NOTHING`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare follow-up insert: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, f := range fs {
		if f.ID == uuid.Nil {
			f.ID = uuid.New()
		}
		res, err := stmt.ExecContext(ctx, f.ID, f.SurgeryID, f.PatientID, f.DoctorID, f.DayNumber, f.ScheduledDate, f.Status)
		if err != nil {
			return 0, fmt.Errorf("error inserting follow-up (surgery %s, day %d): %w", f.SurgeryID, f.DayNumber, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			inserted++
		}
	}

	if err := txn.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit follow-up creation: %w", err)
	}
	return inserted, nil
}

func (r *PostgresFollowUpRepository) GetByID(ctx context.Context, id uuid.UUID) (*followup.FollowUp, error) {
	query := `SELECT ` + followUpColumns + ` FROM follow_ups WHERE id = $1`
	f, err := scanFollowUp(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, followup.ErrNotFound
		}
		return nil, fmt.Errorf("error getting follow-up by ID: %w", err)
	}
	return f, nil
}

func (r *PostgresFollowUpRepository) ListBySurgery(ctx context.Context, surgeryID uuid.UUID) ([]*followup.FollowUp, error) {
	return r.query(ctx, "follow-ups by surgery",
		`SELECT `+followUpColumns+` FROM follow_ups WHERE surgery_id = $1 ORDER BY day_number`, surgeryID)
}

func (r *PostgresFollowUpRepository) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*followup.FollowUp, error) {
	return r.query(ctx, "follow-ups by patient",
		`SELECT `+followUpColumns+` FROM follow_ups WHERE patient_id = $1 ORDER BY scheduled_date`, patientID)
}

func (r *PostgresFollowUpRepository) ListDue(ctx context.Context, now time.Time) ([]*followup.FollowUp, error) {
	return r.query(ctx, "due follow-ups",
		`SELECT `+activeFollowUpColumns+`
           FROM follow_ups f
           JOIN patients p ON p.id = f.patient_id
          WHERE f.status = $1 AND f.scheduled_date <= $2 AND p.is_active = TRUE
          ORDER BY f.scheduled_date`, followup.StatusPending, now)
}

func (r *PostgresFollowUpRepository) ListInFlightByPatient(ctx context.Context, patientID uuid.UUID) ([]*followup.FollowUp, error) {
	return r.query(ctx, "in-flight follow-ups",
		`SELECT `+followUpColumns+` FROM follow_ups
          WHERE patient_id = $1 AND status = ANY($2)
          ORDER BY scheduled_date`, patientID, pq.Array(inFlightStatuses()))
}

func (r *PostgresFollowUpRepository) ListIdle(ctx context.Context, before time.Time) ([]*followup.FollowUp, error) {
	return r.query(ctx, "idle follow-ups",
		`SELECT `+activeFollowUpColumns+`
           FROM follow_ups f
           JOIN patients p ON p.id = f.patient_id
          WHERE f.status = ANY($1) AND f.updated_at < $2 AND p.is_active = TRUE
          ORDER BY f.updated_at`, pq.Array(inFlightStatuses()), before)
}

func (r *PostgresFollowUpRepository) ListUnanswered(ctx context.Context, sentBefore time.Time) ([]*followup.FollowUp, error) {
	return r.query(ctx, "unanswered follow-ups",
		`SELECT `+activeFollowUpColumns+`
           FROM follow_ups f
           JOIN patients p ON p.id = f.patient_id
          WHERE f.status = ANY($1) AND f.sent_at < $2 AND f.doctor_alerted_at IS NULL AND p.is_active = TRUE
          ORDER BY f.doctor_id, f.sent_at`, pq.Array(inFlightStatuses()), sentBefore)
}

func inFlightStatuses() []string {
	return []string{string(followup.StatusSent), string(followup.StatusInProgress)}
}

func (r *PostgresFollowUpRepository) Update(ctx context.Context, f *followup.FollowUp, prev followup.Status) error {
	return updateFollowUp(ctx, r.db, f, prev)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func updateFollowUp(ctx context.Context, db execer, f *followup.FollowUp, prev followup.Status) error {
	query := `UPDATE follow_ups
               SET status = $1, sent_at = $2, responded_at = $3, send_attempts = $4, doctor_alerted_at = $5, updated_at = NOW()
               WHERE id = $6 AND status = $7`
	res, err := db.ExecContext(ctx, query, f.Status, f.SentAt, f.RespondedAt, f.SendAttempts, f.DoctorAlertedAt, f.ID, prev)
	if err != nil {
		return fmt.Errorf("error updating follow-up: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error reading affected rows: %w", err)
	}
	if n == 0 {
		return followup.ErrConflict
	}
	return nil
}

func (r *PostgresFollowUpRepository) Touch(ctx context.Context, id uuid.UUID, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `UPDATE follow_ups SET updated_at = $1 WHERE id = $2`, at, id)
	if err != nil {
		return fmt.Errorf("error touching follow-up: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return followup.ErrNotFound
	}
	return nil
}

func (r *PostgresFollowUpRepository) Complete(ctx context.Context, f *followup.FollowUp, resp *followup.Response) error {
	answers, err := json.Marshal(resp.Answers)
	if err != nil {
		return fmt.Errorf("error encoding answers: %w", err)
	}

	txn, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction for response: %w", err)
	}
	defer txn.Rollback()

	res, err := txn.ExecContext(ctx, `INSERT INTO follow_up_responses (id, follow_up_id, answers, pain_level, created_at)
                                       VALUES ($1, $2, $3, $4, $5)
                                       ON CONFLICT (follow_up_id) DO NOTHING`,
		resp.ID, resp.FollowUpID, answers, resp.PainLevel, resp.CreatedAt)
	if err != nil {
		return fmt.Errorf("error inserting follow-up response: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return followup.ErrDuplicateResponse
	}

	if err := updateFollowUp(ctx, txn, f, followup.StatusInProgress); err != nil {
		return err
	}
	if err := txn.Commit(); err != nil {
		return fmt.Errorf("failed to commit response: %w", err)
	}
	return nil
}

func (r *PostgresFollowUpRepository) GetResponse(ctx context.Context, followUpID uuid.UUID) (*followup.Response, error) {
	query := `SELECT id, follow_up_id, answers, pain_level, COALESCE(risk_level, ''), red_flags, recommendations,
                     ai_analysis, empathic_reply, analyzed_at, created_at
                FROM follow_up_responses WHERE follow_up_id = $1`
	resp := &followup.Response{}
	var answers []byte
	err := r.db.QueryRowContext(ctx, query, followUpID).Scan(&resp.ID, &resp.FollowUpID, &answers, &resp.PainLevel,
		&resp.RiskLevel, pq.Array(&resp.RedFlags), pq.Array(&resp.Recommendations), &resp.AIAnalysis,
		&resp.EmpathicReply, &resp.AnalyzedAt, &resp.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, followup.ErrResponseNotFound
		}
		return nil, fmt.Errorf("error getting follow-up response: %w", err)
	}
	if err := json.Unmarshal(answers, &resp.Answers); err != nil {
		return nil, fmt.Errorf("error decoding answers: %w", err)
	}
	return resp, nil
}

func (r *PostgresFollowUpRepository) SaveAnalysis(ctx context.Context, followUpID uuid.UUID, a followup.Analysis) error {
	query := `UPDATE follow_up_responses
                 SET risk_level = $1, red_flags = $2, recommendations = $3, ai_analysis = $4,
                     empathic_reply = $5, analyzed_at = $6
               WHERE follow_up_id = $7`
	res, err := r.db.ExecContext(ctx, query, a.RiskLevel, pq.Array(nonNil(a.RedFlags)), pq.Array(nonNil(a.Recommendations)),
		a.AIAnalysis, a.EmpathicReply, a.AnalyzedAt, followUpID)
	if err != nil {
		return fmt.Errorf("error saving analysis: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return followup.ErrResponseNotFound
	}
	return nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func (r *PostgresFollowUpRepository) PainHistory(ctx context.Context, surgeryID uuid.UUID) ([]followup.PainPoint, error) {
	query := `SELECT f.day_number, r.pain_level
                FROM follow_up_responses r
                JOIN follow_ups f ON f.id = r.follow_up_id
               WHERE f.surgery_id = $1 AND r.pain_level IS NOT NULL
               ORDER BY f.day_number`
	rows, err := r.db.QueryContext(ctx, query, surgeryID)
	if err != nil {
		return nil, fmt.Errorf("error querying pain history: %w", err)
	}
	defer rows.Close()

	points := make([]followup.PainPoint, 0)
	for rows.Next() {
		var p followup.PainPoint
		if err := rows.Scan(&p.Day, &p.Pain); err != nil {
			return nil, fmt.Errorf("error scanning pain point: %w", err)
		}
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating pain history: %w", err)
	}
	return points, nil
}

func (r *PostgresFollowUpRepository) ListResearchRecords(ctx context.Context, doctorID uuid.UUID) ([]followup.ResearchRecord, error) {
	query := `SELECT f.patient_id, f.surgery_id, s.type, f.day_number, r.pain_level, COALESCE(r.risk_level, ''), r.red_flags, f.responded_at
                FROM follow_up_responses r
                JOIN follow_ups f ON f.id = r.follow_up_id
                JOIN surgeries s ON s.id = f.surgery_id
               WHERE f.doctor_id = $1 AND f.responded_at IS NOT NULL
               ORDER BY f.patient_id, f.surgery_id, f.day_number`
	rows, err := r.db.QueryContext(ctx, query, doctorID)
	if err != nil {
		return nil, fmt.Errorf("error querying research records: %w", err)
	}
	defer rows.Close()

	records := make([]followup.ResearchRecord, 0)
	for rows.Next() {
		var rec followup.ResearchRecord
		if err := rows.Scan(&rec.PatientID, &rec.SurgeryID, &rec.SurgeryType, &rec.DayNumber, &rec.PainLevel, &rec.RiskLevel,
			pq.Array(&rec.RedFlags), &rec.RespondedAt); err != nil {
			return nil, fmt.Errorf("error scanning research record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating research records: %w", err)
	}
	return records, nil
}
