package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"postop_followup/internal/domain/patient"
)

const patientColumns = `id, doctor_id, name, phone, phone_normalized, birth_date, comorbidities, is_active, created_at, updated_at`

const surgeryColumns = `id, patient_id, doctor_id, type, date, notes, created_at`

type PostgresPatientRepository struct {
	db *sql.DB
}

func NewPostgresPatientRepository(db *sql.DB) *PostgresPatientRepository {
	return &PostgresPatientRepository{db: db}
}

func scanPatient(row interface{ Scan(...any) error }) (*patient.Patient, error) {
	p := &patient.Patient{}
	err := row.Scan(&p.ID, &p.DoctorID, &p.Name, &p.Phone, &p.PhoneNormalized, &p.BirthDate,
		pq.Array(&p.Comorbidities), &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func scanPatients(rows *sql.Rows) ([]*patient.Patient, error) {
	patients := make([]*patient.Patient, 0)
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning patient row: %w", err)
		}
		patients = append(patients, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating patient rows: %w", err)
	}
	return patients, nil
}

func (r *PostgresPatientRepository) Create(ctx context.Context, p *patient.Patient) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.Comorbidities == nil {
		p.Comorbidities = []string{}
	}
	query := `INSERT INTO patients (id, doctor_id, name, phone, phone_normalized, birth_date, comorbidities, is_active)
               VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
               RETURNING created_at, updated_at`
	err := r.db.QueryRowContext(ctx, query, p.ID, p.DoctorID, p.Name, p.Phone, p.PhoneNormalized, p.BirthDate,
		pq.Array(p.Comorbidities), p.IsActive).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("error creating patient: %w", err)
	}
	return nil
}

func (r *PostgresPatientRepository) GetByID(ctx context.Context, id uuid.UUID) (*patient.Patient, error) {
	query := `SELECT ` + patientColumns + ` FROM patients WHERE id = $1`
	p, err := scanPatient(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, patient.ErrNotFound
		}
		return nil, fmt.Errorf("error getting patient by ID: %w", err)
	}
	return p, nil
}

func (r *PostgresPatientRepository) Update(ctx context.Context, p *patient.Patient) error {
	query := `UPDATE patients
               SET name = $1, phone = $2, phone_normalized = $3, birth_date = $4, comorbidities = $5,
                   is_active = $6, updated_at = NOW()
               WHERE id = $7
               RETURNING updated_at`
	err := r.db.QueryRowContext(ctx, query, p.Name, p.Phone, p.PhoneNormalized, p.BirthDate,
		pq.Array(p.Comorbidities), p.IsActive, p.ID).Scan(&p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return patient.ErrNotFound
		}
		return fmt.Errorf("error updating patient: %w", err)
	}
	return nil
}

func (r *PostgresPatientRepository) ListByDoctor(ctx context.Context, doctorID uuid.UUID, activeOnly bool) ([]*patient.Patient, error) {
	query := `SELECT ` + patientColumns + ` FROM patients
               WHERE doctor_id = $1 AND (is_active OR NOT $2)
               ORDER BY name`
	rows, err := r.db.QueryContext(ctx, query, doctorID, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("error listing patients by doctor: %w", err)
	}
	defer rows.Close()
	return scanPatients(rows)
}

func (r *PostgresPatientRepository) ListActiveByPhone(ctx context.Context, normalized string) ([]*patient.Patient, error) {
	query := `SELECT ` + patientColumns + ` FROM patients
               WHERE is_active = TRUE AND phone_normalized = $1
               ORDER BY created_at`
	rows, err := r.db.QueryContext(ctx, query, normalized)
	if err != nil {
		return nil, fmt.Errorf("error listing patients by phone: %w", err)
	}
	defer rows.Close()
	return scanPatients(rows)
}

func (r *PostgresPatientRepository) ListActiveByPhoneSuffix(ctx context.Context, suffix string) ([]*patient.Patient, error) {
	query := `SELECT ` + patientColumns + ` FROM patients
               WHERE is_active = TRUE AND phone_normalized LIKE '%' || $1
               ORDER BY created_at`
	rows, err := r.db.QueryContext(ctx, query, suffix)
	if err != nil {
		return nil, fmt.Errorf("error listing patients by phone suffix: %w", err)
	}
	defer rows.Close()
	return scanPatients(rows)
}

func (r *PostgresPatientRepository) CreateSurgery(ctx context.Context, s *patient.Surgery) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	query := `INSERT INTO surgeries (id, patient_id, doctor_id, type, date, notes)
               VALUES ($1, $2, $3, $4, $5, $6)
               RETURNING created_at`
	err := r.db.QueryRowContext(ctx, query, s.ID, s.PatientID, s.DoctorID, s.Type, s.Date, s.Notes).Scan(&s.CreatedAt)
	if err != nil {
		return fmt.Errorf("error creating surgery: %w", err)
	}
	return nil
}

func scanSurgery(row interface{ Scan(...any) error }) (*patient.Surgery, error) {
	s := &patient.Surgery{}
	err := row.Scan(&s.ID, &s.PatientID, &s.DoctorID, &s.Type, &s.Date, &s.Notes, &s.CreatedAt)
	return s, err
}

func (r *PostgresPatientRepository) GetSurgeryByID(ctx context.Context, id uuid.UUID) (*patient.Surgery, error) {
	query := `SELECT ` + surgeryColumns + ` FROM surgeries WHERE id = $1`
	s, err := scanSurgery(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, patient.ErrSurgeryNotFound
		}
		return nil, fmt.Errorf("error getting surgery by ID: %w", err)
	}
	return s, nil
}

func (r *PostgresPatientRepository) GetActiveSurgery(ctx context.Context, patientID uuid.UUID) (*patient.Surgery, error) {
	query := `SELECT ` + surgeryColumns + ` FROM surgeries WHERE patient_id = $1 ORDER BY date DESC LIMIT 1`
	s, err := scanSurgery(r.db.QueryRowContext(ctx, query, patientID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, patient.ErrSurgeryNotFound
		}
		return nil, fmt.Errorf("error getting active surgery: %w", err)
	}
	return s, nil
}

func (r *PostgresPatientRepository) ListSurgeries(ctx context.Context, patientID uuid.UUID) ([]*patient.Surgery, error) {
	query := `SELECT ` + surgeryColumns + ` FROM surgeries WHERE patient_id = $1 ORDER BY date DESC`
	rows, err := r.db.QueryContext(ctx, query, patientID)
	if err != nil {
		return nil, fmt.Errorf("error listing surgeries: %w", err)
	}
	defer rows.Close()

	surgeries := make([]*patient.Surgery, 0)
	for rows.Next() {
		s, err := scanSurgery(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning surgery row: %w", err)
		}
		surgeries = append(surgeries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating surgery rows: %w", err)
	}
	return surgeries, nil
}
