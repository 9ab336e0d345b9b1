package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"postop_followup/internal/domain/doctor"
)

const doctorColumns = `id, full_name, email, whatsapp, telegram_chat_id, is_active, created_at, updated_at`

type PostgresDoctorRepository struct {
	db *sql.DB
}

func NewPostgresDoctorRepository(db *sql.DB) *PostgresDoctorRepository {
	return &PostgresDoctorRepository{db: db}
}

func scanDoctor(row interface{ Scan(...any) error }) (*doctor.Doctor, error) {
	d := &doctor.Doctor{}
	err := row.Scan(&d.ID, &d.FullName, &d.Email, &d.WhatsApp, &d.TelegramChatID, &d.IsActive, &d.CreatedAt, &d.UpdatedAt)
	return d, err
}

func (r *PostgresDoctorRepository) Create(ctx context.Context, d *doctor.Doctor) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	query := `INSERT INTO doctors (id, full_name, email, whatsapp, telegram_chat_id, is_active)
               VALUES ($1, $2, $3, $4, $5, $6)
               RETURNING created_at, updated_at`

	err := r.db.QueryRowContext(ctx, query, d.ID, d.FullName, d.Email, d.WhatsApp, d.TelegramChatID, d.IsActive).
		Scan(&d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err, "doctors_email_key") {
			return doctor.ErrDuplicateEmail
		}
		return fmt.Errorf("error creating doctor: %w", err)
	}
	return nil
}

func (r *PostgresDoctorRepository) GetByID(ctx context.Context, id uuid.UUID) (*doctor.Doctor, error) {
	query := `SELECT ` + doctorColumns + ` FROM doctors WHERE id = $1`
	d, err := scanDoctor(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, doctor.ErrNotFound
		}
		return nil, fmt.Errorf("error getting doctor by ID: %w", err)
	}
	return d, nil
}

func (r *PostgresDoctorRepository) GetByTelegramChatID(ctx context.Context, chatID int64) (*doctor.Doctor, error) {
	query := `SELECT ` + doctorColumns + ` FROM doctors WHERE telegram_chat_id = $1`
	d, err := scanDoctor(r.db.QueryRowContext(ctx, query, chatID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, doctor.ErrNotFound
		}
		return nil, fmt.Errorf("error getting doctor by Telegram chat ID: %w", err)
	}
	return d, nil
}

func (r *PostgresDoctorRepository) Update(ctx context.Context, d *doctor.Doctor) error {
	query := `UPDATE doctors
               SET full_name = $1, whatsapp = $2, telegram_chat_id = $3, is_active = $4, updated_at = NOW()
               WHERE id = $5
               RETURNING updated_at`

	err := r.db.QueryRowContext(ctx, query, d.FullName, d.WhatsApp, d.TelegramChatID, d.IsActive, d.ID).Scan(&d.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return doctor.ErrNotFound
		}
		return fmt.Errorf("error updating doctor: %w", err)
	}
	return nil
}

func (r *PostgresDoctorRepository) ListActive(ctx context.Context) ([]*doctor.Doctor, error) {
	query := `SELECT ` + doctorColumns + ` FROM doctors WHERE is_active = TRUE ORDER BY full_name`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("error listing active doctors: %w", err)
	}
	defer rows.Close()

	doctors := make([]*doctor.Doctor, 0)
	for rows.Next() {
		d, err := scanDoctor(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning active doctor: %w", err)
		}
		doctors = append(doctors, d)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating active doctors: %w", err)
	}
	return doctors, nil
}
