// internal/infra/database/postgres_notification_repository.go
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"postop_followup/internal/domain/notification"
)

const notificationColumns = `id, doctor_id, patient_id, follow_up_id, type, priority, title, message, read, read_at, created_at`

const defaultNotificationLimit = 100

type PostgresNotificationRepository struct {
	db *sql.DB
}

func NewPostgresNotificationRepository(db *sql.DB) *PostgresNotificationRepository {
	return &PostgresNotificationRepository{db: db}
}

func scanNotification(row interface{ Scan(...any) error }) (*notification.Notification, error) {
	n := &notification.Notification{}
	err := row.Scan(&n.ID, &n.DoctorID, &n.PatientID, &n.FollowUpID, &n.Type, &n.Priority, &n.Title, &n.Message,
		&n.Read, &n.ReadAt, &n.CreatedAt)
	return n, err
}

func (r *PostgresNotificationRepository) Create(ctx context.Context, n *notification.Notification) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	query := `INSERT INTO notifications (id, doctor_id, patient_id, follow_up_id, type, priority, title, message)
               VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
               RETURNING created_at`
	err := r.db.QueryRowContext(ctx, query, n.ID, n.DoctorID, n.PatientID, n.FollowUpID, n.Type, n.Priority,
		n.Title, n.Message).Scan(&n.CreatedAt)
	if err != nil {
		return fmt.Errorf("error creating notification: %w", err)
	}
	return nil
}

func (r *PostgresNotificationRepository) GetByID(ctx context.Context, id uuid.UUID) (*notification.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE id = $1`
	n, err := scanNotification(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notification.ErrNotFound
		}
		return nil, fmt.Errorf("error getting notification by ID: %w", err)
	}
	return n, nil
}

func (r *PostgresNotificationRepository) ListByDoctor(ctx context.Context, doctorID uuid.UUID, unreadOnly bool, limit int) ([]*notification.Notification, error) {
	if limit <= 0 {
		limit = defaultNotificationLimit
	}
	query := `SELECT ` + notificationColumns + ` FROM notifications
               WHERE doctor_id = $1 AND (NOT read OR NOT $2)
               ORDER BY created_at DESC
               LIMIT $3`
	rows, err := r.db.QueryContext(ctx, query, doctorID, unreadOnly, limit)
	if err != nil {
		return nil, fmt.Errorf("error listing notifications: %w", err)
	}
	defer rows.Close()

	out := make([]*notification.Notification, 0)
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning notification row: %w", err)
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating notification rows: %w", err)
	}
	return out, nil
}

func (r *PostgresNotificationRepository) MarkRead(ctx context.Context, id, doctorID uuid.UUID) error {
	query := `UPDATE notifications
               SET read = TRUE, read_at = COALESCE(read_at, NOW())
               WHERE id = $1 AND doctor_id = $2`
	res, err := r.db.ExecContext(ctx, query, id, doctorID)
	if err != nil {
		return fmt.Errorf("error marking notification read: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notification.ErrNotFound
	}
	return nil
}
