package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"postop_followup/internal/domain/conversation"
)

type PostgresConversationRepository struct {
	db *sql.DB
}

func NewPostgresConversationRepository(db *sql.DB) *PostgresConversationRepository {
	return &PostgresConversationRepository{db: db}
}

func (r *PostgresConversationRepository) GetByPatient(ctx context.Context, patientID uuid.UUID) (*conversation.Conversation, error) {
	query := `SELECT id, patient_id, phone, state, step, follow_up_id, answers, last_inbound_at, last_outbound_at, updated_at
                FROM conversations WHERE patient_id = $1`
	c := &conversation.Conversation{}
	var answers []byte
	err := r.db.QueryRowContext(ctx, query, patientID).Scan(&c.ID, &c.PatientID, &c.Phone, &c.State, &c.Step,
		&c.FollowUpID, &answers, &c.LastInboundAt, &c.LastOutboundAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, conversation.ErrNotFound
		}
		return nil, fmt.Errorf("error getting conversation: %w", err)
	}
	if err := json.Unmarshal(answers, &c.Answers); err != nil {
		return nil, fmt.Errorf("error decoding conversation answers: %w", err)
	}
	return c, nil
}

type rowQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (r *PostgresConversationRepository) Save(ctx context.Context, c *conversation.Conversation) error {
	return saveConversation(ctx, r.db, c)
}

// SaveProcessed stores c and records messageID in one transaction.
func (r *PostgresConversationRepository) SaveProcessed(ctx context.Context, c *conversation.Conversation, messageID string) error {
	txn, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction for conversation: %w", err)
	}
	defer txn.Rollback()

	if err := saveConversation(ctx, txn, c); err != nil {
		return err
	}
	if messageID != "" {
		_, err := txn.ExecContext(ctx,
			`INSERT INTO processed_messages (message_id) VALUES ($1) ON CONFLICT (message_id) DO NOTHING`, messageID)
		if err != nil {
			return fmt.Errorf("error recording processed message: %w", err)
		}
	}
	if err := txn.Commit(); err != nil {
		return fmt.Errorf("failed to commit conversation: %w", err)
	}
	return nil
}

func saveConversation(ctx context.Context, db rowQuerier, c *conversation.Conversation) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	answers, err := json.Marshal(c.Answers)
	if err != nil {
		return fmt.Errorf("error encoding conversation answers: %w", err)
	}
	query := `INSERT INTO conversations (id, patient_id, phone, state, step, follow_up_id, answers, last_inbound_at, last_outbound_at)
               VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
               ON CONFLICT (patient_id) DO UPDATE
                  SET phone = EXCLUDED.phone, state = EXCLUDED.state, step = EXCLUDED.step,
                      follow_up_id = EXCLUDED.follow_up_id, answers = EXCLUDED.answers,
                      last_inbound_at = EXCLUDED.last_inbound_at, last_outbound_at = EXCLUDED.last_outbound_at,
                      updated_at = NOW()
               RETURNING id, updated_at`
	err = db.QueryRowContext(ctx, query, c.ID, c.PatientID, c.Phone, c.State, c.Step, c.FollowUpID, answers,
		c.LastInboundAt, c.LastOutboundAt).Scan(&c.ID, &c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("error saving conversation: %w", err)
	}
	return nil
}

func (r *PostgresConversationRepository) IsProcessed(ctx context.Context, messageID string) (bool, error) {
	var done bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM processed_messages WHERE message_id = $1)`, messageID).Scan(&done)
	if err != nil {
		return false, fmt.Errorf("error checking processed message: %w", err)
	}
	return done, nil
}

func (r *PostgresConversationRepository) MarkProcessed(ctx context.Context, messageID string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO processed_messages (message_id) VALUES ($1) ON CONFLICT (message_id) DO NOTHING`, messageID)
	if err != nil {
		return false, fmt.Errorf("error recording processed message: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("error reading affected rows: %w", err)
	}
	return n == 1, nil
}
