// internal/app/notification_service.go
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"postop_followup/internal/domain/doctor"
	"postop_followup/internal/domain/notification"
	domainTelegram "postop_followup/internal/domain/telegram"
)

// NotificationService stores doctor notifications and fans them out to the live
// dashboard and, when the doctor linked it, the Telegram bot.
type NotificationService struct {
	notifRepo      notification.Repository
	doctorRepo     doctor.Repository
	publisher      NotificationPublisher
	telegramClient domainTelegram.Client // nil when the bot is disabled
	now            Clock
	logger         *logrus.Entry
}

func NewNotificationService(
	nr notification.Repository,
	dr doctor.Repository,
	publisher NotificationPublisher,
	tc domainTelegram.Client,
	now Clock,
	logger *logrus.Entry,
) *NotificationService {
	return &NotificationService{
		notifRepo:      nr,
		doctorRepo:     dr,
		publisher:      publisher,
		telegramClient: tc,
		now:            now,
		logger:         logger,
	}
}

// Create persists n and pushes it. Only the insert can fail the call;
// delivery problems are logged.
func (s *NotificationService) Create(ctx context.Context, n *notification.Notification) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = s.now()
	}
	if err := s.notifRepo.Create(ctx, n); err != nil {
		return fmt.Errorf("failed to store notification: %w", err)
	}

	log := s.logger.WithFields(logrus.Fields{
		"notification_id": n.ID,
		"doctor_id":       n.DoctorID,
		"type":            n.Type,
		"priority":        n.Priority,
	})
	log.Info("Notification created")

	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, n); err != nil {
			log.WithError(err).Warn("Failed to push notification to dashboards")
		}
	}
	s.sendTelegram(ctx, log, n)
	return nil
}

func (s *NotificationService) sendTelegram(ctx context.Context, log *logrus.Entry, n *notification.Notification) {
	if s.telegramClient == nil {
		return
	}
	d, err := s.doctorRepo.GetByID(ctx, n.DoctorID)
	if err != nil {
		log.WithError(err).Warn("Failed to load doctor for Telegram alert")
		return
	}
	if !d.TelegramChatID.Valid {
		return
	}
	text := n.Title + "\n\n" + n.Message
	if err := s.telegramClient.SendMessage(d.TelegramChatID.Int64, text, domainTelegram.MarkReadOptions(n.ID)); err != nil {
		log.WithError(err).Warn("Failed to send Telegram alert")
	}
}

// List returns the doctor's newest notifications.
func (s *NotificationService) List(ctx context.Context, doctorID uuid.UUID, unreadOnly bool, limit int) ([]*notification.Notification, error) {
	if _, err := s.doctorRepo.GetByID(ctx, doctorID); err != nil {
		return nil, err
	}
	return s.notifRepo.ListByDoctor(ctx, doctorID, unreadOnly, limit)
}

// MarkRead acknowledges a notification. A notification of another doctor is reported as not found.
func (s *NotificationService) MarkRead(ctx context.Context, id, doctorID uuid.UUID) (*notification.Notification, error) {
	n, err := s.notifRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if n.DoctorID != doctorID {
		return nil, notification.ErrNotFound
	}
	if n.Read {
		return n, nil
	}
	if err := s.notifRepo.MarkRead(ctx, id, doctorID); err != nil {
		return nil, fmt.Errorf("failed to mark notification read: %w", err)
	}
	n.Read = true
	n.ReadAt.Time, n.ReadAt.Valid = s.now(), true
	return n, nil
}

// MarkReadFromTelegram resolves the doctor by chat id before acknowledging.
func (s *NotificationService) MarkReadFromTelegram(ctx context.Context, chatID int64, id uuid.UUID) (*notification.Notification, error) {
	d, err := s.doctorRepo.GetByTelegramChatID(ctx, chatID)
	if err != nil {
		if errors.Is(err, doctor.ErrNotFound) {
			return nil, notification.ErrNotFound
		}
		return nil, err
	}
	return s.MarkRead(ctx, id, d.ID)
}

// PendingForChat lists unread notifications of the doctor linked to a Telegram chat.
func (s *NotificationService) PendingForChat(ctx context.Context, chatID int64) (*doctor.Doctor, []*notification.Notification, error) {
	d, err := s.doctorRepo.GetByTelegramChatID(ctx, chatID)
	if err != nil {
		return nil, nil, err
	}
	list, err := s.notifRepo.ListByDoctor(ctx, d.ID, true, 20)
	if err != nil {
		return nil, nil, err
	}
	return d, list, nil
}

// alertTitle is shared by the analyzer and the unanswered job.
func alertTitle(t notification.Type, patientName string, day int) string {
	switch t {
	case notification.TypeClinicalRisk:
		return fmt.Sprintf("Alerta clínico: %s (D+%d)", patientName, day)
	default:
		return fmt.Sprintf("Sem resposta: %s (D+%d)", patientName, day)
	}
}

// hoursSince rounds down and never returns less than zero.
func hoursSince(from, now time.Time) int {
	h := int(now.Sub(from) / time.Hour)
	return max(h, 0)
}
