package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"

	"postop_followup/internal/domain/doctor"
	"postop_followup/internal/domain/notification"
	domainTelegram "postop_followup/internal/domain/telegram"
)

// AlertInbox is the part of the notification service the bot drives.
type AlertInbox interface {
	PendingForChat(ctx context.Context, chatID int64) (*doctor.Doctor, []*notification.Notification, error)
	MarkReadFromTelegram(ctx context.Context, chatID int64, id uuid.UUID) (*notification.Notification, error)
}

// RegisterAlertHandlers wires /pendentes and the "mark as read" button.
func RegisterAlertHandlers(ctx context.Context, b *telebot.Bot, inbox AlertInbox, baseLogger *logrus.Entry) {
	h := &alertHandlers{ctx: ctx, inbox: inbox, logger: baseLogger.WithField("handler_group", "alerts")}
	b.Handle("/pendentes", h.pending)
	b.Handle(&telebot.Btn{Unique: domainTelegram.CallbackMarkRead}, h.markRead)
}

type alertHandlers struct {
	ctx    context.Context
	inbox  AlertInbox
	logger *logrus.Entry
}

func (h *alertHandlers) pending(c telebot.Context) error {
	chatID := c.Chat().ID
	logCtx := h.logger.WithFields(logrus.Fields{"command": "/pendentes", "chat_id": chatID})

	d, list, err := h.inbox.PendingForChat(h.ctx, chatID)
	if errors.Is(err, doctor.ErrNotFound) {
		return c.Send("Este chat não está vinculado a nenhum médico. Use /start para obter o código.")
	}
	if err != nil {
		logCtx.WithError(err).Error("Failed to list pending alerts")
		return c.Send("Ocorreu um erro ao buscar os alertas.")
	}
	logCtx.WithFields(logrus.Fields{"doctor_id": d.ID, "count": len(list)}).Info("Listing pending alerts")

	if len(list) == 0 {
		return c.Send("Nenhum alerta pendente. 👍")
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d alerta(s) não lido(s):\n", len(list))
	for _, n := range list {
		fmt.Fprintf(&sb, "\n• [%s] %s", priorityLabel(n.Priority), n.Title)
	}
	return c.Send(sb.String())
}

func (h *alertHandlers) markRead(c telebot.Context) error {
	data := c.Callback().Data
	logCtx := h.logger.WithFields(logrus.Fields{"callback": domainTelegram.CallbackMarkRead, "data": data})

	id, err := uuid.Parse(data)
	if err != nil {
		logCtx.WithError(err).Warn("Invalid notification id in callback")
		return c.Respond(&telebot.CallbackResponse{Text: "Alerta inválido."})
	}

	n, err := h.inbox.MarkReadFromTelegram(h.ctx, c.Chat().ID, id)
	if errors.Is(err, notification.ErrNotFound) {
		return c.Respond(&telebot.CallbackResponse{Text: "Alerta não encontrado."})
	}
	if err != nil {
		logCtx.WithError(err).Error("Failed to mark notification read")
		return c.Respond(&telebot.CallbackResponse{Text: "Ocorreu um erro."})
	}
	logCtx.WithField("notification_id", n.ID).Info("Notification marked read from Telegram")

	if err := c.Edit(c.Message().Text + "\n\n✅ Lida"); err != nil {
		logCtx.WithError(err).Debug("Could not edit alert message")
	}
	return c.Respond(&telebot.CallbackResponse{Text: "Marcado como lido."})
}

func priorityLabel(p notification.Priority) string {
	switch p {
	case notification.PriorityUrgent:
		return "URGENTE"
	case notification.PriorityHigh:
		return "alta"
	case notification.PriorityMedium:
		return "média"
	default:
		return "baixa"
	}
}
