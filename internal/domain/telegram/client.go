package telegram

import (
	"github.com/google/uuid"
	"gopkg.in/telebot.v3"
)

// Client sends messages through the doctor alert bot.
type Client interface {
	SendMessage(recipientChatID int64, text string, options *telebot.SendOptions) error
}

// CallbackMarkRead is the inline button unique id used to acknowledge a notification.
const CallbackMarkRead = "mark_read"

// MarkReadOptions attaches a "mark as read" button carrying the notification id.
func MarkReadOptions(notificationID uuid.UUID) *telebot.SendOptions {
	markup := &telebot.ReplyMarkup{}
	btn := markup.Data("✅ Marcar como lida", CallbackMarkRead, notificationID.String())
	markup.Inline(markup.Row(btn))
	return &telebot.SendOptions{ReplyMarkup: markup}
}
