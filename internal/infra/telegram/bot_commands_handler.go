// internal/infra/telegram/bot_commands_handler.go
package telegram

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"

	"postop_followup/internal/domain/doctor"
)

// DoctorLookup finds the doctor linked to a chat.
type DoctorLookup interface {
	GetByTelegramChatID(ctx context.Context, chatID int64) (*doctor.Doctor, error)
}

const helpText = "Eu envio alertas dos seus pacientes em acompanhamento pós-operatório.\n\n" +
	"/pendentes - alertas ainda não lidos\n" +
	"/help - esta mensagem\n\n" +
	"Use o botão \"Marcar como lida\" em cada alerta para confirmá-lo."

// RegisterBotCommands wires /start and /help.
func RegisterBotCommands(ctx context.Context, b *telebot.Bot, doctors DoctorLookup, baseLogger *logrus.Entry) {
	h := &commandHandlers{ctx: ctx, doctors: doctors, logger: baseLogger.WithField("handler_group", "start_help")}
	b.Handle("/start", h.start)
	b.Handle("/help", h.help)
}

type commandHandlers struct {
	ctx     context.Context
	doctors DoctorLookup
	logger  *logrus.Entry
}

func (h *commandHandlers) start(c telebot.Context) error {
	chatID := c.Chat().ID
	logCtx := h.logger.WithFields(logrus.Fields{"command": "/start", "chat_id": chatID})
	logCtx.Info("Processing /start command")

	d, err := h.doctors.GetByTelegramChatID(h.ctx, chatID)
	switch {
	case err == nil && d.IsActive:
		logCtx.WithField("doctor_id", d.ID).Info("Chat linked to active doctor")
		return c.Send(fmt.Sprintf("Olá, %s! Você receberá aqui os alertas dos seus pacientes.\n\n%s", d.FullName, helpText))
	case err == nil:
		logCtx.WithField("doctor_id", d.ID).Info("Chat linked to inactive doctor")
		return c.Send("Sua conta está inativa. Os alertas estão suspensos.")
	case !errors.Is(err, doctor.ErrNotFound):
		logCtx.WithError(err).Error("Error checking doctor for /start command")
		return c.Send("Ocorreu um erro ao verificar seu cadastro. Tente novamente mais tarde.")
	}

	logCtx.Info("Chat is not linked to any doctor")
	return c.Send(fmt.Sprintf("Olá! Para receber alertas, informe este código no cadastro do sistema: %d", chatID))
}

func (h *commandHandlers) help(c telebot.Context) error {
	h.logger.WithFields(logrus.Fields{"command": "/help", "chat_id": c.Chat().ID}).Info("Processing /help command")
	return c.Send(helpText)
}
