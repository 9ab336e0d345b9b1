package app

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gopkg.in/telebot.v3"

	"postop_followup/internal/domain/notification"
	domainTelegram "postop_followup/internal/domain/telegram"
)

type mockTelegramClient struct{ mock.Mock }

func (m *mockTelegramClient) SendMessage(chatID int64, text string, opts *telebot.SendOptions) error {
	return m.Called(chatID, text, opts).Error(0)
}

func newNotificationHarness(t *testing.T, tg domainTelegram.Client) (*harness, *NotificationService) {
	t.Helper()
	h := newHarness(t, nil)
	svc := NewNotificationService(memNotifications{h.store}, memDoctors{h.store}, h.publisher, tg, h.clock.Now, testLogger())
	return h, svc
}

func TestCreateNotificationFansOut(t *testing.T) {
	tg := &mockTelegramClient{}
	h, svc := newNotificationHarness(t, tg)
	ctx := context.Background()
	_, err := h.doctors.LinkTelegram(ctx, h.doctor.ID, 777)
	require.NoError(t, err)

	tg.On("SendMessage", int64(777), "Alerta clínico: Maria (D+3)\n\nRisco alto", mock.MatchedBy(func(o *telebot.SendOptions) bool {
		return o.ReplyMarkup != nil && len(o.ReplyMarkup.InlineKeyboard) == 1
	})).Return(nil).Once()

	n := &notification.Notification{
		DoctorID: h.doctor.ID,
		Type:     notification.TypeClinicalRisk,
		Priority: notification.PriorityHigh,
		Title:    alertTitle(notification.TypeClinicalRisk, "Maria", 3),
		Message:  "Risco alto",
	}
	require.NoError(t, svc.Create(ctx, n))

	assert.NotEqual(t, uuid.Nil, n.ID)
	assert.Equal(t, []uuid.UUID{n.ID}, h.publisher.sent)
	tg.AssertExpectations(t)
}

func TestCreateNotificationSurvivesTelegramFailure(t *testing.T) {
	tg := &mockTelegramClient{}
	h, svc := newNotificationHarness(t, tg)
	ctx := context.Background()
	_, err := h.doctors.LinkTelegram(ctx, h.doctor.ID, 777)
	require.NoError(t, err)
	tg.On("SendMessage", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("bot blocked"))

	n := &notification.Notification{DoctorID: h.doctor.ID, Type: notification.TypeFollowUpUnanswered, Priority: notification.PriorityMedium, Title: "t", Message: "m"}
	require.NoError(t, svc.Create(ctx, n))

	list, err := svc.List(ctx, h.doctor.ID, true, 10)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestNotificationWithoutLinkedChatSkipsTelegram(t *testing.T) {
	tg := &mockTelegramClient{}
	h, svc := newNotificationHarness(t, tg)

	n := &notification.Notification{DoctorID: h.doctor.ID, Type: notification.TypeClinicalRisk, Priority: notification.PriorityLow, Title: "t", Message: "m"}
	require.NoError(t, svc.Create(context.Background(), n))
	tg.AssertNotCalled(t, "SendMessage", mock.Anything, mock.Anything, mock.Anything)
}

func TestMarkRead(t *testing.T) {
	h, svc := newNotificationHarness(t, nil)
	ctx := context.Background()
	n := &notification.Notification{DoctorID: h.doctor.ID, Type: notification.TypeClinicalRisk, Priority: notification.PriorityHigh, Title: "t", Message: "m"}
	require.NoError(t, svc.Create(ctx, n))

	_, err := svc.MarkRead(ctx, n.ID, uuid.New())
	assert.ErrorIs(t, err, notification.ErrNotFound, "other doctors cannot acknowledge it")

	got, err := svc.MarkRead(ctx, n.ID, h.doctor.ID)
	require.NoError(t, err)
	assert.True(t, got.Read)
	assert.True(t, got.ReadAt.Valid)

	unread, err := svc.List(ctx, h.doctor.ID, true, 10)
	require.NoError(t, err)
	assert.Empty(t, unread)

	_, err = h.doctors.LinkTelegram(ctx, h.doctor.ID, 99)
	require.NoError(t, err)
	_, err = svc.MarkReadFromTelegram(ctx, 99, n.ID)
	require.NoError(t, err)
	_, err = svc.MarkReadFromTelegram(ctx, 100, n.ID)
	assert.ErrorIs(t, err, notification.ErrNotFound)
}
