package app

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"postop_followup/internal/domain/doctor"
	"postop_followup/internal/domain/followup"
	"postop_followup/internal/domain/messaging"
	"postop_followup/internal/domain/patient"
)

var testZone = time.FixedZone("BRT", -3*60*60)

// surgeryDay is the surgery date T used across scenarios.
var surgeryDay = time.Date(2026, time.March, 10, 0, 0, 0, 0, testZone)

type harness struct {
	clock     *testClock
	store     *memStore
	followUps *memFollowUps
	gateway   *fakeGateway
	queue     *syncQueue
	events    *recordingEvents
	publisher *recordingPublisher
	doctor    *doctor.Doctor

	doctors       *DoctorService
	registry      *RegistryService
	scheduler     *FollowUpScheduler
	dispatcher    *Dispatcher
	conversations *ConversationService
	analyzer      *AnalyzerService
	reminders     *ReminderService
	alerts        *DoctorAlertService
	notifications *NotificationService
}

// newHarness wires every service over in-memory state. ai may be nil.
func newHarness(t *testing.T, ai AIAnalyzer) *harness {
	t.Helper()
	h := &harness{
		clock:     newTestClock(surgeryDay.Add(10 * time.Hour)),
		gateway:   &fakeGateway{},
		queue:     &syncQueue{},
		events:    &recordingEvents{},
		publisher: &recordingPublisher{},
	}
	now := h.clock.Now
	log := testLogger()
	h.store = newMemStore(now)
	h.followUps = &memFollowUps{memStore: h.store}
	doctors := memDoctors{h.store}
	patients := memPatients{h.store}
	conversations := memConversations{h.store}

	h.doctors = NewDoctorService(doctors, "55", log)
	h.scheduler = NewFollowUpScheduler(h.followUps, followup.SendTime{Hour: 9, Location: testZone}, log)
	h.registry = NewRegistryService(doctors, patients, h.followUps, h.scheduler, "55", now, log)
	h.notifications = NewNotificationService(memNotifications{h.store}, doctors, h.publisher, nil, now, log)
	h.dispatcher = NewDispatcher(DispatcherDeps{
		FollowUps:     h.followUps,
		Patients:      patients,
		Conversations: conversations,
		Gateway:       h.gateway,
		Events:        h.events,
	}, DispatchOptions{Language: "pt_BR", MaxAttempts: 3}, now, log)
	h.analyzer = NewAnalyzerService(AnalyzerDeps{
		FollowUps:     h.followUps,
		Patients:      patients,
		AI:            ai,
		Gateway:       h.gateway,
		Notifications: h.notifications,
		Events:        h.events,
	}, time.Second, now, log)
	h.conversations = NewConversationService(ConversationDeps{
		Conversations: conversations,
		FollowUps:     h.followUps,
		Patients:      patients,
		Resolver:      NewPhoneResolver(patients, "55", log),
		Gateway:       h.gateway,
		Queue:         h.queue,
		Analyzer:      h.analyzer,
		Events:        h.events,
	}, now, log)
	h.reminders = NewReminderService(h.followUps, patients, h.gateway, 4*time.Hour, now, log)
	h.alerts = NewDoctorAlertService(h.followUps, patients, h.notifications, 6*time.Hour, now, log)

	d, err := h.doctors.AddDoctor(context.Background(), "Dra. Helena Prado", "helena@clinica.test", "")
	require.NoError(t, err)
	h.doctor = d
	return h
}

func (h *harness) register(t *testing.T, name, phone string, st patient.SurgeryType) *Registration {
	t.Helper()
	reg, err := h.registry.RegisterPatient(context.Background(), h.doctor.ID, PatientInput{
		Name:    name,
		Phone:   phone,
		Surgery: SurgeryInput{Type: string(st), Date: surgeryDay},
	})
	require.NoError(t, err)
	return reg
}

// dispatchDay moves the clock to the send time of a postoperative day and runs the dispatcher.
func (h *harness) dispatchDay(t *testing.T, day int) DispatchResult {
	t.Helper()
	h.clock.Set(followup.ScheduledDate(surgeryDay, day, followup.SendTime{Hour: 9, Location: testZone}))
	res, err := h.dispatcher.Run(context.Background())
	require.NoError(t, err)
	return res
}

var messageSeq int

func (h *harness) inbound(t *testing.T, from, text string) messaging.InboundMessage {
	t.Helper()
	messageSeq++
	msg := messaging.InboundMessage{
		ID:        fmt.Sprintf("wamid.%04d", messageSeq),
		From:      from,
		Type:      messaging.TypeText,
		Text:      text,
		Timestamp: h.clock.Now(),
	}
	require.NoError(t, h.conversations.HandleInbound(context.Background(), msg))
	return msg
}

func (h *harness) followUp(t *testing.T, surgeryID uuid.UUID, day int) followup.FollowUp {
	t.Helper()
	for _, f := range h.store.followUpsOf(surgeryID) {
		if f.DayNumber == day {
			return f
		}
	}
	t.Fatalf("no follow-up for day %d", day)
	return followup.FollowUp{}
}
