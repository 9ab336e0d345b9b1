package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"postop_followup/internal/domain/conversation"
	"postop_followup/internal/domain/followup"
	"postop_followup/internal/domain/messaging"
	"postop_followup/internal/domain/patient"
	"postop_followup/internal/infra/metrics"
)

// ResponseAnalyzer is run in the background once a questionnaire is complete.
type ResponseAnalyzer interface {
	Analyze(ctx context.Context, followUpID uuid.UUID, force bool) (*followup.Analysis, error)
}

// ConversationService advances the WhatsApp questionnaire from inbound messages.
type ConversationService struct {
	conversations conversation.Repository
	followUps     followup.Repository
	patients      patient.Repository
	resolver      *PhoneResolver
	gateway       messaging.Gateway
	questionnaire *Questionnaire
	queue         TaskQueue
	analyzer      ResponseAnalyzer
	events        EventPublisher
	now           Clock
	logger        *logrus.Entry

	// per-patient locks: a patient's messages are handled one at a time
	locks sync.Map
}

type ConversationDeps struct {
	Conversations conversation.Repository
	FollowUps     followup.Repository
	Patients      patient.Repository
	Resolver      *PhoneResolver
	Gateway       messaging.Gateway
	Questionnaire *Questionnaire
	Queue         TaskQueue
	Analyzer      ResponseAnalyzer
	Events        EventPublisher
}

func NewConversationService(deps ConversationDeps, now Clock, logger *logrus.Entry) *ConversationService {
	if deps.Questionnaire == nil {
		deps.Questionnaire = DefaultQuestionnaire()
	}
	if deps.Events == nil {
		deps.Events = NoopEventPublisher{}
	}
	return &ConversationService{
		conversations: deps.Conversations,
		followUps:     deps.FollowUps,
		patients:      deps.Patients,
		resolver:      deps.Resolver,
		gateway:       deps.Gateway,
		questionnaire: deps.Questionnaire,
		queue:         deps.Queue,
		analyzer:      deps.Analyzer,
		events:        deps.Events,
		now:           now,
		logger:        logger,
	}
}

// HandleInbound processes one patient message. Redelivered message ids are ignored.
// Unknown or ambiguous senders get a generic reply and change nothing.
func (s *ConversationService) HandleInbound(ctx context.Context, msg messaging.InboundMessage) error {
	log := s.logger.WithFields(logrus.Fields{
		"message_id": msg.ID,
		"from":       patient.MaskPhone(msg.From),
		"type":       msg.Type,
	})

	p, err := s.resolver.Resolve(ctx, msg.From)
	if err != nil {
		if errors.Is(err, patient.ErrNotFound) || errors.Is(err, ErrPhoneAmbiguous) {
			return s.replyUnresolved(ctx, log.WithError(err), msg)
		}
		return err
	}
	log = log.WithField("patient_id", p.ID)

	unlock := s.lock(p.ID)
	defer unlock()

	if msg.ID != "" {
		done, err := s.conversations.IsProcessed(ctx, msg.ID)
		if err != nil {
			return fmt.Errorf("failed to check message: %w", err)
		}
		if done {
			log.Info("Duplicate message delivery ignored")
			metrics.WebhookMessages.WithLabelValues("duplicate").Inc()
			return nil
		}
		if err := s.gateway.MarkRead(ctx, msg.ID); err != nil {
			log.WithError(err).Debug("Failed to mark message as read")
		}
	}

	conv, err := s.conversations.GetByPatient(ctx, p.ID)
	if errors.Is(err, conversation.ErrNotFound) {
		conv = conversation.New(p.ID, p.PhoneNormalized)
	} else if err != nil {
		return fmt.Errorf("failed to load conversation: %w", err)
	}
	conv.Inbound(s.now())

	out, err := s.advance(ctx, log, p, conv, msg)
	if err != nil {
		metrics.WebhookMessages.WithLabelValues("error").Inc()
		return err
	}

	if out.reply != "" {
		if _, err := s.gateway.SendText(ctx, msg.From, out.reply); err != nil {
			log.WithError(err).Warn("Failed to send reply")
		} else {
			conv.Outbound(s.now())
		}
	}
	// The message id is stored with the conversation, so a failed attempt is handled
	// again on redelivery.
	if err := s.conversations.SaveProcessed(ctx, conv, msg.ID); err != nil {
		metrics.WebhookMessages.WithLabelValues("error").Inc()
		return fmt.Errorf("failed to save conversation: %w", err)
	}
	if out.completed != nil {
		if err := s.events.Publish(ctx, newEvent(EventFollowUpResponded, out.completed, s.now())); err != nil {
			log.WithError(err).Warn("Failed to publish follow-up event")
		}
		s.enqueueAnalysis(log, out.completed.ID)
	}
	metrics.WebhookMessages.WithLabelValues("processed").Inc()
	return nil
}

// replyUnresolved answers a sender no single patient matches, once per message id.
func (s *ConversationService) replyUnresolved(ctx context.Context, log *logrus.Entry, msg messaging.InboundMessage) error {
	if msg.ID != "" {
		first, err := s.conversations.MarkProcessed(ctx, msg.ID)
		if err != nil {
			return fmt.Errorf("failed to record message: %w", err)
		}
		if !first {
			metrics.WebhookMessages.WithLabelValues("duplicate").Inc()
			return nil
		}
	}
	log.Warn("Inbound message from unresolved phone")
	metrics.WebhookMessages.WithLabelValues("unknown_sender").Inc()
	if _, err := s.gateway.SendText(ctx, msg.From, msgPatientNotFound); err != nil {
		log.WithError(err).Warn("Failed to send patient-not-found reply")
	}
	return nil
}

func (s *ConversationService) lock(patientID uuid.UUID) func() {
	mu, _ := s.locks.LoadOrStore(patientID, &sync.Mutex{})
	m := mu.(*sync.Mutex)
	m.Lock()
	return m.Unlock
}

// outcome is what advance decided: the reply, and the follow-up whose
// questionnaire was just stored, if any.
type outcome struct {
	reply     string
	completed *followup.FollowUp
}

func reply(text string) (outcome, error) { return outcome{reply: text}, nil }

// advance applies the message to the conversation.
func (s *ConversationService) advance(ctx context.Context, log *logrus.Entry, p *patient.Patient, conv *conversation.Conversation, msg messaging.InboundMessage) (outcome, error) {
	if msg.Type != messaging.TypeText || strings.TrimSpace(msg.Text) == "" {
		return reply(msgTextOnly)
	}

	fu, err := s.currentFollowUp(ctx, conv, p)
	if err != nil {
		return outcome{}, err
	}
	if fu == nil {
		return reply(msgNothingPending)
	}
	log = log.WithFields(logrus.Fields{"follow_up_id": fu.ID, "day": fu.DayNumber})

	surgery, err := s.patients.GetSurgeryByID(ctx, fu.SurgeryID)
	if err != nil {
		return outcome{}, fmt.Errorf("failed to load surgery: %w", err)
	}
	qc := QuestionContext{SurgeryType: surgery.Type, DayNumber: fu.DayNumber}

	switch fu.Status {
	case followup.StatusSent:
		if !IsAffirmative(msg.Text) {
			return reply(msgAskConfirmation)
		}
		if err := s.move(ctx, fu, followup.StatusInProgress); err != nil {
			return outcome{}, err
		}
		log.Info("Questionnaire started")
		return reply(msgQuestionnaireIntro + "\n\n" + s.restart(conv, fu, qc))

	case followup.StatusResponded:
		// Stored by an earlier attempt whose conversation save failed.
		log.Info("Response already stored, closing questionnaire")
		conv.Complete()
		return outcome{reply: msgThanks, completed: fu}, nil

	case followup.StatusInProgress:
		q, ok := s.questionnaire.At(conv.Step)
		if !conv.BoundTo(fu.ID) || conv.State != conversation.StateInQuestionnaire || !ok {
			log.Warn("Conversation out of sync with follow-up, restarting questionnaire")
			return reply(s.restart(conv, fu, qc))
		}

		if err := q.Parse(msg.Text, &conv.Answers); err != nil {
			if q.Hint != "" {
				return reply(q.Hint + "\n\n" + q.Prompt)
			}
			return reply(q.Prompt)
		}

		qc.Answers = conv.Answers
		if next, nq, ok := s.questionnaire.NextFrom(conv.Step+1, qc); ok {
			conv.Step = next
			return reply(nq.Prompt)
		}
		return s.complete(ctx, log, conv, fu)
	}
	return reply(msgNothingPending)
}

// restart binds the conversation to fu and returns the first question.
func (s *ConversationService) restart(conv *conversation.Conversation, fu *followup.FollowUp, qc QuestionContext) string {
	conv.FollowUpID = uuid.NullUUID{UUID: fu.ID, Valid: true}
	step, q, _ := s.questionnaire.NextFrom(0, qc)
	conv.StartQuestionnaire(step)
	return q.Prompt
}

func (s *ConversationService) complete(ctx context.Context, log *logrus.Entry, conv *conversation.Conversation, fu *followup.FollowUp) (outcome, error) {
	now := s.now()
	resp := followup.NewResponse(fu.ID, conv.Answers, now)
	if err := fu.Advance(followup.StatusResponded, now); err != nil {
		return outcome{}, err
	}
	err := s.followUps.Complete(ctx, fu, resp)
	switch {
	case errors.Is(err, followup.ErrDuplicateResponse):
		log.Warn("Follow-up already has a response, keeping the stored one")
		if err := s.followUps.Update(ctx, fu, followup.StatusInProgress); err != nil && !errors.Is(err, followup.ErrConflict) {
			return outcome{}, fmt.Errorf("failed to close answered follow-up: %w", err)
		}
		conv.Complete()
		return reply(msgThanks)
	case err != nil:
		return outcome{}, fmt.Errorf("failed to store response: %w", err)
	}
	conv.Complete()
	log.Info("Questionnaire completed")
	return outcome{reply: msgThanks, completed: fu}, nil
}

func (s *ConversationService) enqueueAnalysis(log *logrus.Entry, followUpID uuid.UUID) {
	if s.queue == nil || s.analyzer == nil {
		return
	}
	ok := s.queue.Enqueue("analyze-response", func(ctx context.Context) error {
		_, err := s.analyzer.Analyze(ctx, followUpID, false)
		return err
	})
	if !ok {
		log.Error("Analysis queue full, response left unanalyzed until re-run manually")
	}
}

func (s *ConversationService) move(ctx context.Context, fu *followup.FollowUp, to followup.Status) error {
	prev := fu.Status
	if err := fu.Advance(to, s.now()); err != nil {
		return err
	}
	if err := s.followUps.Update(ctx, fu, prev); err != nil {
		return fmt.Errorf("failed to move follow-up to %s: %w", to, err)
	}
	return nil
}

// currentFollowUp prefers the follow-up the conversation is bound to, falling back
// to the most recently scheduled in-flight one.
func (s *ConversationService) currentFollowUp(ctx context.Context, conv *conversation.Conversation, p *patient.Patient) (*followup.FollowUp, error) {
	if conv.FollowUpID.Valid {
		fu, err := s.followUps.GetByID(ctx, conv.FollowUpID.UUID)
		switch {
		case err == nil && fu.Status.InFlight():
			return fu, nil
		case err == nil && fu.Status == followup.StatusResponded && conv.State == conversation.StateInQuestionnaire:
			return fu, nil
		case err != nil && !errors.Is(err, followup.ErrNotFound):
			return nil, fmt.Errorf("failed to load bound follow-up: %w", err)
		}
	}
	inFlight, err := s.followUps.ListInFlightByPatient(ctx, p.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list in-flight follow-ups: %w", err)
	}
	if len(inFlight) == 0 {
		return nil, nil
	}
	return inFlight[len(inFlight)-1], nil
}
