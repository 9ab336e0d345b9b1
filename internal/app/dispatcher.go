package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"postop_followup/internal/domain/conversation"
	"postop_followup/internal/domain/followup"
	"postop_followup/internal/domain/messaging"
	"postop_followup/internal/domain/patient"
	"postop_followup/internal/infra/metrics"
)

// DispatchResult summarises one dispatcher run.
type DispatchResult struct {
	Total     int      `json:"total"`
	Sent      int      `json:"sent"`
	Failed    int      `json:"failed"`
	Expired   int      `json:"expired"`
	Exhausted int      `json:"exhausted"`
	Skipped   bool     `json:"skipped,omitempty"`
	Errors    []string `json:"errors,omitempty"`
}

// DispatchOptions tunes the dispatcher.
type DispatchOptions struct {
	Language    string
	Pause       time.Duration // between sends, to stay under gateway rate limits
	MaxAttempts int           // failed sends before a follow-up is skipped; 0 retries forever
}

var errSendExhausted = errors.New("send attempts exhausted")

// Dispatcher sends due follow-ups through the messaging gateway.
type Dispatcher struct {
	followUps     followup.Repository
	patients      patient.Repository
	conversations conversation.Repository
	gateway       messaging.Gateway
	events        EventPublisher
	opts          DispatchOptions
	now           Clock
	logger        *logrus.Entry

	running sync.Mutex
}

type DispatcherDeps struct {
	FollowUps     followup.Repository
	Patients      patient.Repository
	Conversations conversation.Repository
	Gateway       messaging.Gateway
	Events        EventPublisher
}

func NewDispatcher(deps DispatcherDeps, opts DispatchOptions, now Clock, logger *logrus.Entry) *Dispatcher {
	if deps.Events == nil {
		deps.Events = NoopEventPublisher{}
	}
	return &Dispatcher{
		followUps:     deps.FollowUps,
		patients:      deps.Patients,
		conversations: deps.Conversations,
		gateway:       deps.Gateway,
		events:        deps.Events,
		opts:          opts,
		now:           now,
		logger:        logger,
	}
}

// Run sends, for every patient, the most recent pending follow-up scheduled at or
// before now. Older pending ones of the same patient are expired unsent. A failed
// send leaves the follow-up pending for the next run until MaxAttempts is reached,
// then it is skipped. Overlapping runs in the same process are skipped.
func (d *Dispatcher) Run(ctx context.Context) (DispatchResult, error) {
	var res DispatchResult
	if !d.running.TryLock() {
		d.logger.Warn("Dispatcher already running, skipping this invocation")
		res.Skipped = true
		return res, nil
	}
	defer d.running.Unlock()

	due, err := d.followUps.ListDue(ctx, d.now())
	if err != nil {
		return res, fmt.Errorf("failed to list due follow-ups: %w", err)
	}
	res.Total = len(due)
	d.logger.WithField("due", len(due)).Info("Dispatching follow-ups")

	// due is ordered by scheduled date, so each group ends with the newest follow-up.
	byPatient := lo.GroupBy(due, func(f *followup.FollowUp) uuid.UUID { return f.PatientID })
	patientIDs := lo.Uniq(lo.Map(due, func(f *followup.FollowUp, _ int) uuid.UUID { return f.PatientID }))

	for i, patientID := range patientIDs {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if i > 0 && d.opts.Pause > 0 {
			select {
			case <-ctx.Done():
				return res, ctx.Err()
			case <-time.After(d.opts.Pause):
			}
		}

		list := byPatient[patientID]
		newest := list[len(list)-1]
		res.Expired += d.expireSuperseded(ctx, list[:len(list)-1])

		expired, err := d.dispatchOne(ctx, newest)
		res.Expired += expired
		if err != nil {
			res.Failed++
			if errors.Is(err, errSendExhausted) {
				res.Exhausted++
			}
			res.Errors = append(res.Errors, fmt.Sprintf("follow-up %s: %v", newest.ID, err))
			metrics.FollowUpsDispatched.WithLabelValues("failed").Inc()
			continue
		}
		res.Sent++
		metrics.FollowUpsDispatched.WithLabelValues("sent").Inc()
	}

	d.logger.WithFields(logrus.Fields{
		"total":     res.Total,
		"sent":      res.Sent,
		"failed":    res.Failed,
		"expired":   res.Expired,
		"exhausted": res.Exhausted,
	}).Info("Dispatch run finished")
	return res, nil
}

// expireSuperseded closes pending follow-ups that were never sent and whose day has
// been overtaken by a newer due one.
func (d *Dispatcher) expireSuperseded(ctx context.Context, stale []*followup.FollowUp) int {
	expired := 0
	for _, f := range stale {
		log := d.logger.WithFields(logrus.Fields{"follow_up_id": f.ID, "patient_id": f.PatientID, "day": f.DayNumber})
		if err := d.close(ctx, f, followup.StatusExpired); err != nil {
			log.WithError(err).Warn("Failed to expire superseded follow-up")
			continue
		}
		expired++
		log.Info("Superseded follow-up expired unsent")
	}
	return expired
}

func (d *Dispatcher) dispatchOne(ctx context.Context, f *followup.FollowUp) (int, error) {
	log := d.logger.WithFields(logrus.Fields{
		"follow_up_id": f.ID,
		"patient_id":   f.PatientID,
		"day":          f.DayNumber,
	})

	p, err := d.patients.GetByID(ctx, f.PatientID)
	if err != nil {
		return 0, fmt.Errorf("failed to load patient: %w", err)
	}

	if _, err := d.gateway.SendTemplate(ctx, p.PhoneNormalized, d.template(f, p)); err != nil {
		return 0, d.sendFailed(ctx, log, f, err)
	}

	now := d.now()
	f.SendAttempts++
	if err := f.Advance(followup.StatusSent, now); err != nil {
		return 0, err
	}
	if err := d.followUps.Update(ctx, f, followup.StatusPending); err != nil {
		// The message went out; the next run would send it again.
		log.WithError(err).Error("Follow-up sent but status update failed")
		return 0, fmt.Errorf("failed to mark follow-up sent: %w", err)
	}

	expired, err := d.expireStale(ctx, f)
	if err != nil {
		log.WithError(err).Error("Failed to expire earlier in-flight follow-ups")
	}

	conv, err := d.conversations.GetByPatient(ctx, p.ID)
	if errors.Is(err, conversation.ErrNotFound) {
		conv = conversation.New(p.ID, p.PhoneNormalized)
	} else if err != nil {
		log.WithError(err).Error("Failed to load conversation")
		return expired, nil
	}
	conv.Phone = p.PhoneNormalized
	conv.Bind(f.ID, now)
	if err := d.conversations.Save(ctx, conv); err != nil {
		log.WithError(err).Error("Failed to bind conversation to follow-up")
	}

	if err := d.events.Publish(ctx, newEvent(EventFollowUpSent, f, now)); err != nil {
		log.WithError(err).Warn("Failed to publish follow-up event")
	}
	log.Info("Follow-up sent")
	return expired, nil
}

// sendFailed records a failed attempt. Once MaxAttempts is reached the follow-up is
// skipped; until then it stays pending for the next run.
func (d *Dispatcher) sendFailed(ctx context.Context, log *logrus.Entry, f *followup.FollowUp, sendErr error) error {
	f.SendAttempts++
	log = log.WithError(sendErr).WithField("attempts", f.SendAttempts)

	if d.opts.MaxAttempts > 0 && f.SendAttempts >= d.opts.MaxAttempts {
		if err := d.close(ctx, f, followup.StatusSkipped); err != nil {
			log.WithError(err).Error("Failed to skip follow-up after exhausting send attempts")
		} else {
			log.Warn("Follow-up skipped after repeated send failures")
		}
		return fmt.Errorf("%w: gateway: %v", errSendExhausted, sendErr)
	}

	log.Warn("Failed to send follow-up template, will retry next run")
	if err := d.followUps.Update(ctx, f, followup.StatusPending); err != nil {
		log.WithError(err).Error("Failed to record send attempt")
	}
	return fmt.Errorf("gateway: %w", sendErr)
}

// expireStale closes earlier follow-ups of the same patient that were sent but never
// finished, so only one follow-up per patient is in flight.
func (d *Dispatcher) expireStale(ctx context.Context, next *followup.FollowUp) (int, error) {
	inFlight, err := d.followUps.ListInFlightByPatient(ctx, next.PatientID)
	if err != nil {
		return 0, fmt.Errorf("failed to list in-flight follow-ups: %w", err)
	}
	expired := 0
	for _, f := range inFlight {
		if f.ID == next.ID {
			continue
		}
		if err := d.close(ctx, f, followup.StatusExpired); err != nil {
			return expired, err
		}
		expired++
		d.logger.WithFields(logrus.Fields{
			"follow_up_id": f.ID,
			"patient_id":   f.PatientID,
			"day":          f.DayNumber,
		}).Info("Unfinished follow-up expired")
	}
	return expired, nil
}

// close moves f to a terminal status. A row that changed meanwhile is left alone.
func (d *Dispatcher) close(ctx context.Context, f *followup.FollowUp, to followup.Status) error {
	prev := f.Status
	if err := f.Advance(to, d.now()); err != nil {
		return err
	}
	if err := d.followUps.Update(ctx, f, prev); err != nil && !errors.Is(err, followup.ErrConflict) {
		return fmt.Errorf("failed to move follow-up %s to %s: %w", f.ID, to, err)
	}
	return nil
}

func (d *Dispatcher) template(f *followup.FollowUp, p *patient.Patient) messaging.Template {
	if f.DayNumber == 1 {
		return messaging.Template{Name: templateFirstDay, Language: d.opts.Language, Params: []string{p.FirstName()}}
	}
	return messaging.Template{Name: templateFollowUp, Language: d.opts.Language}
}
