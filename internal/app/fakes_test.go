package app

import (
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/mock"

	"postop_followup/internal/domain/conversation"
	"postop_followup/internal/domain/doctor"
	"postop_followup/internal/domain/followup"
	"postop_followup/internal/domain/messaging"
	"postop_followup/internal/domain/notification"
	"postop_followup/internal/domain/patient"
)

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTestClock(t time.Time) *testClock { return &testClock{t: t} }

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

func (c *testClock) Advance(d time.Duration) { c.Set(c.Now().Add(d)) }

// memStore backs every in-memory repository. Values are copied in and out the way
// rows are, so services cannot mutate stored state without calling the repository.
type memStore struct {
	mu            sync.Mutex
	now           Clock
	doctors       map[uuid.UUID]doctor.Doctor
	patients      map[uuid.UUID]patient.Patient
	surgeries     map[uuid.UUID]patient.Surgery
	followUps     map[uuid.UUID]followup.FollowUp
	responses     map[uuid.UUID]followup.Response // by follow-up id
	conversations map[uuid.UUID]conversation.Conversation
	processed     map[string]bool
	notifications map[uuid.UUID]notification.Notification
	failSave      error // returned by the next SaveProcessed only
}

func newMemStore(now Clock) *memStore {
	return &memStore{
		now:           now,
		doctors:       map[uuid.UUID]doctor.Doctor{},
		patients:      map[uuid.UUID]patient.Patient{},
		surgeries:     map[uuid.UUID]patient.Surgery{},
		followUps:     map[uuid.UUID]followup.FollowUp{},
		responses:     map[uuid.UUID]followup.Response{},
		conversations: map[uuid.UUID]conversation.Conversation{},
		processed:     map[string]bool{},
		notifications: map[uuid.UUID]notification.Notification{},
	}
}

// responseCount is what the unique (follow_up_id) index guards.
func (s *memStore) responseCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.responses)
}

func (s *memStore) followUpsOf(surgeryID uuid.UUID) []followup.FollowUp {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []followup.FollowUp
	for _, f := range s.followUps {
		if f.SurgeryID == surgeryID {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DayNumber < out[j].DayNumber })
	return out
}

// --- doctors

type memDoctors struct{ *memStore }

func (r memDoctors) Create(_ context.Context, d *doctor.Doctor) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.doctors {
		if existing.Email == d.Email {
			return doctor.ErrDuplicateEmail
		}
	}
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	d.CreatedAt, d.UpdatedAt = r.now(), r.now()
	r.doctors[d.ID] = *d
	return nil
}

func (r memDoctors) GetByID(_ context.Context, id uuid.UUID) (*doctor.Doctor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.doctors[id]
	if !ok {
		return nil, doctor.ErrNotFound
	}
	return &d, nil
}

func (r memDoctors) GetByTelegramChatID(_ context.Context, chatID int64) (*doctor.Doctor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range r.doctors {
		if d.TelegramChatID.Valid && d.TelegramChatID.Int64 == chatID {
			return &d, nil
		}
	}
	return nil, doctor.ErrNotFound
}

func (r memDoctors) Update(_ context.Context, d *doctor.Doctor) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.doctors[d.ID]; !ok {
		return doctor.ErrNotFound
	}
	r.doctors[d.ID] = *d
	return nil
}

func (r memDoctors) ListActive(_ context.Context) ([]*doctor.Doctor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*doctor.Doctor
	for _, d := range r.doctors {
		if d.IsActive {
			d := d
			out = append(out, &d)
		}
	}
	return out, nil
}

// --- patients

type memPatients struct{ *memStore }

func (r memPatients) Create(_ context.Context, p *patient.Patient) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	p.CreatedAt, p.UpdatedAt = r.now(), r.now()
	r.patients[p.ID] = *p
	return nil
}

func (r memPatients) GetByID(_ context.Context, id uuid.UUID) (*patient.Patient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.patients[id]
	if !ok {
		return nil, patient.ErrNotFound
	}
	return &p, nil
}

func (r memPatients) Update(_ context.Context, p *patient.Patient) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.patients[p.ID]; !ok {
		return patient.ErrNotFound
	}
	r.patients[p.ID] = *p
	return nil
}

func (r memPatients) ListByDoctor(_ context.Context, doctorID uuid.UUID, activeOnly bool) ([]*patient.Patient, error) {
	return r.filter(func(p patient.Patient) bool {
		return p.DoctorID == doctorID && (p.IsActive || !activeOnly)
	}), nil
}

func (r memPatients) ListActiveByPhone(_ context.Context, normalized string) ([]*patient.Patient, error) {
	return r.filter(func(p patient.Patient) bool {
		return p.IsActive && p.PhoneNormalized == normalized
	}), nil
}

func (r memPatients) ListActiveByPhoneSuffix(_ context.Context, suffix string) ([]*patient.Patient, error) {
	return r.filter(func(p patient.Patient) bool {
		return p.IsActive && strings.HasSuffix(p.PhoneNormalized, suffix)
	}), nil
}

func (r memPatients) filter(keep func(patient.Patient) bool) []*patient.Patient {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*patient.Patient
	for _, p := range r.patients {
		if keep(p) {
			p := p
			out = append(out, &p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (r memPatients) CreateSurgery(_ context.Context, s *patient.Surgery) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	s.CreatedAt = r.now()
	r.surgeries[s.ID] = *s
	return nil
}

func (r memPatients) GetSurgeryByID(_ context.Context, id uuid.UUID) (*patient.Surgery, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.surgeries[id]
	if !ok {
		return nil, patient.ErrSurgeryNotFound
	}
	return &s, nil
}

func (r memPatients) GetActiveSurgery(ctx context.Context, patientID uuid.UUID) (*patient.Surgery, error) {
	list, _ := r.ListSurgeries(ctx, patientID)
	if len(list) == 0 {
		return nil, patient.ErrSurgeryNotFound
	}
	return list[0], nil
}

func (r memPatients) ListSurgeries(_ context.Context, patientID uuid.UUID) ([]*patient.Surgery, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*patient.Surgery
	for _, s := range r.surgeries {
		if s.PatientID == patientID {
			s := s
			out = append(out, &s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return out, nil
}

// --- follow-ups

type memFollowUps struct {
	*memStore
	failComplete error // returned by the next Complete only
}

func (r *memFollowUps) CreateMany(_ context.Context, fs []*followup.FollowUp) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	created := 0
	for _, f := range fs {
		dup := false
		for _, existing := range r.followUps {
			if existing.SurgeryID == f.SurgeryID && existing.DayNumber == f.DayNumber {
				dup = true
				break
			}
		}
		if dup {
			continue
		}
		if f.ID == uuid.Nil {
			f.ID = uuid.New()
		}
		f.CreatedAt, f.UpdatedAt = r.now(), r.now()
		r.followUps[f.ID] = *f
		created++
	}
	return created, nil
}

func (r *memFollowUps) GetByID(_ context.Context, id uuid.UUID) (*followup.FollowUp, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.followUps[id]
	if !ok {
		return nil, followup.ErrNotFound
	}
	return &f, nil
}

func (r *memFollowUps) list(keep func(followup.FollowUp) bool) []*followup.FollowUp {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*followup.FollowUp
	for _, f := range r.followUps {
		if keep(f) {
			f := f
			out = append(out, &f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledDate.Before(out[j].ScheduledDate) })
	return out
}

func (r *memFollowUps) ListBySurgery(_ context.Context, surgeryID uuid.UUID) ([]*followup.FollowUp, error) {
	return r.list(func(f followup.FollowUp) bool { return f.SurgeryID == surgeryID }), nil
}

func (r *memFollowUps) ListByPatient(_ context.Context, patientID uuid.UUID) ([]*followup.FollowUp, error) {
	return r.list(func(f followup.FollowUp) bool { return f.PatientID == patientID }), nil
}

func (r *memFollowUps) ListDue(_ context.Context, now time.Time) ([]*followup.FollowUp, error) {
	r.mu.Lock()
	active := map[uuid.UUID]bool{}
	for id, p := range r.patients {
		active[id] = p.IsActive
	}
	r.mu.Unlock()
	return r.list(func(f followup.FollowUp) bool {
		return f.Status == followup.StatusPending && !f.ScheduledDate.After(now) && active[f.PatientID]
	}), nil
}

func (r *memFollowUps) ListInFlightByPatient(_ context.Context, patientID uuid.UUID) ([]*followup.FollowUp, error) {
	return r.list(func(f followup.FollowUp) bool { return f.PatientID == patientID && f.Status.InFlight() }), nil
}

func (r *memFollowUps) ListIdle(_ context.Context, before time.Time) ([]*followup.FollowUp, error) {
	return r.list(func(f followup.FollowUp) bool { return f.Status.InFlight() && f.UpdatedAt.Before(before) }), nil
}

func (r *memFollowUps) ListUnanswered(_ context.Context, sentBefore time.Time) ([]*followup.FollowUp, error) {
	return r.list(func(f followup.FollowUp) bool {
		return f.Status.InFlight() && f.SentAt.Valid && f.SentAt.Time.Before(sentBefore) && !f.DoctorAlertedAt.Valid
	}), nil
}

func (r *memFollowUps) Update(_ context.Context, f *followup.FollowUp, prev followup.Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.followUps[f.ID]
	if !ok {
		return followup.ErrNotFound
	}
	if stored.Status != prev {
		return followup.ErrConflict
	}
	f.UpdatedAt = r.now()
	r.followUps[f.ID] = *f
	return nil
}

func (r *memFollowUps) Touch(_ context.Context, id uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.followUps[id]
	if !ok {
		return followup.ErrNotFound
	}
	f.UpdatedAt = at
	r.followUps[id] = f
	return nil
}

func (r *memFollowUps) Complete(_ context.Context, f *followup.FollowUp, resp *followup.Response) error {
	if err := r.failComplete; err != nil {
		r.failComplete = nil
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.responses[f.ID]; ok {
		return followup.ErrDuplicateResponse
	}
	if r.followUps[f.ID].Status != followup.StatusInProgress {
		return followup.ErrConflict
	}
	r.responses[f.ID] = *resp
	f.UpdatedAt = r.now()
	r.followUps[f.ID] = *f
	return nil
}

func (r *memFollowUps) GetResponse(_ context.Context, followUpID uuid.UUID) (*followup.Response, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	resp, ok := r.responses[followUpID]
	if !ok {
		return nil, followup.ErrResponseNotFound
	}
	return &resp, nil
}

func (r *memFollowUps) SaveAnalysis(_ context.Context, followUpID uuid.UUID, a followup.Analysis) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	resp, ok := r.responses[followUpID]
	if !ok {
		return followup.ErrResponseNotFound
	}
	resp.RiskLevel = a.RiskLevel
	resp.RedFlags = a.RedFlags
	resp.Recommendations = a.Recommendations
	resp.AIAnalysis = a.AIAnalysis
	resp.EmpathicReply = a.EmpathicReply
	resp.AnalyzedAt.Time, resp.AnalyzedAt.Valid = a.AnalyzedAt, true
	r.responses[followUpID] = resp
	return nil
}

func (r *memFollowUps) PainHistory(_ context.Context, surgeryID uuid.UUID) ([]followup.PainPoint, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []followup.PainPoint
	for id, resp := range r.responses {
		f := r.followUps[id]
		if f.SurgeryID == surgeryID && resp.PainLevel.Valid {
			out = append(out, followup.PainPoint{Day: f.DayNumber, Pain: int(resp.PainLevel.Int32)})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Day < out[j].Day })
	return out, nil
}

func (r *memFollowUps) ListResearchRecords(_ context.Context, doctorID uuid.UUID) ([]followup.ResearchRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []followup.ResearchRecord
	for id, resp := range r.responses {
		f := r.followUps[id]
		if f.DoctorID != doctorID || !resp.AnalyzedAt.Valid {
			continue
		}
		out = append(out, followup.ResearchRecord{
			PatientID:   f.PatientID,
			SurgeryID:   f.SurgeryID,
			SurgeryType: string(r.surgeries[f.SurgeryID].Type),
			DayNumber:   f.DayNumber,
			PainLevel:   resp.PainLevel,
			RiskLevel:   resp.RiskLevel,
			RedFlags:    resp.RedFlags,
			RespondedAt: f.RespondedAt.Time,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DayNumber < out[j].DayNumber })
	return out, nil
}

// --- conversations

type memConversations struct{ *memStore }

func (r memConversations) GetByPatient(_ context.Context, patientID uuid.UUID) (*conversation.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.conversations[patientID]
	if !ok {
		return nil, conversation.ErrNotFound
	}
	return &c, nil
}

func (r memConversations) Save(_ context.Context, c *conversation.Conversation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c.UpdatedAt = r.now()
	r.conversations[c.PatientID] = *c
	return nil
}

func (r memConversations) SaveProcessed(ctx context.Context, c *conversation.Conversation, messageID string) error {
	r.mu.Lock()
	fail := r.failSave
	r.failSave = nil
	r.mu.Unlock()
	if fail != nil {
		return fail
	}
	if err := r.Save(ctx, c); err != nil {
		return err
	}
	if messageID != "" {
		_, err := r.MarkProcessed(ctx, messageID)
		return err
	}
	return nil
}

func (r memConversations) IsProcessed(_ context.Context, messageID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.processed[messageID], nil
}

func (r memConversations) MarkProcessed(_ context.Context, messageID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.processed[messageID] {
		return false, nil
	}
	r.processed[messageID] = true
	return true, nil
}

// --- notifications

type memNotifications struct{ *memStore }

func (r memNotifications) Create(_ context.Context, n *notification.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notifications[n.ID] = *n
	return nil
}

func (r memNotifications) GetByID(_ context.Context, id uuid.UUID) (*notification.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.notifications[id]
	if !ok {
		return nil, notification.ErrNotFound
	}
	return &n, nil
}

func (r memNotifications) ListByDoctor(_ context.Context, doctorID uuid.UUID, unreadOnly bool, limit int) ([]*notification.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*notification.Notification
	for _, n := range r.notifications {
		if n.DoctorID == doctorID && (!unreadOnly || !n.Read) {
			n := n
			out = append(out, &n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r memNotifications) MarkRead(_ context.Context, id, doctorID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.notifications[id]
	if !ok || n.DoctorID != doctorID {
		return notification.ErrNotFound
	}
	n.Read = true
	n.ReadAt.Time, n.ReadAt.Valid = r.now(), true
	r.notifications[id] = n
	return nil
}

func (s *memStore) notificationsOf(t notification.Type) []notification.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []notification.Notification
	for _, n := range s.notifications {
		if n.Type == t {
			out = append(out, n)
		}
	}
	return out
}

// --- collaborators

type sentMessage struct {
	To       string
	Body     string
	Template string
}

type fakeGateway struct {
	mu            sync.Mutex
	sent          []sentMessage
	failTemplates bool
	failText      bool
}

func (g *fakeGateway) SendText(_ context.Context, to, body string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failText {
		return "", errors.New("gateway unavailable")
	}
	g.sent = append(g.sent, sentMessage{To: to, Body: body})
	return uuid.NewString(), nil
}

func (g *fakeGateway) SendTemplate(_ context.Context, to string, tpl messaging.Template) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failTemplates {
		return "", errors.New("gateway unavailable")
	}
	g.sent = append(g.sent, sentMessage{To: to, Template: tpl.Name})
	return uuid.NewString(), nil
}

func (g *fakeGateway) MarkRead(context.Context, string) error { return nil }

func (g *fakeGateway) messages() []sentMessage {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]sentMessage(nil), g.sent...)
}

func (g *fakeGateway) last() sentMessage {
	msgs := g.messages()
	if len(msgs) == 0 {
		return sentMessage{}
	}
	return msgs[len(msgs)-1]
}

// syncQueue runs tasks inline so tests observe their effects immediately.
type syncQueue struct {
	mu    sync.Mutex
	names []string
	errs  []error
}

func (q *syncQueue) Enqueue(name string, fn func(ctx context.Context) error) bool {
	err := fn(context.Background())
	q.mu.Lock()
	defer q.mu.Unlock()
	q.names = append(q.names, name)
	q.errs = append(q.errs, err)
	return true
}

type recordingEvents struct {
	mu     sync.Mutex
	events []Event
}

func (e *recordingEvents) Publish(_ context.Context, ev Event) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, ev)
	return nil
}

func (e *recordingEvents) types() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, 0, len(e.events))
	for _, ev := range e.events {
		out = append(out, ev.Type)
	}
	return out
}

type recordingPublisher struct {
	mu   sync.Mutex
	sent []uuid.UUID
}

func (p *recordingPublisher) Publish(_ context.Context, n *notification.Notification) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, n.ID)
	return nil
}

type mockAI struct{ mock.Mock }

func (m *mockAI) Assess(ctx context.Context, req AIRequest) (*AIAssessment, error) {
	args := m.Called(ctx, req)
	a, _ := args.Get(0).(*AIAssessment)
	return a, args.Error(1)
}

type memObjectStore struct {
	objects map[string][]byte
}

func (s *memObjectStore) Put(_ context.Context, key, _ string, body []byte) error {
	if s.objects == nil {
		s.objects = map[string][]byte{}
	}
	s.objects[key] = body
	return nil
}
