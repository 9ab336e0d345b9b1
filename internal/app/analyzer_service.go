package app

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"postop_followup/internal/domain/followup"
	"postop_followup/internal/domain/messaging"
	"postop_followup/internal/domain/notification"
	"postop_followup/internal/domain/patient"
	"postop_followup/internal/infra/metrics"
)

// AnalyzerService assesses a completed questionnaire. Rule flags are always
// computed locally, the AI result only raises the risk or adds detail.
type AnalyzerService struct {
	followUps     followup.Repository
	patients      patient.Repository
	ai            AIAnalyzer // nil when no key is configured
	aiTimeout     time.Duration
	gateway       messaging.Gateway
	notifications *NotificationService
	events        EventPublisher
	now           Clock
	logger        *logrus.Entry
}

type AnalyzerDeps struct {
	FollowUps     followup.Repository
	Patients      patient.Repository
	AI            AIAnalyzer
	Gateway       messaging.Gateway
	Notifications *NotificationService
	Events        EventPublisher
}

func NewAnalyzerService(deps AnalyzerDeps, aiTimeout time.Duration, now Clock, logger *logrus.Entry) *AnalyzerService {
	if deps.Events == nil {
		deps.Events = NoopEventPublisher{}
	}
	return &AnalyzerService{
		followUps:     deps.FollowUps,
		patients:      deps.Patients,
		ai:            deps.AI,
		aiTimeout:     aiTimeout,
		gateway:       deps.Gateway,
		notifications: deps.Notifications,
		events:        deps.Events,
		now:           now,
		logger:        logger,
	}
}

// Analyze assesses the response of a follow-up and stores the result. An already
// analysed response is returned as is unless force is set. The patient reply is only
// sent on the first analysis; the doctor is notified when the risk is medium or above
// and higher than any previously stored risk.
func (s *AnalyzerService) Analyze(ctx context.Context, followUpID uuid.UUID, force bool) (*followup.Analysis, error) {
	log := s.logger.WithField("follow_up_id", followUpID)

	fu, err := s.followUps.GetByID(ctx, followUpID)
	if err != nil {
		return nil, err
	}
	resp, err := s.followUps.GetResponse(ctx, followUpID)
	if err != nil {
		return nil, err
	}
	if resp.Analyzed() && !force {
		return storedAnalysis(resp), nil
	}
	firstAnalysis := !resp.Analyzed()

	p, err := s.patients.GetByID(ctx, fu.PatientID)
	if err != nil {
		return nil, fmt.Errorf("failed to load patient: %w", err)
	}
	surgery, err := s.patients.GetSurgeryByID(ctx, fu.SurgeryID)
	if err != nil {
		return nil, fmt.Errorf("failed to load surgery: %w", err)
	}

	flags := DetectRedFlags(surgery.Type, fu.DayNumber, resp.Answers)
	history, err := s.followUps.PainHistory(ctx, surgery.ID)
	if err != nil {
		log.WithError(err).Warn("Failed to load pain history, skipping trend")
	}
	if f, ok := painTrendFlag(history); ok {
		flags = append(flags, f)
	}
	sortFlags(flags)

	now := s.now()
	analysis := followup.Analysis{
		RiskLevel:     RiskFromFlags(flags),
		RedFlags:      flagDescriptions(flags),
		EmpathicReply: msgDefaultEmpathic,
	}
	source := "rules"

	if s.ai != nil {
		assessment, err := s.assess(ctx, AIRequest{
			SurgeryType:   surgery.Type,
			DayNumber:     fu.DayNumber,
			PatientAge:    p.Age(now),
			Comorbidities: p.Comorbidities,
			Answers:       resp.Answers,
			RuleFlags:     analysis.RedFlags,
			PainHistory:   history,
		})
		if err != nil {
			log.WithError(err).Warn("AI analysis failed, keeping rule-based result")
		} else {
			analysis.RiskLevel = followup.MaxRisk(analysis.RiskLevel, assessment.RiskLevel)
			analysis.RedFlags = lo.Uniq(append(analysis.RedFlags, assessment.RedFlags...))
			analysis.Recommendations = assessment.Recommendations
			analysis.AIAnalysis = assessment.Analysis
			if assessment.EmpathicReply != "" {
				analysis.EmpathicReply = assessment.EmpathicReply
			}
			source = "rules+ai"
		}
	}
	analysis.AnalyzedAt = now

	if err := s.followUps.SaveAnalysis(ctx, followUpID, analysis); err != nil {
		return nil, fmt.Errorf("failed to store analysis: %w", err)
	}
	metrics.ResponsesAnalyzed.WithLabelValues(string(analysis.RiskLevel), source).Inc()
	log.WithFields(logrus.Fields{
		"risk":      analysis.RiskLevel,
		"red_flags": len(analysis.RedFlags),
		"source":    source,
	}).Info("Response analysed")

	if firstAnalysis {
		if _, err := s.gateway.SendText(ctx, p.PhoneNormalized, analysis.EmpathicReply); err != nil {
			log.WithError(err).Warn("Failed to send reply to patient")
		}
	}

	previous := followup.RiskLow
	if !firstAnalysis {
		previous = resp.RiskLevel
	}
	if analysis.RiskLevel.AtLeast(followup.RiskMedium) && (firstAnalysis || analysis.RiskLevel.Rank() > previous.Rank()) {
		s.notifyDoctor(ctx, log, p, fu, analysis)
	}

	ev := newEvent(EventFollowUpAnalyzed, fu, now)
	ev.RiskLevel = analysis.RiskLevel
	if err := s.events.Publish(ctx, ev); err != nil {
		log.WithError(err).Warn("Failed to publish follow-up event")
	}
	return &analysis, nil
}

func (s *AnalyzerService) assess(ctx context.Context, req AIRequest) (*AIAssessment, error) {
	if s.aiTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.aiTimeout)
		defer cancel()
	}
	start := time.Now()
	a, err := s.ai.Assess(ctx, req)
	metrics.AIRequestDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}
	if a.RiskLevel.Rank() < 0 {
		a.RiskLevel = followup.RiskLow
	}
	return a, nil
}

func (s *AnalyzerService) notifyDoctor(ctx context.Context, log *logrus.Entry, p *patient.Patient, fu *followup.FollowUp, a followup.Analysis) {
	if s.notifications == nil {
		return
	}
	n := &notification.Notification{
		DoctorID:   fu.DoctorID,
		PatientID:  uuid.NullUUID{UUID: p.ID, Valid: true},
		FollowUpID: uuid.NullUUID{UUID: fu.ID, Valid: true},
		Type:       notification.TypeClinicalRisk,
		Priority:   notification.PriorityForRisk(a.RiskLevel),
		Title:      alertTitle(notification.TypeClinicalRisk, p.Name, fu.DayNumber),
		Message:    doctorRiskAlert(p.Name, fu.DayNumber, string(a.RiskLevel), a.RedFlags),
	}
	if err := s.notifications.Create(ctx, n); err != nil {
		log.WithError(err).Error("Failed to notify doctor about clinical risk")
		return
	}
	metrics.DoctorAlerts.WithLabelValues(string(notification.TypeClinicalRisk)).Inc()
}

func storedAnalysis(r *followup.Response) *followup.Analysis {
	return &followup.Analysis{
		RiskLevel:       r.RiskLevel,
		RedFlags:        r.RedFlags,
		Recommendations: r.Recommendations,
		AIAnalysis:      r.AIAnalysis,
		EmpathicReply:   r.EmpathicReply,
		AnalyzedAt:      r.AnalyzedAt.Time,
	}
}
