package httpapi

import (
	"database/sql"
	"time"

	"github.com/google/uuid"

	"postop_followup/internal/app"
	"postop_followup/internal/domain/doctor"
	"postop_followup/internal/domain/followup"
	"postop_followup/internal/domain/patient"
)

const dateLayout = "2006-01-02"

type doctorView struct {
	ID             uuid.UUID `json:"id"`
	FullName       string    `json:"fullName"`
	Email          string    `json:"email"`
	WhatsApp       string    `json:"whatsapp,omitempty"`
	TelegramLinked bool      `json:"telegramLinked"`
	IsActive       bool      `json:"isActive"`
	CreatedAt      time.Time `json:"createdAt"`
}

func toDoctorView(d *doctor.Doctor) doctorView {
	return doctorView{
		ID:             d.ID,
		FullName:       d.FullName,
		Email:          d.Email,
		WhatsApp:       d.WhatsApp.String,
		TelegramLinked: d.TelegramChatID.Valid,
		IsActive:       d.IsActive,
		CreatedAt:      d.CreatedAt,
	}
}

type patientView struct {
	ID              uuid.UUID `json:"id"`
	DoctorID        uuid.UUID `json:"doctorId"`
	Name            string    `json:"name"`
	Phone           string    `json:"phone"`
	PhoneNormalized string    `json:"phoneNormalized"`
	BirthDate       string    `json:"birthDate,omitempty"`
	Comorbidities   []string  `json:"comorbidities"`
	IsActive        bool      `json:"isActive"`
	CreatedAt       time.Time `json:"createdAt"`
}

func toPatientView(p *patient.Patient) patientView {
	v := patientView{
		ID:              p.ID,
		DoctorID:        p.DoctorID,
		Name:            p.Name,
		Phone:           p.Phone,
		PhoneNormalized: p.PhoneNormalized,
		Comorbidities:   p.Comorbidities,
		IsActive:        p.IsActive,
		CreatedAt:       p.CreatedAt,
	}
	if v.Comorbidities == nil {
		v.Comorbidities = []string{}
	}
	if p.BirthDate.Valid {
		v.BirthDate = p.BirthDate.Time.Format(dateLayout)
	}
	return v
}

type surgeryView struct {
	ID        uuid.UUID           `json:"id"`
	PatientID uuid.UUID           `json:"patientId"`
	Type      patient.SurgeryType `json:"type"`
	TypeLabel string              `json:"typeLabel"`
	Date      string              `json:"date"`
	Notes     string              `json:"notes,omitempty"`
}

func toSurgeryView(s *patient.Surgery, loc *time.Location) surgeryView {
	return surgeryView{
		ID:        s.ID,
		PatientID: s.PatientID,
		Type:      s.Type,
		TypeLabel: s.Type.Label(),
		Date:      s.Date.In(loc).Format(dateLayout),
		Notes:     s.Notes,
	}
}

type registrationView struct {
	Patient            patientView `json:"patient"`
	Surgery            surgeryView `json:"surgery"`
	FollowUpsScheduled int         `json:"followUpsScheduled"`
}

type followUpView struct {
	ID            uuid.UUID       `json:"id"`
	SurgeryID     uuid.UUID       `json:"surgeryId"`
	PatientID     uuid.UUID       `json:"patientId"`
	DayNumber     int             `json:"dayNumber"`
	ScheduledDate time.Time       `json:"scheduledDate"`
	Status        followup.Status `json:"status"`
	SentAt        *time.Time      `json:"sentAt,omitempty"`
	RespondedAt   *time.Time      `json:"respondedAt,omitempty"`
	SendAttempts  int             `json:"sendAttempts"`
}

func toFollowUpView(f *followup.FollowUp) followUpView {
	return followUpView{
		ID:            f.ID,
		SurgeryID:     f.SurgeryID,
		PatientID:     f.PatientID,
		DayNumber:     f.DayNumber,
		ScheduledDate: f.ScheduledDate,
		Status:        f.Status,
		SentAt:        nullTime(f.SentAt),
		RespondedAt:   nullTime(f.RespondedAt),
		SendAttempts:  f.SendAttempts,
	}
}

type responseView struct {
	Answers         followup.Answers   `json:"answers"`
	RiskLevel       followup.RiskLevel `json:"riskLevel,omitempty"`
	RedFlags        []string           `json:"redFlags"`
	Recommendations []string           `json:"recommendations"`
	AIAnalysis      string             `json:"aiAnalysis,omitempty"`
	EmpathicReply   string             `json:"empathicReply,omitempty"`
	AnalyzedAt      *time.Time         `json:"analyzedAt,omitempty"`
	CreatedAt       time.Time          `json:"createdAt"`
}

type followUpDetailView struct {
	followUpView
	Response *responseView `json:"response,omitempty"`
}

func toFollowUpDetailView(d *app.FollowUpDetail) followUpDetailView {
	v := followUpDetailView{followUpView: toFollowUpView(d.FollowUp)}
	if r := d.Response; r != nil {
		v.Response = &responseView{
			Answers:         r.Answers,
			RiskLevel:       r.RiskLevel,
			RedFlags:        nonNil(r.RedFlags),
			Recommendations: nonNil(r.Recommendations),
			AIAnalysis:      r.AIAnalysis,
			EmpathicReply:   r.EmpathicReply,
			AnalyzedAt:      nullTime(r.AnalyzedAt),
			CreatedAt:       r.CreatedAt,
		}
	}
	return v
}

type analysisView struct {
	RiskLevel       followup.RiskLevel `json:"riskLevel"`
	RedFlags        []string           `json:"redFlags"`
	Recommendations []string           `json:"recommendations"`
	AIAnalysis      string             `json:"aiAnalysis,omitempty"`
	EmpathicReply   string             `json:"empathicReply,omitempty"`
	AnalyzedAt      time.Time          `json:"analyzedAt"`
}

func toAnalysisView(a *followup.Analysis) analysisView {
	return analysisView{
		RiskLevel:       a.RiskLevel,
		RedFlags:        nonNil(a.RedFlags),
		Recommendations: nonNil(a.Recommendations),
		AIAnalysis:      a.AIAnalysis,
		EmpathicReply:   a.EmpathicReply,
		AnalyzedAt:      a.AnalyzedAt,
	}
}

func nullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
