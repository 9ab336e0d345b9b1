// Package httpapi exposes the registry, follow-up, notification, cron and webhook
// routes over echo.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"

	"postop_followup/internal/app"
	"postop_followup/internal/domain/doctor"
	"postop_followup/internal/domain/followup"
	"postop_followup/internal/domain/messaging"
	"postop_followup/internal/domain/notification"
	"postop_followup/internal/domain/patient"
	"postop_followup/internal/infra/metrics"
)

// DoctorAPI manages doctor accounts.
type DoctorAPI interface {
	AddDoctor(ctx context.Context, fullName, email, whatsapp string) (*doctor.Doctor, error)
	GetDoctor(ctx context.Context, id uuid.UUID) (*doctor.Doctor, error)
	LinkTelegram(ctx context.Context, id uuid.UUID, chatID int64) (*doctor.Doctor, error)
	DeactivateDoctor(ctx context.Context, id uuid.UUID) (*doctor.Doctor, error)
}

// RegistryAPI manages the patients of the calling doctor.
type RegistryAPI interface {
	RegisterPatient(ctx context.Context, doctorID uuid.UUID, in app.PatientInput) (*app.Registration, error)
	AddSurgery(ctx context.Context, doctorID, patientID uuid.UUID, in app.SurgeryInput) (*app.Registration, error)
	GetPatient(ctx context.Context, doctorID, id uuid.UUID) (*patient.Patient, error)
	ListPatients(ctx context.Context, doctorID uuid.UUID, activeOnly bool) ([]*patient.Patient, error)
	ListSurgeries(ctx context.Context, doctorID, patientID uuid.UUID) ([]*patient.Surgery, error)
	DeactivatePatient(ctx context.Context, doctorID, id uuid.UUID) (*patient.Patient, error)
	ListFollowUps(ctx context.Context, doctorID, patientID uuid.UUID) ([]*followup.FollowUp, error)
	GetFollowUp(ctx context.Context, doctorID, id uuid.UUID) (*app.FollowUpDetail, error)
}

type AnalyzerAPI interface {
	Analyze(ctx context.Context, followUpID uuid.UUID, force bool) (*followup.Analysis, error)
}

type NotificationAPI interface {
	List(ctx context.Context, doctorID uuid.UUID, unreadOnly bool, limit int) ([]*notification.Notification, error)
	MarkRead(ctx context.Context, id, doctorID uuid.UUID) (*notification.Notification, error)
}

type ExportAPI interface {
	ExportResearch(ctx context.Context, doctorID uuid.UUID) (*app.ExportResult, error)
}

// InboundHandler processes one patient message.
type InboundHandler interface {
	HandleInbound(ctx context.Context, msg messaging.InboundMessage) error
}

// StreamServer upgrades a request into a live notification stream.
type StreamServer interface {
	Serve(w http.ResponseWriter, r *http.Request, doctorID string) error
}

// JobFunc runs one periodic job and returns its summary.
type JobFunc func(ctx context.Context) (any, error)

type Jobs struct {
	Dispatch     JobFunc
	Remind       JobFunc
	AlertDoctors JobFunc
}

type Services struct {
	Doctors       DoctorAPI
	Registry      RegistryAPI
	Analyzer      AnalyzerAPI
	Notifications NotificationAPI
	Export        ExportAPI
	Inbound       InboundHandler
	Jobs          Jobs
	Stream        StreamServer // nil disables the websocket route
}

// Config carries the secrets and locale the handlers need.
type Config struct {
	CronSecret  string
	AppSecret   string
	VerifyToken string
	Location    *time.Location // surgery and birth dates are calendar dates here
}

// NewServer builds the echo instance with every route registered.
func NewServer(cfg Config, svc Services, logger *logrus.Entry) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = errorHandler(logger)

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(requestLogger(logger))

	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))

	wh := &webhookHandler{appSecret: cfg.AppSecret, verifyToken: cfg.VerifyToken, inbound: svc.Inbound, logger: logger.WithField("handler", "webhook")}
	e.GET("/webhook/whatsapp", wh.verify)
	e.POST("/webhook/whatsapp", wh.receive)

	cron := e.Group("/api/cron", cronAuth(cfg.CronSecret))
	methods := []string{http.MethodGet, http.MethodPost}
	cron.Match(methods, "/send-followups", runJob(svc.Jobs.Dispatch, logger))
	cron.Match(methods, "/send-patient-reminder", runJob(svc.Jobs.Remind, logger))
	cron.Match(methods, "/notify-doctor-unanswered", runJob(svc.Jobs.AlertDoctors, logger))

	api := e.Group("/api")
	dh := &doctorHandler{doctors: svc.Doctors}
	dh.RegisterRoutes(api)

	scoped := api.Group("", requireDoctor)
	ph := &patientHandler{registry: svc.Registry, loc: cfg.Location}
	ph.RegisterRoutes(scoped)
	fh := &followUpHandler{registry: svc.Registry, analyzer: svc.Analyzer}
	fh.RegisterRoutes(scoped)
	nh := &notificationHandler{notifications: svc.Notifications, stream: svc.Stream}
	nh.RegisterRoutes(scoped)
	xh := &exportHandler{export: svc.Export}
	xh.RegisterRoutes(scoped)

	return e
}
