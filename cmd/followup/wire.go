package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"gopkg.in/telebot.v3"

	"postop_followup/internal/app"
	"postop_followup/internal/domain/followup"
	domainTelegram "postop_followup/internal/domain/telegram"
	"postop_followup/internal/infra/ai"
	"postop_followup/internal/infra/config"
	idb "postop_followup/internal/infra/database"
	"postop_followup/internal/infra/events"
	"postop_followup/internal/infra/logger"
	"postop_followup/internal/infra/realtime"
	"postop_followup/internal/infra/storage"
	"postop_followup/internal/infra/telegram"
	"postop_followup/internal/infra/whatsapp"
	"postop_followup/internal/infra/worker"
)

// dispatchPause keeps the dispatcher under the gateway's per-second limits.
const dispatchPause = 200 * time.Millisecond

// application holds every long-lived component of the process.
type application struct {
	cfg *config.AppConfig
	db  *sql.DB

	queue *worker.Queue
	hub   *realtime.Hub
	bot   *telebot.Bot // nil when Telegram is disabled
	kafka *events.KafkaPublisher

	doctors       *app.DoctorService
	registry      *app.RegistryService
	notifications *app.NotificationService
	analyzer      *app.AnalyzerService
	conversations *app.ConversationService
	export        *app.ExportService
	dispatcher    *app.Dispatcher
	reminders     *app.ReminderService
	alerts        *app.DoctorAlertService
}

// loadConfig reads the configuration and initialises the global logger from it.
func loadConfig() (*config.AppConfig, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("could not load application configuration: %w", err)
	}
	logger.Init(cfg)
	return cfg, nil
}

func build(ctx context.Context, cfg *config.AppConfig) (*application, error) {
	log := logger.For("wire")

	db, err := idb.NewPostgresConnection(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("could not connect to database: %w", err)
	}
	log.Info("Database connection established")

	a := &application{cfg: cfg, db: db}
	now := app.Clock(time.Now)

	doctorRepo := idb.NewPostgresDoctorRepository(db)
	patientRepo := idb.NewPostgresPatientRepository(db)
	followUpRepo := idb.NewPostgresFollowUpRepository(db)
	conversationRepo := idb.NewPostgresConversationRepository(db)
	notificationRepo := idb.NewPostgresNotificationRepository(db)

	gateway := whatsapp.NewClient(cfg.WhatsAppAPIURL, cfg.WhatsAppPhoneNumberID, cfg.WhatsAppAccessToken, logger.For("whatsapp"))

	var eventPublisher app.EventPublisher = app.NoopEventPublisher{}
	if cfg.KafkaEnabled() {
		a.kafka = events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		eventPublisher = a.kafka
		log.WithField("topic", cfg.KafkaTopic).Info("Publishing follow-up events to Kafka")
	}

	var telegramClient domainTelegram.Client
	if cfg.TelegramEnabled() {
		bot, err := newBot(cfg.TelegramToken)
		if err != nil {
			db.Close()
			return nil, err
		}
		a.bot = bot
		telegramClient = telegram.NewTelebotAdapter(bot)
	}

	var analyzer app.AIAnalyzer
	if cfg.AIEnabled() {
		analyzer = ai.NewOpenAIAnalyzer(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel)
	} else {
		log.Warn("OPENAI_API_KEY not set, responses are analyzed by rules only")
	}

	var store app.ObjectStore
	if cfg.ExportEnabled() {
		s3Store, err := storage.NewS3Store(ctx, cfg.S3Bucket, cfg.S3Endpoint)
		if err != nil {
			db.Close()
			return nil, err
		}
		store = s3Store
	}

	a.queue = worker.New(worker.Config{
		Workers:     cfg.AnalysisWorkers,
		Size:        cfg.AnalysisQueueSize,
		MaxAttempts: cfg.AnalysisMaxAttempts,
		TaskTimeout: cfg.AITimeout * 2,
	}, logger.For("queue"))
	a.hub = realtime.NewHub(logger.For("realtime"))

	sendTime := followup.SendTime{Hour: cfg.SendHour, Minute: cfg.SendMinute, Location: cfg.Location}
	scheduler := app.NewFollowUpScheduler(followUpRepo, sendTime, logger.For("scheduler"))

	a.doctors = app.NewDoctorService(doctorRepo, cfg.DefaultCountryCode, logger.For("doctors"))
	a.registry = app.NewRegistryService(doctorRepo, patientRepo, followUpRepo, scheduler, cfg.DefaultCountryCode, now, logger.For("registry"))
	a.notifications = app.NewNotificationService(notificationRepo, doctorRepo, idb.NewNotifier(db, cfg.NotifyChannel), telegramClient, now, logger.For("notifications"))
	a.analyzer = app.NewAnalyzerService(app.AnalyzerDeps{
		FollowUps:     followUpRepo,
		Patients:      patientRepo,
		AI:            analyzer,
		Gateway:       gateway,
		Notifications: a.notifications,
		Events:        eventPublisher,
	}, cfg.AITimeout, now, logger.For("analyzer"))
	a.conversations = app.NewConversationService(app.ConversationDeps{
		Conversations: conversationRepo,
		FollowUps:     followUpRepo,
		Patients:      patientRepo,
		Resolver:      app.NewPhoneResolver(patientRepo, cfg.DefaultCountryCode, logger.For("phone_resolver")),
		Gateway:       gateway,
		Queue:         a.queue,
		Analyzer:      a.analyzer,
		Events:        eventPublisher,
	}, now, logger.For("conversation"))
	a.export = app.NewExportService(followUpRepo, store, cfg.ResearchExportPrefix, now, logger.For("export"))
	a.dispatcher = app.NewDispatcher(app.DispatcherDeps{
		FollowUps:     followUpRepo,
		Patients:      patientRepo,
		Conversations: conversationRepo,
		Gateway:       gateway,
		Events:        eventPublisher,
	}, app.DispatchOptions{
		Language:    cfg.WhatsAppTemplateLang,
		Pause:       dispatchPause,
		MaxAttempts: cfg.MaxSendAttempts,
	}, now, logger.For("dispatcher"))
	a.reminders = app.NewReminderService(followUpRepo, patientRepo, gateway, cfg.ReminderIdleThreshold, now, logger.For("reminders"))
	a.alerts = app.NewDoctorAlertService(followUpRepo, patientRepo, a.notifications, cfg.DoctorAlertThreshold, now, logger.For("doctor_alerts"))

	if a.bot != nil {
		telegram.RegisterBotCommands(ctx, a.bot, doctorRepo, logger.For("telegram"))
		telegram.RegisterAlertHandlers(ctx, a.bot, a.notifications, logger.For("telegram"))
	}
	return a, nil
}

func newBot(token string) (*telebot.Bot, error) {
	botLogger := logger.For("telebot")
	bot, err := telebot.NewBot(telebot.Settings{
		Token:  token,
		Poller: &telebot.LongPoller{Timeout: 10 * time.Second},
		OnError: func(err error, c telebot.Context) {
			entry := botLogger.WithError(err)
			if c != nil && c.Chat() != nil {
				entry = entry.WithField("chat_id", c.Chat().ID)
			}
			entry.Error("Telegram handler error")
		},
	})
	if err != nil {
		return nil, fmt.Errorf("could not create Telegram bot: %w", err)
	}
	return bot, nil
}

func (a *application) close() {
	log := logger.For("wire")
	if a.kafka != nil {
		if err := a.kafka.Close(); err != nil {
			log.WithError(err).Warn("Failed to close Kafka writer")
		}
	}
	if err := a.db.Close(); err != nil {
		log.WithError(err).Warn("Failed to close database")
	}
}
