package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // containers often ship without a zoneinfo database

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

// AppConfig holds all configuration for the application.
// It is built once by Load and must be treated as read-only afterwards.
type AppConfig struct {
	DatabaseURL string
	HTTPAddr    string
	LogLevel    string
	Environment string
	CronSecret  string

	WhatsAppAPIURL        string
	WhatsAppPhoneNumberID string
	WhatsAppAccessToken   string
	WhatsAppAppSecret     string
	WhatsAppVerifyToken   string
	WhatsAppTemplateLang  string

	OpenAIAPIKey  string // empty disables AI analysis
	OpenAIBaseURL string
	OpenAIModel   string
	AITimeout     time.Duration

	TelegramToken string // empty disables Telegram alerts

	Location           *time.Location
	SendHour           int
	SendMinute         int
	DefaultCountryCode string

	ReminderIdleThreshold time.Duration
	DoctorAlertThreshold  time.Duration
	MaxSendAttempts       int

	CronEnabled          bool
	CronSpecDispatch     string
	CronSpecReminder     string
	CronSpecDoctorAlert  string
	JobTimeout           time.Duration
	AnalysisWorkers      int
	AnalysisMaxAttempts  int
	AnalysisQueueSize    int
	NotifyChannel        string
	KafkaBrokers         []string // empty disables event publishing
	KafkaTopic           string
	S3Bucket             string // empty disables research export
	S3Endpoint           string
	ResearchExportPrefix string
}

// AIEnabled reports whether an AI key was configured.
func (c *AppConfig) AIEnabled() bool { return c.OpenAIAPIKey != "" }

// TelegramEnabled reports whether the doctor alert bot is configured.
func (c *AppConfig) TelegramEnabled() bool { return c.TelegramToken != "" }

// KafkaEnabled reports whether domain events are published.
func (c *AppConfig) KafkaEnabled() bool { return len(c.KafkaBrokers) > 0 }

// ExportEnabled reports whether research export has a destination bucket.
func (c *AppConfig) ExportEnabled() bool { return c.S3Bucket != "" }

// Load reads configuration from environment variables and .env file (if present)
// and validates it. Any missing or malformed value is an error.
func Load() (*AppConfig, error) {
	// godotenv.Load will not override existing env variables; a missing file is fine.
	_ = godotenv.Load()
	return FromEnv(os.Getenv)
}

// FromEnv builds the configuration from a lookup function.
func FromEnv(getenv func(string) string) (*AppConfig, error) {
	r := &reader{getenv: getenv}
	cfg := &AppConfig{}

	cfg.DatabaseURL = r.required("DATABASE_URL")
	cfg.HTTPAddr = r.str("HTTP_ADDR", ":8080")
	cfg.LogLevel = strings.ToLower(r.str("LOG_LEVEL", "info"))
	cfg.Environment = strings.ToLower(r.str("ENVIRONMENT", "development"))
	cfg.CronSecret = r.required("CRON_SECRET")

	cfg.WhatsAppAPIURL = strings.TrimRight(r.str("WHATSAPP_API_URL", "https://graph.facebook.com/v21.0"), "/")
	cfg.WhatsAppPhoneNumberID = r.required("WHATSAPP_PHONE_NUMBER_ID")
	cfg.WhatsAppAccessToken = r.required("WHATSAPP_ACCESS_TOKEN")
	cfg.WhatsAppAppSecret = r.required("WHATSAPP_APP_SECRET")
	cfg.WhatsAppVerifyToken = r.required("WHATSAPP_VERIFY_TOKEN")
	cfg.WhatsAppTemplateLang = r.str("WHATSAPP_TEMPLATE_LANGUAGE", "pt_BR")

	cfg.OpenAIAPIKey = r.str("OPENAI_API_KEY", "")
	cfg.OpenAIBaseURL = r.str("OPENAI_BASE_URL", "")
	cfg.OpenAIModel = r.str("OPENAI_MODEL", "gpt-4o-mini")
	cfg.AITimeout = r.duration("AI_TIMEOUT", 20*time.Second)

	cfg.TelegramToken = r.str("TELEGRAM_TOKEN", "")

	tz := r.str("TIMEZONE", "America/Sao_Paulo")
	loc, err := time.LoadLocation(tz)
	if err != nil {
		r.fail(fmt.Errorf("invalid TIMEZONE %q: %w", tz, err))
	}
	cfg.Location = loc
	cfg.SendHour, cfg.SendMinute = r.clock("FOLLOWUP_SEND_TIME", "09:00")
	cfg.DefaultCountryCode = r.str("DEFAULT_COUNTRY_CODE", "55")
	if strings.Trim(cfg.DefaultCountryCode, "0123456789") != "" {
		r.fail(fmt.Errorf("invalid DEFAULT_COUNTRY_CODE %q: must be digits", cfg.DefaultCountryCode))
	}

	cfg.ReminderIdleThreshold = r.duration("REMINDER_IDLE_THRESHOLD", 4*time.Hour)
	cfg.DoctorAlertThreshold = r.duration("DOCTOR_ALERT_THRESHOLD", 6*time.Hour)
	cfg.MaxSendAttempts = r.positiveInt("FOLLOWUP_MAX_SEND_ATTEMPTS", 3)

	cfg.CronEnabled = r.boolean("CRON_ENABLED", true)
	cfg.CronSpecDispatch = r.cronSpec("CRON_SPEC_DISPATCH", "*/15 * * * *")
	cfg.CronSpecReminder = r.cronSpec("CRON_SPEC_REMINDER", "0 * * * *")
	cfg.CronSpecDoctorAlert = r.cronSpec("CRON_SPEC_DOCTOR_ALERT", "30 * * * *")
	cfg.JobTimeout = r.duration("JOB_TIMEOUT", 5*time.Minute)

	cfg.AnalysisWorkers = r.positiveInt("ANALYSIS_WORKERS", 2)
	cfg.AnalysisMaxAttempts = r.positiveInt("ANALYSIS_MAX_ATTEMPTS", 3)
	cfg.AnalysisQueueSize = r.positiveInt("ANALYSIS_QUEUE_SIZE", 256)
	cfg.NotifyChannel = r.str("NOTIFY_CHANNEL", "doctor_notifications")

	if brokers := r.str("KAFKA_BROKERS", ""); brokers != "" {
		for _, b := range strings.Split(brokers, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.KafkaBrokers = append(cfg.KafkaBrokers, b)
			}
		}
	}
	cfg.KafkaTopic = r.str("KAFKA_TOPIC", "followup-events")

	cfg.S3Bucket = r.str("S3_BUCKET", "")
	cfg.S3Endpoint = r.str("S3_ENDPOINT", "")
	cfg.ResearchExportPrefix = strings.Trim(r.str("RESEARCH_EXPORT_PREFIX", "research"), "/")

	if r.err != nil {
		return nil, r.err
	}
	return cfg, nil
}

// reader keeps the first error so Load reports one problem at a time.
type reader struct {
	getenv func(string) string
	err    error
}

func (r *reader) fail(err error) {
	if r.err == nil {
		r.err = err
	}
}

func (r *reader) str(key, def string) string {
	if v := strings.TrimSpace(r.getenv(key)); v != "" {
		return v
	}
	return def
}

func (r *reader) required(key string) string {
	v := strings.TrimSpace(r.getenv(key))
	if v == "" {
		r.fail(fmt.Errorf("%s is not set", key))
	}
	return v
}

func (r *reader) duration(key string, def time.Duration) time.Duration {
	v := r.str(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		r.fail(fmt.Errorf("invalid %s %q: expected a positive duration like 4h", key, v))
		return def
	}
	return d
}

func (r *reader) positiveInt(key string, def int) int {
	v := r.str(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		r.fail(fmt.Errorf("invalid %s %q: expected a positive integer", key, v))
		return def
	}
	return n
}

func (r *reader) boolean(key string, def bool) bool {
	v := r.str(key, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		r.fail(fmt.Errorf("invalid %s %q: %w", key, v, err))
		return def
	}
	return b
}

func (r *reader) clock(key, def string) (int, int) {
	v := r.str(key, def)
	t, err := time.Parse("15:04", v)
	if err != nil {
		r.fail(fmt.Errorf("invalid %s %q: expected HH:MM", key, v))
		return 9, 0
	}
	return t.Hour(), t.Minute()
}

func (r *reader) cronSpec(key, def string) string {
	v := r.str(key, def)
	if _, err := cron.ParseStandard(v); err != nil {
		r.fail(fmt.Errorf("invalid %s %q: %w", key, v, err))
	}
	return v
}
