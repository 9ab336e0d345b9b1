package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"postop_followup/internal/app"
	"postop_followup/internal/infra/config"
	"postop_followup/internal/infra/metrics"
)

// Job is one periodic task. Run gets a context bounded by the scheduler's job timeout.
type Job struct {
	Name string
	Spec string
	Run  func(ctx context.Context) error
}

// JobScheduler runs the follow-up jobs in-process. It complements the HTTP cron
// routes; both call the same services.
type JobScheduler struct {
	cronEngine *cron.Cron
	jobs       []Job
	timeout    time.Duration
	logger     *logrus.Entry
}

func New(loc *time.Location, timeout time.Duration, logger *logrus.Entry, jobs ...Job) *JobScheduler {
	return &JobScheduler{
		cronEngine: cron.New(
			cron.WithLocation(loc),
			cron.WithChain(cron.Recover(cron.PrintfLogger(logger)), cron.SkipIfStillRunning(cron.PrintfLogger(logger))),
		),
		jobs:    jobs,
		timeout: timeout,
		logger:  logger,
	}
}

// FollowUpJobs builds the dispatch, reminder and doctor alert jobs from cfg.
func FollowUpJobs(cfg *config.AppConfig, dispatcher *app.Dispatcher, reminders *app.ReminderService, alerts *app.DoctorAlertService) []Job {
	return []Job{
		{Name: "dispatch", Spec: cfg.CronSpecDispatch, Run: func(ctx context.Context) error {
			_, err := dispatcher.Run(ctx)
			return err
		}},
		{Name: "remind", Spec: cfg.CronSpecReminder, Run: func(ctx context.Context) error {
			_, err := reminders.Run(ctx)
			return err
		}},
		{Name: "alert-doctors", Spec: cfg.CronSpecDoctorAlert, Run: func(ctx context.Context) error {
			_, err := alerts.Run(ctx)
			return err
		}},
	}
}

func (s *JobScheduler) Start() error {
	s.logger.Info("Starting job scheduler...")
	for _, job := range s.jobs {
		if _, err := s.cronEngine.AddFunc(job.Spec, s.wrap(job)); err != nil {
			return fmt.Errorf("could not add %s cron job: %w", job.Name, err)
		}
		s.logger.WithFields(logrus.Fields{"job": job.Name, "spec": job.Spec}).Info("Cron job registered")
	}
	s.cronEngine.Start()
	s.logger.Info("Job scheduler started")
	return nil
}

func (s *JobScheduler) wrap(job Job) func() {
	return func() {
		log := s.logger.WithField("job", job.Name)
		log.Debug("Cron job triggered")

		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()

		start := time.Now()
		if err := job.Run(ctx); err != nil {
			metrics.BackgroundTasks.WithLabelValues(job.Name, "failed").Inc()
			log.WithError(err).Error("Cron job failed")
			return
		}
		metrics.BackgroundTasks.WithLabelValues(job.Name, "ok").Inc()
		log.WithField("duration", time.Since(start).String()).Info("Cron job finished")
	}
}

// Stop stops scheduling and waits for running jobs.
func (s *JobScheduler) Stop() {
	s.logger.Info("Stopping job scheduler...")
	<-s.cronEngine.Stop().Done()
	s.logger.Info("Job scheduler gracefully stopped")
}
