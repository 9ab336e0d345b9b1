package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	idb "postop_followup/internal/infra/database"
	"postop_followup/internal/infra/httpapi"
	"postop_followup/internal/infra/logger"
	"postop_followup/internal/infra/scheduler"
)

const shutdownTimeout = 30 * time.Second

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, webhook, scheduler and doctor bot",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			log := logger.For("main")
			log.WithFields(logrus.Fields{
				"environment": cfg.Environment,
				"ai":          cfg.AIEnabled(),
				"telegram":    cfg.TelegramEnabled(),
				"kafka":       cfg.KafkaEnabled(),
				"export":      cfg.ExportEnabled(),
			}).Info("Configuration loaded")

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := build(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.close()

			if err := idb.Migrate(ctx, a.db); err != nil {
				return err
			}

			// Queued analyses outlive the signal; Stop bounds how long they get.
			a.queue.Start(context.Background())

			listener := idb.NewListener(cfg.DatabaseURL, cfg.NotifyChannel, logger.For("listener"))
			go func() {
				if err := listener.Run(ctx, a.hub.Deliver); err != nil && !errors.Is(err, context.Canceled) {
					log.WithError(err).Error("Notification listener stopped")
				}
			}()

			var jobs *scheduler.JobScheduler
			if cfg.CronEnabled {
				jobs = scheduler.New(cfg.Location, cfg.JobTimeout, logger.For("scheduler"),
					scheduler.FollowUpJobs(cfg, a.dispatcher, a.reminders, a.alerts)...)
				if err := jobs.Start(); err != nil {
					return err
				}
			} else {
				log.Info("In-process scheduler disabled, relying on /api/cron triggers")
			}

			if a.bot != nil {
				go a.bot.Start()
				log.Info("Telegram bot started")
			}

			e := httpapi.NewServer(httpapi.Config{
				CronSecret:  cfg.CronSecret,
				AppSecret:   cfg.WhatsAppAppSecret,
				VerifyToken: cfg.WhatsAppVerifyToken,
				Location:    cfg.Location,
			}, httpapi.Services{
				Doctors:       a.doctors,
				Registry:      a.registry,
				Analyzer:      a.analyzer,
				Notifications: a.notifications,
				Export:        a.export,
				Inbound:       a.conversations,
				Jobs:          a.jobs(),
				Stream:        a.hub,
			}, logger.For("http"))

			serveErr := make(chan error, 1)
			go func() {
				log.WithField("addr", cfg.HTTPAddr).Info("HTTP server listening")
				if err := e.Start(cfg.HTTPAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serveErr <- err
				}
				close(serveErr)
			}()

			select {
			case <-ctx.Done():
				log.Info("Shutting down application...")
			case err := <-serveErr:
				if err != nil {
					log.WithError(err).Error("HTTP server failed")
				}
				stop()
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()

			if err := e.Shutdown(shutdownCtx); err != nil {
				log.WithError(err).Warn("HTTP server shutdown")
			}
			if jobs != nil {
				jobs.Stop()
			}
			if a.bot != nil {
				a.bot.Stop()
			}
			if err := a.queue.Stop(shutdownCtx); err != nil {
				log.WithError(err).Warn("Task queue did not drain")
			}
			log.Info("Application shut down gracefully")
			return nil
		},
	}
}
