package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"postop_followup/internal/infra/httpapi"
	"postop_followup/internal/infra/logger"
)

func (a *application) jobs() httpapi.Jobs {
	return httpapi.Jobs{
		Dispatch: func(ctx context.Context) (any, error) {
			return a.dispatcher.Run(ctx)
		},
		Remind: func(ctx context.Context) (any, error) {
			return a.reminders.Run(ctx)
		},
		AlertDoctors: func(ctx context.Context) (any, error) {
			return a.alerts.Run(ctx)
		},
	}
}

func (a *application) jobsByName() map[string]httpapi.JobFunc {
	j := a.jobs()
	return map[string]httpapi.JobFunc{
		"dispatch":      j.Dispatch,
		"remind":        j.Remind,
		"alert-doctors": j.AlertDoctors,
	}
}

func runJobCmd() *cobra.Command {
	names := []string{"alert-doctors", "dispatch", "remind"}
	return &cobra.Command{
		Use:       "run-job <" + strings.Join(names, "|") + ">",
		Short:     "Run one periodic job once and print its summary",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: names,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.JobTimeout)
			defer cancel()

			a, err := build(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.close()

			run, ok := a.jobsByName()[args[0]]
			if !ok {
				return fmt.Errorf("unknown job %q, expected one of %s", args[0], strings.Join(names, ", "))
			}

			log := logger.For("run-job").WithField("job", args[0])
			res, err := run(ctx)
			if err != nil {
				log.WithError(err).Error("Job failed")
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		},
	}
}
