package main

import (
	"fmt"

	"github.com/spf13/cobra"

	idb "postop_followup/internal/infra/database"
	"postop_followup/internal/infra/logger"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			db, err := idb.NewPostgresConnection(cfg.DatabaseURL)
			if err != nil {
				return fmt.Errorf("could not connect to database: %w", err)
			}
			defer db.Close()

			if err := idb.Migrate(cmd.Context(), db); err != nil {
				return err
			}
			logger.For("migrate").Info("Schema is up to date")
			return nil
		},
	}
}
