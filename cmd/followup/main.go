package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "followup",
		Short:         "Postoperative follow-up service",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(runJobCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
