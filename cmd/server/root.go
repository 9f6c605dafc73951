package main

import (
	"github.com/spf13/cobra"

	"rentalstation/internal/config"
	"rentalstation/internal/logger"
)

func newRootCommand() *cobra.Command {
	cfg := &config.AppConfig{}

	root := &cobra.Command{
		Use:           "rentalstation",
		Short:         "Rental station API, outbox relay and maintenance commands",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.Load()
			if err != nil {
				return err
			}
			logger.Init(loaded.Env, loaded.LogLevel)
			*cfg = *loaded
			return nil
		},
	}

	root.AddCommand(
		newServeCommand(cfg),
		newLambdaCommand(cfg),
		newRelayCommand(cfg),
		newMigrateCommand(cfg),
		newCreateAdminCommand(cfg),
	)
	return root
}
