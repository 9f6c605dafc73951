package main

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"rentalstation/internal/config"
)

func newRelayCommand(cfg *config.AppConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "relay",
		Short: "Publish pending outbox events once and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), cfg, false)
			if err != nil {
				return err
			}
			defer a.close()

			published, failed, err := a.jobs.RelayPendingEvents(cmd.Context())
			if err != nil {
				return err
			}
			logrus.WithFields(logrus.Fields{"published": published, "failed": failed}).Info("Outbox relay finished")
			return nil
		},
	}
}
