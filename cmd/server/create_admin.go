package main

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"rentalstation/internal/config"
	"rentalstation/internal/repository"
	"rentalstation/internal/service"
)

func newCreateAdminCommand(cfg *config.AppConfig) *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an administrator account",
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := openDB(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer conn.Close()

			authSvc := service.NewAuthService(repository.NewUserRepository(conn), cfg.JWTSecret, cfg.TokenTTL)
			if err := authSvc.CreateAdmin(cmd.Context(), email, password); err != nil {
				return err
			}
			logrus.Infof("Admin %s created", email)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "admin email")
	cmd.Flags().StringVar(&password, "password", "", "admin password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}
