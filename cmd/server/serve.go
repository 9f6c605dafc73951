package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"rentalstation/internal/config"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand(cfg *config.AppConfig) *cobra.Command {
	var withRelay, withMetrics bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API with the outbox relay on a cron schedule",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := openApp(ctx, cfg, withMetrics)
			if err != nil {
				return err
			}
			defer a.close()

			if withRelay {
				c := cron.New()
				_, err := c.AddFunc(cfg.RelaySchedule, func() {
					runCtx, cancel := context.WithTimeout(ctx, time.Minute)
					defer cancel()
					if _, _, err := a.jobs.RelayPendingEvents(runCtx); err != nil {
						logrus.WithError(err).Error("Outbox relay run failed")
					}
				})
				if err != nil {
					return err
				}
				c.Start()
				defer func() { <-c.Stop().Done() }()
				logrus.Infof("Outbox relay scheduled: %s", cfg.RelaySchedule)
			}

			srv := &http.Server{
				Addr:              ":" + cfg.Port,
				Handler:           a.router,
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				logrus.Infof("Server started at :%s", cfg.Port)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			logrus.Info("Shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}

	cmd.Flags().BoolVar(&withRelay, "relay", true, "run the outbox relay in-process")
	cmd.Flags().BoolVar(&withMetrics, "metrics", true, "expose Prometheus metrics at /metrics")
	return cmd
}
