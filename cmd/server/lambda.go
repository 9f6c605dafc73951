package main

import (
	"fmt"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/spf13/cobra"

	"rentalstation/internal/config"
	"rentalstation/internal/serverless"
)

func newLambdaCommand(cfg *config.AppConfig) *cobra.Command {
	var handler string

	cmd := &cobra.Command{
		Use:   "lambda",
		Short: "Run as an AWS Lambda function (API Gateway HTTP API or scheduled relay)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if handler != "http" && handler != "relay" {
				return fmt.Errorf("unknown lambda handler %q, want http or relay", handler)
			}

			a, err := openApp(cmd.Context(), cfg, false)
			if err != nil {
				return err
			}
			defer a.close()

			if handler == "relay" {
				lambda.Start(serverless.RelayHandler(a.jobs))
				return nil
			}
			lambda.Start(serverless.NewHTTPAdapter(a.router).Handle)
			return nil
		},
	}

	cmd.Flags().StringVar(&handler, "handler", "http", "which handler to start: http or relay")
	return cmd
}
