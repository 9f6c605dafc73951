package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/rds/auth"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v82"

	"rentalstation/internal/api"
	"rentalstation/internal/config"
	"rentalstation/internal/events"
	"rentalstation/internal/metrics"
	"rentalstation/internal/repository"
	"rentalstation/internal/service"
)

// app holds everything a command needs; close releases what openApp acquired.
type app struct {
	cfg *config.AppConfig
	db  *sql.DB

	publisher *events.Publisher
	jobs      *service.JobService
	auth      service.AuthService
	router    http.Handler
}

func openDB(ctx context.Context, cfg *config.AppConfig) (*sql.DB, error) {
	dsn := cfg.Database.URL
	if cfg.Database.IAMAuth {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config: %w", err)
		}
		region := cfg.Database.Region
		if region == "" {
			region = awsCfg.Region
		}
		endpoint := cfg.Database.Host + ":" + cfg.Database.Port
		token, err := auth.BuildAuthToken(ctx, endpoint, region, cfg.Database.User, awsCfg.Credentials)
		if err != nil {
			return nil, fmt.Errorf("failed to build auth token: %w", err)
		}
		dsn = fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=require",
			cfg.Database.Host, cfg.Database.Port, cfg.Database.User, token, cfg.Database.Name)
	}

	conn, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open DB: %w", err)
	}
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to connect to DB: %w", err)
	}
	return conn, nil
}

func openApp(ctx context.Context, cfg *config.AppConfig, exposeMetrics bool) (*app, error) {
	metrics.Register()

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	conn, err := openDB(ctx, cfg)
	if err != nil {
		return nil, err
	}

	transport, err := newTransport(ctx, cfg, awsCfg)
	if err != nil {
		conn.Close()
		return nil, err
	}
	publisher := events.NewPublisher(transport)

	stripe.Key = cfg.StripeSecretKey

	store := repository.NewDynamoRentalStore(dynamodb.NewFromConfig(awsCfg), repository.DynamoTables{
		Items:    cfg.Dynamo.ItemsTable,
		Payments: cfg.Dynamo.PaymentsTable,
		Outbox:   cfg.Dynamo.OutboxTable,
	}, cfg.Dynamo.TxMaxAttempts)
	users := repository.NewUserRepository(conn)
	stations := repository.NewStationRepository(conn)

	var images service.ImageSigner
	if cfg.StationImageBucket != "" {
		images = service.NewS3ImageSigner(s3.NewFromConfig(awsCfg), cfg.StationImageBucket)
	}

	policy := events.RetryPolicy{Attempts: cfg.Events.RetryCount, Delay: cfg.Events.RetryDelay}

	authSvc := service.NewAuthService(users, cfg.JWTSecret, cfg.TokenTTL)
	rentalSvc := service.NewRentalPaymentService(
		store,
		service.NewStripeService(),
		publisher,
		service.NewNotifyService(users, cfg.SendGrid, cfg.Twilio),
		service.RentalPaymentConfig{Sender: cfg.Events.Sender, RetryPolicy: policy},
	)
	stationSvc := service.NewStationService(stations, store, images)
	adminSvc := service.NewAdminService(stations, store)

	router := api.NewRouter(api.Handlers{
		Rentals:  api.NewRentalPaymentHandler(rentalSvc),
		Stations: api.NewStationHandler(stationSvc),
		Auth:     api.NewAuthHandler(authSvc),
		Admin:    api.NewAdminHandler(adminSvc),
	}, authSvc, api.RouterOptions{
		AllowedOrigins: cfg.AllowedOrigins,
		ExposeMetrics:  exposeMetrics,
	})

	return &app{
		cfg:       cfg,
		db:        conn,
		publisher: publisher,
		jobs:      service.NewJobService(store, publisher, policy, cfg.RelayMinAge),
		auth:      authSvc,
		router:    router,
	}, nil
}

func newTransport(ctx context.Context, cfg *config.AppConfig, awsCfg aws.Config) (events.Transport, error) {
	switch cfg.Events.Broker {
	case config.BrokerKafka:
		return events.NewKafkaTransport(cfg.Events.KafkaBrokers, cfg.Events.KafkaTopic)
	default:
		return events.NewSQSTransport(ctx, sqs.NewFromConfig(awsCfg), cfg.Events.SQSQueueURL, cfg.Events.SQSQueueName)
	}
}

func (a *app) close() {
	if err := a.publisher.Close(); err != nil {
		logrus.WithError(err).Warn("Failed to close event publisher")
	}
	if err := a.db.Close(); err != nil {
		logrus.WithError(err).Warn("Failed to close DB")
	}
}
