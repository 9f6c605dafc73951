package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

const (
	BrokerSQS   = "sqs"
	BrokerKafka = "kafka"
)

type AppConfig struct {
	Env      string
	Port     string `validate:"required,numeric"`
	LogLevel string

	Database Database

	JWTSecret string        `validate:"required"`
	TokenTTL  time.Duration `validate:"gt=0"`

	StripeSecretKey string `validate:"required"`

	Dynamo Dynamo

	Events Events

	StationImageBucket string

	SendGrid SendGrid
	Twilio   Twilio

	RelaySchedule string        `validate:"required"`
	RelayMinAge   time.Duration `validate:"gte=0"`

	AllowedOrigins []string
}

type Database struct {
	URL     string
	IAMAuth bool
	Host    string
	Port    string
	User    string
	Name    string
	Region  string
}

type Dynamo struct {
	ItemsTable    string `validate:"required"`
	PaymentsTable string `validate:"required"`
	OutboxTable   string `validate:"required"`
	TxMaxAttempts int    `validate:"gte=1,lte=10"`
}

type Events struct {
	Broker       string `validate:"oneof=sqs kafka"`
	Sender       string `validate:"required"`
	SQSQueueURL  string
	SQSQueueName string
	KafkaBrokers []string
	KafkaTopic   string
	RetryCount   int           `validate:"gte=1"`
	RetryDelay   time.Duration `validate:"gte=0"`
}

type SendGrid struct {
	APIKey    string
	FromEmail string
	FromName  string
}

type Twilio struct {
	AccountSID string
	AuthToken  string
	FromNumber string
}

// IsLocal reports whether the process runs on a developer machine rather than in AWS.
func (c *AppConfig) IsLocal() bool {
	return strings.EqualFold(c.Env, "LOCAL")
}

// Load reads an optional .env file and then the process environment.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		logrus.Debug("no .env file loaded")
	}

	cfg := &AppConfig{
		Env:      getenv("ENV", "LOCAL"),
		Port:     getenv("PORT", "8080"),
		LogLevel: getenv("LOG_LEVEL", "info"),
		Database: Database{
			URL:     os.Getenv("DATABASE_URL"),
			IAMAuth: getBool("DB_IAM_AUTH", false),
			Host:    os.Getenv("DB_HOST"),
			Port:    getenv("DB_PORT", "5432"),
			User:    getenv("DB_USER", "postgres"),
			Name:    os.Getenv("DB_NAME"),
			Region:  os.Getenv("AWS_REGION"),
		},
		JWTSecret:       os.Getenv("JWT_SECRET"),
		TokenTTL:        getDuration("TOKEN_TTL", time.Hour),
		StripeSecretKey: os.Getenv("STRIPE_SECRET_KEY"),
		Dynamo: Dynamo{
			ItemsTable:    os.Getenv("DYNAMODB_ITEMS_TABLE"),
			PaymentsTable: os.Getenv("DYNAMODB_PAYMENTS_TABLE"),
			OutboxTable:   os.Getenv("DYNAMODB_OUTBOX_TABLE"),
			TxMaxAttempts: getInt("TX_MAX_ATTEMPTS", 5),
		},
		Events: Events{
			Broker:       getenv("EVENT_BROKER", BrokerSQS),
			Sender:       getenv("EVENT_SENDER", "rental-station"),
			SQSQueueURL:  os.Getenv("SQS_QUEUE_URL"),
			SQSQueueName: os.Getenv("SQS_QUEUE_NAME"),
			KafkaBrokers: getList("KAFKA_BROKERS"),
			KafkaTopic:   os.Getenv("KAFKA_TOPIC"),
			RetryCount:   getInt("PUBLISH_RETRY_COUNT", 3),
			RetryDelay:   getDuration("PUBLISH_RETRY_DELAY", time.Second),
		},
		StationImageBucket: os.Getenv("STATION_IMAGE_BUCKET"),
		SendGrid: SendGrid{
			APIKey:    os.Getenv("SENDGRID_API_KEY"),
			FromEmail: os.Getenv("SENDGRID_FROM_EMAIL"),
			FromName:  getenv("SENDGRID_FROM_NAME", "Rental Station"),
		},
		Twilio: Twilio{
			AccountSID: os.Getenv("TWILIO_ACCOUNT_SID"),
			AuthToken:  os.Getenv("TWILIO_AUTH_TOKEN"),
			FromNumber: os.Getenv("TWILIO_FROM_NUMBER"),
		},
		RelaySchedule:  getenv("RELAY_SCHEDULE", "@every 1m"),
		RelayMinAge:    getDuration("RELAY_MIN_AGE", time.Minute),
		AllowedOrigins: getList("ALLOWED_ORIGINS"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *AppConfig) validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	var missing []string
	if c.Database.IAMAuth {
		if c.Database.Host == "" {
			missing = append(missing, "DB_HOST")
		}
		if c.Database.Name == "" {
			missing = append(missing, "DB_NAME")
		}
	} else if c.Database.URL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	switch c.Events.Broker {
	case BrokerSQS:
		if c.Events.SQSQueueURL == "" && c.Events.SQSQueueName == "" {
			missing = append(missing, "SQS_QUEUE_URL or SQS_QUEUE_NAME")
		}
	case BrokerKafka:
		if len(c.Events.KafkaBrokers) == 0 {
			missing = append(missing, "KAFKA_BROKERS")
		}
		if c.Events.KafkaTopic == "" {
			missing = append(missing, "KAFKA_TOPIC")
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("required env missing: %s", strings.Join(missing, ", "))
	}
	return nil
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getInt(k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		logrus.Warnf("invalid integer for %s=%q, using %d", k, v, def)
		return def
	}
	return n
}

func getBool(k string, def bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		logrus.Warnf("invalid boolean for %s=%q, using %t", k, v, def)
		return def
	}
	return b
}

func getDuration(k string, def time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		logrus.Warnf("invalid duration for %s=%q, using %s", k, v, def)
		return def
	}
	return d
}

func getList(k string) []string {
	v := os.Getenv(k)
	if v == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
