package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
)

const prefix = "STOREFRONT"

type Config struct {
	HTTPAddress           string        `envconfig:"HTTP_ADDRESS" default:":8080"`
	GRPCAddress           string        `envconfig:"GRPC_ADDRESS" default:":8081"`
	DatabaseDSN           string        `envconfig:"DATABASE_DSN" default:"storefront:storefront@tcp(localhost:3306)/storefront"`
	MigrateOnStart        bool          `envconfig:"MIGRATE_ON_START" default:"false"`
	PhoneRegion           string        `envconfig:"PHONE_REGION" default:"PT"`
	ChargePersonalization bool          `envconfig:"CHARGE_PERSONALIZATION" default:"false"`
	RequestTimeout        time.Duration `envconfig:"REQUEST_TIMEOUT" default:"15s"`
	NotifyTimeout         time.Duration `envconfig:"NOTIFY_TIMEOUT" default:"10s"`
	NotifyMaxAttempts     int           `envconfig:"NOTIFY_MAX_ATTEMPTS" default:"5"`
	SendGridAPIKey        string        `envconfig:"SENDGRID_API_KEY"`
	SendGridHost          string        `envconfig:"SENDGRID_HOST" default:"https://api.sendgrid.com"`
	MailFrom              string        `envconfig:"MAIL_FROM" default:"loja@clube.pt"`
	MailTo                string        `envconfig:"MAIL_TO" default:"encomendas@clube.pt"`
	KafkaBrokers          []string      `envconfig:"KAFKA_BROKERS"`
	KafkaTopic            string        `envconfig:"KAFKA_TOPIC" default:"storefront-events"`
	LogLevel              string        `envconfig:"LOG_LEVEL" default:"info"`
}

// Load reads STOREFRONT_* variables. Values from a .env file in the working directory
// never override variables already set in the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, errors.Wrap(err, "failed to read .env")
	}

	var cfg Config
	if err := envconfig.Process(prefix, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse configuration")
	}
	return &cfg, nil
}
