package config

import (
	"fmt"

	"vaxslot-notifier/internal/infra/adapter/persistence/dynamo"
	"vaxslot-notifier/internal/pkg/validate"
)

// Store drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverDynamoDB = "dynamodb"
)

// StoreConfig selects and configures the notification record store.
type StoreConfig struct {
	Driver      string `env:"STORE_DRIVER" envDefault:"sqlite" validate:"oneof=sqlite postgres dynamodb"`
	DatabaseURL string `env:"DATABASE_URL" validate:"required_if=Driver postgres"`
	SQLitePath  string `env:"SQLITE_PATH" envDefault:"data/notifications.db" validate:"required_if=Driver sqlite"`

	DynamoTable    string `env:"DYNAMO_TABLE" envDefault:"notification_records" validate:"required_if=Driver dynamodb"`
	AWSRegion      string `env:"AWS_REGION" envDefault:"ap-south-1"`
	AWSEndpointURL string `env:"AWS_ENDPOINT_URL"`
	AWSAccessKeyID string `env:"AWS_ACCESS_KEY_ID"`
	AWSSecretKey   string `env:"AWS_SECRET_ACCESS_KEY"`
}

// LoadStore parses and validates the store settings. A non-empty driver
// (the --store flag) replaces STORE_DRIVER.
func LoadStore(driver string) (StoreConfig, error) {
	var cfg StoreConfig
	if err := ParseEnv(&cfg); err != nil {
		return StoreConfig{}, err
	}
	if driver != "" {
		cfg.Driver = driver
	}
	if err := cfg.Validate(); err != nil {
		return StoreConfig{}, err
	}
	return cfg, nil
}

// Validate checks the driver and its required settings.
func (c StoreConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("store config: %w", err)
	}
	return nil
}

// Dynamo returns the DynamoDB client settings.
func (c StoreConfig) Dynamo() dynamo.ClientConfig {
	return dynamo.ClientConfig{
		Region:          c.AWSRegion,
		EndpointURL:     c.AWSEndpointURL,
		AccessKeyID:     c.AWSAccessKeyID,
		SecretAccessKey: c.AWSSecretKey,
	}
}
