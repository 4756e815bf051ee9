// Package config loads process configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/jacentio/accounts/store"
)

// Config is the process-wide configuration shared by every Lambda.
type Config struct {
	// TableName is the single DynamoDB table holding every entity.
	TableName string `env:"DYNAMODB_TABLE" envDefault:"accounts"`

	// Region is the AWS region of the table.
	Region string `env:"AWS_REGION" envDefault:"us-east-1"`

	// Endpoint overrides the DynamoDB endpoint, e.g. for DynamoDB Local.
	Endpoint string `env:"DYNAMODB_ENDPOINT"`

	// RequestTimeout bounds a single DynamoDB HTTP request. Expiry is
	// retried like any other transient error.
	RequestTimeout time.Duration `env:"DYNAMODB_REQUEST_TIMEOUT" envDefault:"5s"`

	// MaxAttempts is the SDK retryer's attempt budget for transient errors.
	MaxAttempts int `env:"DYNAMODB_MAX_ATTEMPTS" envDefault:"3"`

	// BatchRetries is how often unprocessed batch items are resubmitted.
	BatchRetries int `env:"DYNAMODB_BATCH_RETRIES" envDefault:"5"`

	// BcryptCost is the password hashing cost factor.
	BcryptCost int `env:"PASSWORD_BCRYPT_COST" envDefault:"10"`

	// StrictUniqueness guards email and organization name rows with
	// conditional transactional writes instead of plain batch writes.
	StrictUniqueness bool `env:"STRICT_UNIQUENESS" envDefault:"true"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

// Load reads an optional .env file from the working directory, then parses
// the environment. Variables already set win over the file.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return Parse()
}

// Parse reads Config from the environment only.
func Parse() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.MaxAttempts < 1 {
		return Config{}, fmt.Errorf("parse env: DYNAMODB_MAX_ATTEMPTS must be at least 1, got %d", cfg.MaxAttempts)
	}
	if cfg.RequestTimeout <= 0 {
		return Config{}, fmt.Errorf("parse env: DYNAMODB_REQUEST_TIMEOUT must be positive, got %s", cfg.RequestTimeout)
	}
	return cfg, nil
}

// Store returns the store configuration derived from c.
func (c Config) Store() store.Config {
	cfg := store.DefaultConfig()
	cfg.TableName = c.TableName
	cfg.BatchRetries = c.BatchRetries
	return cfg
}
