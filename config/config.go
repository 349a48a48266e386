// Package config provides Viper-based hierarchical configuration management.
package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Config represents the complete application configuration.
type Config struct {
	Log struct {
		Level  string `mapstructure:"level" yaml:"level"`
		Format string `mapstructure:"format" yaml:"format"`
	} `mapstructure:"log" yaml:"log"`

	Server struct {
		Addr string `mapstructure:"addr" yaml:"addr"`
	} `mapstructure:"server" yaml:"server"`

	Storage struct {
		// Driver selects the backend: memory, sqlite or postgres.
		Driver      string `mapstructure:"driver" yaml:"driver"`
		SQLitePath  string `mapstructure:"sqlite_path" yaml:"sqlite_path"`
		PostgresURL string `mapstructure:"postgres_url" yaml:"-"` // never serialize credentials
	} `mapstructure:"storage" yaml:"storage"`

	Market struct {
		// ExchangeRate is the constant BRL-per-USD rate used by the
		// aggregate metrics.
		ExchangeRate    float64 `mapstructure:"exchange_rate" yaml:"exchange_rate"`
		DefaultLoanRate float64 `mapstructure:"default_loan_rate" yaml:"default_loan_rate"`
	} `mapstructure:"market" yaml:"market"`
}

// ExchangeRate returns the configured BRL-per-USD rate as a decimal.
func (c *Config) ExchangeRate() decimal.Decimal {
	return decimal.NewFromFloat(c.Market.ExchangeRate)
}

// DefaultLoanRate returns the configured annual loan rate (percent).
func (c *Config) DefaultLoanRate() decimal.Decimal {
	return decimal.NewFromFloat(c.Market.DefaultLoanRate)
}

// Load initializes configuration: defaults, then an optional config
// file, then LEDGER_-prefixed environment variables. A .env file in the
// working directory is loaded first so local development does not need
// exported variables.
func Load() (*Config, error) {
	_ = godotenv.Load() // missing .env is fine

	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("$HOME/.bucket-engine")
	v.AddConfigPath(".")

	v.SetEnvPrefix("LEDGER")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file %s: %w", v.ConfigFileUsed(), err)
		}
		// No config file is fine, defaults and env vars apply.
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("server.addr", ":8080")

	v.SetDefault("storage.driver", "sqlite")
	v.SetDefault("storage.sqlite_path", "./data/ledger.db")
	v.SetDefault("storage.postgres_url", "")

	v.SetDefault("market.exchange_rate", 5.47)
	v.SetDefault("market.default_loan_rate", 1.32)
}

func validate(config *Config) error {
	if _, err := logrus.ParseLevel(config.Log.Level); err != nil {
		return fmt.Errorf("invalid log level: %s", config.Log.Level)
	}
	if config.Log.Format != "text" && config.Log.Format != "json" {
		return fmt.Errorf("invalid log format: %s (must be 'text' or 'json')", config.Log.Format)
	}

	switch config.Storage.Driver {
	case "memory":
	case "sqlite":
		if config.Storage.SQLitePath == "" {
			return fmt.Errorf("storage.sqlite_path required for the sqlite driver")
		}
	case "postgres":
		if config.Storage.PostgresURL == "" {
			return fmt.Errorf("storage.postgres_url required for the postgres driver")
		}
	default:
		return fmt.Errorf("invalid storage driver: %s (must be memory, sqlite or postgres)", config.Storage.Driver)
	}

	if config.Market.ExchangeRate <= 0 {
		return fmt.Errorf("market.exchange_rate must be positive, got: %f", config.Market.ExchangeRate)
	}
	return nil
}

// NewLogger builds a logrus logger per the Log section.
func NewLogger(config *Config) *logrus.Logger {
	logger := logrus.New()

	level, err := logrus.ParseLevel(strings.ToLower(config.Log.Level))
	if err != nil {
		logger.Warnf("Invalid log level '%s', using 'info'", config.Log.Level)
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if strings.ToLower(config.Log.Format) == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}
	return logger
}
