package config

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "sqlite", cfg.Storage.Driver)
	assert.Equal(t, "./data/ledger.db", cfg.Storage.SQLitePath)
	assert.True(t, cfg.ExchangeRate().Equal(decimal.NewFromFloat(5.47)))
	assert.True(t, cfg.DefaultLoanRate().Equal(decimal.NewFromFloat(1.32)))
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("LEDGER_LOG_LEVEL", "debug")
	t.Setenv("LEDGER_STORAGE_DRIVER", "memory")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "memory", cfg.Storage.Driver)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg := &Config{}
		cfg.Log.Level = "info"
		cfg.Log.Format = "text"
		cfg.Storage.Driver = "memory"
		cfg.Market.ExchangeRate = 5.47
		return cfg
	}

	t.Run("valid", func(t *testing.T) {
		assert.NoError(t, validate(base()))
	})
	t.Run("bad log level", func(t *testing.T) {
		cfg := base()
		cfg.Log.Level = "verbose"
		assert.Error(t, validate(cfg))
	})
	t.Run("bad log format", func(t *testing.T) {
		cfg := base()
		cfg.Log.Format = "xml"
		assert.Error(t, validate(cfg))
	})
	t.Run("unknown driver", func(t *testing.T) {
		cfg := base()
		cfg.Storage.Driver = "etcd"
		assert.Error(t, validate(cfg))
	})
	t.Run("sqlite without path", func(t *testing.T) {
		cfg := base()
		cfg.Storage.Driver = "sqlite"
		assert.Error(t, validate(cfg))
	})
	t.Run("postgres without url", func(t *testing.T) {
		cfg := base()
		cfg.Storage.Driver = "postgres"
		assert.Error(t, validate(cfg))
	})
	t.Run("non-positive exchange rate", func(t *testing.T) {
		cfg := base()
		cfg.Market.ExchangeRate = 0
		assert.Error(t, validate(cfg))
	})
}

func TestNewLogger(t *testing.T) {
	cfg := &Config{}
	cfg.Log.Level = "warn"
	cfg.Log.Format = "json"

	logger := NewLogger(cfg)
	assert.Equal(t, logrus.WarnLevel, logger.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, logger.Formatter)
}
