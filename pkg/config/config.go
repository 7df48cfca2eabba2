// Package config loads service configuration with viper.
//
// Priority (highest to lowest):
//  1. Environment variables with the SPC_ prefix (SPC_DATABASE_URL, SPC_LOG_LEVEL, ...)
//  2. config.yaml in the working directory, ./config or /etc/spcledger
//  3. Built-in defaults
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Storage backends.
const (
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Config holds all service configuration.
type Config struct {
	App      AppConfig
	Log      LogConfig
	HTTP     HTTPConfig
	Database DatabaseConfig
	Ledger   LedgerConfig
	Outbox   OutboxConfig
	Verify   VerifyConfig
}

// AppConfig holds application-level settings.
type AppConfig struct {
	Name    string
	Env     string
	Backend string // postgres or memory
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level       string
	Development bool
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// DatabaseConfig holds PostgreSQL settings.
type DatabaseConfig struct {
	URL              string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	StatementTimeout time.Duration
	AutoMigrate      bool
}

// LedgerConfig holds sub-ledger behavior.
type LedgerConfig struct {
	// CorrectionThreshold is the minimum absolute correction reported, e.g. "0.01".
	CorrectionThreshold string
	// TurnoverOpening is the default opening mode of the turnover report: snapshot or replay.
	TurnoverOpening string
}

// OutboxConfig holds the outbox relay settings.
type OutboxConfig struct {
	PollInterval      time.Duration
	BatchSize         int
	MaxRetries        int
	CompressThreshold int
}

// VerifyConfig holds the background balance verification settings.
type VerifyConfig struct {
	Interval   time.Duration
	AutoRepair bool
	// Companies lists company ids to verify; empty verifies none.
	Companies []string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "spcledger")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.backend", BackendPostgres)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)

	v.SetDefault("http.port", "8080")
	v.SetDefault("http.read_timeout", 15*time.Second)
	v.SetDefault("http.write_timeout", 30*time.Second)
	v.SetDefault("http.idle_timeout", 60*time.Second)
	v.SetDefault("http.shutdown_timeout", 30*time.Second)

	v.SetDefault("database.max_conns", 25)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.max_conn_lifetime", time.Hour)
	v.SetDefault("database.statement_timeout", 30*time.Second)
	v.SetDefault("database.auto_migrate", false)

	v.SetDefault("ledger.correction_threshold", "0.01")
	v.SetDefault("ledger.turnover_opening", "snapshot")

	v.SetDefault("outbox.poll_interval", 5*time.Second)
	v.SetDefault("outbox.batch_size", 100)
	v.SetDefault("outbox.max_retries", 5)
	v.SetDefault("outbox.compress_threshold", 10*1024)

	v.SetDefault("verify.interval", time.Hour)
	v.SetDefault("verify.auto_repair", false)
	v.SetDefault("verify.companies", []string{})
}

// Load reads configuration from config.yaml (optional) and the environment.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/spcledger")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	v.SetEnvPrefix("SPC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name:    v.GetString("app.name"),
			Env:     v.GetString("app.env"),
			Backend: strings.ToLower(v.GetString("app.backend")),
		},
		Log: LogConfig{
			Level:       v.GetString("log.level"),
			Development: v.GetBool("log.development"),
		},
		HTTP: HTTPConfig{
			Port:            v.GetString("http.port"),
			ReadTimeout:     v.GetDuration("http.read_timeout"),
			WriteTimeout:    v.GetDuration("http.write_timeout"),
			IdleTimeout:     v.GetDuration("http.idle_timeout"),
			ShutdownTimeout: v.GetDuration("http.shutdown_timeout"),
		},
		Database: DatabaseConfig{
			URL:              v.GetString("database.url"),
			MaxConns:         v.GetInt32("database.max_conns"),
			MinConns:         v.GetInt32("database.min_conns"),
			MaxConnLifetime:  v.GetDuration("database.max_conn_lifetime"),
			StatementTimeout: v.GetDuration("database.statement_timeout"),
			AutoMigrate:      v.GetBool("database.auto_migrate"),
		},
		Ledger: LedgerConfig{
			CorrectionThreshold: v.GetString("ledger.correction_threshold"),
			TurnoverOpening:     v.GetString("ledger.turnover_opening"),
		},
		Outbox: OutboxConfig{
			PollInterval:      v.GetDuration("outbox.poll_interval"),
			BatchSize:         v.GetInt("outbox.batch_size"),
			MaxRetries:        v.GetInt("outbox.max_retries"),
			CompressThreshold: v.GetInt("outbox.compress_threshold"),
		},
		Verify: VerifyConfig{
			Interval:   v.GetDuration("verify.interval"),
			AutoRepair: v.GetBool("verify.auto_repair"),
			Companies:  v.GetStringSlice("verify.companies"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks settings that would otherwise fail at first use.
func (c *Config) Validate() error {
	switch c.App.Backend {
	case BackendPostgres:
		if c.Database.URL == "" {
			return errors.New("database.url (SPC_DATABASE_URL) is required for the postgres backend")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("unknown app.backend %q: expected postgres or memory", c.App.Backend)
	}
	switch c.Ledger.TurnoverOpening {
	case "snapshot", "replay":
	default:
		return fmt.Errorf("unknown ledger.turnover_opening %q: expected snapshot or replay", c.Ledger.TurnoverOpening)
	}
	return nil
}

// IsDevelopment reports whether the service runs in a development environment.
func (c *Config) IsDevelopment() bool {
	return c.App.Env == "development"
}
