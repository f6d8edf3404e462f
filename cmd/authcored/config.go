package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/internal/logging"
	"github.com/MrEthical07/authcore/notify"
	validation "github.com/go-ozzo/ozzo-validation"
	"gopkg.in/yaml.v3"
)

// ServiceConfig is the authcored configuration file. The auth section is the
// engine configuration; everything else wires the process around it.
type ServiceConfig struct {
	Auth    authcore.Config    `yaml:"auth"`
	Storage StorageConfig      `yaml:"storage"`
	Redis   RedisConfig        `yaml:"redis"`
	HTTP    HTTPConfig         `yaml:"http"`
	SMTP    notify.SMTPConfig  `yaml:"smtp"`
	NATS    NATSConfig         `yaml:"nats"`
	Sentry  SentryConfig       `yaml:"sentry"`
	Logging logging.Config     `yaml:"logging"`
	Metrics ServiceMetricsConf `yaml:"metrics"`
}

type StorageConfig struct {
	Driver          string        `yaml:"driver"`
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	AutoMigrate     bool          `yaml:"auto_migrate"`
}

// RedisConfig moves refresh and reset tokens to Redis when Addr is set.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

type HTTPConfig struct {
	Addr            string        `yaml:"addr"`
	TrustProxy      bool          `yaml:"trust_proxy"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// NATSConfig publishes audit events and, optionally, reset notifications.
type NATSConfig struct {
	URL           string `yaml:"url"`
	AuditSubject  string `yaml:"audit_subject"`
	NotifySubject string `yaml:"notify_subject"`
}

type SentryConfig struct {
	DSN     string `yaml:"dsn"`
	Release string `yaml:"release"`
}

type ServiceMetricsConf struct {
	Path string `yaml:"path"`
}

func defaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		Auth: authcore.DefaultConfig(),
		Storage: StorageConfig{
			Driver:          "sqlite",
			DSN:             "file:authcore.db?cache=shared",
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
			AutoMigrate:     true,
		},
		HTTP: HTTPConfig{
			Addr:            ":8080",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    15 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Logging: logging.Config{Level: "info"},
		Metrics: ServiceMetricsConf{Path: "/metrics"},
	}
}

// loadServiceConfig reads path (optional), then .env, then AUTHCORE_*
// overrides.
func loadServiceConfig(path string) (ServiceConfig, error) {
	if err := authcore.LoadDotEnv(); err != nil {
		return ServiceConfig{}, err
	}

	cfg := defaultServiceConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return ServiceConfig{}, fmt.Errorf("read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return ServiceConfig{}, fmt.Errorf("decode %s: %w", path, err)
		}
	}

	if err := applyServiceEnv(&cfg, os.LookupEnv); err != nil {
		return ServiceConfig{}, err
	}
	if cfg.Auth.Development() {
		cfg.Logging.Development = true
	}
	return cfg, nil
}

func applyServiceEnv(cfg *ServiceConfig, lookup func(string) (string, bool)) error {
	if err := authcore.ApplyEnv(&cfg.Auth, lookup); err != nil {
		return err
	}
	str := func(name string, dst *string) {
		if v, ok := lookup(authcore.EnvPrefix + name); ok {
			*dst = strings.TrimSpace(v)
		}
	}
	str("STORAGE_DRIVER", &cfg.Storage.Driver)
	str("STORAGE_DSN", &cfg.Storage.DSN)
	str("REDIS_ADDR", &cfg.Redis.Addr)
	str("REDIS_PASSWORD", &cfg.Redis.Password)
	str("HTTP_ADDR", &cfg.HTTP.Addr)
	str("SMTP_PASSWORD", &cfg.SMTP.Password)
	str("NATS_URL", &cfg.NATS.URL)
	str("SENTRY_DSN", &cfg.Sentry.DSN)
	str("LOG_LEVEL", &cfg.Logging.Level)
	return nil
}

// Validate checks the service sections. The auth section is validated by
// the engine builder.
func (c ServiceConfig) Validate() error {
	return validation.Errors{
		"storage": validation.ValidateStruct(&c.Storage,
			validation.Field(&c.Storage.Driver, validation.Required,
				validation.In("sqlite", "sqlite3", "postgres", "postgresql", "pgx")),
			validation.Field(&c.Storage.DSN, validation.Required),
		),
		"http": validation.ValidateStruct(&c.HTTP,
			validation.Field(&c.HTTP.Addr, validation.Required),
		),
		"logging": validation.ValidateStruct(&c.Logging,
			validation.Field(&c.Logging.Level, validation.In("debug", "info", "warn", "error")),
		),
	}.Filter()
}
