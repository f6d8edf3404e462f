package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/audit"
	"github.com/MrEthical07/authcore/internal/logging"
	"github.com/MrEthical07/authcore/notify"
	"github.com/MrEthical07/authcore/store/sqlstore"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// app holds the process-wide resources one command needs.
type app struct {
	cfg    ServiceConfig
	logger *zap.Logger
	db     *bun.DB
	redis  *redis.Client
	nats   *nats.Conn

	closers []func()
}

func newApp(ctx context.Context, configPath string) (*app, error) {
	cfg, err := loadServiceConfig(configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("service config: %w", err)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	a := &app{cfg: cfg, logger: logger}
	a.closers = append(a.closers, func() { _ = logger.Sync() })

	if err := logging.InitSentry(cfg.Sentry.DSN, cfg.Auth.Environment, cfg.Sentry.Release); err != nil {
		logger.Warn("sentry disabled", zap.Error(err))
	} else if cfg.Sentry.DSN != "" {
		a.closers = append(a.closers, logging.FlushSentry)
	}

	db, err := sqlstore.Open(ctx, cfg.Storage.Driver, cfg.Storage.DSN, sqlstore.PoolOptions{
		MaxOpenConns:    cfg.Storage.MaxOpenConns,
		MaxIdleConns:    cfg.Storage.MaxIdleConns,
		ConnMaxLifetime: cfg.Storage.ConnMaxLifetime,
	})
	if err != nil {
		a.close()
		return nil, err
	}
	a.db = db
	a.closers = append(a.closers, func() { _ = db.Close() })

	if cfg.Redis.Addr != "" {
		a.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := a.redis.Ping(ctx).Err(); err != nil {
			a.close()
			return nil, fmt.Errorf("redis ping: %w", err)
		}
		a.closers = append(a.closers, func() { _ = a.redis.Close() })
	}

	if cfg.NATS.URL != "" {
		nc, err := nats.Connect(cfg.NATS.URL, nats.Name("authcored"))
		if err != nil {
			a.close()
			return nil, fmt.Errorf("nats connect: %w", err)
		}
		a.nats = nc
		a.closers = append(a.closers, nc.Close)
	}

	logger.Info("authcored initialised",
		zap.String("storage", cfg.Storage.Driver),
		zap.Bool("redis", a.redis != nil),
		zap.Bool("nats", a.nats != nil),
		zap.String("environment", cfg.Auth.Environment),
	)
	return a, nil
}

// close releases resources in reverse acquisition order.
func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func (a *app) migrate(ctx context.Context) error {
	if err := sqlstore.Migrate(ctx, a.db); err != nil {
		return err
	}
	a.logger.Info("schema migrated")
	return nil
}

func (a *app) notifier() (notify.Notifier, error) {
	switch {
	case a.cfg.SMTP.Host != "":
		return notify.NewSMTP(a.cfg.SMTP)
	case a.nats != nil && a.cfg.NATS.NotifySubject != "":
		return notify.NewNATS(a.nats, a.cfg.NATS.NotifySubject), nil
	default:
		if !a.cfg.Auth.Development() {
			a.logger.Warn("no notifier configured, reset messages are only logged")
		}
		return notify.NewLog(a.logger, a.cfg.Auth.Development()), nil
	}
}

func (a *app) auditSink() audit.Sink {
	sinks := audit.MultiSink{sqlstore.NewAuditLog(a.db), audit.NewLoggerSink(a.logger)}
	if a.nats != nil {
		sinks = append(sinks, audit.NewNATSSink(a.nats, a.cfg.NATS.AuditSubject))
	}
	return sinks
}

func (a *app) engine(ctx context.Context) (*authcore.Engine, error) {
	if a.cfg.Storage.AutoMigrate {
		if err := a.migrate(ctx); err != nil {
			return nil, err
		}
	}

	n, err := a.notifier()
	if err != nil {
		return nil, err
	}

	b := authcore.New().
		WithConfig(a.cfg.Auth).
		WithLogger(a.logger).
		WithAccountStore(sqlstore.NewAccounts(a.db)).
		WithNotifier(n).
		WithAuditSink(a.auditSink()).
		WithSentryHub(logging.CurrentHub())
	if a.redis != nil {
		b = b.WithRedis(a.redis, a.cfg.Redis.Prefix)
	} else {
		b = b.WithRefreshRepository(sqlstore.NewRefreshTokens(a.db)).
			WithResetRepository(sqlstore.NewResetTokens(a.db))
	}

	e, err := b.Build()
	if err != nil {
		if errors.Is(err, authcore.ErrConfiguration) {
			return nil, fmt.Errorf("auth config: %w", err)
		}
		return nil, err
	}
	return e, nil
}
