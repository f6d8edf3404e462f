package authcore

import (
	"errors"
	"fmt"

	"github.com/MrEthical07/authcore/account"
	"github.com/MrEthical07/authcore/audit"
	internalaudit "github.com/MrEthical07/authcore/internal/audit"
	"github.com/MrEthical07/authcore/internal/limiters"
	"github.com/MrEthical07/authcore/internal/logging"
	"github.com/MrEthical07/authcore/internal/rate"
	"github.com/MrEthical07/authcore/internal/stores"
	"github.com/MrEthical07/authcore/jwt"
	"github.com/MrEthical07/authcore/notify"
	"github.com/MrEthical07/authcore/password"
	"github.com/MrEthical07/authcore/refresh"
	"github.com/MrEthical07/authcore/reset"
	"github.com/MrEthical07/authcore/session"
	"github.com/getsentry/sentry-go"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Builder assembles an Engine. A Builder is single use.
type Builder struct {
	config Config

	accounts    account.Store
	redis       redis.UniversalClient
	redisPrefix string
	refreshRepo refresh.Repository
	resetRepo   reset.Repository
	notifier    notify.Notifier
	auditSink   audit.Sink
	logger      *zap.Logger
	hub         *sentry.Hub
	clock       clockwork.Clock
	limiter     *rate.Limiter

	built bool
}

// New returns a Builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{config: DefaultConfig()}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithAccountStore sets the account store. Required.
func (b *Builder) WithAccountStore(s account.Store) *Builder {
	b.accounts = s
	return b
}

// WithRedis backs the refresh and reset repositories with Redis unless
// explicit repositories are set. prefix namespaces every key; empty keeps the
// store defaults.
func (b *Builder) WithRedis(client redis.UniversalClient, prefix string) *Builder {
	b.redis = client
	b.redisPrefix = prefix
	return b
}

func (b *Builder) WithRefreshRepository(r refresh.Repository) *Builder {
	b.refreshRepo = r
	return b
}

func (b *Builder) WithResetRepository(r reset.Repository) *Builder {
	b.resetRepo = r
	return b
}

// WithNotifier sets the reset-token notifier. Defaults to a log notifier.
func (b *Builder) WithNotifier(n notify.Notifier) *Builder {
	b.notifier = n
	return b
}

// WithAuditSink sets the audit sink. Defaults to a zap logger sink.
func (b *Builder) WithAuditSink(s audit.Sink) *Builder {
	b.auditSink = s
	return b
}

func (b *Builder) WithLogger(l *zap.Logger) *Builder {
	b.logger = l
	return b
}

// WithSentryHub reports audit, notifier and sweep failures to hub.
func (b *Builder) WithSentryHub(hub *sentry.Hub) *Builder {
	b.hub = hub
	return b
}

// WithClock replaces the wall clock, mainly for tests.
func (b *Builder) WithClock(c clockwork.Clock) *Builder {
	b.clock = c
	return b
}

// WithRateLimiter injects a limiter shared with other engines.
func (b *Builder) WithRateLimiter(l *rate.Limiter) *Builder {
	b.limiter = l
	return b
}

// Build validates the configuration and wires the engine. Configuration and
// wiring problems wrap ErrConfiguration.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, fmt.Errorf("%w: builder already used", ErrConfiguration)
	}

	cfg := b.config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.accounts == nil {
		return nil, fmt.Errorf("%w: account store is required", ErrConfiguration)
	}

	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("authcore")
	clock := b.clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	refreshRepo, resetRepo, err := b.repositories()
	if err != nil {
		return nil, err
	}

	codecCfg := cfg.codecConfig()
	codecCfg.Clock = clock
	codec, err := jwt.NewCodec(codecCfg)
	if err != nil {
		return nil, fmt.Errorf("%w: jwt: %v", ErrConfiguration, err)
	}

	hasher, err := password.New(cfg.hasherOptions())
	if err != nil {
		return nil, fmt.Errorf("%w: password hasher: %v", ErrConfiguration, err)
	}
	dummy, err := hasher.Hash("authcore-timing-equalizer")
	if err != nil {
		return nil, fmt.Errorf("%w: password hasher: %v", ErrConfiguration, err)
	}

	limiter := b.limiter
	if limiter == nil {
		limiter = rate.New(rate.Config{Capacity: cfg.RateLimit.Capacity, Window: cfg.RateLimit.Window}, clock)
	}

	notifier := b.notifier
	if notifier == nil {
		notifier = notify.NewLog(logger, cfg.Development())
	}
	notifier = notify.WithTimeout(notifier, cfg.Timeouts.Notifier)

	sink := b.auditSink
	if sink == nil {
		sink = audit.NewLoggerSink(logger)
	}

	reporter := logging.NewReporter(logger, b.hub)

	e := &Engine{
		config:    cfg,
		logger:    logger,
		clock:     clock,
		reporter:  reporter,
		accounts:  b.accounts,
		codec:     codec,
		hasher:    hasher,
		dummyHash: dummy,
		policy:    cfg.Password.Policy,
		lockout:   limiters.LockoutPolicy{Threshold: cfg.Lockout.Threshold, Cooldown: cfg.Lockout.Cooldown},
		guard:     session.Guard{Enforce: cfg.Session.EnforceSingleSession},
		limiter:   limiter,
		refresh:   refresh.NewStore(refreshRepo, refresh.Config{TTL: cfg.Refresh.TTL, Clock: clock}),
		resets:    resetRepo,
		notifier:  notifier,
		metrics:   newMetrics(cfg.Metrics),
	}
	e.dispatcher = internalaudit.NewDispatcher(internalaudit.Config{
		Enabled:     cfg.Audit.Enabled,
		BufferSize:  cfg.Audit.BufferSize,
		DropIfFull:  cfg.Audit.DropIfFull,
		EmitTimeout: cfg.Audit.EmitTimeout,
	}, sink, e.reportAuditFailure)

	b.built = true
	return e, nil
}

func (b *Builder) repositories() (refresh.Repository, reset.Repository, error) {
	refreshRepo, resetRepo := b.refreshRepo, b.resetRepo
	if b.redis != nil {
		if refreshRepo == nil {
			prefix := ""
			if b.redisPrefix != "" {
				prefix = b.redisPrefix + ":rt"
			}
			refreshRepo = stores.NewRefreshRepository(b.redis, stores.Options{Prefix: prefix})
		}
		if resetRepo == nil {
			prefix := ""
			if b.redisPrefix != "" {
				prefix = b.redisPrefix + ":pr"
			}
			resetRepo = stores.NewResetRepository(b.redis, stores.Options{Prefix: prefix})
		}
	}

	var errs []error
	if refreshRepo == nil {
		errs = append(errs, errors.New("refresh repository or redis client is required"))
	}
	if resetRepo == nil {
		errs = append(errs, errors.New("reset repository or redis client is required"))
	}
	if len(errs) > 0 {
		return nil, nil, fmt.Errorf("%w: %v", ErrConfiguration, errors.Join(errs...))
	}
	return refreshRepo, resetRepo, nil
}
